package remote

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fiberline/backoffice/ports"
)

func TestClientRequest_SetsHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("Content-Type = %q, want application/json", r.Header.Get("Content-Type"))
		}
		if r.Header.Get("Authorization") != "Bearer sync-key" {
			t.Errorf("Authorization = %q, want Bearer sync-key", r.Header.Get("Authorization"))
		}
		json.NewEncoder(w).Encode(map[string]string{"ok": "true"})
	}))
	defer server.Close()

	client := NewClient(ClientConfig{BaseURL: server.URL, APIKey: "sync-key"})
	var out map[string]string
	if err := client.Request(context.Background(), "POST", "/ping", nil, &out); err != nil {
		t.Fatalf("request: %v", err)
	}
	if out["ok"] != "true" {
		t.Errorf("response = %v", out)
	}
}

func TestClientRequest_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(ClientConfig{BaseURL: server.URL})
	err := client.Request(context.Background(), "GET", "/fail", nil, nil)

	var re *RemoteError
	if !errors.As(err, &re) {
		t.Fatalf("got %v, want RemoteError", err)
	}
	if re.StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", re.StatusCode)
	}
}

func TestDirectory_FindByIdentity(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/accounts/by-identity/12345678":
			json.NewEncoder(w).Encode(remoteAccount{
				AccountID:      "acc-1",
				Name:           "Maria Lopez",
				IdentityNumber: "12345678",
				Phone:          "555-0101",
			})
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	dir := NewDirectory(NewClient(ClientConfig{BaseURL: server.URL}))

	got, err := dir.FindByIdentity(context.Background(), "12345678")
	if err != nil {
		t.Fatalf("FindByIdentity: %v", err)
	}
	if got.ID != "acc-1" || got.Name != "Maria Lopez" {
		t.Errorf("got %+v", got)
	}

	if _, err := dir.FindByIdentity(context.Background(), "00000000"); !errors.Is(err, ports.ErrNotFound) {
		t.Errorf("unregistered: got %v, want ErrNotFound", err)
	}
}

func TestReconciler_BulkReconcile(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/sync/statuses" {
			t.Errorf("unexpected call: %s %s", r.Method, r.URL.Path)
		}
		json.NewEncoder(w).Encode(ports.ReconcileResult{Checked: 120, Reconciled: 3})
	}))
	defer server.Close()

	rec := NewReconciler(NewClient(ClientConfig{BaseURL: server.URL}))

	got, err := rec.BulkReconcile(context.Background())
	if err != nil {
		t.Fatalf("BulkReconcile: %v", err)
	}
	if got.Checked != 120 || got.Reconciled != 3 {
		t.Errorf("got %+v, want {120 3}", got)
	}
}
