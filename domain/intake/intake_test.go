package intake

import "testing"

func TestIdentityReady(t *testing.T) {
	tests := []struct {
		name     string
		identity string
		length   int
		want     bool
	}{
		{"complete 8 digits", "12345678", 8, true},
		{"too short", "1234567", 8, false},
		{"too long", "123456789", 8, false},
		{"non-digit", "1234567a", 8, false},
		{"empty", "", 8, false},
		{"zero length falls back to default", "12345678", 0, true},
		{"custom length", "1234567890", 10, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IdentityReady(tt.identity, tt.length); got != tt.want {
				t.Errorf("IdentityReady(%q, %d) = %v, want %v", tt.identity, tt.length, got, tt.want)
			}
		})
	}
}

func TestDecision_ProceedNew(t *testing.T) {
	if !(Decision{}).ProceedNew() {
		t.Errorf("empty decision should allow a new account")
	}

	found := Decision{Existing: &AccountSummary{ID: "acc-1", IdentityNumber: "12345678"}}
	if found.ProceedNew() {
		t.Errorf("decision with an existing account must not allow a new one")
	}
}

func TestPrefillFrom(t *testing.T) {
	summary := AccountSummary{
		ID:             "acc-1",
		Name:           "Maria Lopez",
		IdentityNumber: "12345678",
		Phone:          "555-0101",
	}

	got := PrefillFrom(summary)
	if got.AccountID != "acc-1" || got.IdentityNumber != "12345678" || got.Name != "Maria Lopez" {
		t.Errorf("PrefillFrom = %+v, want fields copied from summary", got)
	}
}
