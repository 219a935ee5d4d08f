// Package web provides the JSON API the back-office UI talks to.
// Stateless design: operator sessions are JWT bearer tokens, no
// server-side session storage.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/fiberline/backoffice/adapters/auth"
	"github.com/fiberline/backoffice/adapters/metrics"
	"github.com/fiberline/backoffice/app"
	"github.com/fiberline/backoffice/domain/billing"
	"github.com/fiberline/backoffice/domain/commitment"
	"github.com/fiberline/backoffice/ports"
)

// Handler provides the back-office API endpoints.
type Handler struct {
	auth     *app.AuthService
	billing  *app.BillingService
	intake   *app.IntakeService
	accounts ports.AccountStore
	installs ports.InstallationStore
	plans    ports.PlanStore
	metrics  *metrics.Collector
	validate *validator.Validate
	logger   zerolog.Logger

	metricsEnabled bool
	metricsPath    string
}

// Deps contains dependencies for the API handler.
type Deps struct {
	Auth           *app.AuthService
	Billing        *app.BillingService
	Intake         *app.IntakeService
	Accounts       ports.AccountStore
	Installations  ports.InstallationStore
	Plans          ports.PlanStore
	Metrics        *metrics.Collector // optional; nil disables request instrumentation
	Logger         zerolog.Logger
	MetricsEnabled bool
	MetricsPath    string
}

// NewHandler creates a new API handler.
func NewHandler(deps Deps) *Handler {
	path := deps.MetricsPath
	if path == "" {
		path = "/metrics"
	}
	return &Handler{
		auth:           deps.Auth,
		billing:        deps.Billing,
		intake:         deps.Intake,
		accounts:       deps.Accounts,
		installs:       deps.Installations,
		plans:          deps.Plans,
		metrics:        deps.Metrics,
		validate:       validator.New(),
		logger:         deps.Logger,
		metricsEnabled: deps.MetricsEnabled,
		metricsPath:    path,
	}
}

// Router returns the API router.
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	if h.metrics != nil {
		r.Use(h.instrument)
	}

	r.Get("/healthz", h.Healthz)
	if h.metricsEnabled {
		r.Handle(h.metricsPath, promhttp.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		// Public endpoints (no auth required)
		r.Post("/login", h.Login)

		// Protected endpoints (require auth)
		r.Group(func(r chi.Router) {
			r.Use(h.AuthMiddleware)

			// Intake
			r.Get("/identity/{number}", h.CheckIdentity)
			r.Post("/identity/{number}/adopt", h.AdoptAccount)
			r.Post("/clients", h.CreateClient)
			r.Get("/clients", h.ListClients)
			r.Get("/clients/{id}", h.GetClient)

			// Plans
			r.Get("/plans", h.ListPlans)

			// Installations
			r.Get("/installations/{id}/next-due", h.NextDueDate)
			r.Get("/installations/{id}/payments", h.ListPayments)
			r.Put("/installations/{id}/anchor", h.UpdateAnchor)

			// Payments
			r.Post("/payments", h.CreatePayment)
			r.Get("/payments/{id}", h.GetPayment)
			r.Patch("/payments/{id}", h.UpdatePayment)
			r.Post("/payments/{id}/void", h.VoidPayment)
			r.Post("/payments/{id}/regularize", h.Regularize)

			// Postponements
			r.Post("/postponements", h.OpenPostponement)
			r.Post("/postponements/lapse", h.LapseOverdue)

			// Remote reconciliation
			r.Post("/reconcile", h.Reconcile)
		})
	})

	return r
}

// Healthz reports liveness.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// instrument records request count, duration, and in-flight gauge. The
// route pattern (not the raw URL) is the path label, so /payments/{id}
// stays one series.
func (h *Handler) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.metrics.RequestsInFlight.Inc()
		defer h.metrics.RequestsInFlight.Dec()

		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		pattern := chi.RouteContext(r.Context()).RoutePattern()
		code := strconv.Itoa(status)
		h.metrics.RequestsTotal.WithLabelValues(r.Method, pattern, code).Inc()
		h.metrics.RequestDuration.WithLabelValues(r.Method, pattern, code).Observe(time.Since(start).Seconds())
	})
}

type ctxKey int

const ctxClaimsKey ctxKey = iota

// AuthMiddleware validates the bearer token.
func (h *Handler) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token := strings.TrimPrefix(header, "Bearer ")
		if header == "" || token == header {
			writeError(w, http.StatusUnauthorized, "unauthorized", "Bearer token required")
			return
		}

		claims, err := h.auth.Validate(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized", "Invalid or expired token")
			return
		}

		ctx := context.WithValue(r.Context(), ctxClaimsKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// claimsFrom returns the authenticated operator's claims, if any.
func claimsFrom(ctx context.Context) *auth.Claims {
	claims, _ := ctx.Value(ctxClaimsKey).(*auth.Claims)
	return claims
}

// decodeAndValidate decodes a JSON body into req and runs struct
// validation. Writes the error response itself and reports success.
func (h *Handler) decodeAndValidate(w http.ResponseWriter, r *http.Request, req interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return false
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", err.Error())
		return false
	}
	return true
}

// writeDomainError maps domain and store errors to HTTP responses.
func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	var oe *commitment.OpenError
	if errors.As(err, &oe) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error": map[string]interface{}{
				"code":    "commitment_open",
				"message": oe.Error(),
				"commitment": map[string]string{
					"payment_id":      oe.PaymentID,
					"due_date":        oe.DueDate.Format(dateLayout),
					"engagement_date": oe.EngagementDate.Format(dateLayout),
				},
			},
		})
		return
	}

	var ve *billing.ValidationError
	if errors.As(err, &ve) {
		writeError(w, http.StatusBadRequest, "validation_error", ve.Error())
		return
	}

	switch {
	case errors.Is(err, billing.ErrMissingAnchor):
		writeError(w, http.StatusConflict, "missing_anchor", err.Error())
	case errors.Is(err, commitment.ErrAlreadyRegularized):
		writeError(w, http.StatusConflict, "already_regularized", err.Error())
	case errors.Is(err, commitment.ErrNotCommitted):
		writeError(w, http.StatusConflict, "not_committed", err.Error())
	case errors.Is(err, ports.ErrDuplicate):
		writeError(w, http.StatusConflict, "duplicate", "Identity number already registered")
	case errors.Is(err, ports.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "Not found")
	case errors.Is(err, app.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid_credentials", "Invalid email or password")
	default:
		h.logger.Error().Err(err).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal_error", "Internal error")
	}
}

const dateLayout = "2006-01-02"

// parseDate parses a calendar-day value from a request payload.
func parseDate(s string) (time.Time, error) {
	return time.Parse(dateLayout, s)
}

func parseIntQuery(r *http.Request, name string, defaultVal int) int {
	s := r.URL.Query().Get(name)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}
