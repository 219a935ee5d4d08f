package web

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fiberline/backoffice/app"
	"github.com/fiberline/backoffice/domain/billing"
	"github.com/fiberline/backoffice/domain/commitment"
	"github.com/fiberline/backoffice/ports"
)

// -----------------------------------------------------------------------------
// Authentication
// -----------------------------------------------------------------------------

// LoginRequest is the login payload.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse is a successful login.
type LoginResponse struct {
	Token     string           `json:"token"`
	ExpiresAt string           `json:"expires_at"`
	Operator  OperatorResponse `json:"operator"`
}

// OperatorResponse is the operator slice exposed to the UI.
type OperatorResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// Login authenticates an operator and issues a session token.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	session, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, LoginResponse{
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt.Format(time.RFC3339),
		Operator: OperatorResponse{
			ID:    session.Operator.ID,
			Email: session.Operator.Email,
			Name:  session.Operator.Name,
		},
	})
}

// -----------------------------------------------------------------------------
// Intake
// -----------------------------------------------------------------------------

// IdentityCheckResponse is the dedup gate's answer for an identifier.
type IdentityCheckResponse struct {
	Ready    bool             `json:"ready"`
	Existing *ExistingAccount `json:"existing,omitempty"`
}

// ExistingAccount is the match shown when an identity is already
// registered.
type ExistingAccount struct {
	AccountID      string `json:"account_id"`
	Name           string `json:"name"`
	IdentityNumber string `json:"identity_number"`
	Phone          string `json:"phone,omitempty"`
}

// CheckIdentity runs the intake deduplication gate.
func (h *Handler) CheckIdentity(w http.ResponseWriter, r *http.Request) {
	number := chi.URLParam(r, "number")

	result, err := h.intake.CheckIdentity(r.Context(), number)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	if result.Stale {
		// Superseded by a newer lookup; tell the client to ignore it.
		writeError(w, http.StatusConflict, "stale_lookup", "A newer identity lookup is in flight")
		return
	}

	resp := IdentityCheckResponse{Ready: result.Ready}
	if existing := result.Decision.Existing; existing != nil {
		resp.Existing = &ExistingAccount{
			AccountID:      existing.ID,
			Name:           existing.Name,
			IdentityNumber: existing.IdentityNumber,
			Phone:          existing.Phone,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// PrefillResponse is the adopt-existing intake prefill.
type PrefillResponse struct {
	AccountID      string `json:"account_id"`
	Name           string `json:"name"`
	IdentityNumber string `json:"identity_number"`
	Phone          string `json:"phone,omitempty"`
}

// AdoptAccount returns the intake prefill for the account already
// registered under the identity number. Adoption never creates a second
// account.
func (h *Handler) AdoptAccount(w http.ResponseWriter, r *http.Request) {
	prefill, err := h.intake.AdoptAccount(r.Context(), chi.URLParam(r, "number"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, PrefillResponse{
		AccountID:      prefill.AccountID,
		Name:           prefill.Name,
		IdentityNumber: prefill.IdentityNumber,
		Phone:          prefill.Phone,
	})
}

// CreateClientRequest is a full intake submission.
type CreateClientRequest struct {
	ExistingAccountID string `json:"existing_account_id,omitempty"`

	Name           string `json:"name"`
	IdentityNumber string `json:"identity_number"`
	Phone          string `json:"phone,omitempty"`
	Address        string `json:"address,omitempty"`

	PlanID              string `json:"plan_id" validate:"required"`
	InstallationAddress string `json:"installation_address,omitempty"`
	AnchorDate          string `json:"anchor_date" validate:"required"`
	AdvancePayment      bool   `json:"advance_payment"`

	Method       string `json:"method,omitempty"`
	Reference    string `json:"reference,omitempty"`
	TransferName string `json:"transfer_name,omitempty"`
}

// CreateClientResponse is a successful intake.
type CreateClientResponse struct {
	Account        AccountResponse      `json:"account"`
	Installation   InstallationResponse `json:"installation"`
	AdvanceReceipt *PaymentResponse     `json:"advance_receipt,omitempty"`
	Warning        string               `json:"warning,omitempty"`
}

// CreateClient creates a client with its installation, optionally
// collecting the first cycle in advance.
func (h *Handler) CreateClient(w http.ResponseWriter, r *http.Request) {
	var req CreateClientRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	if req.ExistingAccountID == "" && (req.Name == "" || req.IdentityNumber == "") {
		writeError(w, http.StatusBadRequest, "validation_error", "name and identity_number are required for a new account")
		return
	}

	anchor, err := parseDate(req.AnchorDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "anchor_date must be YYYY-MM-DD")
		return
	}

	result, err := h.intake.CreateClient(r.Context(), app.CreateClientInput{
		ExistingAccountID:   req.ExistingAccountID,
		Name:                req.Name,
		IdentityNumber:      req.IdentityNumber,
		Phone:               req.Phone,
		Address:             req.Address,
		PlanID:              req.PlanID,
		InstallationAddress: req.InstallationAddress,
		AnchorDate:          anchor,
		AdvancePayment:      req.AdvancePayment,
		Method:              req.Method,
		Reference:           req.Reference,
		TransferName:        req.TransferName,
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	resp := CreateClientResponse{
		Account:      accountToResponse(result.Account),
		Installation: installationToResponse(result.Installation),
	}
	if result.AdvanceReceipt != nil {
		p := paymentToResponse(*result.AdvanceReceipt)
		resp.AdvanceReceipt = &p
	}
	if result.Warning != nil {
		resp.Warning = result.Warning.Error()
	}
	writeJSON(w, http.StatusCreated, resp)
}

// AccountResponse is the client account wire format.
type AccountResponse struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	IdentityNumber string `json:"identity_number"`
	Phone          string `json:"phone,omitempty"`
	Address        string `json:"address,omitempty"`
	Status         string `json:"status"`
}

func accountToResponse(a ports.Account) AccountResponse {
	return AccountResponse{
		ID:             a.ID,
		Name:           a.Name,
		IdentityNumber: a.IdentityNumber,
		Phone:          a.Phone,
		Address:        a.Address,
		Status:         a.Status,
	}
}

// InstallationResponse is the installation wire format.
type InstallationResponse struct {
	ID             string `json:"id"`
	AccountID      string `json:"account_id"`
	PlanID         string `json:"plan_id"`
	Address        string `json:"address,omitempty"`
	AnchorDate     string `json:"anchor_date,omitempty"`
	AdvancePayment bool   `json:"advance_payment"`
}

func installationToResponse(inst ports.Installation) InstallationResponse {
	resp := InstallationResponse{
		ID:             inst.ID,
		AccountID:      inst.AccountID,
		PlanID:         inst.PlanID,
		Address:        inst.Address,
		AdvancePayment: inst.AdvancePayment,
	}
	if !inst.AnchorDate.IsZero() {
		resp.AnchorDate = inst.AnchorDate.Format(dateLayout)
	}
	return resp
}

// ListClients returns client accounts with pagination.
func (h *Handler) ListClients(w http.ResponseWriter, r *http.Request) {
	limit := parseIntQuery(r, "limit", 50)
	offset := parseIntQuery(r, "offset", 0)

	accounts, err := h.accounts.List(r.Context(), limit, offset)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	total, err := h.accounts.Count(r.Context())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	resp := make([]AccountResponse, 0, len(accounts))
	for _, a := range accounts {
		resp = append(resp, accountToResponse(a))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"clients": resp,
		"total":   total,
	})
}

// GetClient returns one account and its installations.
func (h *Handler) GetClient(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	account, err := h.accounts.Get(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	installations, err := h.installs.ListByAccount(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	instResp := make([]InstallationResponse, 0, len(installations))
	for _, inst := range installations {
		instResp = append(instResp, installationToResponse(inst))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"client":        accountToResponse(account),
		"installations": instResp,
	})
}

// -----------------------------------------------------------------------------
// Plans
// -----------------------------------------------------------------------------

// PlanResponse is the service plan wire format.
type PlanResponse struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	PriceMonthly float64 `json:"price_monthly"`
	DownloadMbps int     `json:"download_mbps,omitempty"`
	UploadMbps   int     `json:"upload_mbps,omitempty"`
}

// ListPlans returns all enabled plans.
func (h *Handler) ListPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := h.plans.List(r.Context())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	resp := make([]PlanResponse, 0, len(plans))
	for _, p := range plans {
		resp = append(resp, PlanResponse{
			ID:           p.ID,
			Name:         p.Name,
			PriceMonthly: p.PriceMonthly,
			DownloadMbps: p.DownloadMbps,
			UploadMbps:   p.UploadMbps,
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"plans": resp})
}

// -----------------------------------------------------------------------------
// Installations
// -----------------------------------------------------------------------------

// NextDueDate returns the installation's next unsettled cycle due date.
func (h *Handler) NextDueDate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	due, err := h.billing.NextDueDate(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"installation_id": id,
		"next_due_date":   due.Format(dateLayout),
	})
}

// UpdateAnchorRequest corrects an installation's anchor date.
type UpdateAnchorRequest struct {
	AnchorDate string `json:"anchor_date" validate:"required"`
}

// UpdateAnchor corrects the billing anchor date.
func (h *Handler) UpdateAnchor(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req UpdateAnchorRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	anchor, err := parseDate(req.AnchorDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "anchor_date must be YYYY-MM-DD")
		return
	}

	if err := h.installs.UpdateAnchor(r.Context(), id, anchor); err != nil {
		h.writeDomainError(w, err)
		return
	}

	inst, err := h.installs.Get(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, installationToResponse(inst))
}

// -----------------------------------------------------------------------------
// Payments
// -----------------------------------------------------------------------------

// PaymentResponse is the payment wire format.
type PaymentResponse struct {
	ID             string  `json:"id"`
	InstallationID string  `json:"installation_id"`
	Amount         float64 `json:"amount"`
	BaseAmount     float64 `json:"base_amount"`
	DueDate        string  `json:"due_date"`
	PaymentDate    string  `json:"payment_date,omitempty"`
	EngagementDate string  `json:"engagement_date,omitempty"`
	Status         string  `json:"status"`
	Method         string  `json:"method,omitempty"`
	Reference      string  `json:"reference,omitempty"`
	TransferName   string  `json:"transfer_name,omitempty"`
	Reconnection   bool    `json:"reconnection"`
	Discount       float64 `json:"discount"`
	AdvancePayment bool    `json:"advance_payment"`
	Commitment     string  `json:"commitment_state,omitempty"`
}

func paymentToResponse(p billing.Payment) PaymentResponse {
	resp := PaymentResponse{
		ID:             p.ID,
		InstallationID: p.InstallationID,
		Amount:         p.Amount,
		BaseAmount:     p.BaseAmount,
		DueDate:        p.DueDate.Format(dateLayout),
		Status:         string(p.Status),
		Method:         p.Method,
		Reference:      p.Reference,
		TransferName:   p.TransferName,
		Reconnection:   p.Reconnection,
		Discount:       p.Discount,
		AdvancePayment: p.AdvancePayment,
	}
	if p.PaymentDate != nil {
		resp.PaymentDate = p.PaymentDate.Format(dateLayout)
	}
	if p.EngagementDate != nil {
		resp.EngagementDate = p.EngagementDate.Format(dateLayout)
		resp.Commitment = string(commitment.StateOf(p))
	}
	return resp
}

// PaymentResult pairs a payment with an optional composition warning.
type PaymentResult struct {
	Payment PaymentResponse `json:"payment"`
	Warning string          `json:"warning,omitempty"`
}

// CreatePaymentRequest records a payment for the next unsettled cycle.
type CreatePaymentRequest struct {
	InstallationID string  `json:"installation_id" validate:"required"`
	PaymentDate    string  `json:"payment_date,omitempty"`
	StatusStrategy string  `json:"status_strategy,omitempty" validate:"omitempty,oneof=auto manual"`
	Status         string  `json:"status,omitempty"`
	Method         string  `json:"method,omitempty"`
	Reference      string  `json:"reference,omitempty"`
	TransferName   string  `json:"transfer_name,omitempty"`
	Reconnection   bool    `json:"reconnection"`
	Discount       float64 `json:"discount" validate:"gte=0"`
}

// CreatePayment records a payment.
func (h *Handler) CreatePayment(w http.ResponseWriter, r *http.Request) {
	var req CreatePaymentRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	in := app.CreatePaymentInput{
		InstallationID: req.InstallationID,
		Strategy:       billing.StatusStrategy(req.StatusStrategy),
		ManualStatus:   billing.Status(req.Status),
		Method:         req.Method,
		Reference:      req.Reference,
		TransferName:   req.TransferName,
		Reconnection:   req.Reconnection,
		Discount:       req.Discount,
	}
	if req.PaymentDate != "" {
		d, err := parseDate(req.PaymentDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "validation_error", "payment_date must be YYYY-MM-DD")
			return
		}
		in.PaymentDate = &d
	}

	p, warn, err := h.billing.CreatePayment(r.Context(), in)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	if claims := claimsFrom(r.Context()); claims != nil {
		h.logger.Info().
			Str("operator_id", claims.OperatorID).
			Str("payment_id", p.ID).
			Msg("payment recorded")
	}

	result := PaymentResult{Payment: paymentToResponse(p)}
	if warn != nil {
		result.Warning = warn.Error()
	}
	writeJSON(w, http.StatusCreated, result)
}

// GetPayment returns one payment.
func (h *Handler) GetPayment(w http.ResponseWriter, r *http.Request) {
	p, err := h.billing.GetPayment(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, paymentToResponse(p))
}

// ListPayments returns an installation's payments in cycle order.
func (h *Handler) ListPayments(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	payments, err := h.billing.ListPayments(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	resp := make([]PaymentResponse, 0, len(payments))
	for _, p := range payments {
		resp = append(resp, paymentToResponse(p))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"payments": resp})
}

// UpdatePaymentRequest edits a payment. Absent fields stay unchanged.
type UpdatePaymentRequest struct {
	PaymentDate  *string  `json:"payment_date,omitempty"`
	Method       *string  `json:"method,omitempty"`
	Reference    *string  `json:"reference,omitempty"`
	TransferName *string  `json:"transfer_name,omitempty"`
	Reconnection *bool    `json:"reconnection,omitempty"`
	Discount     *float64 `json:"discount,omitempty"`
}

// UpdatePayment edits a recorded payment under the freeze rules.
func (h *Handler) UpdatePayment(w http.ResponseWriter, r *http.Request) {
	var req UpdatePaymentRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	in := app.UpdatePaymentInput{
		ID:           chi.URLParam(r, "id"),
		Method:       req.Method,
		Reference:    req.Reference,
		TransferName: req.TransferName,
		Reconnection: req.Reconnection,
		Discount:     req.Discount,
	}
	if req.PaymentDate != nil {
		d, err := parseDate(*req.PaymentDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "validation_error", "payment_date must be YYYY-MM-DD")
			return
		}
		in.PaymentDate = &d
	}

	p, warn, err := h.billing.UpdatePayment(r.Context(), in)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	result := PaymentResult{Payment: paymentToResponse(p)}
	if warn != nil {
		result.Warning = warn.Error()
	}
	writeJSON(w, http.StatusOK, result)
}

// VoidPayment cancels a pending payment.
func (h *Handler) VoidPayment(w http.ResponseWriter, r *http.Request) {
	p, err := h.billing.VoidPayment(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, paymentToResponse(p))
}

// -----------------------------------------------------------------------------
// Postponements
// -----------------------------------------------------------------------------

// OpenPostponementRequest opens a commitment for the next cycle.
type OpenPostponementRequest struct {
	InstallationID string  `json:"installation_id" validate:"required"`
	EngagementDate string  `json:"engagement_date" validate:"required"`
	Reconnection   bool    `json:"reconnection"`
	Discount       float64 `json:"discount" validate:"gte=0"`
}

// OpenPostponement opens a postponement commitment.
func (h *Handler) OpenPostponement(w http.ResponseWriter, r *http.Request) {
	var req OpenPostponementRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	engagement, err := parseDate(req.EngagementDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "engagement_date must be YYYY-MM-DD")
		return
	}

	p, warn, err := h.billing.OpenPostponement(r.Context(), app.OpenPostponementInput{
		InstallationID: req.InstallationID,
		EngagementDate: engagement,
		Reconnection:   req.Reconnection,
		Discount:       req.Discount,
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	result := PaymentResult{Payment: paymentToResponse(p)}
	if warn != nil {
		result.Warning = warn.Error()
	}
	writeJSON(w, http.StatusCreated, result)
}

// RegularizeRequest converts an open commitment into a finalized payment.
type RegularizeRequest struct {
	PaymentDate  string `json:"payment_date" validate:"required"`
	Method       string `json:"method" validate:"required"`
	Reference    string `json:"reference" validate:"required"`
	TransferName string `json:"transfer_name,omitempty"`
}

// Regularize finalizes an open commitment.
func (h *Handler) Regularize(w http.ResponseWriter, r *http.Request) {
	var req RegularizeRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	paid, err := parseDate(req.PaymentDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "payment_date must be YYYY-MM-DD")
		return
	}

	p, err := h.billing.Regularize(r.Context(), chi.URLParam(r, "id"), commitment.RegularizeInput{
		PaymentDate:  paid,
		Method:       req.Method,
		Reference:    req.Reference,
		TransferName: req.TransferName,
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, paymentToResponse(p))
}

// LapseOverdue sweeps open commitments past their engagement date.
func (h *Handler) LapseOverdue(w http.ResponseWriter, r *http.Request) {
	n, err := h.billing.LapseOverdue(r.Context())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"lapsed": n})
}

// -----------------------------------------------------------------------------
// Reconciliation
// -----------------------------------------------------------------------------

// Reconcile triggers the remote bulk status reconciliation.
func (h *Handler) Reconcile(w http.ResponseWriter, r *http.Request) {
	result, err := h.billing.TriggerReconcile(r.Context())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
