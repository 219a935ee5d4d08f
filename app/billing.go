// Package app contains the application services that orchestrate domain
// logic, stores, and external collaborators.
package app

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/fiberline/backoffice/adapters/metrics"
	"github.com/fiberline/backoffice/domain/billing"
	"github.com/fiberline/backoffice/domain/calendar"
	"github.com/fiberline/backoffice/domain/commitment"
	"github.com/fiberline/backoffice/domain/schedule"
	"github.com/fiberline/backoffice/ports"
)

// BillingService orchestrates the recurring-billing engine: due-date
// derivation, payment recording, the postponement lifecycle, and the
// remote reconciliation trigger.
type BillingService struct {
	payments      ports.PaymentStore
	installations ports.InstallationStore
	plans         ports.PlanStore
	clock         ports.Clock
	ids           ports.IDGenerator
	reconciler    ports.Reconciler
	metrics       *metrics.Collector
	logger        zerolog.Logger
}

// NewBillingService creates a new billing service. reconciler may be nil
// when no remote provisioning system is configured.
func NewBillingService(
	payments ports.PaymentStore,
	installations ports.InstallationStore,
	plans ports.PlanStore,
	clock ports.Clock,
	ids ports.IDGenerator,
	reconciler ports.Reconciler,
	m *metrics.Collector,
	logger zerolog.Logger,
) *BillingService {
	return &BillingService{
		payments:      payments,
		installations: installations,
		plans:         plans,
		clock:         clock,
		ids:           ids,
		reconciler:    reconciler,
		metrics:       m,
		logger:        logger,
	}
}

// NextDueDate derives the due date of the installation's next unsettled
// cycle. Returns billing.ErrMissingAnchor when the billing configuration
// has no anchor date.
func (s *BillingService) NextDueDate(ctx context.Context, installationID string) (time.Time, error) {
	inst, err := s.installations.Get(ctx, installationID)
	if err != nil {
		return time.Time{}, err
	}
	if inst.AnchorDate.IsZero() {
		return time.Time{}, billing.ErrMissingAnchor
	}

	settled, err := s.payments.SettledCycleCount(ctx, installationID)
	if err != nil {
		return time.Time{}, err
	}
	return schedule.NextDueDate(inst.AnchorDate, settled), nil
}

// CreatePaymentInput carries the operator's input for recording a payment.
type CreatePaymentInput struct {
	InstallationID string
	PaymentDate    *time.Time
	Strategy       billing.StatusStrategy
	ManualStatus   billing.Status // honored only with StrategyManual
	Method         string
	Reference      string
	TransferName   string
	Reconnection   bool
	Discount       float64
	// AdvancePayment marks the one first-cycle receipt collected during
	// intake. Set only by the intake flow.
	AdvancePayment bool
}

// CreatePayment records a payment for the installation's next unsettled
// cycle. The amount is composed from the plan price frozen at this moment,
// the status comes from classification or the operator's explicit choice,
// and the record is stored in a single write.
//
// A non-nil DiscountWarning means the discount exceeded the chargeable
// amount and the payment was stored at zero; it accompanies a successful
// result, never an error.
//
// Fails with a commitment.OpenError while the installation has an open
// postponement: that cycle must be regularized first, not charged twice.
func (s *BillingService) CreatePayment(ctx context.Context, in CreatePaymentInput) (billing.Payment, *billing.DiscountWarning, error) {
	inst, err := s.installations.Get(ctx, in.InstallationID)
	if err != nil {
		return billing.Payment{}, nil, err
	}
	if inst.AnchorDate.IsZero() {
		return billing.Payment{}, nil, billing.ErrMissingAnchor
	}

	if open, err := s.payments.OpenCommitment(ctx, in.InstallationID); err == nil {
		s.metrics.CommitmentRejects.Inc()
		return billing.Payment{}, nil, &commitment.OpenError{
			PaymentID:      open.ID,
			DueDate:        open.DueDate,
			EngagementDate: *open.EngagementDate,
		}
	} else if !errors.Is(err, ports.ErrNotFound) {
		return billing.Payment{}, nil, err
	}

	plan, err := s.plans.Get(ctx, inst.PlanID)
	if err != nil {
		return billing.Payment{}, nil, err
	}

	settled, err := s.payments.SettledCycleCount(ctx, in.InstallationID)
	if err != nil {
		return billing.Payment{}, nil, err
	}
	dueDate := schedule.NextDueDate(inst.AnchorDate, settled)

	amount, warn := billing.ComposeAmount(plan.PriceMonthly, in.Reconnection, in.Discount)
	if warn != nil {
		s.metrics.DiscountClamps.Inc()
		s.logger.Warn().
			Str("installation_id", in.InstallationID).
			Float64("discount", warn.Discount).
			Float64("chargeable", warn.Base).
			Msg("discount exceeds chargeable amount, clamped to zero")
	}

	today := calendar.DateOnly(s.clock.Now())
	var status billing.Status
	switch in.Strategy {
	case billing.StrategyAuto, "":
		status = billing.Classify(dueDate, in.PaymentDate, today)
	case billing.StrategyManual:
		if !in.ManualStatus.Valid() {
			return billing.Payment{}, nil, &billing.ValidationError{Field: "status", Reason: "unknown status"}
		}
		status = in.ManualStatus
	default:
		return billing.Payment{}, nil, &billing.ValidationError{Field: "status_strategy", Reason: "unknown strategy"}
	}

	if status.TerminalPaid() {
		if in.PaymentDate == nil {
			return billing.Payment{}, nil, &billing.ValidationError{Field: "payment_date", Reason: "required for a collected payment"}
		}
		if in.Method == "" {
			return billing.Payment{}, nil, &billing.ValidationError{Field: "method", Reason: "required for a collected payment"}
		}
		if in.Reference == "" {
			return billing.Payment{}, nil, &billing.ValidationError{Field: "reference", Reason: "required for a collected payment"}
		}
	}

	var paymentDate *time.Time
	if in.PaymentDate != nil {
		d := calendar.DateOnly(*in.PaymentDate)
		paymentDate = &d
	}

	p := billing.Payment{
		ID:             s.ids.New(),
		InstallationID: in.InstallationID,
		Amount:         amount,
		BaseAmount:     billing.Round2(plan.PriceMonthly),
		DueDate:        dueDate,
		PaymentDate:    paymentDate,
		Status:         status,
		Method:         in.Method,
		Reference:      in.Reference,
		TransferName:   in.TransferName,
		Reconnection:   in.Reconnection,
		Discount:       in.Discount,
		AdvancePayment: in.AdvancePayment,
	}

	if err := s.payments.Create(ctx, p); err != nil {
		return billing.Payment{}, nil, err
	}

	strategy := string(in.Strategy)
	if strategy == "" {
		strategy = string(billing.StrategyAuto)
	}
	s.metrics.PaymentsCreated.WithLabelValues(strategy).Inc()
	s.logger.Info().
		Str("payment_id", p.ID).
		Str("installation_id", p.InstallationID).
		Str("status", string(p.Status)).
		Float64("amount", p.Amount).
		Time("due_date", p.DueDate).
		Msg("payment recorded")

	return p, warn, nil
}

// UpdatePaymentInput carries the fields an operator may edit after the
// fact. Nil pointers mean "leave unchanged".
type UpdatePaymentInput struct {
	ID           string
	PaymentDate  *time.Time
	Method       *string
	Reference    *string
	TransferName *string
	Reconnection *bool
	Discount     *float64
}

// UpdatePayment edits a recorded payment. Amount-bearing fields
// (reconnection, discount) are frozen once the payment is in a terminal
// paid state; only instrument metadata stays editable then. A pending
// payment given a payment date is reclassified against its due date.
func (s *BillingService) UpdatePayment(ctx context.Context, in UpdatePaymentInput) (billing.Payment, *billing.DiscountWarning, error) {
	p, err := s.payments.Get(ctx, in.ID)
	if err != nil {
		return billing.Payment{}, nil, err
	}
	if p.IsVoided() {
		return billing.Payment{}, nil, &billing.ValidationError{Field: "status", Reason: "voided payment is immutable"}
	}

	frozen := p.IsTerminalPaid()
	if frozen && (in.Reconnection != nil || in.Discount != nil) {
		return billing.Payment{}, nil, &billing.ValidationError{Field: "amount", Reason: "amount is frozen once the payment is collected"}
	}

	if in.Method != nil {
		p.Method = *in.Method
	}
	if in.Reference != nil {
		p.Reference = *in.Reference
	}
	if in.TransferName != nil {
		p.TransferName = *in.TransferName
	}

	var warn *billing.DiscountWarning
	if !frozen {
		if in.Reconnection != nil {
			p.Reconnection = *in.Reconnection
		}
		if in.Discount != nil {
			p.Discount = *in.Discount
		}
		p.Amount, warn = billing.ComposeAmount(p.BaseAmount, p.Reconnection, p.Discount)
		if warn != nil {
			s.metrics.DiscountClamps.Inc()
		}

		if in.PaymentDate != nil {
			d := calendar.DateOnly(*in.PaymentDate)
			p.PaymentDate = &d
			if p.Method == "" {
				return billing.Payment{}, nil, &billing.ValidationError{Field: "method", Reason: "required for a collected payment"}
			}
			if p.Reference == "" {
				return billing.Payment{}, nil, &billing.ValidationError{Field: "reference", Reason: "required for a collected payment"}
			}
			p.Status = billing.Classify(p.DueDate, p.PaymentDate, calendar.DateOnly(s.clock.Now()))
		}
	}

	if err := s.payments.Update(ctx, p); err != nil {
		return billing.Payment{}, nil, err
	}

	s.logger.Info().Str("payment_id", p.ID).Str("status", string(p.Status)).Msg("payment updated")
	return p, warn, nil
}

// VoidPayment cancels a pending payment. The cycle it would have settled
// becomes the next unsettled cycle again. Collected payments cannot be
// voided.
func (s *BillingService) VoidPayment(ctx context.Context, id string) (billing.Payment, error) {
	p, err := s.payments.Get(ctx, id)
	if err != nil {
		return billing.Payment{}, err
	}
	if p.IsTerminalPaid() {
		return billing.Payment{}, &billing.ValidationError{Field: "status", Reason: "collected payment cannot be voided"}
	}
	if p.IsVoided() {
		return p, nil
	}

	p.Status = billing.StatusVoided
	if err := s.payments.Update(ctx, p); err != nil {
		return billing.Payment{}, err
	}

	s.metrics.PaymentsVoided.Inc()
	s.logger.Info().Str("payment_id", p.ID).Msg("payment voided")
	return p, nil
}

// ListPayments returns an installation's payments in cycle order.
func (s *BillingService) ListPayments(ctx context.Context, installationID string) ([]billing.Payment, error) {
	return s.payments.ListByInstallation(ctx, installationID)
}

// GetPayment returns a single payment.
func (s *BillingService) GetPayment(ctx context.Context, id string) (billing.Payment, error) {
	return s.payments.Get(ctx, id)
}

// OpenPostponementInput carries the operator's input for opening a
// postponement commitment.
type OpenPostponementInput struct {
	InstallationID string
	EngagementDate time.Time
	Reconnection   bool
	Discount       float64
}

// OpenPostponement opens a commitment for the installation's next
// unsettled cycle: the client promises to pay by the engagement date. At
// most one commitment can be open per installation.
func (s *BillingService) OpenPostponement(ctx context.Context, in OpenPostponementInput) (billing.Payment, *billing.DiscountWarning, error) {
	inst, err := s.installations.Get(ctx, in.InstallationID)
	if err != nil {
		return billing.Payment{}, nil, err
	}
	if inst.AnchorDate.IsZero() {
		return billing.Payment{}, nil, billing.ErrMissingAnchor
	}

	if open, err := s.payments.OpenCommitment(ctx, in.InstallationID); err == nil {
		s.metrics.CommitmentRejects.Inc()
		return billing.Payment{}, nil, &commitment.OpenError{
			PaymentID:      open.ID,
			DueDate:        open.DueDate,
			EngagementDate: *open.EngagementDate,
		}
	} else if !errors.Is(err, ports.ErrNotFound) {
		return billing.Payment{}, nil, err
	}

	plan, err := s.plans.Get(ctx, inst.PlanID)
	if err != nil {
		return billing.Payment{}, nil, err
	}

	settled, err := s.payments.SettledCycleCount(ctx, in.InstallationID)
	if err != nil {
		return billing.Payment{}, nil, err
	}

	amount, warn := billing.ComposeAmount(plan.PriceMonthly, in.Reconnection, in.Discount)
	if warn != nil {
		s.metrics.DiscountClamps.Inc()
	}

	draft := billing.Payment{
		ID:             s.ids.New(),
		InstallationID: in.InstallationID,
		Amount:         amount,
		BaseAmount:     billing.Round2(plan.PriceMonthly),
		DueDate:        schedule.NextDueDate(inst.AnchorDate, settled),
		Reconnection:   in.Reconnection,
		Discount:       in.Discount,
	}

	p, err := commitment.Open(draft, in.EngagementDate, calendar.DateOnly(s.clock.Now()))
	if err != nil {
		return billing.Payment{}, nil, err
	}

	if err := s.payments.Create(ctx, p); err != nil {
		if errors.Is(err, ports.ErrDuplicate) {
			// Lost a race with a concurrent postponement.
			s.metrics.CommitmentRejects.Inc()
		}
		return billing.Payment{}, nil, err
	}

	s.metrics.CommitmentsOpened.Inc()
	s.logger.Info().
		Str("payment_id", p.ID).
		Str("installation_id", p.InstallationID).
		Time("engagement_date", *p.EngagementDate).
		Msg("postponement opened")

	return p, warn, nil
}

// Regularize converts an open commitment into a finalized payment. The
// status follows classification against the original due date, so paying
// within the promised window does not forgive lateness.
func (s *BillingService) Regularize(ctx context.Context, paymentID string, in commitment.RegularizeInput) (billing.Payment, error) {
	p, err := s.payments.Get(ctx, paymentID)
	if err != nil {
		return billing.Payment{}, err
	}

	p, err = commitment.Regularize(p, in)
	if err != nil {
		return billing.Payment{}, err
	}

	if err := s.payments.Update(ctx, p); err != nil {
		return billing.Payment{}, err
	}

	s.metrics.Regularizations.WithLabelValues(string(p.Status)).Inc()
	s.logger.Info().
		Str("payment_id", p.ID).
		Str("status", string(p.Status)).
		Msg("commitment regularized")

	return p, nil
}

// LapseOverdue reclassifies every open commitment whose engagement date
// has passed with no action taken. Returns how many were lapsed. Run
// periodically or on demand.
func (s *BillingService) LapseOverdue(ctx context.Context) (int, error) {
	today := calendar.DateOnly(s.clock.Now())

	open, err := s.payments.ListOpenCommitments(ctx, today)
	if err != nil {
		return 0, err
	}

	lapsed := 0
	for _, p := range open {
		updated, changed := commitment.Lapse(p, today)
		if !changed {
			continue
		}
		if err := s.payments.Update(ctx, updated); err != nil {
			return lapsed, err
		}
		lapsed++
		s.metrics.CommitmentsLapsed.Inc()
		s.logger.Info().
			Str("payment_id", p.ID).
			Time("engagement_date", *p.EngagementDate).
			Msg("commitment lapsed")
	}
	return lapsed, nil
}

// TriggerReconcile runs the remote bulk status reconciliation.
func (s *BillingService) TriggerReconcile(ctx context.Context) (ports.ReconcileResult, error) {
	if s.reconciler == nil {
		return ports.ReconcileResult{}, errors.New("no reconciler configured")
	}

	s.metrics.ReconcileRuns.Inc()
	result, err := s.reconciler.BulkReconcile(ctx)
	if err != nil {
		s.metrics.ReconcileErrors.Inc()
		s.logger.Error().Err(err).Msg("bulk reconcile failed")
		return ports.ReconcileResult{}, err
	}

	s.metrics.ReconcileChecked.Set(float64(result.Checked))
	s.metrics.ReconcileFixed.Set(float64(result.Reconciled))
	s.logger.Info().
		Int("checked", result.Checked).
		Int("reconciled", result.Reconciled).
		Msg("bulk reconcile complete")

	return result, nil
}
