package app

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/fiberline/backoffice/domain/billing"
	"github.com/fiberline/backoffice/domain/intake"
	"github.com/fiberline/backoffice/ports"
)

// IntakeService runs the client intake flow: the identity deduplication
// gate, adopting an existing account, and creating a new client with an
// installation and optional advance payment.
type IntakeService struct {
	accounts      ports.AccountStore
	installations ports.InstallationStore
	directory     ports.AccountDirectory
	billing       *BillingService
	clock         ports.Clock
	ids           ports.IDGenerator
	logger        zerolog.Logger

	identityLength int
	generation     atomic.Uint64
}

// NewIntakeService creates a new intake service. identityLength of zero
// uses the default.
func NewIntakeService(
	accounts ports.AccountStore,
	installations ports.InstallationStore,
	directory ports.AccountDirectory,
	billingSvc *BillingService,
	clock ports.Clock,
	ids ports.IDGenerator,
	identityLength int,
	logger zerolog.Logger,
) *IntakeService {
	if identityLength <= 0 {
		identityLength = intake.DefaultIdentityLength
	}
	return &IntakeService{
		accounts:       accounts,
		installations:  installations,
		directory:      directory,
		billing:        billingSvc,
		clock:          clock,
		ids:            ids,
		identityLength: identityLength,
		logger:         logger,
	}
}

// CheckResult is the outcome of an identity gate lookup.
type CheckResult struct {
	// Ready is false while the identifier is incomplete; no lookup was made.
	Ready bool
	// Stale is true when a newer lookup started before this one finished.
	// Stale results must be discarded, not shown to the operator.
	Stale    bool
	Decision intake.Decision
}

// CheckIdentity runs the deduplication gate for a (possibly partial)
// identity number. Incomplete identifiers short-circuit without a lookup.
// When lookups race, only the latest one counts.
func (s *IntakeService) CheckIdentity(ctx context.Context, identityNumber string) (CheckResult, error) {
	if !intake.IdentityReady(identityNumber, s.identityLength) {
		return CheckResult{}, nil
	}

	gen := s.generation.Add(1)

	summary, err := s.directory.FindByIdentity(ctx, identityNumber)
	if err != nil && !errors.Is(err, ports.ErrNotFound) {
		return CheckResult{}, err
	}

	result := CheckResult{Ready: true, Stale: s.generation.Load() != gen}
	if err == nil {
		result.Decision = intake.Decision{Existing: &summary}
	}
	return result, nil
}

// AdoptAccount returns the prefill for continuing intake against the
// account already registered under the identity number. Adoption never
// creates a second account for the same person.
func (s *IntakeService) AdoptAccount(ctx context.Context, identityNumber string) (intake.Prefill, error) {
	summary, err := s.directory.FindByIdentity(ctx, identityNumber)
	if err != nil {
		return intake.Prefill{}, err
	}
	return intake.PrefillFrom(summary), nil
}

// CreateClientInput carries a full intake submission.
type CreateClientInput struct {
	// ExistingAccountID, when set, attaches the new installation to an
	// adopted account instead of creating one.
	ExistingAccountID string

	Name           string
	IdentityNumber string
	Phone          string
	Address        string

	PlanID              string
	InstallationAddress string
	AnchorDate          time.Time
	AdvancePayment      bool

	// Instrument for the advance collection; required when AdvancePayment
	// is set.
	Method       string
	Reference    string
	TransferName string
}

// CreateClientResult is the outcome of a successful intake.
type CreateClientResult struct {
	Account        ports.Account
	Installation   ports.Installation
	AdvanceReceipt *billing.Payment
	// Warning is set when the advance collection's discount clamped.
	Warning *billing.DiscountWarning
}

// CreateClient creates the account (or adopts an existing one), its
// installation, and, for advance-payment intakes, collects the first cycle
// immediately and drafts the follow-up cycle.
//
// The persistence layer's unique constraint on the identity number is
// authoritative: a duplicate submission fails with ports.ErrDuplicate even
// if the gate was bypassed.
func (s *IntakeService) CreateClient(ctx context.Context, in CreateClientInput) (CreateClientResult, error) {
	now := s.clock.Now()
	var account ports.Account

	if in.ExistingAccountID != "" {
		var err error
		account, err = s.accounts.Get(ctx, in.ExistingAccountID)
		if err != nil {
			return CreateClientResult{}, err
		}
	} else {
		account = ports.Account{
			ID:             s.ids.New(),
			Name:           in.Name,
			IdentityNumber: in.IdentityNumber,
			Phone:          in.Phone,
			Address:        in.Address,
			Status:         "active",
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := s.accounts.Create(ctx, account); err != nil {
			return CreateClientResult{}, err
		}
	}

	inst := ports.Installation{
		ID:             s.ids.New(),
		AccountID:      account.ID,
		PlanID:         in.PlanID,
		Address:        in.InstallationAddress,
		AnchorDate:     in.AnchorDate,
		AdvancePayment: in.AdvancePayment,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.installations.Create(ctx, inst); err != nil {
		return CreateClientResult{}, err
	}

	result := CreateClientResult{Account: account, Installation: inst}

	if in.AdvancePayment {
		receipt, warn, err := s.advanceCollect(ctx, inst, in)
		if err != nil {
			return CreateClientResult{}, err
		}
		result.AdvanceReceipt = &receipt
		result.Warning = warn
	}

	s.logger.Info().
		Str("account_id", account.ID).
		Str("installation_id", inst.ID).
		Bool("advance_payment", in.AdvancePayment).
		Msg("client created")

	return result, nil
}

// advanceCollect settles the first cycle at intake time and drafts the
// next one so the ledger already shows the upcoming due date.
func (s *IntakeService) advanceCollect(ctx context.Context, inst ports.Installation, in CreateClientInput) (billing.Payment, *billing.DiscountWarning, error) {
	paymentDate := s.clock.Now()
	receipt, warn, err := s.billing.CreatePayment(ctx, CreatePaymentInput{
		InstallationID: inst.ID,
		PaymentDate:    &paymentDate,
		Strategy:       billing.StrategyAuto,
		Method:         in.Method,
		Reference:      in.Reference,
		TransferName:   in.TransferName,
		AdvancePayment: true,
	})
	if err != nil {
		return billing.Payment{}, nil, err
	}

	// Follow-up draft for the next cycle; failure here is not fatal to the
	// intake, the draft can be created later from the payments screen.
	if _, _, err := s.billing.CreatePayment(ctx, CreatePaymentInput{
		InstallationID: inst.ID,
		Strategy:       billing.StrategyAuto,
	}); err != nil {
		s.logger.Warn().Err(err).Str("installation_id", inst.ID).Msg("advance follow-up draft failed")
	} else {
		s.billing.metrics.AdvanceFollowUps.Inc()
	}

	return receipt, warn, nil
}
