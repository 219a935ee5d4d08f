package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/fiberline/backoffice/adapters/clock"
	"github.com/fiberline/backoffice/adapters/idgen"
	"github.com/fiberline/backoffice/adapters/memory"
	"github.com/fiberline/backoffice/adapters/metrics"
	"github.com/fiberline/backoffice/domain/billing"
	"github.com/fiberline/backoffice/domain/commitment"
	"github.com/fiberline/backoffice/ports"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

type billingFixture struct {
	svc      *BillingService
	payments *memory.PaymentStore
	clock    *clock.Fake
}

// newBillingFixture wires a billing service over in-memory stores with one
// installation ("inst-1", plan at 35.00/month, anchored 2025-01-31).
func newBillingFixture(t *testing.T) *billingFixture {
	t.Helper()
	ctx := context.Background()

	accounts := memory.NewAccountStore()
	installations := memory.NewInstallationStore()
	plans := memory.NewPlanStore()
	payments := memory.NewPaymentStore()

	if err := accounts.Create(ctx, ports.Account{ID: "acc-1", Name: "Maria Lopez", IdentityNumber: "12345678", Status: "active"}); err != nil {
		t.Fatalf("seed account: %v", err)
	}
	if err := plans.Create(ctx, ports.Plan{ID: "plan-1", Name: "Basic", PriceMonthly: 35, Enabled: true}); err != nil {
		t.Fatalf("seed plan: %v", err)
	}
	if err := installations.Create(ctx, ports.Installation{
		ID: "inst-1", AccountID: "acc-1", PlanID: "plan-1",
		AnchorDate: date(2025, time.January, 31),
	}); err != nil {
		t.Fatalf("seed installation: %v", err)
	}
	if err := installations.Create(ctx, ports.Installation{
		ID: "inst-unanchored", AccountID: "acc-1", PlanID: "plan-1",
	}); err != nil {
		t.Fatalf("seed installation: %v", err)
	}

	fake := clock.NewFake(date(2025, time.January, 15))
	svc := NewBillingService(
		payments, installations, plans,
		fake, idgen.NewSequential("pay-"), nil,
		metrics.NewWithRegistry(prometheus.NewRegistry()),
		zerolog.Nop(),
	)
	return &billingFixture{svc: svc, payments: payments, clock: fake}
}

func TestNextDueDate_AnchorThenClampedSequence(t *testing.T) {
	f := newBillingFixture(t)
	ctx := context.Background()

	// Zero settled cycles: the anchor itself.
	due, err := f.svc.NextDueDate(ctx, "inst-1")
	if err != nil {
		t.Fatalf("NextDueDate: %v", err)
	}
	if !due.Equal(date(2025, time.January, 31)) {
		t.Errorf("due = %v, want anchor 2025-01-31", due)
	}

	// Settle the first cycle: February clamps to the 28th.
	paid := date(2025, time.January, 30)
	if _, _, err := f.svc.CreatePayment(ctx, CreatePaymentInput{
		InstallationID: "inst-1",
		PaymentDate:    &paid,
		Method:         "cash",
		Reference:      "R-1",
	}); err != nil {
		t.Fatalf("CreatePayment: %v", err)
	}

	due, err = f.svc.NextDueDate(ctx, "inst-1")
	if err != nil {
		t.Fatalf("NextDueDate: %v", err)
	}
	if !due.Equal(date(2025, time.February, 28)) {
		t.Errorf("due = %v, want clamped 2025-02-28", due)
	}
}

func TestNextDueDate_MissingAnchor(t *testing.T) {
	f := newBillingFixture(t)

	_, err := f.svc.NextDueDate(context.Background(), "inst-unanchored")
	if !errors.Is(err, billing.ErrMissingAnchor) {
		t.Errorf("got %v, want ErrMissingAnchor", err)
	}
}

func TestCreatePayment_FreezesPlanPrice(t *testing.T) {
	f := newBillingFixture(t)
	ctx := context.Background()

	paid := date(2025, time.January, 20)
	p, warn, err := f.svc.CreatePayment(ctx, CreatePaymentInput{
		InstallationID: "inst-1",
		PaymentDate:    &paid,
		Reconnection:   true,
		Discount:       5,
		Method:         "transfer",
		Reference:      "TX-9",
		TransferName:   "M Lopez",
	})
	if err != nil {
		t.Fatalf("CreatePayment: %v", err)
	}
	if warn != nil {
		t.Fatalf("unexpected warning: %v", warn)
	}

	if p.BaseAmount != 35 {
		t.Errorf("base = %.2f, want frozen plan price 35.00", p.BaseAmount)
	}
	// 35 + 10 reconnection - 5 discount.
	if p.Amount != 40 {
		t.Errorf("amount = %.2f, want 40.00", p.Amount)
	}
	if p.Status != billing.StatusPaymentDaily {
		t.Errorf("status = %s, want PAYMENT_DAILY (paid before due date)", p.Status)
	}
}

func TestCreatePayment_DiscountClampWarns(t *testing.T) {
	f := newBillingFixture(t)
	ctx := context.Background()

	paid := date(2025, time.January, 20)
	p, warn, err := f.svc.CreatePayment(ctx, CreatePaymentInput{
		InstallationID: "inst-1",
		PaymentDate:    &paid,
		Discount:       50,
		Method:         "cash",
		Reference:      "R-1",
	})
	if err != nil {
		t.Fatalf("CreatePayment: %v", err)
	}
	if warn == nil {
		t.Fatal("expected a discount warning")
	}
	if p.Amount != 0 {
		t.Errorf("amount = %.2f, want clamped 0.00", p.Amount)
	}
}

func TestCreatePayment_TerminalRequiresInstrument(t *testing.T) {
	f := newBillingFixture(t)
	ctx := context.Background()

	paid := date(2025, time.January, 20)
	_, _, err := f.svc.CreatePayment(ctx, CreatePaymentInput{
		InstallationID: "inst-1",
		PaymentDate:    &paid,
	})
	if !billing.IsValidation(err) {
		t.Errorf("missing method/reference: got %v, want ValidationError", err)
	}
}

func TestCreatePayment_ManualStrategyKeepsStatus(t *testing.T) {
	f := newBillingFixture(t)
	ctx := context.Background()

	// Operator insists this late collection counts as on-time.
	paid := date(2025, time.February, 10)
	f.clock.Set(date(2025, time.February, 10))
	p, _, err := f.svc.CreatePayment(ctx, CreatePaymentInput{
		InstallationID: "inst-1",
		PaymentDate:    &paid,
		Strategy:       billing.StrategyManual,
		ManualStatus:   billing.StatusPaymentDaily,
		Method:         "cash",
		Reference:      "R-2",
	})
	if err != nil {
		t.Fatalf("CreatePayment: %v", err)
	}
	if p.Status != billing.StatusPaymentDaily {
		t.Errorf("status = %s, want the operator's explicit PAYMENT_DAILY", p.Status)
	}
}

func TestCreatePayment_RejectedWhileCommitmentOpen(t *testing.T) {
	f := newBillingFixture(t)
	ctx := context.Background()

	if _, _, err := f.svc.OpenPostponement(ctx, OpenPostponementInput{
		InstallationID: "inst-1",
		EngagementDate: date(2025, time.February, 10),
	}); err != nil {
		t.Fatalf("OpenPostponement: %v", err)
	}

	paid := date(2025, time.January, 20)
	_, _, err := f.svc.CreatePayment(ctx, CreatePaymentInput{
		InstallationID: "inst-1",
		PaymentDate:    &paid,
		Method:         "cash",
		Reference:      "R-1",
	})
	if !commitment.IsOpen(err) {
		t.Fatalf("got %v, want OpenError", err)
	}
}

func TestOpenPostponement_SecondRejected(t *testing.T) {
	f := newBillingFixture(t)
	ctx := context.Background()

	if _, _, err := f.svc.OpenPostponement(ctx, OpenPostponementInput{
		InstallationID: "inst-1",
		EngagementDate: date(2025, time.February, 10),
	}); err != nil {
		t.Fatalf("first OpenPostponement: %v", err)
	}

	_, _, err := f.svc.OpenPostponement(ctx, OpenPostponementInput{
		InstallationID: "inst-1",
		EngagementDate: date(2025, time.February, 20),
	})
	if !commitment.IsOpen(err) {
		t.Errorf("got %v, want OpenError", err)
	}
}

func TestRegularize_LateAgainstOriginalDueDate(t *testing.T) {
	f := newBillingFixture(t)
	ctx := context.Background()

	// Cycle due Jan 31, promise to pay by Feb 20.
	f.clock.Set(date(2025, time.February, 1))
	opened, _, err := f.svc.OpenPostponement(ctx, OpenPostponementInput{
		InstallationID: "inst-1",
		EngagementDate: date(2025, time.February, 20),
	})
	if err != nil {
		t.Fatalf("OpenPostponement: %v", err)
	}

	// Pays Feb 18: within the promise, but after the original due date.
	got, err := f.svc.Regularize(ctx, opened.ID, commitment.RegularizeInput{
		PaymentDate: date(2025, time.February, 18),
		Method:      "transfer",
		Reference:   "TX-5",
	})
	if err != nil {
		t.Fatalf("Regularize: %v", err)
	}
	if got.Status != billing.StatusLatePayment {
		t.Errorf("status = %s, want LATE_PAYMENT measured against the original due date", got.Status)
	}

	// Regularizing twice never re-mutates financial fields.
	_, err = f.svc.Regularize(ctx, opened.ID, commitment.RegularizeInput{
		PaymentDate: date(2025, time.February, 19),
		Method:      "cash",
		Reference:   "R-0",
	})
	if !errors.Is(err, commitment.ErrAlreadyRegularized) {
		t.Errorf("second regularize: got %v, want ErrAlreadyRegularized", err)
	}
}

func TestLapseOverdue(t *testing.T) {
	f := newBillingFixture(t)
	ctx := context.Background()

	opened, _, err := f.svc.OpenPostponement(ctx, OpenPostponementInput{
		InstallationID: "inst-1",
		EngagementDate: date(2025, time.February, 10),
	})
	if err != nil {
		t.Fatalf("OpenPostponement: %v", err)
	}

	// On the engagement date itself the promise still holds.
	f.clock.Set(date(2025, time.February, 10))
	n, err := f.svc.LapseOverdue(ctx)
	if err != nil {
		t.Fatalf("LapseOverdue: %v", err)
	}
	if n != 0 {
		t.Errorf("lapsed %d on the engagement day, want 0", n)
	}

	// The day after, it lapses into LATE_PAYMENT with no payment date.
	f.clock.AdvanceDays(1)
	n, err = f.svc.LapseOverdue(ctx)
	if err != nil {
		t.Fatalf("LapseOverdue: %v", err)
	}
	if n != 1 {
		t.Fatalf("lapsed %d, want 1", n)
	}

	got, err := f.payments.Get(ctx, opened.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != billing.StatusLatePayment {
		t.Errorf("status = %s, want LATE_PAYMENT", got.Status)
	}
	if got.PaymentDate != nil {
		t.Error("lapsing must not fabricate a payment date")
	}
	if commitment.StateOf(got) != commitment.StateLapsed {
		t.Errorf("state = %s, want lapsed", commitment.StateOf(got))
	}
}

func TestVoidPayment(t *testing.T) {
	f := newBillingFixture(t)
	ctx := context.Background()

	// Pending draft can be voided and stops settling its cycle.
	p, _, err := f.svc.CreatePayment(ctx, CreatePaymentInput{InstallationID: "inst-1"})
	if err != nil {
		t.Fatalf("CreatePayment: %v", err)
	}
	voided, err := f.svc.VoidPayment(ctx, p.ID)
	if err != nil {
		t.Fatalf("VoidPayment: %v", err)
	}
	if voided.Status != billing.StatusVoided {
		t.Errorf("status = %s, want VOIDED", voided.Status)
	}

	due, err := f.svc.NextDueDate(ctx, "inst-1")
	if err != nil {
		t.Fatalf("NextDueDate: %v", err)
	}
	if !due.Equal(date(2025, time.January, 31)) {
		t.Errorf("due = %v, want anchor: a voided payment settles nothing", due)
	}

	// Collected payments cannot be voided.
	paid := date(2025, time.January, 20)
	collected, _, err := f.svc.CreatePayment(ctx, CreatePaymentInput{
		InstallationID: "inst-1",
		PaymentDate:    &paid,
		Method:         "cash",
		Reference:      "R-1",
	})
	if err != nil {
		t.Fatalf("CreatePayment: %v", err)
	}
	if _, err := f.svc.VoidPayment(ctx, collected.ID); !billing.IsValidation(err) {
		t.Errorf("voiding a collected payment: got %v, want ValidationError", err)
	}
}

func TestUpdatePayment_FrozenAfterCollection(t *testing.T) {
	f := newBillingFixture(t)
	ctx := context.Background()

	paid := date(2025, time.January, 20)
	p, _, err := f.svc.CreatePayment(ctx, CreatePaymentInput{
		InstallationID: "inst-1",
		PaymentDate:    &paid,
		Method:         "cash",
		Reference:      "R-1",
	})
	if err != nil {
		t.Fatalf("CreatePayment: %v", err)
	}

	discount := 5.0
	_, _, err = f.svc.UpdatePayment(ctx, UpdatePaymentInput{ID: p.ID, Discount: &discount})
	if !billing.IsValidation(err) {
		t.Errorf("editing amount of a collected payment: got %v, want ValidationError", err)
	}

	// Instrument metadata stays editable.
	name := "M Lopez"
	updated, _, err := f.svc.UpdatePayment(ctx, UpdatePaymentInput{ID: p.ID, TransferName: &name})
	if err != nil {
		t.Fatalf("UpdatePayment: %v", err)
	}
	if updated.TransferName != "M Lopez" {
		t.Errorf("transfer name = %q", updated.TransferName)
	}
	if updated.Amount != p.Amount {
		t.Errorf("amount changed from %.2f to %.2f", p.Amount, updated.Amount)
	}
}

func TestUpdatePayment_CollectPendingReclassifies(t *testing.T) {
	f := newBillingFixture(t)
	ctx := context.Background()

	p, _, err := f.svc.CreatePayment(ctx, CreatePaymentInput{InstallationID: "inst-1"})
	if err != nil {
		t.Fatalf("CreatePayment: %v", err)
	}
	if p.Status != billing.StatusPending {
		t.Fatalf("draft status = %s, want PENDING", p.Status)
	}

	paid := date(2025, time.February, 3)
	method, ref := "cash", "R-7"
	f.clock.Set(paid)
	updated, _, err := f.svc.UpdatePayment(ctx, UpdatePaymentInput{
		ID:          p.ID,
		PaymentDate: &paid,
		Method:      &method,
		Reference:   &ref,
	})
	if err != nil {
		t.Fatalf("UpdatePayment: %v", err)
	}
	if updated.Status != billing.StatusLatePayment {
		t.Errorf("status = %s, want LATE_PAYMENT (paid after Jan 31 due date)", updated.Status)
	}
}
