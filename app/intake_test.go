package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/fiberline/backoffice/adapters/clock"
	"github.com/fiberline/backoffice/adapters/idgen"
	"github.com/fiberline/backoffice/adapters/memory"
	"github.com/fiberline/backoffice/adapters/metrics"
	"github.com/fiberline/backoffice/domain/billing"
	"github.com/fiberline/backoffice/domain/intake"
	"github.com/fiberline/backoffice/ports"
)

type intakeFixture struct {
	svc      *IntakeService
	accounts *memory.AccountStore
	payments *memory.PaymentStore
	clock    *clock.Fake
}

func newIntakeFixture(t *testing.T) *intakeFixture {
	t.Helper()
	ctx := context.Background()

	accounts := memory.NewAccountStore()
	installations := memory.NewInstallationStore()
	plans := memory.NewPlanStore()
	payments := memory.NewPaymentStore()

	if err := plans.Create(ctx, ports.Plan{ID: "plan-1", Name: "Basic", PriceMonthly: 35, Enabled: true}); err != nil {
		t.Fatalf("seed plan: %v", err)
	}
	if err := accounts.Create(ctx, ports.Account{
		ID: "acc-existing", Name: "Maria Lopez", IdentityNumber: "12345678", Phone: "555-0101", Status: "active",
	}); err != nil {
		t.Fatalf("seed account: %v", err)
	}

	fake := clock.NewFake(date(2025, time.March, 1))
	ids := idgen.NewSequential("id-")
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	billingSvc := NewBillingService(payments, installations, plans, fake, ids, nil, m, zerolog.Nop())

	svc := NewIntakeService(
		accounts, installations,
		NewLocalDirectory(accounts),
		billingSvc, fake, ids, 0, zerolog.Nop(),
	)
	return &intakeFixture{svc: svc, accounts: accounts, payments: payments, clock: fake}
}

func TestCheckIdentity_IncompleteShortCircuits(t *testing.T) {
	f := newIntakeFixture(t)

	for _, id := range []string{"", "1234", "1234567", "123456789", "1234567a"} {
		got, err := f.svc.CheckIdentity(context.Background(), id)
		if err != nil {
			t.Fatalf("CheckIdentity(%q): %v", id, err)
		}
		if got.Ready {
			t.Errorf("CheckIdentity(%q).Ready = true, want false", id)
		}
	}
}

// gatedDirectory blocks its first lookup until released so a later
// lookup can overtake it.
type gatedDirectory struct {
	inner   ports.AccountDirectory
	mu      sync.Mutex
	calls   int
	release chan struct{}
}

func (d *gatedDirectory) FindByIdentity(ctx context.Context, identityNumber string) (intake.AccountSummary, error) {
	d.mu.Lock()
	first := d.calls == 0
	d.calls++
	d.mu.Unlock()
	if first {
		<-d.release
	}
	return d.inner.FindByIdentity(ctx, identityNumber)
}

func (d *gatedDirectory) inFlight() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

func TestCheckIdentity_SupersededLookupIsStale(t *testing.T) {
	ctx := context.Background()

	accounts := memory.NewAccountStore()
	if err := accounts.Create(ctx, ports.Account{
		ID: "acc-1", Name: "Maria Lopez", IdentityNumber: "12345678", Status: "active",
	}); err != nil {
		t.Fatalf("seed account: %v", err)
	}
	gate := &gatedDirectory{inner: NewLocalDirectory(accounts), release: make(chan struct{})}
	svc := NewIntakeService(
		accounts, memory.NewInstallationStore(),
		gate, nil,
		clock.NewFake(date(2025, time.March, 1)), idgen.NewSequential("id-"), 0, zerolog.Nop(),
	)

	type outcome struct {
		result CheckResult
		err    error
	}
	firstCh := make(chan outcome, 1)
	go func() {
		res, err := svc.CheckIdentity(ctx, "12345678")
		firstCh <- outcome{res, err}
	}()

	// Wait for the first lookup to be blocked inside the directory.
	deadline := time.Now().Add(2 * time.Second)
	for gate.inFlight() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("first lookup never reached the directory")
		}
		time.Sleep(time.Millisecond)
	}

	second, err := svc.CheckIdentity(ctx, "12345678")
	if err != nil {
		t.Fatalf("second CheckIdentity: %v", err)
	}
	if second.Stale {
		t.Error("latest lookup flagged stale")
	}
	if second.Decision.Existing == nil {
		t.Error("latest lookup lost the match")
	}

	close(gate.release)
	first := <-firstCh
	if first.err != nil {
		t.Fatalf("first CheckIdentity: %v", first.err)
	}
	if !first.result.Stale {
		t.Error("superseded lookup not flagged stale; its result must be discarded")
	}
}

func TestCheckIdentity_FindsExisting(t *testing.T) {
	f := newIntakeFixture(t)

	got, err := f.svc.CheckIdentity(context.Background(), "12345678")
	if err != nil {
		t.Fatalf("CheckIdentity: %v", err)
	}
	if !got.Ready {
		t.Fatal("Ready = false for a complete identifier")
	}
	if got.Decision.ProceedNew() {
		t.Fatal("gate missed the registered identity")
	}
	if got.Decision.Existing.Name != "Maria Lopez" {
		t.Errorf("existing = %+v", got.Decision.Existing)
	}

	fresh, err := f.svc.CheckIdentity(context.Background(), "87654321")
	if err != nil {
		t.Fatalf("CheckIdentity: %v", err)
	}
	if !fresh.Decision.ProceedNew() {
		t.Error("unregistered identity should proceed as new")
	}
}

func TestAdoptAccount_Prefill(t *testing.T) {
	f := newIntakeFixture(t)

	prefill, err := f.svc.AdoptAccount(context.Background(), "12345678")
	if err != nil {
		t.Fatalf("AdoptAccount: %v", err)
	}
	if prefill.AccountID != "acc-existing" || prefill.Name != "Maria Lopez" {
		t.Errorf("prefill = %+v", prefill)
	}
}

func TestCreateClient_New(t *testing.T) {
	f := newIntakeFixture(t)
	ctx := context.Background()

	result, err := f.svc.CreateClient(ctx, CreateClientInput{
		Name:           "Jon Perez",
		IdentityNumber: "87654321",
		Phone:          "555-0102",
		PlanID:         "plan-1",
		AnchorDate:     date(2025, time.March, 31),
	})
	if err != nil {
		t.Fatalf("CreateClient: %v", err)
	}
	if result.Account.IdentityNumber != "87654321" {
		t.Errorf("account = %+v", result.Account)
	}
	if result.Installation.AccountID != result.Account.ID {
		t.Error("installation not attached to the new account")
	}
	if result.AdvanceReceipt != nil {
		t.Error("no advance payment requested, receipt should be nil")
	}
}

func TestCreateClient_DuplicateIdentityRejected(t *testing.T) {
	f := newIntakeFixture(t)

	_, err := f.svc.CreateClient(context.Background(), CreateClientInput{
		Name:           "Impostor",
		IdentityNumber: "12345678",
		PlanID:         "plan-1",
		AnchorDate:     date(2025, time.March, 31),
	})
	if !errors.Is(err, ports.ErrDuplicate) {
		t.Errorf("got %v, want ErrDuplicate from the store constraint", err)
	}
}

func TestCreateClient_AdoptExisting(t *testing.T) {
	f := newIntakeFixture(t)
	ctx := context.Background()

	result, err := f.svc.CreateClient(ctx, CreateClientInput{
		ExistingAccountID: "acc-existing",
		PlanID:            "plan-1",
		AnchorDate:        date(2025, time.April, 15),
	})
	if err != nil {
		t.Fatalf("CreateClient: %v", err)
	}
	if result.Account.ID != "acc-existing" {
		t.Errorf("account = %s, want the adopted acc-existing", result.Account.ID)
	}

	count, _ := f.accounts.Count(ctx)
	if count != 1 {
		t.Errorf("account count = %d, adoption must not create a second account", count)
	}
}

func TestCreateClient_AdvancePayment(t *testing.T) {
	f := newIntakeFixture(t)
	ctx := context.Background()

	result, err := f.svc.CreateClient(ctx, CreateClientInput{
		Name:           "Jon Perez",
		IdentityNumber: "87654321",
		PlanID:         "plan-1",
		AnchorDate:     date(2025, time.March, 15), // today Mar 1: paid early
		AdvancePayment: true,
		Method:         "cash",
		Reference:      "R-100",
	})
	if err != nil {
		t.Fatalf("CreateClient: %v", err)
	}
	if result.AdvanceReceipt == nil {
		t.Fatal("advance receipt missing")
	}
	if result.AdvanceReceipt.Status != billing.StatusPaymentDaily {
		t.Errorf("receipt status = %s, want PAYMENT_DAILY", result.AdvanceReceipt.Status)
	}
	if !result.AdvanceReceipt.AdvancePayment {
		t.Error("receipt not flagged as advance payment")
	}

	// The flag must be part of the create write itself, not a later
	// update: the STORED record carries it.
	stored, err := f.payments.Get(ctx, result.AdvanceReceipt.ID)
	if err != nil {
		t.Fatalf("get receipt: %v", err)
	}
	if !stored.AdvancePayment {
		t.Error("stored receipt not flagged as advance payment")
	}

	// The first cycle is settled and the follow-up draft targets the next.
	list, err := f.payments.ListByInstallation(ctx, result.Installation.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("payments = %d, want settled cycle + follow-up draft", len(list))
	}
	followUp := list[1]
	if followUp.Status != billing.StatusPending {
		t.Errorf("follow-up status = %s, want PENDING", followUp.Status)
	}
	if !followUp.DueDate.Equal(date(2025, time.April, 15)) {
		t.Errorf("follow-up due = %v, want 2025-04-15", followUp.DueDate)
	}
}
