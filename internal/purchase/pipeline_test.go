package purchase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"raplifeBack/internal/billing"
	"raplifeBack/internal/models"
	"raplifeBack/internal/purchase/fsm"
)

type nopLogger struct{}

func (nopLogger) Infof(format string, args ...interface{})  {}
func (nopLogger) Errorf(format string, args ...interface{}) {}

type ledgerCall struct {
	playerID int
	item     models.PurchaseItem
	outcome  billing.Outcome
	now      time.Time
}

type fakeLedger struct {
	mu      sync.Mutex
	calls   []ledgerCall
	applied bool
	err     error
}

func newFakeLedger() *fakeLedger { return &fakeLedger{applied: true} }

func (l *fakeLedger) ApplyPurchase(_ context.Context, playerID int, item models.PurchaseItem, outcome billing.Outcome, _ string, now time.Time) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, ledgerCall{playerID: playerID, item: item, outcome: outcome, now: now})
	return l.applied, l.err
}

func (l *fakeLedger) callCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.calls)
}

type fakeNotifier struct {
	mu       sync.Mutex
	resolved []Attempt
}

func (n *fakeNotifier) AttemptResolved(_ int, attempt Attempt) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.resolved = append(n.resolved, attempt)
}

func cashItem() models.PurchaseItem {
	return models.PurchaseItem{
		ID:         "cash_50000",
		Kind:       models.PurchaseKindCash,
		Title:      "Stack of Cash",
		Price:      "$4.99",
		CashAmount: 50000,
	}
}

func subItem() models.PurchaseItem {
	return models.PurchaseItem{
		ID:           "sub_platinum_30d",
		Kind:         models.PurchaseKindSubscription,
		Title:        "Platinum",
		Price:        "$9.99",
		Tier:         models.TierPlatinum,
		DurationDays: 30,
	}
}

func newTestManager(t *testing.T, adapter billing.Adapter, ledger Ledger, notifier Notifier) *Manager {
	t.Helper()
	m := NewManager(adapter, ledger, notifier, nopLogger{})
	m.SetClock(func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) })
	return m
}

func TestCashPurchaseHappyPath(t *testing.T) {
	sim := billing.NewSimulator(1, nil)
	ledger := newFakeLedger()
	notifier := &fakeNotifier{}
	p := newTestManager(t, sim, ledger, notifier).Pipeline(7)

	if _, err := p.Select(cashItem()); err != nil {
		t.Fatalf("select: %v", err)
	}
	if _, err := p.Confirm(); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	att, err := p.Process(context.Background(), "token-7")
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if att.Status != fsm.StatusSucceeded {
		t.Fatalf("status = %s, want %s", att.Status, fsm.StatusSucceeded)
	}
	if att.TransactionID == "" {
		t.Fatal("expected a transaction id on the succeeded attempt")
	}
	if got := ledger.callCount(); got != 1 {
		t.Fatalf("ledger applied %d times, want 1", got)
	}
	call := ledger.calls[0]
	if call.playerID != 7 || call.item.CashAmount != 50000 {
		t.Fatalf("unexpected ledger call: %+v", call)
	}
	if len(notifier.resolved) != 1 || notifier.resolved[0].Status != fsm.StatusSucceeded {
		t.Fatalf("notifier got %+v", notifier.resolved)
	}
}

func TestSubscriptionPurchaseSettlesOnce(t *testing.T) {
	sim := billing.NewSimulator(2, nil)
	ledger := newFakeLedger()
	p := newTestManager(t, sim, ledger, &fakeNotifier{}).Pipeline(3)

	mustSelectConfirm(t, p, subItem())
	att, err := p.Process(context.Background(), "token-3")
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if att.Status != fsm.StatusSucceeded {
		t.Fatalf("status = %s", att.Status)
	}
	if got := ledger.callCount(); got != 1 {
		t.Fatalf("ledger applied %d times, want 1", got)
	}
	call := ledger.calls[0]
	if call.item.Tier != models.TierPlatinum {
		t.Fatalf("tier = %s", call.item.Tier)
	}
	if want := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC); !call.now.Equal(want) {
		t.Fatalf("settlement time = %s, want %s", call.now, want)
	}
	if want := time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC); !call.item.SubscriptionExpiry(call.now).Equal(want) {
		t.Fatalf("expiry = %s, want %s", call.item.SubscriptionExpiry(call.now), want)
	}
}

func TestDeclineLeavesStateUntouched(t *testing.T) {
	sim := billing.NewSimulator(3, nil)
	sim.ScriptDecline("cash_50000", models.FailureCodeNetwork)
	ledger := newFakeLedger()
	notifier := &fakeNotifier{}
	p := newTestManager(t, sim, ledger, notifier).Pipeline(5)

	mustSelectConfirm(t, p, cashItem())
	att, err := p.Process(context.Background(), "token-5")
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if att.Status != fsm.StatusFailed {
		t.Fatalf("status = %s, want %s", att.Status, fsm.StatusFailed)
	}
	if att.ErrorMessage == "" {
		t.Fatal("failed attempt must carry an error message")
	}
	if got := ledger.callCount(); got != 0 {
		t.Fatalf("ledger applied %d times on a declined purchase", got)
	}
	if len(notifier.resolved) != 1 || notifier.resolved[0].Status != fsm.StatusFailed {
		t.Fatalf("notifier got %+v", notifier.resolved)
	}
}

func TestAlreadySettledTransactionStillSucceeds(t *testing.T) {
	sim := billing.NewSimulator(4, nil)
	ledger := newFakeLedger()
	ledger.applied = false
	p := newTestManager(t, sim, ledger, &fakeNotifier{}).Pipeline(9)

	mustSelectConfirm(t, p, cashItem())
	att, err := p.Process(context.Background(), "token-9")
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if att.Status != fsm.StatusSucceeded {
		t.Fatalf("status = %s", att.Status)
	}
}

func TestLedgerFailureFailsTheAttempt(t *testing.T) {
	sim := billing.NewSimulator(5, nil)
	ledger := newFakeLedger()
	ledger.err = errors.New("deadlock found when trying to get lock")
	p := newTestManager(t, sim, ledger, &fakeNotifier{}).Pipeline(11)

	mustSelectConfirm(t, p, cashItem())
	att, err := p.Process(context.Background(), "token-11")
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if att.Status != fsm.StatusFailed {
		t.Fatalf("status = %s", att.Status)
	}
	if !strings.Contains(att.ErrorMessage, "could not apply purchase") {
		t.Fatalf("error message = %q", att.ErrorMessage)
	}
}

// blockingAdapter parks Purchase until released so a test can observe the
// processing state from another goroutine.
type blockingAdapter struct {
	started chan struct{}
	release chan struct{}
}

func (a *blockingAdapter) Products(context.Context) ([]billing.Product, error) { return nil, nil }

func (a *blockingAdapter) Purchase(ctx context.Context, item models.PurchaseItem, _ string) (billing.Outcome, error) {
	close(a.started)
	select {
	case <-a.release:
	case <-ctx.Done():
		return billing.Outcome{}, ctx.Err()
	}
	return billing.Outcome{Approved: true, ProductID: item.ID, TransactionID: "blk-1"}, nil
}

func (a *blockingAdapter) Restore(context.Context, []models.SubscriptionRecord) ([]billing.RestoredPurchase, error) {
	return nil, nil
}

func TestSecondProcessWhileInFlightIsRejected(t *testing.T) {
	adapter := &blockingAdapter{started: make(chan struct{}), release: make(chan struct{})}
	ledger := newFakeLedger()
	p := newTestManager(t, adapter, ledger, &fakeNotifier{}).Pipeline(21)

	mustSelectConfirm(t, p, cashItem())

	done := make(chan Attempt, 1)
	go func() {
		att, _ := p.Process(context.Background(), "token-21")
		done <- att
	}()
	<-adapter.started

	if _, err := p.Process(context.Background(), "token-21"); !errors.Is(err, models.ErrDuplicateAttempt) {
		t.Fatalf("second process returned %v, want ErrDuplicateAttempt", err)
	}
	close(adapter.release)

	att := <-done
	if att.Status != fsm.StatusSucceeded {
		t.Fatalf("status = %s", att.Status)
	}
	if got := ledger.callCount(); got != 1 {
		t.Fatalf("ledger applied %d times, want 1", got)
	}
}

func TestAbandonBeforeProcessing(t *testing.T) {
	sim := billing.NewSimulator(6, nil)
	ledger := newFakeLedger()
	p := newTestManager(t, sim, ledger, &fakeNotifier{}).Pipeline(2)

	mustSelectConfirm(t, p, cashItem())
	att, err := p.Abandon()
	if err != nil {
		t.Fatalf("abandon: %v", err)
	}
	if att.Status != fsm.StatusIdle {
		t.Fatalf("status = %s", att.Status)
	}
	if got := ledger.callCount(); got != 0 {
		t.Fatalf("abandon touched the ledger %d times", got)
	}
}

func TestProcessRequiresConfirmation(t *testing.T) {
	p := newTestManager(t, billing.NewSimulator(7, nil), newFakeLedger(), &fakeNotifier{}).Pipeline(1)

	if _, err := p.Select(cashItem()); err != nil {
		t.Fatalf("select: %v", err)
	}
	if _, err := p.Process(context.Background(), "t"); !errors.Is(err, models.ErrInvalidTransition) {
		t.Fatalf("process from selected returned %v", err)
	}
}

func TestCloseIsIdempotentAndReopens(t *testing.T) {
	sim := billing.NewSimulator(8, nil)
	p := newTestManager(t, sim, newFakeLedger(), &fakeNotifier{}).Pipeline(4)

	mustSelectConfirm(t, p, cashItem())
	if _, err := p.Process(context.Background(), "token-4"); err != nil {
		t.Fatalf("process: %v", err)
	}
	if att := p.Close(); att.Status != fsm.StatusIdle {
		t.Fatalf("close: status = %s", att.Status)
	}
	if att := p.Close(); att.Status != fsm.StatusIdle {
		t.Fatalf("second close: status = %s", att.Status)
	}
	if _, err := p.Select(subItem()); err != nil {
		t.Fatalf("select after close: %v", err)
	}
}

func TestManagerReturnsSamePipelinePerPlayer(t *testing.T) {
	m := newTestManager(t, billing.NewSimulator(9, nil), newFakeLedger(), &fakeNotifier{})
	if m.Pipeline(1) != m.Pipeline(1) {
		t.Fatal("same player must get the same pipeline")
	}
	if m.Pipeline(1) == m.Pipeline(2) {
		t.Fatal("different players must not share a pipeline")
	}
}

func mustSelectConfirm(t *testing.T, p *Pipeline, item models.PurchaseItem) {
	t.Helper()
	if _, err := p.Select(item); err != nil {
		t.Fatalf("select: %v", err)
	}
	if _, err := p.Confirm(); err != nil {
		t.Fatalf("confirm: %v", err)
	}
}
