// Package purchase drives a single purchase attempt through
// selection, confirmation, billing and settlement. One attempt exists per
// player at a time; the state machine itself is the mutual-exclusion
// mechanism around the billing call.
package purchase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"raplifeBack/internal/billing"
	"raplifeBack/internal/models"
	"raplifeBack/internal/purchase/fsm"
)

// Logger provides minimal logging required by the purchase module.
type Logger interface {
	Infof(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// Ledger settles an approved purchase: exactly one game-state mutation (cash
// credit or subscription activation) plus exactly one appended record, both
// inside one storage transaction. It reports applied=false when the
// transaction id was already settled, in which case nothing was mutated.
type Ledger interface {
	ApplyPurchase(ctx context.Context, playerID int, item models.PurchaseItem, outcome billing.Outcome, purchaseToken string, now time.Time) (applied bool, err error)
}

// Notifier receives terminal attempt states after settlement has committed.
type Notifier interface {
	AttemptResolved(playerID int, attempt Attempt)
}

// Attempt is the ephemeral record of one transaction in flight.
type Attempt struct {
	ID            string             `json:"id,omitempty"`
	Item          models.PurchaseItem `json:"item,omitempty"`
	Status        string             `json:"status"`
	ErrorMessage  string             `json:"error_message,omitempty"`
	TransactionID string             `json:"transaction_id,omitempty"`
	Receipt       string             `json:"-"`
	StartedAt     *time.Time         `json:"started_at,omitempty"`
}

// Pipeline owns the attempt of one player.
type Pipeline struct {
	playerID int
	adapter  billing.Adapter
	ledger   Ledger
	notifier Notifier
	logger   Logger
	now      func() time.Time

	mu      sync.Mutex
	attempt Attempt
}

func newPipeline(playerID int, adapter billing.Adapter, ledger Ledger, notifier Notifier, logger Logger, now func() time.Time) *Pipeline {
	return &Pipeline{
		playerID: playerID,
		adapter:  adapter,
		ledger:   ledger,
		notifier: notifier,
		logger:   logger,
		now:      now,
		attempt:  Attempt{Status: fsm.StatusIdle},
	}
}

// Attempt returns a snapshot of the current attempt.
func (p *Pipeline) Attempt() Attempt {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.attempt
}

// Select starts a new attempt for the given catalog item. Allowed from idle
// or a terminal state; a prior terminal attempt is cleared first. No game
// state is touched.
func (p *Pipeline) Select(item models.PurchaseItem) (Attempt, error) {
	if err := item.Validate(); err != nil {
		return p.Attempt(), err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if fsm.IsTerminal(p.attempt.Status) {
		p.attempt = Attempt{Status: fsm.StatusIdle}
	}
	if !fsm.CanTransition(p.attempt.Status, fsm.StatusSelected) {
		return p.attempt, fmt.Errorf("%w: %s -> %s", models.ErrInvalidTransition, p.attempt.Status, fsm.StatusSelected)
	}
	started := p.now()
	p.attempt = Attempt{
		ID:        uuid.NewString(),
		Item:      item,
		Status:    fsm.StatusSelected,
		StartedAt: &started,
	}
	return p.attempt, nil
}

// Confirm is the pure UI gate between selection and billing. The player can
// still back out with no side effect.
func (p *Pipeline) Confirm() (Attempt, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !fsm.CanTransition(p.attempt.Status, fsm.StatusConfirmed) {
		return p.attempt, fmt.Errorf("%w: %s -> %s", models.ErrInvalidTransition, p.attempt.Status, fsm.StatusConfirmed)
	}
	p.attempt.Status = fsm.StatusConfirmed
	return p.attempt, nil
}

// Abandon cancels the attempt before billing starts. Once processing begins
// the attempt runs to a terminal state.
func (p *Pipeline) Abandon() (Attempt, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch p.attempt.Status {
	case fsm.StatusSelected, fsm.StatusConfirmed:
		p.attempt = Attempt{Status: fsm.StatusIdle}
		return p.attempt, nil
	case fsm.StatusIdle:
		return p.attempt, nil
	default:
		return p.attempt, fmt.Errorf("%w: cannot abandon %s attempt", models.ErrInvalidTransition, p.attempt.Status)
	}
}

// Process hands the attempt to the billing adapter and settles the outcome.
// Exactly one terminal state comes out of it. A second Process call while
// one is in flight returns ErrDuplicateAttempt and changes nothing: that is
// a UI double-click, not a failure.
func (p *Pipeline) Process(ctx context.Context, purchaseToken string) (Attempt, error) {
	p.mu.Lock()
	if p.attempt.Status == fsm.StatusProcessing {
		att := p.attempt
		p.mu.Unlock()
		p.logger.Infof("purchase: duplicate process call for player %d, attempt %s", p.playerID, att.ID)
		return att, models.ErrDuplicateAttempt
	}
	if !fsm.CanTransition(p.attempt.Status, fsm.StatusProcessing) {
		att := p.attempt
		p.mu.Unlock()
		return att, fmt.Errorf("%w: %s -> %s", models.ErrInvalidTransition, att.Status, fsm.StatusProcessing)
	}
	p.attempt.Status = fsm.StatusProcessing
	item := p.attempt.Item
	p.mu.Unlock()

	outcome, err := p.adapter.Purchase(ctx, item, purchaseToken)
	if err != nil {
		return p.resolveFailed(classifyAdapterError(err)), nil
	}
	if !outcome.Approved {
		return p.resolveFailed(outcome.Err()), nil
	}

	now := p.now()
	applied, err := p.ledger.ApplyPurchase(ctx, p.playerID, item, outcome, purchaseToken, now)
	if err != nil {
		// The settlement transaction rolled back: the provider approved but
		// nothing was credited, so the attempt fails whole.
		p.logger.Errorf("purchase: settle %s for player %d: %v", outcome.TransactionID, p.playerID, err)
		return p.resolveFailed(fmt.Errorf("%w: could not apply purchase", models.ErrUnknownFailure)), nil
	}
	if !applied {
		p.logger.Infof("purchase: transaction %s already settled for player %d", outcome.TransactionID, p.playerID)
	}

	p.mu.Lock()
	p.attempt.Status = fsm.StatusSucceeded
	p.attempt.TransactionID = outcome.TransactionID
	p.attempt.Receipt = outcome.Raw
	att := p.attempt
	p.mu.Unlock()

	if p.notifier != nil {
		p.notifier.AttemptResolved(p.playerID, att)
	}
	return att, nil
}

// Close clears a terminal attempt back to idle. Safe to call repeatedly.
func (p *Pipeline) Close() Attempt {
	p.mu.Lock()
	defer p.mu.Unlock()
	if fsm.IsTerminal(p.attempt.Status) {
		p.attempt = Attempt{Status: fsm.StatusIdle}
	}
	return p.attempt
}

func (p *Pipeline) resolveFailed(cause error) Attempt {
	p.mu.Lock()
	p.attempt.Status = fsm.StatusFailed
	p.attempt.ErrorMessage = cause.Error()
	att := p.attempt
	p.mu.Unlock()

	if p.notifier != nil {
		p.notifier.AttemptResolved(p.playerID, att)
	}
	return att
}

func classifyAdapterError(err error) error {
	switch {
	case errors.Is(err, models.ErrAdapterUnavailable),
		errors.Is(err, models.ErrUserCancelled),
		errors.Is(err, models.ErrNetwork),
		errors.Is(err, models.ErrVerificationFailed):
		return err
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return fmt.Errorf("%w: %v", models.ErrNetwork, err)
	default:
		return fmt.Errorf("%w: %v", models.ErrUnknownFailure, err)
	}
}
