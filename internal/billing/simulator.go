package billing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/exp/rand"

	"raplifeBack/internal/models"
)

// Simulator is the in-process billing provider used by the browser build and
// by tests. It is deterministic: transaction ids come from a seeded stream,
// approvals follow a per-product script, and no I/O happens.
type Simulator struct {
	mu       sync.Mutex
	rng      *rand.Rand
	catalog  []models.PurchaseItem
	declines map[string]string // product id -> failure code
	adReady  bool
	latency  time.Duration
}

func NewSimulator(seed uint64, catalog []models.PurchaseItem) *Simulator {
	return &Simulator{
		rng:      rand.New(rand.NewSource(seed)),
		catalog:  catalog,
		declines: make(map[string]string),
		adReady:  true,
	}
}

// ScriptDecline makes every subsequent purchase of the product fail with the
// given taxonomy code. Scripting an empty code clears the entry.
func (s *Simulator) ScriptDecline(productID, failureCode string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if failureCode == "" {
		delete(s.declines, productID)
		return
	}
	s.declines[productID] = failureCode
}

// SetAdReady toggles the rewarded-ad readiness flag.
func (s *Simulator) SetAdReady(ready bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.adReady = ready
}

// SetLatency adds an artificial delay to purchases so UI flows can be
// exercised against a slow provider.
func (s *Simulator) SetLatency(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latency = d
}

func (s *Simulator) Products(ctx context.Context) ([]Product, error) {
	out := make([]Product, 0, len(s.catalog))
	for _, item := range s.catalog {
		out = append(out, Product{ID: item.ID, Title: item.Title, Price: item.Price})
	}
	return out, nil
}

func (s *Simulator) Purchase(ctx context.Context, item models.PurchaseItem, purchaseToken string) (Outcome, error) {
	s.mu.Lock()
	latency := s.latency
	code, scripted := s.declines[item.ID]
	txnID := fmt.Sprintf("sim-%012d", s.rng.Uint64()%1_000_000_000_000)
	s.mu.Unlock()

	if latency > 0 {
		select {
		case <-time.After(latency):
		case <-ctx.Done():
			return Outcome{}, ctx.Err()
		}
	}

	if scripted {
		return declined(item.ID, code, "simulated decline"), nil
	}
	return Outcome{
		Approved:      true,
		ProductID:     item.ID,
		TransactionID: txnID,
		Raw:           `{"provider":"simulator"}`,
	}, nil
}

// Restore honors the stored records as-is: the simulator has no provider-side
// history beyond what the game recorded.
func (s *Simulator) Restore(ctx context.Context, records []models.SubscriptionRecord) ([]RestoredPurchase, error) {
	restored := make([]RestoredPurchase, 0, len(records))
	for _, rec := range records {
		restored = append(restored, RestoredPurchase{
			TransactionID: rec.TransactionID,
			ProductID:     rec.ProductID,
			Type:          rec.Type,
			ExpiryDate:    rec.ExpiryDate,
			Active:        rec.Status == models.RecordStatusActive,
		})
	}
	return restored, nil
}

// IsRewardedAdReady implements the ad adapter side of the simulator.
func (s *Simulator) IsRewardedAdReady() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.adReady
}

// ShowRewarded fires the reward callback exactly once with a fresh view
// token when an ad is ready.
func (s *Simulator) ShowRewarded(ctx context.Context, onReward func(viewToken string)) (bool, error) {
	s.mu.Lock()
	ready := s.adReady
	token := fmt.Sprintf("view-%012d", s.rng.Uint64()%1_000_000_000_000)
	s.mu.Unlock()

	if !ready {
		return false, models.ErrAdNotReady
	}
	onReward(token)
	return true, nil
}
