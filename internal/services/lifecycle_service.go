package services

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"raplifeBack/internal/billing"
	"raplifeBack/internal/models"
)

// Remaining is the time left on a subscription, broken down the way the
// store screen displays it.
type Remaining struct {
	Days    int  `json:"days"`
	Hours   int  `json:"hours"`
	Expired bool `json:"expired"`
}

// ComputeRemaining converts an expiry timestamp into days and hours left.
// A nil or past expiry reads as expired; partial hours round up so the
// display never shows "0 days 0 hours" on a still-active plan.
func ComputeRemaining(now time.Time, expiresAt *time.Time) Remaining {
	if expiresAt == nil || !expiresAt.After(now) {
		return Remaining{Expired: true}
	}
	left := expiresAt.Sub(now)
	hours := int((left + time.Hour - 1) / time.Hour)
	return Remaining{Days: hours / 24, Hours: hours % 24}
}

// DeriveSubscription rebuilds the snapshot from subscription records.
// Among records still active at the given moment the latest expiry wins;
// no active record means unsubscribed.
func DeriveSubscription(records []models.SubscriptionRecord, now time.Time) models.SubscriptionInfo {
	active := make([]models.SubscriptionRecord, 0, len(records))
	for _, rec := range records {
		if rec.Status == models.RecordStatusActive && rec.ExpiryDate.After(now) {
			active = append(active, rec)
		}
	}
	if len(active) == 0 {
		return models.Unsubscribed()
	}
	sort.Slice(active, func(i, j int) bool {
		return active[i].ExpiryDate.After(active[j].ExpiryDate)
	})
	winner := active[0]
	expiry := winner.ExpiryDate
	return models.SubscriptionInfo{
		IsSubscribed:   true,
		Type:           winner.Type,
		SubscriptionID: winner.RecordID,
		ExpiresAt:      &expiry,
	}
}

// SubscriptionStore is the slice of storage the lifecycle manager needs.
type SubscriptionStore interface {
	ListByPlayer(ctx context.Context, playerID int) ([]models.SubscriptionRecord, error)
	SetStatus(ctx context.Context, recordID, status string) error
}

// PlayerStore updates the snapshot the rest of the game reads.
type PlayerStore interface {
	GetByID(ctx context.Context, id int) (models.Player, error)
	SetSubscription(ctx context.Context, playerID int, sub models.SubscriptionInfo) error
}

// LifecycleService owns the subscription snapshot of each player: status
// reads, restore-from-provider, and reconciliation after expiry.
type LifecycleService struct {
	Subs     SubscriptionStore
	Players  PlayerStore
	Adapter  billing.Adapter
	InfoLog  *log.Logger
	ErrorLog *log.Logger
	Now      func() time.Time
}

func (s *LifecycleService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Status returns the player's current snapshot together with the remaining
// time as the store screen shows it.
func (s *LifecycleService) Status(ctx context.Context, playerID int) (models.SubscriptionInfo, Remaining, error) {
	player, err := s.Players.GetByID(ctx, playerID)
	if err != nil {
		return models.SubscriptionInfo{}, Remaining{}, err
	}
	sub := player.Subscription
	if !sub.ActiveAt(s.now()) {
		sub = models.Unsubscribed()
	}
	return sub, ComputeRemaining(s.now(), player.Subscription.ExpiresAt), nil
}

// Restore re-confirms stored subscription purchases with the billing
// provider and rebuilds the snapshot from what the provider still vouches
// for. An inconclusive provider pass changes nothing: a player is never
// downgraded on a network hiccup.
func (s *LifecycleService) Restore(ctx context.Context, playerID int) (models.SubscriptionInfo, error) {
	records, err := s.Subs.ListByPlayer(ctx, playerID)
	if err != nil {
		return models.SubscriptionInfo{}, err
	}
	if len(records) == 0 {
		return models.Unsubscribed(), nil
	}

	restored, err := s.Adapter.Restore(ctx, records)
	if err != nil {
		s.ErrorLog.Printf("restore for player %d inconclusive: %v", playerID, err)
		player, getErr := s.Players.GetByID(ctx, playerID)
		if getErr != nil {
			return models.SubscriptionInfo{}, getErr
		}
		return player.Subscription, fmt.Errorf("restore purchases: %w", err)
	}

	byTxn := make(map[string]billing.RestoredPurchase, len(restored))
	for _, rp := range restored {
		byTxn[rp.TransactionID] = rp
	}

	now := s.now()
	confirmed := make([]models.SubscriptionRecord, 0, len(records))
	for _, rec := range records {
		rp, ok := byTxn[rec.TransactionID]
		if ok && !rp.ExpiryDate.IsZero() && !rp.ExpiryDate.Equal(rec.ExpiryDate) {
			rec.ExpiryDate = rp.ExpiryDate
		}
		if !ok || !rp.Active || !rec.ExpiryDate.After(now) {
			if rec.Status == models.RecordStatusActive {
				if err := s.Subs.SetStatus(ctx, rec.RecordID, models.RecordStatusExpired); err != nil {
					return models.SubscriptionInfo{}, err
				}
			}
			continue
		}
		rec.Status = models.RecordStatusActive
		confirmed = append(confirmed, rec)
	}

	sub := DeriveSubscription(confirmed, s.now())
	if err := s.Players.SetSubscription(ctx, playerID, sub); err != nil {
		return models.SubscriptionInfo{}, err
	}
	s.InfoLog.Printf("restore for player %d: %d records, %d confirmed, subscribed=%t", playerID, len(records), len(confirmed), sub.IsSubscribed)
	return sub, nil
}

// Reconcile recomputes one player's snapshot from stored records without
// calling the provider. The expiry sweeper uses it after bulk updates.
func (s *LifecycleService) Reconcile(ctx context.Context, playerID int) (models.SubscriptionInfo, error) {
	records, err := s.Subs.ListByPlayer(ctx, playerID)
	if err != nil {
		return models.SubscriptionInfo{}, err
	}
	sub := DeriveSubscription(records, s.now())
	if err := s.Players.SetSubscription(ctx, playerID, sub); err != nil {
		return models.SubscriptionInfo{}, err
	}
	return sub, nil
}
