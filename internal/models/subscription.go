package models

import (
	"fmt"
	"time"
)

type Tier string

const (
	TierBasic    Tier = "basic"
	TierStandard Tier = "standard"
	TierPremium  Tier = "premium"
	TierPlatinum Tier = "platinum"
)

var tierRanks = map[Tier]int{
	TierBasic:    0,
	TierStandard: 1,
	TierPremium:  2,
	TierPlatinum: 3,
}

// TierRank returns the position of a tier in the fixed total order
// basic < standard < premium < platinum. Unknown or corrupted tier strings
// rank as basic so that access checks on bad persisted state deny instead
// of crashing.
func TierRank(t Tier) int {
	return tierRanks[t]
}

// ParseTier validates a raw tier string coming from clients or storage.
func ParseTier(raw string) (Tier, error) {
	t := Tier(raw)
	if _, ok := tierRanks[t]; !ok {
		return "", fmt.Errorf("unknown subscription tier: %s", raw)
	}
	return t, nil
}

// SubscriptionInfo is the current subscription snapshot on a player.
// It is re-derived from subscription records by the lifecycle manager and
// replaced as a whole on purchase; nothing else writes it.
type SubscriptionInfo struct {
	IsSubscribed   bool       `json:"is_subscribed"`
	Type           Tier       `json:"subscription_type"`
	SubscriptionID string     `json:"subscription_id,omitempty"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
}

// Unsubscribed is the default snapshot for a player without an active plan.
func Unsubscribed() SubscriptionInfo {
	return SubscriptionInfo{IsSubscribed: false, Type: TierBasic}
}

// ActiveAt reports whether the snapshot grants a paid tier at the given
// moment. Expiry is advisory between reconciliation passes, so readers who
// care about the exact boundary check it themselves.
func (s SubscriptionInfo) ActiveAt(now time.Time) bool {
	return s.IsSubscribed && s.ExpiresAt != nil && s.ExpiresAt.After(now)
}

const (
	RecordStatusActive  = "active"
	RecordStatusExpired = "expired"
	RecordStatusRevoked = "revoked"
)

// SubscriptionRecord is one completed subscription purchase. Records are
// append-only: expiry and revocation update the status column, never the
// purchase facts.
type SubscriptionRecord struct {
	ID            int64     `json:"id"`
	RecordID      string    `json:"record_id"`
	PlayerID      int       `json:"player_id"`
	ProductID     string    `json:"product_id"`
	Type          Tier      `json:"subscription_type"`
	TransactionID string    `json:"transaction_id"`
	PurchaseToken string    `json:"-"`
	PurchaseDate  time.Time `json:"purchase_date"`
	ExpiryDate    time.Time `json:"expiry_date"`
	Status        string    `json:"status"`
}

// PurchaseRecord is one completed non-subscription purchase (cash package or
// one-time feature unlock).
type PurchaseRecord struct {
	ID            int64     `json:"id"`
	RecordID      string    `json:"record_id"`
	PlayerID      int       `json:"player_id"`
	ProductID     string    `json:"product_id"`
	Kind          string    `json:"kind"`
	TransactionID string    `json:"transaction_id"`
	Amount        int64     `json:"amount,omitempty"`
	PurchaseDate  time.Time `json:"purchase_date"`
	Status        string    `json:"status"`
}
