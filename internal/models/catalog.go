package models

import (
	"fmt"
	"time"
)

const (
	PurchaseKindCash         = "cash"
	PurchaseKindSubscription = "subscription"
	PurchaseKindFeature      = "feature"
)

// PurchaseItem is one entry of the static store catalog. The variant is
// discriminated by Kind; only the fields of the active variant are set.
// Price is a display string. The authoritative price lives with the billing
// provider and is never computed here.
type PurchaseItem struct {
	ID    string `yaml:"id" json:"id"`
	Kind  string `yaml:"kind" json:"kind"`
	Title string `yaml:"title" json:"title"`
	Price string `yaml:"price" json:"price"`

	// cash
	CashAmount int64 `yaml:"cash_amount,omitempty" json:"cash_amount,omitempty"`

	// subscription
	Tier         Tier     `yaml:"tier,omitempty" json:"tier,omitempty"`
	DurationDays int      `yaml:"duration_days,omitempty" json:"duration_days,omitempty"`
	Features     []string `yaml:"features,omitempty" json:"features,omitempty"`

	// feature
	FeatureID string `yaml:"feature_id,omitempty" json:"feature_id,omitempty"`
}

// SubscriptionExpiry returns the expiry of a subscription activated at the
// given instant. Calendar days, not 24h blocks, so activation at noon expires
// at noon regardless of DST.
func (i PurchaseItem) SubscriptionExpiry(activatedAt time.Time) time.Time {
	return activatedAt.AddDate(0, 0, i.DurationDays)
}

// Validate checks required fields for each catalog variant.
func (i PurchaseItem) Validate() error {
	if i.ID == "" {
		return fmt.Errorf("catalog item id is required")
	}
	switch i.Kind {
	case PurchaseKindCash:
		if i.CashAmount <= 0 {
			return fmt.Errorf("item %s: cash_amount must be positive", i.ID)
		}
	case PurchaseKindSubscription:
		if _, err := ParseTier(string(i.Tier)); err != nil {
			return fmt.Errorf("item %s: %w", i.ID, err)
		}
		if i.Tier == TierBasic {
			return fmt.Errorf("item %s: basic tier is not purchasable", i.ID)
		}
		if i.DurationDays <= 0 {
			return fmt.Errorf("item %s: duration_days must be positive", i.ID)
		}
	case PurchaseKindFeature:
		if i.FeatureID == "" {
			return fmt.Errorf("item %s: feature_id is required", i.ID)
		}
	default:
		return fmt.Errorf("item %s: unsupported kind: %s", i.ID, i.Kind)
	}
	return nil
}
