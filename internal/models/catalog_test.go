package models

import (
	"testing"
	"time"
)

func TestPurchaseItemValidate(t *testing.T) {
	tests := []struct {
		name    string
		item    PurchaseItem
		wantErr bool
	}{
		{"valid cash", PurchaseItem{ID: "c", Kind: PurchaseKindCash, CashAmount: 5000}, false},
		{"zero cash", PurchaseItem{ID: "c", Kind: PurchaseKindCash}, true},
		{"valid subscription", PurchaseItem{ID: "s", Kind: PurchaseKindSubscription, Tier: TierPremium, DurationDays: 30}, false},
		{"basic not purchasable", PurchaseItem{ID: "s", Kind: PurchaseKindSubscription, Tier: TierBasic, DurationDays: 30}, true},
		{"unknown tier", PurchaseItem{ID: "s", Kind: PurchaseKindSubscription, Tier: "gold", DurationDays: 30}, true},
		{"zero duration", PurchaseItem{ID: "s", Kind: PurchaseKindSubscription, Tier: TierPremium}, true},
		{"valid feature", PurchaseItem{ID: "f", Kind: PurchaseKindFeature, FeatureID: "studio"}, false},
		{"feature without id", PurchaseItem{ID: "f", Kind: PurchaseKindFeature}, true},
		{"unknown kind", PurchaseItem{ID: "x", Kind: "loot_box"}, true},
		{"missing id", PurchaseItem{Kind: PurchaseKindCash, CashAmount: 1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.item.Validate(); (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %t", err, tt.wantErr)
			}
		})
	}
}

func TestParseTier(t *testing.T) {
	for _, raw := range []string{"basic", "standard", "premium", "platinum"} {
		if _, err := ParseTier(raw); err != nil {
			t.Fatalf("ParseTier(%q): %v", raw, err)
		}
	}
	if _, err := ParseTier("gold"); err == nil {
		t.Fatal("ParseTier must reject unknown tiers")
	}
	if got := TierRank("corrupted"); got != 0 {
		t.Fatalf("TierRank of corrupted value = %d, want 0", got)
	}
}

func TestSubscriptionExpiry(t *testing.T) {
	activated := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		days int
		want time.Time
	}{
		{30, time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)},
		{7, time.Date(2025, 6, 8, 12, 0, 0, 0, time.UTC)},
		{365, time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		item := PurchaseItem{ID: "sub", Kind: PurchaseKindSubscription, Tier: TierPlatinum, DurationDays: tt.days}
		if got := item.SubscriptionExpiry(activated); !got.Equal(tt.want) {
			t.Fatalf("%d days: expiry = %s, want %s", tt.days, got, tt.want)
		}
	}
}
