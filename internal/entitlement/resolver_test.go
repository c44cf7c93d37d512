package entitlement

import (
	"testing"
	"time"

	"raplifeBack/internal/models"
)

func subscribed(tier models.Tier) models.SubscriptionInfo {
	exp := time.Now().Add(30 * 24 * time.Hour)
	return models.SubscriptionInfo{
		IsSubscribed:   true,
		Type:           tier,
		SubscriptionID: "sub-1",
		ExpiresAt:      &exp,
	}
}

func TestBasicAlwaysAccessible(t *testing.T) {
	subs := []models.SubscriptionInfo{
		models.Unsubscribed(),
		subscribed(models.TierStandard),
		subscribed(models.TierPlatinum),
		{IsSubscribed: false, Type: models.Tier("garbage")},
	}
	for _, sub := range subs {
		if !HasAccess(models.TierBasic, sub) {
			t.Fatalf("basic must be accessible, denied for %+v", sub)
		}
	}
}

func TestUnsubscribedDeniedForPaidTiers(t *testing.T) {
	sub := models.Unsubscribed()
	for _, tier := range []models.Tier{models.TierStandard, models.TierPremium, models.TierPlatinum} {
		if HasAccess(tier, sub) {
			t.Fatalf("unsubscribed player must not access %s", tier)
		}
	}
}

func TestTierOrdering(t *testing.T) {
	sub := subscribed(models.TierPremium)
	if !HasAccess(models.TierStandard, sub) {
		t.Fatal("premium subscriber must access standard")
	}
	if !HasAccess(models.TierPremium, sub) {
		t.Fatal("premium subscriber must access premium")
	}
	if HasAccess(models.TierPlatinum, sub) {
		t.Fatal("premium subscriber must not access platinum")
	}
}

func TestMonotonicity(t *testing.T) {
	order := []models.Tier{models.TierBasic, models.TierStandard, models.TierPremium, models.TierPlatinum}
	for _, held := range order {
		sub := subscribed(held)
		granted := false
		// Walking from platinum down, access must never flip back off once granted.
		for i := len(order) - 1; i >= 0; i-- {
			ok := HasAccess(order[i], sub)
			if granted && !ok {
				t.Fatalf("monotonicity violated: %s granted but lower tier %s denied", order[i+1], order[i])
			}
			if ok {
				granted = true
			}
		}
		if !granted {
			t.Fatalf("holder of %s got no access at all", held)
		}
	}
}

func TestCorruptTierFailsSafe(t *testing.T) {
	exp := time.Now().Add(time.Hour)
	sub := models.SubscriptionInfo{IsSubscribed: true, Type: models.Tier("vip++"), ExpiresAt: &exp}
	if HasAccess(models.TierStandard, sub) {
		t.Fatal("corrupt subscription tier must rank as basic and deny standard")
	}
	if !HasAccess(models.TierBasic, sub) {
		t.Fatal("corrupt subscription tier must still access basic")
	}
	if HasAccess(models.Tier("vip++"), subscribed(models.TierPlatinum)) != true {
		t.Fatal("corrupt required tier ranks as basic and must be accessible")
	}
}

func TestAccessMap(t *testing.T) {
	m := AccessMap(subscribed(models.TierStandard))
	if !m[models.TierBasic] || !m[models.TierStandard] {
		t.Fatal("standard subscriber must access basic and standard")
	}
	if m[models.TierPremium] || m[models.TierPlatinum] {
		t.Fatal("standard subscriber must not access premium or platinum")
	}
}
