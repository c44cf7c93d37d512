// Package entitlement decides whether a player's subscription grants access
// to a gated feature tier. It is pure: no I/O, no clock, safe to call at
// render frequency.
package entitlement

import (
	"raplifeBack/internal/models"
)

// HasAccess reports whether the current subscription grants the required
// tier. The basic tier is always accessible. For any paid tier the player
// must be subscribed and hold a tier at least as high in the fixed order
// basic < standard < premium < platinum. Corrupt tier strings rank as basic
// on both sides, so bad persisted state denies access instead of erroring.
func HasAccess(required models.Tier, sub models.SubscriptionInfo) bool {
	if models.TierRank(required) == 0 {
		return true
	}
	if !sub.IsSubscribed {
		return false
	}
	return models.TierRank(sub.Type) >= models.TierRank(required)
}

// AccessMap resolves every known tier against the subscription. Handlers use
// it to return the full gate set in one response.
func AccessMap(sub models.SubscriptionInfo) map[models.Tier]bool {
	tiers := []models.Tier{models.TierBasic, models.TierStandard, models.TierPremium, models.TierPlatinum}
	out := make(map[models.Tier]bool, len(tiers))
	for _, t := range tiers {
		out[t] = HasAccess(t, sub)
	}
	return out
}
