package models

import "time"

// Player is the game-state owner: cash balance plus the subscription
// snapshot. Both are mutated only through repository setters so the
// single-application guarantee of the purchase pipeline stays auditable.
type Player struct {
	ID           int              `json:"id"`
	Username     string           `json:"username"`
	PasswordHash string           `json:"-"`
	Cash         int64            `json:"cash"`
	Subscription SubscriptionInfo `json:"subscription"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    *time.Time       `json:"updated_at,omitempty"`
}

// RewardClaim is the payload of a reward-ad credit request. The view token
// identifies one ad view; the same token must never credit twice.
type RewardClaim struct {
	ViewToken string `json:"view_token"`
	Amount    int64  `json:"amount"`
}
