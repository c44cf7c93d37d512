// Package billing abstracts the in-app purchase provider behind a single
// adapter interface. The purchase pipeline depends only on this shape; the
// concrete provider (Google Play or the in-process simulator) is injected at
// startup, so pipeline code is identical in both environments.
package billing

import (
	"context"
	"time"

	"raplifeBack/internal/models"
)

// Product is a provider-side catalog entry.
type Product struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Price       string `json:"price"`
}

// Outcome is the result of one purchase verification. Exactly one of
// Approved/FailureCode carries meaning: approved outcomes have a transaction
// id, declined outcomes a failure code from the models taxonomy.
type Outcome struct {
	Approved      bool
	ProductID     string
	TransactionID string
	FailureCode   string
	Raw           string
}

// Err maps a declined outcome onto the failure taxonomy. Approved outcomes
// return nil.
func (o Outcome) Err() error {
	if o.Approved {
		return nil
	}
	return models.FailureFromCode(o.FailureCode)
}

// RestoredPurchase is one provider-confirmed historical purchase used by the
// restore reconciliation pass.
type RestoredPurchase struct {
	TransactionID string
	ProductID     string
	Type          models.Tier
	ExpiryDate    time.Time
	Active        bool
}

// Adapter is the external billing boundary. Purchase must resolve to exactly
// one outcome per call; the pipeline will not proceed past processing until
// it does.
type Adapter interface {
	// Products lists the provider's view of the purchasable catalog.
	Products(ctx context.Context) ([]Product, error)

	// Purchase verifies a purchase of the given catalog item. purchaseToken
	// is the provider receipt handed to the client when the platform-side
	// purchase completed; the simulator ignores it.
	Purchase(ctx context.Context, item models.PurchaseItem, purchaseToken string) (Outcome, error)

	// Restore re-validates previously stored subscription records against the
	// provider and returns those still honored. An error means the pass was
	// inconclusive and the caller must leave current state untouched.
	Restore(ctx context.Context, records []models.SubscriptionRecord) ([]RestoredPurchase, error)
}

// AdAdapter is the rewarded-ad boundary consumed by the reward credit path.
type AdAdapter interface {
	IsRewardedAdReady() bool
	// ShowRewarded plays a rewarded ad and invokes onReward with the view
	// token once the view completes. Returns whether the ad was shown.
	ShowRewarded(ctx context.Context, onReward func(viewToken string)) (bool, error)
}
