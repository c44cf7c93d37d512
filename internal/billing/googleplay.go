package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	androidpublisher "google.golang.org/api/androidpublisher/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"raplifeBack/internal/models"
)

type GooglePlayConfig struct {
	PackageName        string
	ServiceAccountJSON string
	Logger             *slog.Logger
}

// GooglePlayAdapter verifies client-supplied purchase tokens against the
// androidpublisher API and acknowledges approved purchases. The catalog is
// local; Play owns pricing, we own what the item grants.
type GooglePlayAdapter struct {
	packageName string
	svc         *androidpublisher.Service
	catalog     []models.PurchaseItem
	logger      *slog.Logger
}

func NewGooglePlayAdapter(cfg GooglePlayConfig, catalog []models.PurchaseItem) (*GooglePlayAdapter, error) {
	cfg.PackageName = strings.TrimSpace(cfg.PackageName)
	if cfg.PackageName == "" {
		return nil, errors.New("google play: package name is empty")
	}
	if strings.TrimSpace(cfg.ServiceAccountJSON) == "" {
		return nil, errors.New("google play: service account json is empty")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ctx := context.Background()
	svc, err := androidpublisher.NewService(ctx,
		option.WithCredentialsJSON([]byte(cfg.ServiceAccountJSON)),
		option.WithScopes(androidpublisher.AndroidpublisherScope),
	)
	if err != nil {
		return nil, fmt.Errorf("androidpublisher.NewService: %w", err)
	}
	return &GooglePlayAdapter{
		packageName: cfg.PackageName,
		svc:         svc,
		catalog:     catalog,
		logger:      logger,
	}, nil
}

func (a *GooglePlayAdapter) Products(ctx context.Context) ([]Product, error) {
	out := make([]Product, 0, len(a.catalog))
	for _, item := range a.catalog {
		out = append(out, Product{
			ID:    item.ID,
			Title: item.Title,
			Price: item.Price,
		})
	}
	return out, nil
}

func (a *GooglePlayAdapter) Purchase(ctx context.Context, item models.PurchaseItem, purchaseToken string) (Outcome, error) {
	purchaseToken = strings.TrimSpace(purchaseToken)
	if purchaseToken == "" {
		return declined(item.ID, models.FailureCodeVerification, "purchase token is required"), nil
	}
	if a.svc == nil {
		return declined(item.ID, models.FailureCodeUnavailable, "androidpublisher service is not configured"), nil
	}

	if item.Kind == models.PurchaseKindSubscription {
		return a.verifySubscription(ctx, item.ID, purchaseToken)
	}
	return a.verifyProduct(ctx, item.ID, purchaseToken)
}

func (a *GooglePlayAdapter) verifyProduct(ctx context.Context, productID, token string) (Outcome, error) {
	resp, err := a.svc.Purchases.Products.Get(a.packageName, productID, token).Context(ctx).Do()
	if err != nil {
		return a.outcomeFromAPIError(productID, "products.get", err)
	}
	raw, _ := json.Marshal(resp)

	// PurchaseState: 0 purchased, 1 canceled, 2 pending.
	switch resp.PurchaseState {
	case 0:
		if resp.AcknowledgementState != 1 {
			ack := &androidpublisher.ProductPurchasesAcknowledgeRequest{}
			if err := a.svc.Purchases.Products.Acknowledge(a.packageName, productID, token, ack).Context(ctx).Do(); err != nil {
				a.logger.Error("google play acknowledge failed", "product_id", productID, "err", err)
			}
		}
		return Outcome{
			Approved:      true,
			ProductID:     productID,
			TransactionID: orderOrToken(resp.OrderId, token),
			Raw:           string(raw),
		}, nil
	case 1:
		return declined(productID, models.FailureCodeCancelled, string(raw)), nil
	default:
		return declined(productID, models.FailureCodeVerification, string(raw)), nil
	}
}

func (a *GooglePlayAdapter) verifySubscription(ctx context.Context, subscriptionID, token string) (Outcome, error) {
	resp, err := a.svc.Purchases.Subscriptions.Get(a.packageName, subscriptionID, token).Context(ctx).Do()
	if err != nil {
		return a.outcomeFromAPIError(subscriptionID, "subscriptions.get", err)
	}
	raw, _ := json.Marshal(resp)

	status := DeriveSubscriptionStatus(resp.PaymentState, resp.ExpiryTimeMillis, resp.AutoRenewing, time.Now())
	if status != SubStatusActive && status != SubStatusCanceled {
		return declined(subscriptionID, models.FailureCodeVerification, string(raw)), nil
	}

	if resp.AcknowledgementState != 1 {
		ack := &androidpublisher.SubscriptionPurchasesAcknowledgeRequest{}
		if err := a.svc.Purchases.Subscriptions.Acknowledge(a.packageName, subscriptionID, token, ack).Context(ctx).Do(); err != nil {
			a.logger.Error("google play acknowledge failed", "subscription_id", subscriptionID, "err", err)
		}
	}
	return Outcome{
		Approved:      true,
		ProductID:     subscriptionID,
		TransactionID: orderOrToken(resp.OrderId, token),
		Raw:           string(raw),
	}, nil
}

func (a *GooglePlayAdapter) Restore(ctx context.Context, records []models.SubscriptionRecord) ([]RestoredPurchase, error) {
	if a.svc == nil {
		return nil, models.ErrAdapterUnavailable
	}
	restored := make([]RestoredPurchase, 0, len(records))
	for _, rec := range records {
		if strings.TrimSpace(rec.PurchaseToken) == "" {
			// Legacy rows without a token fall back to the stored expiry.
			restored = append(restored, RestoredPurchase{
				TransactionID: rec.TransactionID,
				ProductID:     rec.ProductID,
				Type:          rec.Type,
				ExpiryDate:    rec.ExpiryDate,
				Active:        rec.Status == models.RecordStatusActive,
			})
			continue
		}
		resp, err := a.svc.Purchases.Subscriptions.Get(a.packageName, rec.ProductID, rec.PurchaseToken).Context(ctx).Do()
		if err != nil {
			var apiErr *googleapi.Error
			if errors.As(err, &apiErr) && apiErr.Code >= 400 && apiErr.Code < 500 {
				// Provider no longer knows the purchase: treat as inactive,
				// not as an inconclusive pass.
				continue
			}
			return nil, fmt.Errorf("google subscriptions.get: %w", err)
		}
		expiry := time.UnixMilli(resp.ExpiryTimeMillis)
		status := DeriveSubscriptionStatus(resp.PaymentState, resp.ExpiryTimeMillis, resp.AutoRenewing, time.Now())
		restored = append(restored, RestoredPurchase{
			TransactionID: rec.TransactionID,
			ProductID:     rec.ProductID,
			Type:          rec.Type,
			ExpiryDate:    expiry,
			Active:        status == SubStatusActive || status == SubStatusCanceled,
		})
	}
	return restored, nil
}

func (a *GooglePlayAdapter) outcomeFromAPIError(productID, op string, err error) (Outcome, error) {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		a.logger.Error("google play verification rejected", "op", op, "product_id", productID, "code", apiErr.Code)
		if apiErr.Code >= 400 && apiErr.Code < 500 {
			return declined(productID, models.FailureCodeVerification, apiErr.Message), nil
		}
		return declined(productID, models.FailureCodeNetwork, apiErr.Message), nil
	}
	a.logger.Error("google play request failed", "op", op, "product_id", productID, "err", err)
	return declined(productID, models.FailureCodeNetwork, err.Error()), nil
}

func declined(productID, code, raw string) Outcome {
	return Outcome{ProductID: productID, FailureCode: code, Raw: raw}
}

func orderOrToken(orderID, token string) string {
	if strings.TrimSpace(orderID) != "" {
		return orderID
	}
	return token
}

// Normalized provider subscription status.
const (
	SubStatusActive   = "ACTIVE"
	SubStatusCanceled = "CANCELED"
	SubStatusExpired  = "EXPIRED"
	SubStatusPending  = "PENDING"
	SubStatusUnknown  = "UNKNOWN"
)

// DeriveSubscriptionStatus folds Play's payment state, expiry and auto-renew
// flag into one normalized status. PaymentState: 0 pending, 1 received,
// 2 free trial, 3 deferred.
func DeriveSubscriptionStatus(paymentState *int64, expiryMillis int64, autoRenewing bool, now time.Time) string {
	if paymentState != nil && *paymentState == 0 {
		return SubStatusPending
	}
	if expiryMillis > 0 && expiryMillis > now.UnixMilli() {
		if !autoRenewing {
			// Auto-renew switched off but the paid window is still running.
			return SubStatusCanceled
		}
		return SubStatusActive
	}
	if expiryMillis > 0 {
		return SubStatusExpired
	}
	return SubStatusUnknown
}
