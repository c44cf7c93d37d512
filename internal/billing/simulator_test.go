package billing

import (
	"context"
	"errors"
	"testing"
	"time"

	"raplifeBack/internal/models"
)

var simCatalog = []models.PurchaseItem{
	{ID: "cash_50000", Kind: models.PurchaseKindCash, Title: "Street Money", Price: "$4.99", CashAmount: 50000},
	{ID: "sub_platinum_30d", Kind: models.PurchaseKindSubscription, Title: "Platinum", Price: "$19.99", Tier: models.TierPlatinum, DurationDays: 30},
}

func TestSimulatorDeterministicTransactionIDs(t *testing.T) {
	a := NewSimulator(42, simCatalog)
	b := NewSimulator(42, simCatalog)

	for i := 0; i < 5; i++ {
		oa, err := a.Purchase(context.Background(), simCatalog[0], "")
		if err != nil {
			t.Fatalf("purchase a: %v", err)
		}
		ob, err := b.Purchase(context.Background(), simCatalog[0], "")
		if err != nil {
			t.Fatalf("purchase b: %v", err)
		}
		if !oa.Approved || !ob.Approved {
			t.Fatal("expected approvals")
		}
		if oa.TransactionID != ob.TransactionID {
			t.Fatalf("same seed must replay the same ids: %s != %s", oa.TransactionID, ob.TransactionID)
		}
	}
}

func TestSimulatorScriptedDecline(t *testing.T) {
	s := NewSimulator(1, simCatalog)
	s.ScriptDecline("cash_50000", models.FailureCodeNetwork)

	out, err := s.Purchase(context.Background(), simCatalog[0], "")
	if err != nil {
		t.Fatalf("purchase: %v", err)
	}
	if out.Approved {
		t.Fatal("expected decline")
	}
	if !errors.Is(out.Err(), models.ErrNetwork) {
		t.Fatalf("expected network failure, got %v", out.Err())
	}

	s.ScriptDecline("cash_50000", "")
	out, err = s.Purchase(context.Background(), simCatalog[0], "")
	if err != nil {
		t.Fatalf("purchase after clearing script: %v", err)
	}
	if !out.Approved {
		t.Fatal("expected approval after clearing script")
	}
}

func TestSimulatorRestoreHonorsRecords(t *testing.T) {
	s := NewSimulator(1, simCatalog)
	expiry := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	records := []models.SubscriptionRecord{
		{TransactionID: "t1", ProductID: "sub_platinum_30d", Type: models.TierPlatinum, ExpiryDate: expiry, Status: models.RecordStatusActive},
		{TransactionID: "t2", ProductID: "sub_platinum_30d", Type: models.TierPlatinum, ExpiryDate: expiry.AddDate(0, 0, -60), Status: models.RecordStatusExpired},
	}
	restored, err := s.Restore(context.Background(), records)
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if len(restored) != 2 {
		t.Fatalf("expected 2 restored purchases, got %d", len(restored))
	}
	if !restored[0].Active || restored[1].Active {
		t.Fatal("restore must mirror record status")
	}
}

func TestSimulatorRewardedAd(t *testing.T) {
	s := NewSimulator(7, simCatalog)

	var token string
	shown, err := s.ShowRewarded(context.Background(), func(viewToken string) { token = viewToken })
	if err != nil || !shown {
		t.Fatalf("expected ad to show: shown=%v err=%v", shown, err)
	}
	if token == "" {
		t.Fatal("expected a view token")
	}

	s.SetAdReady(false)
	if s.IsRewardedAdReady() {
		t.Fatal("expected ad readiness to be off")
	}
	shown, err = s.ShowRewarded(context.Background(), func(string) { t.Fatal("reward callback must not fire") })
	if shown || !errors.Is(err, models.ErrAdNotReady) {
		t.Fatalf("expected ErrAdNotReady, got shown=%v err=%v", shown, err)
	}
}
