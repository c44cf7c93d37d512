package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"raplifeBack/internal/billing"
	"raplifeBack/internal/models"
)

// PurchaseRepository is the settlement ledger. Every approved purchase lands
// here exactly once: one record plus one game-state mutation inside a single
// transaction, gated by the unique transaction id.
type PurchaseRepository struct {
	DB *sql.DB

	once sync.Once
	err  error
}

func NewPurchaseRepository(db *sql.DB) *PurchaseRepository {
	return &PurchaseRepository{DB: db}
}

func (r *PurchaseRepository) ensureSchema(ctx context.Context) error {
	r.once.Do(func() {
		const ddl = `
CREATE TABLE IF NOT EXISTS purchase_records (
    id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
    record_id VARCHAR(64) NOT NULL,
    player_id INT NOT NULL,
    product_id VARCHAR(255) NOT NULL,
    kind VARCHAR(32) NOT NULL,
    transaction_id VARCHAR(255) NOT NULL,
    amount BIGINT NOT NULL DEFAULT 0,
    purchase_date TIMESTAMP NOT NULL,
    status VARCHAR(32) NOT NULL DEFAULT 'completed',
    PRIMARY KEY (id),
    UNIQUE KEY uniq_transaction_id (transaction_id),
    KEY idx_player (player_id)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;
`
		if _, r.err = r.DB.ExecContext(ctx, ddl); r.err != nil {
			return
		}
		const featuresDDL = `
CREATE TABLE IF NOT EXISTS player_features (
    id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
    player_id INT NOT NULL,
    feature_id VARCHAR(64) NOT NULL,
    product_id VARCHAR(255) NOT NULL,
    unlocked_at TIMESTAMP NOT NULL,
    PRIMARY KEY (id),
    UNIQUE KEY uniq_player_feature (player_id, feature_id)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;
`
		_, r.err = r.DB.ExecContext(ctx, featuresDDL)
	})
	return r.err
}

// EnsureSchema creates the settlement tables. Called once at boot.
func (r *PurchaseRepository) EnsureSchema(ctx context.Context) error {
	return r.ensureSchema(ctx)
}

// ApplyPurchase settles one approved purchase. The insert into
// purchase_records is the idempotency gate: a duplicate transaction id turns
// the whole call into a committed no-op with applied=false, so re-delivered
// outcomes can never credit twice.
func (r *PurchaseRepository) ApplyPurchase(ctx context.Context, playerID int, item models.PurchaseItem, outcome billing.Outcome, purchaseToken string, now time.Time) (applied bool, err error) {
	if err = r.ensureSchema(ctx); err != nil {
		return false, err
	}
	if outcome.TransactionID == "" {
		return false, fmt.Errorf("transaction_id is required")
	}

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		} else {
			err = tx.Commit()
		}
	}()

	res, err := tx.ExecContext(ctx, `
INSERT INTO purchase_records (record_id, player_id, product_id, kind, transaction_id, amount, purchase_date)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE transaction_id = transaction_id
`, uuid.NewString(), playerID, item.ID, item.Kind, outcome.TransactionID, item.CashAmount, now)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if affected == 0 {
		return false, nil
	}

	switch item.Kind {
	case models.PurchaseKindCash:
		if _, err = tx.ExecContext(ctx, `UPDATE players SET cash = cash + ? WHERE id = ?`, item.CashAmount, playerID); err != nil {
			return false, err
		}
	case models.PurchaseKindFeature:
		if _, err = tx.ExecContext(ctx, `
INSERT INTO player_features (player_id, feature_id, product_id, unlocked_at)
VALUES (?, ?, ?, ?)
ON DUPLICATE KEY UPDATE feature_id = feature_id
`, playerID, item.FeatureID, item.ID, now); err != nil {
			return false, err
		}
	case models.PurchaseKindSubscription:
		expiry := item.SubscriptionExpiry(now)
		subID := uuid.NewString()
		if _, err = tx.ExecContext(ctx, `
INSERT INTO subscription_records (record_id, player_id, product_id, subscription_type, transaction_id, purchase_token, purchase_date, expiry_date, status)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
`, subID, playerID, item.ID, string(item.Tier), outcome.TransactionID, purchaseToken, now, expiry, models.RecordStatusActive); err != nil {
			return false, err
		}
		// A new plan replaces the old snapshot outright, tier and expiry both.
		if _, err = tx.ExecContext(ctx, `
UPDATE players
SET is_subscribed = 1, subscription_type = ?, subscription_id = ?, subscription_expires_at = ?
WHERE id = ?
`, string(item.Tier), subID, expiry, playerID); err != nil {
			return false, err
		}
	default:
		err = fmt.Errorf("unsupported purchase kind: %s", item.Kind)
		return false, err
	}
	return true, nil
}

// History returns the player's completed purchases, newest first.
func (r *PurchaseRepository) History(ctx context.Context, playerID int) ([]models.PurchaseRecord, error) {
	if err := r.ensureSchema(ctx); err != nil {
		return nil, err
	}
	rows, err := r.DB.QueryContext(ctx, `
SELECT id, record_id, player_id, product_id, kind, transaction_id, amount, purchase_date, status
FROM purchase_records WHERE player_id = ? ORDER BY id DESC
`, playerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []models.PurchaseRecord
	for rows.Next() {
		var rec models.PurchaseRecord
		if err := rows.Scan(&rec.ID, &rec.RecordID, &rec.PlayerID, &rec.ProductID, &rec.Kind, &rec.TransactionID, &rec.Amount, &rec.PurchaseDate, &rec.Status); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

// Features returns the ids of one-time features the player has unlocked.
func (r *PurchaseRepository) Features(ctx context.Context, playerID int) ([]string, error) {
	if err := r.ensureSchema(ctx); err != nil {
		return nil, err
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT feature_id FROM player_features WHERE player_id = ? ORDER BY id`, playerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var features []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		features = append(features, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return features, nil
}
