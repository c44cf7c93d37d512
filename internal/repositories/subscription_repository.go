package repositories

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"raplifeBack/internal/models"
)

type SubscriptionRepository struct {
	DB *sql.DB

	once sync.Once
	err  error
}

func NewSubscriptionRepository(db *sql.DB) *SubscriptionRepository {
	return &SubscriptionRepository{DB: db}
}

func (r *SubscriptionRepository) ensureSchema(ctx context.Context) error {
	r.once.Do(func() {
		const ddl = `
CREATE TABLE IF NOT EXISTS subscription_records (
    id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
    record_id VARCHAR(64) NOT NULL,
    player_id INT NOT NULL,
    product_id VARCHAR(255) NOT NULL,
    subscription_type VARCHAR(32) NOT NULL,
    transaction_id VARCHAR(255) NOT NULL,
    purchase_token VARCHAR(512) NOT NULL DEFAULT '',
    purchase_date TIMESTAMP NOT NULL,
    expiry_date TIMESTAMP NOT NULL,
    status VARCHAR(32) NOT NULL DEFAULT 'active',
    PRIMARY KEY (id),
    UNIQUE KEY uniq_record_id (record_id),
    KEY idx_player (player_id),
    KEY idx_expiry (status, expiry_date)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;
`
		_, r.err = r.DB.ExecContext(ctx, ddl)
	})
	return r.err
}

// EnsureSchema creates the subscription_records table. Called once at boot.
func (r *SubscriptionRepository) EnsureSchema(ctx context.Context) error {
	return r.ensureSchema(ctx)
}

// ListByPlayer returns every subscription record of the player, newest
// purchase first.
func (r *SubscriptionRepository) ListByPlayer(ctx context.Context, playerID int) ([]models.SubscriptionRecord, error) {
	if err := r.ensureSchema(ctx); err != nil {
		return nil, err
	}
	rows, err := r.DB.QueryContext(ctx, `
SELECT id, record_id, player_id, product_id, subscription_type, transaction_id, purchase_token, purchase_date, expiry_date, status
FROM subscription_records WHERE player_id = ? ORDER BY id DESC
`, playerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []models.SubscriptionRecord
	for rows.Next() {
		rec, err := scanSubscriptionRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

func scanSubscriptionRecord(scanner interface{ Scan(dest ...any) error }) (models.SubscriptionRecord, error) {
	var (
		rec     models.SubscriptionRecord
		subType string
	)
	err := scanner.Scan(&rec.ID, &rec.RecordID, &rec.PlayerID, &rec.ProductID, &subType,
		&rec.TransactionID, &rec.PurchaseToken, &rec.PurchaseDate, &rec.ExpiryDate, &rec.Status)
	if err != nil {
		return models.SubscriptionRecord{}, err
	}
	rec.Type = models.Tier(subType)
	return rec, nil
}

// SetStatus updates one record's status by record id.
func (r *SubscriptionRepository) SetStatus(ctx context.Context, recordID, status string) error {
	if err := r.ensureSchema(ctx); err != nil {
		return err
	}
	_, err := r.DB.ExecContext(ctx, `UPDATE subscription_records SET status = ? WHERE record_id = ?`, status, recordID)
	return err
}

// SweepExpired marks active records past their expiry as expired and clears
// the snapshot of every player whose expiry has passed. It returns the
// number of players downgraded.
func (r *SubscriptionRepository) SweepExpired(ctx context.Context, now time.Time) (int, error) {
	if err := r.ensureSchema(ctx); err != nil {
		return 0, err
	}
	if _, err := r.DB.ExecContext(ctx, `
UPDATE subscription_records SET status = ? WHERE status = ? AND expiry_date <= ?
`, models.RecordStatusExpired, models.RecordStatusActive, now); err != nil {
		return 0, err
	}
	res, err := r.DB.ExecContext(ctx, `
UPDATE players
SET is_subscribed = 0, subscription_type = ?, subscription_id = '', subscription_expires_at = NULL
WHERE is_subscribed = 1 AND subscription_expires_at IS NOT NULL AND subscription_expires_at <= ?
`, string(models.TierBasic), now)
	if err != nil {
		return 0, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(affected), nil
}

// PlayersWithActiveRecords returns distinct player ids that have at least one
// record worth reconciling.
func (r *SubscriptionRepository) PlayersWithActiveRecords(ctx context.Context) ([]int, error) {
	if err := r.ensureSchema(ctx); err != nil {
		return nil, err
	}
	rows, err := r.DB.QueryContext(ctx, `
SELECT DISTINCT player_id FROM subscription_records WHERE status = ?
`, models.RecordStatusActive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}
