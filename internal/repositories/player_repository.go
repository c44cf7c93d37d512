package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"raplifeBack/internal/models"
)

type PlayerRepository struct {
	DB *sql.DB

	once sync.Once
	err  error
}

func NewPlayerRepository(db *sql.DB) *PlayerRepository {
	return &PlayerRepository{DB: db}
}

func (r *PlayerRepository) ensureSchema(ctx context.Context) error {
	r.once.Do(func() {
		const ddl = `
CREATE TABLE IF NOT EXISTS players (
    id INT NOT NULL AUTO_INCREMENT,
    username VARCHAR(64) NOT NULL,
    password_hash VARCHAR(255) NOT NULL,
    cash BIGINT NOT NULL DEFAULT 0,
    is_subscribed TINYINT(1) NOT NULL DEFAULT 0,
    subscription_type VARCHAR(32) NOT NULL DEFAULT 'basic',
    subscription_id VARCHAR(64) DEFAULT '',
    subscription_expires_at TIMESTAMP NULL DEFAULT NULL,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP NULL DEFAULT NULL ON UPDATE CURRENT_TIMESTAMP,
    PRIMARY KEY (id),
    UNIQUE KEY uniq_username (username)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;
`
		if _, r.err = r.DB.ExecContext(ctx, ddl); r.err != nil {
			return
		}
		const tokensDDL = `
CREATE TABLE IF NOT EXISTS device_tokens (
    id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
    player_id INT NOT NULL,
    token VARCHAR(512) NOT NULL,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (id),
    UNIQUE KEY uniq_player_token (player_id, token)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;
`
		_, r.err = r.DB.ExecContext(ctx, tokensDDL)
	})
	return r.err
}

// SaveDeviceToken registers a push token for the player. Re-registering the
// same token is a no-op.
func (r *PlayerRepository) SaveDeviceToken(ctx context.Context, playerID int, token string) error {
	if err := r.ensureSchema(ctx); err != nil {
		return err
	}
	if token == "" {
		return fmt.Errorf("device token is required")
	}
	_, err := r.DB.ExecContext(ctx, `
INSERT INTO device_tokens (player_id, token) VALUES (?, ?)
ON DUPLICATE KEY UPDATE token = token
`, playerID, token)
	return err
}

// EnsureSchema creates the players table. Called once at boot.
func (r *PlayerRepository) EnsureSchema(ctx context.Context) error {
	return r.ensureSchema(ctx)
}

func (r *PlayerRepository) Create(ctx context.Context, username, passwordHash string) (models.Player, error) {
	if err := r.ensureSchema(ctx); err != nil {
		return models.Player{}, err
	}
	res, err := r.DB.ExecContext(ctx, `
INSERT INTO players (username, password_hash) VALUES (?, ?)
`, username, passwordHash)
	if err != nil {
		return models.Player{}, fmt.Errorf("create player: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return models.Player{}, err
	}
	return r.GetByID(ctx, int(id))
}

func (r *PlayerRepository) GetByID(ctx context.Context, id int) (models.Player, error) {
	if err := r.ensureSchema(ctx); err != nil {
		return models.Player{}, err
	}
	row := r.DB.QueryRowContext(ctx, `
SELECT id, username, password_hash, cash, is_subscribed, subscription_type, subscription_id, subscription_expires_at, created_at, updated_at
FROM players WHERE id = ?
`, id)
	return scanPlayer(row)
}

func (r *PlayerRepository) GetByUsername(ctx context.Context, username string) (models.Player, error) {
	if err := r.ensureSchema(ctx); err != nil {
		return models.Player{}, err
	}
	row := r.DB.QueryRowContext(ctx, `
SELECT id, username, password_hash, cash, is_subscribed, subscription_type, subscription_id, subscription_expires_at, created_at, updated_at
FROM players WHERE username = ?
`, username)
	return scanPlayer(row)
}

func scanPlayer(scanner interface{ Scan(dest ...any) error }) (models.Player, error) {
	var (
		p         models.Player
		subType   string
		subID     sql.NullString
		expiresAt sql.NullTime
		updatedAt sql.NullTime
	)
	err := scanner.Scan(&p.ID, &p.Username, &p.PasswordHash, &p.Cash,
		&p.Subscription.IsSubscribed, &subType, &subID, &expiresAt,
		&p.CreatedAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Player{}, models.ErrPlayerNotFound
		}
		return models.Player{}, err
	}
	p.Subscription.Type = models.Tier(subType)
	if subID.Valid {
		p.Subscription.SubscriptionID = subID.String
	}
	if expiresAt.Valid {
		t := expiresAt.Time
		p.Subscription.ExpiresAt = &t
	}
	if updatedAt.Valid {
		t := updatedAt.Time
		p.UpdatedAt = &t
	}
	return p, nil
}

// CreditCash adds to the player's balance outside of a purchase settlement
// (reward-ad credits). Purchase settlements credit inside their own
// transaction in PurchaseRepository.
func (r *PlayerRepository) CreditCash(ctx context.Context, playerID int, amount int64) error {
	if err := r.ensureSchema(ctx); err != nil {
		return err
	}
	if amount <= 0 {
		return fmt.Errorf("credit amount must be positive")
	}
	res, err := r.DB.ExecContext(ctx, `UPDATE players SET cash = cash + ? WHERE id = ?`, amount, playerID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return models.ErrPlayerNotFound
	}
	return nil
}

// SetSubscription replaces the player's subscription snapshot as a whole.
func (r *PlayerRepository) SetSubscription(ctx context.Context, playerID int, sub models.SubscriptionInfo) error {
	if err := r.ensureSchema(ctx); err != nil {
		return err
	}
	var expires *time.Time
	if sub.ExpiresAt != nil {
		t := *sub.ExpiresAt
		expires = &t
	}
	res, err := r.DB.ExecContext(ctx, `
UPDATE players
SET is_subscribed = ?, subscription_type = ?, subscription_id = ?, subscription_expires_at = ?
WHERE id = ?
`, sub.IsSubscribed, string(sub.Type), sub.SubscriptionID, expires, playerID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return models.ErrPlayerNotFound
	}
	return nil
}
