// Package rewardads credits small cash rewards for watched ads. The path is
// fire-and-forget from the player's point of view: no attempt, no record,
// just a deduplicated wallet credit.
package rewardads

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"raplifeBack/internal/billing"
	"raplifeBack/internal/models"
)

// Wallet credits cash outside of a purchase settlement.
type Wallet interface {
	CreditCash(ctx context.Context, playerID int, amount int64) error
}

// SubscriptionChecker reports whether the player currently holds a paid plan.
// Subscribers never see ads, so they never earn ad rewards.
type SubscriptionChecker interface {
	IsSubscribed(ctx context.Context, playerID int) (bool, error)
}

type Service struct {
	Adapter      billing.AdAdapter
	Wallet       Wallet
	Subscription SubscriptionChecker
	Redis        *redis.Client
	RewardAmount int64
	DedupTTL     time.Duration
	InfoLog      *log.Logger
	ErrorLog     *log.Logger
}

// Ready reports whether a rewarded ad can be shown to this player right now.
func (s *Service) Ready(ctx context.Context, playerID int) (bool, error) {
	subscribed, err := s.Subscription.IsSubscribed(ctx, playerID)
	if err != nil {
		return false, err
	}
	if subscribed {
		return false, nil
	}
	return s.Adapter.IsRewardedAdReady(), nil
}

// Watch shows a rewarded ad and credits the reward through Claim when the
// provider reports a completed view.
func (s *Service) Watch(ctx context.Context, playerID int) (int64, error) {
	subscribed, err := s.Subscription.IsSubscribed(ctx, playerID)
	if err != nil {
		return 0, err
	}
	if subscribed {
		return 0, models.ErrSubscriberExcluded
	}
	if !s.Adapter.IsRewardedAdReady() {
		return 0, models.ErrAdNotReady
	}

	var claimErr error
	shown, err := s.Adapter.ShowRewarded(ctx, func(viewToken string) {
		claimErr = s.Claim(ctx, playerID, viewToken)
	})
	if err != nil {
		return 0, err
	}
	if !shown {
		return 0, models.ErrAdNotReady
	}
	if claimErr != nil {
		return 0, claimErr
	}
	return s.RewardAmount, nil
}

// Claim credits one ad view. The view token is the dedup key: a token that
// was already claimed is a no-op error, the balance moves at most once per
// view no matter how often the client retries. Subscribers are rejected here
// too, so the native path that sends its own view token cannot slip past the
// exclusion in Watch.
func (s *Service) Claim(ctx context.Context, playerID int, viewToken string) error {
	if viewToken == "" {
		return fmt.Errorf("view token is required")
	}
	subscribed, err := s.Subscription.IsSubscribed(ctx, playerID)
	if err != nil {
		return err
	}
	if subscribed {
		return models.ErrSubscriberExcluded
	}
	key := fmt.Sprintf("reward_ad:view:%s", viewToken)
	ok, err := s.Redis.SetNX(ctx, key, playerID, s.DedupTTL).Result()
	if err != nil {
		return fmt.Errorf("reward dedup: %w", err)
	}
	if !ok {
		s.InfoLog.Printf("reward ad: view %s already claimed", viewToken)
		return models.ErrRewardAlreadyGiven
	}
	if err := s.Wallet.CreditCash(ctx, playerID, s.RewardAmount); err != nil {
		// Release the token so a retry can credit after a transient failure.
		if delErr := s.Redis.Del(ctx, key).Err(); delErr != nil {
			s.ErrorLog.Printf("reward ad: release token %s: %v", viewToken, delErr)
		}
		return err
	}
	s.InfoLog.Printf("reward ad: credited %d to player %d for view %s", s.RewardAmount, playerID, viewToken)
	return nil
}
