package main

import (
	"context"
	"time"
)

const sweeperTimeout = time.Minute

// startSubscriptionSweeper periodically downgrades players whose plan
// expired between purchases. Entitlement reads already deny lapsed plans on
// their own; the sweeper keeps the stored snapshots honest.
func startSubscriptionSweeper(ctx context.Context, app *application, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		runOnce := func() {
			runCtx, cancel := context.WithTimeout(ctx, sweeperTimeout)
			defer cancel()

			downgraded, err := app.subRepo.SweepExpired(runCtx, time.Now())
			if err != nil {
				app.errorLog.Printf("subscription sweeper: %v", err)
				return
			}
			if downgraded > 0 {
				app.infoLog.Printf("subscription sweeper: downgraded %d players", downgraded)
			}

			// Repair snapshot drift for players that still hold active
			// records, e.g. after a restore landed on another instance.
			playerIDs, err := app.subRepo.PlayersWithActiveRecords(runCtx)
			if err != nil {
				app.errorLog.Printf("subscription sweeper: list active: %v", err)
				return
			}
			for _, id := range playerIDs {
				if _, err := app.lifecycle.Reconcile(runCtx, id); err != nil {
					app.errorLog.Printf("subscription sweeper: reconcile player %d: %v", id, err)
				}
			}
		}

		runOnce()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				runOnce()
			}
		}
	}()
}
