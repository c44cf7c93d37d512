package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"firebase.google.com/go/messaging"
	"github.com/redis/go-redis/v9"

	"raplifeBack/internal/billing"
	"raplifeBack/internal/catalog"
	"raplifeBack/internal/config"
	"raplifeBack/internal/handlers"
	"raplifeBack/internal/purchase"
	"raplifeBack/internal/repositories"
	"raplifeBack/internal/rewardads"
	"raplifeBack/internal/services"
	"raplifeBack/internal/ws"
	"raplifeBack/utils"
)

type application struct {
	errorLog *log.Logger
	infoLog  *log.Logger

	subRepo *repositories.SubscriptionRepository

	lifecycle *services.LifecycleService
	hub       *ws.StoreHub

	playerHandler      *handlers.PlayerHandler
	storeHandler       *handlers.StoreHandler
	entitlementHandler *handlers.EntitlementHandler
	rewardHandler      *handlers.RewardHandler

	tokens *utils.TokenManager
}

// printfLogger adapts the paired stdlib loggers to the Infof/Errorf
// interfaces the purchase and ws packages take.
type printfLogger struct {
	info *log.Logger
	err  *log.Logger
}

func (l printfLogger) Infof(format string, args ...interface{})  { l.info.Printf(format, args...) }
func (l printfLogger) Errorf(format string, args ...interface{}) { l.err.Printf(format, args...) }

func initializeApp(cfg config.Config, db *sql.DB, fcmClient *messaging.Client, errorLog, infoLog *log.Logger) (*application, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	playerRepo := repositories.NewPlayerRepository(db)
	purchaseRepo := repositories.NewPurchaseRepository(db)
	subRepo := repositories.NewSubscriptionRepository(db)
	for _, ensure := range []func(context.Context) error{
		playerRepo.EnsureSchema, purchaseRepo.EnsureSchema, subRepo.EnsureSchema,
	} {
		if err := ensure(ctx); err != nil {
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
	}

	cat, err := catalog.Load(cfg.Catalog.Path)
	if err != nil {
		return nil, err
	}

	adapter, adAdapter, err := newBillingAdapter(cfg, cat)
	if err != nil {
		return nil, err
	}

	tokens, err := utils.NewTokenManager(os.Getenv("JWT_SIGNING_KEY"))
	if err != nil {
		return nil, fmt.Errorf("jwt signing key: %w", err)
	}

	receipts, err := utils.NewReceiptArchiveFromEnv()
	if err != nil {
		errorLog.Printf("receipt archive disabled: %v", err)
	}

	hub := ws.NewStoreHub(printfLogger{info: infoLog, err: errorLog})
	notifier := &services.StoreNotifier{
		Hub:      hub,
		FCM:      fcmClient,
		Receipts: receipts,
		DB:       db,
		ErrorLog: errorLog,
	}

	lifecycle := &services.LifecycleService{
		Subs:     subRepo,
		Players:  playerRepo,
		Adapter:  adapter,
		InfoLog:  infoLog,
		ErrorLog: errorLog,
	}

	manager := purchase.NewManager(adapter, purchaseRepo, notifier, printfLogger{info: infoLog, err: errorLog})

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	rewards := &rewardads.Service{
		Adapter:      adAdapter,
		Wallet:       playerRepo,
		Subscription: subscriptionChecker{players: playerRepo},
		Redis:        rdb,
		RewardAmount: cfg.RewardAds.Amount,
		DedupTTL:     time.Duration(cfg.RewardAds.DedupTTL) * time.Hour,
		InfoLog:      infoLog,
		ErrorLog:     errorLog,
	}

	return &application{
		errorLog:           errorLog,
		infoLog:            infoLog,
		subRepo:            subRepo,
		lifecycle:          lifecycle,
		hub:                hub,
		playerHandler:      handlers.NewPlayerHandler(playerRepo, tokens),
		storeHandler:       handlers.NewStoreHandler(cat, manager, purchaseRepo, lifecycle),
		entitlementHandler: handlers.NewEntitlementHandler(playerRepo, purchaseRepo, lifecycle),
		rewardHandler:      handlers.NewRewardHandler(rewards, notifier),
		tokens:             tokens,
	}, nil
}

func newBillingAdapter(cfg config.Config, cat *catalog.Catalog) (billing.Adapter, billing.AdAdapter, error) {
	switch cfg.Billing.Provider {
	case "googleplay":
		creds := os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON")
		if creds == "" {
			return nil, nil, fmt.Errorf("GOOGLE_SERVICE_ACCOUNT_JSON is required for the googleplay provider")
		}
		gp, err := billing.NewGooglePlayAdapter(billing.GooglePlayConfig{
			PackageName:        cfg.Billing.PackageName,
			ServiceAccountJSON: creds,
			Logger:             slog.Default(),
		}, cat.List())
		if err != nil {
			return nil, nil, err
		}
		// Rewarded ads still run through the simulator on the backend: ad
		// readiness is a client-side fact for the native build.
		return gp, billing.NewSimulator(uint64(time.Now().UnixNano()), cat.List()), nil
	case "simulator":
		sim := billing.NewSimulator(uint64(time.Now().UnixNano()), cat.List())
		return sim, sim, nil
	default:
		return nil, nil, fmt.Errorf("unknown billing provider: %s", cfg.Billing.Provider)
	}
}

// subscriptionChecker adapts the player repository to the rewardads
// exclusion check.
type subscriptionChecker struct {
	players *repositories.PlayerRepository
}

func (c subscriptionChecker) IsSubscribed(ctx context.Context, playerID int) (bool, error) {
	player, err := c.players.GetByID(ctx, playerID)
	if err != nil {
		return false, err
	}
	return player.Subscription.ActiveAt(time.Now()), nil
}
