package main

import (
	"net/http"

	"github.com/bmizerany/pat"
	"github.com/justinas/alice"
)

func (app *application) routes() http.Handler {
	standardMiddleware := alice.New(app.recoverPanic, app.logRequest, secureHeaders, makeResponseJSON)
	authMiddleware := standardMiddleware.Append(app.jwtMiddleware)

	mux := pat.New()

	// Players
	mux.Post("/player/sign_up", standardMiddleware.ThenFunc(app.playerHandler.SignUp))
	mux.Post("/player/sign_in", standardMiddleware.ThenFunc(app.playerHandler.SignIn))
	mux.Get("/player/profile", authMiddleware.ThenFunc(app.playerHandler.GetProfile))
	mux.Post("/player/device_token", authMiddleware.ThenFunc(app.playerHandler.RegisterDevice))

	// Store
	mux.Get("/store/catalog", standardMiddleware.ThenFunc(app.storeHandler.GetCatalog))
	mux.Post("/store/attempt", authMiddleware.ThenFunc(app.storeHandler.SelectItem))
	mux.Get("/store/attempt", authMiddleware.ThenFunc(app.storeHandler.GetAttempt))
	mux.Del("/store/attempt", authMiddleware.ThenFunc(app.storeHandler.AbandonAttempt))
	mux.Post("/store/attempt/confirm", authMiddleware.ThenFunc(app.storeHandler.ConfirmAttempt))
	mux.Post("/store/attempt/process", authMiddleware.ThenFunc(app.storeHandler.ProcessAttempt))
	mux.Post("/store/attempt/close", authMiddleware.ThenFunc(app.storeHandler.CloseAttempt))
	mux.Post("/store/restore", authMiddleware.ThenFunc(app.storeHandler.RestorePurchases))
	mux.Get("/store/history", authMiddleware.ThenFunc(app.storeHandler.GetHistory))

	// Entitlements
	mux.Get("/entitlements", authMiddleware.ThenFunc(app.entitlementHandler.GetEntitlements))

	// Rewarded ads
	mux.Get("/rewards/ready", authMiddleware.ThenFunc(app.rewardHandler.GetReady))
	mux.Post("/rewards/claim", authMiddleware.ThenFunc(app.rewardHandler.ClaimReward))

	// Store events
	mux.Get("/ws/store", authMiddleware.ThenFunc(app.hub.ServeWS))

	return mux
}
