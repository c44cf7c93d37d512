package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"raplifeBack/internal/catalog"
	"raplifeBack/internal/models"
	"raplifeBack/internal/purchase"
	"raplifeBack/internal/repositories"
	"raplifeBack/internal/services"
)

// processTimeout bounds one billing round trip, retries included.
const processTimeout = 2 * time.Minute

// StoreHandler exposes the store screen: catalog, the purchase attempt
// lifecycle and purchase history.
type StoreHandler struct {
	Catalog   *catalog.Catalog
	Manager   *purchase.Manager
	Purchases *repositories.PurchaseRepository
	Lifecycle *services.LifecycleService
}

func NewStoreHandler(cat *catalog.Catalog, manager *purchase.Manager, purchases *repositories.PurchaseRepository, lifecycle *services.LifecycleService) *StoreHandler {
	return &StoreHandler{Catalog: cat, Manager: manager, Purchases: purchases, Lifecycle: lifecycle}
}

// GetCatalog returns the store catalog. Prices are display strings; the
// provider remains the source of truth for charging.
func (h *StoreHandler) GetCatalog(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"items": h.Catalog.List()})
}

// SelectItem opens a purchase attempt for one catalog item.
func (h *StoreHandler) SelectItem(w http.ResponseWriter, r *http.Request) {
	playerID, ok := playerFromContext(r)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	var req struct {
		ProductID string `json:"product_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body: "+err.Error(), http.StatusBadRequest)
		return
	}
	item, err := h.Catalog.Get(req.ProductID)
	if err != nil {
		writeAttemptError(w, err)
		return
	}
	attempt, err := h.Manager.Pipeline(playerID).Select(item)
	if err != nil {
		writeAttemptError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, attempt)
}

// ConfirmAttempt moves the attempt past the confirmation dialog.
func (h *StoreHandler) ConfirmAttempt(w http.ResponseWriter, r *http.Request) {
	playerID, ok := playerFromContext(r)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	attempt, err := h.Manager.Pipeline(playerID).Confirm()
	if err != nil {
		writeAttemptError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, attempt)
}

// ProcessAttempt hands the confirmed attempt to the billing provider and
// returns the terminal attempt. The response is the settled truth: by the
// time it is written, any credit has committed.
func (h *StoreHandler) ProcessAttempt(w http.ResponseWriter, r *http.Request) {
	playerID, ok := playerFromContext(r)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	var req struct {
		PurchaseToken string `json:"purchase_token"`
	}
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	// Billing runs on its own deadline, not the request's. A dropped
	// connection must not cancel a charge already in flight; the attempt
	// still reaches a terminal state and the client re-reads it on reconnect.
	ctx, cancel := context.WithTimeout(context.Background(), processTimeout)
	defer cancel()
	attempt, err := h.Manager.Pipeline(playerID).Process(ctx, req.PurchaseToken)
	if err != nil {
		writeAttemptError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, attempt)
}

// AbandonAttempt cancels an attempt that has not started processing.
func (h *StoreHandler) AbandonAttempt(w http.ResponseWriter, r *http.Request) {
	playerID, ok := playerFromContext(r)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	attempt, err := h.Manager.Pipeline(playerID).Abandon()
	if err != nil {
		writeAttemptError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, attempt)
}

// GetAttempt returns the current attempt snapshot.
func (h *StoreHandler) GetAttempt(w http.ResponseWriter, r *http.Request) {
	playerID, ok := playerFromContext(r)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, h.Manager.Pipeline(playerID).Attempt())
}

// CloseAttempt acknowledges a terminal attempt and resets to idle.
func (h *StoreHandler) CloseAttempt(w http.ResponseWriter, r *http.Request) {
	playerID, ok := playerFromContext(r)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, h.Manager.Pipeline(playerID).Close())
}

// RestorePurchases re-confirms stored subscriptions with the provider.
func (h *StoreHandler) RestorePurchases(w http.ResponseWriter, r *http.Request) {
	playerID, ok := playerFromContext(r)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	sub, err := h.Lifecycle.Restore(r.Context(), playerID)
	if err != nil {
		// The snapshot is still the player's current truth; the client sees
		// both the error and the unchanged subscription.
		writeJSON(w, http.StatusBadGateway, map[string]any{
			"error":        "restore inconclusive",
			"subscription": sub,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"subscription": sub})
}

// GetHistory returns completed purchases, newest first.
func (h *StoreHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	playerID, ok := playerFromContext(r)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	records, err := h.Purchases.History(r.Context(), playerID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"purchases": records})
}

func writeAttemptError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrItemNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, models.ErrDuplicateAttempt):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, models.ErrInvalidTransition):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		http.Error(w, err.Error(), http.StatusBadRequest)
	}
}
