package handlers

import (
	"net/http"

	"raplifeBack/internal/entitlement"
	"raplifeBack/internal/repositories"
	"raplifeBack/internal/services"
)

// EntitlementHandler answers "what can this player access right now".
type EntitlementHandler struct {
	Players   *repositories.PlayerRepository
	Purchases *repositories.PurchaseRepository
	Lifecycle *services.LifecycleService
}

func NewEntitlementHandler(players *repositories.PlayerRepository, purchases *repositories.PurchaseRepository, lifecycle *services.LifecycleService) *EntitlementHandler {
	return &EntitlementHandler{Players: players, Purchases: purchases, Lifecycle: lifecycle}
}

// GetEntitlements returns the subscription snapshot, the per-tier access
// map, remaining time and unlocked one-time features in one response, so
// the client never derives access on its own.
func (h *EntitlementHandler) GetEntitlements(w http.ResponseWriter, r *http.Request) {
	playerID, ok := playerFromContext(r)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	sub, remaining, err := h.Lifecycle.Status(r.Context(), playerID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	features, err := h.Purchases.Features(r.Context(), playerID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"subscription": sub,
		"access":       entitlement.AccessMap(sub),
		"remaining":    remaining,
		"features":     features,
	})
}
