package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"raplifeBack/internal/models"
	"raplifeBack/internal/rewardads"
	"raplifeBack/internal/services"
)

// RewardHandler exposes the rewarded-ad credit path.
type RewardHandler struct {
	Service  *rewardads.Service
	Notifier *services.StoreNotifier
}

func NewRewardHandler(service *rewardads.Service, notifier *services.StoreNotifier) *RewardHandler {
	return &RewardHandler{Service: service, Notifier: notifier}
}

// GetReady reports whether a rewarded ad is available for this player.
func (h *RewardHandler) GetReady(w http.ResponseWriter, r *http.Request) {
	playerID, ok := playerFromContext(r)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	ready, err := h.Service.Ready(r.Context(), playerID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ready": ready})
}

// ClaimReward credits one watched ad. The native build sends the provider's
// view token; the simulator path omits it and plays the ad server-side.
func (h *RewardHandler) ClaimReward(w http.ResponseWriter, r *http.Request) {
	playerID, ok := playerFromContext(r)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	var req models.RewardClaim
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	var amount int64
	var err error
	if req.ViewToken != "" {
		err = h.Service.Claim(r.Context(), playerID, req.ViewToken)
		amount = h.Service.RewardAmount
	} else {
		amount, err = h.Service.Watch(r.Context(), playerID)
	}
	if err != nil {
		switch {
		case errors.Is(err, models.ErrSubscriberExcluded):
			http.Error(w, err.Error(), http.StatusForbidden)
		case errors.Is(err, models.ErrAdNotReady):
			http.Error(w, err.Error(), http.StatusConflict)
		case errors.Is(err, models.ErrRewardAlreadyGiven):
			http.Error(w, err.Error(), http.StatusConflict)
		default:
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}
	if h.Notifier != nil {
		h.Notifier.RewardCredited(playerID, amount)
	}
	writeJSON(w, http.StatusOK, map[string]int64{"amount": amount})
}
