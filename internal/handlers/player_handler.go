package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"raplifeBack/internal/models"
	"raplifeBack/internal/repositories"
	"raplifeBack/utils"
)

const accessTokenTTL = 24 * time.Hour

// PlayerHandler covers sign-up, sign-in and device registration.
type PlayerHandler struct {
	Players *repositories.PlayerRepository
	Tokens  *utils.TokenManager
}

func NewPlayerHandler(players *repositories.PlayerRepository, tokens *utils.TokenManager) *PlayerHandler {
	return &PlayerHandler{Players: players, Tokens: tokens}
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (c credentials) validate() error {
	if strings.TrimSpace(c.Username) == "" || len(c.Password) < 6 {
		return errors.New("username and a password of at least 6 characters are required")
	}
	return nil
}

func (h *PlayerHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := req.validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	player, err := h.Players.Create(r.Context(), strings.TrimSpace(req.Username), string(hash))
	if err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	h.respondWithToken(w, player)
}

func (h *PlayerHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body: "+err.Error(), http.StatusBadRequest)
		return
	}
	player, err := h.Players.GetByUsername(r.Context(), strings.TrimSpace(req.Username))
	if err != nil {
		if errors.Is(err, models.ErrPlayerNotFound) {
			http.Error(w, models.ErrInvalidCredentials.Error(), http.StatusUnauthorized)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(player.PasswordHash), []byte(req.Password)) != nil {
		http.Error(w, models.ErrInvalidCredentials.Error(), http.StatusUnauthorized)
		return
	}
	h.respondWithToken(w, player)
}

// RegisterDevice stores an FCM token for purchase notifications.
func (h *PlayerHandler) RegisterDevice(w http.ResponseWriter, r *http.Request) {
	playerID, ok := playerFromContext(r)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	var req struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.Players.SaveDeviceToken(r.Context(), playerID, req.Token); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetProfile returns the player as the game sees them.
func (h *PlayerHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	playerID, ok := playerFromContext(r)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	player, err := h.Players.GetByID(r.Context(), playerID)
	if err != nil {
		if errors.Is(err, models.ErrPlayerNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, player)
}

func (h *PlayerHandler) respondWithToken(w http.ResponseWriter, player models.Player) {
	token, err := h.Tokens.NewJWT(player.ID, accessTokenTTL)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"access_token": token,
		"player":       player,
	})
}
