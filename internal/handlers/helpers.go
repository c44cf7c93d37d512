package handlers

import (
	"encoding/json"
	"net/http"
)

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// playerFromContext reads the player id the auth middleware stored.
func playerFromContext(r *http.Request) (int, bool) {
	id, _ := r.Context().Value("user_id").(int)
	return id, id != 0
}
