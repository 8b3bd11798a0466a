package handlers

import (
	"net/http"

	"github.com/jason-s-yu/babanuki/internal/game"
)

// ListRoomsHandler returns the public summary of every live room.
func ListRoomsHandler(store *game.RoomStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, http.StatusOK, store.Rooms())
	}
}

// HealthHandler reports liveness and the number of rooms.
func HealthHandler(store *game.RoomStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status": "ok",
			"rooms":  store.Len(),
		})
	}
}
