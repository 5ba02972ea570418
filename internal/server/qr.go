package server

import (
	"fmt"
	"log"
	"net/http"
	"net/url"

	"github.com/skip2/go-qrcode"

	"ito-server/internal/game"
)

// qrHandler renders a player's join link as a PNG so the admin can show
// the code on one screen and let players scan in. GET /qr?room=X&player=Y.
func (s *Server) qrHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	roomCode := NormalizeRoomCode(r.URL.Query().Get("room"))
	player := r.URL.Query().Get("player")

	if err := ValidateRoomCode(roomCode); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	room, err := s.roomManager.GetRoom(roomCode)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	known := false
	room.WithGame(func(g *game.Game) {
		known = g.HasPlayer(player)
	})
	if !known {
		http.Error(w, fmt.Sprintf("UNKNOWN_PLAYER: %q is not registered in room %s", player, roomCode), http.StatusNotFound)
		return
	}

	query := url.Values{}
	query.Set("room", roomCode)
	query.Set("player", player)
	joinURL := fmt.Sprintf("%s/?%s", s.baseURL, query.Encode())

	png, err := qrcode.Encode(joinURL, qrcode.Medium, 256)
	if err != nil {
		http.Error(w, "Failed to render QR code", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	if _, err := w.Write(png); err != nil {
		log.Printf("Failed to write QR response: %v", err)
	}
}
