package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"ito-server/internal/game"
)

func (s *Server) RegisterRoutes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/", s.helloHandler)
	mux.HandleFunc("/health", s.healthHandler)
	mux.HandleFunc("/websocket", s.websocketHandler)
	mux.HandleFunc("/qr", s.qrHandler)

	return s.corsMiddleware(mux)
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) helloHandler(w http.ResponseWriter, r *http.Request) {
	resp := map[string]string{"message": "ito-server"}
	jsonResp, err := json.Marshal(resp)
	if err != nil {
		http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write(jsonResp); err != nil {
		log.Printf("Failed to write response: %v", err)
	}
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	health := map[string]interface{}{
		"status":      "up",
		"rooms":       len(s.roomManager.Rooms()),
		"connections": s.connectionManager.Count(),
		"persistence": s.store != nil,
	}
	resp, err := json.Marshal(health)
	if err != nil {
		http.Error(w, "Failed to marshal health check response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write(resp); err != nil {
		log.Printf("Failed to write response: %v", err)
	}
}

func (s *Server) websocketHandler(w http.ResponseWriter, r *http.Request) {
	socket, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		http.Error(w, "Failed to open websocket", http.StatusInternalServerError)
		return
	}
	defer socket.Close(websocket.StatusGoingAway, "Server closing")

	ctx := r.Context()

	connectionID := uuid.New().String()
	log.Printf("New connection: %s", connectionID)
	s.connectionManager.AddConnection(connectionID, socket)
	defer func() {
		s.connectionManager.RemoveConnection(connectionID)
		s.rateLimiter.RemoveConnection(connectionID)
		log.Printf("Connection closed: %s", connectionID)
	}()

	for {
		msgType, data, err := socket.Read(ctx)
		if err != nil {
			return
		}

		if msgType != websocket.MessageText {
			log.Printf("Non-text input from %s", connectionID)
			continue
		}

		if !s.rateLimiter.Allow(connectionID) {
			s.sendError(socket, ctx, "RATE_LIMITED: Too many requests, slow down")
			continue
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Printf("Invalid JSON from %s: %v", connectionID, err)
			s.sendError(socket, ctx, "Invalid JSON")
			continue
		}

		if err := ValidateMessageType(msg.Type); err != nil {
			s.sendError(socket, ctx, err.Error())
			continue
		}

		log.Printf("Message Type '%s' from %s", msg.Type, connectionID)

		switch msg.Type {
		case "ping":
			s.handlePing(socket, ctx, connectionID)

		case "create_room":
			s.handleCreateRoom(socket, ctx, connectionID, msg.Payload)

		case "join_room":
			s.handleJoinRoom(socket, ctx, connectionID, msg.Payload)

		case "list_rooms":
			s.handleListRooms(socket, ctx, connectionID)

		case "get_state":
			s.handleGetState(socket, ctx, connectionID, msg.Payload)

		case "distribute_cards":
			s.handleDistributeCards(socket, ctx, connectionID, msg.Payload)

		case "submit_order":
			s.handleSubmitOrder(socket, ctx, connectionID, msg.Payload)

		case "reveal_next":
			s.handleRevealNext(socket, ctx, connectionID, msg.Payload)

		case "reveal_state":
			s.handleRevealState(socket, ctx, connectionID, msg.Payload)

		case "continue_round":
			s.handleContinueRound(socket, ctx, connectionID, msg.Payload)

		case "restart":
			s.handleRestart(socket, ctx, connectionID, msg.Payload)
		}
	}
}

func (s *Server) sendMessage(socket *websocket.Conn, ctx context.Context, msg ServerMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal error: %w", err)
	}

	return socket.Write(ctx, websocket.MessageText, data)
}

func (s *Server) sendError(socket *websocket.Conn, ctx context.Context, msg string) {
	response := ServerMessage{
		Type: "error",
		Payload: ErrorMessage{
			Message: msg,
		},
	}

	if err := s.sendMessage(socket, ctx, response); err != nil {
		log.Printf("Failed to send error message: %v", err)
	}
}

func (s *Server) handlePing(socket *websocket.Conn, ctx context.Context, connectionID string) {
	response := ServerMessage{
		Type:    "pong",
		Payload: struct{}{},
	}

	if err := s.sendMessage(socket, ctx, response); err != nil {
		log.Printf("Failed to send pong to %s: %v", connectionID, err)
	}
}

// resolveToken prefers a token carried in the payload, falling back to
// the token the connection authenticated with earlier. Polling clients
// resend their token on every request; admins who just created a room
// may omit it.
func (s *Server) resolveToken(connectionID, explicit string) string {
	if explicit != "" {
		return explicit
	}
	return s.connectionManager.TokenFor(connectionID)
}

// adminSession resolves a token to an admin session or fails.
func (s *Server) adminSession(connectionID, explicit string) (SessionInfo, error) {
	token := s.resolveToken(connectionID, explicit)
	if token == "" {
		return SessionInfo{}, fmt.Errorf("TOKEN_NOT_FOUND: No viewer token supplied")
	}

	session, err := s.sessionManager.GetSession(token)
	if err != nil {
		return SessionInfo{}, err
	}
	if session.Role != RoleAdmin {
		return SessionInfo{}, fmt.Errorf("NOT_ADMIN: Only the room administrator can do that")
	}
	return session, nil
}

func (s *Server) handleCreateRoom(socket *websocket.Conn, ctx context.Context, connectionID string, payload json.RawMessage) {
	var req CreateRoomRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		s.sendError(socket, ctx, "Invalid create_room payload")
		return
	}

	room, token, err := s.roomManager.CreateRoom(req.Players, req.MaxRounds)
	if err != nil {
		s.sendError(socket, ctx, err.Error())
		return
	}

	roomCode := room.Game.RoomCode

	s.sessionManager.StoreSession(SessionInfo{
		Token:    token,
		RoomCode: roomCode,
		Role:     RoleAdmin,
	})
	s.connectionManager.BindToken(connectionID, token)

	links := make([]PlayerLink, 0, len(req.Players))
	for _, player := range req.Players {
		links = append(links, s.playerLink(roomCode, player))
	}

	response := ServerMessage{
		Type: "room_created",
		Payload: CreateRoomResponse{
			RoomCode:   roomCode,
			AdminToken: token,
			JoinLinks:  links,
		},
	}
	if err := s.sendMessage(socket, ctx, response); err != nil {
		log.Printf("Failed to send room_created: %v", err)
		return
	}

	s.persistRoom(room)
}

// playerLink builds the out-of-band join link for one player, plus the
// path of its QR rendering.
func (s *Server) playerLink(roomCode, player string) PlayerLink {
	query := url.Values{}
	query.Set("room", roomCode)
	query.Set("player", player)

	return PlayerLink{
		Player: player,
		URL:    fmt.Sprintf("%s/?%s", s.baseURL, query.Encode()),
		QRPath: fmt.Sprintf("/qr?%s", query.Encode()),
	}
}

func (s *Server) handleJoinRoom(socket *websocket.Conn, ctx context.Context, connectionID string, payload json.RawMessage) {
	var req JoinRoomRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		s.sendError(socket, ctx, "Invalid join_room payload")
		return
	}

	roomCode := NormalizeRoomCode(req.RoomCode)
	if err := ValidateRoomCode(roomCode); err != nil {
		s.sendError(socket, ctx, err.Error())
		return
	}

	room, err := s.roomManager.GetRoom(roomCode)
	if err != nil {
		s.sendError(socket, ctx, err.Error())
		return
	}

	known := false
	room.WithGame(func(g *game.Game) {
		known = g.HasPlayer(req.Player)
	})
	if !known {
		s.sendError(socket, ctx, fmt.Sprintf("UNKNOWN_PLAYER: %q is not registered in room %s", req.Player, roomCode))
		return
	}

	token := uuid.New().String()
	s.sessionManager.StoreSession(SessionInfo{
		Token:    token,
		RoomCode: roomCode,
		Role:     RolePlayer,
		Player:   req.Player,
	})
	s.connectionManager.BindToken(connectionID, token)

	response := ServerMessage{
		Type: "room_joined",
		Payload: JoinRoomResponse{
			RoomCode: roomCode,
			Player:   req.Player,
			Token:    token,
		},
	}
	if err := s.sendMessage(socket, ctx, response); err != nil {
		log.Printf("Failed to send room_joined: %v", err)
	}
}

func (s *Server) handleListRooms(socket *websocket.Conn, ctx context.Context, connectionID string) {
	response := ServerMessage{
		Type: "room_list",
		Payload: ListRoomsResponse{
			Rooms: s.roomManager.ListActiveRooms(),
		},
	}
	if err := s.sendMessage(socket, ctx, response); err != nil {
		log.Printf("Failed to send room_list to %s: %v", connectionID, err)
	}
}

func (s *Server) handleGetState(socket *websocket.Conn, ctx context.Context, connectionID string, payload json.RawMessage) {
	var req StateRequest
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &req); err != nil {
			s.sendError(socket, ctx, "Invalid get_state payload")
			return
		}
	}

	token := s.resolveToken(connectionID, req.Token)
	session, err := s.sessionManager.GetSession(token)
	if err != nil {
		s.sendError(socket, ctx, err.Error())
		return
	}

	room, err := s.roomManager.GetRoom(session.RoomCode)
	if err != nil {
		s.sendError(socket, ctx, err.Error())
		return
	}

	var response ServerMessage
	if session.Role == RoleAdmin {
		response = ServerMessage{Type: "room_state", Payload: buildAdminState(room)}
	} else {
		response = ServerMessage{Type: "player_state", Payload: buildPlayerState(room, session.Player)}
	}

	if err := s.sendMessage(socket, ctx, response); err != nil {
		log.Printf("Failed to send state to %s: %v", connectionID, err)
	}
}

// buildAdminState shows everything: all current-round hands (sorted for
// display) and every recorded result.
func buildAdminState(room *Room) RoomState {
	var state RoomState
	room.WithGame(func(g *game.Game) {
		correct, played := g.Score()
		state = RoomState{
			RoomCode:      g.RoomCode,
			Players:       append([]string(nil), g.Players...),
			CurrentRound:  g.CurrentRound,
			MaxRounds:     g.MaxRounds,
			Status:        string(g.Status),
			CorrectRounds: correct,
			PlayedRounds:  played,
		}

		if _, ok := g.Hands(); ok {
			hands := make(map[string][]int, len(g.Players))
			for _, player := range g.Players {
				if hand, ok := g.Hand(player); ok {
					hands[player] = hand
				}
			}
			state.Hands = hands
		}

		if len(g.Results) > 0 {
			results := make(map[int]*game.RoundResult, len(g.Results))
			for round, result := range g.Results {
				copied := *result
				results[round] = &copied
			}
			state.Results = results
		}
	})
	return state
}

// buildPlayerState shows a player only their own sorted hand. Other
// players' cards stay secret until the reveal.
func buildPlayerState(room *Room, player string) PlayerState {
	var state PlayerState
	room.WithGame(func(g *game.Game) {
		correct, played := g.Score()
		state = PlayerState{
			RoomCode:      g.RoomCode,
			Player:        player,
			CurrentRound:  g.CurrentRound,
			MaxRounds:     g.MaxRounds,
			Status:        string(g.Status),
			CorrectRounds: correct,
			PlayedRounds:  played,
		}

		if g.Status == game.StatusPlaying {
			if hand, ok := g.Hand(player); ok {
				state.Hand = hand
			}
		}
	})
	return state
}

func (s *Server) handleDistributeCards(socket *websocket.Conn, ctx context.Context, connectionID string, payload json.RawMessage) {
	var req StateRequest
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &req); err != nil {
			s.sendError(socket, ctx, "Invalid distribute_cards payload")
			return
		}
	}

	session, err := s.adminSession(connectionID, req.Token)
	if err != nil {
		s.sendError(socket, ctx, err.Error())
		return
	}

	if err := s.roomManager.DistributeCards(session.RoomCode); err != nil {
		s.sendError(socket, ctx, err.Error())
		return
	}

	room, err := s.roomManager.GetRoom(session.RoomCode)
	if err != nil {
		s.sendError(socket, ctx, err.Error())
		return
	}

	var resp DistributeCardsResponse
	room.WithGame(func(g *game.Game) {
		resp = DistributeCardsResponse{
			Round:      g.CurrentRound,
			Status:     string(g.Status),
			TotalCards: len(g.Players) * g.CurrentRound,
		}
	})

	if err := s.sendMessage(socket, ctx, ServerMessage{Type: "cards_distributed", Payload: resp}); err != nil {
		log.Printf("Failed to send cards_distributed: %v", err)
		return
	}

	s.persistRoom(room)
}

func (s *Server) handleSubmitOrder(socket *websocket.Conn, ctx context.Context, connectionID string, payload json.RawMessage) {
	var req SubmitOrderRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		s.sendError(socket, ctx, "Invalid submit_order payload")
		return
	}

	session, err := s.adminSession(connectionID, req.Token)
	if err != nil {
		s.sendError(socket, ctx, err.Error())
		return
	}

	result, err := s.roomManager.SubmitOrder(session.RoomCode, req.Selections)
	if err != nil {
		s.sendError(socket, ctx, err.Error())
		return
	}

	room, err := s.roomManager.GetRoom(session.RoomCode)
	if err != nil {
		s.sendError(socket, ctx, err.Error())
		return
	}

	var round int
	room.WithGame(func(g *game.Game) {
		round = g.CurrentRound
	})

	// A resubmission invalidates any reveal in progress for the room;
	// the submitter starts over from position 0.
	s.revealSessions.DiscardRoom(session.RoomCode)
	s.revealSessions.Start(session.RoomCode, session.Token, round, result)

	response := ServerMessage{
		Type: "order_submitted",
		Payload: SubmitOrderResponse{
			Round:      round,
			TotalCards: len(result.CorrectOrder),
		},
	}
	if err := s.sendMessage(socket, ctx, response); err != nil {
		log.Printf("Failed to send order_submitted: %v", err)
		return
	}

	s.persistRoom(room)
}

func (s *Server) handleRevealNext(socket *websocket.Conn, ctx context.Context, connectionID string, payload json.RawMessage) {
	var req StateRequest
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &req); err != nil {
			s.sendError(socket, ctx, "Invalid reveal_next payload")
			return
		}
	}

	session, err := s.adminSession(connectionID, req.Token)
	if err != nil {
		s.sendError(socket, ctx, err.Error())
		return
	}

	card, done, err := s.revealSessions.Advance(session.RoomCode, session.Token)
	if err != nil {
		s.sendError(socket, ctx, err.Error())
		return
	}

	resp := RevealNextResponse{Card: card, Done: done}
	if done {
		if _, summary, err := s.revealSessions.State(session.RoomCode, session.Token); err == nil {
			resp.Summary = summary
		}
	}

	if err := s.sendMessage(socket, ctx, ServerMessage{Type: "card_revealed", Payload: resp}); err != nil {
		log.Printf("Failed to send card_revealed: %v", err)
	}
}

func (s *Server) handleRevealState(socket *websocket.Conn, ctx context.Context, connectionID string, payload json.RawMessage) {
	var req StateRequest
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &req); err != nil {
			s.sendError(socket, ctx, "Invalid reveal_state payload")
			return
		}
	}

	session, err := s.adminSession(connectionID, req.Token)
	if err != nil {
		s.sendError(socket, ctx, err.Error())
		return
	}

	revealed, summary, err := s.revealSessions.State(session.RoomCode, session.Token)
	if err != nil {
		s.sendError(socket, ctx, err.Error())
		return
	}

	response := ServerMessage{
		Type: "reveal_state",
		Payload: RevealStateResponse{
			Revealed: revealed,
			Done:     summary != nil,
			Summary:  summary,
		},
	}
	if err := s.sendMessage(socket, ctx, response); err != nil {
		log.Printf("Failed to send reveal_state: %v", err)
	}
}

func (s *Server) handleContinueRound(socket *websocket.Conn, ctx context.Context, connectionID string, payload json.RawMessage) {
	var req StateRequest
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &req); err != nil {
			s.sendError(socket, ctx, "Invalid continue_round payload")
			return
		}
	}

	session, err := s.adminSession(connectionID, req.Token)
	if err != nil {
		s.sendError(socket, ctx, err.Error())
		return
	}

	// Continue is only valid once the reveal reached its terminal state.
	if err := s.revealSessions.Finish(session.RoomCode, session.Token); err != nil {
		s.sendError(socket, ctx, err.Error())
		return
	}

	round, status, err := s.roomManager.AdvanceOrFinish(session.RoomCode)
	if err != nil {
		s.sendError(socket, ctx, err.Error())
		return
	}

	response := ServerMessage{
		Type: "round_advanced",
		Payload: ContinueRoundResponse{
			CurrentRound: round,
			Status:       string(status),
		},
	}
	if err := s.sendMessage(socket, ctx, response); err != nil {
		log.Printf("Failed to send round_advanced: %v", err)
	}

	if room, err := s.roomManager.GetRoom(session.RoomCode); err == nil {
		s.persistRoom(room)
	}
}

func (s *Server) handleRestart(socket *websocket.Conn, ctx context.Context, connectionID string, payload json.RawMessage) {
	var req StateRequest
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &req); err != nil {
			s.sendError(socket, ctx, "Invalid restart payload")
			return
		}
	}

	session, err := s.adminSession(connectionID, req.Token)
	if err != nil {
		s.sendError(socket, ctx, err.Error())
		return
	}

	if err := s.roomManager.Restart(session.RoomCode); err != nil {
		s.sendError(socket, ctx, err.Error())
		return
	}
	s.revealSessions.DiscardRoom(session.RoomCode)

	response := ServerMessage{
		Type: "room_restarted",
		Payload: ContinueRoundResponse{
			CurrentRound: 1,
			Status:       string(game.StatusWaiting),
		},
	}
	if err := s.sendMessage(socket, ctx, response); err != nil {
		log.Printf("Failed to send room_restarted: %v", err)
	}

	if room, err := s.roomManager.GetRoom(session.RoomCode); err == nil {
		s.persistRoom(room)
	}
}
