package server

import "ito-server/internal/game"

// ============================================================================
// ERROR RESPONSES
// ============================================================================
type ErrorMessage struct {
	Message string `json:"message"`
}

// ============================================================================
// CREATE ROOM (create_room)
// ============================================================================
type CreateRoomRequest struct {
	Players   []string `json:"players"`
	MaxRounds int      `json:"maxRounds"`
}

type CreateRoomResponse struct {
	RoomCode   string       `json:"roomCode"`
	AdminToken string       `json:"adminToken"`
	JoinLinks  []PlayerLink `json:"joinLinks"`
}

// PlayerLink is handed to the admin to distribute out-of-band. QRPath
// serves a scannable PNG of the same link.
type PlayerLink struct {
	Player string `json:"player"`
	URL    string `json:"url"`
	QRPath string `json:"qrPath"`
}

// ============================================================================
// JOIN ROOM (join_room)
// ============================================================================
type JoinRoomRequest struct {
	RoomCode string `json:"roomCode"`
	Player   string `json:"player"`
}

type JoinRoomResponse struct {
	RoomCode string `json:"roomCode"`
	Player   string `json:"player"`
	Token    string `json:"token"`
}

// ============================================================================
// LIST ROOMS (list_rooms)
// ============================================================================
type RoomSummary struct {
	RoomCode    string `json:"roomCode"`
	PlayerCount int    `json:"playerCount"`
	Status      string `json:"status"`
}

type ListRoomsResponse struct {
	Rooms []RoomSummary `json:"rooms"`
}

// ============================================================================
// GET STATE (get_state) - personalized per viewer role
// ============================================================================
type StateRequest struct {
	Token string `json:"token,omitempty"`
}

// RoomState is the admin view: all hands of the current round, sorted
// per player, plus every recorded result.
type RoomState struct {
	RoomCode      string                       `json:"roomCode"`
	Players       []string                     `json:"players"`
	CurrentRound  int                          `json:"currentRound"`
	MaxRounds     int                          `json:"maxRounds"`
	Status        string                       `json:"status"`
	Hands         map[string][]int             `json:"hands,omitempty"`
	Results       map[int]*game.RoundResult    `json:"results,omitempty"`
	CorrectRounds int                          `json:"correctRounds"`
	PlayedRounds  int                          `json:"playedRounds"`
}

// PlayerState is the player view: only the viewer's own hand.
type PlayerState struct {
	RoomCode      string `json:"roomCode"`
	Player        string `json:"player"`
	CurrentRound  int    `json:"currentRound"`
	MaxRounds     int    `json:"maxRounds"`
	Status        string `json:"status"`
	Hand          []int  `json:"hand,omitempty"`
	CorrectRounds int    `json:"correctRounds"`
	PlayedRounds  int    `json:"playedRounds"`
}

// ============================================================================
// SUBMIT ORDER (submit_order)
// ============================================================================
type SubmitOrderRequest struct {
	Token      string   `json:"token,omitempty"`
	Selections []string `json:"selections"`
}

// The verdict stays hidden until the reveal walks through it.
type SubmitOrderResponse struct {
	Round      int `json:"round"`
	TotalCards int `json:"totalCards"`
}

// ============================================================================
// REVEAL (reveal_next / reveal_state)
// ============================================================================
type RevealNextResponse struct {
	Card    game.CardReveal     `json:"card"`
	Done    bool                `json:"done"`
	Summary *game.RevealSummary `json:"summary,omitempty"`
}

type RevealStateResponse struct {
	Revealed []game.CardReveal   `json:"revealed"`
	Done     bool                `json:"done"`
	Summary  *game.RevealSummary `json:"summary,omitempty"`
}

// ============================================================================
// CONTINUE (continue_round)
// ============================================================================
type ContinueRoundResponse struct {
	CurrentRound int    `json:"currentRound"`
	Status       string `json:"status"`
}

// ============================================================================
// DISTRIBUTE (distribute_cards)
// ============================================================================
type DistributeCardsResponse struct {
	Round      int    `json:"round"`
	Status     string `json:"status"`
	TotalCards int    `json:"totalCards"`
}
