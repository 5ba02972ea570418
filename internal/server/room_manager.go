package server

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"ito-server/internal/game"
)

// RoomManager owns every active room. The map is guarded by rm.mu; each
// room additionally carries its own lock so that a read-modify-write on
// one room never races another client of the same room, and never
// blocks clients of other rooms. This replaces the last-writer-wins
// semantics a bare load/mutate/save store would have.
type RoomManager struct {
	rooms     map[string]*Room
	usedCodes map[string]bool
	pool      game.Pool
	mu        sync.RWMutex
}

// Room pairs a game with its admin token and per-room lock.
type Room struct {
	Game       *game.Game
	AdminToken string
	UpdatedAt  time.Time
	mu         sync.Mutex
}

// WithGame runs fn while holding the room lock. All reads and writes of
// the game state go through here, including persistence marshaling.
func (r *Room) WithGame(fn func(g *game.Game)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(r.Game)
}

func NewRoomManager(pool game.Pool) *RoomManager {
	if !pool.Valid() {
		pool = game.DefaultPool
	}
	return &RoomManager{
		rooms:     make(map[string]*Room),
		usedCodes: make(map[string]bool),
		pool:      pool,
	}
}

func (rm *RoomManager) Pool() game.Pool {
	return rm.pool
}

// CreateRoom generates a unique code, validates the configuration, and
// registers the room. Returns the room and the admin token that
// controls it.
func (rm *RoomManager) CreateRoom(players []string, maxRounds int) (*Room, string, error) {
	rm.mu.Lock()
	roomCode := GenerateRoomCode(rm.usedCodes)
	rm.usedCodes[roomCode] = true
	rm.mu.Unlock()

	g, err := game.NewGame(roomCode, players, maxRounds)
	if err != nil {
		rm.mu.Lock()
		delete(rm.usedCodes, roomCode)
		rm.mu.Unlock()
		return nil, "", err
	}

	token := uuid.New().String()
	room := &Room{
		Game:       g,
		AdminToken: token,
		UpdatedAt:  time.Now(),
	}

	rm.mu.Lock()
	rm.rooms[roomCode] = room
	rm.mu.Unlock()

	return room, token, nil
}

// RestoreRoom re-registers a room loaded from the store at startup. The
// admin token is not persisted; a fresh one is issued and returned so
// logs can surface it for the administrator to reclaim the room.
func (rm *RoomManager) RestoreRoom(g *game.Game) string {
	token := uuid.New().String()
	room := &Room{
		Game:       g,
		AdminToken: token,
		UpdatedAt:  time.Now(),
	}

	rm.mu.Lock()
	rm.rooms[g.RoomCode] = room
	rm.usedCodes[g.RoomCode] = true
	rm.mu.Unlock()

	return token
}

func (rm *RoomManager) GetRoom(roomCode string) (*Room, error) {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	room, exists := rm.rooms[roomCode]
	if !exists {
		return nil, errors.New("ROOM_NOT_FOUND: Room not found")
	}

	return room, nil
}

// Rooms returns a snapshot of all registered rooms.
func (rm *RoomManager) Rooms() []*Room {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	rooms := make([]*Room, 0, len(rm.rooms))
	for _, room := range rm.rooms {
		rooms = append(rooms, room)
	}
	return rooms
}

// ListActiveRooms summarizes every room that has not finished, for the
// join screen.
func (rm *RoomManager) ListActiveRooms() []RoomSummary {
	rm.mu.RLock()
	rooms := make([]*Room, 0, len(rm.rooms))
	for _, room := range rm.rooms {
		rooms = append(rooms, room)
	}
	rm.mu.RUnlock()

	summaries := make([]RoomSummary, 0, len(rooms))
	for _, room := range rooms {
		room.WithGame(func(g *game.Game) {
			if g.Status == game.StatusFinished {
				return
			}
			summaries = append(summaries, RoomSummary{
				RoomCode:    g.RoomCode,
				PlayerCount: len(g.Players),
				Status:      string(g.Status),
			})
		})
	}
	return summaries
}

// RemoveRoom drops a room from memory and frees its code for reuse.
func (rm *RoomManager) RemoveRoom(roomCode string) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	delete(rm.rooms, roomCode)
	delete(rm.usedCodes, roomCode)
}

// DistributeCards deals the current round for a room.
func (rm *RoomManager) DistributeCards(roomCode string) error {
	room, err := rm.GetRoom(roomCode)
	if err != nil {
		return err
	}

	var distErr error
	room.WithGame(func(g *game.Game) {
		distErr = g.Distribute(rm.pool)
		if distErr == nil {
			room.UpdatedAt = time.Now()
		}
	})
	return distErr
}

// SubmitOrder verifies a played order for a room's current round.
func (rm *RoomManager) SubmitOrder(roomCode string, selections []string) (*game.RoundResult, error) {
	room, err := rm.GetRoom(roomCode)
	if err != nil {
		return nil, err
	}

	var result *game.RoundResult
	var submitErr error
	room.WithGame(func(g *game.Game) {
		result, submitErr = g.SubmitOrder(selections)
		if submitErr == nil {
			room.UpdatedAt = time.Now()
		}
	})
	return result, submitErr
}

// AdvanceOrFinish ends the current round after a completed reveal.
// Returns the new current round and status.
func (rm *RoomManager) AdvanceOrFinish(roomCode string) (int, game.Status, error) {
	room, err := rm.GetRoom(roomCode)
	if err != nil {
		return 0, "", err
	}

	var round int
	var status game.Status
	var advErr error
	room.WithGame(func(g *game.Game) {
		advErr = g.AdvanceOrFinish()
		round = g.CurrentRound
		status = g.Status
		if advErr == nil {
			room.UpdatedAt = time.Now()
		}
	})
	return round, status, advErr
}

// Restart resets a room to round 1, preserving its configuration.
func (rm *RoomManager) Restart(roomCode string) error {
	room, err := rm.GetRoom(roomCode)
	if err != nil {
		return err
	}

	room.WithGame(func(g *game.Game) {
		g.Restart()
		room.UpdatedAt = time.Now()
	})
	return nil
}
