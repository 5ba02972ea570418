package server

import (
	"errors"
	"sync"

	"ito-server/internal/game"
)

// RevealSessionManager holds the ephemeral reveal state, keyed by
// (room code, viewer token). Reveal state never reaches the room store:
// it belongs to one viewer's pacing of one verification, dies with the
// process, and is discarded on resubmission, continue, and restart.
type RevealSessionManager struct {
	reveals map[revealKey]*game.Reveal
	mu      sync.Mutex
}

type revealKey struct {
	RoomCode string
	Token    string
}

func NewRevealSessionManager() *RevealSessionManager {
	return &RevealSessionManager{
		reveals: make(map[revealKey]*game.Reveal),
	}
}

// Start replaces any reveal this viewer had for the room with a fresh
// one at position 0.
func (rs *RevealSessionManager) Start(roomCode, token string, round int, result *game.RoundResult) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.reveals[revealKey{roomCode, token}] = game.NewReveal(round, result)
}

// Advance reveals the next position for the viewer's session.
func (rs *RevealSessionManager) Advance(roomCode, token string) (game.CardReveal, bool, error) {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	reveal, exists := rs.reveals[revealKey{roomCode, token}]
	if !exists {
		return game.CardReveal{}, false, errors.New("NO_REVEAL: No reveal in progress")
	}

	card, err := reveal.Next()
	if err != nil {
		return game.CardReveal{}, true, err
	}
	return card, reveal.Done(), nil
}

// State returns the positions revealed so far and, once terminal, the
// aggregate summary. Reading never advances the reveal.
func (rs *RevealSessionManager) State(roomCode, token string) ([]game.CardReveal, *game.RevealSummary, error) {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	reveal, exists := rs.reveals[revealKey{roomCode, token}]
	if !exists {
		return nil, nil, errors.New("NO_REVEAL: No reveal in progress")
	}

	revealed := reveal.Revealed()
	if !reveal.Done() {
		return revealed, nil, nil
	}

	summary, err := reveal.Summary()
	if err != nil {
		return nil, nil, err
	}
	return revealed, &summary, nil
}

// Finish removes the viewer's reveal; only valid once it is terminal.
func (rs *RevealSessionManager) Finish(roomCode, token string) error {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	key := revealKey{roomCode, token}
	reveal, exists := rs.reveals[key]
	if !exists {
		return errors.New("NO_REVEAL: No reveal in progress")
	}
	if !reveal.Done() {
		return errors.New("REVEAL_INCOMPLETE: Cards remain to be revealed")
	}

	delete(rs.reveals, key)
	return nil
}

// DiscardRoom drops every reveal for a room, used on restart and when a
// round's order is resubmitted by another viewer.
func (rs *RevealSessionManager) DiscardRoom(roomCode string) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	for key := range rs.reveals {
		if key.RoomCode == roomCode {
			delete(rs.reveals, key)
		}
	}
}
