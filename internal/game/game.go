package game

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

type Status string

const (
	StatusWaiting  Status = "waiting"
	StatusPlaying  Status = "playing"
	StatusFinished Status = "finished"
)

const maxPlayerNameLength = 20

// RoundResult records one verification of a round's played order.
// Resubmitting an order for the same round overwrites the previous result.
type RoundResult struct {
	PlayedOrder  []int     `json:"played_order"`
	CorrectOrder []int     `json:"correct_order"`
	IsCorrect    bool      `json:"is_correct"`
	Timestamp    time.Time `json:"timestamp"`
}

// Game is the full state of one room. Round keys are ints in memory;
// encoding/json stringifies them in the persisted document.
type Game struct {
	RoomCode      string                   `json:"room_code"`
	Players       []string                 `json:"players"`
	CurrentRound  int                      `json:"current_round"`
	MaxRounds     int                      `json:"max_rounds"`
	CardsPerRound map[int]map[string][]int `json:"cards_per_round"`
	Results       map[int]*RoundResult     `json:"results"`
	Status        Status                   `json:"status"`
	CreatedAt     time.Time                `json:"created_at"`
}

// NewGame validates the room configuration and returns a fresh game in
// the waiting state. Player names must be unique: the order resolver
// identifies cards by player name, so a duplicate would be ambiguous for
// the whole life of the room.
func NewGame(roomCode string, players []string, maxRounds int) (*Game, error) {
	if len(players) < 2 {
		return nil, errors.New("INVALID_CONFIG: At least 2 players required")
	}
	if maxRounds < 1 {
		return nil, errors.New("INVALID_CONFIG: At least 1 round required")
	}

	seen := make(map[string]bool)
	for _, name := range players {
		if err := ValidatePlayerName(name); err != nil {
			return nil, err
		}
		if seen[name] {
			return nil, fmt.Errorf("DUPLICATE_PLAYER: Player name %q appears more than once", name)
		}
		seen[name] = true
	}

	return &Game{
		RoomCode:      roomCode,
		Players:       append([]string(nil), players...),
		CurrentRound:  1,
		MaxRounds:     maxRounds,
		CardsPerRound: make(map[int]map[string][]int),
		Results:       make(map[int]*RoundResult),
		Status:        StatusWaiting,
		CreatedAt:     time.Now(),
	}, nil
}

// ValidatePlayerName checks name requirements shared by room creation
// and join requests.
func ValidatePlayerName(name string) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("INVALID_CONFIG: Player name cannot be empty")
	}
	if len(name) > maxPlayerNameLength {
		return fmt.Errorf("INVALID_CONFIG: Player name too long (max %d characters)", maxPlayerNameLength)
	}
	return nil
}

// HasPlayer reports whether name is one of the room's players.
func (g *Game) HasPlayer(name string) bool {
	for _, p := range g.Players {
		if p == name {
			return true
		}
	}
	return false
}

// Distribute deals secret cards for the current round and moves the
// game to playing. Only valid while waiting; re-dealing a round that is
// already in play would silently replace hands players have seen.
func (g *Game) Distribute(pool Pool) error {
	if g.Status != StatusWaiting {
		return fmt.Errorf("INVALID_STATUS: Cannot distribute cards while %s", g.Status)
	}

	hands, err := DealRound(g.Players, g.CurrentRound, pool)
	if err != nil {
		return err
	}

	g.CardsPerRound[g.CurrentRound] = hands
	g.Status = StatusPlaying
	return nil
}

// Hands returns the per-player card assignment for the current round.
func (g *Game) Hands() (map[string][]int, bool) {
	hands, ok := g.CardsPerRound[g.CurrentRound]
	return hands, ok
}

// Hand returns a sorted copy of one player's hand for the current round.
func (g *Game) Hand(player string) ([]int, bool) {
	hands, ok := g.CardsPerRound[g.CurrentRound]
	if !ok {
		return nil, false
	}
	cards, ok := hands[player]
	if !ok {
		return nil, false
	}
	sorted := append([]int(nil), cards...)
	sort.Ints(sorted)
	return sorted, true
}

// SubmitOrder verifies a sequence of player-name selections against the
// current round's hands and records the result. Resubmission while the
// round is still playing overwrites the previous result.
func (g *Game) SubmitOrder(selections []string) (*RoundResult, error) {
	if g.Status != StatusPlaying {
		return nil, fmt.Errorf("INVALID_STATUS: Cannot verify order while %s", g.Status)
	}

	hands, ok := g.CardsPerRound[g.CurrentRound]
	if !ok {
		return nil, fmt.Errorf("NO_CARDS: No cards distributed for round %d", g.CurrentRound)
	}

	result, err := VerifyOrder(selections, hands)
	if err != nil {
		return nil, err
	}

	g.Results[g.CurrentRound] = result
	return result, nil
}

// AdvanceOrFinish moves to the next round, or finishes the game if the
// verified round was the last one. Requires a recorded result for the
// current round.
func (g *Game) AdvanceOrFinish() error {
	if g.Status != StatusPlaying {
		return fmt.Errorf("INVALID_STATUS: Cannot advance while %s", g.Status)
	}
	if _, ok := g.Results[g.CurrentRound]; !ok {
		return fmt.Errorf("NO_RESULT: Round %d has not been verified", g.CurrentRound)
	}

	if g.CurrentRound < g.MaxRounds {
		g.CurrentRound++
		g.Status = StatusWaiting
	} else {
		g.Status = StatusFinished
	}
	return nil
}

// Restart resets the game to round 1 in the waiting state, keeping the
// room code, players, and round count. Valid from any state.
func (g *Game) Restart() {
	g.CurrentRound = 1
	g.Status = StatusWaiting
	g.CardsPerRound = make(map[int]map[string][]int)
	g.Results = make(map[int]*RoundResult)
}

// Score returns how many verified rounds were fully correct, and how
// many were verified at all.
func (g *Game) Score() (correct, played int) {
	for _, result := range g.Results {
		played++
		if result.IsCorrect {
			correct++
		}
	}
	return correct, played
}
