package game_test

import (
	"slices"
	"strings"
	"testing"

	"ito-server/internal/game"
)

func newTestGame(t *testing.T, players []string, maxRounds int) *game.Game {
	t.Helper()
	g, err := game.NewGame("ROOM01", players, maxRounds)
	if err != nil {
		t.Fatalf("NewGame failed: %v", err)
	}
	return g
}

func TestNewGameDefaults(t *testing.T) {
	g := newTestGame(t, []string{"Alice", "Bob"}, 5)

	if g.Status != game.StatusWaiting {
		t.Errorf("Status = %s, want waiting", g.Status)
	}
	if g.CurrentRound != 1 {
		t.Errorf("CurrentRound = %d, want 1", g.CurrentRound)
	}
	if g.CreatedAt.IsZero() {
		t.Error("CreatedAt not set")
	}
	if len(g.CardsPerRound) != 0 || len(g.Results) != 0 {
		t.Error("New game should have no dealt cards or results")
	}
}

func TestNewGameValidation(t *testing.T) {
	var tests = []struct {
		name      string
		players   []string
		maxRounds int
		wantCode  string
	}{
		{"too few players", []string{"Alice"}, 3, "INVALID_CONFIG"},
		{"zero rounds", []string{"Alice", "Bob"}, 0, "INVALID_CONFIG"},
		{"empty name", []string{"Alice", "  "}, 3, "INVALID_CONFIG"},
		{"long name", []string{"Alice", strings.Repeat("x", 21)}, 3, "INVALID_CONFIG"},
		{"duplicate names", []string{"Alice", "Bob", "Alice"}, 3, "DUPLICATE_PLAYER"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := game.NewGame("ROOM01", tt.players, tt.maxRounds)
			if err == nil {
				t.Fatal("Expected error, got nil")
			}
			if !strings.HasPrefix(err.Error(), tt.wantCode) {
				t.Errorf("Expected %s error, got %v", tt.wantCode, err)
			}
		})
	}
}

func TestDistributeMovesToPlaying(t *testing.T) {
	g := newTestGame(t, []string{"Alice", "Bob"}, 3)

	if err := g.Distribute(game.DefaultPool); err != nil {
		t.Fatalf("Distribute failed: %v", err)
	}

	if g.Status != game.StatusPlaying {
		t.Errorf("Status = %s, want playing", g.Status)
	}
	hands, ok := g.Hands()
	if !ok {
		t.Fatal("No hands for current round after distribution")
	}
	if len(hands["Alice"]) != 1 || len(hands["Bob"]) != 1 {
		t.Errorf("Round 1 hands should hold 1 card each: %v", hands)
	}
}

func TestDistributeRejectedWhilePlaying(t *testing.T) {
	g := newTestGame(t, []string{"Alice", "Bob"}, 3)
	g.Distribute(game.DefaultPool)

	err := g.Distribute(game.DefaultPool)
	if err == nil {
		t.Fatal("Re-distribution while playing should be rejected")
	}
	if !strings.HasPrefix(err.Error(), "INVALID_STATUS") {
		t.Errorf("Expected INVALID_STATUS error, got %v", err)
	}
}

func TestDistributeCapacityLeavesStateUnchanged(t *testing.T) {
	g := newTestGame(t, []string{"Alice", "Bob", "Charlie"}, 10)

	// 3 players * round 1 > pool of 2
	err := g.Distribute(game.Pool{Min: 1, Max: 2})
	if err == nil {
		t.Fatal("Expected capacity error, got nil")
	}
	if !strings.HasPrefix(err.Error(), "CAPACITY_EXCEEDED") {
		t.Errorf("Expected CAPACITY_EXCEEDED error, got %v", err)
	}
	if g.Status != game.StatusWaiting {
		t.Errorf("Failed distribution must not change status, got %s", g.Status)
	}
	if _, ok := g.Hands(); ok {
		t.Error("Failed distribution must not store hands")
	}
}

func TestSubmitOrderRequiresPlaying(t *testing.T) {
	g := newTestGame(t, []string{"Alice", "Bob"}, 3)

	_, err := g.SubmitOrder([]string{"Alice", "Bob"})
	if err == nil {
		t.Fatal("Submission while waiting should be rejected")
	}
	if !strings.HasPrefix(err.Error(), "INVALID_STATUS") {
		t.Errorf("Expected INVALID_STATUS error, got %v", err)
	}
}

func TestSubmitOrderOverwritesResult(t *testing.T) {
	g := newTestGame(t, []string{"Alice", "Bob"}, 3)
	g.CardsPerRound[1] = map[string][]int{"Alice": {10}, "Bob": {20}}
	g.Status = game.StatusPlaying

	first, err := g.SubmitOrder([]string{"Bob", "Alice"})
	if err != nil {
		t.Fatalf("SubmitOrder failed: %v", err)
	}
	if first.IsCorrect {
		t.Error("Reversed order should be incorrect")
	}

	second, err := g.SubmitOrder([]string{"Alice", "Bob"})
	if err != nil {
		t.Fatalf("Resubmission failed: %v", err)
	}
	if !second.IsCorrect {
		t.Error("Corrected order should be correct")
	}
	if g.Results[1] != second {
		t.Error("Resubmission should overwrite the stored result")
	}
}

func TestAdvanceOrFinishProgression(t *testing.T) {
	g := newTestGame(t, []string{"Alice", "Bob"}, 2)
	g.CardsPerRound[1] = map[string][]int{"Alice": {10}, "Bob": {20}}
	g.Status = game.StatusPlaying
	g.SubmitOrder([]string{"Alice", "Bob"})

	if err := g.AdvanceOrFinish(); err != nil {
		t.Fatalf("AdvanceOrFinish failed: %v", err)
	}
	if g.CurrentRound != 2 || g.Status != game.StatusWaiting {
		t.Errorf("After round 1: round=%d status=%s, want 2/waiting", g.CurrentRound, g.Status)
	}

	// Final round: finish instead of advancing
	g.CardsPerRound[2] = map[string][]int{"Alice": {5, 30}, "Bob": {10, 40}}
	g.Status = game.StatusPlaying
	g.SubmitOrder([]string{"Alice", "Bob", "Alice", "Bob"})

	if err := g.AdvanceOrFinish(); err != nil {
		t.Fatalf("AdvanceOrFinish failed: %v", err)
	}
	if g.Status != game.StatusFinished {
		t.Errorf("Status = %s, want finished", g.Status)
	}
	if g.CurrentRound != 2 {
		t.Errorf("Finishing must not change CurrentRound, got %d", g.CurrentRound)
	}
}

func TestAdvanceRequiresResult(t *testing.T) {
	g := newTestGame(t, []string{"Alice", "Bob"}, 2)
	g.Distribute(game.DefaultPool)

	err := g.AdvanceOrFinish()
	if err == nil {
		t.Fatal("Advance without a verified result should be rejected")
	}
	if !strings.HasPrefix(err.Error(), "NO_RESULT") {
		t.Errorf("Expected NO_RESULT error, got %v", err)
	}
}

func TestRestartPreservesConfiguration(t *testing.T) {
	g := newTestGame(t, []string{"Alice", "Bob"}, 1)
	g.Distribute(game.DefaultPool)
	hands, _ := g.Hands()

	holder := make(map[int]string)
	for player, cards := range hands {
		for _, card := range cards {
			holder[card] = player
		}
	}
	correct := game.CorrectOrder(hands)
	selections := make([]string, 0, len(correct))
	for _, card := range correct {
		selections = append(selections, holder[card])
	}
	g.SubmitOrder(selections)
	g.AdvanceOrFinish()

	if g.Status != game.StatusFinished {
		t.Fatalf("Expected finished game, got %s", g.Status)
	}

	g.Restart()

	if g.CurrentRound != 1 || g.Status != game.StatusWaiting {
		t.Errorf("Restart: round=%d status=%s, want 1/waiting", g.CurrentRound, g.Status)
	}
	if len(g.CardsPerRound) != 0 || len(g.Results) != 0 {
		t.Error("Restart must clear cards and results")
	}
	if g.RoomCode != "ROOM01" || g.MaxRounds != 1 {
		t.Error("Restart must preserve room code and max rounds")
	}
	if !slices.Equal(g.Players, []string{"Alice", "Bob"}) {
		t.Error("Restart must preserve players")
	}
}

func TestHandReturnsSortedCopy(t *testing.T) {
	g := newTestGame(t, []string{"Alice", "Bob"}, 3)
	g.CardsPerRound[1] = map[string][]int{"Alice": {50, 10, 30}, "Bob": {20, 5, 60}}

	hand, ok := g.Hand("Alice")
	if !ok {
		t.Fatal("Expected Alice's hand")
	}
	if !slices.Equal(hand, []int{10, 30, 50}) {
		t.Errorf("Hand = %v, want sorted", hand)
	}

	hand[0] = 999
	if g.CardsPerRound[1]["Alice"][0] == 999 {
		t.Error("Hand must return a copy")
	}

	if _, ok := g.Hand("Mallory"); ok {
		t.Error("Unknown player should have no hand")
	}
}

func TestScore(t *testing.T) {
	g := newTestGame(t, []string{"Alice", "Bob"}, 3)
	g.Results[1] = &game.RoundResult{IsCorrect: true}
	g.Results[2] = &game.RoundResult{IsCorrect: false}

	correct, played := g.Score()
	if correct != 1 || played != 2 {
		t.Errorf("Score = %d/%d, want 1/2", correct, played)
	}
}

// Full spec scenario: two players, one round, both submissions.
func TestTwoPlayerSingleRoundScenario(t *testing.T) {
	g := newTestGame(t, []string{"P1", "P2"}, 1)

	if err := g.Distribute(game.DefaultPool); err != nil {
		t.Fatalf("Distribute failed: %v", err)
	}

	hands, _ := g.Hands()
	p1, p2 := hands["P1"][0], hands["P2"][0]
	if p1 == p2 {
		t.Fatal("Hands must be disjoint")
	}

	ascending := []string{"P1", "P2"}
	if p2 < p1 {
		ascending = []string{"P2", "P1"}
	}

	result, err := g.SubmitOrder(ascending)
	if err != nil {
		t.Fatalf("SubmitOrder failed: %v", err)
	}
	if !result.IsCorrect {
		t.Error("Ascending submission should be correct")
	}

	reversed := []string{ascending[1], ascending[0]}
	result, err = g.SubmitOrder(reversed)
	if err != nil {
		t.Fatalf("SubmitOrder failed: %v", err)
	}
	if result.IsCorrect {
		t.Error("Reversed submission should be incorrect")
	}
	if !slices.Equal(result.PlayedOrder, []int{result.CorrectOrder[1], result.CorrectOrder[0]}) {
		t.Errorf("PlayedOrder %v should be the reverse of CorrectOrder %v", result.PlayedOrder, result.CorrectOrder)
	}
}
