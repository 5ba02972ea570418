package game

import (
	"fmt"
	"sort"
	"time"
)

// ResolveOrder translates a sequence of player-name selections into the
// card values those selections imply. The k-th time a player is named
// consumes that player's (k+1)-th smallest card for the round: players
// never state card identity, only whose card they believe comes next,
// so repeated namings walk that player's hand in ascending order.
func ResolveOrder(selections []string, hands map[string][]int) ([]int, error) {
	sorted := make(map[string][]int, len(hands))
	for player, cards := range hands {
		s := append([]int(nil), cards...)
		sort.Ints(s)
		sorted[player] = s
	}

	consumed := make(map[string]int, len(hands))
	played := make([]int, 0, len(selections))

	for i, player := range selections {
		hand, ok := sorted[player]
		if !ok {
			return nil, fmt.Errorf("INVALID_SELECTION: Position %d names unknown player %q", i+1, player)
		}
		k := consumed[player]
		if k >= len(hand) {
			return nil, fmt.Errorf("INVALID_SELECTION: Player %q named %d times but only holds %d cards", player, k+1, len(hand))
		}
		played = append(played, hand[k])
		consumed[player] = k + 1
	}

	return played, nil
}

// CorrectOrder is the ascending sort of every card dealt in the round.
func CorrectOrder(hands map[string][]int) []int {
	all := make([]int, 0)
	for _, cards := range hands {
		all = append(all, cards...)
	}
	sort.Ints(all)
	return all
}

// VerifyOrder resolves selections against the round's hands and scores
// the implied order against the true ascending order. Correctness is
// exact element-wise equality over the full length; partial credit only
// appears in the reveal summary.
func VerifyOrder(selections []string, hands map[string][]int) (*RoundResult, error) {
	total := 0
	for _, cards := range hands {
		total += len(cards)
	}
	if len(selections) != total {
		return nil, fmt.Errorf("INVALID_ORDER: Expected %d selections, got %d", total, len(selections))
	}

	played, err := ResolveOrder(selections, hands)
	if err != nil {
		return nil, err
	}

	correct := CorrectOrder(hands)

	isCorrect := true
	for i := range correct {
		if played[i] != correct[i] {
			isCorrect = false
			break
		}
	}

	return &RoundResult{
		PlayedOrder:  played,
		CorrectOrder: correct,
		IsCorrect:    isCorrect,
		Timestamp:    time.Now(),
	}, nil
}
