package game

import (
	"fmt"
	"math/rand"
)

// Pool is the inclusive range of card values a round draws from.
type Pool struct {
	Min int
	Max int
}

// DefaultPool matches the classic 1-100 deck.
var DefaultPool = Pool{Min: 1, Max: 100}

func (p Pool) Size() int {
	return p.Max - p.Min + 1
}

func (p Pool) Valid() bool {
	return p.Min >= 0 && p.Max >= p.Min
}

// DealRound draws len(players)*round distinct values uniformly from the
// pool and splits them into contiguous blocks of `round` cards, one per
// player in list order. Hands are stored unsorted; callers sort for
// display and resolution.
//
// A pool too small for the requested round is a recoverable condition,
// not a bug: a long game with many players simply runs out of cards.
func DealRound(players []string, round int, pool Pool) (map[string][]int, error) {
	if round < 1 {
		return nil, fmt.Errorf("INVALID_CONFIG: Round must be at least 1, got %d", round)
	}
	if !pool.Valid() {
		return nil, fmt.Errorf("INVALID_CONFIG: Invalid card pool %d-%d", pool.Min, pool.Max)
	}

	needed := len(players) * round
	if needed > pool.Size() {
		return nil, fmt.Errorf("CAPACITY_EXCEEDED: Round %d needs %d cards for %d players, pool %d-%d only has %d",
			round, needed, len(players), pool.Min, pool.Max, pool.Size())
	}

	// Sample without replacement: the first `needed` entries of a
	// permutation of the pool are a uniform draw.
	perm := rand.Perm(pool.Size())

	hands := make(map[string][]int, len(players))
	for i, player := range players {
		cards := make([]int, round)
		for j := 0; j < round; j++ {
			cards[j] = pool.Min + perm[i*round+j]
		}
		hands[player] = cards
	}

	return hands, nil
}
