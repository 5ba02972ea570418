package game

import "errors"

// Reveal steps through a verified round's correct order one position at
// a time. It is viewing-session state: never persisted, never shared
// between viewers, discarded when the round advances or is resubmitted.
type Reveal struct {
	Round        int
	CorrectOrder []int
	PlayedOrder  []int
	CurrentIndex int
	IsCorrect    bool
}

// CardReveal is one disclosed position.
type CardReveal struct {
	Position int  `json:"position"`
	Card     int  `json:"card"`
	Played   int  `json:"played"`
	Correct  bool `json:"correct"`
}

// RevealSummary aggregates a completed reveal.
type RevealSummary struct {
	MatchedCount int  `json:"matchedCount"`
	Total        int  `json:"total"`
	IsCorrect    bool `json:"isCorrect"`
}

// NewReveal starts a reveal at position 0 from a round result.
func NewReveal(round int, result *RoundResult) *Reveal {
	return &Reveal{
		Round:        round,
		CorrectOrder: append([]int(nil), result.CorrectOrder...),
		PlayedOrder:  append([]int(nil), result.PlayedOrder...),
		CurrentIndex: 0,
		IsCorrect:    result.IsCorrect,
	}
}

// Done reports whether every position has been revealed.
func (r *Reveal) Done() bool {
	return r.CurrentIndex >= len(r.CorrectOrder)
}

// Next reveals the card at the current position and advances.
func (r *Reveal) Next() (CardReveal, error) {
	if r.Done() {
		return CardReveal{}, errors.New("REVEAL_COMPLETE: All cards already revealed")
	}

	card := r.at(r.CurrentIndex)
	r.CurrentIndex++
	return card, nil
}

// Revealed returns the positions disclosed so far. Re-reading never
// advances the reveal or re-triggers scoring.
func (r *Reveal) Revealed() []CardReveal {
	cards := make([]CardReveal, 0, r.CurrentIndex)
	for i := 0; i < r.CurrentIndex; i++ {
		cards = append(cards, r.at(i))
	}
	return cards
}

// Summary aggregates the reveal; only valid once every position is out.
func (r *Reveal) Summary() (RevealSummary, error) {
	if !r.Done() {
		return RevealSummary{}, errors.New("REVEAL_INCOMPLETE: Cards remain to be revealed")
	}

	matched := 0
	for i := range r.CorrectOrder {
		if r.PlayedOrder[i] == r.CorrectOrder[i] {
			matched++
		}
	}

	return RevealSummary{
		MatchedCount: matched,
		Total:        len(r.CorrectOrder),
		IsCorrect:    r.IsCorrect,
	}, nil
}

func (r *Reveal) at(i int) CardReveal {
	return CardReveal{
		Position: i,
		Card:     r.CorrectOrder[i],
		Played:   r.PlayedOrder[i],
		Correct:  r.PlayedOrder[i] == r.CorrectOrder[i],
	}
}
