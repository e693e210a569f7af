package predictor

import "rps-lite/move"

// TransitionTable counts how often each move followed each previous move.
// Indexed [prev][next] by move.Index.
type TransitionTable [move.Count][move.Count]int

// Observe records one prev→next transition.
func (t *TransitionTable) Observe(prev, next move.Move) {
	if !prev.Valid() || !next.Valid() {
		return
	}
	t[prev.Index()][next.Index()]++
}

// Count returns the number of prev→next transitions observed.
func (t *TransitionTable) Count(prev, next move.Move) int {
	if !prev.Valid() || !next.Valid() {
		return 0
	}
	return t[prev.Index()][next.Index()]
}

// Row returns the follower counts for prev.
func (t *TransitionTable) Row(prev move.Move) [move.Count]int {
	if !prev.Valid() {
		return [move.Count]int{}
	}
	return t[prev.Index()]
}

// Total returns the number of transitions observed out of prev.
func (t *TransitionTable) Total(prev move.Move) int {
	row := t.Row(prev)
	return row[0] + row[1] + row[2]
}

func (t *TransitionTable) Reset() {
	*t = TransitionTable{}
}
