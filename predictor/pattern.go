package predictor

import "rps-lite/move"

// suffixMatch is the result of looking up the recent context in the history.
type suffixMatch struct {
	next        move.Move
	length      int
	support     int
	occurrences int
}

// frequencies counts each move in seq.
func frequencies(seq []move.Move) [move.Count]int {
	var counts [move.Count]int
	for _, m := range seq {
		if m.Valid() {
			counts[m.Index()]++
		}
	}
	return counts
}

// pickMax returns the move with the highest count. Ties are broken uniformly at random;
// the source is only drawn from when a tie exists.
func pickMax(counts [move.Count]int, rng RandomSource) (move.Move, int) {
	best := -1
	var tied [move.Count]move.Move
	n := 0
	for i, c := range counts {
		switch {
		case c > best:
			best = c
			tied[0] = move.FromIndex(i)
			n = 1
		case c == best:
			tied[n] = move.FromIndex(i)
			n++
		}
	}
	if n == 1 {
		return tied[0], best
	}
	return tied[rng.Intn(n)], best
}

// longestRecurringSuffix finds the longest suffix of seq, between minLen and maxLen moves,
// that also occurs earlier in seq with at least one move after it. The predicted move is
// the most common follower of those earlier occurrences; equal counts go to the follower
// seen most recently.
func longestRecurringSuffix(seq []move.Move, minLen, maxLen int) (suffixMatch, bool) {
	n := len(seq)
	if maxLen > n-1 {
		maxLen = n - 1
	}
	for l := maxLen; l >= minLen; l-- {
		suffix := seq[n-l:]
		var followers [move.Count]int
		var lastSeen [move.Count]int
		occurrences := 0
		for i := 0; i+l < n; i++ {
			if !equalMoves(seq[i:i+l], suffix) {
				continue
			}
			f := seq[i+l]
			followers[f.Index()]++
			lastSeen[f.Index()] = i + 1
			occurrences++
		}
		if occurrences == 0 {
			continue
		}

		bestIdx := -1
		for i := range followers {
			if followers[i] == 0 {
				continue
			}
			if bestIdx < 0 ||
				followers[i] > followers[bestIdx] ||
				(followers[i] == followers[bestIdx] && lastSeen[i] > lastSeen[bestIdx]) {
				bestIdx = i
			}
		}
		return suffixMatch{
			next:        move.FromIndex(bestIdx),
			length:      l,
			support:     followers[bestIdx],
			occurrences: occurrences,
		}, true
	}
	return suffixMatch{}, false
}

func equalMoves(a, b []move.Move) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
