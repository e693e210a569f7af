package predictor

import "rps-lite/move"

// History is a fixed-capacity FIFO of player moves.
type History struct {
	buf   []move.Move
	start int
	size  int
}

func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = DefaultHistoryLimit
	}
	return &History{buf: make([]move.Move, capacity)}
}

// Append adds m, evicting the oldest move when full.
func (h *History) Append(m move.Move) {
	if h.size < len(h.buf) {
		h.buf[(h.start+h.size)%len(h.buf)] = m
		h.size++
		return
	}
	h.buf[h.start] = m
	h.start = (h.start + 1) % len(h.buf)
}

func (h *History) Len() int { return h.size }

func (h *History) Cap() int { return len(h.buf) }

// At returns the i-th oldest move.
func (h *History) At(i int) move.Move {
	return h.buf[(h.start+i)%len(h.buf)]
}

// Last returns the most recent move, or move.None when empty.
func (h *History) Last() move.Move {
	if h.size == 0 {
		return move.None
	}
	return h.At(h.size - 1)
}

// Tail copies the last n moves, oldest first.
func (h *History) Tail(n int) []move.Move {
	if n > h.size {
		n = h.size
	}
	out := make([]move.Move, n)
	for i := 0; i < n; i++ {
		out[i] = h.At(h.size - n + i)
	}
	return out
}

// Moves copies the whole history, oldest first.
func (h *History) Moves() []move.Move {
	return h.Tail(h.size)
}

func (h *History) Clear() {
	h.start = 0
	h.size = 0
}
