package predictor

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"rps-lite/move"
)

func TestHistoryEvictsOldestFirst(t *testing.T) {
	h := NewHistory(3)
	assert.Equal(t, move.None, h.Last())

	for _, m := range []move.Move{r, p, s, s, r} {
		h.Append(m)
	}
	assert.Equal(t, 3, h.Len())
	assert.Equal(t, 3, h.Cap())
	assert.Equal(t, []move.Move{s, s, r}, h.Moves())
	assert.Equal(t, r, h.Last())
	assert.Equal(t, []move.Move{s, r}, h.Tail(2))
	assert.Equal(t, []move.Move{s, s, r}, h.Tail(10))

	h.Clear()
	assert.Equal(t, 0, h.Len())
	assert.Empty(t, h.Moves())
}

func TestHistoryDefaultCapacity(t *testing.T) {
	assert.Equal(t, DefaultHistoryLimit, NewHistory(0).Cap())
}
