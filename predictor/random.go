package predictor

import (
	"math/rand"
	"time"
)

// RandomSource is the only source of randomness a Predictor draws from.
// *rand.Rand satisfies it.
type RandomSource interface {
	Intn(n int) int
	Float64() float64
}

// NewRandomSource returns a deterministic source for the given seed.
func NewRandomSource(seed int64) RandomSource {
	return rand.New(rand.NewSource(seed))
}

// SystemRandom returns a time-seeded source for production play.
func SystemRandom() RandomSource {
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}
