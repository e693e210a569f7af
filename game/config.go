package game

import (
	"fmt"

	"rps-lite/predictor"
)

type Mode string

const (
	ModeVsAI  Mode = "vs_ai"
	ModeLocal Mode = "local"
)

const DefaultMaxRounds = 5

type Config struct {
	Mode Mode

	// MaxRounds ends the match after this many rounds (0 => DefaultMaxRounds).
	MaxRounds int

	// Opponent difficulty (vs_ai only)
	Tier   predictor.Tier
	Params predictor.Params

	// RNG seed (0 => time-based)
	Seed int64
}

func (c Config) withDefaults() Config {
	if c.Mode == "" {
		c.Mode = ModeVsAI
	}
	if c.MaxRounds == 0 {
		c.MaxRounds = DefaultMaxRounds
	}
	if c.Tier == 0 {
		c.Tier = predictor.TierMedium
	}
	return c
}

func (c Config) validate() error {
	if c.Mode != ModeVsAI && c.Mode != ModeLocal {
		return fmt.Errorf("unsupported mode %q", c.Mode)
	}
	if c.MaxRounds < 0 {
		return fmt.Errorf("MaxRounds must be >= 0")
	}
	if c.Params.ExplorationRate < 0 || c.Params.ExplorationRate > 1 {
		return fmt.Errorf("exploration rate must be within [0, 1]: %v", c.Params.ExplorationRate)
	}
	if c.Params.HistoryLimit < 0 || c.Params.PatternWindow < 0 {
		return fmt.Errorf("history limit and pattern window must be >= 0")
	}
	return nil
}
