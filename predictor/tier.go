package predictor

import (
	"fmt"
	"strings"
)

// Tier selects the prediction algorithm.
type Tier byte

const (
	TierEasy   Tier = 1
	TierMedium Tier = 2
	TierHard   Tier = 3
)

var TierDictionary = map[Tier]string{
	TierEasy:   "easy",
	TierMedium: "medium",
	TierHard:   "hard",
}

func (t Tier) String() string {
	if s, ok := TierDictionary[t]; ok {
		return s
	}
	return "easy"
}

func (t Tier) valid() bool {
	return t >= TierEasy && t <= TierHard
}

// ParseTier maps a tier name to a Tier. Unknown names fall back to TierEasy.
func ParseTier(raw string) Tier {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "medium", "normal":
		return TierMedium
	case "hard", "expert":
		return TierHard
	default:
		return TierEasy
	}
}

// ParseTierStrict accepts the names ParseTier knows and rejects the rest instead of
// falling back to Easy. Empty means Medium, the game default.
func ParseTierStrict(raw string) (Tier, error) {
	name := strings.ToLower(strings.TrimSpace(raw))
	switch name {
	case "":
		return TierMedium, nil
	case "easy", "medium", "normal", "hard", "expert":
		return ParseTier(name), nil
	default:
		return 0, fmt.Errorf("unknown tier %q", raw)
	}
}

const (
	DefaultHistoryLimit    = 100
	DefaultPatternWindow   = 10
	DefaultMinPatternLen   = 2
	DefaultMaxPatternLen   = 5
	DefaultExplorationRate = 0.2
)

// Params tunes a tier. Zero fields other than ExplorationRate take the defaults;
// start from DefaultParams to get the tuned exploration rate.
type Params struct {
	// HistoryLimit caps the recorded player history; oldest moves are evicted first.
	HistoryLimit int `json:"historyLimit"`
	// PatternWindow is how many recent moves the frequency count looks at.
	PatternWindow int `json:"patternWindow"`
	// MinPatternLen and MaxPatternLen bound the suffix lengths the sequence matcher tries.
	MinPatternLen int `json:"minPatternLen"`
	MaxPatternLen int `json:"maxPatternLen"`
	// ExplorationRate is the chance the hard tier ignores its model and plays randomly.
	ExplorationRate float64 `json:"explorationRate"`
}

// DefaultParams returns the parameters a tier is tuned with out of the box.
func DefaultParams(tier Tier) Params {
	p := Params{
		HistoryLimit:  DefaultHistoryLimit,
		PatternWindow: DefaultPatternWindow,
		MinPatternLen: DefaultMinPatternLen,
		MaxPatternLen: DefaultMaxPatternLen,
	}
	if tier == TierHard {
		p.ExplorationRate = DefaultExplorationRate
	}
	return p
}

// normalize fills zero or out-of-range fields. ExplorationRate is only clamped to [0, 1].
func (p Params) normalize() Params {
	if p.HistoryLimit <= 0 {
		p.HistoryLimit = DefaultHistoryLimit
	}
	if p.MinPatternLen < 2 {
		p.MinPatternLen = DefaultMinPatternLen
	}
	// The history must hold a pattern plus its follower.
	if p.HistoryLimit <= p.MinPatternLen {
		p.HistoryLimit = p.MinPatternLen + 1
	}
	if p.PatternWindow <= 0 {
		p.PatternWindow = DefaultPatternWindow
	}
	if p.PatternWindow > p.HistoryLimit {
		p.PatternWindow = p.HistoryLimit
	}
	if p.MaxPatternLen <= 0 {
		p.MaxPatternLen = DefaultMaxPatternLen
	}
	if p.MaxPatternLen < p.MinPatternLen {
		p.MaxPatternLen = p.MinPatternLen
	}
	if p.ExplorationRate < 0 {
		p.ExplorationRate = 0
	}
	if p.ExplorationRate > 1 {
		p.ExplorationRate = 1
	}
	return p
}
