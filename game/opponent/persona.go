package opponent

import "rps-lite/predictor"

// Persona defines a named computer opponent and the difficulty it plays at.
type Persona struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Tagline string `json:"tagline"`
	Tier    string `json:"tier"` // easy | medium | hard

	// Optional tuning; absent fields keep the tier defaults.
	PatternWindow   int      `json:"patternWindow,omitempty"`
	ExplorationRate *float64 `json:"explorationRate,omitempty"`
}

// Settings returns the predictor tier and parameters this persona plays with.
func (p *Persona) Settings() (predictor.Tier, predictor.Params) {
	tier := predictor.ParseTier(p.Tier)
	params := predictor.DefaultParams(tier)
	if p.PatternWindow > 0 {
		params.PatternWindow = p.PatternWindow
	}
	if p.ExplorationRate != nil {
		params.ExplorationRate = *p.ExplorationRate
	}
	return tier, params
}
