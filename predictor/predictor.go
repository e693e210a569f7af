// Package predictor picks the computer opponent's move from the player's past moves.
//
// A Predictor is owned by one game session and is not safe for concurrent use.
// Record and Predict are expected to alternate: the opponent predicts, the round is
// played, then the player's move is recorded.
package predictor

import "rps-lite/move"

// Strategy names the method that produced a prediction.
type Strategy string

const (
	StrategyRandom    Strategy = "random"
	StrategyPattern   Strategy = "pattern"
	StrategyFrequency Strategy = "frequency"
	StrategyMarkov    Strategy = "markov"
	StrategyExplore   Strategy = "explore"
)

// minHistory is the history length below which every tier plays randomly.
const minHistory = 2

// Prediction is the opponent's move plus what the model thought the player would do.
type Prediction struct {
	Opponent move.Move `json:"opponent"`
	// PredictedPlayer is move.None when the move was a blind random draw.
	PredictedPlayer move.Move `json:"predictedPlayer"`
	Confidence      float64   `json:"confidence"`
	Strategy        Strategy  `json:"strategy"`
	Explored        bool      `json:"explored"`
}

type Predictor struct {
	tier   Tier
	params Params
	rng    RandomSource

	history     *History
	transitions TransitionTable
}

// New builds a predictor for tier. A nil rng uses SystemRandom.
func New(tier Tier, params Params, rng RandomSource) *Predictor {
	if rng == nil {
		rng = SystemRandom()
	}
	p := &Predictor{rng: rng}
	p.Configure(tier, params)
	return p
}

// Configure switches the active tier and parameters and discards all learned state.
// An unknown tier falls back to TierEasy.
func (p *Predictor) Configure(tier Tier, params Params) {
	if !tier.valid() {
		tier = TierEasy
	}
	p.tier = tier
	p.params = params.normalize()
	p.history = NewHistory(p.params.HistoryLimit)
	p.transitions.Reset()
}

// Reset discards learned state but keeps the tier and parameters.
func (p *Predictor) Reset() {
	p.history.Clear()
	p.transitions.Reset()
}

func (p *Predictor) Tier() Tier { return p.tier }

func (p *Predictor) Params() Params { return p.params }

// History returns a copy of the recorded player moves, oldest first.
func (p *Predictor) History() []move.Move { return p.history.Moves() }

// Transitions returns a copy of the transition counts.
func (p *Predictor) Transitions() TransitionTable { return p.transitions }

// Record appends the player's move. The hard tier also counts the transition from the
// previously recorded move.
func (p *Predictor) Record(m move.Move) {
	if !m.Valid() {
		return
	}
	if p.tier == TierHard && p.history.Len() > 0 {
		p.transitions.Observe(p.history.Last(), m)
	}
	p.history.Append(m)
}

// Predict returns the opponent's next move.
func (p *Predictor) Predict() move.Move {
	return p.PredictDetailed().Opponent
}

// PredictDetailed returns the opponent's next move with diagnostics. It never changes
// the recorded history or transition counts.
func (p *Predictor) PredictDetailed() Prediction {
	if p.history.Len() < minHistory {
		return p.random()
	}
	switch p.tier {
	case TierMedium:
		return p.predictMedium()
	case TierHard:
		return p.predictHard()
	default:
		return p.random()
	}
}

func (p *Predictor) random() Prediction {
	return Prediction{
		Opponent:   move.FromIndex(p.rng.Intn(move.Count)),
		Confidence: 1.0 / move.Count,
		Strategy:   StrategyRandom,
	}
}

func (p *Predictor) predictMedium() Prediction {
	seq := p.history.Moves()
	if match, ok := longestRecurringSuffix(seq, p.params.MinPatternLen, p.params.MaxPatternLen); ok {
		return counterOf(match.next, float64(match.support)/float64(match.occurrences), StrategyPattern)
	}
	return p.byFrequency()
}

func (p *Predictor) byFrequency() Prediction {
	recent := p.history.Tail(p.params.PatternWindow)
	guess, count := pickMax(frequencies(recent), p.rng)
	return counterOf(guess, float64(count)/float64(len(recent)), StrategyFrequency)
}

func (p *Predictor) predictHard() Prediction {
	if p.params.ExplorationRate > 0 && p.rng.Float64() < p.params.ExplorationRate {
		guess := move.FromIndex(p.rng.Intn(move.Count))
		pred := counterOf(guess, 1.0/move.Count, StrategyExplore)
		pred.Explored = true
		return pred
	}

	last := p.history.Last()
	total := p.transitions.Total(last)
	if total == 0 {
		return p.byFrequency()
	}
	guess, count := pickMax(p.transitions.Row(last), p.rng)
	return counterOf(guess, float64(count)/float64(total), StrategyMarkov)
}

func counterOf(guess move.Move, confidence float64, strategy Strategy) Prediction {
	return Prediction{
		Opponent:        move.Counter(guess),
		PredictedPlayer: guess,
		Confidence:      confidence,
		Strategy:        strategy,
	}
}
