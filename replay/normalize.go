package replay

import (
	"rps-lite/move"
	"rps-lite/predictor"
)

type normalizedSpec struct {
	tier   predictor.Tier
	params predictor.Params
	seed   int64
	rounds int
	moves  []move.Move
}

func normalizeSpec(spec MatchSpec) (normalizedSpec, error) {
	var out normalizedSpec

	tier, err := predictor.ParseTierStrict(spec.Tier)
	if err != nil {
		return out, &ReplayError{StepIndex: -1, Reason: ReasonInvalidTier, Message: err.Error()}
	}
	out.tier = tier

	if spec.Params != nil {
		out.params = *spec.Params
	} else {
		out.params = predictor.DefaultParams(tier)
	}
	if out.params.ExplorationRate < 0 || out.params.ExplorationRate > 1 {
		return out, &ReplayError{StepIndex: -1, Reason: ReasonInvalidParams, Message: "params.explorationRate must be within [0, 1]"}
	}

	// A zero seed would fall back to the clock and break determinism.
	if spec.Seed == 0 {
		return out, &ReplayError{StepIndex: -1, Reason: ReasonInvalidSeed, Message: "seed must be non-zero"}
	}
	out.seed = spec.Seed

	if len(spec.Moves) == 0 {
		return out, &ReplayError{StepIndex: -1, Reason: ReasonNoMoves, Message: "at least one move is required"}
	}
	switch {
	case spec.Rounds < 0:
		return out, &ReplayError{StepIndex: -1, Reason: ReasonInvalidRounds, Message: "rounds must be >= 0"}
	case spec.Rounds == 0:
		out.rounds = len(spec.Moves)
	default:
		out.rounds = spec.Rounds
	}

	out.moves = make([]move.Move, 0, len(spec.Moves))
	for i, raw := range spec.Moves {
		m, err := move.Parse(raw)
		if err != nil {
			return out, &ReplayError{StepIndex: int32(i), Reason: ReasonInvalidMove, Message: err.Error()}
		}
		out.moves = append(out.moves, m)
	}
	return out, nil
}
