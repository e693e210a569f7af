package replay

import (
	"errors"
	"fmt"

	"rps-lite/game"
	"rps-lite/predictor"
)

const (
	tapeVersion    = 1
	defaultMatchID = "replay_local"
)

// Event types on a tape.
const (
	EventMatchStart  = "matchStart"
	EventPrediction  = "prediction"
	EventRoundResult = "roundResult"
	EventMatchEnd    = "matchEnd"
)

// GenerateReplayTape replays spec against a freshly seeded opponent. The same spec
// always yields the same tape.
func GenerateReplayTape(spec MatchSpec) (*ReplayTape, error) {
	ns, err := normalizeSpec(spec)
	if err != nil {
		return nil, err
	}

	g, err := game.NewGame(game.Config{
		Mode:      game.ModeVsAI,
		MaxRounds: ns.rounds,
		Tier:      ns.tier,
		Params:    ns.params,
		Seed:      ns.seed,
	})
	if err != nil {
		return nil, &ReplayError{StepIndex: -1, Reason: ReasonEngineInit, Message: err.Error()}
	}

	b := newTapeBuilder(defaultMatchID)
	b.add(EventMatchStart, map[string]any{
		"tier":       ns.tier.String(),
		"seed":       fmt.Sprint(ns.seed),
		"max_rounds": ns.rounds,
		"params":     paramsPayload(ns.params),
	})

	for stepIdx, m := range ns.moves {
		res, err := g.PlayRound(m)
		if err != nil {
			reason := ReasonInvalidMove
			if errors.Is(err, game.ErrMatchOver) {
				reason = ReasonMatchOver
			}
			return nil, &ReplayError{StepIndex: int32(stepIdx), Reason: reason, Message: err.Error()}
		}

		pred := res.Prediction
		b.add(EventPrediction, map[string]any{
			"round":            res.Round,
			"opponent":         pred.Opponent.String(),
			"predicted_player": pred.PredictedPlayer.String(),
			"confidence":       pred.Confidence,
			"strategy":         string(pred.Strategy),
			"explored":         pred.Explored,
		})
		b.add(EventRoundResult, map[string]any{
			"round":    res.Round,
			"player":   res.PlayerMove.String(),
			"opponent": res.OpponentMove.String(),
			"outcome":  res.Outcome.String(),
			"score":    scorePayload(res.Score),
		})

		if res.MatchOver {
			winner, _ := g.Winner()
			b.add(EventMatchEnd, map[string]any{
				"rounds": res.Round,
				"winner": winner.String(),
				"score":  scorePayload(res.Score),
			})
		}
	}

	if b.err != nil {
		return nil, &ReplayError{StepIndex: -1, Reason: ReasonEncode, Message: b.err.Error()}
	}
	return &ReplayTape{
		TapeVersion: tapeVersion,
		MatchID:     b.matchID,
		Tier:        ns.tier.String(),
		Seed:        ns.seed,
		Events:      b.events,
	}, nil
}

func paramsPayload(p predictor.Params) map[string]any {
	return map[string]any{
		"history_limit":    p.HistoryLimit,
		"pattern_window":   p.PatternWindow,
		"min_pattern_len":  p.MinPatternLen,
		"max_pattern_len":  p.MaxPatternLen,
		"exploration_rate": p.ExplorationRate,
	}
}

func scorePayload(s game.Score) map[string]any {
	return map[string]any{
		"player":   s.Player,
		"opponent": s.Opponent,
	}
}

type tapeBuilder struct {
	matchID string
	seq     uint64
	events  []ReplayEvent
	err     error
}

func newTapeBuilder(matchID string) *tapeBuilder {
	return &tapeBuilder{
		matchID: matchID,
		events:  make([]ReplayEvent, 0, 32),
	}
}

// add appends an event; the first encoding error sticks and later adds are no-ops.
func (b *tapeBuilder) add(kind string, payload map[string]any) {
	if b.err != nil {
		return
	}
	b.seq++
	env, err := newEnvelope(b.matchID, b.seq, kind, payload)
	if err != nil {
		b.err = fmt.Errorf("%s #%d: %w", kind, b.seq, err)
		return
	}
	b64, err := encodeEnvelope(env)
	if err != nil {
		b.err = fmt.Errorf("%s #%d: %w", kind, b.seq, err)
		return
	}
	b.events = append(b.events, ReplayEvent{
		Type:        kind,
		Seq:         b.seq,
		Value:       env,
		EnvelopeB64: b64,
	})
}
