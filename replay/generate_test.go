package replay

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"

	"rps-lite/predictor"
)

func TestGenerateReplayTape_IsDeterministic(t *testing.T) {
	spec := baseMatchSpec()

	tapeA, err := GenerateReplayTape(spec)
	require.NoError(t, err)
	tapeB, err := GenerateReplayTape(spec)
	require.NoError(t, err)

	assert.Equal(t, ToWireReplayTape(tapeA), ToWireReplayTape(tapeB))
	require.Len(t, tapeA.Events, len(tapeB.Events))
	for i := range tapeA.Events {
		assert.True(t, proto.Equal(tapeA.Events[i].Value, tapeB.Events[i].Value), "event %d", i)
	}
}

func TestGenerateReplayTape_EventSequence(t *testing.T) {
	spec := baseMatchSpec()
	tape, err := GenerateReplayTape(spec)
	require.NoError(t, err)

	// matchStart, a prediction and result per round, matchEnd.
	require.Len(t, tape.Events, 2+2*len(spec.Moves))
	assert.Equal(t, EventMatchStart, tape.Events[0].Type)
	assert.Equal(t, EventPrediction, tape.Events[1].Type)
	assert.Equal(t, EventRoundResult, tape.Events[2].Type)
	assert.Equal(t, EventMatchEnd, tape.Events[len(tape.Events)-1].Type)
	for i, e := range tape.Events {
		assert.Equal(t, uint64(i+1), e.Seq)
	}
	assert.Equal(t, "hard", tape.Tier)
}

func TestGenerateReplayTape_EnvelopeRoundTrip(t *testing.T) {
	tape, err := GenerateReplayTape(baseMatchSpec())
	require.NoError(t, err)

	for _, e := range tape.Events {
		env, err := DecodeEnvelope(e.EnvelopeB64)
		require.NoError(t, err)
		assert.True(t, proto.Equal(e.Value, env))
		assert.Equal(t, e.Type, env.GetFields()[fieldType].GetStringValue())
	}

	// Without exploration the hard tier counters a repeated Scissors with Rock.
	last := tape.Events[len(tape.Events)-2]
	require.Equal(t, EventRoundResult, last.Type)
	env, err := DecodeEnvelope(last.EnvelopeB64)
	require.NoError(t, err)
	payload := Payload(env)
	require.NotNil(t, payload)
	assert.Equal(t, "rock", payload.GetFields()["opponent"].GetStringValue())
	assert.Equal(t, "opponent_win", payload.GetFields()["outcome"].GetStringValue())

	_, err = DecodeEnvelope("!!not base64")
	assert.Error(t, err)
}

func TestGenerateReplayTape_Errors(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*MatchSpec)
		step   int32
		reason string
	}{
		{"unknown tier", func(s *MatchSpec) { s.Tier = "grandmaster" }, -1, ReasonInvalidTier},
		{"zero seed", func(s *MatchSpec) { s.Seed = 0 }, -1, ReasonInvalidSeed},
		{"no moves", func(s *MatchSpec) { s.Moves = nil }, -1, ReasonNoMoves},
		{"negative rounds", func(s *MatchSpec) { s.Rounds = -2 }, -1, ReasonInvalidRounds},
		{"bad move", func(s *MatchSpec) { s.Moves[1] = "lizard" }, 1, ReasonInvalidMove},
		{"past the last round", func(s *MatchSpec) { s.Rounds = 2 }, 2, ReasonMatchOver},
		{"exploration out of range", func(s *MatchSpec) { s.Params = &predictor.Params{ExplorationRate: 2} }, -1, ReasonInvalidParams},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			spec := baseMatchSpec()
			tc.mutate(&spec)
			_, err := GenerateReplayTape(spec)
			require.Error(t, err)
			var replayErr *ReplayError
			require.True(t, errors.As(err, &replayErr), "got %T", err)
			assert.Equal(t, tc.reason, replayErr.Reason)
			assert.Equal(t, tc.step, replayErr.StepIndex)
		})
	}
}

func TestGenerateReplayTape_PartialMatchHasNoEnd(t *testing.T) {
	spec := baseMatchSpec()
	spec.Rounds = 10
	tape, err := GenerateReplayTape(spec)
	require.NoError(t, err)
	assert.Equal(t, EventRoundResult, tape.Events[len(tape.Events)-1].Type)
}

func baseMatchSpec() MatchSpec {
	params := predictor.DefaultParams(predictor.TierHard)
	params.ExplorationRate = 0
	return MatchSpec{
		Tier:   "hard",
		Params: &params,
		Seed:   42,
		Moves:  []string{"s", "scissors", "S", "scissors", "s", "scissors"},
	}
}

func TestEncodeEventDecodes(t *testing.T) {
	b64, err := EncodeEvent("m-42", 3, "roundResult", map[string]any{"round": 2, "outcome": "draw"})
	require.NoError(t, err)

	env, err := DecodeEnvelope(b64)
	require.NoError(t, err)
	assert.Equal(t, "m-42", env.GetFields()["match_id"].GetStringValue())
	assert.Equal(t, float64(3), env.GetFields()["seq"].GetNumberValue())
	assert.Equal(t, "draw", Payload(env).GetFields()["outcome"].GetStringValue())

	_, err = EncodeEvent("m-42", 4, "bad", map[string]any{"ch": make(chan int)})
	assert.Error(t, err)
}
