package codec

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rps-lite/game"
	"rps-lite/move"
	"rps-lite/predictor"
)

func TestDecodeClient(t *testing.T) {
	env, err := DecodeClient([]byte(`{"type":"play","match_id":"m-1","payload":{"move":"Paper"}}`))
	require.NoError(t, err)
	assert.Equal(t, TypePlay, env.Type)

	var req PlayRequest
	require.NoError(t, env.DecodePayload(&req))
	m, err := req.ResolveMove()
	require.NoError(t, err)
	assert.Equal(t, move.Paper, m)

	_, err = DecodeClient([]byte(`{"type":"shuffle"}`))
	assert.ErrorIs(t, err, ErrUnknownType)
	_, err = DecodeClient([]byte(`{`))
	assert.Error(t, err)

	leave, err := DecodeClient([]byte(`{"type":"leave"}`))
	require.NoError(t, err)
	var start StartMatchRequest
	assert.NoError(t, leave.DecodePayload(&start))
}

func TestResolveMoveFromFingers(t *testing.T) {
	fingers := func(n int) *int { return &n }

	tests := []struct {
		name    string
		req     PlayRequest
		want    move.Move
		wantErr bool
	}{
		{name: "fist", req: PlayRequest{Fingers: fingers(0)}, want: move.Rock},
		{name: "palm", req: PlayRequest{Fingers: fingers(5)}, want: move.Paper},
		{name: "two", req: PlayRequest{Fingers: fingers(2)}, want: move.Scissors},
		{name: "three", req: PlayRequest{Fingers: fingers(3)}, wantErr: true},
		{name: "name wins", req: PlayRequest{Move: "s", Fingers: fingers(0)}, want: move.Scissors},
		{name: "empty", req: PlayRequest{}, wantErr: true},
		{name: "bad name", req: PlayRequest{Move: "lizard"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.req.ResolveMove()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRoundResultAndEncode(t *testing.T) {
	res := game.RoundResult{
		Round:        3,
		PlayerMove:   move.Rock,
		OpponentMove: move.Paper,
		Outcome:      move.OpponentWin,
		Score:        game.Score{Player: 1, Opponent: 2},
		Prediction: predictor.Prediction{
			Opponent:   move.Paper,
			Confidence: 0.75,
			Strategy:   predictor.StrategyRandom,
		},
	}
	rr := RoundResultFrom(res)
	assert.Equal(t, "rock", rr.PlayerMove)
	assert.Equal(t, "opponent_win", rr.Outcome)
	assert.Empty(t, rr.Prediction.PredictedPlayer)

	raw, err := Encode(Wrap(TypeRoundResult, "m-1", 4, time.UnixMilli(1000), rr))
	require.NoError(t, err)
	var back map[string]any
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, "roundResult", back["type"])
	assert.Equal(t, float64(1000), back["ts_ms"])

	flat, err := PayloadMap(rr)
	require.NoError(t, err)
	assert.Equal(t, float64(3), flat["round"])
	assert.Equal(t, map[string]any{"player": float64(1), "opponent": float64(2)}, flat["score"])
}
