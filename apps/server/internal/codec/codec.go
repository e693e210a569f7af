// Package codec defines the JSON messages exchanged over the match websocket.
package codec

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"rps-lite/game"
	"rps-lite/move"
)

// Client message types.
const (
	TypeStartMatch    = "startMatch"
	TypePlay          = "play"
	TypeSetDifficulty = "setDifficulty"
	TypeLeave         = "leave"
)

// Server message types.
const (
	TypeMatchStarted      = "matchStarted"
	TypeRoundResult       = "roundResult"
	TypeMatchEnd          = "matchEnd"
	TypeDifficultyChanged = "difficultyChanged"
	TypeError             = "error"
)

// Error codes carried by ErrorPayload.
const (
	CodeBadRequest  = "bad_request"
	CodeInvalidMove = "invalid_move"
	CodeNoMatch     = "no_match"
	CodeMatchOver   = "match_over"
	CodeInternal    = "internal"
)

var ErrUnknownType = errors.New("unknown message type")

type ClientEnvelope struct {
	Type    string          `json:"type"`
	MatchID string          `json:"match_id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type ServerEnvelope struct {
	Type    string `json:"type"`
	MatchID string `json:"match_id,omitempty"`
	Seq     uint64 `json:"seq"`
	TsMs    int64  `json:"ts_ms"`
	Payload any    `json:"payload,omitempty"`
}

type StartMatchRequest struct {
	Persona string `json:"persona,omitempty"`
	Tier    string `json:"tier,omitempty"`
	Rounds  int    `json:"rounds,omitempty"`
}

// PlayRequest names a move directly or by the number of extended fingers a hand
// tracker saw.
type PlayRequest struct {
	Move    string `json:"move,omitempty"`
	Fingers *int   `json:"fingers,omitempty"`
}

type SetDifficultyRequest struct {
	Tier string `json:"tier"`
}

type PersonaInfo struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Tagline string `json:"tagline,omitempty"`
	Tier    string `json:"tier"`
}

type MatchStarted struct {
	Persona   PersonaInfo `json:"persona"`
	Tier      string      `json:"tier"`
	MaxRounds int         `json:"max_rounds"`
}

type Prediction struct {
	Strategy        string  `json:"strategy"`
	Confidence      float64 `json:"confidence"`
	PredictedPlayer string  `json:"predicted_player,omitempty"`
	Explored        bool    `json:"explored"`
}

type RoundResult struct {
	Round        int        `json:"round"`
	PlayerMove   string     `json:"player_move"`
	OpponentMove string     `json:"opponent_move"`
	Outcome      string     `json:"outcome"`
	Score        game.Score `json:"score"`
	Prediction   Prediction `json:"prediction"`
	MatchOver    bool       `json:"match_over"`
}

type MatchEnd struct {
	Winner    string     `json:"winner"`
	Score     game.Score `json:"score"`
	Rounds    int        `json:"rounds"`
	Abandoned bool       `json:"abandoned"`
	// Ticket is present only when a leaderboard ticket could be issued.
	Ticket string `json:"ticket,omitempty"`
}

type DifficultyChanged struct {
	Tier string `json:"tier"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// DecodeClient parses one websocket text frame.
func DecodeClient(raw []byte) (ClientEnvelope, error) {
	var env ClientEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return ClientEnvelope{}, fmt.Errorf("decode client envelope: %w", err)
	}
	switch env.Type {
	case TypeStartMatch, TypePlay, TypeSetDifficulty, TypeLeave:
		return env, nil
	default:
		return ClientEnvelope{}, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}
}

// DecodePayload unmarshals the envelope payload into dst. A missing payload leaves dst
// untouched.
func (e ClientEnvelope) DecodePayload(dst any) error {
	if len(e.Payload) == 0 || string(e.Payload) == "null" {
		return nil
	}
	if err := json.Unmarshal(e.Payload, dst); err != nil {
		return fmt.Errorf("decode %s payload: %w", e.Type, err)
	}
	return nil
}

// ResolveMove resolves the requested move. A move name wins over a finger count.
func (p PlayRequest) ResolveMove() (move.Move, error) {
	if strings.TrimSpace(p.Move) != "" {
		return move.Parse(p.Move)
	}
	if p.Fingers != nil {
		if m, ok := move.FromFingers(*p.Fingers); ok {
			return m, nil
		}
		return move.None, fmt.Errorf("unrecognised gesture: %d fingers", *p.Fingers)
	}
	return move.None, errors.New("move required")
}

func Encode(env ServerEnvelope) ([]byte, error) {
	return json.Marshal(env)
}

// Wrap stamps a payload with the match, sequence number and server time.
func Wrap(kind, matchID string, seq uint64, now time.Time, payload any) ServerEnvelope {
	return ServerEnvelope{
		Type:    kind,
		MatchID: matchID,
		Seq:     seq,
		TsMs:    now.UTC().UnixMilli(),
		Payload: payload,
	}
}

func ErrorEnvelope(matchID, code, message string) ServerEnvelope {
	return ServerEnvelope{
		Type:    TypeError,
		MatchID: matchID,
		TsMs:    time.Now().UTC().UnixMilli(),
		Payload: ErrorPayload{Code: code, Message: message},
	}
}

func RoundResultFrom(res game.RoundResult) RoundResult {
	out := RoundResult{
		Round:        res.Round,
		PlayerMove:   res.PlayerMove.String(),
		OpponentMove: res.OpponentMove.String(),
		Outcome:      res.Outcome.String(),
		Score:        res.Score,
		MatchOver:    res.MatchOver,
		Prediction: Prediction{
			Strategy:   string(res.Prediction.Strategy),
			Confidence: res.Prediction.Confidence,
			Explored:   res.Prediction.Explored,
		},
	}
	if res.Prediction.PredictedPlayer != move.None {
		out.Prediction.PredictedPlayer = res.Prediction.PredictedPlayer.String()
	}
	return out
}

// PayloadMap flattens a payload into generic JSON values so it can be stored in a
// protobuf Struct.
func PayloadMap(payload any) (map[string]any, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	out := map[string]any{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
