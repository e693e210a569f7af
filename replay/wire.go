package replay

import (
	"encoding/json"
	"errors"

	"google.golang.org/protobuf/types/known/structpb"
)

// WireReplayTape is the browser view of a tape: the raw envelopes plus the rounds
// flattened so a viewer can draw a scoreboard without decoding protobuf.
type WireReplayTape struct {
	TapeVersion int               `json:"tapeVersion"`
	MatchID     string            `json:"matchId"`
	Tier        string            `json:"tier"`
	Seed        int64             `json:"seed"`
	Rounds      []WireRound       `json:"rounds"`
	Final       *WireFinal        `json:"final,omitempty"`
	Events      []WireReplayEvent `json:"events"`
}

type WireReplayEvent struct {
	Type        string `json:"type"`
	Seq         uint64 `json:"seq"`
	EnvelopeB64 string `json:"envelopeB64"`
}

// WireRound joins a round's prediction with its result.
type WireRound struct {
	Round           int     `json:"round"`
	Player          string  `json:"player"`
	Opponent        string  `json:"opponent"`
	Outcome         string  `json:"outcome"`
	PredictedPlayer string  `json:"predictedPlayer,omitempty"`
	Strategy        string  `json:"strategy,omitempty"`
	Confidence      float64 `json:"confidence"`
	Explored        bool    `json:"explored,omitempty"`
	PlayerScore     int     `json:"playerScore"`
	OpponentScore   int     `json:"opponentScore"`
}

// WireFinal is present only when the tape reaches matchEnd.
type WireFinal struct {
	Winner        string `json:"winner"`
	Rounds        int    `json:"rounds"`
	PlayerScore   int    `json:"playerScore"`
	OpponentScore int    `json:"opponentScore"`
}

func ToWireReplayTape(tape *ReplayTape) *WireReplayTape {
	if tape == nil {
		return nil
	}
	out := &WireReplayTape{
		TapeVersion: tape.TapeVersion,
		MatchID:     tape.MatchID,
		Tier:        tape.Tier,
		Seed:        tape.Seed,
		Rounds:      make([]WireRound, 0, len(tape.Events)/2),
		Events:      make([]WireReplayEvent, 0, len(tape.Events)),
	}

	var pending *WireRound
	for _, e := range tape.Events {
		out.Events = append(out.Events, WireReplayEvent{
			Type:        e.Type,
			Seq:         e.Seq,
			EnvelopeB64: e.EnvelopeB64,
		})

		p := Payload(e.Value)
		switch e.Type {
		case EventPrediction:
			pending = &WireRound{
				Round:           intField(p, "round"),
				PredictedPlayer: stringField(p, "predicted_player"),
				Strategy:        stringField(p, "strategy"),
				Confidence:      p.GetFields()["confidence"].GetNumberValue(),
				Explored:        p.GetFields()["explored"].GetBoolValue(),
			}
		case EventRoundResult:
			r := WireRound{}
			if pending != nil {
				r = *pending
				pending = nil
			}
			r.Round = intField(p, "round")
			r.Player = stringField(p, "player")
			r.Opponent = stringField(p, "opponent")
			r.Outcome = stringField(p, "outcome")
			r.PlayerScore, r.OpponentScore = scoreFields(p)
			out.Rounds = append(out.Rounds, r)
		case EventMatchEnd:
			f := &WireFinal{Winner: stringField(p, "winner"), Rounds: intField(p, "rounds")}
			f.PlayerScore, f.OpponentScore = scoreFields(p)
			out.Final = f
		}
	}
	return out
}

func stringField(s *structpb.Struct, key string) string {
	return s.GetFields()[key].GetStringValue()
}

func intField(s *structpb.Struct, key string) int {
	return int(s.GetFields()[key].GetNumberValue())
}

func scoreFields(s *structpb.Struct) (player, opponent int) {
	score := s.GetFields()["score"].GetStructValue()
	return intField(score, "player"), intField(score, "opponent")
}

// InitRequest is what the browser passes to the replay bridge.
type InitRequest struct {
	Spec MatchSpec `json:"spec"`
}

type InitResponse struct {
	OK    bool            `json:"ok"`
	Tape  *WireReplayTape `json:"tape,omitempty"`
	Event map[string]any  `json:"event,omitempty"`
	Error *ReplayError    `json:"error,omitempty"`
}

// HandleInit decodes an InitRequest and generates its wire tape. Failures are
// reported in the response, never returned.
func HandleInit(raw string) InitResponse {
	var req InitRequest
	if err := json.Unmarshal([]byte(raw), &req); err != nil {
		return failure(ReasonInvalidJSON, err)
	}

	tape, err := GenerateReplayTape(req.Spec)
	if err != nil {
		var replayErr *ReplayError
		if errors.As(err, &replayErr) {
			return InitResponse{Error: replayErr}
		}
		return failure(ReasonGenerationFailed, err)
	}
	return InitResponse{OK: true, Tape: ToWireReplayTape(tape)}
}

// HandleDecode turns one stored envelope, from a tape or the live ledger, into plain
// JSON values.
func HandleDecode(b64 string) InitResponse {
	env, err := DecodeEnvelope(b64)
	if err != nil {
		return failure(ReasonInvalidEnvelope, err)
	}
	return InitResponse{OK: true, Event: env.AsMap()}
}

// MarshalResponse never fails: a marshal error is itself reported as JSON.
func MarshalResponse(resp InitResponse) string {
	b, err := json.Marshal(resp)
	if err != nil {
		b, _ = json.Marshal(failure(ReasonMarshalFailed, err))
	}
	return string(b)
}

func failure(reason string, err error) InitResponse {
	return InitResponse{Error: &ReplayError{StepIndex: -1, Reason: reason, Message: err.Error()}}
}
