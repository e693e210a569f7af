package replay

import "fmt"

const (
	ReasonInvalidTier   = "invalid_tier"
	ReasonInvalidSeed   = "invalid_seed"
	ReasonInvalidRounds = "invalid_rounds"
	ReasonInvalidParams = "invalid_params"
	ReasonNoMoves       = "no_moves"
	ReasonInvalidMove   = "invalid_move"
	ReasonMatchOver     = "match_over"
	ReasonEngineInit    = "engine_init_failed"
	ReasonEncode        = "envelope_encode_failed"

	ReasonInvalidRequest   = "invalid_request"
	ReasonInvalidJSON      = "invalid_json"
	ReasonInvalidEnvelope  = "invalid_envelope"
	ReasonGenerationFailed = "replay_generation_failed"
	ReasonMarshalFailed    = "marshal_failed"
)

// ReplayError reports why a spec could not be replayed. StepIndex is the offending
// move, or -1 for problems with the MatchSpec as a whole.
type ReplayError struct {
	StepIndex int32  `json:"step_index"`
	Reason    string `json:"reason"`
	Message   string `json:"message"`
}

func (e *ReplayError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("replay error(step=%d reason=%s): %s", e.StepIndex, e.Reason, e.Message)
}
