package replay

import (
	"google.golang.org/protobuf/types/known/structpb"

	"rps-lite/predictor"
)

// MatchSpec describes a recorded vs-computer match. Replaying it with the same seed
// reproduces every opponent move.
type MatchSpec struct {
	Tier   string            `json:"tier"`
	Params *predictor.Params `json:"params,omitempty"`
	Seed   int64             `json:"seed"`
	Rounds int               `json:"rounds,omitempty"`
	Moves  []string          `json:"moves"`
}

type ReplayTape struct {
	TapeVersion int           `json:"tape_version"`
	MatchID     string        `json:"match_id"`
	Tier        string        `json:"tier"`
	Seed        int64         `json:"seed"`
	Events      []ReplayEvent `json:"events"`
}

type ReplayEvent struct {
	Type        string           `json:"type"`
	Seq         uint64           `json:"seq"`
	Value       *structpb.Struct `json:"value,omitempty"`
	EnvelopeB64 string           `json:"envelope_b64,omitempty"`
}
