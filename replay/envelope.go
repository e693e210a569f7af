package replay

import (
	"encoding/base64"
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// Envelope field names.
const (
	fieldMatchID = "match_id"
	fieldSeq     = "seq"
	fieldType    = "type"
	fieldPayload = "payload"
)

var deterministic = proto.MarshalOptions{Deterministic: true}

func newEnvelope(matchID string, seq uint64, kind string, payload map[string]any) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		fieldMatchID: matchID,
		fieldSeq:     seq,
		fieldType:    kind,
		fieldPayload: payload,
	})
}

func encodeEnvelope(env *structpb.Struct) (string, error) {
	bin, err := deterministic.Marshal(env)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(bin), nil
}

// EncodeEvent builds an envelope in the tape format and encodes it. Live matches store
// their events this way so they decode like replayed ones.
func EncodeEvent(matchID string, seq uint64, kind string, payload map[string]any) (string, error) {
	env, err := newEnvelope(matchID, seq, kind, payload)
	if err != nil {
		return "", err
	}
	return encodeEnvelope(env)
}

// DecodeEnvelope reverses the base64 protobuf encoding of a tape event.
func DecodeEnvelope(b64 string) (*structpb.Struct, error) {
	bin, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, fmt.Errorf("decode envelope base64: %w", err)
	}
	env := &structpb.Struct{}
	if err := proto.Unmarshal(bin, env); err != nil {
		return nil, fmt.Errorf("unmarshal envelope: %w", err)
	}
	return env, nil
}

// Payload returns the payload struct of an envelope, or nil.
func Payload(env *structpb.Struct) *structpb.Struct {
	if env == nil {
		return nil
	}
	return env.GetFields()[fieldPayload].GetStructValue()
}
