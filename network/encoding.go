package network

import (
	"encoding/json"

	"google.golang.org/protobuf/proto"
	structpb "google.golang.org/protobuf/types/known/structpb"
)

func encodePayload(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return structpb.NewStruct(m)
}

func decodePayload(s *structpb.Struct, v any) error {
	data, err := json.Marshal(s.AsMap())
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// PayloadSize returns the wire size in bytes of a value encoded as a
// protobuf Struct. The airtime model uses it instead of a hard-coded
// payload length.
func PayloadSize(v any) (int, error) {
	s, err := encodePayload(v)
	if err != nil {
		return 0, err
	}
	return proto.Size(s), nil
}
