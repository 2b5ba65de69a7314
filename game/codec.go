package game

import (
	"encoding/json"
	"fmt"
)

// EncodeState serializes a trader state to its canonical JSON form.
// encoding/json writes map keys in sorted order, so the encoding is stable
// across processes and safe to hand to isolated search workers.
func EncodeState(s *TraderState) ([]byte, error) {
	if s == nil {
		return nil, fmt.Errorf("encode state: nil state")
	}
	buf, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode state: %w", err)
	}
	return buf, nil
}

// DecodeState deserializes a snapshot produced by EncodeState.
// The round trip satisfies TraderState.Equal with the original.
func DecodeState(buf []byte) (*TraderState, error) {
	var s TraderState
	if err := json.Unmarshal(buf, &s); err != nil {
		return nil, fmt.Errorf("decode state: %w", err)
	}
	return &s, nil
}
