package conversation

import (
	"errors"
	"fmt"

	jsoniter "github.com/json-iterator/go"
	log "github.com/sirupsen/logrus"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// CodecJSON tags checkpoints encoded by the current codec. Stored alongside
// every snapshot so future encodings can coexist with old rows.
const CodecJSON = "json"

// Codec serializes conversation state for storage. Encoding must succeed for
// any state the service builds; decoding must never take the service down,
// so every decode failure degrades to the empty state instead of an error.
type Codec struct{}

// Encode renders the state as JSON.
func (Codec) Encode(state State) ([]byte, error) {
	b, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("encode state: %w", err)
	}
	return b, nil
}

// Decode parses previously encoded state. Corrupt or foreign bytes yield the
// empty state with a warning log; the caller always gets a usable state.
func (Codec) Decode(b []byte) State {
	state, err := decodeStrict(b)
	if err != nil {
		log.WithFields(log.Fields{"len": len(b)}).Warnf("checkpoint decode failed, starting fresh: %v", err)
		return EmptyState()
	}
	return state
}

// EncodeTyped encodes the state and names the encoding used.
func (c Codec) EncodeTyped(state State) (string, []byte, error) {
	b, err := c.Encode(state)
	if err != nil {
		return "", nil, err
	}
	return CodecJSON, b, nil
}

// DecodeTyped decodes bytes tagged with their encoding. An unknown tag is a
// decode failure like any other: empty state, warning, no error.
func (c Codec) DecodeTyped(tag string, b []byte) State {
	if tag != CodecJSON {
		log.WithFields(log.Fields{"codec": tag}).Warn("unknown checkpoint codec, starting fresh")
		return EmptyState()
	}
	return c.Decode(b)
}

func decodeStrict(b []byte) (State, error) {
	if len(b) == 0 {
		return State{}, errors.New("empty payload")
	}
	var state State
	if err := json.Unmarshal(b, &state); err != nil {
		return State{}, err
	}
	if state.Messages == nil {
		state.Messages = []Message{}
	}
	return state, nil
}
