package validation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// envelope is the checkpoint wire form shared by all validators.
// The name tag makes cross-type loads fail instead of decoding into the
// wrong shape.
type envelope struct {
	Validator string          `json:"validator"`
	State     json.RawMessage `json:"state"`
}

// encodeState renders state inside an envelope tagged with name.
func encodeState(name string, state any) (string, error) {
	body, err := json.Marshal(state)
	if err != nil {
		return "", fmt.Errorf("save %s state: %w", name, err)
	}
	out, err := json.Marshal(envelope{Validator: name, State: body})
	if err != nil {
		return "", fmt.Errorf("save %s state: %w", name, err)
	}
	return string(out), nil
}

// decodeState parses an envelope produced by encodeState for the same name
// into state. Unknown fields are rejected at both levels.
func decodeState(name, data string, state any) error {
	var env envelope
	dec := json.NewDecoder(strings.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&env); err != nil {
		return &DeserializationError{Validator: name, Err: err}
	}
	if dec.More() {
		return &DeserializationError{Validator: name, Err: fmt.Errorf("trailing data after state")}
	}
	if env.Validator != name {
		return &DeserializationError{
			Validator: name,
			Err:       fmt.Errorf("state belongs to validator %q", env.Validator),
		}
	}
	if len(env.State) == 0 || bytes.Equal(env.State, []byte("null")) {
		return &DeserializationError{Validator: name, Err: fmt.Errorf("state is missing")}
	}

	sdec := json.NewDecoder(bytes.NewReader(env.State))
	sdec.DisallowUnknownFields()
	if err := sdec.Decode(state); err != nil {
		return &DeserializationError{Validator: name, Err: err}
	}
	return nil
}
