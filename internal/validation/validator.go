package validation

import (
	"errors"
	"fmt"

	"github.com/roach88/brokercheck/internal/ir"
)

// Validator checks one invariant over a test log.
type Validator interface {
	// Name returns the stable identifier used to select, label, and
	// checkpoint this validator.
	Name() string

	// ValidateEvent consumes one log line and returns the failures it
	// exposes. An empty result means the line passed. Lines must be fed in
	// strictly increasing order; events the validator does not care about
	// are ignored.
	ValidateEvent(log ir.TestLogLine) []ir.ValidationFailure

	// SaveState serializes the full state. It does not disturb subsequent
	// ValidateEvent calls.
	SaveState() (string, error)

	// LoadState replaces the state with one produced by SaveState of the
	// same validator type. On error the existing state is left untouched.
	LoadState(data string) error
}

// Validator names.
const (
	NamePartitioning = "application-message-partitioning"
	NameIntegrity    = "message-integrity"
	NameIdempotence  = "producer-idempotence"
	NameOrdering     = "producer-message-ordering"
)

// registry lists the known validators in reporting order.
var registry = []struct {
	name string
	new  func() Validator
}{
	{NamePartitioning, func() Validator { return NewPartitioning() }},
	{NameIntegrity, func() Validator { return NewIntegrity() }},
	{NameIdempotence, func() Validator { return NewIdempotence() }},
	{NameOrdering, func() Validator { return NewOrdering() }},
}

// Names returns every known validator name in reporting order.
func Names() []string {
	names := make([]string, len(registry))
	for i, r := range registry {
		names[i] = r.name
	}
	return names
}

// New constructs an empty validator by name.
func New(name string) (Validator, error) {
	for _, r := range registry {
		if r.name == name {
			return r.new(), nil
		}
	}
	return nil, &UnknownValidatorError{Name: name}
}

// NewAll constructs one empty instance of every known validator.
func NewAll() []Validator {
	vs := make([]Validator, len(registry))
	for i, r := range registry {
		vs[i] = r.new()
	}
	return vs
}

// NewSet constructs the named validators in the given order.
// An empty list selects every validator.
func NewSet(names []string) ([]Validator, error) {
	if len(names) == 0 {
		return NewAll(), nil
	}

	seen := make(map[string]bool, len(names))
	vs := make([]Validator, 0, len(names))
	for _, name := range names {
		if seen[name] {
			return nil, fmt.Errorf("validator %q selected twice", name)
		}
		seen[name] = true

		v, err := New(name)
		if err != nil {
			return nil, err
		}
		vs = append(vs, v)
	}
	return vs, nil
}

// UnknownValidatorError is returned when a validator name is not registered.
type UnknownValidatorError struct {
	Name string
}

func (e *UnknownValidatorError) Error() string {
	return fmt.Sprintf("unknown validator %q (known: %v)", e.Name, Names())
}

// DeserializationError is returned by LoadState when a blob is malformed or
// belongs to another validator type.
type DeserializationError struct {
	Validator string
	Err       error
}

func (e *DeserializationError) Error() string {
	return fmt.Sprintf("load %s state: %v", e.Validator, e.Err)
}

func (e *DeserializationError) Unwrap() error {
	return e.Err
}

// IsDeserializationError returns true if err is a state load failure.
// Uses errors.As to handle wrapped errors.
func IsDeserializationError(err error) bool {
	var de *DeserializationError
	return errors.As(err, &de)
}
