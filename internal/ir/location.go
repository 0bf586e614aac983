package ir

import "fmt"

// Location pairs a value with the log line at which it was recorded.
// Validators keep Locations as baselines and quote them in failures.
type Location[T any] struct {
	Data T      `json:"data"`
	Line uint64 `json:"line"`
}

// Capture records value at the position of the line being processed.
// This is the only way validators create Locations, so Line always refers
// to an event that has already been seen.
func Capture[T any](log TestLogLine, value T) Location[T] {
	return Location[T]{Data: value, Line: log.Line}
}

// Location renders the position for error messages.
func (l Location[T]) Location() string {
	return fmt.Sprintf("line %d", l.Line)
}
