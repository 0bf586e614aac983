package ir

// Checkpoint is a point-in-time snapshot of a set of validators.
type Checkpoint struct {
	RunID  string            `json:"run_id"`
	Line   uint64            `json:"line"`   // Last line fed to every validator
	States map[string]string `json:"states"` // Validator name -> state blob
}

// Run describes one check of a log source.
type Run struct {
	ID         string   `json:"id"`     // UUIDv7
	Source     string   `json:"source"` // File path or kafka://topic/partition
	Validators []string `json:"validators"`
}
