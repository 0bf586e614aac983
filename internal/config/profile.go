package config

import (
	_ "embed"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

//go:embed schema.cue
var schemaSource string

// Error codes for profile loading.
const (
	ErrCodeNotFound   = "E005" // Profile file missing or unreadable
	ErrCodeBuild      = "E006" // CUE syntax or evaluation error
	ErrCodeSchema     = "E201" // Profile does not satisfy #Profile
	ErrCodeConflict   = "E202" // Mutually exclusive settings
	ErrCodeDecodeFail = "E203" // Concrete value could not be decoded
)

// Profile is a decoded brokercheck profile.
type Profile struct {
	Validators      []string `json:"validators,omitempty"`
	CheckpointEvery int      `json:"checkpoint_every,omitempty"`
	LogLevel        string   `json:"log_level,omitempty"`
	Store           Store    `json:"store,omitempty"`
	Kafka           *Kafka   `json:"kafka,omitempty"`
}

// Store selects where checkpoints and findings are kept. At most one
// backend may be set.
type Store struct {
	SQLite string `json:"sqlite,omitempty"`
	Pebble string `json:"pebble,omitempty"`
}

// Kafka selects a topic partition as the log source.
type Kafka struct {
	Brokers      []string `json:"brokers"`
	Topic        string   `json:"topic"`
	Partition    int      `json:"partition"`
	Follow       bool     `json:"follow"`
	SASLUsername string   `json:"sasl_username,omitempty"`
	SASLPassword string   `json:"sasl_password,omitempty"`
	TLS          bool     `json:"tls"`
}

// LoadError reports a profile that could not be loaded.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Load reads and validates the profile at path.
func Load(path string) (*Profile, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("reading profile: %v", err)}
	}
	return Parse(path, src)
}

// Parse validates src against #Profile and decodes it. filename is used
// in error positions only.
func Parse(filename string, src []byte) (*Profile, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compiling embedded schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Profile"))

	value := ctx.CompileBytes(src, cue.Filename(filename))
	if err := value.Err(); err != nil {
		return nil, cueLoadError(ErrCodeBuild, err)
	}

	unified := def.Unify(value)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, cueLoadError(ErrCodeSchema, err)
	}

	var p Profile
	if err := unified.Decode(&p); err != nil {
		return nil, cueLoadError(ErrCodeDecodeFail, err)
	}

	if p.Store.SQLite != "" && p.Store.Pebble != "" {
		pos := value.LookupPath(cue.ParsePath("store")).Pos()
		return nil, &LoadError{Code: ErrCodeConflict, Message: "store: sqlite and pebble are mutually exclusive", Pos: pos}
	}
	return &p, nil
}

// cueLoadError keeps the first CUE error and its position.
func cueLoadError(code string, err error) *LoadError {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return &LoadError{Code: code, Message: err.Error()}
	}
	first := errs[0]
	le := &LoadError{Code: code, Message: first.Error()}
	if positions := cueerrors.Positions(first); len(positions) > 0 {
		le.Pos = positions[0]
	}
	return le
}
