package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseErr(t *testing.T, src string) *LoadError {
	t.Helper()
	_, err := Parse("profile.cue", []byte(src))
	require.Error(t, err)
	var le *LoadError
	require.True(t, errors.As(err, &le), "want *LoadError, got %T: %v", err, err)
	return le
}

func TestParse_Full(t *testing.T) {
	src := `
validators: ["producer-message-ordering", "message-integrity"]
checkpoint_every: 250
log_level: "debug"
store: sqlite: "checks.db"
kafka: {
	brokers: ["k1:9092", "k2:9092"]
	topic: "test-log"
	partition: 3
	sasl_username: "user"
	sasl_password: "secret"
	tls: true
}
`
	p, err := Parse("profile.cue", []byte(src))
	require.NoError(t, err)

	assert.Equal(t, []string{"producer-message-ordering", "message-integrity"}, p.Validators)
	assert.Equal(t, 250, p.CheckpointEvery)
	assert.Equal(t, "debug", p.LogLevel)
	assert.Equal(t, "checks.db", p.Store.SQLite)
	assert.Empty(t, p.Store.Pebble)

	require.NotNil(t, p.Kafka)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, p.Kafka.Brokers)
	assert.Equal(t, "test-log", p.Kafka.Topic)
	assert.Equal(t, 3, p.Kafka.Partition)
	assert.False(t, p.Kafka.Follow)
	assert.Equal(t, "user", p.Kafka.SASLUsername)
	assert.True(t, p.Kafka.TLS)
}

func TestParse_Empty(t *testing.T) {
	p, err := Parse("profile.cue", nil)
	require.NoError(t, err)
	assert.Empty(t, p.Validators)
	assert.Zero(t, p.CheckpointEvery)
	assert.Nil(t, p.Kafka)
}

func TestParse_KafkaDefaults(t *testing.T) {
	p, err := Parse("profile.cue", []byte(`kafka: {brokers: ["b:9092"], topic: "t"}`))
	require.NoError(t, err)
	require.NotNil(t, p.Kafka)
	assert.Equal(t, 0, p.Kafka.Partition)
	assert.False(t, p.Kafka.Follow)
	assert.False(t, p.Kafka.TLS)
}

func TestParse_SchemaViolations(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"unknown validator", `validators: ["exactly-once"]`},
		{"unknown field", `bogus: 1`},
		{"zero checkpoint interval", `checkpoint_every: 0`},
		{"bad log level", `log_level: "trace"`},
		{"kafka without brokers", `kafka: {brokers: [], topic: "t"}`},
		{"kafka without topic", `kafka: brokers: ["b:9092"]`},
		{"negative partition", `kafka: {brokers: ["b:9092"], topic: "t", partition: -1}`},
		{"empty store path", `store: pebble: ""`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			le := parseErr(t, tt.src)
			assert.Equal(t, ErrCodeSchema, le.Code)
		})
	}
}

func TestParse_SyntaxError(t *testing.T) {
	le := parseErr(t, "validators: [\n")
	assert.Equal(t, ErrCodeBuild, le.Code)
	assert.True(t, le.Pos.IsValid())
	assert.Contains(t, le.Error(), "profile.cue:")
}

func TestParse_StoreConflict(t *testing.T) {
	le := parseErr(t, `store: {sqlite: "a.db", pebble: "dir"}`)
	assert.Equal(t, ErrCodeConflict, le.Code)
	assert.Contains(t, le.Message, "mutually exclusive")
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ci.cue")
	require.NoError(t, os.WriteFile(path, []byte(`checkpoint_every: 10`), 0o644))

	p, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 10, p.CheckpointEvery)
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.cue"))
	var le *LoadError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, ErrCodeNotFound, le.Code)
	assert.Equal(t, "E005: "+le.Message, le.Error())
}
