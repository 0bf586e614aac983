package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "brokercheck", cmd.Use)
	assert.Contains(t, cmd.Long, "broker")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"check", "validators", "report", "test", "publish"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)
}

func TestCheckCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	checkCmd, _, err := cmd.Find([]string{"check"})
	require.NoError(t, err)

	for _, name := range []string{
		"validators", "profile", "db", "pebble", "run-id", "checkpoint-every",
		"metrics-out", "kafka-brokers", "kafka-topic", "kafka-partition", "kafka-follow",
	} {
		assert.NotNil(t, checkCmd.Flags().Lookup(name), "flag --%s", name)
	}
	assert.Equal(t, "1000", checkCmd.Flags().Lookup("checkpoint-every").DefValue)
}

func TestInvalidFormat(t *testing.T) {
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}

	code := Execute([]string{"validators", "--format", "yaml"}, stdout, stderr)
	assert.Equal(t, ExitCommandError, code)
	assert.Contains(t, stderr.String(), `invalid format "yaml"`)
	assert.Empty(t, stdout.String())
}

func TestExecute_UnknownFlag(t *testing.T) {
	stderr := &bytes.Buffer{}
	code := Execute([]string{"check", "--nope"}, &bytes.Buffer{}, stderr)
	assert.Equal(t, ExitCommandError, code)
	assert.Contains(t, stderr.String(), "Error [E001]")
}

func TestExecute_JSONErrorOnStderr(t *testing.T) {
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	code := Execute([]string{"--format", "json", "check"}, stdout, stderr)
	assert.Equal(t, ExitCommandError, code)
	assert.Empty(t, stdout.String())
	assert.Contains(t, stderr.String(), `"status":"error"`)
}
