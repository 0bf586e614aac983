package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/brokercheck/internal/ir"
	"github.com/roach88/brokercheck/internal/testutil"
	"github.com/roach88/brokercheck/internal/validation"
)

// Scenario is a synthetic test log together with the findings it must
// produce.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what the scenario demonstrates.
	Description string `yaml:"description"`

	// Validators selects the validators to run. Empty selects all of them.
	Validators []string `yaml:"validators,omitempty"`

	// Events is the log, one step per line.
	Events []Step `yaml:"events"`

	// CheckpointAt, when set, stops the check after this line, saves a
	// checkpoint, and finishes the log with freshly restored validators.
	// The findings must be the same as for an uninterrupted check.
	CheckpointAt uint64 `yaml:"checkpoint_at,omitempty"`

	// Expect lists every finding the log must produce. An empty list
	// means the log must pass.
	Expect []Expectation `yaml:"expect"`
}

// Step is one log line. Exactly one of Read, Write, Start, End or Event
// is set.
type Step struct {
	// Line is the explicit ordinal. Zero means previous line plus one.
	Line uint64 `yaml:"line,omitempty"`

	Read  *MessageStep `yaml:"read,omitempty"`
	Write *MessageStep `yaml:"write,omitempty"`
	Start bool         `yaml:"start,omitempty"`
	End   bool         `yaml:"end,omitempty"`

	// Event is any other event type tag, e.g. MessageReadFailed or a tag
	// this build does not know. Such lines carry no fields.
	Event string `yaml:"event,omitempty"`
}

// MessageStep describes a read or write of one message.
type MessageStep struct {
	Consumer  string  `yaml:"consumer,omitempty"`
	Producer  string  `yaml:"producer,omitempty"`
	Topic     string  `yaml:"topic"`
	Partition int32   `yaml:"partition"`
	Offset    int64   `yaml:"offset"`
	Key       *string `yaml:"key,omitempty"`
	Payload   string  `yaml:"payload"`
}

// Expectation matches one finding. Validator is optional.
type Expectation struct {
	Line      uint64 `yaml:"line"`
	Code      string `yaml:"code"`
	Validator string `yaml:"validator,omitempty"`
}

func (e Expectation) String() string {
	if e.Validator != "" {
		return fmt.Sprintf("line %d [%s] %s", e.Line, e.Code, e.Validator)
	}
	return fmt.Sprintf("line %d [%s]", e.Line, e.Code)
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML with strict field checking.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// FindScenarios returns the .yaml and .yml files directly inside dir,
// sorted by name.
func FindScenarios(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext == ".yaml" || ext == ".yml" {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	slices.Sort(paths)
	return paths, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Events) == 0 {
		return fmt.Errorf("events list is required and must be non-empty")
	}

	if _, err := validation.NewSet(s.Validators); err != nil {
		return fmt.Errorf("validators: %w", err)
	}

	var line uint64
	for i, step := range s.Events {
		if err := validateStep(step); err != nil {
			return fmt.Errorf("events[%d]: %w", i, err)
		}
		if step.Line == 0 {
			line++
			continue
		}
		if step.Line <= line {
			return fmt.Errorf("events[%d]: line %d does not follow line %d", i, step.Line, line)
		}
		line = step.Line
	}

	for i, e := range s.Expect {
		if e.Line == 0 {
			return fmt.Errorf("expect[%d]: line is required", i)
		}
		if e.Code == "" {
			return fmt.Errorf("expect[%d]: code is required", i)
		}
		if e.Validator != "" && !slices.Contains(validation.Names(), e.Validator) {
			return fmt.Errorf("expect[%d]: unknown validator %q", i, e.Validator)
		}
	}

	return nil
}

func validateStep(step Step) error {
	kinds := 0
	if step.Read != nil {
		kinds++
		if step.Read.Consumer == "" {
			return fmt.Errorf("read: consumer is required")
		}
		if step.Read.Producer != "" {
			return fmt.Errorf("read: producer is not allowed")
		}
	}
	if step.Write != nil {
		kinds++
		if step.Write.Producer == "" {
			return fmt.Errorf("write: producer is required")
		}
		if step.Write.Consumer != "" {
			return fmt.Errorf("write: consumer is not allowed")
		}
	}
	if step.Start {
		kinds++
	}
	if step.End {
		kinds++
	}
	if step.Event != "" {
		kinds++
	}
	if kinds != 1 {
		return fmt.Errorf("exactly one of read, write, start, end, event is required")
	}
	return nil
}

// Log renders the scenario's events as log lines.
func (s *Scenario) Log() ([]ir.TestLogLine, error) {
	b := testutil.NewLogBuilder()
	lines := make([]ir.TestLogLine, 0, len(s.Events))
	for i, step := range s.Events {
		if step.Line != 0 {
			b.At(step.Line)
		}
		switch {
		case step.Read != nil:
			m := step.Read
			lines = append(lines, b.Read(m.Consumer, ir.TopicName(m.Topic), ir.TopicPartitionIndex(m.Partition),
				ir.TopicPartitionOffset(m.Offset), m.Key, m.Payload))
		case step.Write != nil:
			m := step.Write
			lines = append(lines, b.Write(m.Producer, ir.TopicName(m.Topic), ir.TopicPartitionIndex(m.Partition),
				ir.TopicPartitionOffset(m.Offset), m.Key, m.Payload))
		case step.Start:
			lines = append(lines, b.Start())
		case step.End:
			lines = append(lines, b.End())
		case step.Event != "":
			ev, err := ir.DecodeEvent(fmt.Appendf(nil, `{"type":%q}`, step.Event))
			if err != nil {
				return nil, fmt.Errorf("events[%d]: %w", i, err)
			}
			lines = append(lines, b.Event(ev))
		}
	}
	return lines, nil
}
