package harness

import (
	"bytes"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Scenario defines a simulated run of the routine.
// Signals are injected at their exact offsets; the scheduler ticks every
// tick interval from 0 to DurationMS.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Policy overrides the scheduler defaults.
	Policy PolicyOverrides `yaml:"policy,omitempty"`

	// DurationMS is the simulated run time.
	DurationMS int `yaml:"duration_ms"`

	// Signals are the external events, in any order.
	Signals []Signal `yaml:"signals"`

	// Assertions validate the resulting session logs.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// PolicyOverrides replaces individual scheduler parameters.
type PolicyOverrides struct {
	SuccessThreshold *int `yaml:"success_threshold,omitempty"`
	EscalationGateMS *int `yaml:"escalation_gate_ms,omitempty"`
	TickIntervalMS   *int `yaml:"tick_interval_ms,omitempty"`
}

// Signal is one external event injected at AtMS.
type Signal struct {
	AtMS int    `yaml:"at_ms"`
	Type string `yaml:"type"`

	// Label and Features are used by classify signals.
	Label    string    `yaml:"label,omitempty"`
	Features []float64 `yaml:"features,omitempty"`
}

// Signal types.
const (
	SignalTrigger     = "trigger"
	SignalFace        = "face"
	SignalFaceInvalid = "face_invalid"
	SignalClassify    = "classify"
)

// Assertion validates one session log.
type Assertion struct {
	// Type specifies the assertion type:
	// - "log_contains": a record with Tag (and Value, if set) exists
	// - "log_order": the first occurrences of Tags appear in order
	// - "log_count": Tag appears exactly Count times
	// - "outcome": the session outcome is Outcome
	Type string `yaml:"type"`

	// Session is the 1-based session index. Default: 1.
	Session int `yaml:"session,omitempty"`

	Tag     string   `yaml:"tag,omitempty"`
	Value   *int64   `yaml:"value,omitempty"`
	Tags    []string `yaml:"tags,omitempty"`
	Count   int      `yaml:"count,omitempty"`
	Outcome string   `yaml:"outcome,omitempty"`
}

// Assertion type constants.
const (
	AssertLogContains = "log_contains"
	AssertLogOrder    = "log_order"
	AssertLogCount    = "log_count"
	AssertOutcome     = "outcome"
)

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

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "signal:" vs "signals:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	// Stable sort keeps the file order of simultaneous signals
	sort.SliceStable(scenario.Signals, func(i, j int) bool {
		return scenario.Signals[i].AtMS < scenario.Signals[j].AtMS
	})
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.DurationMS <= 0 {
		return fmt.Errorf("duration_ms must be positive")
	}
	if len(s.Signals) == 0 {
		return fmt.Errorf("signals list is required and must be non-empty")
	}

	for i, sig := range s.Signals {
		if sig.AtMS < 0 || sig.AtMS > s.DurationMS {
			return fmt.Errorf("signal %d: at_ms %d outside [0, %d]", i, sig.AtMS, s.DurationMS)
		}
		switch sig.Type {
		case SignalTrigger, SignalFace, SignalFaceInvalid:
		case SignalClassify:
			if sig.Label == "" {
				return fmt.Errorf("signal %d: classify requires label", i)
			}
		default:
			return fmt.Errorf("signal %d: unknown type %q", i, sig.Type)
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(a); err != nil {
			return fmt.Errorf("assertion %d: %w", i, err)
		}
	}
	return nil
}

func validateAssertion(a Assertion) error {
	if a.Session < 0 {
		return fmt.Errorf("session must be >= 1")
	}
	switch a.Type {
	case AssertLogContains, AssertLogCount:
		if a.Tag == "" {
			return fmt.Errorf("%s requires tag", a.Type)
		}
	case AssertLogOrder:
		if len(a.Tags) < 2 {
			return fmt.Errorf("log_order requires at least two tags")
		}
	case AssertOutcome:
		if a.Outcome == "" {
			return fmt.Errorf("outcome requires outcome")
		}
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}
