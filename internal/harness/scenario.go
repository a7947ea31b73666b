package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// RobotSchema names the built-in robot API in the schema field.
const RobotSchema = "robot"

// Scenario defines a command protocol test.
type Scenario struct {
	// Name uniquely identifies this scenario; it names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Schema is "robot" or a path to a .json/.cue schema document.
	// Relative paths are resolved against the scenario file's directory.
	Schema string `yaml:"schema"`

	// World sizes the robot plane. Only used when no handlers are given.
	World *WorldConfig `yaml:"world,omitempty"`

	// Handlers script command outcomes by command name. When empty, the
	// robot world executes commands.
	Handlers map[string]HandlerSpec `yaml:"handlers,omitempty"`

	// Endpoints is the number of client/server pairs (default 1).
	Endpoints int `yaml:"endpoints,omitempty"`

	// PendingTimeout enables the loop's pending deadline.
	PendingTimeout time.Duration `yaml:"pending_timeout,omitempty"`

	// Steps run in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final trace and state.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// WorldConfig sizes the robot plane.
type WorldConfig struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// HandlerSpec is the scripted outcome of one command. Exactly one of
// Result (which may be omitted for a unit result), Pending or Error applies.
type HandlerSpec struct {
	Result  any    `yaml:"result,omitempty"`
	Pending bool   `yaml:"pending,omitempty"`
	Error   string `yaml:"error,omitempty"`
}

// Step is one scenario action. Exactly one field is set.
type Step struct {
	// Send enqueues a request on a client endpoint.
	Send *SendStep `yaml:"send,omitempty"`

	// Tick runs the dispatch loop this many times.
	Tick int `yaml:"tick,omitempty"`

	// Advance moves simulated time forward (world effects and the
	// pending deadline).
	Advance time.Duration `yaml:"advance,omitempty"`

	// Complete fires the command-effect-completed event.
	Complete bool `yaml:"complete,omitempty"`

	// Expect takes the next message from a client endpoint and checks it.
	Expect *ExpectStep `yaml:"expect,omitempty"`

	// ExpectState checks the loop state: "idle" or "awaiting".
	ExpectState string `yaml:"expect_state,omitempty"`
}

// SendStep enqueues one request.
type SendStep struct {
	Endpoint int    `yaml:"endpoint"`
	Command  string `yaml:"command"`
	Args     []any  `yaml:"args"`
	// As names the request for later expect steps and the trace.
	As string `yaml:"as,omitempty"`
}

// ExpectStep checks the next server message on an endpoint.
type ExpectStep struct {
	Endpoint int `yaml:"endpoint"`

	// ID is the alias of the request the message must answer.
	ID string `yaml:"id,omitempty"`

	// Result is the expected Response value; omitted means unchecked.
	Result any `yaml:"result,omitempty"`

	// Error is the expected ErrorResponse message.
	Error string `yaml:"error,omitempty"`

	// None expects no queued message.
	None bool `yaml:"none,omitempty"`
}

// Assertion types.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
)

// Assertion validates the trace or the final loop state.
type Assertion struct {
	// Type selects the assertion.
	Type string `yaml:"type"`

	// Entry is "<kind> <command>" (trace_contains, trace_count).
	Entry string `yaml:"entry,omitempty"`

	// Entries lists labels in expected order (trace_order).
	Entries []string `yaml:"entries,omitempty"`

	// Count is the exact number of occurrences (trace_count).
	Count int `yaml:"count,omitempty"`

	// State is "idle" or "awaiting" (final_state).
	State string `yaml:"state,omitempty"`
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	// Resolve the schema path relative to the scenario BEFORE validation.
	if scenario.Schema != RobotSchema && scenario.Schema != "" && !filepath.IsAbs(scenario.Schema) {
		scenario.Schema = filepath.Join(filepath.Dir(path), scenario.Schema)
	}

	if err := validateScenario(scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return scenario, nil
}

// LoadScenarios loads every .yaml file in dir, in name order.
func LoadScenarios(dir string) ([]*Scenario, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	scenarios := make([]*Scenario, 0, len(paths))
	for _, p := range paths {
		s, err := LoadScenario(p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(p), err)
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

// ParseScenario decodes scenario YAML without resolving or validating
// the schema path.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
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
	if s.Schema == "" {
		return fmt.Errorf("schema is required")
	}
	if s.Schema != RobotSchema {
		if _, err := os.Stat(s.Schema); os.IsNotExist(err) {
			return fmt.Errorf("schema file not found: %s", s.Schema)
		}
		if len(s.Handlers) == 0 {
			return fmt.Errorf("handlers are required for schema %s", s.Schema)
		}
	}
	if s.Endpoints < 0 {
		return fmt.Errorf("endpoints must be non-negative")
	}
	if s.PendingTimeout < 0 {
		return fmt.Errorf("pending_timeout must be non-negative")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for name, h := range s.Handlers {
		set := 0
		if h.Result != nil {
			set++
		}
		if h.Pending {
			set++
		}
		if h.Error != "" {
			set++
		}
		if set > 1 {
			return fmt.Errorf("handlers[%s]: result, pending and error are mutually exclusive", name)
		}
	}

	endpoints := s.endpointCount()
	for i, step := range s.Steps {
		if err := validateStep(i, step, endpoints); err != nil {
			return err
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}
	return nil
}

func (s *Scenario) endpointCount() int {
	if s.Endpoints == 0 {
		return 1
	}
	return s.Endpoints
}

func validateStep(index int, step Step, endpoints int) error {
	set := 0
	if step.Send != nil {
		set++
		if step.Send.Command == "" {
			return fmt.Errorf("steps[%d].send: command is required", index)
		}
		if step.Send.Endpoint < 0 || step.Send.Endpoint >= endpoints {
			return fmt.Errorf("steps[%d].send: endpoint %d out of range", index, step.Send.Endpoint)
		}
	}
	if step.Tick != 0 {
		set++
		if step.Tick < 0 {
			return fmt.Errorf("steps[%d]: tick must be positive", index)
		}
	}
	if step.Advance != 0 {
		set++
		if step.Advance < 0 {
			return fmt.Errorf("steps[%d]: advance must be positive", index)
		}
	}
	if step.Complete {
		set++
	}
	if step.Expect != nil {
		set++
		if step.Expect.Endpoint < 0 || step.Expect.Endpoint >= endpoints {
			return fmt.Errorf("steps[%d].expect: endpoint %d out of range", index, step.Expect.Endpoint)
		}
		if step.Expect.None && (step.Expect.ID != "" || step.Expect.Result != nil || step.Expect.Error != "") {
			return fmt.Errorf("steps[%d].expect: none excludes id, result and error", index)
		}
		if step.Expect.Result != nil && step.Expect.Error != "" {
			return fmt.Errorf("steps[%d].expect: result and error are mutually exclusive", index)
		}
	}
	if step.ExpectState != "" {
		set++
		if step.ExpectState != "idle" && step.ExpectState != "awaiting" {
			return fmt.Errorf("steps[%d]: expect_state must be idle or awaiting, got %q", index, step.ExpectState)
		}
	}

	if set != 1 {
		return fmt.Errorf("steps[%d]: exactly one action is required, got %d", index, set)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Entry == "" {
			return fmt.Errorf("assertions[%d]: entry is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Entries) == 0 {
			return fmt.Errorf("assertions[%d]: entries list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Entry == "" {
			return fmt.Errorf("assertions[%d]: entry is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertFinalState:
		if a.State != "idle" && a.State != "awaiting" {
			return fmt.Errorf("assertions[%d]: state must be idle or awaiting for final_state", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
