package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/conteo/internal/engine"
)

// Scenario defines a reconciliation test scenario.
// A scenario creates one count, replays a sequence of scans, corrections
// and finalizations against a real engine, and asserts on the resulting
// report and history.
type Scenario struct {
	// Name uniquely identifies this scenario.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Count is the inline expectation set.
	Count *engine.NewCount `yaml:"count,omitempty"`

	// Expectation is a path to an expectation file (YAML, JSON or CUE),
	// relative to the scenario file. Exactly one of Count and Expectation
	// must be set.
	Expectation string `yaml:"expectation,omitempty"`

	// Steps are executed in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final report and history.
	Assertions []Assertion `yaml:"assertions"`
}

// Step is one engine call.
type Step struct {
	// Action is one of scan, set, remove or finalize.
	Action string `yaml:"action"`

	User     string `yaml:"user,omitempty"`
	Code     string `yaml:"code,omitempty"`
	Quantity int64  `yaml:"quantity,omitempty"`

	// Clarification is passed to finalize.
	Clarification string `yaml:"clarification,omitempty"`

	// ExpectError is the engine error code the step must fail with,
	// e.g. ALREADY_FINALIZED. Empty means the step must succeed.
	ExpectError string `yaml:"expect_error,omitempty"`
}

// Step action constants.
const (
	ActionScan     = "scan"
	ActionSet      = "set"
	ActionRemove   = "remove"
	ActionFinalize = "finalize"
)

// Assertion validates the outcome of a scenario.
type Assertion struct {
	// Type specifies the assertion type:
	// - "user_total": User has net Quantity of Code
	// - "progress": Overall percent and/or the pending codes
	// - "brand_progress": Brand is at Percent
	// - "discrepancy": a record of Kind for Code exists, with Diff if given
	// - "discrepancy_count": exactly Count records
	// - "history_count": exactly Count history entries
	// - "history_ops": history operations in exactly this order
	Type string `yaml:"type"`

	User     string `yaml:"user,omitempty"`
	Code     string `yaml:"code,omitempty"`
	Quantity *int64 `yaml:"quantity,omitempty"`

	Overall *int     `yaml:"overall,omitempty"`
	Pending []string `yaml:"pending,omitempty"`

	Brand   string `yaml:"brand,omitempty"`
	Percent *int   `yaml:"percent,omitempty"`

	Kind string `yaml:"kind,omitempty"`
	Diff *int64 `yaml:"diff,omitempty"`

	Count *int `yaml:"count,omitempty"`

	Operations []string `yaml:"operations,omitempty"`
}

// Assertion type constants.
const (
	AssertUserTotal        = "user_total"
	AssertProgress         = "progress"
	AssertBrandProgress    = "brand_progress"
	AssertDiscrepancy      = "discrepancy"
	AssertDiscrepancyCount = "discrepancy_count"
	AssertHistoryCount     = "history_count"
	AssertHistoryOps       = "history_ops"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
//
// A relative Expectation path is resolved against the scenario's directory.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	if scenario.Expectation != "" && !filepath.IsAbs(scenario.Expectation) {
		scenario.Expectation = filepath.Join(filepath.Dir(path), scenario.Expectation)
	}
	if scenario.Expectation != "" {
		if _, err := os.Stat(scenario.Expectation); os.IsNotExist(err) {
			return nil, fmt.Errorf("invalid scenario: expectation file not found: %s", scenario.Expectation)
		}
	}

	return scenario, nil
}

// ParseScenario parses scenario YAML with strict field validation.
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

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if (s.Count == nil) == (s.Expectation == "") {
		return fmt.Errorf("exactly one of count and expectation is required")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if err := validateStep(i, step); err != nil {
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

func validateStep(index int, st Step) error {
	switch st.Action {
	case ActionScan, ActionSet:
		if st.User == "" || st.Code == "" {
			return fmt.Errorf("steps[%d]: user and code are required for %s", index, st.Action)
		}
	case ActionRemove:
		if st.User == "" || st.Code == "" {
			return fmt.Errorf("steps[%d]: user and code are required for remove", index)
		}
		if st.Quantity != 0 {
			return fmt.Errorf("steps[%d]: remove takes no quantity", index)
		}
	case ActionFinalize:
	case "":
		return fmt.Errorf("steps[%d]: action is required", index)
	default:
		return fmt.Errorf("steps[%d]: unknown action %q", index, st.Action)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertUserTotal:
		if a.User == "" || a.Code == "" || a.Quantity == nil {
			return fmt.Errorf("assertions[%d]: user, code and quantity are required for user_total", index)
		}
	case AssertProgress:
		if a.Overall == nil && a.Pending == nil {
			return fmt.Errorf("assertions[%d]: overall or pending is required for progress", index)
		}
	case AssertBrandProgress:
		if a.Brand == "" || a.Percent == nil {
			return fmt.Errorf("assertions[%d]: brand and percent are required for brand_progress", index)
		}
	case AssertDiscrepancy:
		if a.Kind == "" || a.Code == "" {
			return fmt.Errorf("assertions[%d]: kind and code are required for discrepancy", index)
		}
	case AssertDiscrepancyCount, AssertHistoryCount:
		if a.Count == nil || *a.Count < 0 {
			return fmt.Errorf("assertions[%d]: non-negative count is required for %s", index, a.Type)
		}
	case AssertHistoryOps:
		if len(a.Operations) == 0 {
			return fmt.Errorf("assertions[%d]: operations list is required for history_ops", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
