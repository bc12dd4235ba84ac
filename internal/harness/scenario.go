package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/roach88/kbind/internal/codec"
)

// Step ops.
const (
	OpLoad       = "load"
	OpToList     = "to_list"
	OpToCompound = "to_compound"
	OpJoin       = "join"
	OpColumn     = "column"
	OpRow        = "row"
	OpRoundTrip  = "round_trip"
)

// Assertion types.
const (
	AssertFinalValue = "final_value"
	AssertTraceCount = "trace_count"
	AssertTraceOrder = "trace_order"
	AssertSchema     = "schema"
)

var scenarioValidate *validator.Validate

func init() {
	scenarioValidate = validator.New()
}

// Scenario is a sequence of value operations run against a fresh runtime.
type Scenario struct {
	// Name uniquely identifies the scenario and names its golden file.
	Name string `yaml:"name" validate:"required"`

	// Description explains what the scenario covers.
	Description string `yaml:"description" validate:"required"`

	// Enums are registered as enum domains before the first step.
	Enums map[string][]string `yaml:"enums,omitempty" validate:"dive,keys,required,endkeys"`

	// Steps run in order. A failing step does not stop the run.
	Steps []Step `yaml:"steps" validate:"required,min=1,dive"`

	// Assertions are checked after the last step.
	Assertions []Assertion `yaml:"assertions,omitempty" validate:"dive"`
}

// Step is one operation. Args name values bound by earlier steps; As binds
// the step's result.
type Step struct {
	Op   string   `yaml:"op" validate:"required,oneof=load to_list to_compound join column row round_trip"`
	Args []string `yaml:"args,omitempty"`
	As   string   `yaml:"as,omitempty"`

	// Value is the descriptor a load step decodes.
	Value *codec.Descriptor `yaml:"value,omitempty" validate:"-"`

	// Index selects the column or row.
	Index int64 `yaml:"index,omitempty"`

	// EnumSource is the column step's enum source, or the source a load or
	// round_trip step reads a top-level enum back with.
	EnumSource string `yaml:"enum_source,omitempty"`

	// EnumSources are the row step's positional enum sources.
	EnumSources []string `yaml:"enum_sources,omitempty"`

	// Expect is the q text the result must render as.
	Expect string `yaml:"expect,omitempty"`

	// ExpectError is the error code the step must fail with.
	ExpectError string `yaml:"expect_error,omitempty" validate:"excluded_with=Expect"`
}

// Assertion checks the state after the last step.
type Assertion struct {
	// Type is one of final_value, trace_count, trace_order, schema.
	Type string `yaml:"type" validate:"required,oneof=final_value trace_count trace_order schema"`

	// Name is the bound value (final_value, schema).
	Name string `yaml:"name,omitempty"`

	// Expect is the q text of the value (final_value).
	Expect string `yaml:"expect,omitempty" validate:"required_if=Type final_value"`

	// Op and Count: the op runs exactly Count times (trace_count).
	Op    string `yaml:"op,omitempty" validate:"required_if=Type trace_count"`
	Count int    `yaml:"count,omitempty" validate:"gte=0"`

	// Ops must appear in this order (trace_order).
	Ops []string `yaml:"ops,omitempty" validate:"required_if=Type trace_order"`

	// Schema is CUE source the value must satisfy (schema).
	Schema string `yaml:"schema,omitempty" validate:"required_if=Type schema"`
}

// arity is the number of args each op takes.
var arity = map[string]int{
	OpLoad:       0,
	OpToList:     1,
	OpToCompound: 1,
	OpJoin:       2,
	OpColumn:     1,
	OpRow:        1,
	OpRoundTrip:  1,
}

// ParseScenario decodes and validates a scenario. Unknown fields are
// rejected so typos surface as errors.
func ParseScenario(data []byte) (*Scenario, error) {
	var s Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validateScenario(&s); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &s, nil
}

// LoadScenario reads and parses a scenario YAML file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	s, err := ParseScenario(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// LoadDir loads every *.yaml scenario in dir, sorted by file name.
func LoadDir(dir string) ([]*Scenario, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	slices.Sort(paths)

	scenarios := make([]*Scenario, 0, len(paths))
	for _, path := range paths {
		s, err := LoadScenario(path)
		if err != nil {
			return nil, err
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

// validateScenario applies the struct tags, then the rules that depend on
// step order: arity, bound names and descriptors.
func validateScenario(s *Scenario) error {
	if err := scenarioValidate.Struct(s); err != nil {
		return err
	}

	bound := make(map[string]bool)
	for i, step := range s.Steps {
		if n := arity[step.Op]; len(step.Args) != n {
			return fmt.Errorf("steps[%d]: %s takes %d args, got %d", i, step.Op, n, len(step.Args))
		}
		for _, arg := range step.Args {
			if !bound[arg] {
				return fmt.Errorf("steps[%d]: %s is not bound by an earlier step", i, arg)
			}
		}
		if step.Op == OpLoad {
			if step.Value == nil {
				return fmt.Errorf("steps[%d]: load needs a value", i)
			}
			if step.As == "" {
				return fmt.Errorf("steps[%d]: load needs a name in as", i)
			}
			if err := step.Value.Validate(); err != nil {
				return fmt.Errorf("steps[%d].value: %w", i, err)
			}
		} else if step.Value != nil {
			return fmt.Errorf("steps[%d]: only load takes a value", i)
		}
		if step.As != "" {
			bound[step.As] = true
		}
	}

	for i, a := range s.Assertions {
		switch a.Type {
		case AssertFinalValue, AssertSchema:
			if !bound[a.Name] {
				return fmt.Errorf("assertions[%d]: %q is not bound by any step", i, a.Name)
			}
		}
	}
	return nil
}
