package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/watchcore/internal/ir"
)

// Scenario defines a watch scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Module is the id of the module owning the registry.
	Module string `yaml:"module"`

	// Activated starts the module active, so new watches deliver events.
	Activated bool `yaml:"activated,omitempty"`

	// BulkProgress overrides the configured bulk-progress mode.
	BulkProgress *bool `yaml:"bulk_progress,omitempty"`

	// FailBulk makes every bulk retransform fail.
	FailBulk bool `yaml:"fail_bulk,omitempty"`

	// Types are loaded into the host before the first step.
	Types []TypeSpec `yaml:"types"`

	// Steps run in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final state.
	Assertions []Assertion `yaml:"assertions"`
}

// TypeSpec describes a loaded type.
type TypeSpec struct {
	Name    string   `yaml:"name"`
	Loader  string   `yaml:"loader,omitempty"`
	Methods []string `yaml:"methods,omitempty"`

	// Fail makes every retransform of the type fail.
	Fail bool `yaml:"fail,omitempty"`
}

func (t TypeSpec) loaded() ir.LoadedType {
	return ir.LoadedType{Name: t.Name, Loader: t.Loader, Methods: t.Methods}
}

// Step is one scenario action. Exactly one field is set.
type Step struct {
	Watch    *WatchStep  `yaml:"watch,omitempty"`
	Delete   *DeleteStep `yaml:"delete,omitempty"`
	Invoke   *InvokeStep `yaml:"invoke,omitempty"`
	Load     *TypeSpec   `yaml:"load,omitempty"`
	Unload   bool        `yaml:"unload,omitempty"`
	Activate bool        `yaml:"activate,omitempty"`
	Freeze   bool        `yaml:"freeze,omitempty"`
	Scoped   *ScopedStep `yaml:"scoped,omitempty"`
	Parallel []Step      `yaml:"parallel,omitempty"`
}

// kind returns the name of the set action and how many are set.
func (s Step) kind() (string, int) {
	var name string
	n := 0
	set := func(ok bool, k string) {
		if ok {
			name = k
			n++
		}
	}
	set(s.Watch != nil, "watch")
	set(s.Delete != nil, "delete")
	set(s.Invoke != nil, "invoke")
	set(s.Load != nil, "load")
	set(s.Unload, "unload")
	set(s.Activate, "activate")
	set(s.Freeze, "freeze")
	set(s.Scoped != nil, "scoped")
	set(len(s.Parallel) > 0, "parallel")
	return name, n
}

// WatchStep installs a watch. Exactly one of Pattern, Prefix and Name
// selects the types.
type WatchStep struct {
	// As names the watch for later delete steps.
	As string `yaml:"as,omitempty"`

	Pattern string `yaml:"pattern,omitempty"`
	Prefix  string `yaml:"prefix,omitempty"`
	Name    string `yaml:"name,omitempty"`

	// Kinds are event kind names; empty means BEFORE, RETURN and THROWS.
	Kinds []string `yaml:"kinds,omitempty"`

	// Progress attaches a progress sink.
	Progress bool `yaml:"progress,omitempty"`

	// ExpectError is a substring the returned error must contain.
	ExpectError string `yaml:"expect_error,omitempty"`
}

func (w WatchStep) predicate() (ir.Predicate, error) {
	switch {
	case w.Pattern != "":
		return ir.NewNamePattern(w.Pattern)
	case w.Prefix != "":
		return ir.NamePrefix(w.Prefix), nil
	case w.Name != "":
		return ir.NameEquals(w.Name), nil
	default:
		return nil, fmt.Errorf("one of pattern, prefix or name is required")
	}
}

func (w WatchStep) kinds() (ir.EventKinds, error) {
	if len(w.Kinds) == 0 {
		return ir.DefaultEventKinds, nil
	}
	return ir.ParseEventKinds(w.Kinds)
}

// DeleteStep removes a watch by ref or by raw id.
type DeleteStep struct {
	Ref      string `yaml:"ref,omitempty"`
	ID       int64  `yaml:"id,omitempty"`
	Progress bool   `yaml:"progress,omitempty"`

	ExpectError string `yaml:"expect_error,omitempty"`
}

// InvokeStep calls a method of a loaded type.
type InvokeStep struct {
	Type   string `yaml:"type"`
	Method string `yaml:"method"`
}

// ScopedStep is a watch that exists only while Steps run.
type ScopedStep struct {
	WatchStep `yaml:",inline"`

	Steps []Step `yaml:"steps"`

	// Fail makes the scoped callback return an error after Steps.
	Fail bool `yaml:"fail,omitempty"`
}

// Assertion validates the final state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "records": live hook record count equals Count
	// - "rewritten": every type in Types carries a woven hook
	// - "not_rewritten": no type in Types carries a woven hook
	// - "progress_success": success callbacks equal Count
	// - "progress_failed": failed callbacks equal Count
	// - "events": delivered listener events equal Count
	Type string `yaml:"type"`

	Count int      `yaml:"count,omitempty"`
	Types []string `yaml:"types,omitempty"`
}

// Assertion type constants.
const (
	AssertRecords         = "records"
	AssertRewritten       = "rewritten"
	AssertNotRewritten    = "not_rewritten"
	AssertProgressSuccess = "progress_success"
	AssertProgressFailed  = "progress_failed"
	AssertEvents          = "events"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is invalid.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
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

	if s.Module == "" {
		return fmt.Errorf("module is required")
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, t := range s.Types {
		if t.Name == "" {
			return fmt.Errorf("types[%d]: name is required", i)
		}
	}

	if err := validateSteps("steps", s.Steps, false); err != nil {
		return err
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

func validateSteps(path string, steps []Step, parallel bool) error {
	for i, step := range steps {
		at := fmt.Sprintf("%s[%d]", path, i)

		kind, n := step.kind()
		if n != 1 {
			return fmt.Errorf("%s: exactly one action is required, got %d", at, n)
		}
		if parallel && kind != "watch" && kind != "delete" && kind != "invoke" {
			return fmt.Errorf("%s: %s is not allowed in parallel", at, kind)
		}

		switch kind {
		case "watch":
			if err := validateWatch(*step.Watch); err != nil {
				return fmt.Errorf("%s.watch: %w", at, err)
			}
		case "delete":
			if step.Delete.Ref == "" && step.Delete.ID == 0 {
				return fmt.Errorf("%s.delete: ref or id is required", at)
			}
		case "invoke":
			if step.Invoke.Type == "" || step.Invoke.Method == "" {
				return fmt.Errorf("%s.invoke: type and method are required", at)
			}
		case "load":
			if step.Load.Name == "" {
				return fmt.Errorf("%s.load: name is required", at)
			}
		case "scoped":
			if err := validateWatch(step.Scoped.WatchStep); err != nil {
				return fmt.Errorf("%s.scoped: %w", at, err)
			}
			if err := validateSteps(at+".scoped.steps", step.Scoped.Steps, false); err != nil {
				return err
			}
		case "parallel":
			if err := validateSteps(at+".parallel", step.Parallel, true); err != nil {
				return err
			}
		}
	}
	return nil
}

func validateWatch(w WatchStep) error {
	selectors := 0
	for _, s := range []string{w.Pattern, w.Prefix, w.Name} {
		if s != "" {
			selectors++
		}
	}
	if selectors != 1 {
		return fmt.Errorf("exactly one of pattern, prefix or name is required")
	}
	if _, err := w.predicate(); err != nil {
		return err
	}
	if _, err := w.kinds(); err != nil {
		return err
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertRecords, AssertProgressSuccess, AssertProgressFailed, AssertEvents:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for %s", index, a.Type)
		}
	case AssertRewritten, AssertNotRewritten:
		if len(a.Types) == 0 {
			return fmt.Errorf("assertions[%d]: types list is required for %s", index, a.Type)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
