package harness

import (
	"fmt"
)

// checkAssertions evaluates the scenario's assertions against the final
// state and records failures on result.
func checkAssertions(r *runner, result *Result) {
	for i, a := range r.scenario.Assertions {
		if err := checkAssertion(r, result.Stats, a); err != nil {
			result.AddError(fmt.Sprintf("assertions[%d] (%s): %v", i, a.Type, err))
		}
	}
}

func checkAssertion(r *runner, stats Stats, a Assertion) error {
	switch a.Type {
	case AssertRecords:
		return expectCount("records", stats.Records, a.Count)
	case AssertProgressSuccess:
		return expectCount("progress success callbacks", stats.ProgressSuccess, a.Count)
	case AssertProgressFailed:
		return expectCount("progress failed callbacks", stats.ProgressFailed, a.Count)
	case AssertEvents:
		return expectCount("listener events", stats.Events, a.Count)
	case AssertRewritten:
		for _, name := range a.Types {
			if !r.runtime.IsRewritten(name) {
				return fmt.Errorf("type %s is not rewritten", name)
			}
		}
		return nil
	case AssertNotRewritten:
		for _, name := range a.Types {
			if handles := r.runtime.WovenHandles(name); len(handles) > 0 {
				return fmt.Errorf("type %s still carries %d hook(s)", name, len(handles))
			}
		}
		return nil
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

func expectCount(what string, got, want int) error {
	if got != want {
		return fmt.Errorf("expected %d %s, got %d", want, what, got)
	}
	return nil
}
