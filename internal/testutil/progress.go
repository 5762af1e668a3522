package testutil

import (
	"fmt"
	"sync"

	"github.com/roach88/watchcore/internal/ir"
)

// ProgressCall is one recorded progress callback.
type ProgressCall struct {
	Stage string // "begin", "success", "failed" or "finish"
	Type  string
	Index int
	Total int
	Cause error

	AffectedTypes   int
	AffectedMethods int
}

// String renders the call compactly for assertion messages.
func (c ProgressCall) String() string {
	switch c.Stage {
	case "begin":
		return fmt.Sprintf("begin(%d)", c.Total)
	case "success":
		return fmt.Sprintf("success(%s,%d)", c.Type, c.Index)
	case "failed":
		return fmt.Sprintf("failed(%s,%d)", c.Type, c.Index)
	case "finish":
		return fmt.Sprintf("finish(%d,%d)", c.AffectedTypes, c.AffectedMethods)
	default:
		return c.Stage
	}
}

// RecordingProgress records every progress callback in order.
// It satisfies the registry's progress sink interface.
//
// PanicOn makes the named stage panic after it has been recorded.
//
// Thread-safety: all methods are safe for concurrent use via internal mutex.
type RecordingProgress struct {
	PanicOn string

	mu    sync.Mutex
	calls []ProgressCall
}

// Begin records the start of a pass.
func (p *RecordingProgress) Begin(total int) {
	p.record(ProgressCall{Stage: "begin", Total: total})
}

// ProgressOnSuccess records a rewritten type.
func (p *RecordingProgress) ProgressOnSuccess(t ir.LoadedType, index int) {
	p.record(ProgressCall{Stage: "success", Type: t.Name, Index: index})
}

// ProgressOnFailed records a type that could not be rewritten.
func (p *RecordingProgress) ProgressOnFailed(t ir.LoadedType, index int, cause error) {
	p.record(ProgressCall{Stage: "failed", Type: t.Name, Index: index, Cause: cause})
}

// Finish records the end of a pass.
func (p *RecordingProgress) Finish(affectedTypes, affectedMethods int) {
	p.record(ProgressCall{Stage: "finish", AffectedTypes: affectedTypes, AffectedMethods: affectedMethods})
}

func (p *RecordingProgress) record(c ProgressCall) {
	p.mu.Lock()
	p.calls = append(p.calls, c)
	p.mu.Unlock()

	if p.PanicOn == c.Stage {
		panic("progress sink failure at " + c.Stage)
	}
}

// Calls returns a copy of the recorded calls.
func (p *RecordingProgress) Calls() []ProgressCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]ProgressCall, len(p.calls))
	copy(out, p.calls)
	return out
}

// Trace returns the recorded calls rendered with String.
func (p *RecordingProgress) Trace() []string {
	calls := p.Calls()
	out := make([]string, len(calls))
	for i, c := range calls {
		out[i] = c.String()
	}
	return out
}

// Count returns how many calls of stage were recorded.
func (p *RecordingProgress) Count(stage string) int {
	n := 0
	for _, c := range p.Calls() {
		if c.Stage == stage {
			n++
		}
	}
	return n
}
