package harness

import (
	"github.com/roach88/watchcore/internal/ir"
)

// traceProgress turns progress callbacks into trace entries and counters.
type traceProgress struct {
	r      *runner
	ref    string
	traced bool
}

func (r *runner) progressSink(ref string, traced bool) *traceProgress {
	return &traceProgress{r: r, ref: ref, traced: traced}
}

func (p *traceProgress) Begin(total int) {
	p.emit(TraceEvent{Stage: "begin", Total: total})
}

func (p *traceProgress) ProgressOnSuccess(t ir.LoadedType, index int) {
	p.r.mu.Lock()
	p.r.result.Stats.ProgressSuccess++
	p.r.mu.Unlock()
	p.emit(TraceEvent{Stage: "success", TypeName: t.Name, Index: index})
}

func (p *traceProgress) ProgressOnFailed(t ir.LoadedType, index int, cause error) {
	p.r.mu.Lock()
	p.r.result.Stats.ProgressFailed++
	p.r.mu.Unlock()
	p.emit(TraceEvent{Stage: "failed", TypeName: t.Name, Index: index, Detail: cause.Error()})
}

func (p *traceProgress) Finish(affectedTypes, affectedMethods int) {
	p.emit(TraceEvent{Stage: "finish", Types: affectedTypes, Methods: affectedMethods})
}

func (p *traceProgress) emit(ev TraceEvent) {
	if !p.traced {
		return
	}
	ev.Type = TraceProgress
	ev.Ref = p.ref
	p.r.trace(ev)
}
