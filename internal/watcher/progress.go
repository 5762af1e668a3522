package watcher

import (
	"fmt"
	"log/slog"

	"github.com/roach88/watchcore/internal/ir"
)

// Progress receives retransformation progress for one Watch or Delete call.
//
// Begin is called once before work starts, even when total is 0.
// ProgressOnSuccess follows each successful single-type rewrite and
// ProgressOnFailed each failed one; index is 1-based. Nothing is reported
// before an attempt: each type is reported once, after its outcome is
// known. Finish is called exactly once, even when the call fails.
//
// Implementations may panic; the registry recovers, logs and carries on.
type Progress interface {
	Begin(total int)
	ProgressOnSuccess(t ir.LoadedType, index int)
	ProgressOnFailed(t ir.LoadedType, index int, cause error)
	Finish(affectedTypes, affectedMethods int)
}

// progressReporter isolates the registry from a caller's Progress.
// A nil sink makes every method a no-op.
type progressReporter struct {
	sink    Progress
	logger  *slog.Logger
	watchID int64
	total   int
}

func newProgressReporter(sink Progress, logger *slog.Logger, watchID int64) *progressReporter {
	return &progressReporter{sink: sink, logger: logger, watchID: watchID}
}

func (p *progressReporter) active() bool {
	return p != nil && p.sink != nil
}

func (p *progressReporter) begin(total int) {
	if !p.active() {
		return
	}
	p.total = total
	p.isolate("begin", "", 0, func() { p.sink.Begin(total) })
}

func (p *progressReporter) success(t ir.LoadedType, index int) {
	if !p.active() {
		return
	}
	p.isolate("progress_on_success", t.Name, index, func() { p.sink.ProgressOnSuccess(t, index) })
}

func (p *progressReporter) failed(t ir.LoadedType, index int, cause error) {
	if !p.active() {
		return
	}
	p.isolate("progress_on_failed", t.Name, index, func() { p.sink.ProgressOnFailed(t, index, cause) })
}

func (p *progressReporter) finish(affectedTypes, affectedMethods int) {
	if !p.active() {
		return
	}
	p.isolate("finish", "", 0, func() { p.sink.Finish(affectedTypes, affectedMethods) })
}

// isolate runs call and swallows any panic it raises.
func (p *progressReporter) isolate(stage, typeName string, index int, call func()) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Warn("progress report failed",
				"stage", stage,
				"watch_id", p.watchID,
				"type", typeName,
				"index", index,
				"total", p.total,
				"panic", fmt.Sprint(r),
			)
		}
	}()
	call()
}
