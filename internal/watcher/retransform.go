package watcher

import (
	"fmt"
	"log/slog"

	"github.com/roach88/watchcore/internal/ir"
)

// RetransformReport summarises one retransformation pass.
type RetransformReport struct {
	// Total is the number of types handed to the pass.
	Total int `json:"total"`

	// Failed is the number of types the per-type fallback could not rewrite.
	Failed int `json:"failed"`

	// Bulk is true when a single bulk call covered every type.
	Bulk bool `json:"bulk"`
}

// retransformer drives the rewrite service over a type set.
//
// The fast path is one bulk call. The per-type path runs when a progress
// sink wants per-type reports or when the bulk call fails, so one
// malformed type never blocks its peers.
type retransformer struct {
	rewriter RewriteService
	logger   *slog.Logger

	// bulkProgress lets a progress sink ride the bulk path; successes are
	// then synthesized per type. Off by default.
	bulkProgress bool
}

func (c *retransformer) run(watchID int64, types []ir.LoadedType, progress *progressReporter) RetransformReport {
	report := RetransformReport{Total: len(types)}
	if len(types) == 0 {
		c.logger.Info("no loaded types to retransform",
			"watch_id", watchID,
		)
		return report
	}

	c.logger.Debug("retransforming types",
		"watch_id", watchID,
		"types", ir.TypeNames(types),
	)

	if !progress.active() || c.bulkProgress {
		err := c.retransformAll(types)
		if err == nil {
			c.logger.Info("batch retransform done",
				"watch_id", watchID,
				"total", len(types),
			)
			report.Bulk = true
			for i, t := range types {
				progress.success(t, i+1)
			}
			return report
		}
		c.logger.Warn("batch retransform failed, falling back to single retransform",
			"watch_id", watchID,
			"total", len(types),
			"error", err,
		)
	}

	for i, t := range types {
		index := i + 1
		if err := c.retransformOne(t); err != nil {
			cause := &RewriteError{WatchID: watchID, Type: t, Index: index, Total: len(types), Err: err}
			c.logger.Warn("retransform failed, type skipped",
				"watch_id", watchID,
				"type", t.Name,
				"index", index,
				"total", len(types),
				"error", err,
			)
			progress.failed(t, index, cause)
			report.Failed++
			continue
		}
		c.logger.Debug("retransformed type",
			"watch_id", watchID,
			"type", t.Name,
			"index", index,
			"total", len(types),
		)
		progress.success(t, index)
	}

	c.logger.Info("single retransform done",
		"watch_id", watchID,
		"total", len(types),
		"failed", report.Failed,
	)
	return report
}

func (c *retransformer) retransformAll(types []ir.LoadedType) (err error) {
	defer recoverRewrite(&err)
	return c.rewriter.RetransformAll(types)
}

func (c *retransformer) retransformOne(t ir.LoadedType) (err error) {
	defer recoverRewrite(&err)
	return c.rewriter.Retransform(t)
}

// recoverRewrite turns a panicking rewrite call into an ordinary failure.
func recoverRewrite(err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("rewrite service panicked: %v", r)
	}
}
