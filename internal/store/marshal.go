package store

import (
	"fmt"

	"github.com/roach88/watchcore/internal/ir"
	"github.com/roach88/watchcore/internal/watcher"
)

// marshalReport converts an OperationReport to canonical JSON TEXT.
// Keys are the report's JSON field names.
func marshalReport(r watcher.OperationReport) (string, error) {
	m := map[string]any{
		"token":            r.Token,
		"op":               r.Op,
		"module_id":        r.ModuleID,
		"watch_id":         r.WatchID,
		"affected_types":   r.AffectedTypes,
		"affected_methods": r.AffectedMethods,
		"total":            r.Total,
		"failed":           r.Failed,
		"bulk":             r.Bulk,
	}
	if r.EventKinds != "" {
		m["event_kinds"] = r.EventKinds
	}

	data, err := ir.MarshalCanonical(m)
	if err != nil {
		return "", fmt.Errorf("marshal report: %w", err)
	}
	return string(data), nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
