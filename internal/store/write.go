package store

import (
	"context"
	"fmt"

	"github.com/roach88/watchcore/internal/watcher"
)

// WriteOperation appends an operation report to the journal.
// Uses ON CONFLICT DO NOTHING for idempotency - writing the same
// (token, op, watch_id) twice keeps the first row.
func (s *Store) WriteOperation(ctx context.Context, r watcher.OperationReport) error {
	reportJSON, err := marshalReport(r)
	if err != nil {
		return fmt.Errorf("write operation: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO operations
		(token, op, module_id, watch_id, event_kinds, affected_types, affected_methods, total, failed, bulk, report)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`,
		r.Token,
		r.Op,
		r.ModuleID,
		r.WatchID,
		r.EventKinds,
		r.AffectedTypes,
		r.AffectedMethods,
		r.Total,
		r.Failed,
		boolToInt(r.Bulk),
		reportJSON,
	)
	if err != nil {
		return fmt.Errorf("write operation: %w", err)
	}

	return nil
}
