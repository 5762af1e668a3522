package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/roach88/watchcore/internal/watcher"
)

// journalWriteTimeout bounds one journal write; the registry's caller is
// blocked for its duration.
const journalWriteTimeout = 5 * time.Second

// Journal adapts a Store to watcher.Reporter.
//
// Write failures are logged, never returned: a broken journal must not
// fail a watch that already succeeded.
type Journal struct {
	store  *Store
	logger *slog.Logger
}

// NewJournal creates a reporter that appends to store.
// A nil logger uses slog.Default().
func NewJournal(store *Store, logger *slog.Logger) *Journal {
	if logger == nil {
		logger = slog.Default()
	}
	return &Journal{store: store, logger: logger}
}

// Report implements watcher.Reporter.
func (j *Journal) Report(r watcher.OperationReport) {
	ctx, cancel := context.WithTimeout(context.Background(), journalWriteTimeout)
	defer cancel()

	if err := j.store.WriteOperation(ctx, r); err != nil {
		j.logger.Error("journal write failed",
			"token", r.Token,
			"op", r.Op,
			"watch_id", r.WatchID,
			"error", err,
		)
	}
}

var _ watcher.Reporter = (*Journal)(nil)
