package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/watchcore/internal/watcher"
)

// ErrNotFound is returned when a journal lookup matches no row.
var ErrNotFound = errors.New("operation not found")

// Entry is one journal row.
type Entry struct {
	Seq    int64
	Report watcher.OperationReport

	// Raw is the canonical JSON stored with the row.
	Raw string
}

const selectEntry = `
	SELECT seq, token, op, module_id, watch_id, event_kinds,
	       affected_types, affected_methods, total, failed, bulk, report
	FROM operations
`

// ReadAll returns every journal entry, ordered by seq.
//
// Returns an empty slice (not nil) if the journal is empty.
func (s *Store) ReadAll(ctx context.Context) ([]Entry, error) {
	return s.readEntries(ctx, selectEntry+` ORDER BY seq ASC`)
}

// ReadModule returns the journal entries of one module, ordered by seq.
func (s *Store) ReadModule(ctx context.Context, moduleID string) ([]Entry, error) {
	return s.readEntries(ctx, selectEntry+` WHERE module_id = ? ORDER BY seq ASC`, moduleID)
}

// ReadWatch returns the entries of one watch id, ordered by seq. Watch ids
// are per module, so entries from several modules may be returned.
func (s *Store) ReadWatch(ctx context.Context, watchID int64) ([]Entry, error) {
	return s.readEntries(ctx, selectEntry+` WHERE watch_id = ? ORDER BY seq ASC`, watchID)
}

// ReadToken returns the entry written under token.
// Returns ErrNotFound if there is none.
func (s *Store) ReadToken(ctx context.Context, token string) (Entry, error) {
	row := s.db.QueryRowContext(ctx, selectEntry+` WHERE token = ? ORDER BY seq ASC LIMIT 1`, token)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, fmt.Errorf("token %q: %w", token, ErrNotFound)
	}
	if err != nil {
		return Entry{}, err
	}
	return entry, nil
}

// CountByOp returns the number of entries per operation name.
func (s *Store) CountByOp(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT op, COUNT(*)
		FROM operations
		GROUP BY op
		ORDER BY op ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("count operations: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var op string
		var n int
		if err := rows.Scan(&op, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[op] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate counts: %w", err)
	}
	return counts, nil
}

func (s *Store) readEntries(ctx context.Context, query string, args ...any) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query operations: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate operations: %w", err)
	}
	return entries, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (Entry, error) {
	var e Entry
	var bulk int
	r := &e.Report
	err := row.Scan(
		&e.Seq,
		&r.Token,
		&r.Op,
		&r.ModuleID,
		&r.WatchID,
		&r.EventKinds,
		&r.AffectedTypes,
		&r.AffectedMethods,
		&r.Total,
		&r.Failed,
		&bulk,
		&e.Raw,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, err
	}
	if err != nil {
		return Entry{}, fmt.Errorf("scan operation: %w", err)
	}
	r.Bulk = bulk != 0
	return e, nil
}
