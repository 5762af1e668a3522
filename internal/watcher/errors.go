package watcher

import (
	"errors"
	"fmt"

	"github.com/roach88/watchcore/internal/ir"
)

var (
	// ErrNilPredicate is returned when Watch is called without a predicate.
	ErrNilPredicate = errors.New("watch predicate is nil")

	// ErrNilListener is returned when Watch is called without a listener.
	ErrNilListener = errors.New("watch listener is nil")

	// ErrNilCallback is returned when Watching is called without a callback.
	ErrNilCallback = errors.New("watching callback is nil")

	// ErrRegistryClosed is returned by Watch once the owning module unloaded.
	ErrRegistryClosed = errors.New("watch registry closed: module unloaded")
)

// RewriteError describes one type that could not be retransformed.
// It is the cause handed to Progress.ProgressOnFailed.
type RewriteError struct {
	// WatchID is the watch or delete call the rewrite belonged to.
	WatchID int64

	// Type is the type that failed.
	Type ir.LoadedType

	// Index is the 1-based position of Type in the pass.
	Index int

	// Total is the number of types in the pass.
	Total int

	// Err is the rewrite service's failure.
	Err error
}

// Error implements the error interface.
func (e *RewriteError) Error() string {
	return fmt.Sprintf("retransform %s (%d/%d, watch=%d): %v", e.Type.Name, e.Index, e.Total, e.WatchID, e.Err)
}

// Unwrap returns the rewrite service's failure.
func (e *RewriteError) Unwrap() error {
	return e.Err
}

// IsRewriteError reports whether err is or wraps a RewriteError.
func IsRewriteError(err error) bool {
	var re *RewriteError
	return errors.As(err, &re)
}
