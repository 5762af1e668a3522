package watcher

import "sync/atomic"

// DefaultWatchIDBase keeps watch ids visually apart from other id spaces
// in the host process.
const DefaultWatchIDBase = 1000

// Sequencer issues strictly increasing ids starting at a base.
//
// Thread-safety: Sequencer is safe for concurrent use (atomic operations).
// Overflow is not handled.
type Sequencer struct {
	next atomic.Int64
}

// NewSequencer creates a sequencer whose first id is base.
func NewSequencer(base int64) *Sequencer {
	s := &Sequencer{}
	s.next.Store(base)
	return s
}

// Next returns the next id. Calls are linearizable - each call returns a
// unique, increasing value.
func (s *Sequencer) Next() int64 {
	return s.next.Add(1) - 1
}

// Current returns the id the next call to Next will return.
func (s *Sequencer) Current() int64 {
	return s.next.Load()
}

// listenerHandles correlates hooks with the event activation service.
// Handles are process-wide because the activation service is.
var listenerHandles = NewSequencer(1)
