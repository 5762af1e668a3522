package watcher

import "sync"

// recordSet is one module's collection of hook records.
//
// Thread-safety: all methods are safe for concurrent use. Iteration goes
// through snapshot, so callers never observe a slice that is being
// mutated. Once sealed the set rejects additions but still allows claims.
type recordSet struct {
	mu      sync.Mutex
	records []*HookRecord
	sealed  bool
}

func newRecordSet() *recordSet {
	return &recordSet{}
}

// add appends record. Returns false if the set is sealed.
func (s *recordSet) add(record *HookRecord) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sealed {
		return false
	}
	s.records = append(s.records, record)
	return true
}

// claim removes and returns every record with watchID. The scan is linear
// and an unknown id yields nil. Only the caller that claims a record may
// release it.
func (s *recordSet) claim(watchID int64) []*HookRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	var claimed []*HookRecord
	kept := make([]*HookRecord, 0, len(s.records))
	for _, record := range s.records {
		if record.WatchID() == watchID {
			claimed = append(claimed, record)
			continue
		}
		kept = append(kept, record)
	}
	if len(claimed) > 0 {
		s.records = kept
	}
	return claimed
}

// restore puts records back after a failed release. Restoring ignores the
// seal: the records were never released.
func (s *recordSet) restore(records ...*HookRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, records...)
}

// find returns the record with watchID, if present.
func (s *recordSet) find(watchID int64) (*HookRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, record := range s.records {
		if record.WatchID() == watchID {
			return record, true
		}
	}
	return nil, false
}

// snapshot copies the current records in insertion order.
func (s *recordSet) snapshot() []*HookRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*HookRecord, len(s.records))
	copy(out, s.records)
	return out
}

// seal rejects future additions and returns the records present at that
// instant. A second seal returns nil.
func (s *recordSet) seal() []*HookRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sealed {
		return nil
	}
	s.sealed = true
	out := make([]*HookRecord, len(s.records))
	copy(out, s.records)
	return out
}

func (s *recordSet) isSealed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sealed
}

func (s *recordSet) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}
