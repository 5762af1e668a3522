package ir

import (
	"fmt"
	"strings"
)

// EventKind is a single observable event category.
type EventKind uint16

const (
	EventBefore EventKind = 1 << iota
	EventReturn
	EventThrows
	EventLine
	EventCallBefore
	EventCallReturn
	EventCallThrows
	EventImmediatelyReturn
	EventImmediatelyThrows
)

var eventKindNames = []struct {
	kind EventKind
	name string
}{
	{EventBefore, "BEFORE"},
	{EventReturn, "RETURN"},
	{EventThrows, "THROWS"},
	{EventLine, "LINE"},
	{EventCallBefore, "CALL_BEFORE"},
	{EventCallReturn, "CALL_RETURN"},
	{EventCallThrows, "CALL_THROWS"},
	{EventImmediatelyReturn, "IMMEDIATELY_RETURN"},
	{EventImmediatelyThrows, "IMMEDIATELY_THROWS"},
}

// String returns the upper-case kind name.
func (k EventKind) String() string {
	for _, entry := range eventKindNames {
		if entry.kind == k {
			return entry.name
		}
	}
	return fmt.Sprintf("EventKind(%d)", uint16(k))
}

// ParseEventKind parses a kind name, case-insensitively.
func ParseEventKind(name string) (EventKind, error) {
	upper := strings.ToUpper(strings.TrimSpace(name))
	for _, entry := range eventKindNames {
		if entry.name == upper {
			return entry.kind, nil
		}
	}
	return 0, fmt.Errorf("unknown event kind %q", name)
}

// EventKinds is an immutable set of event kinds.
type EventKinds uint16

// DefaultEventKinds is used when a caller enables no kinds explicitly.
const DefaultEventKinds = EventKinds(EventBefore | EventReturn | EventThrows)

// KindsOf builds a set from individual kinds.
func KindsOf(kinds ...EventKind) EventKinds {
	var set EventKinds
	for _, k := range kinds {
		set |= EventKinds(k)
	}
	return set
}

// ParseEventKinds parses a list of kind names into a set.
func ParseEventKinds(names []string) (EventKinds, error) {
	var set EventKinds
	for _, name := range names {
		k, err := ParseEventKind(name)
		if err != nil {
			return 0, err
		}
		set |= EventKinds(k)
	}
	return set, nil
}

// Has reports whether k is enabled.
func (s EventKinds) Has(k EventKind) bool {
	return s&EventKinds(k) != 0
}

// IsEmpty reports whether no kind is enabled.
func (s EventKinds) IsEmpty() bool {
	return s == 0
}

// List returns the enabled kinds in declaration order.
func (s EventKinds) List() []EventKind {
	var kinds []EventKind
	for _, entry := range eventKindNames {
		if s.Has(entry.kind) {
			kinds = append(kinds, entry.kind)
		}
	}
	return kinds
}

// Names returns the enabled kind names in declaration order.
func (s EventKinds) Names() []string {
	kinds := s.List()
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = k.String()
	}
	return names
}

// String joins the enabled kind names with "|".
func (s EventKinds) String() string {
	if s.IsEmpty() {
		return "NONE"
	}
	return strings.Join(s.Names(), "|")
}

// Event is a single observation delivered to a listener.
type Event struct {
	Kind           EventKind `json:"kind"`
	InvokeID       int64     `json:"invoke_id"`
	ListenerHandle int64     `json:"listener_handle"`
	TypeName       string    `json:"type_name"`
	Method         string    `json:"method"`
}

// EventListener receives events from rewritten invocations.
// The core never calls it; only the event activation service does.
type EventListener interface {
	OnEvent(ev Event) error
}

// ListenerFunc adapts a function to EventListener.
type ListenerFunc func(ev Event) error

// OnEvent calls f(ev).
func (f ListenerFunc) OnEvent(ev Event) error {
	return f(ev)
}
