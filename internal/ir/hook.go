package ir

// Hook is an installed rewrite hook as seen by the rewrite service.
//
// The rewrite service consults Predicate and EventKinds when it rewrites a
// type, and reports every type it rewrote through Affect, keyed by the
// type's loader and canonical name. Affect is the
// hook's own accounting; the core reads the counters back, it never
// computes them.
type Hook interface {
	WatchID() int64
	ModuleID() string
	Predicate() Predicate
	EventKinds() EventKinds
	ListenerHandle() int64
	Affect(t LoadedType, methods int)
}
