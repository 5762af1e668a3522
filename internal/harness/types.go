package harness

// Trace event types.
const (
	TraceWatch     = "watch"
	TraceDelete    = "delete"
	TraceProgress  = "progress"
	TraceInvoke    = "invoke"
	TraceLoad      = "load"
	TraceLifecycle = "lifecycle"
	TraceScoped    = "scoped"
	TraceParallel  = "parallel"
	TraceError     = "error"
)

// TraceEvent is one entry of a scenario trace. Zero-valued fields are
// omitted from snapshots.
type TraceEvent struct {
	Seq     int64  `json:"seq"`
	Type    string `json:"type"`
	Ref     string `json:"ref,omitempty"`
	WatchID int64  `json:"watch_id,omitempty"`

	// Stage is the progress callback: begin, success, failed or finish.
	Stage    string `json:"stage,omitempty"`
	TypeName string `json:"type_name,omitempty"`
	Index    int    `json:"index,omitempty"`
	Total    int    `json:"total,omitempty"`

	// Types and Methods are the affected counts reported by finish.
	Types   int `json:"types,omitempty"`
	Methods int `json:"methods,omitempty"`

	// Count is a step-specific tally: events delivered, hooks woven on
	// load, or steps in a parallel block.
	Count int `json:"count,omitempty"`

	Detail string `json:"detail,omitempty"`
}

// Stats are the counters assertions check.
type Stats struct {
	ProgressSuccess int `json:"progress_success"`
	ProgressFailed  int `json:"progress_failed"`
	Events          int `json:"events"`
	Records         int `json:"records"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every step behaved as expected and every assertion
	// held.
	Pass bool `json:"pass"`

	// Trace lists what happened, in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains failure messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	Stats Stats `json:"stats"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
