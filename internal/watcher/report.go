package watcher

// Operation names carried by OperationReport.
const (
	OpWatch  = "watch"
	OpDelete = "delete"
)

// OperationReport summarises one completed Watch or Delete call.
type OperationReport struct {
	Token           string `json:"token"`
	Op              string `json:"op"`
	ModuleID        string `json:"module_id"`
	WatchID         int64  `json:"watch_id"`
	EventKinds      string `json:"event_kinds,omitempty"`
	AffectedTypes   int    `json:"affected_types"`
	AffectedMethods int    `json:"affected_methods"`
	RetransformReport
}

// Reporter receives an OperationReport after every Watch and Delete that
// touched a hook. Report runs on the caller's goroutine and must not call
// back into the registry.
type Reporter interface {
	Report(report OperationReport)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(report OperationReport)

// Report calls f(report).
func (f ReporterFunc) Report(report OperationReport) {
	f(report)
}
