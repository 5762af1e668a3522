package cli

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/dustin/go-humanize/english"
	"github.com/fatih/color"

	"github.com/roach88/watchcore/internal/harness"
	"github.com/roach88/watchcore/internal/store"
)

// renderTrace writes one line per trace entry.
func renderTrace(w io.Writer, trace []harness.TraceEvent) {
	gray := color.New(color.FgHiBlack).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()

	for _, ev := range trace {
		fmt.Fprintf(w, "%s %s %s\n",
			gray(fmt.Sprintf("%4d", ev.Seq)),
			cyan(fmt.Sprintf("%-9s", ev.Type)),
			describeTraceEvent(ev),
		)
	}
}

func describeTraceEvent(ev harness.TraceEvent) string {
	switch ev.Type {
	case harness.TraceWatch:
		return fmt.Sprintf("%s #%d %s", refLabel(ev.Ref), ev.WatchID, ev.Detail)
	case harness.TraceDelete:
		return fmt.Sprintf("%s #%d", refLabel(ev.Ref), ev.WatchID)
	case harness.TraceProgress:
		return describeProgress(ev)
	case harness.TraceInvoke:
		return fmt.Sprintf("%s.%s -> %s", ev.TypeName, ev.Detail, english.Plural(ev.Count, "event", ""))
	case harness.TraceLoad:
		return fmt.Sprintf("%s woven with %s", ev.TypeName, english.Plural(ev.Count, "hook", ""))
	case harness.TraceLifecycle:
		return fmt.Sprintf("%s (%s live)", ev.Detail, english.Plural(ev.Count, "watch", "watches"))
	case harness.TraceScoped:
		return fmt.Sprintf("%s %s (%s live)", refLabel(ev.Ref), ev.Stage, english.Plural(ev.Count, "watch", "watches"))
	case harness.TraceParallel:
		return fmt.Sprintf("%s joined (%s live)", english.Plural(ev.Count, "step", ""), english.Plural(ev.Total, "watch", "watches"))
	case harness.TraceError:
		return color.New(color.FgYellow).Sprint(ev.Detail)
	default:
		return ev.Detail
	}
}

func describeProgress(ev harness.TraceEvent) string {
	ref := refLabel(ev.Ref)
	switch ev.Stage {
	case "begin":
		return fmt.Sprintf("%s begin %s", ref, english.Plural(ev.Total, "type", ""))
	case "success":
		return fmt.Sprintf("%s %s %s (%s)", ref, passMark(), ev.TypeName, humanize.Ordinal(ev.Index))
	case "failed":
		return fmt.Sprintf("%s %s %s (%s): %s", ref, failMark(), ev.TypeName, humanize.Ordinal(ev.Index), ev.Detail)
	case "finish":
		return fmt.Sprintf("%s finish %s, %s", ref,
			english.Plural(ev.Types, "type", ""),
			english.Plural(ev.Methods, "method", ""),
		)
	default:
		return fmt.Sprintf("%s %s", ref, ev.Stage)
	}
}

func refLabel(ref string) string {
	if ref == "" {
		return "-"
	}
	return ref
}

// renderStats writes the counters of a scenario run.
func renderStats(w io.Writer, stats harness.Stats) {
	fmt.Fprintf(w, "%s delivered, progress %s ok / %s failed, %s live\n",
		english.Plural(stats.Events, "event", ""),
		humanize.Comma(int64(stats.ProgressSuccess)),
		humanize.Comma(int64(stats.ProgressFailed)),
		english.Plural(stats.Records, "watch", "watches"),
	)
}

// renderEntries writes one line per journal entry.
func renderEntries(w io.Writer, entries []store.Entry) {
	gray := color.New(color.FgHiBlack).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()

	for _, e := range entries {
		r := e.Report
		op := green(fmt.Sprintf("%-6s", r.Op))
		if r.Op == "delete" {
			op = red(fmt.Sprintf("%-6s", r.Op))
		}
		mode := "single"
		if r.Bulk {
			mode = "bulk"
		}
		fmt.Fprintf(w, "%s %s %s #%d %s, %s, %s/%s rewritten (%s) %s\n",
			gray(fmt.Sprintf("%4d", e.Seq)),
			op,
			r.ModuleID,
			r.WatchID,
			english.Plural(r.AffectedTypes, "type", ""),
			english.Plural(r.AffectedMethods, "method", ""),
			humanize.Comma(int64(r.Total-r.Failed)),
			humanize.Comma(int64(r.Total)),
			mode,
			gray(r.Token),
		)
	}
}
