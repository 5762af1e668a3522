package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/watchcore/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	WatchID  int64  // optional - filter to one watch
	Module   string // optional - filter to one module
	Token    string // optional - the one operation written under a token
}

// TraceEntry is one journaled operation.
type TraceEntry struct {
	Seq             int64  `json:"seq"`
	Token           string `json:"token"`
	Op              string `json:"op"`
	ModuleID        string `json:"module_id"`
	WatchID         int64  `json:"watch_id"`
	EventKinds      string `json:"event_kinds,omitempty"`
	AffectedTypes   int    `json:"affected_types"`
	AffectedMethods int    `json:"affected_methods"`
	Total           int    `json:"total"`
	Failed          int    `json:"failed"`
	Bulk            bool   `json:"bulk"`
}

// TraceResult holds the complete trace output. Journal counts every
// operation in the file by op, ignoring filters.
type TraceResult struct {
	Entries []TraceEntry   `json:"entries"`
	Stats   TraceStats     `json:"stats"`
	Journal map[string]int `json:"journal"`
}

// TraceStats holds summary statistics for the journal.
type TraceStats struct {
	Entries int `json:"entries"`
	Watches int `json:"watches"`
	Deletes int `json:"deletes"`
	Failed  int `json:"failed_types"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "List journaled watch and delete operations",
		Long: `List the operations recorded in a watch journal.

Every watch and delete appends one entry holding its operation token,
the affected type and method counts and the outcome of the
retransformation pass.

Examples:
  watchctl trace --db ./watch.db
  watchctl trace --db ./watch.db --watch 1000
  watchctl trace --db ./watch.db --token 0192f1c4-...
  watchctl trace --db ./watch.db --module orders --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().Int64Var(&opts.WatchID, "watch", 0, "filter to one watch id")
	cmd.Flags().StringVar(&opts.Module, "module", "", "filter to one module")
	cmd.Flags().StringVar(&opts.Token, "token", "", "show the operation written under a token")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	f := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	// store.Open creates missing files; a trace of nothing is a usage error.
	if _, err := os.Stat(opts.Database); os.IsNotExist(err) {
		return NewExitError(ExitCommandError, fmt.Sprintf("journal not found: %s", opts.Database))
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	defer st.Close()

	var entries []store.Entry
	switch {
	case opts.Token != "":
		entries, err = readToken(ctx, st, opts.Token)
	case opts.WatchID != 0:
		entries, err = st.ReadWatch(ctx, opts.WatchID)
	case opts.Module != "":
		entries, err = st.ReadModule(ctx, opts.Module)
	default:
		entries, err = st.ReadAll(ctx)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read journal", err)
	}

	// A watch id is only unique within a module.
	if (opts.Token != "" || opts.WatchID != 0) && opts.Module != "" {
		entries = filterModule(entries, opts.Module)
	}
	f.VerboseLog("read %d journal entries from %s", len(entries), opts.Database)

	counts, err := st.CountByOp(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to count journal", err)
	}
	result := buildTraceResult(entries)
	result.Journal = counts

	if f.JSON() {
		return f.Success(result)
	}

	w := cmd.OutOrStdout()
	if len(entries) == 0 {
		fmt.Fprintln(w, "No journal entries found.")
		return nil
	}
	renderEntries(w, entries)
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Entries: %d (%d watch, %d delete), %d failed type(s)\n",
		result.Stats.Entries, result.Stats.Watches, result.Stats.Deletes, result.Stats.Failed)
	fmt.Fprintf(w, "Journal: %d watch, %d delete\n", counts["watch"], counts["delete"])
	return nil
}

// readToken returns the entry written under token, or none.
func readToken(ctx context.Context, st *store.Store, token string) ([]store.Entry, error) {
	entry, err := st.ReadToken(ctx, token)
	if errors.Is(err, store.ErrNotFound) {
		return []store.Entry{}, nil
	}
	if err != nil {
		return nil, err
	}
	return []store.Entry{entry}, nil
}

func filterModule(entries []store.Entry, module string) []store.Entry {
	kept := entries[:0]
	for _, e := range entries {
		if e.Report.ModuleID == module {
			kept = append(kept, e)
		}
	}
	return kept
}

func buildTraceResult(entries []store.Entry) TraceResult {
	result := TraceResult{
		Entries: make([]TraceEntry, 0, len(entries)),
	}
	for _, e := range entries {
		r := e.Report
		result.Entries = append(result.Entries, TraceEntry{
			Seq:             e.Seq,
			Token:           r.Token,
			Op:              r.Op,
			ModuleID:        r.ModuleID,
			WatchID:         r.WatchID,
			EventKinds:      r.EventKinds,
			AffectedTypes:   r.AffectedTypes,
			AffectedMethods: r.AffectedMethods,
			Total:           r.Total,
			Failed:          r.Failed,
			Bulk:            r.Bulk,
		})

		switch r.Op {
		case "watch":
			result.Stats.Watches++
		case "delete":
			result.Stats.Deletes++
		}
		result.Stats.Failed += r.Failed
	}
	result.Stats.Entries = len(result.Entries)
	return result
}
