package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/watchcore/internal/store"
	"github.com/roach88/watchcore/internal/watcher"
)

func executeTrace(t *testing.T, format string, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: format}
	cmd := NewTraceCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func decodeTraceResult(t *testing.T, out string) TraceResult {
	t.Helper()
	var resp struct {
		Status string      `json:"status"`
		Data   TraceResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Equal(t, "ok", resp.Status)
	return resp.Data
}

// seedJournal writes reports for two modules.
func seedJournal(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "watch.db")
	st, err := store.Open(path)
	require.NoError(t, err)
	defer st.Close()

	ctx := context.Background()
	reports := []watcher.OperationReport{
		{Token: "t1", Op: watcher.OpWatch, ModuleID: "orders", WatchID: 1000, EventKinds: "BEFORE",
			AffectedTypes: 2, AffectedMethods: 3,
			RetransformReport: watcher.RetransformReport{Total: 2, Bulk: true}},
		{Token: "t2", Op: watcher.OpWatch, ModuleID: "billing", WatchID: 1000,
			AffectedTypes: 1, AffectedMethods: 1,
			RetransformReport: watcher.RetransformReport{Total: 2, Failed: 1}},
		{Token: "t3", Op: watcher.OpDelete, ModuleID: "orders", WatchID: 1000,
			AffectedTypes: 2, AffectedMethods: 3,
			RetransformReport: watcher.RetransformReport{Total: 2, Bulk: true}},
	}
	for _, r := range reports {
		require.NoError(t, st.WriteOperation(ctx, r))
	}
	return path
}

func TestTraceCommandMissingDB(t *testing.T) {
	_, err := executeTrace(t, "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `required flag(s) "db" not set`)
}

func TestTraceCommandJournalNotFound(t *testing.T) {
	_, err := executeTrace(t, "text", "--db", filepath.Join(t.TempDir(), "missing.db"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "journal not found")
}

func TestTraceCommandAllJSON(t *testing.T) {
	db := seedJournal(t)

	out, err := executeTrace(t, "json", "--db", db)
	require.NoError(t, err)

	result := decodeTraceResult(t, out)
	require.Len(t, result.Entries, 3)
	assert.Equal(t, []string{"t1", "t2", "t3"}, []string{
		result.Entries[0].Token, result.Entries[1].Token, result.Entries[2].Token,
	})
	assert.Equal(t, "BEFORE", result.Entries[0].EventKinds)
	assert.Equal(t, TraceStats{Entries: 3, Watches: 2, Deletes: 1, Failed: 1}, result.Stats)
	assert.Equal(t, map[string]int{"watch": 2, "delete": 1}, result.Journal)
}

func TestTraceCommandFilters(t *testing.T) {
	db := seedJournal(t)

	tests := []struct {
		name   string
		args   []string
		tokens []string
	}{
		{"module", []string{"--module", "orders"}, []string{"t1", "t3"}},
		{"watch", []string{"--watch", "1000"}, []string{"t1", "t2", "t3"}},
		{"watch in module", []string{"--watch", "1000", "--module", "billing"}, []string{"t2"}},
		{"no match", []string{"--watch", "9999"}, []string{}},
		{"token", []string{"--token", "t2"}, []string{"t2"}},
		{"unknown token", []string{"--token", "t9"}, []string{}},
		{"token in other module", []string{"--token", "t2", "--module", "orders"}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := executeTrace(t, "json", append([]string{"--db", db}, tt.args...)...)
			require.NoError(t, err)

			result := decodeTraceResult(t, out)
			tokens := []string{}
			for _, e := range result.Entries {
				tokens = append(tokens, e.Token)
			}
			assert.Equal(t, tt.tokens, tokens)
			assert.Equal(t, map[string]int{"watch": 2, "delete": 1}, result.Journal, "journal counts ignore filters")
		})
	}
}

func TestTraceCommandText(t *testing.T) {
	db := seedJournal(t)

	out, err := executeTrace(t, "text", "--db", db)
	require.NoError(t, err)

	assert.Contains(t, out, "watch  orders #1000 2 types, 3 methods, 2/2 rewritten (bulk) t1")
	assert.Contains(t, out, "watch  billing #1000 1 type, 1 method, 1/2 rewritten (single) t2")
	assert.Contains(t, out, "delete orders #1000")
	assert.Contains(t, out, "Entries: 3 (2 watch, 1 delete), 1 failed type(s)")
	assert.Contains(t, out, "Journal: 2 watch, 1 delete")
}

func TestTraceCommandEmptyText(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.db")
	st, err := store.Open(path)
	require.NoError(t, err)
	require.NoError(t, st.Close())

	out, err := executeTrace(t, "text", "--db", path)
	require.NoError(t, err)
	assert.Contains(t, out, "No journal entries found.")
}
