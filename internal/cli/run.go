package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/watchcore/internal/config"
	"github.com/roach88/watchcore/internal/harness"
	"github.com/roach88/watchcore/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database string
	Config   string
}

// RunResult is the JSON payload of the run command.
type RunResult struct {
	Scenario string               `json:"scenario"`
	Pass     bool                 `json:"pass"`
	Trace    []harness.TraceEvent `json:"trace"`
	Stats    harness.Stats        `json:"stats"`
	Errors   []string             `json:"errors,omitempty"`
	Journal  string               `json:"journal,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <scenario.yaml>",
		Short: "Run one scenario against the simulated host",
		Long: `Run a watch scenario against a fresh simulated host.

The scenario's steps install and delete watches, invoke methods and fire
lifecycle events. The resulting trace is printed and the scenario's
assertions are checked. With --db (or a journal path in the configuration)
every watch and delete is appended to a SQLite journal.

Exit codes:
  0 - Scenario passed
  1 - One or more assertions failed
  2 - Command error (unreadable scenario, bad configuration, etc.)

Examples:
  watchctl run ./scenarios/unload.yaml
  watchctl run ./scenarios/unload.yaml --db ./watch.db
  watchctl run ./scenarios/unload.yaml --config ./watchcore.cue --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenario(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal")
	cmd.Flags().StringVar(&opts.Config, "config", "", "path to CUE configuration")

	return cmd
}

func runScenario(opts *RunOptions, path string, cmd *cobra.Command) error {
	f := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	cfg, err := loadConfig(opts.Config)
	if err != nil {
		return err
	}
	logger := commandLogger(opts.RootOptions, cfg, cmd)

	scenario, err := harness.LoadScenario(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load scenario", err)
	}

	runOpts := []harness.Option{
		harness.WithConfig(cfg),
		harness.WithLogger(logger),
	}

	journal := opts.Database
	if journal == "" {
		journal = cfg.Journal
	}
	if journal != "" {
		st, err := store.Open(journal)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open journal", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				logger.Error("error closing journal", "error", closeErr)
			}
		}()
		runOpts = append(runOpts, harness.WithReporter(store.NewJournal(st, logger)))
	}

	f.VerboseLog("running scenario %s from %s", scenario.Name, path)
	result, err := harness.Run(scenario, runOpts...)
	if err != nil {
		return WrapExitError(ExitCommandError, "scenario execution failed", err)
	}
	logger.Debug("scenario finished",
		"scenario", scenario.Name,
		"pass", result.Pass,
		"trace", len(result.Trace),
	)

	data := RunResult{
		Scenario: scenario.Name,
		Pass:     result.Pass,
		Trace:    result.Trace,
		Stats:    result.Stats,
		Errors:   result.Errors,
		Journal:  journal,
	}

	if !f.JSON() {
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "Scenario: %s\n", scenario.Name)
		renderTrace(w, result.Trace)
		renderStats(w, result.Stats)
		for _, e := range result.Errors {
			fmt.Fprintf(w, "  %s\n", e)
		}
	}

	if !result.Pass {
		message := fmt.Sprintf("scenario %s failed: %d error(s)", scenario.Name, len(result.Errors))
		if err := f.Failure(data, "E_SCENARIO_FAILED", message); err != nil {
			return err
		}
		return NewExitError(ExitFailure, message)
	}

	if f.JSON() {
		return f.Success(data)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s scenario passed\n", passMark())
	return nil
}

// loadConfig resolves the configuration at path, or the defaults when
// path is empty.
func loadConfig(path string) (config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, WrapExitError(ExitCommandError, "failed to load configuration", err)
	}
	slog.Debug("configuration loaded", "path", path)
	return cfg, nil
}
