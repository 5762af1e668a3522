package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/watchcore/internal/config"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool           `json:"valid"`
	Config *config.Config `json:"config,omitempty"`
	Error  string         `json:"error,omitempty"`
	Line   int            `json:"line,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <config.cue>",
		Short: "Validate a configuration file",
		Long: `Validate a watchcore CUE configuration against the built-in schema.

Unset fields take their defaults; the resolved configuration is printed.
Unknown fields and out-of-range values are errors.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := formatter.Error("E_NOT_FOUND", fmt.Sprintf("configuration not found: %s", path), nil); err != nil {
			return err
		}
		return NewExitError(ExitCommandError, fmt.Sprintf("configuration not found: %s", path))
	}

	formatter.VerboseLog("validating %s", path)
	cfg, err := config.Load(path)
	if err != nil {
		return outputValidateError(formatter, err)
	}

	if formatter.JSON() {
		return formatter.Success(ValidationResult{Valid: true, Config: &cfg})
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "%s %s is valid\n", passMark(), path)
	fmt.Fprintf(w, "  watch_id_base:     %d\n", cfg.WatchIDBase)
	fmt.Fprintf(w, "  ephemeral_markers: %s\n", strings.Join(cfg.Markers(), ", "))
	fmt.Fprintf(w, "  bulk_progress:     %t\n", cfg.BulkProgress)
	fmt.Fprintf(w, "  journal:           %s\n", orNone(cfg.Journal))
	fmt.Fprintf(w, "  log_level:         %s\n", cfg.LogLevel)
	return nil
}

func outputValidateError(f *OutputFormatter, err error) error {
	result := ValidationResult{Valid: false, Error: err.Error()}

	var cfgErr *config.ConfigError
	if errors.As(err, &cfgErr) && cfgErr.Pos.IsValid() {
		result.Line = cfgErr.Pos.Line()
	}

	if f.JSON() {
		if err := f.Failure(result, "E_CONFIG_INVALID", "configuration invalid"); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(f.Writer, "%s %v\n", failMark(), err)
	}
	return WrapExitError(ExitFailure, "configuration invalid", err)
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
