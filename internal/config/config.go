// Package config loads watchcore configuration from CUE.
//
// A configuration document is unified with an embedded schema that
// supplies defaults and constraints:
//
//	watchcore: {
//		watch_id_base: 5000
//		bulk_progress: true
//		log_level:     "debug"
//	}
//
// The schema is closed, so a misspelled field is an error rather than a
// silently ignored setting.
package config

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"slices"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/watchcore/internal/ir"
	"github.com/roach88/watchcore/internal/watcher"
)

//go:embed schema.cue
var schemaCUE string

// Config is the resolved configuration.
type Config struct {
	WatchIDBase      int64    `json:"watch_id_base"`
	EphemeralMarkers []string `json:"ephemeral_markers"`
	BulkProgress     bool     `json:"bulk_progress"`
	Journal          string   `json:"journal"`
	LogLevel         string   `json:"log_level"`
}

// ConfigError is a configuration error with source position.
type ConfigError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *ConfigError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Default returns the configuration of an empty document.
func Default() Config {
	cfg, err := Parse(nil, "default.cue")
	if err != nil {
		// The embedded schema is known to resolve.
		panic(fmt.Sprintf("config: default configuration: %v", err))
	}
	return cfg
}

// Load reads and resolves the CUE file at path.
func Load(path string) (Config, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return Parse(src, path)
}

// Parse resolves a CUE document against the schema. filename is used in
// error positions.
func Parse(src []byte, filename string) (Config, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return Config{}, formatCUEError(err)
	}

	doc := ctx.CompileBytes(src, cue.Filename(filename))
	if err := doc.Err(); err != nil {
		return Config{}, formatCUEError(err)
	}

	unified := schema.Unify(doc)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return Config{}, formatCUEError(err)
	}

	var cfg Config
	if err := unified.LookupPath(cue.ParsePath("watchcore")).Decode(&cfg); err != nil {
		return Config{}, formatCUEError(err)
	}
	return cfg, nil
}

// RegistryOptions converts the configuration to registry options.
func (c Config) RegistryOptions() []watcher.Option {
	return []watcher.Option{
		watcher.WithWatchIDBase(c.WatchIDBase),
		watcher.WithEphemeralMarkers(c.EphemeralMarkers),
		watcher.WithBulkProgress(c.BulkProgress),
	}
}

// Markers returns every ephemeral marker a registry built from c applies:
// the lambda markers followed by ephemeral_markers.
func (c Config) Markers() []string {
	return append(slices.Clone(ir.DefaultEphemeralMarkers), c.EphemeralMarkers...)
}

// SlogLevel maps log_level to a slog level.
func (c Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &ConfigError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}
	return err
}
