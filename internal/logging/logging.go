package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	EnvLogLevel   = "SHARKEMON_LOG_LEVEL"
	EnvLogNoColor = "SHARKEMON_LOG_NOCOLOR"
)

type Options struct {
	Level   zerolog.Level
	NoColor bool
	// File, when set, receives the log instead of stderr. The TUI owns the
	// terminal, so it logs here.
	File string
}

// Configure installs the global logger and returns it together with a
// closer for the log file, if any.
func Configure(opts Options) (zerolog.Logger, io.Closer, error) {
	applyEnvOverrides(&opts)

	var out io.Writer = os.Stderr
	var closer io.Closer = nopCloser{}
	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
			return zerolog.Nop(), nil, fmt.Errorf("open log file: %w", err)
		}
		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return zerolog.Nop(), nil, fmt.Errorf("open log file: %w", err)
		}
		out, closer = f, f
		opts.NoColor = true
	}

	logger := New(out, opts)
	zerolog.SetGlobalLevel(opts.Level)
	log.Logger = logger
	return logger, closer, nil
}

// New builds a console logger on w without touching global state.
func New(w io.Writer, opts Options) zerolog.Logger {
	output := zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: time.RFC3339,
		NoColor:    opts.NoColor,
	}
	return zerolog.New(output).Level(opts.Level).With().Timestamp().Str("app", "sharkemon").Logger()
}

func applyEnvOverrides(opts *Options) {
	if lvl, ok := parseLevel(os.Getenv(EnvLogLevel)); ok {
		opts.Level = lvl
	}
	if v, ok := parseBool(os.Getenv(EnvLogNoColor)); ok {
		opts.NoColor = v
	}
}

func parseLevel(raw string) (zerolog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return zerolog.InfoLevel, false
	case "trace":
		return zerolog.TraceLevel, true
	case "debug":
		return zerolog.DebugLevel, true
	case "info":
		return zerolog.InfoLevel, true
	case "warn", "warning":
		return zerolog.WarnLevel, true
	case "error":
		return zerolog.ErrorLevel, true
	case "disabled", "off", "none":
		return zerolog.Disabled, true
	default:
		return zerolog.InfoLevel, false
	}
}

func parseBool(raw string) (bool, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
