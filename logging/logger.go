// Package logging builds the structured logger shared by the server, the CLI
// and the document engine.
//
// Output always goes to stderr (or a caller-supplied writer): stdout carries
// the MCP stdio transport and must stay clean.
//
//	logger := logging.New(logging.Config{Level: logging.LevelDebug, Service: "docstruct"})
//	logger.Info("document loaded", "document_id", id, "elements", n)
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// =============================================================================
// Log Levels
// =============================================================================

// Level represents log severity levels, ordered Debug < Info < Warn < Error.
type Level int

const (
	// LevelDebug is for development troubleshooting.
	LevelDebug Level = iota

	// LevelInfo is for normal operational messages.
	LevelInfo

	// LevelWarn is for recovered problems, such as a placement that fell back
	// to the end of the document.
	LevelWarn

	// LevelError is for failed operations.
	LevelError
)

// String returns "DEBUG", "INFO", "WARN", "ERROR", or "UNKNOWN".
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel accepts debug, info, warn/warning and error in any case.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "", "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// toSlogLevel bridges Level to the standard library.
func (l Level) toSlogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// =============================================================================
// Configuration
// =============================================================================

// Config configures New. A zero Config writes Info+ text records to stderr.
type Config struct {
	// Level is the minimum severity emitted.
	Level Level

	// JSON selects the JSON handler instead of key=value text.
	JSON bool

	// Service is attached to every record as "service" when non-empty.
	Service string

	// Output overrides stderr. Tests use a bytes.Buffer.
	Output io.Writer
}

// =============================================================================
// Constructors
// =============================================================================

// New creates a logger from cfg.
func New(cfg Config) *slog.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}

	opts := &slog.HandlerOptions{Level: cfg.Level.toSlogLevel()}

	var handler slog.Handler
	if cfg.JSON {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}

	logger := slog.New(handler)
	if cfg.Service != "" {
		logger = logger.With("service", cfg.Service)
	}
	return logger
}

// Default returns an Info-level text logger on stderr.
func Default() *slog.Logger {
	return New(Config{})
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return New(Config{Output: io.Discard, Level: LevelError})
}
