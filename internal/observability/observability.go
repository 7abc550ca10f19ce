// Package observability configures process-wide structured logging.
package observability

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"
)

const (
	FormatText = "text"
	FormatJSON = "json"
)

// NewHandler builds a slog handler for format writing to w.
func NewHandler(w io.Writer, level slog.Level, format string) (slog.Handler, error) {
	opts := &slog.HandlerOptions{Level: level}
	switch strings.ToLower(format) {
	case "", FormatText:
		return slog.NewTextHandler(w, opts), nil
	case FormatJSON:
		return slog.NewJSONHandler(w, opts), nil
	}
	return nil, fmt.Errorf("unsupported log format %q (text|json)", format)
}

// Instrument installs the default logger on stderr, tagged with a fresh
// invocation_id. Stdout is reserved for the lambda envelope.
func Instrument(level slog.Level, format string) (*slog.Logger, error) {
	return InstrumentTo(os.Stderr, level, format)
}

// InstrumentTo is Instrument with an explicit destination.
func InstrumentTo(w io.Writer, level slog.Level, format string) (*slog.Logger, error) {
	h, err := NewHandler(w, level, format)
	if err != nil {
		return nil, err
	}
	logger := slog.New(h).With("invocation_id", uuid.NewString())
	slog.SetDefault(logger)
	return logger, nil
}
