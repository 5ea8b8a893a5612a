// Package logs builds the process logger: a terminal handler, fanned out
// to a debug log file when one is configured.
package logs

import (
	"fmt"
	"log/slog"
	"os"

	slogmulti "github.com/samber/slog-multi"
)

// New returns a logger writing text to stderr, plus a debug-level file
// handler when debugPath is set. The returned close function flushes and
// closes the debug file; it is a no-op otherwise.
func New(verbose bool, debugPath string) (*slog.Logger, func() error, error) {
	level := slog.LevelInfo
	if verbose || debugPath != "" {
		level = slog.LevelDebug
	}

	terminal := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: terminalLevel(verbose),
	})

	if debugPath == "" {
		return slog.New(terminal), func() error { return nil }, nil
	}

	f, err := os.OpenFile(debugPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("open debug log %s: %w", debugPath, err)
	}
	file := slog.NewTextHandler(f, &slog.HandlerOptions{Level: level})

	logger := slog.New(slogmulti.Fanout(terminal, file))
	return logger, f.Close, nil
}

func terminalLevel(verbose bool) slog.Level {
	if verbose {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}
