package crawl

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// newTaskLogger builds the per-task logger writing to logPath. Each run
// starts from a fresh file so reruns of the same task ID overwrite rather
// than append. With verbose set, entries are mirrored to stderr.
//
// The returned closer must be called once the task is done.
func newTaskLogger(logPath string, verbose bool) (*slog.Logger, func() error, error) {
	// lumberjack appends to an existing file; remove it first so a rerun
	// yields only its own entries.
	if err := os.Remove(logPath); err != nil && !os.IsNotExist(err) {
		return nil, nil, fmt.Errorf("reset task log %s: %w", logPath, err)
	}

	file := &lumberjack.Logger{
		Filename:   logPath,
		MaxSize:    20, // MB
		MaxBackups: 2,
	}

	var w io.Writer = file
	if verbose {
		w = io.MultiWriter(file, os.Stderr)
	}

	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	return logger, file.Close, nil
}
