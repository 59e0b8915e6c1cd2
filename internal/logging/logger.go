// Package logging builds the logrus logger shared by the application.
package logging

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/example/ipacheck/internal/ctxutil"
)

// Options controls where and how much is logged.
type Options struct {
	Debug   bool   // debug level
	Verbose bool   // info level; default is warn
	Quiet   bool   // no console output
	File    string // optional JSON log file, appended to
}

// New builds a logger from opts. The returned closer flushes the log file, if any.
func New(opts Options) (*logrus.Logger, io.Closer, error) {
	logger := logrus.New()
	logger.SetLevel(level(opts))
	logger.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})

	var console io.Writer = os.Stderr
	if opts.Quiet {
		console = io.Discard
	}
	logger.SetOutput(console)

	if opts.File == "" {
		return logger, nopCloser{}, nil
	}

	if err := os.MkdirAll(filepath.Dir(opts.File), 0755); err != nil {
		return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}
	logger.AddHook(&fileHook{
		out:       f,
		formatter: &logrus.JSONFormatter{},
		levels:    logrus.AllLevels[:logger.GetLevel()+1],
	})
	return logger, f, nil
}

// Discard returns a logger that writes nowhere. Used by tests and library callers.
func Discard() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// FromContext returns an entry carrying the run ID found in ctx.
func FromContext(ctx context.Context, logger logrus.FieldLogger) logrus.FieldLogger {
	if runID := ctxutil.RunFromContext(ctx); runID != "" {
		return logger.WithField("run_id", runID)
	}
	return logger
}

func level(opts Options) logrus.Level {
	switch {
	case opts.Debug:
		return logrus.DebugLevel
	case opts.Verbose:
		return logrus.InfoLevel
	}
	return logrus.WarnLevel
}

// fileHook writes entries to a file in its own format, independent of the console output.
type fileHook struct {
	out       io.Writer
	formatter logrus.Formatter
	levels    []logrus.Level
}

func (h *fileHook) Levels() []logrus.Level { return h.levels }

func (h *fileHook) Fire(entry *logrus.Entry) error {
	line, err := h.formatter.Format(entry)
	if err != nil {
		return err
	}
	_, err = h.out.Write(line)
	return err
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
