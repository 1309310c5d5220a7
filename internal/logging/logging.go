// Package logging builds the zerolog logger used across photovault: a
// console writer on stderr plus an optional rotating file via lumberjack.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/natefinch/lumberjack"
	"github.com/rs/zerolog"

	"github.com/illarion/photovault/internal/config"
)

// New returns a logger configured from cfg, writing human-readable lines
// to stderr. The returned closer flushes and closes the log file, if any.
func New(cfg config.LogConfig) (zerolog.Logger, io.Closer, error) {
	return newLogger(cfg, os.Stderr)
}

func newLogger(cfg config.LogConfig, stderr io.Writer) (zerolog.Logger, io.Closer, error) {
	if cfg.Level == "" {
		return zerolog.Nop(), nopCloser{}, fmt.Errorf("log level not set")
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		return zerolog.Nop(), nopCloser{}, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	console := zerolog.NewConsoleWriter(func(w *zerolog.ConsoleWriter) {
		w.Out = stderr
		w.TimeFormat = time.Kitchen
	})
	writers := []io.Writer{console}

	var closer io.Closer = nopCloser{}
	if cfg.File != "" {
		lj := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
		}
		writers = append(writers, lj)
		closer = lj
	}

	logger := zerolog.New(io.MultiWriter(writers...)).Level(lvl).With().Timestamp().Logger()
	return logger, closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
