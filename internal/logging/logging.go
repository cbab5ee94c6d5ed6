// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/jeranaias/omnitool/internal/config"
)

// Logger is the process logger. Verbose output goes through Debugf.
type Logger struct {
	*log.Logger
	verbose bool
	closer  io.Closer
}

// Setup builds the process logger from cfg and installs it as the standard
// library default, so components using log.Default() share it.
//
// With cfg.File set, output goes to that file with size-based rotation.
// Otherwise it goes to fallback; a nil fallback means stderr.
func Setup(cfg config.LogConfig, fallback io.Writer) (*Logger, error) {
	l := &Logger{verbose: cfg.Verbose}

	var out io.Writer
	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0700); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		rotator := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		}
		out = rotator
		l.closer = rotator
	} else if fallback != nil {
		out = fallback
	} else {
		out = os.Stderr
	}

	l.Logger = log.New(out, "", log.LstdFlags)
	log.SetOutput(out)
	log.SetFlags(log.LstdFlags)
	return l, nil
}

// Discard returns a logger that drops everything.
func Discard() *Logger {
	return &Logger{Logger: log.New(io.Discard, "", 0)}
}

// Verbose reports whether debug output is enabled.
func (l *Logger) Verbose() bool {
	return l.verbose
}

// Debugf logs only in verbose mode.
func (l *Logger) Debugf(format string, args ...any) {
	if l.verbose {
		l.Printf("[DEBUG] "+format, args...)
	}
}

// Errorf logs an error line (always visible).
func (l *Logger) Errorf(format string, args ...any) {
	l.Printf("[ERROR] "+format, args...)
}

// Close flushes and closes the log file, if any.
func (l *Logger) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}
