// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// VideoCompressor - FFmpeg WebM 压缩工具

package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Logger provides a simple logging interface
type Logger interface {
	Debug(format string, args ...interface{})
	Info(format string, args ...interface{})
	Warn(format string, args ...interface{})
	Error(format string, args ...interface{})
}

// Level 日志级别
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// ParseLevel maps "debug", "info", "warn" and "error" to a Level. Unknown
// values fall back to LevelInfo.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "INFO"
	}
}

// Config for New
type Config struct {
	Prefix string
	Level  Level
	Output io.Writer
	File   string
}

type defaultLogger struct {
	prefix string
	level  Level
	out    *log.Logger
	mu     sync.Mutex
	file   *os.File
}

// New creates a logger writing to stderr with the given prefix at info level.
func New(prefix string) Logger {
	l, _ := NewWithConfig(Config{Prefix: prefix, Level: LevelInfo})
	return l
}

// NewWithConfig creates a logger. When File is set the log lines are also
// appended to that file; the directory is created if necessary.
func NewWithConfig(config Config) (Logger, error) {
	w := config.Output
	if w == nil {
		w = os.Stderr
	}

	l := &defaultLogger{
		prefix: config.Prefix,
		level:  config.Level,
	}

	if config.File != "" {
		if err := os.MkdirAll(filepath.Dir(config.File), 0o755); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}
		f, err := os.OpenFile(config.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		l.file = f
		w = io.MultiWriter(w, f)
	}

	if l.prefix != "" && !strings.HasSuffix(l.prefix, " ") {
		l.prefix += " "
	}
	l.out = log.New(w, "", log.LstdFlags)
	return l, nil
}

func (l *defaultLogger) logf(level Level, format string, args ...interface{}) {
	if level < l.level {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.out.Printf("["+level.String()+"] "+l.prefix+format, args...)
}

func (l *defaultLogger) Debug(format string, args ...interface{}) {
	l.logf(LevelDebug, format, args...)
}

func (l *defaultLogger) Info(format string, args ...interface{}) {
	l.logf(LevelInfo, format, args...)
}

func (l *defaultLogger) Warn(format string, args ...interface{}) {
	l.logf(LevelWarn, format, args...)
}

func (l *defaultLogger) Error(format string, args ...interface{}) {
	l.logf(LevelError, format, args...)
}

// Close closes the log file if one was opened. Loggers without a file sink
// are returned unchanged.
func Close(l Logger) error {
	dl, ok := l.(*defaultLogger)
	if !ok || dl.file == nil {
		return nil
	}
	dl.mu.Lock()
	defer dl.mu.Unlock()
	err := dl.file.Close()
	dl.file = nil
	return err
}

// Nop returns a logger that discards everything
func Nop() Logger {
	return nopLogger{}
}

type nopLogger struct{}

func (nopLogger) Debug(format string, args ...interface{}) {}
func (nopLogger) Info(format string, args ...interface{})  {}
func (nopLogger) Warn(format string, args ...interface{})  {}
func (nopLogger) Error(format string, args ...interface{}) {}
