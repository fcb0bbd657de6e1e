// Package logging provides a logrus implementation of streambox.Logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/velmie/streambox"
)

const appNameKey = "app_name"

// Config configures New.
type Config struct {
	AppName string
	// Level is a logrus level name. Empty means info.
	Level string
	// Output defaults to os.Stderr.
	Output io.Writer
}

// Logger adapts a logrus entry to streambox.Logger.
type Logger struct {
	entry *logrus.Entry
}

var _ streambox.Logger = (*Logger)(nil)

// New returns a JSON logger with @timestamp and message keys, the app_name field and
// stack traces for errors carrying one.
func New(cfg Config) (*Logger, error) {
	impl := logrus.New()
	impl.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: time.RFC3339Nano,
		FieldMap:        fieldMap,
	})
	if cfg.Output != nil {
		impl.SetOutput(cfg.Output)
	} else {
		impl.SetOutput(os.Stderr)
	}
	if cfg.Level != "" {
		level, err := logrus.ParseLevel(cfg.Level)
		if err != nil {
			return nil, err
		}
		impl.SetLevel(level)
	}
	impl.AddHook(NewStackTraceHook())

	return &Logger{entry: impl.WithField(appNameKey, cfg.AppName)}, nil
}

// Entry exposes the underlying logrus entry.
func (l *Logger) Entry() *logrus.Entry {
	return l.entry
}

// With returns a logger carrying the given key/value pairs on every line.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{entry: l.entry.WithFields(fields(args))}
}

// Debug implements streambox.Logger.
func (l *Logger) Debug(msg string, args ...any) {
	l.entry.WithFields(fields(args)).Debug(msg)
}

// Info implements streambox.Logger.
func (l *Logger) Info(msg string, args ...any) {
	l.entry.WithFields(fields(args)).Info(msg)
}

// Warn implements streambox.Logger.
func (l *Logger) Warn(msg string, args ...any) {
	l.entry.WithFields(fields(args)).Warn(msg)
}

// Error implements streambox.Logger.
func (l *Logger) Error(msg string, args ...any) {
	l.entry.WithFields(fields(args)).Error(msg)
}

// fields converts alternating key/value args. An error under "err" or "error" lands in
// logrus.ErrorKey so the stack trace hook sees it.
func fields(args []any) logrus.Fields {
	if len(args) == 0 {
		return nil
	}
	out := make(logrus.Fields, (len(args)+1)/2)
	for i := 0; i < len(args); i += 2 {
		key := fmt.Sprint(args[i])
		var val any = "<missing>"
		if i+1 < len(args) {
			val = args[i+1]
		}
		if _, isErr := val.(error); isErr && (key == "err" || key == "error") {
			key = logrus.ErrorKey
		}
		out[key] = val
	}

	return out
}

var fieldMap = logrus.FieldMap{
	logrus.FieldKeyTime: "@timestamp",
	logrus.FieldKeyMsg:  "message",
}
