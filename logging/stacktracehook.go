package logging

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const stackKey = "stack"

// NewStackTraceHook returns a hook that renders the error field as a string and adds
// the stack trace of errors created or wrapped with github.com/pkg/errors.
func NewStackTraceHook() logrus.Hook {
	return stackTraceHook{}
}

type stackTraceHook struct{}

func (stackTraceHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (stackTraceHook) Fire(entry *logrus.Entry) error {
	val, ok := entry.Data[logrus.ErrorKey]
	if !ok {
		return nil
	}
	err, ok := val.(error)
	if !ok {
		return nil
	}
	if err == nil {
		delete(entry.Data, logrus.ErrorKey)

		return nil
	}

	var tracer stackTracer
	if errors.As(err, &tracer) {
		entry.Data[stackKey] = strings.ReplaceAll(fmt.Sprintf("%+v", tracer.StackTrace()), "\t", "")
	}
	entry.Data[logrus.ErrorKey] = err.Error()

	return nil
}

type stackTracer interface {
	StackTrace() errors.StackTrace
}
