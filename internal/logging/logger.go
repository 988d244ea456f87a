package logging

import (
	"fmt"
	"io"
	"log"
	"os"
)

// Logger provides leveled logging with key-value pairs for the worker.
type Logger struct {
	component string
	debug     bool
	logger    *log.Logger
}

// NewLogger creates a logger scoped to a component name.
func NewLogger(component string) *Logger {
	return &Logger{
		component: component,
		debug:     os.Getenv("DEBUG") != "",
		logger:    log.New(os.Stdout, fmt.Sprintf("[%s] ", component), log.LstdFlags),
	}
}

// With returns a child logger for a sub-component, sharing the same output.
func (l *Logger) With(sub string) *Logger {
	child := NewLogger(l.component + "/" + sub)
	child.debug = l.debug
	child.logger.SetOutput(l.logger.Writer())
	return child
}

// SetOutput redirects log output, mainly for tests.
func (l *Logger) SetOutput(w io.Writer) {
	l.logger.SetOutput(w)
}

// Info logs an informational message with key-value pairs.
func (l *Logger) Info(msg string, keysAndValues ...interface{}) {
	l.logWithKV("INFO", msg, keysAndValues...)
}

// Warn logs a warning message with key-value pairs.
func (l *Logger) Warn(msg string, keysAndValues ...interface{}) {
	l.logWithKV("WARN", msg, keysAndValues...)
}

// Error logs an error message with key-value pairs.
func (l *Logger) Error(msg string, keysAndValues ...interface{}) {
	l.logWithKV("ERROR", msg, keysAndValues...)
}

// Debug logs a debug message when DEBUG is set in the environment.
func (l *Logger) Debug(msg string, keysAndValues ...interface{}) {
	if !l.debug {
		return
	}
	l.logWithKV("DEBUG", msg, keysAndValues...)
}

func (l *Logger) logWithKV(level, msg string, keysAndValues ...interface{}) {
	kvStr := ""
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		kvStr += fmt.Sprintf(" %v=%v", keysAndValues[i], keysAndValues[i+1])
	}
	l.logger.Printf("[%s] %s%s", level, msg, kvStr)
}
