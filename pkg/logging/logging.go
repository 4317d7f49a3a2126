// Package logging carries the event logger shared by the store, repository
// and publisher.
package logging

import (
	"fmt"
	"strings"
	"time"
)

// Event describes one storage operation.
type Event struct {
	Op       string
	Schema   string
	Node     string
	Scope    string
	Version  int
	Duration time.Duration
	Err      error
}

// String renders the event as key=value pairs.
func (e Event) String() string {
	parts := []string{"op=" + e.Op}
	if e.Schema != "" {
		parts = append(parts, "schema="+e.Schema)
	}
	if e.Node != "" {
		parts = append(parts, "node="+e.Node)
	}
	if e.Scope != "" {
		parts = append(parts, "scope="+e.Scope)
	}
	if e.Version > 0 {
		parts = append(parts, fmt.Sprintf("version=%d", e.Version))
	}
	parts = append(parts, "duration="+e.Duration.String())
	if e.Err != nil {
		parts = append(parts, fmt.Sprintf("err=%q", e.Err.Error()))
	}
	return strings.Join(parts, " ")
}

// Logger records events.
type Logger interface {
	Log(Event)
}

// LoggerFunc adapts a function to Logger.
type LoggerFunc func(Event)

// Log implements Logger.
func (f LoggerFunc) Log(event Event) {
	if f != nil {
		f(event)
	}
}

type nopLogger struct{}

func (nopLogger) Log(Event) {}

// Nop returns a logger that discards every event.
func Nop() Logger { return nopLogger{} }

// OrNop returns logger, or Nop when logger is nil.
func OrNop(logger Logger) Logger {
	if logger == nil {
		return nopLogger{}
	}
	return logger
}

// Timer starts timing op; calling the returned func logs the event with the
// elapsed duration and the supplied error.
func Timer(logger Logger, event Event) func(err error) {
	start := time.Now()
	return func(err error) {
		event.Duration = time.Since(start)
		event.Err = err
		OrNop(logger).Log(event)
	}
}
