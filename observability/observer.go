// Package observability carries runtime events from the expirer, the
// scheduler and the engine to a pluggable Observer. Levels use OpenTelemetry
// SeverityNumber values so events forward to an OTel collector unchanged.
package observability

import (
	"context"
	"log/slog"
	"time"
)

// Level is an event severity on the OTel SeverityNumber scale (1-24).
type Level int

const (
	LevelVerbose Level = 5
	LevelInfo    Level = 9
	LevelWarning Level = 13
	LevelError   Level = 17
)

// severities maps the upper bound of each OTel severity range to its text
// and slog level. Levels above the last bound are FATAL.
var severities = []struct {
	max  Level
	text string
	slog slog.Level
}{
	{4, "TRACE", slog.LevelDebug},
	{8, "DEBUG", slog.LevelDebug},
	{12, "INFO", slog.LevelInfo},
	{16, "WARN", slog.LevelWarn},
	{20, "ERROR", slog.LevelError},
}

// String returns the OTel severity text.
func (l Level) String() string {
	for _, s := range severities {
		if l <= s.max {
			return s.text
		}
	}
	return "FATAL"
}

// SlogLevel returns the slog level events of this severity are logged at.
func (l Level) SlogLevel() slog.Level {
	for _, s := range severities {
		if l <= s.max {
			return s.slog
		}
	}
	return slog.LevelError
}

// EventType names an event. Packages declare their own, prefixed with the
// subsystem: "cache.expiry.reload", "schedule.start".
type EventType string

// Event is one observation. Fields line up with an OTel LogRecord: Type is
// the event name, Source the instrumentation scope, Data the attributes.
type Event struct {
	Type      EventType
	Level     Level
	Timestamp time.Time
	Source    string
	Data      map[string]any
}

// Observer receives events. Implementations must be safe for concurrent use.
type Observer interface {
	OnEvent(ctx context.Context, event Event)
}

// Emit stamps an event with the wall clock and hands it to obs. A nil obs
// drops the event.
func Emit(ctx context.Context, obs Observer, typ EventType, level Level, source string, data map[string]any) {
	if obs == nil {
		return
	}
	obs.OnEvent(ctx, Event{
		Type:      typ,
		Level:     level,
		Timestamp: time.Now(),
		Source:    source,
		Data:      data,
	})
}
