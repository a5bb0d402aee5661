package history

import (
	"context"
	"time"
)

// EventType defines the kind of lifecycle event.
type EventType string

const (
	EventStart EventType = "start"
	EventStop  EventType = "stop"
)

// Record is the process state captured with a lifecycle event.
type Record struct {
	ProcessID string `json:"process_id"`
	Name      string `json:"name"`
	PID       int    `json:"pid"`
	StartedAt int64  `json:"started_at,omitempty"` // Unix seconds, 0 when unknown
	ExitCode  int32  `json:"exit_code"`
	Error     string `json:"error,omitempty"`
}

// Event represents a lifecycle event to be exported to external systems.
type Event struct {
	Type       EventType `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	Record     Record    `json:"record"`
}

// Sink is a destination for history events (analytics/statistics systems).
// Implementations must be safe for concurrent use.
type Sink interface {
	Send(ctx context.Context, e Event) error
}

// Querier is implemented by sinks that can read back what they stored.
type Querier interface {
	// Recent returns up to limit events for processID, newest first.
	Recent(ctx context.Context, processID string, limit int) ([]Event, error)
}

// DefaultLimit bounds Recent queries that pass a non-positive limit.
const DefaultLimit = 50

// NormalizeLimit maps a caller supplied limit onto the accepted range.
func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > 1000 {
		return 1000
	}
	return limit
}

// Started builds the event emitted after a successful start.
func Started(id, name string, pid int, startedAt int64) Event {
	return Event{
		Type:       EventStart,
		OccurredAt: time.Now().UTC(),
		Record:     Record{ProcessID: id, Name: name, PID: pid, StartedAt: startedAt},
	}
}

// Stopped builds the event emitted after a stop attempt. A non-nil err marks
// a failed termination.
func Stopped(id, name string, pid int, startedAt int64, exitCode int32, err error) Event {
	rec := Record{ProcessID: id, Name: name, PID: pid, StartedAt: startedAt, ExitCode: exitCode}
	if err != nil {
		rec.Error = err.Error()
	}
	return Event{Type: EventStop, OccurredAt: time.Now().UTC(), Record: rec}
}
