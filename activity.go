package jackson

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ActivityEventType enumerates supported activity categories.
type ActivityEventType string

const (
	ActivityEventToggleEnabled  ActivityEventType = "auth.toggle.enabled"
	ActivityEventToggleDisabled ActivityEventType = "auth.toggle.disabled"
	ActivityEventLoginSuccess   ActivityEventType = "auth.login.success"
	ActivityEventLoginFailure   ActivityEventType = "auth.login.failure"
	ActivityEventLogoutSuccess  ActivityEventType = "auth.logout.success"
	ActivityEventLogoutFailure  ActivityEventType = "auth.logout.failure"
	ActivityEventMisconfigured  ActivityEventType = "auth.misconfigured"
	ActivityEventBusy           ActivityEventType = "auth.busy"
)

// ActivityEvent captures audit-friendly information about an auth attempt.
type ActivityEvent struct {
	ID         uuid.UUID         `json:"id"`
	EventType  ActivityEventType `json:"event_type"`
	Status     AuthStatus        `json:"status"`
	Account    string            `json:"account,omitempty"`
	Message    string            `json:"message,omitempty"`
	Metadata   map[string]any    `json:"metadata,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}

// ActivitySink consumes activity events for auditing purposes.
type ActivitySink interface {
	Record(ctx context.Context, event ActivityEvent) error
}

// ActivityReader lists the most recent events first.
type ActivityReader interface {
	Recent(ctx context.Context, limit int) ([]ActivityEvent, error)
}

// ActivitySinkFunc adapts a function to the ActivitySink interface.
type ActivitySinkFunc func(ctx context.Context, event ActivityEvent) error

// Record implements ActivitySink.
func (f ActivitySinkFunc) Record(ctx context.Context, event ActivityEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

type noopActivitySink struct{}

func (noopActivitySink) Record(context.Context, ActivityEvent) error {
	return nil
}

func normalizeActivitySink(s ActivitySink) ActivitySink {
	if s == nil {
		return noopActivitySink{}
	}
	return s
}

// ActivityLog is an in-memory ring of the last N events.
type ActivityLog struct {
	mu     sync.Mutex
	events []ActivityEvent
	size   int
}

// NewActivityLog keeps at most size events, 50 when size <= 0.
func NewActivityLog(size int) *ActivityLog {
	if size <= 0 {
		size = 50
	}
	return &ActivityLog{size: size}
}

// Record implements ActivitySink.
func (l *ActivityLog) Record(_ context.Context, event ActivityEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.events = append(l.events, event)
	if over := len(l.events) - l.size; over > 0 {
		l.events = append([]ActivityEvent(nil), l.events[over:]...)
	}
	return nil
}

// Recent implements ActivityReader.
func (l *ActivityLog) Recent(_ context.Context, limit int) ([]ActivityEvent, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if limit <= 0 || limit > len(l.events) {
		limit = len(l.events)
	}

	out := make([]ActivityEvent, 0, limit)
	for i := len(l.events) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, l.events[i])
	}
	return out, nil
}
