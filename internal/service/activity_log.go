package service

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dimasfr/careerlink-api/internal/models"
)

// DefaultActivityCapacity bounds the in-memory activity history.
const DefaultActivityCapacity = 100

// ActivityLog is an append-only, capacity-bounded record of relay-visible
// events. It lives for the process lifetime; nothing is persisted.
type ActivityLog struct {
	mu       sync.Mutex
	entries  []models.ActivityEvent
	capacity int
	now      func() time.Time
}

// NewActivityLog creates a log bounded to the given capacity. A
// non-positive capacity falls back to DefaultActivityCapacity.
func NewActivityLog(capacity int) *ActivityLog {
	if capacity <= 0 {
		capacity = DefaultActivityCapacity
	}
	return &ActivityLog{
		entries:  make([]models.ActivityEvent, 0, capacity),
		capacity: capacity,
		now:      time.Now,
	}
}

// Append assigns an id and timestamp, deep-copies the details payload and
// stores the event, evicting the single oldest entry when full. The
// returned event is the stored copy.
func (l *ActivityLog) Append(event models.ActivityEvent) models.ActivityEvent {
	event.ID = uuid.NewString()
	event.Timestamp = l.now().UTC()
	event.Details = copyDetails(event.Details)

	l.mu.Lock()
	defer l.mu.Unlock()

	// Strict FIFO eviction; shifting in place keeps the backing array from
	// growing past capacity.
	if len(l.entries) >= l.capacity {
		copy(l.entries, l.entries[1:])
		l.entries = l.entries[:len(l.entries)-1]
	}
	l.entries = append(l.entries, event)

	return event
}

// Snapshot returns a copy of the current history, oldest first.
func (l *ActivityLog) Snapshot() []models.ActivityEvent {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]models.ActivityEvent, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len reports the current number of stored events.
func (l *ActivityLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// copyDetails deep-copies a client-supplied payload through a JSON round
// trip. The result shares no references with the input and can only hold
// plain data; values that do not serialize are silently dropped.
func copyDetails(details map[string]interface{}) map[string]interface{} {
	if len(details) == 0 {
		return nil
	}

	raw, err := json.Marshal(details)
	if err != nil {
		return nil
	}

	var out map[string]interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}
