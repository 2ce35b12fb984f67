package lifecycle

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/krailo/streamwatch/app/database"
)

// ErrIllegalTransition is returned when a requested state change is
// not in the legality table.
var ErrIllegalTransition = fmt.Errorf("illegal broadcast state transition")

// Event describes one broadcast state change. From is empty for the
// initial announcement of a newly created broadcast.
type Event struct {
	Broadcast *database.Broadcast
	From      string
	To        string
	At        time.Time
}

// Subscriber receives broadcast state change events. Handlers run
// synchronously on the transitioning goroutine and must not block.
type Subscriber interface {
	OnBroadcastEvent(event Event)
}

// legalTransitions is the full life of a broadcast. A failed broadcast
// may re-enter downloading when a retry gets scheduled.
var legalTransitions = map[string][]string{
	database.BroadcastLive:        {database.BroadcastEnded},
	database.BroadcastEnded:       {database.BroadcastDownloading},
	database.BroadcastDownloading: {database.BroadcastCompleted, database.BroadcastFailed, database.BroadcastEnded},
	database.BroadcastFailed:      {database.BroadcastDownloading},
}

// Machine enforces the broadcast state transition rules, persists each
// change and fans events out to subscribers.
type Machine struct {
	broadcasts  database.BroadcastRepository
	subscribers []Subscriber
	now         func() time.Time
}

func NewMachine(broadcasts database.BroadcastRepository) *Machine {
	return &Machine{
		broadcasts: broadcasts,
		now:        time.Now,
	}
}

// Subscribe registers a handler for state change events. Not safe to
// call once transitions have started.
func (m *Machine) Subscribe(s Subscriber) {
	m.subscribers = append(m.subscribers, s)
}

// CanTransition reports whether moving from one status to another is
// legal.
func (m *Machine) CanTransition(from, to string) bool {
	for _, allowed := range legalTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Transition moves the broadcast to the target status, persisting the
// change and notifying subscribers. The broadcast struct is updated in
// place on success.
func (m *Machine) Transition(b *database.Broadcast, to string) error {
	from := b.Status
	if !m.CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s (broadcast %s)", ErrIllegalTransition, from, to, b.ID)
	}

	now := m.now()

	var endedAt *time.Time
	if to == database.BroadcastEnded && b.EndedAt == nil {
		endedAt = &now
	}

	if err := m.broadcasts.UpdateStatus(b.ID, to, endedAt); err != nil {
		return fmt.Errorf("failed to persist transition %s -> %s: %w", from, to, err)
	}

	b.Status = to
	if endedAt != nil {
		b.EndedAt = endedAt
	}

	slog.Info("Broadcast state changed",
		"broadcast_id", b.ID, "video_id", b.VideoID, "from", from, "to", to)

	m.emit(Event{Broadcast: b, From: from, To: to, At: now})
	return nil
}

// Created announces a freshly registered broadcast to subscribers.
func (m *Machine) Created(b *database.Broadcast) {
	m.emit(Event{Broadcast: b, From: "", To: b.Status, At: m.now()})
}

func (m *Machine) emit(event Event) {
	for _, s := range m.subscribers {
		s.OnBroadcastEvent(event)
	}
}
