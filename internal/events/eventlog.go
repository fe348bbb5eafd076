// Package events provides the battle event log.
// Every state change of a battle is appended here; pollers, the websocket hub
// and the replay endpoint read from it.
package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType defines the category of a battle event.
type EventType string

const (
	EventTypeBattleStarted       EventType = "BATTLE_STARTED"
	EventTypeTurnResolved        EventType = "TURN_RESOLVED"
	EventTypeCombatantSwitched   EventType = "COMBATANT_SWITCHED"
	EventTypeBattleFled          EventType = "BATTLE_FLED"
	EventTypeBattleFinished      EventType = "BATTLE_FINISHED"
	EventTypeGhostBattleResolved EventType = "GHOST_BATTLE_RESOLVED"
	EventTypeHackTriggered       EventType = "HACK_TRIGGERED"
	EventTypeHackSubmitted       EventType = "HACK_SUBMITTED"
	EventTypeSessionEvicted      EventType = "SESSION_EVICTED"
)

// DefaultCapacity bounds the in-memory log when no capacity is given.
const DefaultCapacity = 10000

// BattleEvent represents an immutable record of something that happened in a battle.
type BattleEvent struct {
	ID        string      `json:"id"`
	Timestamp time.Time   `json:"timestamp"`
	Type      EventType   `json:"type"`
	BattleID  string      `json:"battle_id"`
	ActorID   int         `json:"actor_id"` // Trainer who caused it, 0 for the system
	Turn      int         `json:"turn"`
	Payload   interface{} `json:"payload"`
}

// NewEvent stamps a fresh event with an id and the current time.
func NewEvent(t EventType, battleID string, actorID, turn int, payload interface{}) BattleEvent {
	return BattleEvent{
		ID:        uuid.NewString(),
		Timestamp: time.Now(),
		Type:      t,
		BattleID:  battleID,
		ActorID:   actorID,
		Turn:      turn,
		Payload:   payload,
	}
}

// EventPersister defines how an event is durably stored.
type EventPersister interface {
	Append(event BattleEvent) error
}

// EventLog is the in-memory append-only log of battle events.
// Old events are trimmed once capacity is reached; cursors stay absolute.
type EventLog struct {
	mu       sync.RWMutex
	events   []BattleEvent
	base     int64 // absolute index of events[0]
	capacity int

	persister EventPersister
	queue     chan BattleEvent
	sendMu    sync.RWMutex
	closed    bool
	done      chan struct{}
	onError   func(BattleEvent, error)
}

// NewEventLog creates a new event log with an optional persister.
// Persistence runs on a single background writer so events land in order.
func NewEventLog(capacity int, persister EventPersister) *EventLog {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	el := &EventLog{
		events:    make([]BattleEvent, 0, 64),
		capacity:  capacity,
		persister: persister,
		done:      make(chan struct{}),
	}
	if persister != nil {
		el.queue = make(chan BattleEvent, 256)
		go el.writeLoop()
	} else {
		close(el.done)
	}
	return el
}

// OnPersistError registers a callback for failed writes. Must be set before the first Append.
func (el *EventLog) OnPersistError(fn func(BattleEvent, error)) {
	el.onError = fn
}

func (el *EventLog) writeLoop() {
	defer close(el.done)
	for e := range el.queue {
		err := el.persister.Append(e)
		if err != nil && el.onError != nil {
			el.onError(e, err)
		}
	}
}

// Append adds a new event to the log. Events are immutable once appended.
func (el *EventLog) Append(event BattleEvent) {
	el.mu.Lock()
	el.events = append(el.events, event)
	if over := len(el.events) - el.capacity; over > 0 {
		el.events = append(el.events[:0:0], el.events[over:]...)
		el.base += int64(over)
	}
	el.mu.Unlock()

	if el.queue == nil {
		return
	}
	el.sendMu.RLock()
	defer el.sendMu.RUnlock()
	if !el.closed {
		el.queue <- event
	}
}

// Close stops accepting writes and waits for queued events to be persisted.
func (el *EventLog) Close() {
	el.sendMu.Lock()
	if !el.closed {
		el.closed = true
		if el.queue != nil {
			close(el.queue)
		}
	}
	el.sendMu.Unlock()
	<-el.done
}

// Since returns the events at or after the absolute cursor, and the cursor to use next.
// A cursor that points into the trimmed region resumes at the oldest retained event.
func (el *EventLog) Since(cursor int64) ([]BattleEvent, int64) {
	el.mu.RLock()
	defer el.mu.RUnlock()

	next := el.base + int64(len(el.events))
	if cursor < el.base {
		cursor = el.base
	}
	if cursor >= next {
		return nil, next
	}
	start := int(cursor - el.base)
	out := make([]BattleEvent, len(el.events)-start)
	copy(out, el.events[start:])
	return out, next
}

// Cursor returns the absolute position after the newest event.
func (el *EventLog) Cursor() int64 {
	el.mu.RLock()
	defer el.mu.RUnlock()
	return el.base + int64(len(el.events))
}

// ByBattle returns the retained events of one battle, oldest first.
func (el *EventLog) ByBattle(battleID string) []BattleEvent {
	el.mu.RLock()
	defer el.mu.RUnlock()

	var result []BattleEvent
	for _, e := range el.events {
		if e.BattleID == battleID {
			result = append(result, e)
		}
	}
	return result
}

// ByActor returns all retained events caused by a trainer.
func (el *EventLog) ByActor(actorID int) []BattleEvent {
	el.mu.RLock()
	defer el.mu.RUnlock()

	var result []BattleEvent
	for _, e := range el.events {
		if e.ActorID == actorID {
			result = append(result, e)
		}
	}
	return result
}

// Len returns the number of retained events.
func (el *EventLog) Len() int {
	el.mu.RLock()
	defer el.mu.RUnlock()
	return len(el.events)
}
