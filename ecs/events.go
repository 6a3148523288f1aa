package ecs

import "fmt"

// EventKind names something that happened in the arena during a tick.
type EventKind string

const (
	// EventBump fires when a robot chassis has started touching a wall or
	// obstacle since the previous tick. Data is the total bump count.
	EventBump EventKind = "bump"
	// EventTimerExpired fires once when a count-down arena timer reaches zero.
	EventTimerExpired EventKind = "timer_expired"
)

// Event is one arena occurrence. Entity is the robot or arena it concerns.
type Event struct {
	Kind   EventKind
	Entity Entity
	Data   any
}

func (e Event) String() string {
	if e.Data == nil {
		return fmt.Sprintf("%s entity=%s", e.Kind, e.Entity)
	}
	return fmt.Sprintf("%s entity=%s data=%v", e.Kind, e.Entity, e.Data)
}

// EventQueue collects the events systems push during a tick, in order.
type EventQueue struct {
	items []Event
}

func (q *EventQueue) Push(evt Event) {
	if q == nil {
		return
	}
	q.items = append(q.items, evt)
}

// Drain returns all events and clears the queue.
func (q *EventQueue) Drain() []Event {
	if q == nil || len(q.items) == 0 {
		return nil
	}
	out := q.items
	q.items = nil
	return out
}

func (q *EventQueue) Len() int {
	if q == nil {
		return 0
	}
	return len(q.items)
}
