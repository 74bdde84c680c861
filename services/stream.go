package services

import (
	"sync"

	"meta-hand/models"
)

// TurnEvent is one validation outcome published during a conversation turn.
// InvocationID ties the event back to the tool call that produced it.
type TurnEvent struct {
	InvocationID string                  `json:"invocation_id"`
	RecordID     string                  `json:"record_id"`
	RecordType   string                  `json:"record_type"`
	Result       models.ValidationResult `json:"result"`
}

const turnEventBuffer = 16

// TurnEvents carries validation events from captures to the stream consumer
// of a single conversation turn. A fresh instance is created per turn and
// closed when the turn ends; it is never shared across turns.
type TurnEvents struct {
	ch        chan TurnEvent
	closeOnce sync.Once
}

func NewTurnEvents() *TurnEvents {
	return &TurnEvents{ch: make(chan TurnEvent, turnEventBuffer)}
}

// Publish enqueues an event without blocking. Returns false when the buffer
// is full or the channel is already closed; the event is dropped then.
func (t *TurnEvents) Publish(event TurnEvent) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	select {
	case t.ch <- event:
		return true
	default:
		return false
	}
}

// TryNext returns the next pending event, if any, without blocking.
func (t *TurnEvents) TryNext() (TurnEvent, bool) {
	select {
	case event, open := <-t.ch:
		return event, open
	default:
		return TurnEvent{}, false
	}
}

// Drain returns all pending events and empties the buffer.
func (t *TurnEvents) Drain() []TurnEvent {
	var events []TurnEvent
	for {
		event, ok := t.TryNext()
		if !ok {
			return events
		}
		events = append(events, event)
	}
}

// Close ends the turn. Safe to call more than once.
func (t *TurnEvents) Close() {
	t.closeOnce.Do(func() { close(t.ch) })
}
