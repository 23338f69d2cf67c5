// Package models provides the domain types shared across choir's components:
// the append-only Event Store record, the Conductor's task and plan types,
// the RunWriter's document model, and the Memory Store's search types.
package models

import (
	"time"
)

// Event is a single immutable record in the Event Store.
//
// seq is assigned by the store on Append and is strictly increasing for the
// lifetime of the store; EventID is a ULID generated by the caller (or the
// store, if absent) and is globally unique.
type Event struct {
	Seq           int64          `json:"seq"`
	EventID       string         `json:"event_id"`
	Timestamp     time.Time      `json:"timestamp"`
	EventType     string         `json:"event_type"`
	ActorID       string         `json:"actor_id,omitempty"`
	UserID        string         `json:"user_id,omitempty"`
	Payload       map[string]any `json:"payload,omitempty"`
	CorrelationID string         `json:"correlation_id,omitempty"`
}

// Clone returns a deep-enough copy of the event so callers cannot mutate a
// stored record through a returned pointer.
func (e *Event) Clone() *Event {
	if e == nil {
		return nil
	}
	clone := *e
	if e.Payload != nil {
		clone.Payload = make(map[string]any, len(e.Payload))
		for k, v := range e.Payload {
			clone.Payload[k] = v
		}
	}
	return &clone
}
