// Package eventstore implements the append-only Event Store: a monotonic
// seq-ordered log with range queries and topic-glob pub-sub fan-out to live
// subscribers (spec §4.1).
package eventstore

import (
	"context"

	"github.com/choir-run/choir/pkg/models"
)

// Store is the Event Store contract. MemStore backs tests and single-process
// deployments; PostgresStore persists to a relational table for
// multi-process durability, per spec §4.1 ("Durability is per-backend; an
// in-memory backend is provided for tests").
type Store interface {
	// Append assigns the next monotonic seq, persists ev, and returns the
	// stored copy (with Seq and, if absent, EventID populated).
	Append(ctx context.Context, ev *models.Event) (*models.Event, error)

	// GetRecent returns at most limit events strictly greater than
	// sinceSeq, matching the optional filters, ordered by seq.
	GetRecent(ctx context.Context, sinceSeq int64, limit int, eventTypePrefix, actorID, userID string) ([]*models.Event, error)

	// GetLatestSeq returns the seq of the most recently appended event, or 0
	// if the store is empty.
	GetLatestSeq(ctx context.Context) (int64, error)

	// Subscribe registers a live fan-out subscriber matching topic (a
	// dotted glob, see TopicMatches). Unsubscribe must be called to release
	// the subscription's mailbox.
	Subscribe(topic string) *Subscription
	Unsubscribe(sub *Subscription)

	// Publish delivers to all matching subscribers in publication order; if
	// persist is true it also appends the event durably. Publish never
	// blocks on a slow subscriber and always succeeds when there are no
	// matching subscribers. This signature matches obs.Publisher so any
	// Store can be handed directly to obs.NewTracer.
	Publish(ctx context.Context, eventType, actorID, userID, correlationID string, payload map[string]any, persist bool)

	// PublishEvent is the Publish variant for callers that need the
	// resulting (possibly persisted) event back, e.g. to read its assigned
	// seq or event_id immediately after publishing.
	PublishEvent(ctx context.Context, eventType, actorID, userID, correlationID string, payload map[string]any, persist bool) *models.Event
}
