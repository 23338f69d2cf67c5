package eventstore

import (
	"context"
	"crypto/rand"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/choir-run/choir/internal/errs"
	"github.com/choir-run/choir/pkg/models"
)

// MemStore is an in-memory Store: an append-only slice guarded by a mutex,
// ordered by seq, plus the shared pubsub fan-out. It backs tests and
// single-process deployments where durability across restarts isn't
// required.
type MemStore struct {
	*pubsub

	mu      sync.Mutex
	events  []*models.Event
	lastSeq int64

	entropyMu sync.Mutex
	entropy   *ulid.MonotonicEntropy
}

// NewMemStore builds an empty in-memory Event Store.
func NewMemStore() *MemStore {
	return &MemStore{
		pubsub:  newPubsub(),
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
}

func (s *MemStore) newEventID() string {
	s.entropyMu.Lock()
	defer s.entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), s.entropy).String()
}

func (s *MemStore) Append(ctx context.Context, ev *models.Event) (*models.Event, error) {
	if ev == nil {
		return nil, errs.ErrValidation
	}

	s.mu.Lock()
	s.lastSeq++
	clone := ev.Clone()
	clone.Seq = s.lastSeq
	if clone.EventID == "" {
		clone.EventID = s.newEventID()
	}
	if clone.Timestamp.IsZero() {
		clone.Timestamp = time.Now()
	}
	s.events = append(s.events, clone)
	s.mu.Unlock()

	return clone.Clone(), nil
}

func (s *MemStore) GetRecent(ctx context.Context, sinceSeq int64, limit int, eventTypePrefix, actorID, userID string) ([]*models.Event, error) {
	if limit <= 0 {
		limit = 100
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// events is append-ordered by seq, so the first index with Seq >
	// sinceSeq starts a monotonic scan; a linear search is fine at choir's
	// expected per-run event volume.
	out := make([]*models.Event, 0, limit)
	for _, ev := range s.events {
		if ev.Seq <= sinceSeq {
			continue
		}
		if eventTypePrefix != "" && !strings.HasPrefix(ev.EventType, eventTypePrefix) {
			continue
		}
		if actorID != "" && ev.ActorID != actorID {
			continue
		}
		if userID != "" && ev.UserID != userID {
			continue
		}
		out = append(out, ev.Clone())
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *MemStore) GetLatestSeq(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeq, nil
}

func (s *MemStore) Publish(ctx context.Context, eventType, actorID, userID, correlationID string, payload map[string]any, persist bool) {
	s.PublishEvent(ctx, eventType, actorID, userID, correlationID, payload, persist)
}

func (s *MemStore) PublishEvent(ctx context.Context, eventType, actorID, userID, correlationID string, payload map[string]any, persist bool) *models.Event {
	ev := &models.Event{
		EventType:     eventType,
		ActorID:       actorID,
		UserID:        userID,
		CorrelationID: correlationID,
		Payload:       payload,
		Timestamp:     time.Now(),
	}

	if persist {
		stored, err := s.Append(ctx, ev)
		if err == nil {
			ev = stored
		}
	} else if ev.EventID == "" {
		ev.EventID = s.newEventID()
	}

	s.deliver(ev)
	return ev
}
