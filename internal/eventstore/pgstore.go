package eventstore

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"

	"github.com/choir-run/choir/internal/errs"
	"github.com/choir-run/choir/pkg/models"
)

// PostgresSchema is the table PostgresStore expects to exist. Callers run
// migrations themselves (choir has no migration runner); this is documented
// here rather than auto-applied so the same process that owns the database
// schema also owns its evolution.
const PostgresSchema = `
CREATE TABLE IF NOT EXISTS choir_events (
	seq            BIGSERIAL PRIMARY KEY,
	event_id       TEXT NOT NULL UNIQUE,
	timestamp      TIMESTAMPTZ NOT NULL,
	event_type     TEXT NOT NULL,
	actor_id       TEXT NOT NULL DEFAULT '',
	user_id        TEXT NOT NULL DEFAULT '',
	correlation_id TEXT NOT NULL DEFAULT '',
	payload        JSONB NOT NULL DEFAULT '{}'::jsonb
);
CREATE INDEX IF NOT EXISTS choir_events_type_idx ON choir_events (event_type);
CREATE INDEX IF NOT EXISTS choir_events_actor_idx ON choir_events (actor_id);
CREATE INDEX IF NOT EXISTS choir_events_correlation_idx ON choir_events (correlation_id);
`

// PostgresStore persists events to a relational table via pgx, for
// deployments that need the Event Store to survive a process restart (spec
// §4.1's "Durability is per-backend"). Live subscription fan-out is still
// process-local, shared with MemStore through the embedded pubsub.
type PostgresStore struct {
	*pubsub
	pool *pgxpool.Pool
}

// NewPostgresStore wraps an already-connected pool. The caller is
// responsible for running PostgresSchema (or an equivalent migration)
// beforehand.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pubsub: newPubsub(), pool: pool}
}

func (s *PostgresStore) Append(ctx context.Context, ev *models.Event) (*models.Event, error) {
	if ev == nil {
		return nil, errs.ErrValidation
	}

	clone := ev.Clone()
	if clone.EventID == "" {
		clone.EventID = ulid.Make().String()
	}
	if clone.Timestamp.IsZero() {
		clone.Timestamp = time.Now()
	}

	payload, err := json.Marshal(clone.Payload)
	if err != nil {
		return nil, errs.ErrStorage
	}

	row := s.pool.QueryRow(ctx,
		`INSERT INTO choir_events (event_id, timestamp, event_type, actor_id, user_id, correlation_id, payload)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING seq`,
		clone.EventID, clone.Timestamp, clone.EventType, clone.ActorID, clone.UserID, clone.CorrelationID, payload,
	)
	if err := row.Scan(&clone.Seq); err != nil {
		return nil, errs.ErrStorage
	}

	return clone, nil
}

func (s *PostgresStore) GetRecent(ctx context.Context, sinceSeq int64, limit int, eventTypePrefix, actorID, userID string) ([]*models.Event, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.pool.Query(ctx,
		`SELECT seq, event_id, timestamp, event_type, actor_id, user_id, correlation_id, payload
		 FROM choir_events
		 WHERE seq > $1
		   AND ($2 = '' OR event_type LIKE $2 || '%')
		   AND ($3 = '' OR actor_id = $3)
		   AND ($4 = '' OR user_id = $4)
		 ORDER BY seq ASC
		 LIMIT $5`,
		sinceSeq, eventTypePrefix, actorID, userID, limit,
	)
	if err != nil {
		return nil, errs.ErrStorage
	}
	defer rows.Close()

	var out []*models.Event
	for rows.Next() {
		var ev models.Event
		var rawPayload []byte
		if err := rows.Scan(&ev.Seq, &ev.EventID, &ev.Timestamp, &ev.EventType, &ev.ActorID, &ev.UserID, &ev.CorrelationID, &rawPayload); err != nil {
			return nil, errs.ErrStorage
		}
		if len(rawPayload) > 0 {
			_ = json.Unmarshal(rawPayload, &ev.Payload)
		}
		out = append(out, &ev)
	}
	if rows.Err() != nil {
		return nil, errs.ErrStorage
	}

	return out, nil
}

func (s *PostgresStore) GetLatestSeq(ctx context.Context) (int64, error) {
	var seq int64
	row := s.pool.QueryRow(ctx, `SELECT COALESCE(MAX(seq), 0) FROM choir_events`)
	if err := row.Scan(&seq); err != nil {
		return 0, errs.ErrStorage
	}
	return seq, nil
}

func (s *PostgresStore) Publish(ctx context.Context, eventType, actorID, userID, correlationID string, payload map[string]any, persist bool) {
	s.PublishEvent(ctx, eventType, actorID, userID, correlationID, payload, persist)
}

func (s *PostgresStore) PublishEvent(ctx context.Context, eventType, actorID, userID, correlationID string, payload map[string]any, persist bool) *models.Event {
	ev := &models.Event{
		EventType:     eventType,
		ActorID:       actorID,
		UserID:        userID,
		CorrelationID: correlationID,
		Payload:       payload,
		Timestamp:     time.Now(),
	}

	if persist {
		if stored, err := s.Append(ctx, ev); err == nil {
			ev = stored
		}
	} else if ev.EventID == "" {
		ev.EventID = ulid.Make().String()
	}

	s.deliver(ev)
	return ev
}
