package conductor

import (
	"time"

	"github.com/robfig/cron/v3"
)

// RetentionSweep periodically prunes terminal (Completed/Failed) tasks'
// in-memory state older than ttl. It never touches the report files or the
// Event Store, both of which stay append-only/immutable.
type RetentionSweep struct {
	c   *Conductor
	ttl time.Duration
	cr  *cron.Cron
}

// NewRetentionSweep schedules a sweep on schedule, parsed by robfig/cron/v3's
// default minute-resolution parser: a standard 5-field cron expression
// (e.g. "*/15 * * * *") or a descriptor such as "@every 1h".
func NewRetentionSweep(c *Conductor, ttl time.Duration, schedule string) (*RetentionSweep, error) {
	cr := cron.New()
	rs := &RetentionSweep{c: c, ttl: ttl, cr: cr}
	if _, err := cr.AddFunc(schedule, rs.sweep); err != nil {
		return nil, err
	}
	return rs, nil
}

// Start begins the cron scheduler in the background.
func (rs *RetentionSweep) Start() {
	rs.cr.Start()
}

// Stop halts the scheduler, waiting for any in-flight sweep to finish.
func (rs *RetentionSweep) Stop() {
	<-rs.cr.Stop().Done()
}

func (rs *RetentionSweep) sweep() {
	cutoff := time.Now().Add(-rs.ttl)

	rs.c.mu.Lock()
	defer rs.c.mu.Unlock()
	for id, task := range rs.c.tasks {
		if !task.Status.Terminal() {
			continue
		}
		if task.CompletedAt.IsZero() || task.CompletedAt.After(cutoff) {
			continue
		}
		delete(rs.c.tasks, id)
	}
}
