package progress

import (
	"sync/atomic"
	"time"
)

// Counter tracks completed identifiers against a known total. It is safe for
// concurrent use.
type Counter struct {
	total   atomic.Int64
	done    atomic.Int64
	failed  atomic.Int64
	rows    atomic.Int64
	started atomic.Int64
}

// Snapshot is a point-in-time copy of a Counter.
type Snapshot struct {
	Total     int64     `json:"total"`
	Done      int64     `json:"done"`
	Failed    int64     `json:"failed"`
	Rows      int64     `json:"rows_written"`
	Percent   float64   `json:"percent"`
	StartedAt time.Time `json:"started_at,omitzero"`
	Elapsed   string    `json:"elapsed"`
}

// Reset starts a new run of total items at now.
func (c *Counter) Reset(total int64, now time.Time) {
	c.total.Store(total)
	c.done.Store(0)
	c.failed.Store(0)
	c.rows.Store(0)
	c.started.Store(now.UnixNano())
}

// Inc records one completed item.
func (c *Counter) Inc(failed bool) {
	c.done.Add(1)
	if failed {
		c.failed.Add(1)
	}
}

// AddRows records rows appended to the output.
func (c *Counter) AddRows(n int64) {
	c.rows.Add(n)
}

// Snapshot returns the current values.
func (c *Counter) Snapshot(now time.Time) Snapshot {
	s := Snapshot{
		Total:  c.total.Load(),
		Done:   c.done.Load(),
		Failed: c.failed.Load(),
		Rows:   c.rows.Load(),
	}
	if s.Total > 0 {
		s.Percent = float64(s.Done) * 100 / float64(s.Total)
	}
	if started := c.started.Load(); started != 0 {
		s.StartedAt = time.Unix(0, started).UTC()
		s.Elapsed = now.Sub(s.StartedAt).Round(time.Millisecond).String()
	}
	return s
}
