package sqlite

import (
	"database/sql"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// DefaultSlowQueryThreshold is used when the store is configured without one.
const DefaultSlowQueryThreshold = 100 * time.Millisecond

// execQuerier is the statement surface shared by *sql.DB and *sql.Tx.
type execQuerier interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
}

// QueryStats holds statement execution counters for a store.
type QueryStats struct {
	TotalQueries  atomic.Int64
	TotalExecs    atomic.Int64
	TotalDuration atomic.Int64 // nanoseconds
	SlowQueries   atomic.Int64
	Errors        atomic.Int64
}

// Stats returns a snapshot of the current counters.
func (s *QueryStats) Stats() StatsSnapshot {
	return StatsSnapshot{
		TotalQueries:  s.TotalQueries.Load(),
		TotalExecs:    s.TotalExecs.Load(),
		TotalDuration: time.Duration(s.TotalDuration.Load()),
		SlowQueries:   s.SlowQueries.Load(),
		Errors:        s.Errors.Load(),
	}
}

// Reset zeroes every counter.
func (s *QueryStats) Reset() {
	s.TotalQueries.Store(0)
	s.TotalExecs.Store(0)
	s.TotalDuration.Store(0)
	s.SlowQueries.Store(0)
	s.Errors.Store(0)
}

// StatsSnapshot is a point-in-time copy of QueryStats.
type StatsSnapshot struct {
	TotalQueries  int64
	TotalExecs    int64
	TotalDuration time.Duration
	SlowQueries   int64
	Errors        int64
}

// Statements returns queries plus execs.
func (s StatsSnapshot) Statements() int64 { return s.TotalQueries + s.TotalExecs }

// AvgDuration returns the mean statement duration.
func (s StatsSnapshot) AvgDuration() time.Duration {
	total := s.Statements()
	if total == 0 {
		return 0
	}
	return s.TotalDuration / time.Duration(total)
}

func (s StatsSnapshot) String() string {
	return fmt.Sprintf(
		"queries=%d execs=%d duration=%s avg=%s slow=%d errors=%d",
		s.TotalQueries, s.TotalExecs, s.TotalDuration, s.AvgDuration(),
		s.SlowQueries, s.Errors,
	)
}

// conn runs statements against a database or transaction and records them.
type conn struct {
	eq        execQuerier
	stats     *QueryStats
	threshold time.Duration
	logger    *zap.SugaredLogger
}

func (c *conn) exec(query string, args ...any) (sql.Result, error) {
	start := time.Now()
	res, err := c.eq.Exec(query, args...)
	c.record(query, args, start, err, false)
	return res, err
}

func (c *conn) query(query string, args ...any) (*sql.Rows, error) {
	start := time.Now()
	rows, err := c.eq.Query(query, args...)
	c.record(query, args, start, err, true)
	return rows, err
}

// queryInt64s runs a single-column query and drains it. The connection pool
// holds one connection, so rows are never left open across statements.
func (c *conn) queryInt64s(query string, args ...any) ([]int64, error) {
	rows, err := c.query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// queryRow runs a query expected to match at most one row and returns its
// columns and raw values. found is false when nothing matched.
func (c *conn) queryRow(query string, args ...any) (cols []string, values []any, found bool, err error) {
	rows, err := c.query(query, args...)
	if err != nil {
		return nil, nil, false, err
	}
	defer rows.Close()

	cols, err = rows.Columns()
	if err != nil {
		return nil, nil, false, err
	}
	if !rows.Next() {
		return cols, nil, false, rows.Err()
	}
	values = make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, nil, false, err
	}
	return cols, values, true, rows.Err()
}

func (c *conn) record(query string, args []any, start time.Time, err error, isQuery bool) {
	duration := time.Since(start)
	if isQuery {
		c.stats.TotalQueries.Add(1)
	} else {
		c.stats.TotalExecs.Add(1)
	}
	c.stats.TotalDuration.Add(int64(duration))
	if err != nil {
		c.stats.Errors.Add(1)
	}
	if c.threshold > 0 && duration > c.threshold {
		c.stats.SlowQueries.Add(1)
		c.logger.Warnw("slow statement", "duration", duration, "query", query, "args", args)
	}
}
