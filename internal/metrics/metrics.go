// Package metrics keeps invocation counters and (count,sum,min,max)
// summaries in the same SQLite database as the token table. Observations
// accumulate in memory and are written in one transaction by Flush, which
// every lambda calls before it exits. The callback server additionally runs
// the periodic flush loop.
package metrics

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// Counter names.
const (
	CounterInvocations = "lambda_invocations_total"
	CounterFailures    = "lambda_failures_total"
)

// Summary names.
const (
	SummaryDurationMS = "lambda_duration_ms"
)

// Config controls flush cadence and logging.
type Config struct {
	FlushInterval time.Duration
	Logger        *slog.Logger
}

// Summary aggregates observations of one named value.
type Summary struct {
	Count int64 `json:"count"`
	Sum   int64 `json:"sum"`
	Min   int64 `json:"min"`
	Max   int64 `json:"max"`
}

// Mean is Sum/Count, or zero with no observations.
func (s Summary) Mean() float64 {
	if s.Count == 0 {
		return 0
	}
	return float64(s.Sum) / float64(s.Count)
}

func (s Summary) merge(o Summary) Summary {
	if s.Count == 0 {
		return o
	}
	if o.Count == 0 {
		return s
	}
	s.Count += o.Count
	s.Sum += o.Sum
	s.Min = min(s.Min, o.Min)
	s.Max = max(s.Max, o.Max)
	return s
}

// Manager aggregates metric events and flushes them.
type Manager struct {
	cfg Config
	db  *sql.DB
	log *slog.Logger

	stop    chan struct{}
	done    chan struct{}
	started bool

	mu        sync.Mutex
	counters  map[string]int64
	summaries map[string]Summary
}

// New creates a Manager. Call InitSchema before the first Flush.
func New(db *sql.DB, cfg Config) *Manager {
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 5 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Manager{
		cfg:       cfg,
		db:        db,
		log:       cfg.Logger.With("domain", "metrics"),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
		counters:  make(map[string]int64),
		summaries: make(map[string]Summary),
	}
}

// InitSchema ensures metrics tables exist.
func (m *Manager) InitSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS metrics_counters (
	name  TEXT PRIMARY KEY,
	value INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS metrics_summaries (
	name  TEXT PRIMARY KEY,
	count INTEGER NOT NULL,
	sum   INTEGER NOT NULL,
	min   INTEGER NOT NULL,
	max   INTEGER NOT NULL
);`
	_, err := m.db.ExecContext(ctx, ddl)
	return err
}

// Inc increments a counter. Non-positive deltas are ignored.
func (m *Manager) Inc(name string, delta int64) {
	if delta <= 0 {
		return
	}
	m.mu.Lock()
	m.counters[name] += delta
	m.mu.Unlock()
}

// Observe records a summary observation.
func (m *Manager) Observe(name string, v int64) {
	m.mu.Lock()
	m.summaries[name] = m.summaries[name].merge(Summary{Count: 1, Sum: v, Min: v, Max: v})
	m.mu.Unlock()
}

// ObserveInvocation records one lambda run. It has the shape of
// lambda.Env.Observe.
func (m *Manager) ObserveInvocation(command string, ok bool, d time.Duration) {
	key := CommandKey(command)
	m.Inc(CounterInvocations, 1)
	m.Inc(CounterInvocations+"."+key, 1)
	if !ok {
		m.Inc(CounterFailures, 1)
		m.Inc(CounterFailures+"."+key, 1)
	}
	m.Observe(SummaryDurationMS+"."+key, d.Milliseconds())
}

// CommandKey turns "fatsecret foods-search" into "fatsecret.foods_search".
func CommandKey(command string) string {
	fields := strings.Fields(strings.ToLower(command))
	return strings.ReplaceAll(strings.Join(fields, "."), "-", "_")
}

// Start launches the background flush loop.
func (m *Manager) Start(ctx context.Context) {
	if m.started {
		return
	}
	m.started = true
	go m.loop(ctx)
}

// Stop ends the flush loop, if running, and performs a final flush.
func (m *Manager) Stop(ctx context.Context) error {
	if m.started {
		select {
		case <-m.stop:
		default:
			close(m.stop)
		}
		<-m.done
	}
	return m.Flush(ctx)
}

func (m *Manager) loop(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.FlushInterval)
	defer func() {
		ticker.Stop()
		close(m.done)
	}()
	for {
		select {
		case <-ctx.Done():
			m.log.Debug("metrics stop", "reason", "context_cancel")
			return
		case <-m.stop:
			m.log.Debug("metrics stop", "reason", "stop_signal")
			return
		case <-ticker.C:
			if err := m.Flush(ctx); err != nil && !errors.Is(err, context.Canceled) {
				m.log.Error("flush", "error", err)
			}
		}
	}
}

// Snapshot returns persisted values with in-memory deltas layered on top.
func (m *Manager) Snapshot(ctx context.Context) (map[string]int64, map[string]Summary, error) {
	counters := make(map[string]int64)
	summaries := make(map[string]Summary)

	rows, err := m.db.QueryContext(ctx, `SELECT name, value FROM metrics_counters`)
	if err != nil {
		return nil, nil, err
	}
	for rows.Next() {
		var n string
		var v int64
		if err := rows.Scan(&n, &v); err != nil {
			rows.Close()
			return nil, nil, err
		}
		counters[n] = v
	}
	if err := closeRows(rows); err != nil {
		return nil, nil, err
	}

	srows, err := m.db.QueryContext(ctx, `SELECT name, count, sum, min, max FROM metrics_summaries`)
	if err != nil {
		return nil, nil, err
	}
	for srows.Next() {
		var n string
		var s Summary
		if err := srows.Scan(&n, &s.Count, &s.Sum, &s.Min, &s.Max); err != nil {
			srows.Close()
			return nil, nil, err
		}
		summaries[n] = s
	}
	if err := closeRows(srows); err != nil {
		return nil, nil, err
	}

	m.mu.Lock()
	for n, v := range m.counters {
		counters[n] += v
	}
	for n, s := range m.summaries {
		summaries[n] = summaries[n].merge(s)
	}
	m.mu.Unlock()
	return counters, summaries, nil
}

func closeRows(rows *sql.Rows) error {
	err := rows.Err()
	if cerr := rows.Close(); err == nil {
		err = cerr
	}
	return err
}

// Flush writes in-memory deltas to SQLite in a single transaction. On
// failure the deltas are kept for the next attempt.
func (m *Manager) Flush(ctx context.Context) error {
	m.mu.Lock()
	if len(m.counters) == 0 && len(m.summaries) == 0 {
		m.mu.Unlock()
		return nil
	}
	counters, summaries := m.counters, m.summaries
	m.counters = make(map[string]int64)
	m.summaries = make(map[string]Summary)
	m.mu.Unlock()

	if err := m.write(ctx, counters, summaries); err != nil {
		m.mu.Lock()
		for n, v := range counters {
			m.counters[n] += v
		}
		for n, s := range summaries {
			m.summaries[n] = m.summaries[n].merge(s)
		}
		m.mu.Unlock()
		return err
	}
	return nil
}

func (m *Manager) write(ctx context.Context, counters map[string]int64, summaries map[string]Summary) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	for name, delta := range counters {
		if _, err := tx.ExecContext(ctx, `INSERT INTO metrics_counters(name,value) VALUES(?,?) ON CONFLICT(name) DO UPDATE SET value = value + excluded.value`, name, delta); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	for name, s := range summaries {
		if _, err := tx.ExecContext(ctx, `INSERT INTO metrics_summaries(name,count,sum,min,max) VALUES(?,?,?,?,?) ON CONFLICT(name) DO UPDATE SET count = metrics_summaries.count + excluded.count, sum = metrics_summaries.sum + excluded.sum, min = MIN(metrics_summaries.min, excluded.min), max = MAX(metrics_summaries.max, excluded.max)`, name, s.Count, s.Sum, s.Min, s.Max); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}
