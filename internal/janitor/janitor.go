// Package janitor periodically removes expired pending OAuth request tokens
// while a long-running command (the callback server) is up. One-shot lambdas
// call the store's cleanup directly and never start a janitor.
package janitor

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// Sweeper deletes pending tokens past their TTL and reports how many went.
type Sweeper interface {
	CleanupExpiredPending(ctx context.Context) (int, error)
}

// Sink receives counters and per-cycle observations. Optional.
type Sink interface {
	Inc(name string, delta int64)
	Observe(name string, v int64)
}

// Metric names emitted to the Sink.
const (
	CounterDeleted   = "oauth_pending_expired_deleted_total"
	CounterErrors    = "janitor_errors_total"
	ObserveDeleted   = "janitor_deleted_per_cycle"
	ObserveCycleTime = "janitor_cycle_ms"
)

// Config holds tunables for the Janitor.
type Config struct {
	Interval time.Duration // how often a sweep runs
	Logger   *slog.Logger  // defaults to slog.Default()
}

// Stats is a read-only snapshot of the janitor's counters.
type Stats struct {
	Cycles              uint64
	Deleted             uint64
	Errors              uint64
	CycleLastDurationMS int64
}

// Janitor owns the sweep loop.
type Janitor struct {
	sweeper Sweeper
	sink    Sink
	cfg     Config
	log     *slog.Logger

	mu    sync.Mutex
	stats Stats

	ticker *time.Ticker
	stopCh chan struct{}
	doneCh chan struct{}
	once   sync.Once
}

// New constructs but does not start a Janitor. sink may be nil.
func New(sweeper Sweeper, sink Sink, cfg Config) *Janitor {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Janitor{
		sweeper: sweeper,
		sink:    sink,
		cfg:     cfg,
		log:     cfg.Logger.With("domain", "janitor"),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
}

// Start launches the loop in a new goroutine. Calling it twice is a no-op.
func (j *Janitor) Start(ctx context.Context) {
	if j.ticker != nil {
		return
	}
	j.ticker = time.NewTicker(j.cfg.Interval)
	go j.loop(ctx)
}

// Stop signals the loop to exit and waits for it.
func (j *Janitor) Stop() {
	if j.ticker == nil {
		return
	}
	j.once.Do(func() { close(j.stopCh) })
	<-j.doneCh
}

// Run sweeps once immediately, then on every tick until ctx is done. It
// blocks and always returns nil, which suits errgroup.Go.
func (j *Janitor) Run(ctx context.Context) error {
	j.Sweep(ctx)
	j.Start(ctx)
	select {
	case <-ctx.Done():
	case <-j.doneCh:
	}
	j.Stop()
	return nil
}

// Snapshot returns a copy of the current counters.
func (j *Janitor) Snapshot() Stats {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.stats
}

func (j *Janitor) loop(ctx context.Context) {
	defer func() {
		j.ticker.Stop()
		close(j.doneCh)
	}()
	for {
		select {
		case <-ctx.Done():
			j.log.Info("janitor stop", "reason", "context_cancel")
			return
		case <-j.stopCh:
			j.log.Info("janitor stop", "reason", "stop_signal")
			return
		case <-j.ticker.C:
			j.Sweep(ctx)
		}
	}
}

// Sweep runs one cleanup pass.
func (j *Janitor) Sweep(ctx context.Context) {
	start := time.Now()
	n, err := j.sweeper.CleanupExpiredPending(ctx)
	elapsed := time.Since(start)

	j.mu.Lock()
	j.stats.Cycles++
	j.stats.CycleLastDurationMS = elapsed.Milliseconds()
	if err != nil {
		j.stats.Errors++
	} else if n > 0 {
		j.stats.Deleted += uint64(n)
	}
	j.mu.Unlock()

	if err != nil {
		if !errors.Is(err, context.Canceled) {
			j.log.Error("sweep", "error", err)
		}
		j.emit(CounterErrors, 1)
		return
	}
	j.emit(CounterDeleted, int64(n))
	if j.sink != nil {
		j.sink.Observe(ObserveDeleted, int64(n))
		j.sink.Observe(ObserveCycleTime, elapsed.Milliseconds())
	}
	j.log.Debug("sweep complete", "deleted", n, "ms", elapsed.Milliseconds())
}

func (j *Janitor) emit(name string, delta int64) {
	if j.sink != nil && delta > 0 {
		j.sink.Inc(name, delta)
	}
}
