// Package poller runs a fetch function immediately and then on a fixed
// wall-clock cadence, keeping only the freshest outcome.
package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"

	"github.com/matrixise/daodash/internal/metrics"
)

// FetchFunc is the function invoked on every tick
type FetchFunc[T any] func(ctx context.Context) (T, error)

// Config holds poller configuration
type Config struct {
	Name     string          // Label used in logs and metrics
	Interval time.Duration   // Time between ticks
	Clock    clockwork.Clock // Defaults to the real clock
	Logger   *slog.Logger    // Defaults to slog.Default()
}

// Poller wraps a gocron duration job. Ticks do not wait for the previous
// fetch to finish, so fetches may overlap; an outcome is applied only if no
// fetch started after it has been applied already.
type Poller[T any] struct {
	name            string
	interval        time.Duration
	gocronScheduler gocron.Scheduler
	job             gocron.Job
	clock           clockwork.Clock
	logger          *slog.Logger

	fetch    FetchFunc[T]
	onResult func(T)
	onError  func(error)

	ctx      context.Context
	cancel   context.CancelFunc
	seq      atomic.Uint64
	stopOnce sync.Once

	mu        sync.Mutex
	applied   uint64
	stopped   bool
	latest    T
	latestErr error
	latestAt  time.Time
}

// Start creates the poller, invokes fetch immediately and then every
// cfg.Interval until Stop is called. onResult and onError may be nil.
func Start[T any](cfg Config, fetch FetchFunc[T], onResult func(T), onError func(error)) (*Poller[T], error) {
	if fetch == nil {
		return nil, errors.New("fetch function is required")
	}
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("interval must be positive (got %s)", cfg.Interval)
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Name == "" {
		cfg.Name = "poller"
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Poller[T]{
		name:     cfg.Name,
		interval: cfg.Interval,
		clock:    cfg.Clock,
		logger:   cfg.Logger.With("poller", cfg.Name),
		fetch:    fetch,
		onResult: onResult,
		onError:  onError,
		ctx:      ctx,
		cancel:   cancel,
	}

	gocronScheduler, err := gocron.NewScheduler(
		gocron.WithClock(cfg.Clock),
		gocron.WithLogger(newGocronLoggerAdapter(p.logger)),
	)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}
	p.gocronScheduler = gocronScheduler

	job, err := gocronScheduler.NewJob(
		gocron.DurationJob(cfg.Interval),
		gocron.NewTask(p.tick),
		gocron.WithName(cfg.Name),
	)
	if err != nil {
		cancel()
		_ = gocronScheduler.Shutdown()
		return nil, fmt.Errorf("failed to create poll job: %w", err)
	}
	p.job = job

	gocronScheduler.Start()

	if err := job.RunNow(); err != nil {
		p.logger.Warn("Immediate poll via scheduler failed, running directly", "error", err)
		p.tick()
	}

	p.logger.Debug("Poller started", "interval", cfg.Interval)
	return p, nil
}

// tick starts one fetch without waiting for it
func (p *Poller[T]) tick() {
	if p.ctx.Err() != nil {
		return
	}
	seq := p.seq.Add(1)
	go p.run(seq)
}

func (p *Poller[T]) run(seq uint64) {
	start := p.clock.Now()
	value, err := p.fetch(p.ctx)
	p.apply(seq, value, err, p.clock.Since(start))
}

func (p *Poller[T]) apply(seq uint64, value T, err error, elapsed time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		metrics.ObservePoll(p.name, metrics.OutcomeDiscarded, elapsed.Seconds())
		p.logger.Debug("Discarding poll outcome after stop", "seq", seq)
		return
	}
	if seq < p.applied {
		metrics.ObservePoll(p.name, metrics.OutcomeDiscarded, elapsed.Seconds())
		p.logger.Debug("Discarding stale poll outcome", "seq", seq, "applied", p.applied)
		return
	}

	p.applied = seq
	p.latestAt = p.clock.Now()

	if err != nil {
		p.latestErr = err
		metrics.ObservePoll(p.name, metrics.OutcomeError, elapsed.Seconds())
		p.logger.Debug("Poll failed", "seq", seq, "error", err)
		if p.onError != nil {
			p.onError(err)
		}
		return
	}

	p.latest = value
	p.latestErr = nil
	metrics.ObservePoll(p.name, metrics.OutcomeSuccess, elapsed.Seconds())
	metrics.MarkSuccess(p.name, float64(p.latestAt.Unix()))
	if p.onResult != nil {
		p.onResult(value)
	}
}

// Refresh runs one fetch now, outside the cadence, and applies its outcome
// under the same ordering as a tick: a tick that started earlier and
// resolves later cannot overwrite it. The fetch error is returned even when
// the outcome was discarded.
func (p *Poller[T]) Refresh(ctx context.Context) error {
	seq := p.seq.Add(1)
	start := p.clock.Now()
	value, err := p.fetch(ctx)
	p.apply(seq, value, err, p.clock.Since(start))
	return err
}

// Latest returns the last applied value, error and application time
func (p *Poller[T]) Latest() (T, error, time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.latest, p.latestErr, p.latestAt
}

// Interval returns the configured tick interval
func (p *Poller[T]) Interval() time.Duration {
	return p.interval
}

// NextRun returns the next scheduled tick
func (p *Poller[T]) NextRun() (time.Time, error) {
	nextRun, err := p.job.NextRun()
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get next run: %w", err)
	}
	return nextRun, nil
}

// Stop cancels the timer and the in-flight fetch context. Outcomes arriving
// afterwards have no effect. Safe to call more than once.
func (p *Poller[T]) Stop() error {
	var err error
	p.stopOnce.Do(func() {
		p.mu.Lock()
		p.stopped = true
		p.mu.Unlock()

		p.cancel()
		err = p.gocronScheduler.Shutdown()
		p.logger.Debug("Poller stopped")
	})
	return err
}

// gocronLoggerAdapter adapts slog.Logger to gocron.Logger interface
type gocronLoggerAdapter struct {
	logger *slog.Logger
}

func newGocronLoggerAdapter(logger *slog.Logger) gocron.Logger {
	return &gocronLoggerAdapter{logger: logger}
}

func (a *gocronLoggerAdapter) Debug(msg string, args ...any) {
	a.logger.Debug(msg, args...)
}

func (a *gocronLoggerAdapter) Info(msg string, args ...any) {
	a.logger.Info(msg, args...)
}

func (a *gocronLoggerAdapter) Warn(msg string, args ...any) {
	a.logger.Warn(msg, args...)
}

func (a *gocronLoggerAdapter) Error(msg string, args ...any) {
	a.logger.Error(msg, args...)
}
