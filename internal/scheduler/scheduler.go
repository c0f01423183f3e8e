// Package scheduler runs the ingest and retention sweep on a fixed interval.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/kovalyov-valentin/news-aggregator/internal/fetcher"
	"github.com/kovalyov-valentin/news-aggregator/internal/logger"
	"github.com/kovalyov-valentin/news-aggregator/internal/metrics"
)

var ErrSweepInProgress = errors.New("sweep already in progress")

type Ingester interface {
	Fetch(ctx context.Context) []fetcher.FeedReport
}

type Evictor interface {
	Sweep(ctx context.Context) (int64, error)
}

// SweepReport describes one ingest pass followed by one eviction pass.
type SweepReport struct {
	StartedAt   time.Time
	FinishedAt  time.Time
	Feeds       []fetcher.FeedReport
	Evicted     int64
	EvictionErr error
}

func (r SweepReport) Stored() int {
	total := 0
	for _, feed := range r.Feeds {
		total += feed.Stored
	}
	return total
}

func (r SweepReport) FailedFeeds() int {
	failed := 0
	for _, feed := range r.Feeds {
		if feed.Err != nil {
			failed++
		}
	}
	return failed
}

type Scheduler struct {
	ingester Ingester
	evictor  Evictor
	interval time.Duration
	cron     *cron.Cron
	metrics  *metrics.Metrics
	log      logger.Logger
	now      func() time.Time

	// held for the duration of a sweep
	running sync.Mutex
}

func New(ingester Ingester, evictor Evictor, interval time.Duration, log logger.Logger) *Scheduler {
	cronLog := cronLogger{log: log}

	return &Scheduler{
		ingester: ingester,
		evictor:  evictor,
		interval: interval,
		cron: cron.New(
			cron.WithLogger(cronLog),
			cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
		),
		metrics: metrics.NewUnregistered(),
		log:     log,
		now:     time.Now,
	}
}

func (s *Scheduler) WithMetrics(m *metrics.Metrics) *Scheduler {
	s.metrics = m
	return s
}

func (s *Scheduler) WithClock(now func() time.Time) *Scheduler {
	s.now = now
	return s
}

// Start runs a sweep right away and then one per interval until ctx is done.
// It returns after the in-flight sweep, if any, has finished.
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(fmt.Sprintf("@every %s", s.interval), func() { s.tick(ctx) }); err != nil {
		return fmt.Errorf("schedule sweep: %w", err)
	}

	s.log.Info("scheduler started", logger.Duration("interval", s.interval))

	s.cron.Start()
	s.tick(ctx)

	<-ctx.Done()

	stopped := s.cron.Stop()
	<-stopped.Done()

	s.log.Info("scheduler stopped")

	return ctx.Err()
}

func (s *Scheduler) tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	if _, err := s.RunOnce(ctx); errors.Is(err, ErrSweepInProgress) {
		s.log.Warn("previous sweep still running, skipping tick")
	}
}

// RunOnce performs a single sweep. It returns ErrSweepInProgress without
// doing anything when another sweep holds the guard.
func (s *Scheduler) RunOnce(ctx context.Context) (SweepReport, error) {
	if !s.running.TryLock() {
		s.metrics.SweepsTotal.WithLabelValues("skipped").Inc()
		return SweepReport{}, ErrSweepInProgress
	}
	defer s.running.Unlock()

	report := SweepReport{StartedAt: s.now()}

	report.Feeds = s.ingester.Fetch(ctx)

	evicted, err := s.evictor.Sweep(ctx)
	if err != nil {
		report.EvictionErr = err
		s.log.Error("retention sweep failed", logger.Error(err))
	}
	report.Evicted = evicted

	report.FinishedAt = s.now()

	s.observe(report)

	return report, nil
}

func (s *Scheduler) observe(report SweepReport) {
	duration := report.FinishedAt.Sub(report.StartedAt)

	result := "ok"
	if report.FailedFeeds() > 0 || report.EvictionErr != nil {
		result = "partial"
	}

	s.metrics.SweepsTotal.WithLabelValues(result).Inc()
	s.metrics.SweepDurationSeconds.Observe(duration.Seconds())
	s.metrics.ArticlesEvictedTotal.Add(float64(report.Evicted))

	s.log.Info("sweep finished",
		logger.Duration("duration", duration),
		logger.Int("feeds", len(report.Feeds)),
		logger.Int("failed_feeds", report.FailedFeeds()),
		logger.Int("stored", report.Stored()),
		logger.Int64("evicted", report.Evicted),
	)
}

// cronLogger routes cron's own messages to the application logger.
type cronLogger struct {
	log logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug(msg, logger.Pairs(keysAndValues...)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error(msg, append(logger.Pairs(keysAndValues...), logger.Error(err))...)
}
