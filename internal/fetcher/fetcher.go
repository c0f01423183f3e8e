package fetcher

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/tomakado/containers/set"
	"golang.org/x/sync/errgroup"

	"github.com/kovalyov-valentin/news-aggregator/internal/gate"
	"github.com/kovalyov-valentin/news-aggregator/internal/logger"
	"github.com/kovalyov-valentin/news-aggregator/internal/metrics"
	"github.com/kovalyov-valentin/news-aggregator/internal/model"
	"github.com/kovalyov-valentin/news-aggregator/internal/source"
)

// Source is one remote feed. RSSSource implements it.
type Source interface {
	Feed() model.Feed
	Fetch(ctx context.Context) ([]model.Item, error)
}

type SourceFactory func(feed model.Feed) Source

type Normalizer interface {
	Normalize(ctx context.Context, feed model.Feed, item model.Item) model.Candidate
}

type Gate interface {
	Admit(ctx context.Context, candidate model.Candidate) gate.Result
}

// StatusRecorder persists the outcome of every feed poll.
type StatusRecorder interface {
	RecordSuccess(ctx context.Context, feed model.Feed, polledAt time.Time, items, stored int) error
	RecordFailure(ctx context.Context, feed model.Feed, polledAt time.Time, reason string) error
}

// FeedReport sums up what happened to one feed during a pass.
type FeedReport struct {
	Feed       model.Feed
	Fetched    int
	Filtered   int
	Stored     int
	Duplicates int
	Rejected   int
	Failed     int
	Duration   time.Duration
	// Err is set when the feed could not be fetched at all
	Err error
}

type Fetcher struct {
	feeds      []model.Feed
	newSource  SourceFactory
	normalizer Normalizer
	gate       Gate
	statuses   StatusRecorder
	metrics    *metrics.Metrics
	log        logger.Logger

	// Upper bound for downloading and parsing a single feed
	fetchTimeout time.Duration
	// How many feeds are polled at the same time
	concurrency int
	// Items whose title or categories mention one of these are skipped
	filterKeywords []string

	now func() time.Time
}

func NewFetcher(
	feeds []model.Feed,
	newSource SourceFactory,
	normalizer Normalizer,
	articleGate Gate,
	fetchTimeout time.Duration,
	concurrency int,
	filterKeywords []string,
	log logger.Logger,
) *Fetcher {
	return &Fetcher{
		feeds:          feeds,
		newSource:      newSource,
		normalizer:     normalizer,
		gate:           articleGate,
		metrics:        metrics.NewUnregistered(),
		log:            log,
		fetchTimeout:   fetchTimeout,
		concurrency:    max(concurrency, 1),
		filterKeywords: lo.Compact(lowerAll(filterKeywords)),
		now:            time.Now,
	}
}

// WithStatusRecorder makes the fetcher persist per-feed outcomes.
func (f *Fetcher) WithStatusRecorder(statuses StatusRecorder) *Fetcher {
	f.statuses = statuses
	return f
}

func (f *Fetcher) WithMetrics(m *metrics.Metrics) *Fetcher {
	f.metrics = m
	return f
}

func (f *Fetcher) WithClock(now func() time.Time) *Fetcher {
	f.now = now
	return f
}

// Fetch polls every configured feed once and returns one report per feed in
// registry order. A broken feed never stops the others.
func (f *Fetcher) Fetch(ctx context.Context) []FeedReport {
	reports := make([]FeedReport, len(f.feeds))

	var g errgroup.Group
	g.SetLimit(f.concurrency)

	for i, feed := range f.feeds {
		i, feed := i, feed
		g.Go(func() error {
			reports[i] = f.fetchFeed(ctx, feed)
			return nil
		})
	}

	_ = g.Wait()

	return reports
}

func (f *Fetcher) fetchFeed(ctx context.Context, feed model.Feed) FeedReport {
	started := f.now()
	report := FeedReport{Feed: feed}
	log := f.log.With(logger.String("feed_url", feed.URL), logger.String("category", feed.Category))

	defer func() {
		report.Duration = f.now().Sub(started)
		f.metrics.FeedFetchDurationSeconds.WithLabelValues(feed.Category).Observe(report.Duration.Seconds())
	}()

	items, err := f.download(ctx, feed)
	if err != nil {
		report.Err = err
		log.Warn("fetching feed failed", logger.Error(err))
		f.metrics.FeedFetchesTotal.WithLabelValues(feed.Category, failureReason(err)).Inc()
		f.recordFailure(ctx, feed, started, err)
		return report
	}

	report.Fetched = len(items)
	f.metrics.FeedFetchesTotal.WithLabelValues(feed.Category, "ok").Inc()

	f.processItems(ctx, feed, items, &report, log)

	if report.Err != nil {
		log.Warn("feed processing interrupted", logger.Int("stored", report.Stored), logger.Error(report.Err))
		f.recordFailure(context.WithoutCancel(ctx), feed, started, report.Err)
		return report
	}

	log.Info("feed processed",
		logger.Int("fetched", report.Fetched),
		logger.Int("stored", report.Stored),
		logger.Int("duplicates", report.Duplicates),
		logger.Int("rejected", report.Rejected),
		logger.Int("failed", report.Failed),
	)

	f.recordSuccess(ctx, feed, started, report)

	return report
}

func (f *Fetcher) download(ctx context.Context, feed model.Feed) ([]model.Item, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, f.fetchTimeout)
	defer cancel()

	return f.newSource(feed).Fetch(fetchCtx)
}

// processItems runs the items of one feed through the gate in feed order.
func (f *Fetcher) processItems(
	ctx context.Context,
	feed model.Feed,
	items []model.Item,
	report *FeedReport,
	log logger.Logger,
) {
	for _, item := range items {
		if ctx.Err() != nil {
			report.Err = ctx.Err()
			return
		}

		if f.itemShouldBeSkipped(item) {
			report.Filtered++
			continue
		}

		candidate := f.normalizer.Normalize(ctx, feed, item)

		// a story syndicated by several feeds is settled by the store: only the first
		// copy that passes the quality rules is inserted, later ones come back as duplicates
		res := f.gate.Admit(ctx, candidate)
		f.metrics.ArticlesTotal.WithLabelValues(string(res.Outcome)).Inc()

		switch res.Outcome {
		case gate.Stored:
			report.Stored++
		case gate.Duplicate:
			report.Duplicates++
		case gate.Rejected:
			report.Rejected++
			log.Debug("item rejected", logger.String("link", candidate.Link), logger.String("reason", string(res.Reason)))
		case gate.Failed:
			report.Failed++
			log.Error("storing item failed", logger.String("link", candidate.Link), logger.Error(res.Err))
		}
	}
}

func (f *Fetcher) itemShouldBeSkipped(item model.Item) bool {
	if len(f.filterKeywords) == 0 {
		return false
	}

	categories := set.New(lowerAll(item.Categories)...)
	title := strings.ToLower(item.Title)

	for _, keyword := range f.filterKeywords {
		if categories.Contains(keyword) || strings.Contains(title, keyword) {
			return true
		}
	}

	return false
}

func (f *Fetcher) recordSuccess(ctx context.Context, feed model.Feed, polledAt time.Time, report FeedReport) {
	if f.statuses == nil {
		return
	}

	if err := f.statuses.RecordSuccess(ctx, feed, polledAt.UTC(), report.Fetched, report.Stored); err != nil {
		f.log.Warn("recording feed status failed", logger.String("feed_url", feed.URL), logger.Error(err))
	}
}

func (f *Fetcher) recordFailure(ctx context.Context, feed model.Feed, polledAt time.Time, cause error) {
	if f.statuses == nil {
		return
	}

	if err := f.statuses.RecordFailure(ctx, feed, polledAt.UTC(), cause.Error()); err != nil {
		f.log.Warn("recording feed status failed", logger.String("feed_url", feed.URL), logger.Error(err))
	}
}

func failureReason(err error) string {
	var fetchErr *source.FetchError
	if errors.As(err, &fetchErr) {
		return string(fetchErr.Kind)
	}

	return "error"
}

func lowerAll(values []string) []string {
	return lo.Map(values, func(v string, _ int) string {
		return strings.ToLower(strings.TrimSpace(v))
	})
}
