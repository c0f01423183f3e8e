package main

import (
	"context"
	"net/http"

	"github.com/jmoiron/sqlx"

	"github.com/kovalyov-valentin/news-aggregator/internal/config"
	"github.com/kovalyov-valentin/news-aggregator/internal/fetcher"
	"github.com/kovalyov-valentin/news-aggregator/internal/gate"
	"github.com/kovalyov-valentin/news-aggregator/internal/logger"
	"github.com/kovalyov-valentin/news-aggregator/internal/metrics"
	"github.com/kovalyov-valentin/news-aggregator/internal/model"
	"github.com/kovalyov-valentin/news-aggregator/internal/normalizer"
	"github.com/kovalyov-valentin/news-aggregator/internal/retention"
	"github.com/kovalyov-valentin/news-aggregator/internal/scheduler"
	"github.com/kovalyov-valentin/news-aggregator/internal/source"
	"github.com/kovalyov-valentin/news-aggregator/internal/storage"
)

func bootstrap() (config.Config, logger.Logger, error) {
	cfg, err := config.Get()
	if err != nil {
		return config.Config{}, nil, err
	}

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		return config.Config{}, nil, err
	}

	return cfg, log, nil
}

// openDatabase waits for the database and brings the schema up to date.
func openDatabase(ctx context.Context, cfg config.Config, log logger.Logger) (*sqlx.DB, error) {
	db, err := storage.Connect(ctx, cfg.DatabaseDSN, cfg.DBConnectTimeout, log)
	if err != nil {
		return nil, err
	}

	if err := storage.Migrate(db, log); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

// newScheduler wires the ingestion pipeline for the registry's feeds.
func newScheduler(
	cfg config.Config,
	registry *source.Registry,
	db *sqlx.DB,
	m *metrics.Metrics,
	log logger.Logger,
) *scheduler.Scheduler {
	var (
		client         = &http.Client{Timeout: cfg.FetchTimeout}
		articleStorage = storage.NewArticleStorage(db)
		statusStorage  = storage.NewFeedStatusStorage(db)
		articleGate    = gate.New(articleStorage, cfg.MinContentLength)
		pages          = normalizer.NewReadabilityReader(client)
		feedFetcher    = fetcher.NewFetcher(
			registry.Feeds(),
			func(feed model.Feed) fetcher.Source {
				return source.NewRSSSourceFromModel(feed, client)
			},
			normalizer.New(pages, log),
			articleGate,
			cfg.FetchTimeout,
			cfg.FetchConcurrency,
			cfg.FilterKeywords,
			log,
		)
		sweeper = retention.NewSweeper(articleStorage, cfg.RetentionHorizon, log)
	)

	feedFetcher.WithStatusRecorder(statusStorage).WithMetrics(m)

	log.Info("feed registry loaded",
		logger.Int("feeds", len(registry.Feeds())),
		logger.Int("categories", len(registry.Categories())),
	)

	return scheduler.New(feedFetcher, sweeper, cfg.FetchInterval, log).WithMetrics(m)
}
