package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/samber/lo"

	"github.com/kovalyov-valentin/news-aggregator/internal/model"
)

// FeedStatusPostgresStorage keeps the last polling outcome of every feed.
type FeedStatusPostgresStorage struct {
	db *sqlx.DB
}

func NewFeedStatusStorage(db *sqlx.DB) *FeedStatusPostgresStorage {
	return &FeedStatusPostgresStorage{db: db}
}

func (s *FeedStatusPostgresStorage) RecordSuccess(ctx context.Context, feed model.Feed, polledAt time.Time, items, stored int) error {
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO feed_status (feed_url, category, last_polled_at, last_success_at, last_error, last_item_count, last_stored_count, consecutive_failures)
		VALUES ($1, $2, $3, $3, NULL, $4, $5, 0)
		ON CONFLICT (feed_url) DO UPDATE SET
			category = EXCLUDED.category,
			last_polled_at = EXCLUDED.last_polled_at,
			last_success_at = EXCLUDED.last_success_at,
			last_error = NULL,
			last_item_count = EXCLUDED.last_item_count,
			last_stored_count = EXCLUDED.last_stored_count,
			consecutive_failures = 0`,
		feed.URL,
		feed.Category,
		polledAt,
		items,
		stored,
	)
	if err != nil {
		return fmt.Errorf("record success for %s: %w", feed.URL, err)
	}

	return nil
}

func (s *FeedStatusPostgresStorage) RecordFailure(ctx context.Context, feed model.Feed, polledAt time.Time, reason string) error {
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO feed_status (feed_url, category, last_polled_at, last_error, consecutive_failures)
		VALUES ($1, $2, $3, $4, 1)
		ON CONFLICT (feed_url) DO UPDATE SET
			category = EXCLUDED.category,
			last_polled_at = EXCLUDED.last_polled_at,
			last_error = EXCLUDED.last_error,
			consecutive_failures = feed_status.consecutive_failures + 1`,
		feed.URL,
		feed.Category,
		polledAt,
		reason,
	)
	if err != nil {
		return fmt.Errorf("record failure for %s: %w", feed.URL, err)
	}

	return nil
}

// Statuses returns the status of every feed that has been polled at least once.
func (s *FeedStatusPostgresStorage) Statuses(ctx context.Context) ([]model.FeedStatus, error) {
	var rows []dbFeedStatus
	if err := s.db.SelectContext(ctx, &rows, `SELECT * FROM feed_status ORDER BY category, feed_url`); err != nil {
		return nil, fmt.Errorf("list feed statuses: %w", err)
	}

	return lo.Map(rows, func(row dbFeedStatus, _ int) model.FeedStatus {
		return model.FeedStatus(row)
	}), nil
}

type dbFeedStatus struct {
	FeedURL             string     `db:"feed_url"`
	Category            string     `db:"category"`
	LastPolledAt        time.Time  `db:"last_polled_at"`
	LastSuccessAt       *time.Time `db:"last_success_at"`
	LastError           *string    `db:"last_error"`
	LastItemCount       int        `db:"last_item_count"`
	LastStoredCount     int        `db:"last_stored_count"`
	ConsecutiveFailures int        `db:"consecutive_failures"`
}
