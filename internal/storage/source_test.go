package storage_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kovalyov-valentin/news-aggregator/internal/model"
	"github.com/kovalyov-valentin/news-aggregator/internal/storage"
)

func newFeedStatusStorage(t *testing.T) (*storage.FeedStatusPostgresStorage, sqlmock.Sqlmock) {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })

	return storage.NewFeedStatusStorage(sqlx.NewDb(mockDB, "postgres")), mock
}

func TestFeedStatusStorage_RecordSuccess(t *testing.T) {
	repo, mock := newFeedStatusStorage(t)
	feed := model.Feed{URL: "https://example.com/rss", Category: "tech"}
	polledAt := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

	mock.ExpectExec(`INSERT INTO feed_status .+ ON CONFLICT \(feed_url\) DO UPDATE SET .+ consecutive_failures = 0`).
		WithArgs(feed.URL, feed.Category, polledAt, 12, 3).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.RecordSuccess(context.Background(), feed, polledAt, 12, 3))

	expectationsMet(t, mock)
}

func TestFeedStatusStorage_RecordFailure(t *testing.T) {
	repo, mock := newFeedStatusStorage(t)
	feed := model.Feed{URL: "https://example.com/rss", Category: "tech"}
	polledAt := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

	mock.ExpectExec(`consecutive_failures = feed_status.consecutive_failures \+ 1`).
		WithArgs(feed.URL, feed.Category, polledAt, "timeout").
		WillReturnError(errors.New("db down"))

	err := repo.RecordFailure(context.Background(), feed, polledAt, "timeout")
	require.Error(t, err)
	assert.Contains(t, err.Error(), feed.URL)

	expectationsMet(t, mock)
}

func TestFeedStatusStorage_Statuses(t *testing.T) {
	repo, mock := newFeedStatusStorage(t)
	polledAt := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT \* FROM feed_status ORDER BY category, feed_url`).
		WillReturnRows(sqlmock.NewRows([]string{
			"feed_url", "category", "last_polled_at", "last_success_at", "last_error",
			"last_item_count", "last_stored_count", "consecutive_failures",
		}).
			AddRow("https://a.example.com/rss", "news", polledAt, polledAt, nil, 10, 2, 0).
			AddRow("https://b.example.com/rss", "tech", polledAt, nil, "http_status: 503", 0, 0, 4))

	statuses, err := repo.Statuses(context.Background())
	require.NoError(t, err)
	require.Len(t, statuses, 2)

	assert.Equal(t, "https://a.example.com/rss", statuses[0].FeedURL)
	require.NotNil(t, statuses[0].LastSuccessAt)
	assert.Nil(t, statuses[0].LastError)

	assert.Nil(t, statuses[1].LastSuccessAt)
	require.NotNil(t, statuses[1].LastError)
	assert.Equal(t, "http_status: 503", *statuses[1].LastError)
	assert.Equal(t, 4, statuses[1].ConsecutiveFailures)

	expectationsMet(t, mock)
}
