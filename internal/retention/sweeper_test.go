package retention_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kovalyov-valentin/news-aggregator/internal/logger"
	"github.com/kovalyov-valentin/news-aggregator/internal/retention"
)

type fakeStore struct {
	published []time.Time
	cutoff    time.Time
	err       error
}

func (f *fakeStore) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	f.cutoff = cutoff
	if f.err != nil {
		return 0, f.err
	}

	var (
		kept    []time.Time
		deleted int64
	)
	for _, p := range f.published {
		if p.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, p)
	}
	f.published = kept

	return deleted, nil
}

func TestSweep(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	horizon := 96 * time.Hour
	cutoff := now.Add(-horizon)

	store := &fakeStore{published: []time.Time{
		cutoff.Add(-time.Second),
		cutoff,
		cutoff.Add(time.Second),
		now,
	}}

	sweeper := retention.NewSweeper(store, horizon, logger.NewNop()).WithClock(func() time.Time { return now })

	evicted, err := sweeper.Sweep(context.Background())
	require.NoError(t, err)

	assert.Equal(t, cutoff, store.cutoff)
	assert.Equal(t, int64(1), evicted)
	assert.Len(t, store.published, 3, "an article published exactly at the cutoff is kept")
}

func TestSweep_Error(t *testing.T) {
	store := &fakeStore{err: errors.New("db down")}

	_, err := retention.NewSweeper(store, time.Hour, logger.NewNop()).Sweep(context.Background())

	require.Error(t, err)
	assert.ErrorContains(t, err, "db down")
}
