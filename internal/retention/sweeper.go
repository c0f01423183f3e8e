// Package retention evicts articles that fell out of the retention horizon.
package retention

import (
	"context"
	"fmt"
	"time"

	"github.com/kovalyov-valentin/news-aggregator/internal/logger"
)

type ArticleStorage interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type Sweeper struct {
	articles ArticleStorage
	horizon  time.Duration
	now      func() time.Time
	log      logger.Logger
}

func NewSweeper(articles ArticleStorage, horizon time.Duration, log logger.Logger) *Sweeper {
	return &Sweeper{
		articles: articles,
		horizon:  horizon,
		now:      time.Now,
		log:      log,
	}
}

func (s *Sweeper) WithClock(now func() time.Time) *Sweeper {
	s.now = now
	return s
}

// Sweep deletes every article published before now minus the horizon and
// returns how many were removed.
func (s *Sweeper) Sweep(ctx context.Context) (int64, error) {
	cutoff := s.now().UTC().Add(-s.horizon)

	deleted, err := s.articles.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("evict articles: %w", err)
	}

	s.log.Info("retention sweep finished",
		logger.Time("cutoff", cutoff),
		logger.Int64("evicted", deleted),
	)

	return deleted, nil
}
