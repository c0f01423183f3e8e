package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"

	"github.com/kovalyov-valentin/news-aggregator/internal/logger"
	"github.com/kovalyov-valentin/news-aggregator/internal/model"
)

type FeedStatusStorage interface {
	Statuses(ctx context.Context) ([]model.FeedStatus, error)
}

type FeedHandler struct {
	feeds    []model.Feed
	statuses FeedStatusStorage
	log      logger.Logger
}

func NewFeedHandler(feeds []model.Feed, statuses FeedStatusStorage, log logger.Logger) *FeedHandler {
	return &FeedHandler{feeds: feeds, statuses: statuses, log: log}
}

type feedView struct {
	URL      string `json:"url"`
	Category string `json:"category"`
	Name     string `json:"name,omitempty"`
	// nil until the feed has been polled
	Status *model.FeedStatus `json:"status"`
}

// List serves GET /api/feeds: the configured feeds with their last poll outcome.
func (h *FeedHandler) List(c *gin.Context) {
	statuses, err := h.statuses.Statuses(c.Request.Context())
	if err != nil {
		serverError(c, h.log, "listing feed statuses failed", err)
		return
	}

	byURL := lo.KeyBy(statuses, func(s model.FeedStatus) string {
		return s.FeedURL
	})

	feeds := lo.Map(h.feeds, func(feed model.Feed, _ int) feedView {
		view := feedView{URL: feed.URL, Category: feed.Category, Name: feed.Name}
		if status, ok := byURL[feed.URL]; ok {
			view.Status = &status
		}
		return view
	})

	c.JSON(http.StatusOK, gin.H{"feeds": feeds})
}
