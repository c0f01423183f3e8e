package api

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/kovalyov-valentin/news-aggregator/internal/logger"
	"github.com/kovalyov-valentin/news-aggregator/internal/model"
	"github.com/kovalyov-valentin/news-aggregator/internal/storage"
)

const (
	defaultPage  = 1
	defaultLimit = 20
	maxLimit     = 100

	// keeps (page-1)*limit well inside an int
	maxPage = math.MaxInt32 / maxLimit

	newsCategory = "news"
)

type ArticleStorage interface {
	List(ctx context.Context, filter storage.ArticleFilter) ([]model.Article, int, error)
	ByCategory(ctx context.Context, category string) ([]model.Article, error)
	Search(ctx context.Context, query string) ([]model.Article, error)
}

type ArticleHandler struct {
	articles ArticleStorage
	log      logger.Logger
}

func NewArticleHandler(articles ArticleStorage, log logger.Logger) *ArticleHandler {
	return &ArticleHandler{articles: articles, log: log}
}

type listResponse struct {
	Articles    []model.Article `json:"articles"`
	Total       int             `json:"total"`
	TotalPages  int             `json:"totalPages"`
	CurrentPage int             `json:"currentPage"`
}

type articlesResponse struct {
	Articles []model.Article `json:"articles"`
}

// List serves GET /api/articles?category=&source=&page=&limit=.
func (h *ArticleHandler) List(c *gin.Context) {
	page := min(positiveInt(c.Query("page"), defaultPage), maxPage)
	limit := min(positiveInt(c.Query("limit"), defaultLimit), maxLimit)

	articles, total, err := h.articles.List(c.Request.Context(), storage.ArticleFilter{
		Category: strings.TrimSpace(c.Query("category")),
		Source:   strings.TrimSpace(c.Query("source")),
		Limit:    limit,
		Offset:   (page - 1) * limit,
	})
	if err != nil {
		serverError(c, h.log, "listing articles failed", err)
		return
	}

	c.JSON(http.StatusOK, listResponse{
		Articles:    orEmpty(articles),
		Total:       total,
		TotalPages:  (total + limit - 1) / limit,
		CurrentPage: page,
	})
}

// News serves GET /api/news.
func (h *ArticleHandler) News(c *gin.Context) {
	articles, err := h.articles.ByCategory(c.Request.Context(), newsCategory)
	if err != nil {
		serverError(c, h.log, "listing news failed", err)
		return
	}

	c.JSON(http.StatusOK, articlesResponse{Articles: orEmpty(articles)})
}

// Search serves GET /api/search?query=. A blank query matches nothing.
func (h *ArticleHandler) Search(c *gin.Context) {
	query := strings.TrimSpace(c.Query("query"))
	if query == "" {
		c.JSON(http.StatusOK, articlesResponse{Articles: []model.Article{}})
		return
	}

	articles, err := h.articles.Search(c.Request.Context(), query)
	if err != nil {
		serverError(c, h.log, "searching articles failed", err)
		return
	}

	c.JSON(http.StatusOK, articlesResponse{Articles: orEmpty(articles)})
}

// positiveInt parses raw and falls back to def for anything that is not a
// positive integer.
func positiveInt(raw string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 1 {
		return def
	}

	return n
}

func orEmpty(articles []model.Article) []model.Article {
	if articles == nil {
		return []model.Article{}
	}

	return articles
}

func serverError(c *gin.Context, log logger.Logger, msg string, err error) {
	log.Error(msg, logger.String("path", c.Request.URL.Path), logger.Error(err))
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "Server Error"})
}
