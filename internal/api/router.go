// Package api exposes stored articles over HTTP.
package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/kovalyov-valentin/news-aggregator/internal/logger"
)

const corsMaxAge = 12 * time.Hour

// Pinger reports whether the database is reachable. *sqlx.DB implements it.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type RouterConfig struct {
	Articles *ArticleHandler
	Feeds    *FeedHandler
	DB       Pinger
	// Served at /metrics when set
	Metrics http.Handler
	// Empty means any origin
	CORSOrigins []string
}

func NewRouter(cfg RouterConfig, log logger.Logger) *gin.Engine {
	router := gin.New()

	router.Use(cors.New(corsConfig(cfg.CORSOrigins)))
	router.Use(requestLogger(log))
	router.Use(gin.Recovery())

	router.GET("/healthz", health(cfg.DB))
	if cfg.Metrics != nil {
		router.GET("/metrics", gin.WrapH(cfg.Metrics))
	}

	apiGroup := router.Group("/api")
	apiGroup.GET("/articles", cfg.Articles.List)
	apiGroup.GET("/news", cfg.Articles.News)
	apiGroup.GET("/search", cfg.Articles.Search)
	if cfg.Feeds != nil {
		apiGroup.GET("/feeds", cfg.Feeds.List)
	}

	return router
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods: []string{http.MethodGet, http.MethodOptions},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept"},
		MaxAge:       corsMaxAge,
	}

	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}

	return cfg
}

func health(db Pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if db != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()

			if err := db.PingContext(ctx); err != nil {
				_ = c.Error(err)
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
				return
			}
		}

		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

func requestLogger(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		fields := []logger.Field{
			logger.String("method", c.Request.Method),
			logger.String("path", path),
			logger.Int("status", c.Writer.Status()),
			logger.Duration("duration", time.Since(start)),
			logger.String("client_ip", c.ClientIP()),
		}
		if query != "" {
			fields = append(fields, logger.String("query", query))
		}

		switch {
		case len(c.Errors) > 0:
			fields = append(fields, logger.String("errors", c.Errors.String()))
			log.Error("HTTP request with errors", fields...)
		case strings.HasPrefix(path, "/healthz"), path == "/metrics":
			log.Debug("HTTP request", fields...)
		default:
			log.Info("HTTP request", fields...)
		}
	}
}
