package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"

	"github.com/kovalyov-valentin/news-aggregator/internal/api"
	"github.com/kovalyov-valentin/news-aggregator/internal/logger"
	"github.com/kovalyov-valentin/news-aggregator/internal/metrics"
	"github.com/kovalyov-valentin/news-aggregator/internal/source"
	"github.com/kovalyov-valentin/news-aggregator/internal/storage"
)

const shutdownTimeout = 15 * time.Second

func serveCmd() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP API and the periodic feed sweep",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "no-scheduler",
				Usage:   "Only serve stored articles, never poll feeds",
				EnvVars: []string{"NEWS_NO_SCHEDULER"},
			},
		},
		Action: func(c *cli.Context) error {
			ctx, cancel := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer cancel()

			cfg, log, err := bootstrap()
			if err != nil {
				return err
			}
			defer log.Sync()

			db, err := openDatabase(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer db.Close()

			registry, err := source.LoadRegistry(cfg.SourcesFile)
			if err != nil {
				return fmt.Errorf("load feed registry: %w", err)
			}

			if cfg.LogLevel != "debug" {
				gin.SetMode(gin.ReleaseMode)
			}

			m := metrics.New(nil)

			router := api.NewRouter(api.RouterConfig{
				Articles:    api.NewArticleHandler(storage.NewArticleStorage(db), log),
				Feeds:       api.NewFeedHandler(registry.Feeds(), storage.NewFeedStatusStorage(db), log),
				DB:          db,
				Metrics:     promhttp.Handler(),
				CORSOrigins: cfg.CORSOrigins,
			}, log)

			srv := &http.Server{
				Addr:              cfg.HTTPAddr,
				Handler:           router,
				ReadHeaderTimeout: 10 * time.Second,
			}

			schedulerDone := make(chan struct{})

			if c.Bool("no-scheduler") {
				log.Info("scheduler disabled, serving stored articles only")
				close(schedulerDone)
			} else {
				sched := newScheduler(cfg, registry, db, m, log)

				go func(ctx context.Context) {
					defer close(schedulerDone)

					if err := sched.Start(ctx); err != nil {
						if !errors.Is(err, context.Canceled) {
							log.Error("failed to start scheduler", logger.Error(err))
							return
						}

						log.Info("scheduler stopped")
					}
				}(ctx)
			}

			go func() {
				<-ctx.Done()

				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()

				if err := srv.Shutdown(shutdownCtx); err != nil {
					log.Error("http server shutdown failed", logger.Error(err))
				}
			}()

			log.Info("http server listening", logger.String("addr", cfg.HTTPAddr))

			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				cancel()
				<-schedulerDone
				return fmt.Errorf("http server: %w", err)
			}

			<-schedulerDone
			log.Info("http server stopped")

			return nil
		},
	}
}
