package main

import (
	"github.com/urfave/cli/v2"

	"github.com/kovalyov-valentin/news-aggregator/internal/storage"
)

func migrateCmd() *cli.Command {
	return &cli.Command{
		Name:        "migrate",
		Usage:       "Run database migrations",
		Description: `Applies every pending migration. serve and sweep do this on start as well.`,
		Action: func(c *cli.Context) error {
			cfg, log, err := bootstrap()
			if err != nil {
				return err
			}
			defer log.Sync()

			db, err := storage.Connect(c.Context, cfg.DatabaseDSN, cfg.DBConnectTimeout, log)
			if err != nil {
				return err
			}
			defer db.Close()

			return storage.Migrate(db, log)
		},
	}
}

func rollbackCmd() *cli.Command {
	return &cli.Command{
		Name:        "rollback",
		Usage:       "Roll back the last database migration",
		Description: `Reverts the most recent migration. Rolling back the first one drops the articles table.`,
		Action: func(c *cli.Context) error {
			cfg, log, err := bootstrap()
			if err != nil {
				return err
			}
			defer log.Sync()

			db, err := storage.Connect(c.Context, cfg.DatabaseDSN, cfg.DBConnectTimeout, log)
			if err != nil {
				return err
			}
			defer db.Close()

			return storage.Rollback(db, log)
		},
	}
}
