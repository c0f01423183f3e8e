package storage

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/kovalyov-valentin/news-aggregator/internal/logger"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Connect opens the database, retrying with exponential backoff until maxWait
// elapses. The caller decides what a final failure means.
func Connect(ctx context.Context, dsn string, maxWait time.Duration, log logger.Logger) (*sqlx.DB, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 500 * time.Millisecond
	policy.MaxInterval = 5 * time.Second
	policy.MaxElapsedTime = maxWait

	var db *sqlx.DB

	connect := func() error {
		conn, err := sqlx.ConnectContext(ctx, "postgres", dsn)
		if err != nil {
			return err
		}
		db = conn
		return nil
	}

	notify := func(err error, next time.Duration) {
		log.Warn("database not reachable, retrying", logger.Error(err), logger.Duration("retry_in", next))
	}

	if err := backoff.RetryNotify(connect, backoff.WithContext(policy, ctx), notify); err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	return db, nil
}

func newMigrator(db *sqlx.DB) (*migrate.Migrate, error) {
	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		return nil, fmt.Errorf("open migrations: %w", err)
	}

	driver, err := postgres.WithInstance(db.DB, &postgres.Config{})
	if err != nil {
		return nil, fmt.Errorf("create postgres driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("create migrate instance: %w", err)
	}

	return m, nil
}

// Migrate applies the embedded schema migrations.
func Migrate(db *sqlx.DB, log logger.Logger) error {
	m, err := newMigrator(db)
	if err != nil {
		return err
	}

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			log.Info("no pending migrations")
			return nil
		}
		return fmt.Errorf("run migrations: %w", err)
	}

	version, _, _ := m.Version()
	log.Info("migrations applied", logger.Int("version", int(version)))

	return nil
}

// Rollback reverts the most recent migration.
func Rollback(db *sqlx.DB, log logger.Logger) error {
	m, err := newMigrator(db)
	if err != nil {
		return err
	}

	if err := m.Steps(-1); err != nil {
		return fmt.Errorf("roll back migration: %w", err)
	}

	version, dirty, err := m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		log.Info("all migrations rolled back")
	case err != nil:
		return fmt.Errorf("read migration version: %w", err)
	default:
		log.Info("migration rolled back", logger.Int("version", int(version)), logger.Bool("dirty", dirty))
	}

	return nil
}
