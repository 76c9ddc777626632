package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"gameday-ticketing/internal/config"
	"gameday-ticketing/internal/logger"

	"github.com/cenkalti/backoff/v4"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
)

// Open connects to PostgreSQL, retrying while the database container comes up.
func Open(ctx context.Context, cfg config.DatabaseConfig, log *logger.Logger) (*bun.DB, error) {
	sqldb, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}
	sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.MaxLifetime)

	attempt := 0
	ping := func() error {
		attempt++
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := sqldb.PingContext(pingCtx); err != nil {
			log.Warn("DATABASE", fmt.Sprintf("PostgreSQL not ready (attempt %d): %v", attempt, err))
			return err
		}
		return nil
	}

	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(2*time.Second), uint64(cfg.ConnectRetry)),
		ctx,
	)
	if err := backoff.Retry(ping, b); err != nil {
		sqldb.Close()
		return nil, fmt.Errorf("failed to connect to postgres after %d attempts: %w", attempt, err)
	}

	log.Info("DATABASE", "Connected to PostgreSQL")
	return bun.NewDB(sqldb, pgdialect.New()), nil
}
