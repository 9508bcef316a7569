package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"quickbite/internal/config"
	"quickbite/internal/logger"
)

const (
	pingRetries = 5
	pingDelay   = 2 * time.Second
)

// Connect opens the postgres pool and verifies it before the server starts
// taking traffic. A cold database (compose startup order) gets a few retries.
func Connect(cfg config.DatabaseConfig, log *logger.Logger) (*bun.DB, error) {
	sqldb, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("opening postgres: %w", err)
	}

	sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.MaxLifetime)

	var pingErr error
	for attempt := 1; attempt <= pingRetries; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		pingErr = sqldb.PingContext(ctx)
		cancel()
		if pingErr == nil {
			break
		}
		log.Warn("DATABASE", fmt.Sprintf("Ping attempt %d/%d failed: %v", attempt, pingRetries, pingErr))
		time.Sleep(pingDelay)
	}
	if pingErr != nil {
		return nil, fmt.Errorf("postgres unreachable: %w", pingErr)
	}

	log.Info("DATABASE", "Connected to postgres")
	return bun.NewDB(sqldb, pgdialect.New()), nil
}
