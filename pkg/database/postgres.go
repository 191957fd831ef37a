package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// ApplicationName is reported to Postgres so survey sessions show up in pg_stat_activity.
const ApplicationName = "survey"

// NewPostgresPool opens the survey pool and pings it. maxConns <= 0 keeps the pgx default.
func NewPostgresPool(ctx context.Context, dsn string, maxConns int, logger *zap.Logger) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pgx config: %w", err)
	}
	if maxConns > 0 {
		config.MaxConns = int32(maxConns)
	}
	config.MaxConnIdleTime = 5 * time.Minute
	if _, ok := config.ConnConfig.RuntimeParams["application_name"]; !ok {
		config.ConnConfig.RuntimeParams["application_name"] = ApplicationName
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	logger.Info("postgres pool ready",
		zap.String("host", config.ConnConfig.Host),
		zap.String("database", config.ConnConfig.Database),
		zap.Int32("max_conns", config.MaxConns),
	)
	return pool, nil
}
