package repository

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Config struct {
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// Open creates a pgx pool for the purchase-order store.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*pgxpool.Pool, error) {
	logger.Info("connecting to database")
	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		logger.Error("failed to parse database config", "error", err)
		return nil, err
	}

	pc.MaxConns = cfg.MaxConns
	pc.MinConns = cfg.MinConns
	pc.MaxConnLifetime = cfg.MaxConnLifetime
	pc.MaxConnIdleTime = cfg.MaxConnIdleTime
	pc.ConnConfig.RuntimeParams["application_name"] = "po-tracker"
	if cfg.StatementTimeout > 0 {
		pc.ConnConfig.RuntimeParams["statement_timeout"] = cfg.StatementTimeout.String()
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()
	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		return nil, err
	}

	logger.Info("successfully connected to database")
	return pool, nil
}

const ordersDDL = `
CREATE TABLE IF NOT EXISTS purchase_orders (
	id          uuid PRIMARY KEY,
	po_number   text NOT NULL UNIQUE,
	status      text NOT NULL,
	order_date  timestamptz,
	buyer       jsonb NOT NULL DEFAULT '{}'::jsonb,
	delivery    jsonb NOT NULL DEFAULT '{}'::jsonb,
	items       jsonb NOT NULL DEFAULT '[]'::jsonb,
	weights     jsonb NOT NULL DEFAULT '{}'::jsonb,
	total       double precision NOT NULL DEFAULT 0,
	revision    integer NOT NULL DEFAULT 1,
	notes       text NOT NULL DEFAULT '',
	history     jsonb NOT NULL DEFAULT '[]'::jsonb,
	created_at  timestamptz NOT NULL DEFAULT now(),
	updated_at  timestamptz NOT NULL DEFAULT now()
)`

// EnsureSchema creates the purchase-order table when absent.
func EnsureSchema(ctx context.Context, pool Pool) error {
	_, err := pool.Exec(ctx, ordersDDL)
	return err
}
