package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/ptcgsim/battle-server-go/internal/session"
)

const createResultsTable = `
CREATE TABLE IF NOT EXISTS battle_results (
    battle_id   TEXT PRIMARY KEY,
    mode        TEXT NOT NULL,
    winner      INT,
    is_tie      BOOLEAN NOT NULL DEFAULT FALSE,
    turns       INT NOT NULL,
    duration_ms BIGINT NOT NULL,
    finished_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// ResultStore records finished battle results in Postgres. It
// implements session.ResultRecorder.
type ResultStore struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewResultStore connects to the database and ensures the results table
// exists.
func NewResultStore(ctx context.Context, url string, logger *zap.Logger) (*ResultStore, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := pool.Exec(ctx, createResultsTable); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create results table: %w", err)
	}

	stats := pool.Stat()
	logger.Info("result store initialized",
		zap.Int32("total_conns", stats.TotalConns()),
		zap.Int32("idle_conns", stats.IdleConns()),
	)
	return &ResultStore{pool: pool, logger: logger}, nil
}

// RecordResult inserts one finished battle. Duplicate battle IDs are
// ignored; results are written once per battle.
func (s *ResultStore) RecordResult(ctx context.Context, res session.Result) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO battle_results (battle_id, mode, winner, is_tie, turns, duration_ms)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (battle_id) DO NOTHING`,
		res.BattleID, string(res.Mode), res.Winner, res.IsTie, res.Turns, res.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("insert battle result: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (s *ResultStore) Close() {
	s.pool.Close()
}
