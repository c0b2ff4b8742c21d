package platform

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go/pgxvec"
)

// NewPostgresPool creates a connection pool sized per poolSize (default 20
// per spec §5 when poolSize <= 0). Every connection registers the pgvector
// "vector" type so pkg/content and pkg/retrieval can scan embeddings
// directly into pgvector.Vector without manual encoding.
func NewPostgresPool(ctx context.Context, databaseURL string, poolSize int32) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing database URL: %w", err)
	}

	if poolSize > 0 {
		cfg.MaxConns = poolSize
	} else {
		cfg.MaxConns = 20
	}

	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return pool, nil
}
