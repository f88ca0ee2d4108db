package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS documents (
	collection TEXT NOT NULL,
	id TEXT NOT NULL,
	data JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (collection, id)
);
CREATE INDEX IF NOT EXISTS idx_documents_updated ON documents (collection, updated_at);
`

type postgresBackend struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects to dsn and makes sure the documents table exists.
func OpenPostgres(ctx context.Context, dsn string) (Backend, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("docstore.OpenPostgres: %w", err)
	}
	cpus := int32(runtime.NumCPU())
	cfg.MaxConns = cpus * 2
	cfg.MinConns = 1

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("docstore.OpenPostgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("docstore.OpenPostgres: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("docstore.OpenPostgres: migrate: %w", err)
	}

	log.Info("docstore [OpenPostgres]", "maxConns", cfg.MaxConns)
	return &postgresBackend{pool: pool}, nil
}

func (p *postgresBackend) Load(ctx context.Context, collection, id string) (Doc, error) {
	var raw []byte
	err := p.pool.QueryRow(ctx,
		"SELECT data FROM documents WHERE collection = $1 AND id = $2",
		collection, id,
	).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("docstore.Load: %w", err)
	}
	var d Doc
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("docstore.Load: %w", err)
	}
	return d, nil
}

func (p *postgresBackend) Save(ctx context.Context, collection, id string, doc Doc) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("docstore.Save: %w", err)
	}
	_, err = p.pool.Exec(ctx, `
		INSERT INTO documents (collection, id, data, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (collection, id) DO UPDATE SET data = EXCLUDED.data, updated_at = NOW()`,
		collection, id, raw,
	)
	if err != nil {
		return fmt.Errorf("docstore.Save: %w", err)
	}
	return nil
}

func (p *postgresBackend) List(ctx context.Context, collection string) ([]Doc, error) {
	rows, err := p.pool.Query(ctx,
		"SELECT data FROM documents WHERE collection = $1 ORDER BY id",
		collection,
	)
	if err != nil {
		return nil, fmt.Errorf("docstore.List: %w", err)
	}
	defer rows.Close()

	var docs []Doc
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("docstore.List: %w", err)
		}
		var d Doc
		if err := json.Unmarshal(raw, &d); err != nil {
			return nil, fmt.Errorf("docstore.List: %w", err)
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

func (p *postgresBackend) Purge(ctx context.Context, collection string, before time.Time) (int64, error) {
	tag, err := p.pool.Exec(ctx,
		"DELETE FROM documents WHERE collection = $1 AND updated_at < $2",
		collection, before,
	)
	if err != nil {
		return 0, fmt.Errorf("docstore.Purge: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (p *postgresBackend) Close() error {
	p.pool.Close()
	return nil
}
