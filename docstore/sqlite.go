package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS documents (
	collection TEXT NOT NULL,
	id TEXT NOT NULL,
	data TEXT NOT NULL,
	updated_at INTEGER NOT NULL,
	PRIMARY KEY (collection, id)
);`

type sqliteBackend struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database file at path.
// ":memory:" gives a private in-memory database.
func OpenSQLite(path string) (Backend, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("docstore.OpenSQLite: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("docstore.OpenSQLite: %w", err)
	}
	// one writer; also keeps ":memory:" on a single connection
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		log.Warn("docstore [OpenSQLite] couldn't enable WAL mode", "err", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000;"); err != nil {
		log.Warn("docstore [OpenSQLite] couldn't set busy timeout", "err", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("docstore.OpenSQLite: migrate: %w", err)
	}

	return &sqliteBackend{db: db}, nil
}

func (s *sqliteBackend) Load(ctx context.Context, collection, id string) (Doc, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		"SELECT data FROM documents WHERE collection = ? AND id = ?",
		collection, id,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("docstore.Load: %w", err)
	}
	var d Doc
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		return nil, fmt.Errorf("docstore.Load: %w", err)
	}
	return d, nil
}

func (s *sqliteBackend) Save(ctx context.Context, collection, id string, doc Doc) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("docstore.Save: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO documents (collection, id, data, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (collection, id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		collection, id, string(raw), time.Now().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("docstore.Save: %w", err)
	}
	return nil
}

func (s *sqliteBackend) List(ctx context.Context, collection string) ([]Doc, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT data FROM documents WHERE collection = ? ORDER BY id",
		collection,
	)
	if err != nil {
		return nil, fmt.Errorf("docstore.List: %w", err)
	}
	defer rows.Close()

	var docs []Doc
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("docstore.List: %w", err)
		}
		var d Doc
		if err := json.Unmarshal([]byte(raw), &d); err != nil {
			return nil, fmt.Errorf("docstore.List: %w", err)
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

func (s *sqliteBackend) Purge(ctx context.Context, collection string, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM documents WHERE collection = ? AND updated_at < ?",
		collection, before.UnixNano(),
	)
	if err != nil {
		return 0, fmt.Errorf("docstore.Purge: %w", err)
	}
	return res.RowsAffected()
}

func (s *sqliteBackend) Close() error {
	return s.db.Close()
}
