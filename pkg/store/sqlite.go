package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"
)

// SQLiteStore persists records in a single SQLite database. All namespaces
// share one table; the (namespace, key) pair is the primary key so Set is an
// upsert.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) the database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open store database: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS records (
		namespace  TEXT NOT NULL,
		key        TEXT NOT NULL,
		value      TEXT NOT NULL,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (namespace, key)
	);
	CREATE INDEX IF NOT EXISTS idx_records_namespace ON records(namespace);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize store schema: %w", err)
	}

	log.Info().Str("path", path).Msg("Store database opened")

	return &SQLiteStore{db: db}, nil
}

// Namespace returns a Store view scoped to ns.
func (s *SQLiteStore) Namespace(ns string) Store {
	return &sqliteNamespace{db: s.db, ns: ns}
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type sqliteNamespace struct {
	db *sql.DB
	ns string
}

func (n *sqliteNamespace) Get(ctx context.Context, key string) (json.RawMessage, error) {
	var value string
	err := n.db.QueryRowContext(ctx,
		`SELECT value FROM records WHERE namespace = ? AND key = ?`, n.ns, key,
	).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s/%s: %w", n.ns, key, err)
	}
	return json.RawMessage(value), nil
}

func (n *sqliteNamespace) Set(ctx context.Context, key string, value json.RawMessage) error {
	_, err := n.db.ExecContext(ctx,
		`INSERT INTO records (namespace, key, value, updated_at)
		 VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(namespace, key) DO UPDATE SET
		   value = excluded.value,
		   updated_at = CURRENT_TIMESTAMP`,
		n.ns, key, string(value),
	)
	if err != nil {
		return fmt.Errorf("failed to write %s/%s: %w", n.ns, key, err)
	}
	return nil
}

func (n *sqliteNamespace) Delete(ctx context.Context, key string) error {
	_, err := n.db.ExecContext(ctx,
		`DELETE FROM records WHERE namespace = ? AND key = ?`, n.ns, key,
	)
	if err != nil {
		return fmt.Errorf("failed to delete %s/%s: %w", n.ns, key, err)
	}
	return nil
}

func (n *sqliteNamespace) List(ctx context.Context) ([]json.RawMessage, error) {
	rows, err := n.db.QueryContext(ctx,
		`SELECT value FROM records WHERE namespace = ? ORDER BY key`, n.ns,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list namespace %s: %w", n.ns, err)
	}
	defer rows.Close()

	var out []json.RawMessage
	for rows.Next() {
		var value string
		if err := rows.Scan(&value); err != nil {
			return nil, fmt.Errorf("failed to scan record in %s: %w", n.ns, err)
		}
		out = append(out, json.RawMessage(value))
	}
	return out, rows.Err()
}
