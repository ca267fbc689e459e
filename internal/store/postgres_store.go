package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"storefront/pkg/logger"
)

// PostgresStore keeps every node as a row of kv_nodes with a JSONB value
type PostgresStore struct {
	db  *sql.DB
	log *logger.Logger
}

// NewPostgresStore wraps a migrated database
func NewPostgresStore(db *sql.DB, log *logger.Logger) *PostgresStore {
	return &PostgresStore{db: db, log: log.Named("store.postgres")}
}

func (s *PostgresStore) Read(ctx context.Context, path string) (json.RawMessage, error) {
	path, err := CleanPath(path)
	if err != nil {
		return nil, err
	}

	var value []byte
	err = s.db.QueryRowContext(ctx, `SELECT value FROM kv_nodes WHERE path = $1`, path).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return json.RawMessage(value), nil
}

func (s *PostgresStore) Write(ctx context.Context, path string, value interface{}) error {
	path, err := CleanPath(path)
	if err != nil {
		return err
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}

	parent, _ := split(path)
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO kv_nodes (path, parent, value, updated_at) VALUES ($1, $2, $3, now())
		ON CONFLICT (path) DO UPDATE SET value = EXCLUDED.value, updated_at = now()
	`, path, parent, string(data))
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, path string, fields map[string]interface{}) error {
	path, err := CleanPath(path)
	if err != nil {
		return err
	}

	data, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}

	parent, _ := split(path)
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO kv_nodes (path, parent, value, updated_at) VALUES ($1, $2, $3, now())
		ON CONFLICT (path) DO UPDATE SET value = kv_nodes.value || EXCLUDED.value, updated_at = now()
	`, path, parent, string(data))
	if err != nil {
		return fmt.Errorf("failed to update %s: %w", path, err)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, path string) error {
	path, err := CleanPath(path)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `DELETE FROM kv_nodes WHERE path = $1 OR path LIKE $2`,
		path, escapeLike(path)+"/%")
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", path, err)
	}
	return nil
}

func (s *PostgresStore) Exists(ctx context.Context, path string) (bool, error) {
	path, err := CleanPath(path)
	if err != nil {
		return false, err
	}

	var exists bool
	err = s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM kv_nodes WHERE path = $1)`, path).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check %s: %w", path, err)
	}
	return exists, nil
}

func (s *PostgresStore) Children(ctx context.Context, path string) (map[string]json.RawMessage, error) {
	path, err := CleanPath(path)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT path, value FROM kv_nodes WHERE parent = $1 ORDER BY path`, path)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", path, err)
	}
	defer rows.Close()

	children := make(map[string]json.RawMessage)
	for rows.Next() {
		var childPath string
		var value []byte
		if err := rows.Scan(&childPath, &value); err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", path, err)
		}
		_, name := split(childPath)
		children[name] = json.RawMessage(value)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate %s rows: %w", path, err)
	}
	return children, nil
}

func (s *PostgresStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
