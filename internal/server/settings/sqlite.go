package settings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vttlabs/lorekeeper/internal/common"
	"github.com/vttlabs/lorekeeper/internal/dbx"
)

// SQLiteRepository implements Repository for single-file deployments.
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// EnsureSchema creates the settings table when it does not exist yet.
func EnsureSchema(ctx context.Context, db dbx.DBTX) error {
	query := `
CREATE TABLE IF NOT EXISTS world_settings (
  world TEXT NOT NULL,
  key TEXT NOT NULL,
  value BLOB NOT NULL,
  updated_at INTEGER NOT NULL DEFAULT 0,
  PRIMARY KEY (world, key)
);`
	if _, err := db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Get(ctx context.Context, world, key string) ([]byte, error) {
	query := `SELECT value FROM world_settings WHERE world=? AND key=?`

	var value []byte
	err := r.db.QueryRowContext(ctx, query, world, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return value, nil
}

func (r *SQLiteRepository) Set(ctx context.Context, world, key string, value []byte) error {
	query := `
		INSERT INTO world_settings (world, key, value, updated_at)
		VALUES (?, ?, ?, unixepoch())
		ON CONFLICT(world, key)
		DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at;
	`
	err := dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		_, err := tx.ExecContext(ctx, query, world, key, value)
		return err
	})
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
