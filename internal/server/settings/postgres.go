package settings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vttlabs/lorekeeper/internal/common"
	"github.com/vttlabs/lorekeeper/internal/dbx"
)

type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Get(ctx context.Context, world, key string) ([]byte, error) {
	query := `SELECT value FROM world_settings WHERE world=$1 AND key=$2`

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

func (r *PostgresRepository) Set(ctx context.Context, world, key string, value []byte) error {
	query := `
		INSERT INTO world_settings (world, key, value, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (world, key)
		DO UPDATE SET value = EXCLUDED.value, updated_at = now();
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
