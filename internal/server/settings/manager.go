package settings

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/vttlabs/lorekeeper/internal/server/migrations"
)

// Manager owns a settings repository and its underlying connection.
type Manager interface {
	Settings() Repository
	Close() error
}

// NewManager picks a backend from the DSN: "memory", a postgres:// DSN, or
// anything else as a sqlite file path.
func NewManager(dsn string) (Manager, error) {
	switch {
	case dsn == "memory":
		return NewMemoryManager(), nil
	case strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://"):
		return NewPostgresManager(dsn)
	default:
		return NewSQLiteManager(dsn)
	}
}

type PostgresManager struct {
	db       *sql.DB
	settings Repository
}

func NewPostgresManager(dsn string) (*PostgresManager, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}

	m := &PostgresManager{db: db, settings: NewPostgresRepository(db)}
	if err := m.runMigrations(context.Background()); err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}
	return m, nil
}

func (m *PostgresManager) runMigrations(ctx context.Context) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	return goose.UpContext(ctx, m.db, ".")
}

func (m *PostgresManager) Settings() Repository { return m.settings }
func (m *PostgresManager) Close() error         { return m.db.Close() }

type SQLiteManager struct {
	db       *sql.DB
	settings Repository
}

func NewSQLiteManager(path string) (*SQLiteManager, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := EnsureSchema(context.Background(), db); err != nil {
		return nil, err
	}
	return &SQLiteManager{db: db, settings: NewSQLiteRepository(db)}, nil
}

func (m *SQLiteManager) Settings() Repository { return m.settings }
func (m *SQLiteManager) Close() error         { return m.db.Close() }

type MemoryManager struct {
	settings Repository
}

func NewMemoryManager() *MemoryManager {
	return &MemoryManager{settings: NewMemoryRepository()}
}

func (m *MemoryManager) Settings() Repository { return m.settings }
func (m *MemoryManager) Close() error         { return nil }
