package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// Manager groups the client side repositories over one database.
type Manager struct {
	db       *bun.DB
	sessions *SessionRepository
	activity *ActivityRepository
}

// Open opens the sqlite database at dsn and creates the tables.
func Open(ctx context.Context, dsn string) (*Manager, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, fmt.Errorf("repository: open %q: %w", dsn, err)
	}
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	m := NewManager(db)
	if err := m.CreateTables(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return m, nil
}

// NewManager wraps an existing database.
func NewManager(db *bun.DB) *Manager {
	return &Manager{
		db:       db,
		sessions: NewSessionRepository(db),
		activity: NewActivityRepository(db),
	}
}

// CreateTables creates missing tables.
func (m *Manager) CreateTables(ctx context.Context) error {
	models := []any{
		(*StoredSession)(nil),
		(*ActivityRecord)(nil),
	}
	return m.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		for _, model := range models {
			if _, err := tx.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
				return fmt.Errorf("repository: create table: %w", err)
			}
		}
		return nil
	})
}

func (m *Manager) Validate() error {
	if m.sessions == nil {
		return errors.New("repository sessions should be initialized")
	}

	if m.activity == nil {
		return errors.New("repository activity should be initialized")
	}

	return nil
}

func (m *Manager) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

func (m *Manager) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return m.db.RunInTx(ctx, opts, f)
	}
}

func (m *Manager) Sessions() *SessionRepository {
	return m.sessions
}

func (m *Manager) Activity() *ActivityRepository {
	return m.activity
}

// Close releases the database.
func (m *Manager) Close() error {
	return m.db.Close()
}
