package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	crowdfund "github.com/goliatone/go-crowdfund"
	"github.com/uptrace/bun"
)

var _ crowdfund.SessionPersistence = (*SessionRepository)(nil)

// CurrentSessionID is the key of the single persisted session row.
const CurrentSessionID = "current"

// StoredSession is the Bun model of the persisted credential.
type StoredSession struct {
	bun.BaseModel `bun:"table:client_sessions"`

	ID        string     `bun:"id,pk"`
	Token     string     `bun:"token,notnull"`
	Subject   string     `bun:"subject"`
	Role      string     `bun:"role"`
	ExpiresAt *time.Time `bun:"expires_at"`
	UpdatedAt time.Time  `bun:"updated_at,notnull"`
}

// SessionRepository implements crowdfund.SessionPersistence using Bun.
type SessionRepository struct {
	db  *bun.DB
	now crowdfund.Clock
}

// NewSessionRepository creates a new repository.
func NewSessionRepository(db *bun.DB) *SessionRepository {
	return &SessionRepository{db: db, now: time.Now}
}

// Save implements crowdfund.SessionPersistence.
func (r *SessionRepository) Save(ctx context.Context, token string) error {
	payload := crowdfund.Decode(token)
	model := &StoredSession{
		ID:        CurrentSessionID,
		Token:     token,
		Subject:   crowdfund.SubjectOf(payload),
		Role:      string(crowdfund.RoleOf(payload, true)),
		UpdatedAt: r.now(),
	}
	if exp, ok := crowdfund.ExpiresAt(payload); ok {
		model.ExpiresAt = &exp
	}

	_, err := r.db.NewInsert().
		Model(model).
		On("CONFLICT (id) DO UPDATE").
		Set("token = EXCLUDED.token").
		Set("subject = EXCLUDED.subject").
		Set("role = EXCLUDED.role").
		Set("expires_at = EXCLUDED.expires_at").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

// Load implements crowdfund.SessionPersistence. It returns an empty token
// when nothing is stored.
func (r *SessionRepository) Load(ctx context.Context) (string, error) {
	model, err := r.Get(ctx)
	if err != nil {
		return "", err
	}
	if model == nil {
		return "", nil
	}
	return model.Token, nil
}

// Get returns the stored row, nil when there is none.
func (r *SessionRepository) Get(ctx context.Context) (*StoredSession, error) {
	var model StoredSession
	err := r.db.NewSelect().
		Model(&model).
		Where("id = ?", CurrentSessionID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &model, nil
}

// Clear implements crowdfund.SessionPersistence.
func (r *SessionRepository) Clear(ctx context.Context) error {
	_, err := r.db.NewDelete().
		Model((*StoredSession)(nil)).
		Where("id = ?", CurrentSessionID).
		Exec(ctx)
	return err
}
