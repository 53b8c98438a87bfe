package repository

import (
	"context"
	"time"

	crowdfund "github.com/goliatone/go-crowdfund"
	"github.com/goliatone/go-crowdfund/activitymap"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

var _ crowdfund.ActivitySink = (*ActivityRepository)(nil)

// ActivityRecord is the Bun model of a session activity event.
type ActivityRecord struct {
	bun.BaseModel `bun:"table:session_activity"`

	ID         uuid.UUID      `bun:"id,pk,type:uuid"`
	EventType  string         `bun:"event_type,notnull"`
	Subject    string         `bun:"subject"`
	Role       string         `bun:"role"`
	Channel    string         `bun:"channel"`
	ObjectType string         `bun:"object_type"`
	ObjectID   string         `bun:"object_id"`
	Metadata   map[string]any `bun:"metadata,type:jsonb"`
	OccurredAt time.Time      `bun:"occurred_at,notnull"`
}

// ActivityRepository stores session events locally. It implements
// crowdfund.ActivitySink.
type ActivityRepository struct {
	db *bun.DB
}

// NewActivityRepository creates a new repository.
func NewActivityRepository(db *bun.DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

// Record implements crowdfund.ActivitySink.
func (r *ActivityRepository) Record(ctx context.Context, event crowdfund.ActivityEvent) error {
	n := activitymap.Normalize(event)
	meta := n.Metadata
	if meta == nil {
		meta = map[string]any{}
	}
	_, err := r.db.NewInsert().
		Model(&ActivityRecord{
			ID:         uuid.New(),
			EventType:  n.Verb,
			Subject:    n.ActorID,
			Role:       string(event.Role),
			Channel:    n.Channel,
			ObjectType: n.ObjectType,
			ObjectID:   n.ObjectID,
			Metadata:   meta,
			OccurredAt: n.OccurredAt,
		}).
		Exec(ctx)
	return err
}

// Recent returns the latest events, newest first.
func (r *ActivityRepository) Recent(ctx context.Context, limit int) ([]ActivityRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	var records []ActivityRecord
	err := r.db.NewSelect().
		Model(&records).
		Order("occurred_at DESC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return records, nil
}
