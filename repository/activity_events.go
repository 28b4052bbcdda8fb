package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/goliatone/go-jackson"
	"github.com/goliatone/go-jackson/activitymap"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// ActivityEventModel is the Bun model for auth activity.
type ActivityEventModel struct {
	bun.BaseModel `bun:"table:auth_activity"`

	ID         uuid.UUID      `bun:"id,pk,type:uuid"`
	EventType  string         `bun:"event_type,notnull"`
	Status     string         `bun:"status,notnull"`
	Account    string         `bun:"account"`
	Message    string         `bun:"message"`
	ActorID    string         `bun:"actor_id"`
	Channel    string         `bun:"channel"`
	ObjectType string         `bun:"object_type"`
	Metadata   map[string]any `bun:"metadata,type:jsonb"`
	OccurredAt time.Time      `bun:"occurred_at,notnull"`
}

// ActivityRepository stores auth activity with Bun. It is both the sink
// handed to the auth controller and the reader behind the activity route.
type ActivityRepository struct {
	repository.Repository[*ActivityEventModel]
	db      *bun.DB
	options []activitymap.Option
}

var (
	_ jackson.ActivitySink   = (*ActivityRepository)(nil)
	_ jackson.ActivityReader = (*ActivityRepository)(nil)
)

// NewActivityRepository creates a repository; opts tune how events are
// normalized before they are stored.
func NewActivityRepository(db *bun.DB, opts ...activitymap.Option) *ActivityRepository {
	repo := repository.NewRepository[*ActivityEventModel](db, repository.ModelHandlers[*ActivityEventModel]{
		NewRecord: func() *ActivityEventModel { return &ActivityEventModel{} },
		GetID: func(m *ActivityEventModel) uuid.UUID {
			if m == nil {
				return uuid.Nil
			}
			return m.ID
		},
		SetID: func(m *ActivityEventModel, id uuid.UUID) {
			if m != nil {
				m.ID = id
			}
		},
	})

	return &ActivityRepository{
		Repository: repo,
		db:         db,
		options:    opts,
	}
}

// Migrate creates the activity table and its index when missing.
func (r *ActivityRepository) Migrate(ctx context.Context) error {
	if _, err := r.db.NewCreateTable().
		Model((*ActivityEventModel)(nil)).
		IfNotExists().
		Exec(ctx); err != nil {
		return err
	}

	_, err := r.db.NewCreateIndex().
		Model((*ActivityEventModel)(nil)).
		Index("idx_auth_activity_occurred_at").
		Column("occurred_at").
		IfNotExists().
		Exec(ctx)
	return err
}

// Record implements jackson.ActivitySink.
func (r *ActivityRepository) Record(ctx context.Context, event jackson.ActivityEvent) error {
	_, err := r.Create(ctx, r.fromEvent(event))
	return err
}

// Recent implements jackson.ActivityReader.
func (r *ActivityRepository) Recent(ctx context.Context, limit int) ([]jackson.ActivityEvent, error) {
	var models []ActivityEventModel
	q := r.db.NewSelect().
		Model(&models).
		Order("occurred_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	if err := q.Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return []jackson.ActivityEvent{}, nil
		}
		return nil, err
	}

	events := make([]jackson.ActivityEvent, len(models))
	for i := range models {
		events[i] = r.toEvent(&models[i])
	}
	return events, nil
}

func (r *ActivityRepository) fromEvent(event jackson.ActivityEvent) *ActivityEventModel {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	n := activitymap.Normalize(event, r.options...)

	return &ActivityEventModel{
		ID:         event.ID,
		EventType:  n.Verb,
		Status:     event.Status.String(),
		Account:    event.Account,
		Message:    event.Message,
		ActorID:    n.ActorID,
		Channel:    n.Channel,
		ObjectType: n.ObjectType,
		Metadata:   n.Metadata,
		OccurredAt: n.OccurredAt.UTC(),
	}
}

func (r *ActivityRepository) toEvent(m *ActivityEventModel) jackson.ActivityEvent {
	metadata := make(map[string]any, len(m.Metadata))
	for k, v := range m.Metadata {
		if k == activitymap.MetadataKeyStatus || k == activitymap.MetadataKeyMessage {
			continue
		}
		metadata[k] = v
	}

	return jackson.ActivityEvent{
		ID:         m.ID,
		EventType:  jackson.ActivityEventType(m.EventType),
		Status:     jackson.ParseAuthStatus(m.Status),
		Account:    m.Account,
		Message:    m.Message,
		Metadata:   metadata,
		OccurredAt: m.OccurredAt,
	}
}
