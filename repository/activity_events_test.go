package repository

import (
	"context"
	"testing"
	"time"

	"github.com/goliatone/go-jackson"
	"github.com/goliatone/go-jackson/activitymap"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupActivityRepo(t *testing.T, opts ...activitymap.Option) (*ActivityRepository, func()) {
	db, err := OpenSQLite("file:"+uuid.NewString()+"?mode=memory&cache=shared", false)
	require.NoError(t, err)

	repo := NewActivityRepository(db, opts...)
	require.NoError(t, repo.Migrate(context.Background()))

	cleanup := func() {
		_ = db.Close()
	}
	return repo, cleanup
}

func TestActivityRepositoryRecordAndRecent(t *testing.T) {
	repo, cleanup := setupActivityRepo(t)
	defer cleanup()

	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	events := []jackson.ActivityEvent{
		{
			EventType:  jackson.ActivityEventToggleEnabled,
			Status:     jackson.StatusDisabled,
			Message:    "AAD Client ID has not been configured",
			OccurredAt: base,
		},
		{
			EventType:  jackson.ActivityEventLoginFailure,
			Status:     jackson.StatusLoggedOut,
			Message:    "network error",
			Metadata:   map[string]any{"operation": "login"},
			OccurredAt: base.Add(time.Minute),
		},
		{
			ID:         uuid.New(),
			EventType:  jackson.ActivityEventLoginSuccess,
			Status:     jackson.StatusLoggedIn,
			Account:    "Ada Lovelace",
			OccurredAt: base.Add(2 * time.Minute),
		},
	}
	for _, e := range events {
		require.NoError(t, repo.Record(ctx, e))
	}

	recent, err := repo.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)

	assert.Equal(t, jackson.ActivityEventLoginSuccess, recent[0].EventType)
	assert.Equal(t, jackson.StatusLoggedIn, recent[0].Status)
	assert.Equal(t, "Ada Lovelace", recent[0].Account)
	assert.Equal(t, events[2].ID, recent[0].ID)

	assert.Equal(t, jackson.ActivityEventLoginFailure, recent[1].EventType)
	assert.Equal(t, "network error", recent[1].Message)
	assert.Equal(t, "login", recent[1].Metadata["operation"])
	assert.NotContains(t, recent[1].Metadata, activitymap.MetadataKeyStatus)
	assert.NotEqual(t, uuid.Nil, recent[1].ID)

	all, err := repo.Recent(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestActivityRepositoryStoresNormalizedColumns(t *testing.T) {
	repo, cleanup := setupActivityRepo(t, activitymap.WithDefaultChannel("shell"))
	defer cleanup()

	ctx := context.Background()
	require.NoError(t, repo.Record(ctx, jackson.ActivityEvent{
		EventType:  jackson.ActivityEventBusy,
		Status:     jackson.StatusLoggedOut,
		OccurredAt: time.Now(),
	}))

	var row ActivityEventModel
	require.NoError(t, repo.db.NewSelect().Model(&row).Limit(1).Scan(ctx))

	assert.Equal(t, "anonymous", row.ActorID)
	assert.Equal(t, "shell", row.Channel)
	assert.Equal(t, "session", row.ObjectType)
	assert.Equal(t, "logged_out", row.Status)
	assert.Equal(t, "logged_out", row.Metadata[activitymap.MetadataKeyStatus])
}

func TestActivityRepositoryEmpty(t *testing.T) {
	repo, cleanup := setupActivityRepo(t)
	defer cleanup()

	recent, err := repo.Recent(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, recent)
}
