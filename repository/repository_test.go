package repository

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	crowdfund "github.com/goliatone/go-crowdfund"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupManager(t *testing.T) *Manager {
	t.Helper()
	m, err := Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	m.MustValidate()
	return m
}

func token(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)
	return s
}

func TestSessionRepository_SaveLoadClear(t *testing.T) {
	ctx := context.Background()
	repo := setupManager(t).Sessions()

	loaded, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, loaded)

	exp := time.Now().Add(time.Hour).Unix()
	first := token(t, jwt.MapClaims{
		"sub":          "user-1",
		"exp":          exp,
		"realm_access": map[string]any{"roles": []string{"BUSINESS"}},
	})
	require.NoError(t, repo.Save(ctx, first))

	row, err := repo.Get(ctx)
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, "user-1", row.Subject)
	assert.Equal(t, "business", row.Role)
	require.NotNil(t, row.ExpiresAt)
	assert.Equal(t, exp, row.ExpiresAt.Unix())

	second := token(t, jwt.MapClaims{"sub": "user-2"})
	require.NoError(t, repo.Save(ctx, second))

	loaded, err = repo.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, second, loaded)

	require.NoError(t, repo.Clear(ctx))
	require.NoError(t, repo.Clear(ctx))

	loaded, err = repo.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, loaded)
}

func TestSessionRepository_RestoresSessionStore(t *testing.T) {
	ctx := context.Background()
	repo := setupManager(t).Sessions()

	tok := token(t, jwt.MapClaims{"sub": "user-1", "exp": time.Now().Add(time.Hour).Unix()})
	require.NoError(t, repo.Save(ctx, tok))

	store := crowdfund.NewSessionStore(nil, crowdfund.WithSessionPersistence(repo))
	require.NoError(t, store.Restore(ctx))
	assert.True(t, store.IsAuthenticated())
	assert.Equal(t, tok, store.Token())

	require.NoError(t, store.Logout(ctx))
	loaded, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, loaded)
}

func TestActivityRepository_RecordAndRecent(t *testing.T) {
	ctx := context.Background()
	repo := setupManager(t).Activity()

	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Record(ctx, crowdfund.ActivityEvent{
		EventType:  crowdfund.ActivityEventLoginSuccess,
		Subject:    "user-1",
		Role:       crowdfund.RoleInvestor,
		OccurredAt: base,
	}))
	require.NoError(t, repo.Record(ctx, crowdfund.ActivityEvent{
		EventType:  crowdfund.ActivityEventAccessDenied,
		Subject:    "user-1",
		Role:       crowdfund.RoleInvestor,
		Metadata:   map[string]any{"path": "/admin/dashboard"},
		OccurredAt: base.Add(time.Minute),
	}))

	records, err := repo.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, string(crowdfund.ActivityEventAccessDenied), records[0].EventType)
	assert.Equal(t, "/admin/dashboard", records[0].Metadata["path"])
	assert.Equal(t, "/admin/dashboard", records[0].ObjectID)
	assert.Equal(t, "web", records[0].Channel)
	assert.Equal(t, "investor", records[0].Metadata["role"])
	assert.Equal(t, string(crowdfund.ActivityEventLoginSuccess), records[1].EventType)
}
