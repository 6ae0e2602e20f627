//go:build integration

package cache

import (
	"context"
	"fmt"
	"log"
	"os"
	"testing"
	"time"

	"github.com/feedbackflow/ai-analysis/internal/models"
	"github.com/google/uuid"
	"github.com/ory/dockertest/v3"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testRedis *redis.Client

func TestMain(m *testing.M) {
	pool, err := dockertest.NewPool("")
	if err != nil {
		log.Fatalf("Could not connect to docker: %s", err)
	}

	resource, err := pool.Run("redis", "7-alpine", nil)
	if err != nil {
		log.Fatalf("Could not start redis: %s", err)
	}

	url := fmt.Sprintf("redis://localhost:%s/0", resource.GetPort("6379/tcp"))
	err = pool.Retry(func() error {
		testRedis, err = NewRedisClient(context.Background(), url)
		return err
	})
	if err != nil {
		log.Fatalf("Could not connect to redis: %s", err)
	}

	code := m.Run()

	testRedis.Close()
	_ = pool.Purge(resource)
	os.Exit(code)
}

func TestStoreMirrorServesHits(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()
	businessID := uuid.New()
	backend := &fakeBackend{}
	store := NewStore(backend, testRedis, zap.NewNop())

	require.NoError(t, store.Insert(ctx, &models.AnalysisCacheEntry{
		BusinessID:   businessID,
		CommentsHash: "hash-1",
		Summary:      "mirrored",
		TopIssues:    []string{"noise"},
		CreatedAt:    now,
		ExpiresAt:    now.Add(time.Hour),
	}))

	ttl, err := testRedis.TTL(ctx, mirrorKey(businessID, "hash-1")).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, 59*time.Minute)

	backend.entries = nil
	hit, err := store.FindFresh(ctx, businessID, "hash-1", now)
	require.NoError(t, err)
	require.NotNil(t, hit)
	assert.Equal(t, "mirrored", hit.Summary)
	assert.Equal(t, []string{"noise"}, hit.TopIssues)
	assert.Zero(t, backend.lookups)
}

func TestStoreDoesNotMirrorChatMarkers(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()
	businessID := uuid.New()
	store := NewStore(&fakeBackend{}, testRedis, zap.NewNop())

	require.NoError(t, store.Insert(ctx, &models.AnalysisCacheEntry{
		BusinessID:   businessID,
		CommentsHash: models.ChatMarkerHash,
		CreatedAt:    now,
		ExpiresAt:    now.Add(time.Minute),
	}))

	exists, err := testRedis.Exists(ctx, mirrorKey(businessID, models.ChatMarkerHash)).Result()
	require.NoError(t, err)
	assert.Zero(t, exists)
}

func TestStoreBackfillsMirrorFromBackend(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()
	businessID := uuid.New()
	backend := &fakeBackend{entries: []*models.AnalysisCacheEntry{{
		BusinessID:   businessID,
		CommentsHash: "hash-2",
		Summary:      "from postgres",
		CreatedAt:    now,
		ExpiresAt:    now.Add(time.Hour),
	}}}
	store := NewStore(backend, testRedis, zap.NewNop())

	_, err := store.FindFresh(ctx, businessID, "hash-2", now)
	require.NoError(t, err)
	assert.Equal(t, 1, backend.lookups)

	_, err = store.FindFresh(ctx, businessID, "hash-2", now)
	require.NoError(t, err)
	assert.Equal(t, 1, backend.lookups)
}
