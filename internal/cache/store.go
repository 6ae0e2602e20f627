package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/feedbackflow/ai-analysis/internal/models"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Backend is the durable cache table. Its rows double as the quota ledger.
type Backend interface {
	FindFreshCacheEntry(ctx context.Context, businessID uuid.UUID, commentsHash string, now time.Time) (*models.AnalysisCacheEntry, error)
	InsertCacheEntry(ctx context.Context, entry *models.AnalysisCacheEntry) error
}

// Store reads through an optional Redis mirror in front of the cache table.
type Store struct {
	backend Backend
	redis   *redis.Client
	logger  *zap.Logger
}

func NewStore(backend Backend, redisClient *redis.Client, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{backend: backend, redis: redisClient, logger: logger}
}

// NewRedisClient connects to redisURL. An empty URL disables the mirror.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	if redisURL == "" {
		return nil, nil
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return client, nil
}

func mirrorKey(businessID uuid.UUID, commentsHash string) string {
	return fmt.Sprintf("analysis:business:%s:%s", businessID, commentsHash)
}

// FindFresh returns the newest entry for (business, fingerprint) whose
// expiry is after now, or nil on a miss.
func (s *Store) FindFresh(ctx context.Context, businessID uuid.UUID, commentsHash string, now time.Time) (*models.AnalysisCacheEntry, error) {
	if entry := s.getMirror(ctx, businessID, commentsHash, now); entry != nil {
		return entry, nil
	}

	entry, err := s.backend.FindFreshCacheEntry(ctx, businessID, commentsHash, now)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, nil
	}

	s.setMirror(ctx, entry, now)
	return entry, nil
}

// Insert persists entry. Mirror failures are logged, never returned.
func (s *Store) Insert(ctx context.Context, entry *models.AnalysisCacheEntry) error {
	if err := s.backend.InsertCacheEntry(ctx, entry); err != nil {
		return err
	}

	if !entry.IsMarker() {
		s.setMirror(ctx, entry, entry.CreatedAt)
	}
	return nil
}

func (s *Store) getMirror(ctx context.Context, businessID uuid.UUID, commentsHash string, now time.Time) *models.AnalysisCacheEntry {
	if s.redis == nil {
		return nil
	}

	raw, err := s.redis.Get(ctx, mirrorKey(businessID, commentsHash)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.Warn("redis cache read failed", zap.String("business_id", businessID.String()), zap.Error(err))
		}
		return nil
	}

	var entry models.AnalysisCacheEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		s.logger.Warn("corrupt redis cache entry", zap.String("business_id", businessID.String()), zap.Error(err))
		return nil
	}
	if !entry.ExpiresAt.After(now) {
		return nil
	}

	return &entry
}

func (s *Store) setMirror(ctx context.Context, entry *models.AnalysisCacheEntry, now time.Time) {
	if s.redis == nil {
		return
	}

	ttl := entry.ExpiresAt.Sub(now)
	if ttl <= 0 {
		return
	}

	payload, err := json.Marshal(entry)
	if err != nil {
		return
	}

	key := mirrorKey(entry.BusinessID, entry.CommentsHash)
	if err := s.redis.Set(ctx, key, payload, ttl).Err(); err != nil {
		s.logger.Warn("redis cache write failed", zap.String("business_id", entry.BusinessID.String()), zap.Error(err))
	}
}
