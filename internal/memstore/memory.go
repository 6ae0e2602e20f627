// Package memstore is an in-memory implementation of the storage the
// analysis service and admin API need. It backs the unit tests and local
// runs without Postgres.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/feedbackflow/ai-analysis/internal/models"
	"github.com/google/uuid"
)

type MemoryStorage struct {
	mu         sync.RWMutex
	businesses map[uuid.UUID]*models.Business
	comments   map[uuid.UUID][]models.Comment
	cache      []models.AnalysisCacheEntry

	// Injected failures, used to exercise degraded paths.
	TenantErr error
	CountErr  error
	InsertErr error
}

func New() *MemoryStorage {
	return &MemoryStorage{
		businesses: make(map[uuid.UUID]*models.Business),
		comments:   make(map[uuid.UUID][]models.Comment),
	}
}

// Business methods
func (s *MemoryStorage) AddBusiness(b models.Business) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	s.businesses[b.ID] = &b
}

func (s *MemoryStorage) FindBusinessesByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Business, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.TenantErr != nil {
		return nil, s.TenantErr
	}

	var found []models.Business
	for _, b := range s.businesses {
		if b.OwnerID == ownerID {
			found = append(found, *b)
		}
	}
	sort.Slice(found, func(i, j int) bool {
		return found[i].CreatedAt.Before(found[j].CreatedAt)
	})
	if len(found) > 2 {
		found = found[:2]
	}
	return found, nil
}

func (s *MemoryStorage) GetBusinessByID(ctx context.Context, id uuid.UUID) (*models.Business, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, exists := s.businesses[id]
	if !exists {
		return nil, nil
	}
	copied := *b
	return &copied, nil
}

// Comment methods
func (s *MemoryStorage) AddComment(c models.Comment) models.Comment {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	s.comments[c.BusinessID] = append(s.comments[c.BusinessID], c)
	return c
}

// UpdateCommentText edits a stored comment in place.
func (s *MemoryStorage) UpdateCommentText(businessID, commentID uuid.UUID, text string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.comments[businessID] {
		if s.comments[businessID][i].ID == commentID {
			s.comments[businessID][i].Text = text
			return true
		}
	}
	return false
}

func (s *MemoryStorage) ListComments(ctx context.Context, businessID uuid.UUID, since time.Time, limit int) ([]models.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var found []models.Comment
	for _, c := range s.comments[businessID] {
		if c.IsDeleted || c.CreatedAt.Before(since) {
			continue
		}
		found = append(found, c)
	}

	sort.SliceStable(found, func(i, j int) bool {
		return found[i].CreatedAt.After(found[j].CreatedAt)
	})
	if limit > 0 && len(found) > limit {
		found = found[:limit]
	}
	return found, nil
}

// Cache methods
func (s *MemoryStorage) FindFreshCacheEntry(ctx context.Context, businessID uuid.UUID, commentsHash string, now time.Time) (*models.AnalysisCacheEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var newest *models.AnalysisCacheEntry
	for i := range s.cache {
		e := &s.cache[i]
		if e.BusinessID != businessID || e.CommentsHash != commentsHash || !e.ExpiresAt.After(now) {
			continue
		}
		if newest == nil || e.CreatedAt.After(newest.CreatedAt) {
			newest = e
		}
	}
	if newest == nil {
		return nil, nil
	}

	copied := *newest
	return &copied, nil
}

func (s *MemoryStorage) InsertCacheEntry(ctx context.Context, e *models.AnalysisCacheEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.InsertErr != nil {
		return s.InsertErr
	}
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	s.cache = append(s.cache, *e)
	return nil
}

func (s *MemoryStorage) CountEntriesSince(ctx context.Context, businessID uuid.UUID, since time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.CountErr != nil {
		return 0, s.CountErr
	}

	count := 0
	for _, e := range s.cache {
		if e.BusinessID == businessID && !e.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

// CacheEntries returns a copy of every stored cache row.
func (s *MemoryStorage) CacheEntries() []models.AnalysisCacheEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]models.AnalysisCacheEntry(nil), s.cache...)
}

func (s *MemoryStorage) GetCacheStats(ctx context.Context, now time.Time) (*models.CacheStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &models.CacheStats{TotalEntries: len(s.cache)}
	for _, e := range s.cache {
		switch {
		case e.CommentsHash == models.ChatMarkerHash:
			stats.ChatMarkers++
		case e.ExpiresAt.After(now):
			stats.FreshEntries++
		}
	}
	return stats, nil
}

func (s *MemoryStorage) PurgeExpired(ctx context.Context, now, keepSince time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.cache[:0]
	var purged int64
	for _, e := range s.cache {
		if !e.ExpiresAt.After(now) && e.CreatedAt.Before(keepSince) {
			purged++
			continue
		}
		kept = append(kept, e)
	}
	s.cache = kept
	return purged, nil
}
