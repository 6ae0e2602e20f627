package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/feedbackflow/ai-analysis/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// FindBusinessesByOwner returns at most two rows so callers can detect an
// owner with more than one business.
func (db *DB) FindBusinessesByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Business, error) {
	query := `
        SELECT id, name, plan, user_id, created_at
        FROM businesses
        WHERE user_id = $1
        ORDER BY created_at
        LIMIT 2
    `

	rows, err := db.Pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("query businesses: %w", err)
	}
	defer rows.Close()

	var businesses []models.Business
	for rows.Next() {
		var b models.Business
		if err := rows.Scan(&b.ID, &b.Name, &b.Tier, &b.OwnerID, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan business: %w", err)
		}
		businesses = append(businesses, b)
	}

	return businesses, rows.Err()
}

func (db *DB) GetBusinessByID(ctx context.Context, id uuid.UUID) (*models.Business, error) {
	query := `
        SELECT id, name, plan, user_id, created_at
        FROM businesses
        WHERE id = $1
    `

	var b models.Business
	err := db.Pool.QueryRow(ctx, query, id).Scan(&b.ID, &b.Name, &b.Tier, &b.OwnerID, &b.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query business: %w", err)
	}

	return &b, nil
}

// ListComments returns non-deleted comments created at or after since,
// newest first.
func (db *DB) ListComments(ctx context.Context, businessID uuid.UUID, since time.Time, limit int) ([]models.Comment, error) {
	query := `
        SELECT id, business_id, text, satisfaction, is_deleted, created_at
        FROM comments
        WHERE business_id = $1 AND is_deleted = FALSE AND created_at >= $2
        ORDER BY created_at DESC
        LIMIT $3
    `

	rows, err := db.Pool.Query(ctx, query, businessID, since, limit)
	if err != nil {
		return nil, fmt.Errorf("query comments: %w", err)
	}
	defer rows.Close()

	var comments []models.Comment
	for rows.Next() {
		var c models.Comment
		if err := rows.Scan(&c.ID, &c.BusinessID, &c.Text, &c.Satisfaction, &c.IsDeleted, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		comments = append(comments, c)
	}

	return comments, rows.Err()
}

// FindFreshCacheEntry returns the newest entry for the fingerprint that has
// not expired at now, or nil.
func (db *DB) FindFreshCacheEntry(ctx context.Context, businessID uuid.UUID, commentsHash string, now time.Time) (*models.AnalysisCacheEntry, error) {
	query := `
        SELECT id, business_id, comments_hash, summary, top_issues, top_strengths, created_at, expires_at
        FROM ai_analysis_cache
        WHERE business_id = $1 AND comments_hash = $2 AND expires_at > $3
        ORDER BY created_at DESC
        LIMIT 1
    `

	var e models.AnalysisCacheEntry
	err := db.Pool.QueryRow(ctx, query, businessID, commentsHash, now).Scan(
		&e.ID,
		&e.BusinessID,
		&e.CommentsHash,
		&e.Summary,
		&e.TopIssues,
		&e.TopStrengths,
		&e.CreatedAt,
		&e.ExpiresAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query cache entry: %w", err)
	}

	return &e, nil
}

func (db *DB) InsertCacheEntry(ctx context.Context, e *models.AnalysisCacheEntry) error {
	query := `
        INSERT INTO ai_analysis_cache (id, business_id, comments_hash, summary, top_issues, top_strengths, created_at, expires_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
    `

	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.TopIssues == nil {
		e.TopIssues = []string{}
	}
	if e.TopStrengths == nil {
		e.TopStrengths = []string{}
	}

	_, err := db.Pool.Exec(ctx, query,
		e.ID,
		e.BusinessID,
		e.CommentsHash,
		e.Summary,
		e.TopIssues,
		e.TopStrengths,
		e.CreatedAt,
		e.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("insert cache entry: %w", err)
	}

	return nil
}

// CountEntriesSince counts every cache row of the business, markers included,
// created at or after since.
func (db *DB) CountEntriesSince(ctx context.Context, businessID uuid.UUID, since time.Time) (int, error) {
	query := `
        SELECT COUNT(*)
        FROM ai_analysis_cache
        WHERE business_id = $1 AND created_at >= $2
    `

	var count int
	if err := db.Pool.QueryRow(ctx, query, businessID, since).Scan(&count); err != nil {
		return 0, fmt.Errorf("count cache entries: %w", err)
	}

	return count, nil
}

func (db *DB) GetCacheStats(ctx context.Context, now time.Time) (*models.CacheStats, error) {
	query := `
        SELECT
            COUNT(*),
            COUNT(*) FILTER (WHERE comments_hash = $1),
            COUNT(*) FILTER (WHERE comments_hash <> $1 AND expires_at > $2)
        FROM ai_analysis_cache
    `

	var stats models.CacheStats
	err := db.Pool.QueryRow(ctx, query, models.ChatMarkerHash, now).Scan(
		&stats.TotalEntries,
		&stats.ChatMarkers,
		&stats.FreshEntries,
	)
	if err != nil {
		return nil, fmt.Errorf("query cache stats: %w", err)
	}

	return &stats, nil
}

// PurgeExpired deletes expired rows created before keepSince. Rows created
// after keepSince still count toward the daily quota and are kept.
func (db *DB) PurgeExpired(ctx context.Context, now, keepSince time.Time) (int64, error) {
	query := `
        DELETE FROM ai_analysis_cache
        WHERE expires_at <= $1 AND created_at < $2
    `

	tag, err := db.Pool.Exec(ctx, query, now, keepSince)
	if err != nil {
		return 0, fmt.Errorf("purge cache entries: %w", err)
	}

	return tag.RowsAffected(), nil
}
