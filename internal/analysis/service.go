// Package analysis runs the AI feedback analysis for one business: tenant
// resolution, plan and quota checks, evidence loading, the cached summary
// and the grounded chat.
package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/feedbackflow/ai-analysis/internal/apperr"
	"github.com/feedbackflow/ai-analysis/internal/cache"
	"github.com/feedbackflow/ai-analysis/internal/llm"
	"github.com/feedbackflow/ai-analysis/internal/metrics"
	"github.com/feedbackflow/ai-analysis/internal/models"
	"github.com/feedbackflow/ai-analysis/internal/ratelimit"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	EvidenceWindow  = 30 * 24 * time.Hour
	MaxEvidenceRows = 500
	ChatMarkerTTL   = time.Minute

	summaryTemperature = 0.3
	summaryMaxTokens   = 1000
	chatTemperature    = 0.7
	chatMaxTokens      = 800
)

type TenantStore interface {
	FindBusinessesByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Business, error)
}

type CommentStore interface {
	ListComments(ctx context.Context, businessID uuid.UUID, since time.Time, limit int) ([]models.Comment, error)
}

type CacheStore interface {
	FindFresh(ctx context.Context, businessID uuid.UUID, commentsHash string, now time.Time) (*models.AnalysisCacheEntry, error)
	Insert(ctx context.Context, entry *models.AnalysisCacheEntry) error
}

type Quota interface {
	Check(ctx context.Context, businessID uuid.UUID) ratelimit.Usage
}

type Completer interface {
	Complete(ctx context.Context, req llm.Request) (string, error)
}

type ChatTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type SummaryResult struct {
	Summary      string    `json:"summary"`
	TopIssues    []string  `json:"topIssues"`
	TopStrengths []string  `json:"topStrengths"`
	GeneratedAt  time.Time `json:"generatedAt"`
	FromCache    bool      `json:"fromCache"`
}

type ChatResult struct {
	Reply string `json:"reply"`
}

type Options struct {
	Language string
	CacheTTL time.Duration
}

type Service struct {
	tenants  TenantStore
	comments CommentStore
	cache    CacheStore
	quota    Quota
	llm      Completer
	logger   *zap.Logger
	opts     Options
	now      func() time.Time
}

func NewService(tenants TenantStore, comments CommentStore, cache CacheStore, quota Quota, completer Completer, logger *zap.Logger, opts Options) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Language == "" {
		opts.Language = "English"
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 24 * time.Hour
	}

	return &Service{
		tenants:  tenants,
		comments: comments,
		cache:    cache,
		quota:    quota,
		llm:      completer,
		logger:   logger,
		opts:     opts,
		now:      time.Now,
	}
}

// WithClock replaces the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Authorize resolves the caller's business and checks plan and daily quota,
// in that order.
func (s *Service) Authorize(ctx context.Context, ownerID uuid.UUID) (*models.Business, error) {
	business, err := s.resolveTenant(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	if !business.HasAIAccess() {
		return nil, apperr.EntitlementRequired()
	}

	usage := s.quota.Check(ctx, business.ID)
	if usage.Exceeded() {
		metrics.QuotaRejections.Inc()
		s.logger.Info("daily AI quota reached",
			zap.String("business_id", business.ID.String()),
			zap.Int("calls_today", usage.CallsToday),
		)
		return nil, apperr.RateLimitExceeded(usage.Limit)
	}

	return business, nil
}

func (s *Service) resolveTenant(ctx context.Context, ownerID uuid.UUID) (*models.Business, error) {
	businesses, err := s.tenants.FindBusinessesByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("resolve business: %w", err)
	}

	switch len(businesses) {
	case 0:
		return nil, apperr.TenantNotConfigured()
	case 1:
		return &businesses[0], nil
	default:
		s.logger.Error("owner has more than one business", zap.String("owner_id", ownerID.String()))
		return nil, apperr.DataIntegrity("More than one business is linked to this account")
	}
}

// loadEvidence returns the business's non-deleted comments from the trailing
// window, newest first.
func (s *Service) loadEvidence(ctx context.Context, businessID uuid.UUID, now time.Time) ([]models.Comment, error) {
	comments, err := s.comments.ListComments(ctx, businessID, now.Add(-EvidenceWindow), MaxEvidenceRows)
	if err != nil {
		return nil, fmt.Errorf("load comments: %w", err)
	}
	if len(comments) == 0 {
		return nil, apperr.InsufficientData()
	}
	return comments, nil
}

// Summary returns the structured analysis of the evidence window, from cache
// when a fresh entry matches the window's fingerprint.
func (s *Service) Summary(ctx context.Context, business *models.Business) (*SummaryResult, error) {
	now := s.now().UTC()

	comments, err := s.loadEvidence(ctx, business.ID, now)
	if err != nil {
		return nil, err
	}

	hash := cache.Fingerprint(comments)

	cached, err := s.cache.FindFresh(ctx, business.ID, hash, now)
	if err != nil {
		s.logger.Warn("cache lookup failed", zap.String("business_id", business.ID.String()), zap.Error(err))
	}
	if cached != nil {
		metrics.CacheLookups.WithLabelValues("hit").Inc()
		return &SummaryResult{
			Summary:      cached.Summary,
			TopIssues:    nonNil(cached.TopIssues),
			TopStrengths: nonNil(cached.TopStrengths),
			GeneratedAt:  cached.CreatedAt,
			FromCache:    true,
		}, nil
	}
	metrics.CacheLookups.WithLabelValues("miss").Inc()

	content, err := s.complete(ctx, "summary", llm.Request{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: BuildSystemPrompt(business.Name, s.opts.Language, comments)},
			{Role: llm.RoleUser, Content: summaryInstruction},
		},
		Temperature: summaryTemperature,
		MaxTokens:   summaryMaxTokens,
		JSONMode:    true,
	})
	if err != nil {
		return nil, err
	}

	parsed, err := parseSummary(content)
	if err != nil {
		s.logger.Error("malformed summary from llm", zap.String("business_id", business.ID.String()), zap.Error(err))
		return nil, apperr.AIResponseMalformed(err)
	}

	entry := &models.AnalysisCacheEntry{
		BusinessID:   business.ID,
		CommentsHash: hash,
		Summary:      parsed.Summary,
		TopIssues:    nonNil(parsed.TopIssues),
		TopStrengths: nonNil(parsed.TopStrengths),
		CreatedAt:    now,
		ExpiresAt:    now.Add(s.opts.CacheTTL),
	}
	if err := s.cache.Insert(ctx, entry); err != nil {
		s.logger.Error("failed to cache summary", zap.String("business_id", business.ID.String()), zap.Error(err))
	}

	return &SummaryResult{
		Summary:      entry.Summary,
		TopIssues:    entry.TopIssues,
		TopStrengths: entry.TopStrengths,
		GeneratedAt:  now,
		FromCache:    false,
	}, nil
}

// Chat answers the conversation using the grounding prompt. Caller supplied
// system turns are dropped so the grounding prompt is the only system message.
func (s *Service) Chat(ctx context.Context, business *models.Business, turns []ChatTurn) (*ChatResult, error) {
	now := s.now().UTC()

	comments, err := s.loadEvidence(ctx, business.ID, now)
	if err != nil {
		return nil, err
	}

	if len(turns) == 0 {
		return nil, apperr.InvalidRequest("Messages are required for chat")
	}

	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: BuildSystemPrompt(business.Name, s.opts.Language, comments)},
	}
	for _, t := range turns {
		if t.Role != llm.RoleUser && t.Role != llm.RoleAssistant {
			continue
		}
		messages = append(messages, llm.Message{Role: t.Role, Content: t.Content})
	}
	if len(messages) == 1 {
		return nil, apperr.InvalidRequest("Messages must include at least one user or assistant turn")
	}

	reply, err := s.complete(ctx, "chat", llm.Request{
		Messages:    messages,
		Temperature: chatTemperature,
		MaxTokens:   chatMaxTokens,
	})
	if err != nil {
		return nil, err
	}

	marker := &models.AnalysisCacheEntry{
		BusinessID:   business.ID,
		CommentsHash: models.ChatMarkerHash,
		TopIssues:    []string{},
		TopStrengths: []string{},
		CreatedAt:    now,
		ExpiresAt:    now.Add(ChatMarkerTTL),
	}
	if err := s.cache.Insert(ctx, marker); err != nil {
		s.logger.Error("failed to record chat call", zap.String("business_id", business.ID.String()), zap.Error(err))
	}

	return &ChatResult{Reply: reply}, nil
}

func (s *Service) complete(ctx context.Context, action string, req llm.Request) (string, error) {
	start := time.Now()
	content, err := s.llm.Complete(ctx, req)
	metrics.LLMDuration.WithLabelValues(action).Observe(time.Since(start).Seconds())

	if err != nil {
		var perr *llm.ProviderError
		if errors.As(err, &perr) {
			return "", apperr.AIProviderUnavailable(perr.QuotaExhausted, err)
		}
		if errors.Is(err, llm.ErrEmptyResponse) {
			return "", apperr.AIResponseMalformed(err)
		}
		return "", apperr.AIProviderUnavailable(false, err)
	}

	return content, nil
}

var errEmptySummary = errors.New("summary is missing or empty")

type summaryReply struct {
	Summary      string   `json:"summary"`
	TopIssues    []string `json:"topIssues"`
	TopStrengths []string `json:"topStrengths"`
}

// parseSummary decodes the model's JSON reply. A reply that is not an object
// or carries no summary text is rejected.
func parseSummary(content string) (*summaryReply, error) {
	var parsed *summaryReply
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return nil, err
	}
	if parsed == nil || strings.TrimSpace(parsed.Summary) == "" {
		return nil, errEmptySummary
	}
	return parsed, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
