package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/feedbackflow/ai-analysis/internal/analysis"
	"github.com/feedbackflow/ai-analysis/internal/apperr"
	"github.com/feedbackflow/ai-analysis/internal/auth"
	"github.com/feedbackflow/ai-analysis/internal/metrics"
	"github.com/feedbackflow/ai-analysis/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	ActionSummary = "summary"
	ActionChat    = "chat"

	maxBodyBytes = 1 << 20
)

type Analyzer interface {
	Authorize(ctx context.Context, ownerID uuid.UUID) (*models.Business, error)
	Summary(ctx context.Context, business *models.Business) (*analysis.SummaryResult, error)
	Chat(ctx context.Context, business *models.Business, turns []analysis.ChatTurn) (*analysis.ChatResult, error)
}

type Request struct {
	Action   string              `json:"action"`
	Messages []analysis.ChatTurn `json:"messages,omitempty"`
}

// Handler serves the analysis endpoint. It expects the auth middleware to
// have stored the caller's principal in the request context.
type Handler struct {
	analyzer Analyzer
	logger   *zap.Logger
}

func NewHandler(analyzer Analyzer, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{analyzer: analyzer, logger: logger}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	principal, ok := auth.PrincipalFromContext(ctx)
	if !ok {
		h.fail(w, "unknown", apperr.Unauthenticated("Missing authorization header", nil))
		return
	}

	// Quota is checked before the body is read so both actions share it.
	business, err := h.analyzer.Authorize(ctx, principal.UserID)
	if err != nil {
		h.fail(w, "unknown", err)
		return
	}

	req, err := decodeRequest(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		h.fail(w, "unknown", err)
		return
	}

	log := h.logger.With(
		zap.String("business_id", business.ID.String()),
		zap.String("action", req.Action),
	)

	switch req.Action {
	case ActionSummary:
		result, err := h.analyzer.Summary(ctx, business)
		if err != nil {
			h.fail(w, req.Action, err)
			return
		}
		log.Info("summary served", zap.Bool("from_cache", result.FromCache))
		h.ok(w, req.Action, result)

	case ActionChat:
		result, err := h.analyzer.Chat(ctx, business, req.Messages)
		if err != nil {
			h.fail(w, req.Action, err)
			return
		}
		log.Info("chat answered", zap.Int("turns", len(req.Messages)))
		h.ok(w, req.Action, result)
	}
}

func decodeRequest(body io.Reader) (*Request, error) {
	var req Request
	dec := json.NewDecoder(body)
	if err := dec.Decode(&req); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, apperr.InvalidRequest("Request body is required")
		}
		return nil, apperr.Wrap(apperr.KindInvalidRequest, "Invalid JSON body", err)
	}
	// Only one JSON value is allowed.
	if err := dec.Decode(&json.RawMessage{}); !errors.Is(err, io.EOF) {
		if err == nil {
			err = errors.New("unexpected data after JSON body")
		}
		return nil, apperr.Wrap(apperr.KindInvalidRequest, "Invalid JSON body", err)
	}

	if req.Action != ActionSummary && req.Action != ActionChat {
		return nil, apperr.InvalidRequest("Invalid action. Use 'summary' or 'chat'")
	}

	return &req, nil
}

func (h *Handler) ok(w http.ResponseWriter, action string, v interface{}) {
	metrics.AnalysisRequests.WithLabelValues(action, "ok").Inc()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(v)
}

func (h *Handler) fail(w http.ResponseWriter, action string, err error) {
	e := apperr.As(err)
	metrics.AnalysisRequests.WithLabelValues(action, string(e.Kind)).Inc()

	if e.Status() >= http.StatusInternalServerError {
		h.logger.Error("analysis request failed", zap.String("action", action), zap.String("kind", string(e.Kind)), zap.Error(err))
	} else {
		h.logger.Info("analysis request rejected", zap.String("action", action), zap.String("kind", string(e.Kind)))
	}

	apperr.Write(w, e)
}
