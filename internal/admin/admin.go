package admin

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/feedbackflow/ai-analysis/internal/apperr"
	"github.com/feedbackflow/ai-analysis/internal/models"
	"github.com/feedbackflow/ai-analysis/internal/ratelimit"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

type Store interface {
	GetBusinessByID(ctx context.Context, id uuid.UUID) (*models.Business, error)
	GetCacheStats(ctx context.Context, now time.Time) (*models.CacheStats, error)
	PurgeExpired(ctx context.Context, now, keepSince time.Time) (int64, error)
}

type Quota interface {
	Check(ctx context.Context, businessID uuid.UUID) ratelimit.Usage
}

type AdminHandler struct {
	store      Store
	quota      Quota
	serviceKey string
	logger     *zap.Logger
	now        func() time.Time
}

func NewAdminHandler(store Store, quota Quota, serviceKey string, logger *zap.Logger) *AdminHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdminHandler{store: store, quota: quota, serviceKey: serviceKey, logger: logger, now: time.Now}
}

// WithClock replaces the time source.
func (h *AdminHandler) WithClock(now func() time.Time) *AdminHandler {
	h.now = now
	return h
}

func (h *AdminHandler) RegisterRoutes(router *mux.Router) {
	sub := router.PathPrefix("/admin").Subrouter()
	sub.Use(h.requireServiceKey)

	// Usage
	sub.HandleFunc("/businesses/{id}/usage", h.GetUsage).Methods("GET")

	// Cache maintenance
	sub.HandleFunc("/cache/stats", h.GetCacheStats).Methods("GET")
	sub.HandleFunc("/cache/purge", h.PurgeCache).Methods("POST")
}

// requireServiceKey accepts the service-role key as a bearer token or in the
// apikey header. An unset key disables the admin API.
func (h *AdminHandler) requireServiceKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get("apikey")
		if bearer := r.Header.Get("Authorization"); bearer != "" {
			key = strings.TrimSpace(strings.TrimPrefix(bearer, "Bearer "))
		}

		if h.serviceKey == "" || subtle.ConstantTimeCompare([]byte(key), []byte(h.serviceKey)) != 1 {
			apperr.Write(w, apperr.Unauthenticated("Service role key required", nil))
			return
		}

		next.ServeHTTP(w, r)
	})
}

type usageResponse struct {
	BusinessID uuid.UUID   `json:"business_id"`
	Name       string      `json:"name"`
	Plan       models.Tier `json:"plan"`
	ratelimit.Usage
}

func (h *AdminHandler) GetUsage(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		apperr.Write(w, apperr.InvalidRequest("Invalid business ID"))
		return
	}

	business, err := h.store.GetBusinessByID(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to load business", zap.String("business_id", id.String()), zap.Error(err))
		apperr.Write(w, err)
		return
	}
	if business == nil {
		apperr.Write(w, apperr.New(apperr.KindTenantNotConfigured, "Business not found"))
		return
	}

	writeJSON(w, usageResponse{
		BusinessID: business.ID,
		Name:       business.Name,
		Plan:       business.Tier,
		Usage:      h.quota.Check(r.Context(), business.ID),
	})
}

func (h *AdminHandler) GetCacheStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.GetCacheStats(r.Context(), h.now().UTC())
	if err != nil {
		h.logger.Error("failed to get cache stats", zap.Error(err))
		apperr.Write(w, err)
		return
	}

	writeJSON(w, stats)
}

func (h *AdminHandler) PurgeCache(w http.ResponseWriter, r *http.Request) {
	purged, err := Purge(r.Context(), h.store, h.now())
	if err != nil {
		h.logger.Error("cache purge failed", zap.Error(err))
		apperr.Write(w, err)
		return
	}

	h.logger.Info("cache purged", zap.Int64("purged", purged))
	writeJSON(w, map[string]int64{"purged": purged})
}

// Purge deletes expired rows created before the current UTC day. Rows from
// today are kept because they still count toward the daily quota.
func Purge(ctx context.Context, store Store, now time.Time) (int64, error) {
	now = now.UTC()
	return store.PurgeExpired(ctx, now, ratelimit.StartOfDayUTC(now))
}

// RunPurgeLoop purges every interval until ctx is done.
func RunPurgeLoop(ctx context.Context, store Store, interval time.Duration, logger *zap.Logger) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			purged, err := Purge(ctx, store, time.Now())
			if err != nil {
				logger.Warn("scheduled cache purge failed", zap.Error(err))
				continue
			}
			if purged > 0 {
				logger.Info("scheduled cache purge", zap.Int64("purged", purged))
			}
		}
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
