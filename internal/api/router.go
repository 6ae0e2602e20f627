// Package api wires the public HTTP surface of the service.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/feedbackflow/ai-analysis/internal/admin"
	"github.com/feedbackflow/ai-analysis/internal/auth"
	"github.com/feedbackflow/ai-analysis/internal/metrics"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

const AnalysisPath = "/functions/v1/ai-analysis"

type Routes struct {
	Analysis *Handler
	Auth     *auth.Middleware
	Admin    *admin.AdminHandler

	// ConfigErr, when set, makes the analysis endpoint fail closed.
	ConfigErr error
}

func NewRouter(routes Routes, logger *zap.Logger) *mux.Router {
	if logger == nil {
		logger = zap.NewNop()
	}

	router := mux.NewRouter()
	router.Use(AccessLog(logger))

	// Public routes
	router.HandleFunc("/health", healthHandler).Methods("GET")
	router.Handle("/metrics", metrics.Handler()).Methods("GET")

	var analysis http.Handler
	if routes.ConfigErr != nil {
		analysis = misconfigured(routes.ConfigErr, logger)
	} else {
		analysis = routes.Auth.Authenticate(routes.Analysis)
	}
	router.Handle(AnalysisPath, CORS(analysis)).Methods("POST", "OPTIONS")

	// Admin routes
	if routes.Admin != nil {
		routes.Admin.RegisterRoutes(router)
	}

	return router
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"status": "healthy",
	})
}
