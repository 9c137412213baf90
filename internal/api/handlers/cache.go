package handlers

import (
	"encoding/json"
	"net/http"

	"macropulse/internal/indicator"
	"macropulse/pkg/logger"
)

// CacheHandler handles cache management endpoints.
type CacheHandler struct {
	service *indicator.Service
	logger  *logger.Logger
}

// NewCacheHandler creates a cache handler.
func NewCacheHandler(service *indicator.Service, log *logger.Logger) *CacheHandler {
	return &CacheHandler{service: service, logger: log}
}

// Stats returns cache performance counters.
// GET /api/cache/stats
func (h *CacheHandler) Stats(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.service.CacheStats())
}

// Cleanup sweeps expired disk entries.
// POST /api/cache/cleanup
func (h *CacheHandler) Cleanup(w http.ResponseWriter, r *http.Request) {
	result := h.service.CleanupCache()
	h.logger.WithField("removed", result.ExpiredDiskEntriesRemoved).Info("Cache cleanup requested")
	respondJSON(w, http.StatusOK, result)
}

// InvalidateRequest selects which cache entries to drop.
type InvalidateRequest struct {
	Indicator string `json:"indicator"` // empty clears everything
}

// Invalidate drops cached entries for one indicator, or all of them.
// POST /api/cache/invalidate
func (h *CacheHandler) Invalidate(w http.ResponseWriter, r *http.Request) {
	var req InvalidateRequest
	if r.Body != nil {
		// An empty body means "clear everything".
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	count := h.service.Invalidate(req.Indicator)
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"indicator":   req.Indicator,
		"invalidated": count,
	})
}
