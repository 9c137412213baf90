package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"macropulse/internal/external/fred"
	"macropulse/internal/indicator"
	"macropulse/internal/snapshot"
	"macropulse/pkg/logger"
)

// Broadcaster pushes refreshed indicator payloads to connected dashboards.
type Broadcaster interface {
	Broadcast(v interface{})
}

// IndicatorHandler handles indicator API endpoints.
type IndicatorHandler struct {
	service   *indicator.Service
	snapshots *snapshot.Repository // nil when the database is disabled
	hub       Broadcaster
	logger    *logger.Logger
}

// NewIndicatorHandler creates an indicator handler.
func NewIndicatorHandler(service *indicator.Service, snapshots *snapshot.Repository, hub Broadcaster, log *logger.Logger) *IndicatorHandler {
	return &IndicatorHandler{
		service:   service,
		snapshots: snapshots,
		hub:       hub,
		logger:    log,
	}
}

// GetAll returns every indicator plus the cross-indicator flags.
// GET /api/indicators
func (h *IndicatorHandler) GetAll(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.GetAll(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to compute indicators")
		respondError(w, http.StatusInternalServerError, "Failed to compute indicators")
		return
	}

	respondJSON(w, http.StatusOK, summary)
}

// Get returns a single indicator.
// GET /api/indicators/{key}?periods=N
func (h *IndicatorHandler) Get(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]

	opts := indicator.Options{}
	if p := r.URL.Query().Get("periods"); p != "" {
		periods, err := strconv.Atoi(p)
		if err != nil || periods <= 0 {
			respondError(w, http.StatusBadRequest, "periods must be a positive integer")
			return
		}
		opts.Periods = periods
	}

	result, err := h.service.GetIndicator(r.Context(), key, opts)
	if err != nil {
		if _, lookupErr := indicator.Lookup(key); lookupErr != nil {
			respondError(w, http.StatusNotFound, lookupErr.Error())
			return
		}
		if errors.Is(err, fred.ErrSeriesNotFound) {
			respondError(w, http.StatusBadGateway, err.Error())
			return
		}
		h.logger.WithError(err).WithField("indicator", key).Error("Failed to compute indicator")
		respondError(w, http.StatusInternalServerError, "Failed to compute indicator")
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// Refresh recomputes one indicator, bypassing the cache, and broadcasts
// the fresh value to connected dashboards.
// POST /api/indicators/{key}/refresh
func (h *IndicatorHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]

	if _, err := indicator.Lookup(key); err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}

	result, err := h.service.GetIndicator(r.Context(), key, indicator.Options{ForceRefresh: true})
	if err != nil {
		h.logger.WithError(err).WithField("indicator", key).Error("Failed to refresh indicator")
		respondError(w, http.StatusInternalServerError, "Failed to refresh indicator")
		return
	}

	if h.hub != nil {
		h.hub.Broadcast(result)
	}

	respondJSON(w, http.StatusOK, result)
}

// History returns persisted snapshots for an indicator, newest first.
// GET /api/indicators/{key}/history?limit=N
func (h *IndicatorHandler) History(w http.ResponseWriter, r *http.Request) {
	if h.snapshots == nil {
		respondError(w, http.StatusServiceUnavailable, "Snapshot storage is disabled")
		return
	}

	key := mux.Vars(r)["key"]
	if _, err := indicator.Lookup(key); err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}

	limit := 0
	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed <= 0 {
			respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	snaps, err := h.snapshots.History(r.Context(), key, limit)
	if err != nil {
		h.logger.WithError(err).WithField("indicator", key).Error("Failed to load snapshot history")
		respondError(w, http.StatusInternalServerError, "Failed to load history")
		return
	}

	respondJSON(w, http.StatusOK, snaps)
}

// Releases returns the upcoming FRED release calendar.
// GET /api/releases
func (h *IndicatorHandler) Releases(w http.ResponseWriter, r *http.Request) {
	releases, err := h.service.UpcomingReleases(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to fetch release calendar")
		respondError(w, http.StatusBadGateway, "Failed to fetch release calendar")
		return
	}

	respondJSON(w, http.StatusOK, releases)
}
