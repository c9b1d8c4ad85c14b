package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"inforojo/internal/store"
)

type ReadinessChecker interface {
	IsReady() bool
}

type HealthHandler struct {
	tracker ReadinessChecker
	catalog ReadinessChecker
	store   *store.Store
}

func NewHealthHandler(tracker, catalog ReadinessChecker, s *store.Store) *HealthHandler {
	return &HealthHandler{
		tracker: tracker,
		catalog: catalog,
		store:   s,
	}
}

func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

type ReadyResponse struct {
	Ready         bool      `json:"ready"`
	TrackerReady  bool      `json:"trackerReady"`
	CatalogReady  bool      `json:"catalogReady"`
	CorredorCount int       `json:"corredorCount"`
	ServerTime    time.Time `json:"serverTime"`
}

// Readyz reports ready once both the first corredor poll and the first
// catalog load have succeeded.
func (h *HealthHandler) Readyz(w http.ResponseWriter, r *http.Request) {
	trackerReady := h.tracker.IsReady()
	catalogReady := h.catalog.IsReady()
	ready := trackerReady && catalogReady

	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ReadyResponse{
		Ready:         ready,
		TrackerReady:  trackerReady,
		CatalogReady:  catalogReady,
		CorredorCount: h.store.Count(),
		ServerTime:    time.Now(),
	})
}
