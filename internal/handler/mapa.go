package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"inforojo/internal/cache"
	"inforojo/internal/domain"
	"inforojo/internal/layers"
)

type MarkersAPI interface {
	MapMarkers(ctx context.Context, capas []domain.Capa) ([]domain.Marker, error)
}

type CapaStore interface {
	SaveCapas(ctx context.Context, capas []domain.Capa) error
}

type MapHandler struct {
	api    MarkersAPI
	layers *layers.Set
	prefs  CapaStore
	cache  cache.Cache
	ttl    time.Duration
	logger *slog.Logger
}

func NewMapHandler(api MarkersAPI, set *layers.Set, prefs CapaStore, c cache.Cache, ttl time.Duration, logger *slog.Logger) *MapHandler {
	return &MapHandler{
		api:    api,
		layers: set,
		prefs:  prefs,
		cache:  c,
		ttl:    ttl,
		logger: logger.With("handler", "mapa"),
	}
}

type MarkersResponse struct {
	Markers    []domain.Marker `json:"markers"`
	Capas      []domain.Capa   `json:"capas"`
	Count      int             `json:"count"`
	ServerTime time.Time       `json:"server_time"`
}

// Markers returns map markers for the enabled layers. A capas query narrows
// the request further but never re-enables a layer that is switched off.
func (h *MapHandler) Markers(w http.ResponseWriter, r *http.Request) {
	capas := h.layers.List()

	if v := r.URL.Query().Get("capas"); v != "" {
		requested, err := layers.ParseCapas(v)
		if err != nil {
			respondServiceError(w, h.logger, err)
			return
		}
		capas = capas[:0]
		for _, c := range requested {
			if h.layers.Enabled(c) {
				capas = append(capas, c)
			}
		}
	}

	if len(capas) == 0 {
		respondJSON(w, http.StatusOK, MarkersResponse{Markers: []domain.Marker{}, Capas: capas, ServerTime: time.Now()})
		return
	}

	key := cache.KeyMarkers(capas)
	var markers []domain.Marker
	found, err := h.cache.GetJSON(r.Context(), key, &markers)
	if err != nil {
		h.logger.Warn("markers cache read failed", "error", err)
	}
	if found {
		ServerStats.IncCacheHits()
	} else {
		ServerStats.IncCacheMisses()
		markers, err = h.api.MapMarkers(r.Context(), capas)
		if err != nil {
			respondServiceError(w, h.logger, err)
			return
		}
		if err := h.cache.SetJSON(r.Context(), key, markers, h.ttl); err != nil {
			h.logger.Warn("markers cache write failed", "error", err)
		}
	}

	requested := layers.NewSet(capas...)
	markers = layers.Filter(markers, requested)

	respondJSON(w, http.StatusOK, MarkersResponse{
		Markers:    markers,
		Capas:      capas,
		Count:      len(markers),
		ServerTime: time.Now(),
	})
}

type CapasResponse struct {
	Capas       []domain.Capa `json:"capas"`
	Disponibles []domain.Capa `json:"disponibles"`
}

type CapasRequest struct {
	Capas []domain.Capa `json:"capas"`
}

func (h *MapHandler) GetCapas(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.capasResponse())
}

func (h *MapHandler) PutCapas(w http.ResponseWriter, r *http.Request) {
	var req CapasRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	for _, c := range req.Capas {
		if !c.Valid() {
			respondServiceError(w, h.logger, fmt.Errorf("%w %q", layers.ErrUnknownCapa, c))
			return
		}
	}

	h.layers.Replace(req.Capas)
	h.persist(r.Context())
	respondJSON(w, http.StatusOK, h.capasResponse())
}

func (h *MapHandler) ToggleCapa(w http.ResponseWriter, r *http.Request) {
	c := domain.Capa(r.PathValue("capa"))
	if !c.Valid() {
		respondServiceError(w, h.logger, fmt.Errorf("%w %q", layers.ErrUnknownCapa, c))
		return
	}

	h.layers.Toggle(c)
	h.persist(r.Context())
	respondJSON(w, http.StatusOK, h.capasResponse())
}

func (h *MapHandler) persist(ctx context.Context) {
	if err := h.prefs.SaveCapas(ctx, h.layers.List()); err != nil {
		h.logger.Error("failed to persist capas", "error", err)
	}
}

func (h *MapHandler) capasResponse() CapasResponse {
	return CapasResponse{Capas: h.layers.List(), Disponibles: domain.AllCapas}
}
