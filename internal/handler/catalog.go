package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"inforojo/internal/cache"
	"inforojo/internal/domain"
	"inforojo/internal/report"
	"inforojo/internal/store"
)

type CatalogAPI interface {
	GetParadero(ctx context.Context, id string) (*domain.Paradero, error)
	FiltrarRutas(ctx context.Context, origen, destino string) ([]domain.Ruta, error)
}

// ETASource serves arrival estimates and manages watched paraderos.
type ETASource interface {
	Fetch(ctx context.Context, id string) ([]domain.ETA, error)
	Watch(id string)
	Unwatch(id string)
	Watched() []string
}

type NearestFinder interface {
	NearestParadero(ctx context.Context, lat, lng float64) (*report.Nearest, error)
}

type CatalogHandler struct {
	catalog *store.Catalog
	api     CatalogAPI
	cache   cache.Cache
	warmer  *cache.CacheWarmer
	eta     ETASource
	nearest NearestFinder
	ttl     time.Duration
	logger  *slog.Logger
}

func NewCatalogHandler(catalog *store.Catalog, api CatalogAPI, c cache.Cache, warmer *cache.CacheWarmer, eta ETASource, nearest NearestFinder, ttl time.Duration, logger *slog.Logger) *CatalogHandler {
	return &CatalogHandler{
		catalog: catalog,
		api:     api,
		cache:   c,
		warmer:  warmer,
		eta:     eta,
		nearest: nearest,
		ttl:     ttl,
		logger:  logger.With("handler", "catalog"),
	}
}

type ParaderosResponse struct {
	Paraderos  []domain.Paradero `json:"paraderos"`
	Count      int               `json:"count"`
	ServerTime time.Time         `json:"server_time"`
}

func (h *CatalogHandler) ListParaderos(w http.ResponseWriter, r *http.Request) {
	paraderos := h.catalog.Paraderos()

	if v := r.URL.Query().Get("colapsado"); v != "" {
		want, err := strconv.ParseBool(v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid colapsado parameter")
			return
		}
		filtered := paraderos[:0]
		for _, p := range paraderos {
			if p.Colapsado == want {
				filtered = append(filtered, p)
			}
		}
		paraderos = filtered
	}

	if rutaID := r.URL.Query().Get("ruta"); rutaID != "" {
		ruta, ok := h.catalog.Ruta(rutaID)
		if !ok {
			respondError(w, http.StatusNotFound, "ruta not found")
			return
		}
		filtered := make([]domain.Paradero, 0, len(ruta.Paraderos))
		for _, p := range paraderos {
			if ruta.HasParadero(p.ID) {
				filtered = append(filtered, p)
			}
		}
		paraderos = filtered
	}

	respondJSON(w, http.StatusOK, ParaderosResponse{
		Paraderos:  paraderos,
		Count:      len(paraderos),
		ServerTime: time.Now(),
	})
}

func (h *CatalogHandler) GetParadero(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if p, ok := h.catalog.Paradero(id); ok {
		respondJSON(w, http.StatusOK, p)
		return
	}

	p, err := h.api.GetParadero(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

type ETAResponse struct {
	IDParadero string       `json:"id_paradero"`
	ETAs       []domain.ETA `json:"etas"`
	ServerTime time.Time    `json:"server_time"`
}

func (h *CatalogHandler) ParaderoETA(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	etas, err := h.eta.Fetch(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, ETAResponse{IDParadero: id, ETAs: etas, ServerTime: time.Now()})
}

func (h *CatalogHandler) WatchParadero(w http.ResponseWriter, r *http.Request) {
	h.eta.Watch(r.PathValue("id"))
	respondJSON(w, http.StatusOK, WatchResponse{Watched: h.eta.Watched()})
}

func (h *CatalogHandler) UnwatchParadero(w http.ResponseWriter, r *http.Request) {
	h.eta.Unwatch(r.PathValue("id"))
	respondJSON(w, http.StatusOK, WatchResponse{Watched: h.eta.Watched()})
}

func (h *CatalogHandler) NearestParadero(w http.ResponseWriter, r *http.Request) {
	lat, lng, err := parseLatLng(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	nearest, err := h.nearest.NearestParadero(r.Context(), lat, lng)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, nearest)
}

type RutasResponse struct {
	Rutas      []domain.Ruta `json:"rutas"`
	Count      int           `json:"count"`
	ServerTime time.Time     `json:"server_time"`
}

func (h *CatalogHandler) ParaderoRutas(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	key := cache.KeyRutasForParadero(id)

	var rutas []domain.Ruta
	if h.cachedJSON(r.Context(), key, &rutas) {
		respondJSON(w, http.StatusOK, RutasResponse{Rutas: rutas, Count: len(rutas), ServerTime: time.Now()})
		return
	}

	rutas = h.catalog.RutasForParadero(id)
	h.storeJSON(r.Context(), key, rutas)
	respondJSON(w, http.StatusOK, RutasResponse{Rutas: rutas, Count: len(rutas), ServerTime: time.Now()})
}

func (h *CatalogHandler) ListRutas(w http.ResponseWriter, r *http.Request) {
	rutas := h.catalog.Rutas()
	respondJSON(w, http.StatusOK, RutasResponse{
		Rutas:      rutas,
		Count:      len(rutas),
		ServerTime: time.Now(),
	})
}

func (h *CatalogHandler) GetRuta(w http.ResponseWriter, r *http.Request) {
	ruta, ok := h.catalog.Ruta(r.PathValue("id"))
	if !ok {
		respondError(w, http.StatusNotFound, "ruta not found")
		return
	}
	respondJSON(w, http.StatusOK, ruta)
}

// FiltrarRutas asks the API for rutas between two paraderos. Answers are
// cached until the next catalog refresh.
func (h *CatalogHandler) FiltrarRutas(w http.ResponseWriter, r *http.Request) {
	origen := strings.TrimSpace(r.URL.Query().Get("origen"))
	destino := strings.TrimSpace(r.URL.Query().Get("destino"))
	if origen == "" && destino == "" {
		respondError(w, http.StatusBadRequest, "origen or destino is required")
		return
	}

	key := cache.KeyFiltrarRutas(origen, destino)
	var rutas []domain.Ruta
	if !h.cachedJSON(r.Context(), key, &rutas) {
		var err error
		rutas, err = h.api.FiltrarRutas(r.Context(), origen, destino)
		if err != nil {
			respondServiceError(w, h.logger, err)
			return
		}
		h.storeJSON(r.Context(), key, rutas)
	}

	respondJSON(w, http.StatusOK, RutasResponse{Rutas: rutas, Count: len(rutas), ServerTime: time.Now()})
}

// Sync serves the full catalog bundle with an ETag tied to the last refresh.
func (h *CatalogHandler) Sync(w http.ResponseWriter, r *http.Request) {
	match := r.Header.Get("If-None-Match")
	if match != "" {
		var version string
		if h.cachedJSON(r.Context(), cache.KeyCatalogVersion, &version) && match == `"`+version+`"` {
			w.Header().Set("ETag", match)
			w.Header().Set("Cache-Control", "no-cache")
			w.WriteHeader(http.StatusNotModified)
			return
		}
	}

	var data cache.SyncData
	found, err := h.cache.GetJSONCompressed(r.Context(), cache.KeyCatalogSync, &data)
	if err != nil {
		h.logger.Warn("sync cache read failed", "error", err)
	}
	if found {
		ServerStats.IncCacheHits()
	} else {
		ServerStats.IncCacheMisses()
		data = *h.warmer.BuildSyncData()
	}

	etag := `"` + data.Version + `"`
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "no-cache")
	if match != "" && match == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	respondJSON(w, http.StatusOK, data)
}

func (h *CatalogHandler) CatalogStats(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.catalog.Stats())
}

func (h *CatalogHandler) cachedJSON(ctx context.Context, key string, dest interface{}) bool {
	found, err := h.cache.GetJSON(ctx, key, dest)
	if err != nil {
		h.logger.Warn("cache read failed", "key", key, "error", err)
	}
	if found {
		ServerStats.IncCacheHits()
	} else {
		ServerStats.IncCacheMisses()
	}
	return found
}

func (h *CatalogHandler) storeJSON(ctx context.Context, key string, value interface{}) {
	if err := h.cache.SetJSON(ctx, key, value, h.ttl); err != nil {
		h.logger.Warn("cache write failed", "key", key, "error", err)
	}
}
