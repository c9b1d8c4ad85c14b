package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"inforojo/internal/domain"
	"inforojo/internal/geo"
	"inforojo/internal/layers"
	"inforojo/internal/locshare"
	"inforojo/internal/report"
	"inforojo/internal/session"
	"inforojo/internal/social"
	"inforojo/internal/store"
	"inforojo/pkg/transitapi"
)

// CorredorWatcher adds and removes individually polled corredores.
type CorredorWatcher interface {
	Watch(id string)
	Unwatch(id string)
	Watched() []string
}

type HTTPHandler struct {
	store   *store.Store
	watcher CorredorWatcher
}

func NewHTTPHandler(store *store.Store, watcher CorredorWatcher) *HTTPHandler {
	return &HTTPHandler{store: store, watcher: watcher}
}

type CorredoresResponse struct {
	Corredores []*domain.Corredor `json:"corredores"`
	Count      int                `json:"count"`
	ServerTime time.Time          `json:"serverTime"`
}

func (h *HTTPHandler) ListCorredores(w http.ResponseWriter, r *http.Request) {
	opts := store.ListOptions{Ruta: r.URL.Query().Get("ruta")}

	if estado := r.URL.Query().Get("estado"); estado != "" {
		e := domain.Estado(estado)
		if !e.Valid() {
			respondError(w, http.StatusBadRequest, "invalid estado: must be en_ruta, detenido, fuera_de_servicio or en_falla")
			return
		}
		opts.Estado = e
	}

	if bboxStr := r.URL.Query().Get("bbox"); bboxStr != "" {
		parts := strings.Split(bboxStr, ",")
		if len(parts) != 4 {
			respondError(w, http.StatusBadRequest, "invalid bbox format: expected minLat,minLng,maxLat,maxLng")
			return
		}
		bbox, err := parseBBox(parts)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid bbox values: "+err.Error())
			return
		}
		opts.BBox = bbox
	}

	corredores := h.store.List(opts)

	respondJSON(w, http.StatusOK, CorredoresResponse{
		Corredores: corredores,
		Count:      len(corredores),
		ServerTime: time.Now(),
	})
}

func (h *HTTPHandler) GetCorredor(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "missing corredor id")
		return
	}

	corredor, ok := h.store.Get(id)
	if !ok {
		respondError(w, http.StatusNotFound, "corredor not found")
		return
	}

	respondJSON(w, http.StatusOK, corredor)
}

type WatchResponse struct {
	Watched []string `json:"watched"`
}

func (h *HTTPHandler) WatchCorredor(w http.ResponseWriter, r *http.Request) {
	h.watcher.Watch(r.PathValue("id"))
	respondJSON(w, http.StatusOK, WatchResponse{Watched: h.watcher.Watched()})
}

func (h *HTTPHandler) UnwatchCorredor(w http.ResponseWriter, r *http.Request) {
	h.watcher.Unwatch(r.PathValue("id"))
	respondJSON(w, http.StatusOK, WatchResponse{Watched: h.watcher.Watched()})
}

func parseBBox(parts []string) (*domain.BoundingBox, error) {
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, err
		}
		v[i] = f
	}
	bb := &domain.BoundingBox{
		MinLat: v[0], MinLng: v[1],
		MaxLat: v[2], MaxLng: v[3],
	}
	if err := checkBBox(*bb); err != nil {
		return nil, err
	}
	return bb, nil
}

// checkBBox is shared by the HTTP query and WebSocket subscribe paths.
func checkBBox(bb domain.BoundingBox) error {
	if !geo.ValidCoordinate(bb.MinLat, bb.MinLng) || !geo.ValidCoordinate(bb.MaxLat, bb.MaxLng) {
		return errors.New("coordinates out of range")
	}
	if bb.MinLat > bb.MaxLat || bb.MinLng > bb.MaxLng {
		return errors.New("min must not exceed max")
	}
	return nil
}

func parseLatLng(r *http.Request) (float64, float64, error) {
	lat, err := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid lat: %w", err)
	}
	lng, err := strconv.ParseFloat(r.URL.Query().Get("lng"), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid lng: %w", err)
	}
	return lat, lng, nil
}

// maxBodyBytes bounds JSON request bodies from the shell.
const maxBodyBytes = 1 << 20

func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

type errorResponse struct {
	Error string `json:"error"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, errorResponse{Error: message})
}

// respondServiceError maps service and API errors onto gateway statuses.
func respondServiceError(w http.ResponseWriter, logger *slog.Logger, err error) {
	status := errorStatus(err)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "status", status, "error", err)
	} else {
		logger.Debug("request rejected", "status", status, "error", err)
	}
	respondError(w, status, err.Error())
}

func errorStatus(err error) int {
	var apiErr *transitapi.APIError
	switch {
	case errors.Is(err, transitapi.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, transitapi.ErrUnauthorized), errors.Is(err, session.ErrNoSession):
		return http.StatusUnauthorized
	case errors.Is(err, social.ErrForbidden), errors.Is(err, locshare.ErrNotDriver):
		return http.StatusForbidden
	case errors.Is(err, transitapi.ErrMissingID),
		errors.Is(err, transitapi.ErrInvalidCredentials),
		errors.Is(err, report.ErrInvalidCoordinate),
		errors.Is(err, report.ErrMissingField),
		errors.Is(err, social.ErrEmptyText),
		errors.Is(err, social.ErrTextTooLong),
		errors.Is(err, social.ErrNoTarget),
		errors.Is(err, social.ErrInvalidAlert),
		errors.Is(err, locshare.ErrInvalidState),
		errors.Is(err, layers.ErrUnknownCapa):
		return http.StatusBadRequest
	case errors.Is(err, report.ErrNoParadero):
		return http.StatusNotFound
	case errors.Is(err, transitapi.ErrBadResponse), errors.Is(err, session.ErrIncompleteSession):
		// upstream accepted the login but answered without a usable session
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.As(err, &apiErr):
		if apiErr.Status >= 400 && apiErr.Status < 500 {
			return apiErr.Status
		}
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
