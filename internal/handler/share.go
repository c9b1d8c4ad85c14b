package handler

import (
	"log/slog"
	"net/http"
	"time"

	"inforojo/internal/domain"
	"inforojo/internal/geo"
)

type FixSink interface {
	Push(f domain.Fix) bool
}

type StateSink interface {
	Set(st domain.AppState) error
}

type ShareHandler struct {
	share  ShareControl
	fixes  FixSink
	states StateSink
	logger *slog.Logger
}

func NewShareHandler(share ShareControl, fixes FixSink, states StateSink, logger *slog.Logger) *ShareHandler {
	return &ShareHandler{share: share, fixes: fixes, states: states, logger: logger.With("handler", "share")}
}

// PostFix accepts one device location. 409 means nothing is subscribed,
// usually because the app is in the background.
func (h *ShareHandler) PostFix(w http.ResponseWriter, r *http.Request) {
	var fix domain.Fix
	if !decodeJSON(w, r, &fix) {
		return
	}
	if !geo.ValidCoordinate(fix.Lat, fix.Lng) {
		respondError(w, http.StatusBadRequest, "invalid coordinate")
		return
	}
	if fix.Timestamp.IsZero() {
		fix.Timestamp = time.Now().UTC()
	}

	if h.fixes == nil || !h.fixes.Push(fix) {
		respondError(w, http.StatusConflict, "location sharing is not subscribed")
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

type StateRequest struct {
	State domain.AppState `json:"state"`
}

func (h *ShareHandler) PostState(w http.ResponseWriter, r *http.Request) {
	var req StateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.states.Set(req.State); err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *ShareHandler) Start(w http.ResponseWriter, r *http.Request) {
	if err := h.share.Start(); err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, h.share.Status())
}

func (h *ShareHandler) Stop(w http.ResponseWriter, r *http.Request) {
	h.share.Stop()
	respondJSON(w, http.StatusOK, h.share.Status())
}

func (h *ShareHandler) Status(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.share.Status())
}
