package handler

import (
	"context"
	"log/slog"
	"net/http"

	"inforojo/internal/domain"
	"inforojo/pkg/transitapi"
)

type SocialService interface {
	Comentarios(ctx context.Context, idRuta, idParadero string) ([]domain.Comentario, error)
	PostComentario(ctx context.Context, idRuta, idParadero, texto string) (*domain.Comentario, error)
	Notificaciones(ctx context.Context) ([]domain.Notificacion, error)
	MarkLeida(ctx context.Context, id string) error
	SendAlertaMasiva(ctx context.Context, a domain.AlertaMasiva) (*transitapi.AlertaResult, error)
}

type SocialHandler struct {
	svc    SocialService
	logger *slog.Logger
}

func NewSocialHandler(svc SocialService, logger *slog.Logger) *SocialHandler {
	return &SocialHandler{svc: svc, logger: logger.With("handler", "social")}
}

func (h *SocialHandler) ListComentarios(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	cs, err := h.svc.Comentarios(r.Context(), q.Get("id_ruta"), q.Get("id_paradero"))
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, cs)
}

type ComentarioRequest struct {
	IDRuta     string `json:"id_ruta"`
	IDParadero string `json:"id_paradero"`
	Texto      string `json:"texto"`
}

func (h *SocialHandler) PostComentario(w http.ResponseWriter, r *http.Request) {
	var req ComentarioRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	c, err := h.svc.PostComentario(r.Context(), req.IDRuta, req.IDParadero, req.Texto)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusCreated, c)
}

func (h *SocialHandler) ListNotificaciones(w http.ResponseWriter, r *http.Request) {
	ns, err := h.svc.Notificaciones(r.Context())
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, ns)
}

func (h *SocialHandler) MarkLeida(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.MarkLeida(r.Context(), r.PathValue("id")); err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *SocialHandler) SendAlerta(w http.ResponseWriter, r *http.Request) {
	var a domain.AlertaMasiva
	if !decodeJSON(w, r, &a) {
		return
	}

	res, err := h.svc.SendAlertaMasiva(r.Context(), a)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}
