package handler

import (
	"context"
	"log/slog"
	"net/http"

	"inforojo/internal/domain"
	"inforojo/internal/report"
)

// Identity yields the logged-in user.
type Identity interface {
	Usuario() (domain.Usuario, error)
}

type ReportService interface {
	ReportFalla(ctx context.Context, in report.FallaInput) (*domain.Falla, error)
	ReportDesvio(ctx context.Context, in report.DesvioInput) (*domain.Desvio, error)
	Fallas(ctx context.Context) ([]domain.Falla, error)
	Desvios(ctx context.Context) ([]domain.Desvio, error)
	Retrasos(ctx context.Context) ([]domain.Retraso, error)
}

type ReportHandler struct {
	svc      ReportService
	identity Identity
	logger   *slog.Logger
}

func NewReportHandler(svc ReportService, identity Identity, logger *slog.Logger) *ReportHandler {
	return &ReportHandler{svc: svc, identity: identity, logger: logger.With("handler", "reportes")}
}

// ReportFalla defaults id_corredor to the driver's own corredor.
func (h *ReportHandler) ReportFalla(w http.ResponseWriter, r *http.Request) {
	var in report.FallaInput
	if !decodeJSON(w, r, &in) {
		return
	}
	if in.IDCorredor == "" {
		in.IDCorredor = h.sessionCorredor()
	}

	f, err := h.svc.ReportFalla(r.Context(), in)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusCreated, f)
}

func (h *ReportHandler) ReportDesvio(w http.ResponseWriter, r *http.Request) {
	var in report.DesvioInput
	if !decodeJSON(w, r, &in) {
		return
	}
	if in.IDCorredor == "" {
		in.IDCorredor = h.sessionCorredor()
	}

	d, err := h.svc.ReportDesvio(r.Context(), in)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusCreated, d)
}

// List serves GET /v1/reportes/{tipo} for fallas, desvios and retrasos.
func (h *ReportHandler) List(w http.ResponseWriter, r *http.Request) {
	var (
		out interface{}
		err error
	)
	switch r.PathValue("tipo") {
	case "falla", "fallas":
		out, err = h.svc.Fallas(r.Context())
	case "desvio", "desvios":
		out, err = h.svc.Desvios(r.Context())
	case "retraso", "retrasos":
		out, err = h.svc.Retrasos(r.Context())
	default:
		respondError(w, http.StatusNotFound, "unknown report tipo")
		return
	}
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, out)
}

func (h *ReportHandler) sessionCorredor() string {
	u, err := h.identity.Usuario()
	if err != nil {
		return ""
	}
	return u.IDCorredor
}
