package handler

import (
	"context"
	"log/slog"
	"net/http"

	"inforojo/internal/domain"
	"inforojo/internal/locshare"
	"inforojo/pkg/transitapi"
)

type Authenticator interface {
	Login(ctx context.Context, req transitapi.LoginRequest) (*transitapi.LoginResponse, error)
}

type SessionStore interface {
	Save(ctx context.Context, token string, u domain.Usuario) error
	Clear(ctx context.Context) error
	Usuario() (domain.Usuario, error)
}

// ShareControl starts and stops location sharing for the session.
type ShareControl interface {
	Start() error
	Stop()
	Running() bool
	Status() locshare.Status
}

type SessionHandler struct {
	auth    Authenticator
	session SessionStore
	share   ShareControl
	logger  *slog.Logger
}

// NewSessionHandler wires login and logout. share may be nil when location
// sharing is disabled.
func NewSessionHandler(auth Authenticator, session SessionStore, share ShareControl, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{auth: auth, session: session, share: share, logger: logger.With("handler", "session")}
}

type SessionResponse struct {
	Usuario domain.Usuario `json:"usuario"`
	Sharing bool           `json:"sharing"`
}

func (h *SessionHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req transitapi.LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	resp, err := h.auth.Login(r.Context(), req)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	if err := h.session.Save(r.Context(), resp.Token, resp.Usuario); err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	h.logger.Info("logged in", "id_usuario", resp.Usuario.ID, "rol", resp.Usuario.Rol)

	if h.share != nil && resp.Usuario.IsDriver() {
		if err := h.share.Start(); err != nil {
			h.logger.Warn("could not start location sharing", "error", err)
		}
	}

	respondJSON(w, http.StatusOK, h.sessionResponse(resp.Usuario))
}

func (h *SessionHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if h.share != nil {
		h.share.Stop()
	}
	if err := h.session.Clear(r.Context()); err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	h.logger.Info("logged out")
	w.WriteHeader(http.StatusNoContent)
}

func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	u, err := h.session.Usuario()
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, h.sessionResponse(u))
}

func (h *SessionHandler) sessionResponse(u domain.Usuario) SessionResponse {
	return SessionResponse{Usuario: u, Sharing: h.share != nil && h.share.Running()}
}
