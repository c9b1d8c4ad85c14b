package social

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"inforojo/internal/domain"
	"inforojo/pkg/transitapi"
)

// MaxComentarioRunes caps the length of a posted comment.
const MaxComentarioRunes = 500

var (
	ErrEmptyText    = errors.New("comment text is empty")
	ErrTextTooLong  = fmt.Errorf("comment text exceeds %d characters", MaxComentarioRunes)
	ErrNoTarget     = errors.New("comment needs id_ruta or id_paradero")
	ErrForbidden    = errors.New("operation not allowed for this role")
	ErrInvalidAlert = errors.New("alert needs titulo and mensaje")
)

type API interface {
	ListComentarios(ctx context.Context, idRuta, idParadero string) ([]domain.Comentario, error)
	PostComentario(ctx context.Context, cm domain.Comentario) (*domain.Comentario, error)
	ListNotificaciones(ctx context.Context, idUsuario string) ([]domain.Notificacion, error)
	MarkNotificacionLeida(ctx context.Context, id string) error
	SendAlertaMasiva(ctx context.Context, a domain.AlertaMasiva) (*transitapi.AlertaResult, error)
}

// Identity yields the logged-in user.
type Identity interface {
	Usuario() (domain.Usuario, error)
}

// AlertPublisher mirrors sent alerts onto the local message bus.
type AlertPublisher interface {
	PublishAlerta(ctx context.Context, a domain.AlertaMasiva) error
}

type Service struct {
	api       API
	identity  Identity
	publisher AlertPublisher
	logger    *slog.Logger
}

func NewService(api API, identity Identity, publisher AlertPublisher, logger *slog.Logger) *Service {
	return &Service{
		api:       api,
		identity:  identity,
		publisher: publisher,
		logger:    logger.With("component", "social"),
	}
}

func (s *Service) Comentarios(ctx context.Context, idRuta, idParadero string) ([]domain.Comentario, error) {
	return s.api.ListComentarios(ctx, strings.TrimSpace(idRuta), strings.TrimSpace(idParadero))
}

// ValidateTexto trims t and checks it against the comment length rules.
func ValidateTexto(t string) (string, error) {
	t = strings.TrimSpace(t)
	if t == "" {
		return "", ErrEmptyText
	}
	if utf8.RuneCountInString(t) > MaxComentarioRunes {
		return "", ErrTextTooLong
	}
	return t, nil
}

func (s *Service) PostComentario(ctx context.Context, idRuta, idParadero, texto string) (*domain.Comentario, error) {
	u, err := s.identity.Usuario()
	if err != nil {
		return nil, err
	}
	texto, err = ValidateTexto(texto)
	if err != nil {
		return nil, err
	}
	idRuta, idParadero = strings.TrimSpace(idRuta), strings.TrimSpace(idParadero)
	if idRuta == "" && idParadero == "" {
		return nil, ErrNoTarget
	}

	return s.api.PostComentario(ctx, domain.Comentario{
		IDUsuario:  u.ID,
		IDRuta:     idRuta,
		IDParadero: idParadero,
		Texto:      texto,
	})
}

func (s *Service) Notificaciones(ctx context.Context) ([]domain.Notificacion, error) {
	u, err := s.identity.Usuario()
	if err != nil {
		return nil, err
	}
	return s.api.ListNotificaciones(ctx, u.ID)
}

func (s *Service) MarkLeida(ctx context.Context, id string) error {
	if _, err := s.identity.Usuario(); err != nil {
		return err
	}
	return s.api.MarkNotificacionLeida(ctx, id)
}

// SendAlertaMasiva is only available to dispatchers. The role is checked
// locally so riders never reach the endpoint.
func (s *Service) SendAlertaMasiva(ctx context.Context, a domain.AlertaMasiva) (*transitapi.AlertaResult, error) {
	u, err := s.identity.Usuario()
	if err != nil {
		return nil, err
	}
	if u.Rol != domain.RolDespachador {
		return nil, ErrForbidden
	}

	a.Titulo = strings.TrimSpace(a.Titulo)
	a.Mensaje = strings.TrimSpace(a.Mensaje)
	if a.Titulo == "" || a.Mensaje == "" {
		return nil, ErrInvalidAlert
	}
	if a.Rol != "" && !a.Rol.Valid() {
		return nil, fmt.Errorf("%w: unknown rol %q", ErrInvalidAlert, a.Rol)
	}

	res, err := s.api.SendAlertaMasiva(ctx, a)
	if err != nil {
		return nil, err
	}
	s.logger.Info("alerta masiva sent", "titulo", a.Titulo, "rol", a.Rol, "enviadas", res.Enviadas)

	if s.publisher != nil {
		if err := s.publisher.PublishAlerta(ctx, a); err != nil {
			s.logger.Warn("failed to publish alerta", "error", err)
		}
	}
	return res, nil
}
