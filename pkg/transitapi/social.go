package transitapi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"inforojo/internal/domain"
)

func (c *Client) ListComentarios(ctx context.Context, idRuta, idParadero string) ([]domain.Comentario, error) {
	q := url.Values{}
	if idRuta != "" {
		q.Set("id_ruta", idRuta)
	}
	if idParadero != "" {
		q.Set("id_paradero", idParadero)
	}
	var out []domain.Comentario
	if err := c.do(ctx, http.MethodGet, "/comentario", q, nil, &out); err != nil {
		return nil, fmt.Errorf("list comentarios: %w", err)
	}
	return out, nil
}

func (c *Client) PostComentario(ctx context.Context, cm domain.Comentario) (*domain.Comentario, error) {
	var out domain.Comentario
	if err := c.do(ctx, http.MethodPost, "/comentario", nil, cm, &out); err != nil {
		return nil, fmt.Errorf("post comentario: %w", err)
	}
	return &out, nil
}

func (c *Client) ListNotificaciones(ctx context.Context, idUsuario string) ([]domain.Notificacion, error) {
	if idUsuario == "" {
		return nil, fmt.Errorf("list notificaciones: %w", ErrMissingID)
	}
	q := url.Values{}
	q.Set("id_usuario", idUsuario)

	var out []domain.Notificacion
	if err := c.do(ctx, http.MethodGet, "/notificacion", q, nil, &out); err != nil {
		return nil, fmt.Errorf("list notificaciones: %w", err)
	}
	return out, nil
}

func (c *Client) MarkNotificacionLeida(ctx context.Context, id string) error {
	esc, err := escapeID(id)
	if err != nil {
		return fmt.Errorf("mark leida: %w", err)
	}
	if err := c.do(ctx, http.MethodPatch, "/notificacion/"+esc+"/leida", nil, nil, nil); err != nil {
		return fmt.Errorf("mark leida %s: %w", id, err)
	}
	return nil
}

type AlertaResult struct {
	Enviadas int `json:"enviadas"`
}

func (c *Client) SendAlertaMasiva(ctx context.Context, a domain.AlertaMasiva) (*AlertaResult, error) {
	var out AlertaResult
	if err := c.do(ctx, http.MethodPost, "/alertas-masivas/enviar", nil, a, &out); err != nil {
		return nil, fmt.Errorf("send alerta masiva: %w", err)
	}
	return &out, nil
}
