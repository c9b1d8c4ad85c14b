package transitapi

import (
	"context"
	"fmt"
	"net/http"

	"inforojo/internal/domain"
)

func (c *Client) ReportDesvio(ctx context.Context, d domain.Desvio) (*domain.Desvio, error) {
	var out domain.Desvio
	if err := c.do(ctx, http.MethodPost, "/reporte/desvio", nil, d, &out); err != nil {
		return nil, fmt.Errorf("report desvio: %w", err)
	}
	return &out, nil
}

func (c *Client) ListDesvios(ctx context.Context) ([]domain.Desvio, error) {
	var out []domain.Desvio
	if err := c.do(ctx, http.MethodGet, "/reporte/desvio", nil, nil, &out); err != nil {
		return nil, fmt.Errorf("list desvios: %w", err)
	}
	return out, nil
}

func (c *Client) ReportFalla(ctx context.Context, f domain.Falla) (*domain.Falla, error) {
	var out domain.Falla
	if err := c.do(ctx, http.MethodPost, "/reporte/falla", nil, f, &out); err != nil {
		return nil, fmt.Errorf("report falla: %w", err)
	}
	return &out, nil
}

func (c *Client) ListFallas(ctx context.Context) ([]domain.Falla, error) {
	var out []domain.Falla
	if err := c.do(ctx, http.MethodGet, "/reporte/falla", nil, nil, &out); err != nil {
		return nil, fmt.Errorf("list fallas: %w", err)
	}
	return out, nil
}

func (c *Client) ListRetrasos(ctx context.Context) ([]domain.Retraso, error) {
	var out []domain.Retraso
	if err := c.do(ctx, http.MethodGet, "/reporte/retraso", nil, nil, &out); err != nil {
		return nil, fmt.Errorf("list retrasos: %w", err)
	}
	return out, nil
}
