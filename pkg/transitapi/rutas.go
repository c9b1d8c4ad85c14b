package transitapi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"inforojo/internal/domain"
)

func (c *Client) ListRutas(ctx context.Context) ([]domain.Ruta, error) {
	var out []domain.Ruta
	if err := c.do(ctx, http.MethodGet, "/ruta", nil, nil, &out); err != nil {
		return nil, fmt.Errorf("list rutas: %w", err)
	}
	return out, nil
}

// FiltrarRutas returns rutas serving origen and destino. Either may be empty.
func (c *Client) FiltrarRutas(ctx context.Context, origen, destino string) ([]domain.Ruta, error) {
	q := url.Values{}
	if origen != "" {
		q.Set("origen", origen)
	}
	if destino != "" {
		q.Set("destino", destino)
	}
	var out []domain.Ruta
	if err := c.do(ctx, http.MethodGet, "/ruta/filtrar", q, nil, &out); err != nil {
		return nil, fmt.Errorf("filtrar rutas: %w", err)
	}
	return out, nil
}
