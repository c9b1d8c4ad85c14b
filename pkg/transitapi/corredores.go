package transitapi

import (
	"context"
	"fmt"
	"net/http"

	"inforojo/internal/domain"
)

func (c *Client) ListCorredores(ctx context.Context) ([]*domain.Corredor, error) {
	var out []*domain.Corredor
	if err := c.do(ctx, http.MethodGet, "/corredor", nil, nil, &out); err != nil {
		return nil, fmt.Errorf("list corredores: %w", err)
	}

	result := out[:0]
	for _, cr := range out {
		if cr == nil || cr.ID == "" {
			continue
		}
		result = append(result, cr)
	}
	return result, nil
}

func (c *Client) CorredorUbicacion(ctx context.Context, id string) (*domain.Ubicacion, error) {
	esc, err := escapeID(id)
	if err != nil {
		return nil, fmt.Errorf("corredor ubicacion: %w", err)
	}
	var out domain.Ubicacion
	if err := c.do(ctx, http.MethodGet, "/corredor/"+esc+"/ubicacion", nil, nil, &out); err != nil {
		return nil, fmt.Errorf("corredor ubicacion %s: %w", id, err)
	}
	if out.IDCorredor == "" {
		out.IDCorredor = id
	}
	return &out, nil
}

// ubicacionBody is the PUT payload; the server stamps the time itself.
type ubicacionBody struct {
	Lat float64 `json:"ubicacion_lat"`
	Lng float64 `json:"ubicacion_lng"`
}

// ShareUbicacion pushes the driver's current position for a corredor.
func (c *Client) ShareUbicacion(ctx context.Context, id string, lat, lng float64) error {
	esc, err := escapeID(id)
	if err != nil {
		return fmt.Errorf("share ubicacion: %w", err)
	}
	body := ubicacionBody{Lat: lat, Lng: lng}
	if err := c.do(ctx, http.MethodPut, "/corredor/"+esc+"/ubicacion", nil, body, nil); err != nil {
		return fmt.Errorf("share ubicacion %s: %w", id, err)
	}
	return nil
}
