package transitapi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"inforojo/internal/domain"
)

// MapMarkers fetches map markers, optionally restricted to some capas.
func (c *Client) MapMarkers(ctx context.Context, capas []domain.Capa) ([]domain.Marker, error) {
	q := url.Values{}
	if len(capas) > 0 {
		names := make([]string, len(capas))
		for i, cp := range capas {
			names[i] = string(cp)
		}
		q.Set("capas", strings.Join(names, ","))
	}

	var out []domain.Marker
	if err := c.do(ctx, http.MethodGet, "/api/mapa/markers", q, nil, &out); err != nil {
		return nil, fmt.Errorf("map markers: %w", err)
	}
	return out, nil
}
