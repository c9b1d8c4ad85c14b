package transitapi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"

	"inforojo/internal/domain"
)

func (c *Client) ListParaderos(ctx context.Context) ([]domain.Paradero, error) {
	var out []domain.Paradero
	if err := c.do(ctx, http.MethodGet, "/paradero", nil, nil, &out); err != nil {
		return nil, fmt.Errorf("list paraderos: %w", err)
	}
	return out, nil
}

func (c *Client) GetParadero(ctx context.Context, id string) (*domain.Paradero, error) {
	esc, err := escapeID(id)
	if err != nil {
		return nil, fmt.Errorf("get paradero: %w", err)
	}
	var out domain.Paradero
	if err := c.do(ctx, http.MethodGet, "/paradero/"+esc, nil, nil, &out); err != nil {
		return nil, fmt.Errorf("get paradero %s: %w", id, err)
	}
	return &out, nil
}

// ParaderoETA returns the arrival estimates at a paradero, soonest first.
func (c *Client) ParaderoETA(ctx context.Context, id string) ([]domain.ETA, error) {
	esc, err := escapeID(id)
	if err != nil {
		return nil, fmt.Errorf("paradero eta: %w", err)
	}
	var out []domain.ETA
	if err := c.do(ctx, http.MethodGet, "/paradero/"+esc+"/eta", nil, nil, &out); err != nil {
		return nil, fmt.Errorf("paradero eta %s: %w", id, err)
	}
	for i := range out {
		if out[i].IDParadero == "" {
			out[i].IDParadero = id
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Minutos < out[j].Minutos })
	return out, nil
}

// NearestParadero asks the server for the paradero closest to a point.
func (c *Client) NearestParadero(ctx context.Context, lat, lng float64) (*domain.Paradero, error) {
	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("lng", strconv.FormatFloat(lng, 'f', -1, 64))

	var out domain.Paradero
	if err := c.do(ctx, http.MethodGet, "/paradero/cercano", q, nil, &out); err != nil {
		return nil, fmt.Errorf("nearest paradero: %w", err)
	}
	if out.ID == "" {
		return nil, fmt.Errorf("nearest paradero: %w", ErrNotFound)
	}
	return &out, nil
}
