package transitapi

import (
	"context"
	"fmt"
	"net/http"

	"inforojo/internal/domain"
)

type LoginRequest struct {
	Correo     string `json:"correo"`
	Contrasena string `json:"contrasena"`
}

type LoginResponse struct {
	Token   string         `json:"token"`
	Usuario domain.Usuario `json:"usuario"`
}

func (c *Client) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	if req.Correo == "" || req.Contrasena == "" {
		return nil, fmt.Errorf("login: %w", ErrInvalidCredentials)
	}
	var resp LoginResponse
	if err := c.do(ctx, http.MethodPost, "/auth/login", nil, req, &resp); err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	if resp.Token == "" {
		return nil, fmt.Errorf("login: empty token: %w", ErrBadResponse)
	}
	return &resp, nil
}
