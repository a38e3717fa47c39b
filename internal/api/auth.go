package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"casinoclient/internal/models"
)

// Login exchanges credentials for a bearer token.
func (c *Client) Login(ctx context.Context, creds models.Credentials) (string, error) {
	raw, _, err := c.do(ctx, http.MethodPost, "/auth/login", "", creds)
	if err != nil {
		return "", err
	}

	var resp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("decode login response: %w", err)
	}
	if resp.Token == "" {
		return "", errors.New("api: login response carried no token")
	}
	return resp.Token, nil
}

// Profile fetches the user owning token. The token is explicit because it runs before a session holds one.
func (c *Client) Profile(ctx context.Context, token string) (models.User, error) {
	raw, _, err := c.do(ctx, http.MethodGet, "/me", token, nil)
	if err != nil {
		return models.User{}, err
	}
	return unmarshalOne[models.User, userResource](raw)
}

func (c *Client) ClaimDaily(ctx context.Context) (models.User, error) {
	return single[models.User, userResource](ctx, c, http.MethodPost, "/me/daily_claim", nil)
}
