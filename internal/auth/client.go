// Package auth talks to the managed auth backend (Supabase GoTrue) and
// verifies the access tokens it issues.
package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

const defaultTimeout = 10 * time.Second

// User is the GoTrue user object.
type User struct {
	ID               string         `json:"id"`
	Email            string         `json:"email"`
	Role             string         `json:"role"`
	EmailConfirmedAt *time.Time     `json:"email_confirmed_at,omitempty"`
	UserMetadata     map[string]any `json:"user_metadata,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
}

// FullName returns the full_name metadata the sign-up form stores.
func (u User) FullName() string {
	if v, ok := u.UserMetadata["full_name"].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

// Session is a token pair. It is empty after sign-up when the backend
// requires email confirmation.
type Session struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	ExpiresAt    int64  `json:"expires_at"`
	User         *User  `json:"user,omitempty"`
}

// Empty reports whether the session carries no tokens.
func (s *Session) Empty() bool {
	return s == nil || s.AccessToken == ""
}

type Options struct {
	// URL is the project URL; "/auth/v1" is appended.
	URL        string
	AnonKey    string
	HTTPClient *http.Client
}

// Client is a GoTrue REST client.
type Client struct {
	baseURL string
	anonKey string
	client  *http.Client
}

func NewClient(opts Options) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(opts.URL), "/")
	if base == "" {
		return nil, errors.New("supabase url is required")
	}
	if strings.TrimSpace(opts.AnonKey) == "" {
		return nil, errors.New("supabase anon key is required")
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{baseURL: base + "/auth/v1", anonKey: strings.TrimSpace(opts.AnonKey), client: client}, nil
}

// SignUp registers a user. meta is stored as user metadata.
func (c *Client) SignUp(ctx context.Context, email, password string, meta map[string]any) (*Session, *User, error) {
	body := map[string]any{"email": strings.TrimSpace(email), "password": password}
	if len(meta) > 0 {
		body["data"] = meta
	}
	raw, err := c.do(ctx, http.MethodPost, "/signup", nil, "", body)
	if err != nil {
		return nil, nil, err
	}
	// Without auto-confirm the backend answers with the bare user.
	if gjson.GetBytes(raw, "access_token").Exists() {
		var session Session
		if err := json.Unmarshal(raw, &session); err != nil {
			return nil, nil, fmt.Errorf("auth: decode session: %w", err)
		}
		return &session, session.User, nil
	}
	var user User
	if err := json.Unmarshal(raw, &user); err != nil {
		return nil, nil, fmt.Errorf("auth: decode user: %w", err)
	}
	return &Session{}, &user, nil
}

func (c *Client) SignIn(ctx context.Context, email, password string) (*Session, error) {
	return c.token(ctx, "password", map[string]any{"email": strings.TrimSpace(email), "password": password})
}

func (c *Client) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return nil, newError(KindSessionExpired, http.StatusBadRequest, "refresh_token_not_found", "missing refresh token", nil)
	}
	return c.token(ctx, "refresh_token", map[string]any{"refresh_token": refreshToken})
}

// SignOut revokes the session behind accessToken.
func (c *Client) SignOut(ctx context.Context, accessToken string) error {
	_, err := c.do(ctx, http.MethodPost, "/logout", nil, accessToken, nil)
	return err
}

// SendPasswordReset emails a recovery link that lands on redirectTo.
func (c *Client) SendPasswordReset(ctx context.Context, email, redirectTo string) error {
	query := url.Values{}
	if redirectTo != "" {
		query.Set("redirect_to", redirectTo)
	}
	_, err := c.do(ctx, http.MethodPost, "/recover", query, "", map[string]any{"email": strings.TrimSpace(email)})
	return err
}

func (c *Client) UpdatePassword(ctx context.Context, accessToken, newPassword string) (*User, error) {
	raw, err := c.do(ctx, http.MethodPut, "/user", nil, accessToken, map[string]any{"password": newPassword})
	if err != nil {
		return nil, err
	}
	return decodeUser(raw)
}

func (c *Client) GetUser(ctx context.Context, accessToken string) (*User, error) {
	raw, err := c.do(ctx, http.MethodGet, "/user", nil, accessToken, nil)
	if err != nil {
		return nil, err
	}
	return decodeUser(raw)
}

func (c *Client) token(ctx context.Context, grant string, body map[string]any) (*Session, error) {
	raw, err := c.do(ctx, http.MethodPost, "/token", url.Values{"grant_type": {grant}}, "", body)
	if err != nil {
		return nil, err
	}
	var session Session
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, fmt.Errorf("auth: decode session: %w", err)
	}
	return &session, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, bearer string, body any) ([]byte, error) {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	var reader io.Reader
	if body != nil {
		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, fmt.Errorf("auth: encode request: %w", err)
		}
		reader = &buf
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("auth: build request: %w", err)
	}
	req.Header.Set("apikey", c.anonKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, newError(KindUnavailable, 0, "", err.Error(), err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, newError(KindUnavailable, resp.StatusCode, "", "read response", err)
	}
	if resp.StatusCode >= 300 {
		return nil, translate(resp.StatusCode, raw)
	}
	return raw, nil
}

func decodeUser(raw []byte) (*User, error) {
	var user User
	if err := json.Unmarshal(raw, &user); err != nil {
		return nil, fmt.Errorf("auth: decode user: %w", err)
	}
	return &user, nil
}
