// Package client is a Go SDK for the crèche API. It keeps the signed-in
// session on disk, routes by role and loads lists through Loader.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/noah-isme/creche-api/internal/models"
	"github.com/noah-isme/creche-api/pkg/navigation"
)

// Config configures a Client.
type Config struct {
	// BaseURL includes the API prefix, e.g. http://localhost:8080/api/v1.
	BaseURL    string
	DataDir    string
	Timeout    time.Duration
	RetryCount int
}

// Client talks to the API on behalf of one user.
type Client struct {
	http     *resty.Client
	sessions *SessionStore

	refreshMu sync.Mutex
}

type envelope struct {
	Data       json.RawMessage    `json:"data"`
	Pagination *models.Pagination `json:"pagination"`
	Error      *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// New builds a client and restores any persisted session from cfg.DataDir.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.New("client: base url is required")
	}
	sessions, err := OpenSessionStore(cfg.DataDir)
	if err != nil {
		return nil, err
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(timeout).
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(250 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		SetHeader("Accept", "application/json")
	httpClient.AddRetryCondition(func(r *resty.Response, err error) bool {
		if r == nil || r.Request == nil {
			return err != nil
		}
		return r.Request.Method == http.MethodGet && (err != nil || r.StatusCode() >= http.StatusInternalServerError)
	})
	return &Client{http: httpClient, sessions: sessions}, nil
}

// Sessions exposes the session holder for observers.
func (c *Client) Sessions() *SessionStore { return c.sessions }

// Destination resolves the landing screen for the current session.
func (c *Client) Destination() navigation.Destination { return c.sessions.Destination() }

// Login signs in and persists the resulting session.
func (c *Client) Login(ctx context.Context, email, password string) (Session, error) {
	var res models.LoginResponse
	err := c.call(ctx, http.MethodPost, "/auth/login", nil, models.LoginRequest{Email: email, Password: password}, &res, false)
	if err != nil {
		return Session{}, err
	}
	s := Session{
		AccessToken:  res.AccessToken,
		RefreshToken: res.RefreshToken,
		UserID:       res.User.ID,
		Email:        res.User.Email,
		FullName:     res.User.FullName,
		Role:         string(res.User.Role),
		ExpiresAt:    res.ExpiresAt(),
	}
	if err := c.sessions.replace(&s); err != nil {
		return Session{}, err
	}
	return s, nil
}

// Logout revokes the refresh token when possible and always clears the local session.
func (c *Client) Logout(ctx context.Context) error {
	s, ok := c.sessions.Current()
	if !ok {
		return nil
	}
	remoteErr := c.call(ctx, http.MethodPost, "/auth/logout", nil, models.RefreshTokenRequest{RefreshToken: s.RefreshToken}, nil, false)
	if err := c.sessions.replace(nil); err != nil {
		return err
	}
	if remoteErr != nil && !errors.Is(remoteErr, ErrSessionExpired) {
		return remoteErr
	}
	return nil
}

// Refresh exchanges the refresh token for a new access token. A refused
// refresh clears the session.
func (c *Client) Refresh(ctx context.Context) error {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()
	return c.refreshLocked(ctx, "")
}

// refreshLocked refreshes unless the access token already changed from stale.
func (c *Client) refreshLocked(ctx context.Context, stale string) error {
	s, ok := c.sessions.Current()
	if !ok || s.RefreshToken == "" {
		return ErrSessionExpired
	}
	if stale != "" && s.AccessToken != stale {
		return nil
	}
	var res models.RefreshTokenResponse
	err := c.call(ctx, http.MethodPost, "/auth/refresh", nil, models.RefreshTokenRequest{RefreshToken: s.RefreshToken}, &res, false)
	if err != nil {
		if errors.Is(err, ErrSessionExpired) || errors.Is(err, ErrRejected) {
			_ = c.sessions.replace(nil)
			return fmt.Errorf("%w: %v", ErrSessionExpired, err)
		}
		return err
	}
	next := s
	next.AccessToken = res.AccessToken
	if res.RefreshToken != "" {
		next.RefreshToken = res.RefreshToken
	}
	next.ExpiresAt = res.ExpiresAt()
	return c.sessions.replace(&next)
}

// do sends an authenticated request, refreshing once on 401.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out interface{}) (*models.Pagination, error) {
	env, err := c.send(ctx, method, path, query, body, true)
	if errors.Is(err, ErrSessionExpired) {
		s, _ := c.sessions.Current()
		c.refreshMu.Lock()
		refreshErr := c.refreshLocked(ctx, s.AccessToken)
		c.refreshMu.Unlock()
		if refreshErr != nil {
			return nil, refreshErr
		}
		env, err = c.send(ctx, method, path, query, body, true)
		if errors.Is(err, ErrSessionExpired) {
			_ = c.sessions.replace(nil)
		}
	}
	if err != nil {
		return nil, err
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return nil, fmt.Errorf("%w: decode %s: %v", ErrTransport, path, err)
		}
	}
	return env.Pagination, nil
}

func (c *Client) call(ctx context.Context, method, path string, query url.Values, body, out interface{}, authed bool) error {
	env, err := c.send(ctx, method, path, query, body, authed)
	if err != nil {
		return err
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("%w: decode %s: %v", ErrTransport, path, err)
		}
	}
	return nil
}

func (c *Client) send(ctx context.Context, method, path string, query url.Values, body interface{}, authed bool) (*envelope, error) {
	req := c.http.R().SetContext(ctx)
	if authed {
		s, ok := c.sessions.Current()
		if !ok {
			return nil, ErrSessionExpired
		}
		req.SetAuthToken(s.AccessToken)
	}
	if query != nil {
		req.SetQueryParamsFromValues(query)
	}
	if body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(body)
	}
	resp, err := req.Execute(method, path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %v", ErrTransport, method, path, err)
	}

	var env envelope
	if raw := resp.Body(); len(raw) > 0 {
		if err := json.Unmarshal(raw, &env); err != nil && resp.IsSuccess() {
			return nil, fmt.Errorf("%w: decode %s: %v", ErrTransport, path, err)
		}
	}
	if resp.IsSuccess() {
		return &env, nil
	}
	apiErr := &APIError{Status: resp.StatusCode(), Message: http.StatusText(resp.StatusCode())}
	if env.Error != nil {
		apiErr.Code, apiErr.Message = env.Error.Code, env.Error.Message
	}
	return nil, apiErr
}
