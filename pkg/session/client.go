// Package session is a Go client for the TaxFlow API that keeps the signed-in
// token and user in a Storage.
package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	DefaultLogoutDelay     = time.Second
	DefaultRefreshInterval = time.Minute

	defaultTimeout = 15 * time.Second
	maxResponse    = 1 << 20
)

var sixDigits = regexp.MustCompile(`^[0-9]{6}$`)

// Client holds the current session and talks to the API on its behalf.
// It is safe for concurrent use.
type Client struct {
	baseURL         string
	http            *http.Client
	storage         Storage
	logoutDelay     time.Duration
	refreshInterval time.Duration
	log             zerolog.Logger

	mu    sync.RWMutex
	token string
	user  *User
}

type Option func(*Client)

// WithHTTPClient sets the client whose transport is wrapped. Its Timeout is kept.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithLogoutDelay sets how long after a rejected token the session is dropped.
func WithLogoutDelay(d time.Duration) Option {
	return func(c *Client) {
		if d >= 0 {
			c.logoutDelay = d
		}
	}
}

// WithRefreshInterval sets the pace of Watch.
func WithRefreshInterval(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.refreshInterval = d
		}
	}
}

func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) { c.log = log }
}

// New returns a Client for the API at baseURL. A nil storage keeps the
// session in memory.
func New(baseURL string, storage Storage, opts ...Option) *Client {
	if storage == nil {
		storage = NewMemoryStorage()
	}
	c := &Client{
		baseURL:         strings.TrimRight(baseURL, "/"),
		http:            &http.Client{Timeout: defaultTimeout},
		storage:         storage,
		logoutDelay:     DefaultLogoutDelay,
		refreshInterval: DefaultRefreshInterval,
		log:             zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	base := c.http.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	wrapped := *c.http
	wrapped.Transport = &interceptor{next: base, client: c}
	c.http = &wrapped
	return c
}

// LoginResult is what Login returns. When Requires2FA is set nothing has
// been stored and the caller must complete VerifyTwoFactor.
// PendingSessionID is the userId the server returned with requires2FA.
type LoginResult struct {
	Requires2FA      bool
	PendingSessionID string
	UserID           string
	ExpiresAt        time.Time
	User             *User
}

type authResponse struct {
	Success   bool      `json:"success"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	User      *User     `json:"user"`

	Requires2FA      bool   `json:"requires2FA"`
	UserID           string `json:"userId"`
	PendingSessionID string `json:"pendingSessionId"`
}

type meResponse struct {
	Success bool   `json:"success"`
	User    *User  `json:"user"`
	View    Screen `json:"view"`
}

// Login signs in with email and password.
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	var resp authResponse
	body := map[string]string{"email": email, "password": password}
	if err := c.call(ctx, http.MethodPost, "/auth/login", "", body, &resp); err != nil {
		return nil, err
	}

	if resp.Requires2FA {
		pending := resp.PendingSessionID
		if pending == "" {
			pending = resp.UserID
		}
		return &LoginResult{
			Requires2FA:      true,
			PendingSessionID: pending,
			ExpiresAt:        resp.ExpiresAt,
		}, nil
	}

	user, err := c.establish(ctx, resp)
	if err != nil {
		return nil, err
	}
	return &LoginResult{UserID: user.ID, ExpiresAt: resp.ExpiresAt, User: user}, nil
}

// VerifyTwoFactor completes a login that returned Requires2FA.
func (c *Client) VerifyTwoFactor(ctx context.Context, pendingSessionID, code string) (*User, error) {
	code = strings.TrimSpace(code)
	if !sixDigits.MatchString(code) {
		return nil, ErrInvalidCode
	}

	var resp authResponse
	body := map[string]string{"userId": pendingSessionID, "token": code}
	if err := c.call(ctx, http.MethodPost, "/auth/login/verify-2fa", "", body, &resp); err != nil {
		return nil, err
	}
	return c.establish(ctx, resp)
}

// establish stores the issued token with the login snapshot, then replaces
// the snapshot with the record from /user/me.
func (c *Client) establish(ctx context.Context, resp authResponse) (*User, error) {
	if resp.Token == "" {
		return nil, errors.New("session: response carried no token")
	}
	if err := c.store(resp.Token, resp.User); err != nil {
		return nil, err
	}

	user, err := c.RefreshUser(ctx)
	if errors.Is(err, ErrUnauthorized) {
		return nil, err
	}
	if err != nil {
		c.log.Warn().Err(err).Msg("refresh after sign-in failed, keeping login snapshot")
		return resp.User.clone(), nil
	}
	return user, nil
}

// RefreshUser reloads the user from the server. A 401 signs out.
func (c *Client) RefreshUser(ctx context.Context) (*User, error) {
	tok := c.Token()
	if tok == "" {
		return nil, ErrNotSignedIn
	}

	var resp meResponse
	err := c.call(ctx, http.MethodGet, "/user/me", tok, nil, &resp)
	if errors.Is(err, ErrUnauthorized) {
		c.logoutIf(tok)
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	if resp.User == nil {
		return nil, errors.New("session: /user/me returned no user")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != tok {
		return nil, ErrNotSignedIn
	}
	c.user = resp.User
	if err := c.storage.Save(Snapshot{Token: c.token, User: c.user}); err != nil {
		return nil, err
	}
	return resp.User.clone(), nil
}

// Logout forgets the session locally. The server is not contacted.
func (c *Client) Logout() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clearLocked()
}

func (c *Client) logoutIf(tok string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token == tok {
		_ = c.clearLocked()
	}
}

func (c *Client) clearLocked() error {
	c.token = ""
	c.user = nil
	return c.storage.Clear()
}

// UpdateUser applies fn to the cached user and persists the result.
func (c *Client) UpdateUser(fn func(*User)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.user == nil {
		return ErrNotSignedIn
	}
	u := c.user.clone()
	fn(u)
	c.user = u
	return c.storage.Save(Snapshot{Token: c.token, User: c.user})
}

// Restore loads the stored session so User is usable immediately, then
// refreshes it in the background. The channel yields the refresh result and
// is closed; with nothing stored it is closed straight away.
func (c *Client) Restore(ctx context.Context) <-chan error {
	done := make(chan error, 1)

	snap, err := c.storage.Load()
	if err != nil {
		done <- err
		close(done)
		return done
	}
	if snap.Empty() {
		close(done)
		return done
	}

	c.mu.Lock()
	c.token, c.user = snap.Token, snap.User
	c.mu.Unlock()

	go func() {
		defer close(done)
		_, err := c.RefreshUser(ctx)
		done <- err
	}()
	return done
}

// Watch refreshes the user every refresh interval until ctx ends or the
// server rejects the token.
func (c *Client) Watch(ctx context.Context) error {
	limiter := rate.NewLimiter(rate.Every(c.refreshInterval), 1)
	for {
		if err := limiter.Wait(ctx); err != nil {
			// Wait fails early when the deadline falls before the next tick.
			<-ctx.Done()
			return ctx.Err()
		}
		if c.Token() == "" {
			continue
		}

		_, err := c.RefreshUser(ctx)
		switch {
		case err == nil:
		case errors.Is(err, ErrUnauthorized):
			return err
		case ctx.Err() != nil:
			return ctx.Err()
		default:
			c.log.Warn().Err(err).Msg("background refresh failed")
		}
	}
}

// Token returns the current session token, empty when signed out.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// User returns a copy of the cached user, nil when signed out.
func (c *Client) User() *User {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.user.clone()
}

// View returns the screen for the cached user.
func (c *Client) View() (Screen, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.user == nil {
		return "", false
	}
	return c.user.View(), true
}

// Do sends an authenticated request to path and decodes a JSON reply into
// out. A 401 schedules a logout.
func (c *Client) Do(ctx context.Context, method, path string, in, out any) error {
	tok := c.Token()
	if tok == "" {
		return ErrNotSignedIn
	}
	return c.call(ctx, method, path, tok, in, out)
}

func (c *Client) store(tok string, user *User) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token, c.user = tok, user.clone()
	return c.storage.Save(Snapshot{Token: c.token, User: c.user})
}

func (c *Client) call(ctx context.Context, method, path, tok string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("session: encode request: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("session: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("session: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponse))
	if err != nil {
		return fmt.Errorf("session: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var envelope struct {
			Error         string `json:"error"`
			RemainingTime int    `json:"remainingTime"`
		}
		if json.Unmarshal(data, &envelope) == nil {
			apiErr.Message = envelope.Error
			apiErr.RetryAfter = envelope.RemainingTime
		}
		return apiErr
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("session: decode response: %w", err)
	}
	return nil
}
