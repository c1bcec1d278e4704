// Package session provides an HTTP client wrapper that manages a bearer
// access token backed by a refresh token. When a request comes back 401 the
// client refreshes the access token and retries the request once; concurrent
// 401s share a single refresh call.
package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// ErrSessionExpired is returned when no refresh token is available or the
// refresh attempt itself is rejected. The caller must re-authenticate.
var ErrSessionExpired = errors.New("session expired, please log in again")

const refreshPath = "/auth/token/refresh"

// Client wraps an http.Client with transparent access-token refresh.
type Client struct {
	baseURL string
	http    *http.Client

	mu      sync.RWMutex
	access  string
	refresh string

	group singleflight.Group
}

// New creates a session client for the given API base URL.
func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// SetTokens installs a token pair, typically after login or register.
func (c *Client) SetTokens(access, refresh string) {
	c.mu.Lock()
	c.access = access
	c.refresh = refresh
	c.mu.Unlock()
}

// Clear drops both tokens.
func (c *Client) Clear() {
	c.SetTokens("", "")
}

// AccessToken returns the current access token, empty when logged out.
func (c *Client) AccessToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.access
}

// Do sends the request with the current access token attached. On a 401 it
// refreshes the token and replays the request exactly once; a second 401
// means the session is gone. Requests with a non-replayable body must set
// req.GetBody (http.NewRequest does this for common body types).
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	usedToken := c.AccessToken()
	resp, err := c.send(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}
	drain(resp)

	if err := c.refreshAccess(req.Context(), usedToken); err != nil {
		return nil, err
	}

	retry, err := cloneRequest(req)
	if err != nil {
		return nil, err
	}
	resp, err = c.send(retry)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		drain(resp)
		c.Clear()
		return nil, ErrSessionExpired
	}
	return resp, nil
}

// drain empties and closes a response body so the connection can be reused.
func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}

func (c *Client) send(req *http.Request) (*http.Response, error) {
	if token := c.AccessToken(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return c.http.Do(req)
}

// refreshAccess exchanges the refresh token for a new access token. All
// concurrent callers share one refresh round-trip; on failure the session is
// cleared and every waiter gets the same error. staleToken is the access
// token the failed request carried: when the stored token already differs,
// another caller refreshed in the meantime and no request is made.
func (c *Client) refreshAccess(ctx context.Context, staleToken string) error {
	c.mu.RLock()
	refresh := c.refresh
	c.mu.RUnlock()
	if refresh == "" {
		c.Clear()
		return ErrSessionExpired
	}

	_, err, _ := c.group.Do("refresh", func() (any, error) {
		c.mu.RLock()
		current := c.access
		c.mu.RUnlock()
		if current != "" && current != staleToken {
			return current, nil
		}

		access, err := c.callRefresh(ctx, refresh)
		if err != nil {
			c.Clear()
			return nil, err
		}
		c.mu.Lock()
		c.access = access
		c.mu.Unlock()
		return access, nil
	})
	return err
}

func (c *Client) callRefresh(ctx context.Context, refreshToken string) (string, error) {
	body, err := json.Marshal(map[string]string{"refreshToken": refreshToken})
	if err != nil {
		return "", fmt.Errorf("marshal refresh request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+refreshPath, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("refresh token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", ErrSessionExpired
	}

	var out struct {
		Access string `json:"access"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode refresh response: %w", err)
	}
	if out.Access == "" {
		return "", ErrSessionExpired
	}
	return out.Access, nil
}

// cloneRequest rebuilds a request so its body can be sent again.
func cloneRequest(req *http.Request) (*http.Request, error) {
	clone := req.Clone(req.Context())
	if req.Body == nil || req.Body == http.NoBody {
		return clone, nil
	}
	if req.GetBody == nil {
		return nil, errors.New("cannot retry request without GetBody")
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, fmt.Errorf("rewind request body: %w", err)
	}
	clone.Body = body
	return clone, nil
}

// Get issues a GET request against the API.
func (c *Client) Get(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	return c.Do(req)
}

// PostJSON issues a POST request with a JSON body against the API.
func (c *Client) PostJSON(ctx context.Context, path string, payload any) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.Do(req)
}

// DecodeJSON reads and closes the response body into v.
func DecodeJSON(resp *http.Response, v any) error {
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil && err != io.EOF {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
