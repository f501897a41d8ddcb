// Package gpm talks to a local GPM-Login instance over its HTTP API:
// start and stop browser profiles, check service health, and connect to
// a started profile's DevTools endpoint. Debug addresses are cached per
// profile so a dropped connection can be re-established without
// restarting the environment.
package gpm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/phongvanairdrop/NamsoCheckIn-Automation-GPM/internal/cdp"
)

const (
	// apiTimeout bounds every GPM API call
	apiTimeout = 30 * time.Second

	// healthTimeout is tighter; health checks should answer fast
	healthTimeout = 5 * time.Second

	connectRetries = 10
	connectDelay   = time.Second
)

// WindowOptions positions and sizes the profile's browser window.
// Zero-value fields are omitted from the start request.
type WindowOptions struct {
	Width  int
	Height int
	X      int
	Y      int
	HasPos bool
	Scale  float64
}

// Profile is one entry from GPM's profile listing.
type Profile struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Client wraps the GPM-Login HTTP API.
type Client struct {
	apiBase    string
	httpClient *http.Client
	logger     *slog.Logger

	mu    sync.Mutex
	cache map[string]string // profile id -> debug address
}

// NewClient builds a client against the given API base, e.g.
// "http://127.0.0.1:19995".
func NewClient(apiBase string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		apiBase:    apiBase,
		httpClient: &http.Client{Timeout: apiTimeout},
		logger:     logger,
		cache:      make(map[string]string),
	}
}

// Healthy reports whether the GPM service answers its profile listing.
// It never returns an error; an unreachable service is simply unhealthy.
func (c *Client) Healthy(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiBase+"/api/v3/profiles", nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// Profiles lists all profiles known to GPM.
func (c *Client) Profiles(ctx context.Context) ([]Profile, error) {
	body, err := c.get(ctx, "/api/v3/profiles")
	if err != nil {
		return nil, err
	}

	var payload struct {
		Data []Profile `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("parsing profile list: %w", err)
	}
	return payload.Data, nil
}

// Start launches a profile's browser and returns its debug address.
// The address is cached for later Reconnect calls.
func (c *Client) Start(ctx context.Context, profileID string, opts *WindowOptions) (string, error) {
	path := "/api/v3/profiles/start/" + profileID
	if query := encodeWindow(opts); query != "" {
		path += "?" + query
	}

	body, err := c.get(ctx, path)
	if err != nil {
		return "", fmt.Errorf("starting profile %s: %w", profileID, err)
	}

	addr, err := parseDebugAddress(body)
	if err != nil {
		return "", fmt.Errorf("starting profile %s: %w", profileID, err)
	}

	c.mu.Lock()
	c.cache[profileID] = addr
	c.mu.Unlock()

	return addr, nil
}

// Stop tells GPM to close the profile's browser entirely, not just
// disconnect. Failures are logged and swallowed; stop is best-effort
// cleanup and must never mask the error that led here.
func (c *Client) Stop(ctx context.Context, profileID string) {
	if _, err := c.get(ctx, "/api/v3/profiles/close/"+profileID); err != nil {
		c.logger.Warn("failed to stop profile", "profile_id", profileID, "error", err)
	}

	c.mu.Lock()
	delete(c.cache, profileID)
	c.mu.Unlock()
}

// Connect attaches to a debug address, retrying while the browser is
// still coming up.
func (c *Client) Connect(ctx context.Context, debugAddress string) (*cdp.Session, *cdp.Client, error) {
	session := cdp.NewSession(debugAddress)

	var lastErr error
	for i := 0; i < connectRetries; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return nil, nil, ctx.Err()
			case <-time.After(connectDelay):
			}
		}
		page, err := session.Page(ctx)
		if err == nil {
			return session, page, nil
		}
		lastErr = err
	}
	return nil, nil, fmt.Errorf("connecting to %s: %w", debugAddress, lastErr)
}

// Reconnect attaches to a previously started profile using its cached
// debug address.
func (c *Client) Reconnect(ctx context.Context, profileID string) (*cdp.Session, *cdp.Client, error) {
	c.mu.Lock()
	addr, ok := c.cache[profileID]
	c.mu.Unlock()
	if !ok {
		return nil, nil, fmt.Errorf("profile %s: %w", profileID, ErrNotCached)
	}
	return c.Connect(ctx, addr)
}

// Disconnect drops the local DevTools connection. The browser keeps
// running; use Stop to close it.
func (c *Client) Disconnect(page *cdp.Client) {
	if page == nil {
		return
	}
	if err := page.Close(); err != nil {
		c.logger.Warn("disconnect error", "error", err)
	}
}

// CachedAddress returns the cached debug address for a profile, if any.
func (c *Client) CachedAddress(profileID string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	addr, ok := c.cache[profileID]
	return addr, ok
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiBase+path, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GPM API %s: status %d", path, resp.StatusCode)
	}
	return body, nil
}

// parseDebugAddress extracts the debugging address from a start
// response. GPM versions differ: the field may sit under "data" or at
// the top level. Both shapes are tried in order.
func parseDebugAddress(body []byte) (string, error) {
	var payload struct {
		Data struct {
			RemoteDebuggingAddress string `json:"remote_debugging_address"`
		} `json:"data"`
		RemoteDebuggingAddress string `json:"remote_debugging_address"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", fmt.Errorf("parsing start response: %w", err)
	}
	if payload.Data.RemoteDebuggingAddress != "" {
		return payload.Data.RemoteDebuggingAddress, nil
	}
	if payload.RemoteDebuggingAddress != "" {
		return payload.RemoteDebuggingAddress, nil
	}
	return "", ErrNoEndpoint
}

func encodeWindow(opts *WindowOptions) string {
	if opts == nil {
		return ""
	}
	params := url.Values{}
	if opts.Width > 0 && opts.Height > 0 {
		params.Set("win_size", fmt.Sprintf("%d,%d", opts.Width, opts.Height))
	}
	if opts.HasPos {
		params.Set("win_pos", fmt.Sprintf("%d,%d", opts.X, opts.Y))
	}
	if opts.Scale > 0 {
		params.Set("win_scale", strconv.FormatFloat(opts.Scale, 'g', -1, 64))
	}
	return params.Encode()
}
