package cdp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Session holds the browser-level debug endpoint and hands out per-tab
// connections. Closing the session releases local connections only; the
// remote browser keeps running until GPM is told to stop the profile.
type Session struct {
	debugAddress string // host:port from GPM's start response
	httpClient   *http.Client
}

// NewSession wraps a debug address ("127.0.0.1:9222") returned by GPM.
func NewSession(debugAddress string) *Session {
	return &Session{
		debugAddress: debugAddress,
		httpClient:   &http.Client{Timeout: 10 * time.Second},
	}
}

// DebugAddress returns the browser's debug endpoint.
func (s *Session) DebugAddress() string {
	return s.debugAddress
}

// Targets lists the browser's debuggable targets.
func (s *Session) Targets(ctx context.Context) ([]Target, error) {
	var targets []Target
	if err := s.getJSON(ctx, "/json", &targets); err != nil {
		return nil, err
	}
	return targets, nil
}

// Page connects to the first page target, the tab GPM opened with the
// profile. Fails when the browser exposes no page yet.
func (s *Session) Page(ctx context.Context) (*Client, error) {
	targets, err := s.Targets(ctx)
	if err != nil {
		return nil, err
	}
	for _, t := range targets {
		if t.Type == "page" && t.WebSocketDebuggerURL != "" {
			return connect(ctx, t)
		}
	}
	return nil, fmt.Errorf("no page target on %s", s.debugAddress)
}

// OpenTab opens a new tab at the given URL and connects to it.
func (s *Session) OpenTab(ctx context.Context, pageURL string) (*Client, error) {
	endpoint := "/json/new?" + url.Values{"url": {pageURL}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPut,
		"http://"+s.debugAddress+endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("opening tab: %w", err)
	}
	defer resp.Body.Close()

	var target Target
	if err := json.NewDecoder(resp.Body).Decode(&target); err != nil {
		return nil, fmt.Errorf("opening tab: %w", err)
	}
	if target.WebSocketDebuggerURL == "" {
		return nil, fmt.Errorf("new tab has no debugger url")
	}
	return connect(ctx, target)
}

// CloseTab closes a tab by target id. Best-effort; the response body is
// a plain-text acknowledgement we do not need.
func (s *Session) CloseTab(ctx context.Context, targetID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		"http://"+s.debugAddress+"/json/close/"+targetID, nil)
	if err != nil {
		return err
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("closing tab: %w", err)
	}
	resp.Body.Close()
	return nil
}

func (s *Session) getJSON(ctx context.Context, path string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		"http://"+s.debugAddress+path, nil)
	if err != nil {
		return err
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("debug endpoint %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("debug endpoint %s: status %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}
