package cdp

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// writeWait is time allowed to write a command to the socket
	writeWait = 10 * time.Second

	// defaultCallTimeout bounds a single command round-trip
	defaultCallTimeout = 30 * time.Second
)

// Client is a connection to one tab. Commands are correlated to replies
// by id; concurrent callers are safe.
type Client struct {
	target Target
	conn   *websocket.Conn

	writeMu sync.Mutex
	nextID  int64

	pendingMu sync.Mutex
	pending   map[int64]chan response

	closeOnce sync.Once
	done      chan struct{}
	readErr   error
}

// connect dials a target's debugger socket and starts the read loop.
func connect(ctx context.Context, target Target) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, target.WebSocketDebuggerURL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial failed: %w", err)
	}

	c := &Client{
		target:  target,
		conn:    conn,
		pending: make(map[int64]chan response),
		done:    make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// TargetID returns the id of the tab this client drives.
func (c *Client) TargetID() string {
	return c.target.ID
}

// Close releases the local connection. The tab and the browser keep
// running; GPM owns their lifetime.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.conn.Close()
	})
	return err
}

// readLoop dispatches replies to their waiting callers. Protocol events
// arrive on the same socket and are dropped.
func (c *Client) readLoop() {
	defer close(c.done)
	for {
		var resp response
		if err := c.conn.ReadJSON(&resp); err != nil {
			c.readErr = err
			c.failPending(err)
			return
		}
		if resp.ID == 0 {
			continue // event, not a reply
		}

		c.pendingMu.Lock()
		ch, ok := c.pending[resp.ID]
		delete(c.pending, resp.ID)
		c.pendingMu.Unlock()

		if ok {
			ch <- resp
		}
	}
}

func (c *Client) failPending(err error) {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	for id, ch := range c.pending {
		delete(c.pending, id)
		ch <- response{ID: id, Error: &commandError{Message: err.Error()}}
	}
}

// Call issues one CDP command and waits for its reply.
func (c *Client) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultCallTimeout)
		defer cancel()
	}

	c.writeMu.Lock()
	c.nextID++
	id := c.nextID
	cmd := command{ID: id, Method: method, Params: params}

	ch := make(chan response, 1)
	c.pendingMu.Lock()
	c.pending[id] = ch
	c.pendingMu.Unlock()

	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	err := c.conn.WriteJSON(cmd)
	c.writeMu.Unlock()

	if err != nil {
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
		return nil, fmt.Errorf("%s: write: %w", method, err)
	}

	select {
	case <-ctx.Done():
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
		return nil, fmt.Errorf("%s: %w", method, ctx.Err())
	case resp := <-ch:
		if resp.Error != nil {
			return nil, fmt.Errorf("%s: %s", method, resp.Error.Message)
		}
		return resp.Result, nil
	}
}

// Navigate loads a URL in the tab, then waits for the document to settle.
func (c *Client) Navigate(ctx context.Context, url string) error {
	if _, err := c.Call(ctx, "Page.navigate", map[string]any{"url": url}); err != nil {
		return err
	}
	return c.WaitReady(ctx, 10*time.Second)
}

// WaitReady polls document.readyState until the page reports complete or
// the wait budget runs out. A slow page is not an error; actions that
// follow have their own failure handling.
func (c *Client) WaitReady(ctx context.Context, wait time.Duration) error {
	deadline := time.Now().Add(wait)
	for time.Now().Before(deadline) {
		state, err := c.EvaluateString(ctx, "document.readyState")
		if err == nil && state == "complete" {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(500 * time.Millisecond):
		}
	}
	return nil
}

// Evaluate runs a JavaScript expression in the page and returns its
// JSON value. Promises are awaited.
func (c *Client) Evaluate(ctx context.Context, expr string) (json.RawMessage, error) {
	raw, err := c.Call(ctx, "Runtime.evaluate", map[string]any{
		"expression":    expr,
		"returnByValue": true,
		"awaitPromise":  true,
	})
	if err != nil {
		return nil, err
	}

	var result evaluateResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("evaluate: %w", err)
	}
	if result.ExceptionDetails != nil {
		detail := result.ExceptionDetails.Text
		if result.ExceptionDetails.Exception != nil {
			detail = result.ExceptionDetails.Exception.Description
		}
		return nil, fmt.Errorf("evaluate: page exception: %s", detail)
	}
	return result.Result.Value, nil
}

// EvaluateString evaluates an expression expected to yield a string.
func (c *Client) EvaluateString(ctx context.Context, expr string) (string, error) {
	value, err := c.Evaluate(ctx, expr)
	if err != nil {
		return "", err
	}
	var s string
	if err := json.Unmarshal(value, &s); err != nil {
		return "", fmt.Errorf("evaluate: expected string, got %s", value)
	}
	return s, nil
}

// EvaluateBool evaluates an expression expected to yield a boolean.
func (c *Client) EvaluateBool(ctx context.Context, expr string) (bool, error) {
	value, err := c.Evaluate(ctx, expr)
	if err != nil {
		return false, err
	}
	var b bool
	if err := json.Unmarshal(value, &b); err != nil {
		return false, fmt.Errorf("evaluate: expected bool, got %s", value)
	}
	return b, nil
}

// URL returns the tab's current location.
func (c *Client) URL(ctx context.Context) (string, error) {
	return c.EvaluateString(ctx, "window.location.href")
}
