// Package cdp is a minimal Chrome DevTools Protocol client, just enough
// to drive a GPM-hosted browser: target discovery over the debug HTTP
// endpoint, command/response correlation over WebSocket, navigation and
// JavaScript evaluation. Messages flow over one WebSocket per tab.
package cdp

import "encoding/json"

// command is an outgoing CDP request.
type command struct {
	ID     int64  `json:"id"`
	Method string `json:"method"`
	Params any    `json:"params,omitempty"`
}

// response is an incoming CDP message: either a reply to a command
// (carries our id) or an event (carries a method). Events are ignored;
// this client only issues direct commands.
type response struct {
	ID     int64           `json:"id"`
	Method string          `json:"method,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *commandError   `json:"error,omitempty"`
}

type commandError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Target describes one debuggable page, as listed by GET /json.
type Target struct {
	ID                   string `json:"id"`
	Type                 string `json:"type"`
	Title                string `json:"title"`
	URL                  string `json:"url"`
	WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
}

// evaluateResult is the shape of Runtime.evaluate's reply.
type evaluateResult struct {
	Result struct {
		Type    string          `json:"type"`
		Value   json.RawMessage `json:"value,omitempty"`
		Subtype string          `json:"subtype,omitempty"`
	} `json:"result"`
	ExceptionDetails *struct {
		Text      string `json:"text"`
		Exception *struct {
			Description string `json:"description"`
		} `json:"exception,omitempty"`
	} `json:"exceptionDetails,omitempty"`
}
