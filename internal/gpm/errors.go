package gpm

import "errors"

var (
	// ErrNoEndpoint means a start response carried no debugging address
	// in any known shape.
	ErrNoEndpoint = errors.New("no remote debugging address in response")

	// ErrNotCached means reconnect was asked for a profile that was
	// never started (or was already stopped) in this process.
	ErrNotCached = errors.New("no cached debug address for profile")
)
