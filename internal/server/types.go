// Package server defines transport errors and utility helpers that are reused
// across client and hub logic.
package server

import (
	"errors"
	"strings"
)

var (
	// ErrSendBufferFull is returned by Deliver when a recipient cannot keep up.
	ErrSendBufferFull = errors.New("send buffer full")

	// ErrUnknownConnection is returned by Deliver for a connection that is no
	// longer registered.
	ErrUnknownConnection = errors.New("unknown connection")

	// ErrHubStopped is returned when registering a client on a stopped hub.
	ErrHubStopped = errors.New("hub stopped")
)

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
