// Package server implements the HTTP and WebSocket transport of the relay.
//
// The Hub owns every connection and the room coordinator; clients decode
// frames with the protocol package and dispatch them to the coordinator,
// which fans events back out through the hub. Configuration, routing,
// handlers, and shutdown helpers live in their own files.
package server
