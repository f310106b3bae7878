// Package room implements the room coordinator: a process-local registry
// mapping room identifiers to their connected participants, with presence
// notifications and broadcast primitives scoped to a single room.
//
// The coordinator never owns a connection. It refers to connections by id and
// hands every outgoing event to a Sink supplied by the transport layer.
package room
