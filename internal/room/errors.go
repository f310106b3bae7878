package room

import "errors"

var (
	// ErrNotAMember is returned when a connection broadcasts to a room it has
	// not joined. Transports treat it as a silent no-op.
	ErrNotAMember = errors.New("connection is not a member of the room")

	// ErrAlreadyInRoom is returned when a connection joins a second room
	// without leaving the first one.
	ErrAlreadyInRoom = errors.New("connection already belongs to another room")

	// ErrMalformedPayload is returned when a call is missing its room id or
	// connection id. Nothing is mutated or broadcast.
	ErrMalformedPayload = errors.New("malformed payload")
)
