//go:generate go run go.uber.org/mock/mockgen -source=sink.go -destination=../mocks/mock_sink.go -package=mocks
package room

// Sink delivers an event to a single connection. Implementations must not
// block on the recipient: a slow or closed connection returns an error and the
// coordinator moves on to the next recipient.
type Sink interface {
	Deliver(to ConnectionID, evt Event) error
}

// Preparer is implemented by sinks that can render an event once before it is
// delivered to many recipients. Fan-out passes the prepared event to Deliver.
type Preparer interface {
	Prepare(evt Event) (Event, error)
}
