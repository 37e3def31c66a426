package domain

import "context"

// EventSink receives an Event for every dispatched request
// implementations must not block the request path
type EventSink interface {
	Record(ctx context.Context, e Event)
}

// Dispatcher answers protocol requests
type Dispatcher interface {
	Dispatch(ctx context.Context, req Request) (*Response, error)
}
