// Package request defines the unit of work handled by the dispatch engine:
// an opaque name/payload pair with caller-attached completion handlers.
// The engine never interprets the payload; the query package gives it
// meaning at execution time.
package request

import (
	"sync/atomic"
	"time"

	"github.com/mirumirumi/JsStore/id"
)

// State represents the lifecycle state of a request.
type State string

const (
	// StateQueued means the request is waiting in the pending queue.
	StateQueued State = "queued"
	// StateDispatched means the request is the queue head and in flight.
	StateDispatched State = "dispatched"
	// StateCompleted means a result was routed and a handler invoked.
	StateCompleted State = "completed"
)

// OnSuccess is the success completion handler. The result is the
// operation-specific payload, or nil when the operation has no
// meaningful return.
type OnSuccess func(result []byte)

// OnError is the failure completion handler.
type OnError func(err error)

// Request is a single unit of work. It is owned exclusively by the
// dispatch engine from submission until completion; after one of its
// handlers fires the object is discarded.
type Request struct {
	ID      id.RequestID
	Name    string
	Payload []byte
	State   State

	// Timeout is the per-request execution deadline. Zero means the
	// engine default applies.
	Timeout time.Duration

	EnqueuedAt   time.Time
	DispatchedAt *time.Time

	onSuccess OnSuccess
	onError   OnError

	// completed guards the at-most-once handler invocation.
	completed atomic.Bool
}

// Option configures a request at creation.
type Option func(*Request)

// WithTimeout sets the per-request execution deadline, overriding the
// engine default for this request only.
func WithTimeout(d time.Duration) Option {
	return func(r *Request) { r.Timeout = d }
}

// New creates a request in the queued state. Either handler may be nil.
func New(name string, payload []byte, onSuccess OnSuccess, onError OnError, opts ...Option) *Request {
	r := &Request{
		ID:         id.NewRequestID(),
		Name:       name,
		Payload:    payload,
		State:      StateQueued,
		EnqueuedAt: time.Now().UTC(),
		onSuccess:  onSuccess,
		onError:    onError,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// MarkDispatched transitions the request to the in-flight state.
func (r *Request) MarkDispatched() {
	now := time.Now().UTC()
	r.State = StateDispatched
	r.DispatchedAt = &now
}

// Succeed invokes the success handler. It reports whether the handler
// set fired; a second call on an already-completed request is a no-op
// returning false.
func (r *Request) Succeed(result []byte) bool {
	if !r.completed.CompareAndSwap(false, true) {
		return false
	}
	r.State = StateCompleted
	if r.onSuccess != nil {
		r.onSuccess(result)
	}
	return true
}

// Fail invokes the error handler under the same at-most-once guarantee
// as Succeed.
func (r *Request) Fail(err error) bool {
	if !r.completed.CompareAndSwap(false, true) {
		return false
	}
	r.State = StateCompleted
	if r.onError != nil {
		r.onError(err)
	}
	return true
}

// Completed reports whether a completion handler has already fired.
func (r *Request) Completed() bool {
	return r.completed.Load()
}
