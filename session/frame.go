package session

import (
	"encoding/json"
	"time"

	"github.com/mirumirumi/JsStore/id"
)

// FrameType identifies the frame category.
type FrameType string

const (
	// FrameRequest carries a dispatched request to the session.
	FrameRequest FrameType = "request"

	// FrameResult carries the outcome of the request currently in
	// flight back to the engine.
	FrameResult FrameType = "result"

	// FrameFault is the out-of-band failure signal: the session could
	// not initialize. It is applied to the execution context status
	// only and never routed as a request result.
	FrameFault FrameType = "fault"
)

// Frame is the message envelope exchanged over the session channel.
type Frame struct {
	// ID uniquely identifies this frame. Request frames reuse the
	// request's own ID so results can echo it back.
	ID string `json:"id" msgpack:"id"`

	// Type categorizes the frame.
	Type FrameType `json:"type" msgpack:"type"`

	// Name names the operation for request frames (e.g., "select").
	Name string `json:"name,omitempty" msgpack:"name,omitempty"`

	// CorrelID links a result to its originating request frame.
	// Correlation stays positional; the router uses this as an
	// assertion guard, not as the routing key.
	CorrelID string `json:"correl_id,omitempty" msgpack:"correl_id,omitempty"`

	// Data carries the operation payload or the result value.
	Data json.RawMessage `json:"data,omitempty" msgpack:"data,omitempty"`

	// Error carries failure details for failed results and faults.
	Error *ErrorDetail `json:"error,omitempty" msgpack:"error,omitempty"`

	// Timeout is the per-request execution deadline of a request frame.
	// Zero means the session's default applies.
	Timeout time.Duration `json:"timeout,omitempty" msgpack:"timeout,omitempty"`

	// Timestamp records when this frame was created.
	Timestamp time.Time `json:"ts" msgpack:"ts"`
}

// ErrorDetail describes a failed result or a session fault.
type ErrorDetail struct {
	Code    int    `json:"code" msgpack:"code"`
	Message string `json:"message" msgpack:"message"`
	Details string `json:"details,omitempty" msgpack:"details,omitempty"`
}

// Well-known error codes.
const (
	ErrCodeBadRequest = 400
	ErrCodeNotFound   = 404
	ErrCodeInternal   = 500
)

// Failed reports whether the frame carries a failed result.
func (f *Frame) Failed() bool {
	return f.Error != nil
}

// NewRequestFrame creates a request frame for the given request ID,
// operation name, and payload.
func NewRequestFrame(requestID, name string, payload []byte) *Frame {
	return &Frame{
		ID:        requestID,
		Type:      FrameRequest,
		Name:      name,
		Data:      payload,
		Timestamp: time.Now().UTC(),
	}
}

// NewResultFrame creates a successful result for a request frame.
func NewResultFrame(correlID string, data []byte) *Frame {
	return &Frame{
		ID:        id.NewFrameID().String(),
		Type:      FrameResult,
		CorrelID:  correlID,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}
}

// NewErrorResultFrame creates a failed result for a request frame.
func NewErrorResultFrame(correlID string, code int, message string) *Frame {
	return &Frame{
		ID:       id.NewFrameID().String(),
		Type:     FrameResult,
		CorrelID: correlID,
		Error: &ErrorDetail{
			Code:    code,
			Message: message,
		},
		Timestamp: time.Now().UTC(),
	}
}

// NewFaultFrame creates the out-of-band session failure signal.
func NewFaultFrame(message string) *Frame {
	return &Frame{
		ID:   id.NewFrameID().String(),
		Type: FrameFault,
		Error: &ErrorDetail{
			Code:    ErrCodeInternal,
			Message: message,
		},
		Timestamp: time.Now().UTC(),
	}
}
