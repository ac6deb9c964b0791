package hook

import (
	"context"
	"time"

	"github.com/mirumirumi/JsStore/request"
)

// Execution modes reported to request hooks.
const (
	// ModeBackground means the request ran inside the background session.
	ModeBackground = "background"

	// ModeDirect means the request ran directly in the caller context.
	ModeDirect = "direct"
)

// Extension is the base interface all extensions must implement.
type Extension interface {
	// Name returns a unique human-readable name for the extension.
	Name() string
}

// ──────────────────────────────────────────────────
// Request lifecycle hooks
// ──────────────────────────────────────────────────

// RequestQueued is called after a request is accepted into the queue.
type RequestQueued interface {
	OnRequestQueued(ctx context.Context, req *request.Request) error
}

// RequestDispatched is called when the queue head is sent for execution.
type RequestDispatched interface {
	OnRequestDispatched(ctx context.Context, req *request.Request, mode string) error
}

// RequestCompleted is called after a request finishes successfully.
type RequestCompleted interface {
	OnRequestCompleted(ctx context.Context, req *request.Request, mode string, elapsed time.Duration) error
}

// RequestFailed is called when a request finishes with an error.
type RequestFailed interface {
	OnRequestFailed(ctx context.Context, req *request.Request, mode string, err error) error
}

// ──────────────────────────────────────────────────
// Session hooks
// ──────────────────────────────────────────────────

// SessionRegistered is called when the probe confirms the background
// session is usable.
type SessionRegistered interface {
	OnSessionRegistered(ctx context.Context) error
}

// SessionFault is called when the background session signals failure.
type SessionFault interface {
	OnSessionFault(ctx context.Context, message string) error
}

// ProtocolViolation is called when a result frame arrives while nothing
// is in flight. The frame is dropped; this hook is the counting path.
type ProtocolViolation interface {
	OnProtocolViolation(ctx context.Context, frameID string) error
}

// ──────────────────────────────────────────────────
// Other lifecycle hooks
// ──────────────────────────────────────────────────

// StoreOpened is called once the backing store passed its open-time
// ping and migration.
type StoreOpened interface {
	OnStoreOpened(ctx context.Context) error
}

// Shutdown is called during graceful shutdown.
type Shutdown interface {
	OnShutdown(ctx context.Context) error
}
