package hook

import (
	"context"
	"log/slog"
	"time"

	"github.com/mirumirumi/JsStore/request"
)

// Named entry types pair a hook implementation with the extension name
// captured at registration time. This avoids type-asserting back to
// Extension inside the emit methods.
type requestQueuedEntry struct {
	name string
	hook RequestQueued
}

type requestDispatchedEntry struct {
	name string
	hook RequestDispatched
}

type requestCompletedEntry struct {
	name string
	hook RequestCompleted
}

type requestFailedEntry struct {
	name string
	hook RequestFailed
}

type sessionRegisteredEntry struct {
	name string
	hook SessionRegistered
}

type sessionFaultEntry struct {
	name string
	hook SessionFault
}

type protocolViolationEntry struct {
	name string
	hook ProtocolViolation
}

type storeOpenedEntry struct {
	name string
	hook StoreOpened
}

type shutdownEntry struct {
	name string
	hook Shutdown
}

// Registry holds registered extensions and dispatches lifecycle events
// to them. It type-caches extensions at registration time so emit calls
// iterate only over extensions that implement the relevant hook.
type Registry struct {
	extensions []Extension
	logger     *slog.Logger

	// Type-cached slices for each lifecycle hook.
	requestQueued     []requestQueuedEntry
	requestDispatched []requestDispatchedEntry
	requestCompleted  []requestCompletedEntry
	requestFailed     []requestFailedEntry
	sessionRegistered []sessionRegisteredEntry
	sessionFault      []sessionFaultEntry
	protocolViolation []protocolViolationEntry
	storeOpened       []storeOpenedEntry
	shutdown          []shutdownEntry
}

// NewRegistry creates an extension registry with the given logger.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{logger: logger}
}

// Register adds an extension and type-asserts it into all applicable
// hook caches. Extensions are notified in registration order.
func (r *Registry) Register(e Extension) {
	r.extensions = append(r.extensions, e)
	name := e.Name()

	if h, ok := e.(RequestQueued); ok {
		r.requestQueued = append(r.requestQueued, requestQueuedEntry{name, h})
	}
	if h, ok := e.(RequestDispatched); ok {
		r.requestDispatched = append(r.requestDispatched, requestDispatchedEntry{name, h})
	}
	if h, ok := e.(RequestCompleted); ok {
		r.requestCompleted = append(r.requestCompleted, requestCompletedEntry{name, h})
	}
	if h, ok := e.(RequestFailed); ok {
		r.requestFailed = append(r.requestFailed, requestFailedEntry{name, h})
	}
	if h, ok := e.(SessionRegistered); ok {
		r.sessionRegistered = append(r.sessionRegistered, sessionRegisteredEntry{name, h})
	}
	if h, ok := e.(SessionFault); ok {
		r.sessionFault = append(r.sessionFault, sessionFaultEntry{name, h})
	}
	if h, ok := e.(ProtocolViolation); ok {
		r.protocolViolation = append(r.protocolViolation, protocolViolationEntry{name, h})
	}
	if h, ok := e.(StoreOpened); ok {
		r.storeOpened = append(r.storeOpened, storeOpenedEntry{name, h})
	}
	if h, ok := e.(Shutdown); ok {
		r.shutdown = append(r.shutdown, shutdownEntry{name, h})
	}
}

// Extensions returns all registered extensions.
func (r *Registry) Extensions() []Extension { return r.extensions }

// ──────────────────────────────────────────────────
// Request event emitters
// ──────────────────────────────────────────────────

// EmitRequestQueued notifies all extensions that implement RequestQueued.
func (r *Registry) EmitRequestQueued(ctx context.Context, req *request.Request) {
	for _, e := range r.requestQueued {
		if err := e.hook.OnRequestQueued(ctx, req); err != nil {
			r.logHookError("OnRequestQueued", e.name, err)
		}
	}
}

// EmitRequestDispatched notifies all extensions that implement RequestDispatched.
func (r *Registry) EmitRequestDispatched(ctx context.Context, req *request.Request, mode string) {
	for _, e := range r.requestDispatched {
		if err := e.hook.OnRequestDispatched(ctx, req, mode); err != nil {
			r.logHookError("OnRequestDispatched", e.name, err)
		}
	}
}

// EmitRequestCompleted notifies all extensions that implement RequestCompleted.
func (r *Registry) EmitRequestCompleted(ctx context.Context, req *request.Request, mode string, elapsed time.Duration) {
	for _, e := range r.requestCompleted {
		if err := e.hook.OnRequestCompleted(ctx, req, mode, elapsed); err != nil {
			r.logHookError("OnRequestCompleted", e.name, err)
		}
	}
}

// EmitRequestFailed notifies all extensions that implement RequestFailed.
func (r *Registry) EmitRequestFailed(ctx context.Context, req *request.Request, mode string, reqErr error) {
	for _, e := range r.requestFailed {
		if err := e.hook.OnRequestFailed(ctx, req, mode, reqErr); err != nil {
			r.logHookError("OnRequestFailed", e.name, err)
		}
	}
}

// ──────────────────────────────────────────────────
// Session event emitters
// ──────────────────────────────────────────────────

// EmitSessionRegistered notifies all extensions that implement SessionRegistered.
func (r *Registry) EmitSessionRegistered(ctx context.Context) {
	for _, e := range r.sessionRegistered {
		if err := e.hook.OnSessionRegistered(ctx); err != nil {
			r.logHookError("OnSessionRegistered", e.name, err)
		}
	}
}

// EmitSessionFault notifies all extensions that implement SessionFault.
func (r *Registry) EmitSessionFault(ctx context.Context, message string) {
	for _, e := range r.sessionFault {
		if err := e.hook.OnSessionFault(ctx, message); err != nil {
			r.logHookError("OnSessionFault", e.name, err)
		}
	}
}

// EmitProtocolViolation notifies all extensions that implement ProtocolViolation.
func (r *Registry) EmitProtocolViolation(ctx context.Context, frameID string) {
	for _, e := range r.protocolViolation {
		if err := e.hook.OnProtocolViolation(ctx, frameID); err != nil {
			r.logHookError("OnProtocolViolation", e.name, err)
		}
	}
}

// ──────────────────────────────────────────────────
// Other event emitters
// ──────────────────────────────────────────────────

// EmitStoreOpened notifies all extensions that implement StoreOpened.
func (r *Registry) EmitStoreOpened(ctx context.Context) {
	for _, e := range r.storeOpened {
		if err := e.hook.OnStoreOpened(ctx); err != nil {
			r.logHookError("OnStoreOpened", e.name, err)
		}
	}
}

// EmitShutdown notifies all extensions that implement Shutdown.
func (r *Registry) EmitShutdown(ctx context.Context) {
	for _, e := range r.shutdown {
		if err := e.hook.OnShutdown(ctx); err != nil {
			r.logHookError("OnShutdown", e.name, err)
		}
	}
}

// logHookError logs a warning when a lifecycle hook returns an error.
// Errors from hooks are never propagated — they must not block dispatch.
func (r *Registry) logHookError(hook, extName string, err error) {
	r.logger.Warn("extension hook error",
		slog.String("hook", hook),
		slog.String("extension", extName),
		slog.String("error", err.Error()),
	)
}
