// Package hook defines the extension system for jsstore.
//
// Extensions are notified of lifecycle events and can react to them —
// recording metrics, writing audit logs, emitting notifications, etc.
// Each lifecycle hook is a separate interface so extensions opt in only
// to the events they care about.
//
// # Implementing an Extension
//
//	type MyExtension struct{}
//
//	func (e *MyExtension) Name() string { return "my-extension" }
//
//	// Opt in to specific hooks by implementing their interfaces.
//	func (e *MyExtension) OnRequestCompleted(ctx context.Context, req *request.Request, mode string, elapsed time.Duration) error {
//	    log.Printf("request %s completed in %s", req.ID, elapsed)
//	    return nil
//	}
//
// # Request Lifecycle Hooks
//
//   - [RequestQueued] — request was accepted into the queue
//   - [RequestDispatched] — request left the queue head for execution
//   - [RequestCompleted] — request finished successfully
//   - [RequestFailed] — request finished with an error
//
// # Session Hooks
//
//   - [SessionRegistered] — the probe confirmed the background session
//   - [SessionFault] — the background session signaled failure
//   - [ProtocolViolation] — a result arrived with nothing in flight
//
// # Other Hooks
//
//   - [StoreOpened] — the backing store passed its open-time checks
//   - [Shutdown] — the engine is shutting down gracefully
//
// The [Registry] fans out each event to all registered extensions that
// implement the corresponding hook interface.
package hook
