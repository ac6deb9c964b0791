// Package middleware provides composable middleware for request execution.
//
// A [Middleware] is a function that wraps a request handler. Middleware are
// composed into a chain using [Chain] and applied around each execution,
// on both execution paths: inside the background session and during direct
// fallback. They are applied right-to-left: the first middleware in the
// slice is the outermost wrapper.
//
//	// logging → recover → handler
//	chain := middleware.Chain(middleware.Logging(logger), middleware.Recover(logger))
//
// # Built-in Middleware
//
//   - [Logging] — logs request name, duration, and outcome at each execution
//   - [Recover] — catches panics and converts them to errors
//   - [Timeout] — cancels the request context after its deadline
//   - [Tracing] — wraps execution in an OpenTelemetry span
//   - [Metrics] — records per-request duration and outcome counters
//
// # Writing Custom Middleware
//
//	func MyMiddleware() middleware.Middleware {
//	    return func(ctx context.Context, req *request.Request, next middleware.Handler) error {
//	        // pre-processing
//	        err := next(ctx)
//	        // post-processing
//	        return err
//	    }
//	}
//
// Middleware MUST call next to continue the chain unless intentionally
// short-circuiting (e.g., circuit breaker, rate limiting).
package middleware
