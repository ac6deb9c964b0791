package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/mirumirumi/JsStore/request"
)

// Timeout returns middleware that enforces a per-request execution
// deadline. A request with a non-zero Timeout gets its own deadline;
// otherwise fallback applies (zero fallback means no deadline). When the
// deadline is exceeded the context is cancelled and the handler should
// return context.DeadlineExceeded.
func Timeout(fallback time.Duration, logger *slog.Logger) Middleware {
	return func(ctx context.Context, req *request.Request, next Handler) error {
		timeout := req.Timeout
		if timeout <= 0 {
			timeout = fallback
		}
		if timeout > 0 {
			logger.Debug("request timeout set",
				slog.String("request_id", req.ID.String()),
				slog.Duration("timeout", timeout),
			)
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		return next(ctx)
	}
}
