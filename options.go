package jsstore

import (
	"log/slog"
	"time"

	"github.com/mirumirumi/JsStore/hook"
	"github.com/mirumirumi/JsStore/middleware"
	"github.com/mirumirumi/JsStore/session"
	"github.com/mirumirumi/JsStore/store"
)

// Option configures a Connection.
type Option func(*Connection) error

// WithLogger sets the structured logger for the connection.
func WithLogger(l *slog.Logger) Option {
	return func(c *Connection) error {
		c.logger = l
		return nil
	}
}

// WithStore sets the persistence backend for the connection.
func WithStore(s store.Store) Option {
	return func(c *Connection) error {
		if s == nil {
			return ErrNoStore
		}
		c.store = s
		return nil
	}
}

// WithCodec sets the frame codec used on the background session channel.
// Defaults to JSON; msgpack is available via session.GetCodec("msgpack").
func WithCodec(codec session.Codec) Option {
	return func(c *Connection) error {
		c.codec = codec
		return nil
	}
}

// WithLauncher sets a custom background session launcher. The default
// launcher runs the query executor in an in-process session goroutine.
func WithLauncher(l session.Launcher) Option {
	return func(c *Connection) error {
		c.launcher = l
		return nil
	}
}

// WithProbeWindow sets the bounded wait window of the session probe.
func WithProbeWindow(d time.Duration) Option {
	return func(c *Connection) error {
		c.config.ProbeWindow = d
		return nil
	}
}

// WithMaxPending bounds the request queue. Zero means unbounded.
func WithMaxPending(n int) Option {
	return func(c *Connection) error {
		c.config.MaxPending = n
		return nil
	}
}

// WithRateLimit sets token-bucket submission admission limits.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(c *Connection) error {
		c.config.RateLimit = perSecond
		c.config.RateBurst = burst
		return nil
	}
}

// WithRequestTimeout sets the default per-request execution deadline.
func WithRequestTimeout(d time.Duration) Option {
	return func(c *Connection) error {
		c.config.RequestTimeout = d
		return nil
	}
}

// WithShutdownTimeout sets the maximum time to wait for graceful shutdown.
func WithShutdownTimeout(d time.Duration) Option {
	return func(c *Connection) error {
		c.config.ShutdownTimeout = d
		return nil
	}
}

// WithExtension registers a lifecycle extension with the connection.
func WithExtension(e hook.Extension) Option {
	return func(c *Connection) error {
		c.extensions = append(c.extensions, e)
		return nil
	}
}

// WithMiddleware appends middleware to the query execution chain.
func WithMiddleware(m middleware.Middleware) Option {
	return func(c *Connection) error {
		c.mws = append(c.mws, m)
		return nil
	}
}
