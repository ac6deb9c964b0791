package jsstore

import "time"

// Config holds configuration for a Connection.
type Config struct {
	// ProbeWindow is how long the session probe waits for an out-of-band
	// fault signal after launching the background session before declaring
	// it usable. A pragmatic grace period, not a protocol guarantee.
	ProbeWindow time.Duration

	// MaxPending bounds the request queue. Zero means unbounded.
	MaxPending int

	// RateLimit is the maximum sustained request submissions per second.
	// Zero disables admission rate limiting.
	RateLimit float64

	// RateBurst is the burst size for the token-bucket admission limiter.
	// Defaults to 1 if RateLimit is set but RateBurst is zero.
	RateBurst int

	// RequestTimeout is the default per-request execution deadline applied
	// by the timeout middleware. Zero disables it.
	RequestTimeout time.Duration

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		ProbeWindow:     100 * time.Millisecond,
		MaxPending:      0,
		RequestTimeout:  0,
		ShutdownTimeout: 30 * time.Second,
	}
}
