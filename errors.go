package jsstore

import (
	"errors"

	"github.com/mirumirumi/JsStore/engine"
)

var (
	// ErrNoStore is returned by WithStore when given a nil store.
	ErrNoStore = errors.New("jsstore: no store configured")

	// ErrNotOpen is returned by query methods after Close.
	ErrNotOpen = errors.New("jsstore: connection not open")
)

// Re-exported engine sentinels so callers can match submission failures
// without importing the engine package.
var (
	// ErrClosed is returned when submitting to a stopped engine.
	ErrClosed = engine.ErrClosed

	// ErrQueueFull is returned when the pending queue bound is reached.
	ErrQueueFull = engine.ErrQueueFull

	// ErrRateLimited is returned when submission admission is throttled.
	ErrRateLimited = engine.ErrRateLimited
)
