package session

import "sync/atomic"

// Status is the tri-state execution context status.
type Status int32

const (
	// StatusNotStarted means no probe has been attempted yet.
	StatusNotStarted Status = iota

	// StatusRegistered means the background session is confirmed usable.
	StatusRegistered

	// StatusFailed means the session could not be created or faulted
	// during the probe window.
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusNotStarted:
		return "not_started"
	case StatusRegistered:
		return "registered"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Concluded reports whether the probe has produced a verdict.
func (s Status) Concluded() bool { return s != StatusNotStarted }

// StatusVar is a shared status handle: written once per probe cycle by
// the probe path, read by everyone else. Transitions are one-directional
// (NotStarted to Registered or Failed); only an explicit Reset returns
// it to NotStarted for a fresh probe cycle.
type StatusVar struct {
	v atomic.Int32
}

// Load returns the current status.
func (sv *StatusVar) Load() Status {
	return Status(sv.v.Load())
}

// Conclude moves the status from NotStarted to the given verdict. It
// reports whether the transition happened; a concluded status is never
// overwritten.
func (sv *StatusVar) Conclude(to Status) bool {
	if to != StatusRegistered && to != StatusFailed {
		return false
	}
	return sv.v.CompareAndSwap(int32(StatusNotStarted), int32(to))
}

// Reset returns the status to NotStarted so a new probe cycle can run.
func (sv *StatusVar) Reset() {
	sv.v.Store(int32(StatusNotStarted))
}
