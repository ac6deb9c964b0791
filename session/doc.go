// Package session implements the background execution session and its
// wire protocol. A session is an independently scheduled worker reachable
// only through an ordered, two-way frame channel: frames are fully
// encoded to bytes by a codec on one side and decoded on the other, so
// no memory is shared between the engine and the session.
//
// The package also owns the tri-state execution context status
// (NotStarted, Registered, Failed) and the probe that decides it: the
// engine launches the session exactly once per lifetime, waits a bounded
// window for an out-of-band fault frame, and concludes Registered when
// the window elapses quietly.
package session
