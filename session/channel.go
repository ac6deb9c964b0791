package session

import (
	"context"
	"errors"
	"sync"
)

// ErrChannelClosed is returned when sending on a closed channel.
var ErrChannelClosed = errors.New("session: channel closed")

// Channel is one endpoint of an ordered, two-way frame transport.
// Frames travel as encoded bytes; each direction preserves send order,
// which the engine's positional result correlation depends on.
type Channel struct {
	out  chan []byte
	in   chan []byte
	done chan struct{}
	once *sync.Once
}

// Pipe returns the two connected endpoints of a channel pair. Closing
// either endpoint closes both directions.
func Pipe(buffer int) (*Channel, *Channel) {
	a := make(chan []byte, buffer)
	b := make(chan []byte, buffer)
	done := make(chan struct{})
	once := &sync.Once{}

	left := &Channel{out: a, in: b, done: done, once: once}
	right := &Channel{out: b, in: a, done: done, once: once}
	return left, right
}

// Send delivers encoded frame bytes to the far side. It blocks until
// the bytes are accepted, the channel closes, or ctx is done.
func (c *Channel) Send(ctx context.Context, data []byte) error {
	select {
	case <-c.done:
		return ErrChannelClosed
	default:
	}

	select {
	case c.out <- data:
		return nil
	case <-c.done:
		return ErrChannelClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Recv exposes the inbound byte stream for select loops.
func (c *Channel) Recv() <-chan []byte {
	return c.in
}

// Done is closed when the channel is closed from either side.
func (c *Channel) Done() <-chan struct{} {
	return c.done
}

// Close tears down both directions. Safe to call from either endpoint
// and more than once.
func (c *Channel) Close() {
	c.once.Do(func() { close(c.done) })
}
