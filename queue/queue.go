package queue

import (
	"errors"
	"sync"

	"golang.org/x/time/rate"

	"github.com/mirumirumi/JsStore/request"
)

var (
	// ErrFull is returned by Push when the queue bound is reached.
	ErrFull = errors.New("queue: pending queue full")

	// ErrRateLimited is returned by Push when the admission limiter
	// rejects the submission.
	ErrRateLimited = errors.New("queue: submission rate limited")
)

// Config defines queue admission behaviour.
type Config struct {
	// MaxPending bounds the number of queued requests. Zero means no
	// bound; in that case back-pressure is the caller's responsibility.
	MaxPending int

	// RateLimit is the maximum sustained submissions per second that may
	// be admitted. Zero disables rate limiting.
	RateLimit float64

	// RateBurst is the burst size for the token-bucket limiter.
	// Defaults to 1 if RateLimit is set but RateBurst is zero.
	RateBurst int
}

// Queue is the ordered FIFO collection of pending requests. The head is
// the only request that may be in flight; all other entries are strictly
// queued. No request is ever removed out of order.
//
// It is safe for concurrent use: submissions push from caller goroutines
// while the dispatcher goroutine peeks and pops.
type Queue struct {
	mu      sync.Mutex
	items   []*request.Request
	config  Config
	limiter *rate.Limiter
}

// New creates a Queue with the given admission configuration.
func New(config Config) *Queue {
	q := &Queue{config: config}
	if config.RateLimit > 0 {
		burst := config.RateBurst
		if burst <= 0 {
			burst = 1
		}
		q.limiter = rate.NewLimiter(rate.Limit(config.RateLimit), burst)
	}
	return q
}

// Push appends a request to the tail, preserving insertion order.
// It returns ErrFull when the bound is reached and ErrRateLimited when
// the admission limiter rejects the submission.
func (q *Queue) Push(r *request.Request) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.limiter != nil && !q.limiter.Allow() {
		return ErrRateLimited
	}
	if q.config.MaxPending > 0 && len(q.items) >= q.config.MaxPending {
		return ErrFull
	}

	q.items = append(q.items, r)
	return nil
}

// Head returns the current head without removing it, or nil when empty.
func (q *Queue) Head() *request.Request {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil
	}
	return q.items[0]
}

// Pop removes and returns the head, or nil when empty. Callers must only
// pop after the head's result has been routed.
func (q *Queue) Pop() *request.Request {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil
	}
	head := q.items[0]
	q.items[0] = nil // release for GC
	q.items = q.items[1:]
	return head
}

// Drain removes and returns all pending requests in order. Used only
// during shutdown to fail what will never run.
func (q *Queue) Drain() []*request.Request {
	q.mu.Lock()
	defer q.mu.Unlock()
	drained := q.items
	q.items = nil
	return drained
}

// Len returns the number of pending requests, including the in-flight head.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
