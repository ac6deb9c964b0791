// Package queue holds the ordered FIFO collection of pending requests
// awaiting dispatch, with optional admission control.
//
// Order of completion equals order of dispatch equals order of insertion:
// the queue never reorders, never applies priority, and never removes a
// request out of turn. The head is the only entry that may be in flight.
//
// # Admission
//
// Use [Config] to bound the queue and throttle submissions:
//
//	queue.New(queue.Config{
//	    MaxPending: 1024, // Push returns ErrFull beyond this
//	    RateLimit:  100,  // max 100 submissions/s
//	    RateBurst:  20,   // allow bursts up to 20
//	})
//
// Rate limiting uses a token-bucket limiter (golang.org/x/time/rate).
// With a zero Config the queue is unbounded and back-pressure is the
// caller's responsibility.
package queue
