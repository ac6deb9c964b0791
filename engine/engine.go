package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mirumirumi/JsStore/hook"
	"github.com/mirumirumi/JsStore/queue"
	"github.com/mirumirumi/JsStore/request"
	"github.com/mirumirumi/JsStore/session"
)

var (
	// ErrClosed is returned by Submit after the engine stopped, and is
	// the failure handed to requests still pending at shutdown.
	ErrClosed = errors.New("engine: closed")

	// ErrReset is the failure handed to a request interrupted by an
	// explicit Reset while in flight on the background session.
	ErrReset = errors.New("engine: session reset")

	// ErrQueueFull is returned by Submit when the pending bound is hit.
	ErrQueueFull = queue.ErrFull

	// ErrRateLimited is returned by Submit when admission is throttled.
	ErrRateLimited = queue.ErrRateLimited
)

// ExecuteFunc runs a request directly in the dispatcher goroutine. It is
// the fallback execution path used when no background session exists.
type ExecuteFunc func(ctx context.Context, req *request.Request) ([]byte, error)

// Config holds engine tunables.
type Config struct {
	// ProbeWindow is the bounded wait of the session probe.
	ProbeWindow time.Duration

	// MaxPending bounds the request queue. Zero means unbounded.
	MaxPending int

	// RateLimit / RateBurst configure token-bucket submission admission.
	RateLimit float64
	RateBurst int

	// ShutdownTimeout caps how long Stop waits for the dispatcher.
	ShutdownTimeout time.Duration
}

// Stats is a point-in-time snapshot of engine state.
type Stats struct {
	Pending  int
	InFlight bool
	Status   session.Status
}

// Engine is the request dispatch engine. Create one with New, then
// Start it; Submit is safe for concurrent use.
type Engine struct {
	config     Config
	execute    ExecuteFunc
	launcher   session.Launcher
	codec      session.Codec
	extensions *hook.Registry
	logger     *slog.Logger

	queue    *queue.Queue
	status   session.StatusVar
	inFlight atomic.Bool

	// wakeCh carries dispatch wakeup tokens, resetCh reset demands.
	wakeCh  chan struct{}
	resetCh chan chan struct{}
	stopCh  chan struct{}
	doneCh  chan struct{}
	readyCh chan struct{}

	mu      sync.Mutex
	running bool
	closed  bool

	// Dispatcher-goroutine state. Never touched elsewhere.
	ch      *session.Channel
	current *request.Request
}

// Option configures an Engine.
type Option func(*Engine)

// WithLauncher sets the background session launcher. Without one the
// probe concludes Failed and every request executes directly.
func WithLauncher(l session.Launcher) Option {
	return func(e *Engine) { e.launcher = l }
}

// WithCodec sets the frame codec for the session channel.
func WithCodec(c session.Codec) Option {
	return func(e *Engine) { e.codec = c }
}

// WithExtensions sets the lifecycle hook registry.
func WithExtensions(r *hook.Registry) Option {
	return func(e *Engine) { e.extensions = r }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// New creates an engine. execute is the direct execution path and must
// be non-nil.
func New(config Config, execute ExecuteFunc, opts ...Option) *Engine {
	e := &Engine{
		config:  config,
		execute: execute,
		codec:   &session.JSONCodec{},
		logger:  slog.Default(),
		queue: queue.New(queue.Config{
			MaxPending: config.MaxPending,
			RateLimit:  config.RateLimit,
			RateBurst:  config.RateBurst,
		}),
		wakeCh:  make(chan struct{}, 1),
		resetCh: make(chan chan struct{}),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
		readyCh: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.extensions == nil {
		e.extensions = hook.NewRegistry(e.logger)
	}
	return e
}

// Status returns the current execution context status.
func (e *Engine) Status() session.Status { return e.status.Load() }

// Ready is closed once the first probe has concluded, either way.
// Requests submitted earlier stay queued until then.
func (e *Engine) Ready() <-chan struct{} { return e.readyCh }

// Stats returns a snapshot of queue depth, in-flight state, and status.
func (e *Engine) Stats() Stats {
	return Stats{
		Pending:  e.queue.Len(),
		InFlight: e.inFlight.Load(),
		Status:   e.status.Load(),
	}
}

// Start launches the dispatcher goroutine and kicks off the probe.
// It returns immediately; use Ready to wait for the probe verdict.
func (e *Engine) Start(_ context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrClosed
	}
	if e.running {
		return nil
	}
	e.running = true

	e.logger.Debug("engine starting",
		slog.Duration("probe_window", e.config.ProbeWindow))

	go e.run()
	return nil
}

// Submit queues a request for dispatch. Requests complete through their
// handlers, never through Submit's return value: a nil error means the
// request was accepted and will eventually invoke exactly one handler.
func (e *Engine) Submit(_ context.Context, req *request.Request) error {
	// The push happens under the same mutex as the closed check: Stop
	// sets closed under e.mu before signalling the dispatcher, so any
	// push serialized before that is visible to the shutdown drain and
	// no accepted request can miss both dispatch and drain.
	e.mu.Lock()
	if e.closed || !e.running {
		e.mu.Unlock()
		return ErrClosed
	}
	err := e.queue.Push(req)
	e.mu.Unlock()
	if err != nil {
		return err
	}
	e.extensions.EmitRequestQueued(context.Background(), req)

	e.wake()
	return nil
}

// Reset tears the session down, fails any in-flight background request
// with ErrReset, returns the status to NotStarted, and runs a fresh
// probe cycle. It blocks until the new probe has concluded.
func (e *Engine) Reset(ctx context.Context) error {
	e.mu.Lock()
	if e.closed || !e.running {
		e.mu.Unlock()
		return ErrClosed
	}
	e.mu.Unlock()

	done := make(chan struct{})
	select {
	case e.resetCh <- done:
	case <-e.doneCh:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-done:
		return nil
	case <-e.doneCh:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop shuts the engine down. Requests still pending are failed with
// ErrClosed; queued requests are never silently dropped. Stop waits for
// the dispatcher to exit, bounded by ctx and Config.ShutdownTimeout.
func (e *Engine) Stop(ctx context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	started := e.running
	e.mu.Unlock()

	if !started {
		return nil
	}

	e.logger.Debug("engine stopping")
	close(e.stopCh)

	wait := ctx.Done()
	var timer *time.Timer
	if e.config.ShutdownTimeout > 0 {
		timer = time.NewTimer(e.config.ShutdownTimeout)
		defer timer.Stop()
	}

	select {
	case <-e.doneCh:
		e.logger.Debug("engine stopped")
		return nil
	case <-wait:
		return fmt.Errorf("engine: shutdown interrupted: %w", ctx.Err())
	case <-timerC(timer):
		return errors.New("engine: shutdown timed out")
	}
}

func timerC(t *time.Timer) <-chan time.Time {
	if t == nil {
		return nil
	}
	return t.C
}

// wake nudges the dispatcher without blocking. A token already pending
// is enough; the dispatcher re-checks the queue on every pass.
func (e *Engine) wake() {
	select {
	case e.wakeCh <- struct{}{}:
	default:
	}
}
