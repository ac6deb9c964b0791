package jsstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/mirumirumi/JsStore/engine"
	"github.com/mirumirumi/JsStore/hook"
	"github.com/mirumirumi/JsStore/middleware"
	"github.com/mirumirumi/JsStore/observability"
	"github.com/mirumirumi/JsStore/query"
	"github.com/mirumirumi/JsStore/request"
	"github.com/mirumirumi/JsStore/session"
	"github.com/mirumirumi/JsStore/store"
	"github.com/mirumirumi/JsStore/store/memory"
)

// Connection is the public entry point: an opened store behind the
// request dispatch engine. All query methods are safe for concurrent
// use; each one submits a request and blocks until its outcome routes
// back.
type Connection struct {
	logger     *slog.Logger
	store      store.Store
	codec      session.Codec
	launcher   session.Launcher
	config     Config
	extensions []hook.Extension
	mws        []middleware.Middleware

	executor *query.Executor
	hooks    *hook.Registry
	engine   *engine.Engine
	chain    middleware.Middleware

	mu   sync.Mutex
	open bool
}

// Open prepares the store, starts the dispatch engine, and kicks off
// the session probe. It returns as soon as the engine is accepting
// requests; use Ready to wait for the probe verdict.
//
// Without WithStore an in-memory store is used.
func Open(ctx context.Context, opts ...Option) (*Connection, error) {
	c := &Connection{
		config: DefaultConfig(),
		logger: slog.Default(),
		codec:  &session.JSONCodec{},
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	if c.store == nil {
		c.store = memory.New()
	}

	if err := c.store.Ping(ctx); err != nil {
		return nil, fmt.Errorf("jsstore: store ping: %w", err)
	}
	if err := c.store.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("jsstore: store migrate: %w", err)
	}

	c.executor = query.NewExecutor(c.store, c.logger)

	// Default chain: recover → tracing → metrics → logging → timeout,
	// with caller middleware appended innermost.
	mws := []middleware.Middleware{
		middleware.Recover(c.logger),
		middleware.Tracing(),
		middleware.Metrics(),
		middleware.Logging(c.logger),
		middleware.Timeout(c.config.RequestTimeout, c.logger),
	}
	mws = append(mws, c.mws...)
	c.chain = middleware.Chain(mws...)

	c.hooks = hook.NewRegistry(c.logger)
	c.hooks.Register(observability.NewMetricsExtension())
	for _, ext := range c.extensions {
		c.hooks.Register(ext)
	}

	if c.launcher == nil {
		c.launcher = session.NewLauncher(c.sessionHandler, c.codec, c.logger)
	}

	c.engine = engine.New(engine.Config{
		ProbeWindow:     c.config.ProbeWindow,
		MaxPending:      c.config.MaxPending,
		RateLimit:       c.config.RateLimit,
		RateBurst:       c.config.RateBurst,
		ShutdownTimeout: c.config.ShutdownTimeout,
	}, c.executeDirect,
		engine.WithLauncher(c.launcher),
		engine.WithCodec(c.codec),
		engine.WithExtensions(c.hooks),
		engine.WithLogger(c.logger),
	)

	if err := c.engine.Start(ctx); err != nil {
		return nil, err
	}
	c.open = true

	c.hooks.EmitStoreOpened(ctx)
	c.logger.Info("connection opened")
	return c, nil
}

// Close stops the engine — failing anything still pending with
// ErrClosed — and releases the store. Close is idempotent.
func (c *Connection) Close(ctx context.Context) error {
	c.mu.Lock()
	if !c.open {
		c.mu.Unlock()
		return nil
	}
	c.open = false
	c.mu.Unlock()

	err := errors.Join(
		c.engine.Stop(ctx),
		c.store.Close(),
	)
	c.logger.Info("connection closed")
	return err
}

// Ready is closed once the session probe has concluded.
func (c *Connection) Ready() <-chan struct{} { return c.engine.Ready() }

// Status returns the execution context status: whether queries run in
// the background session or directly.
func (c *Connection) Status() session.Status { return c.engine.Status() }

// Stats returns a snapshot of queue depth and in-flight state.
func (c *Connection) Stats() engine.Stats { return c.engine.Stats() }

// Reset tears down the background session and runs a fresh probe
// cycle, blocking until the new verdict.
func (c *Connection) Reset(ctx context.Context) error {
	return c.engine.Reset(ctx)
}

// Executor exposes the query executor so applications can register
// custom operations next to the built-ins.
func (c *Connection) Executor() *query.Executor { return c.executor }

// ── Query API ───────────────────────────────────────

// Select returns the matched records in ascending key order.
func (c *Connection) Select(ctx context.Context, q query.Select) ([]store.Record, error) {
	data, err := c.do(ctx, query.OpSelect, q)
	if err != nil {
		return nil, err
	}
	return query.DecodeRecords(data)
}

// Insert writes records and returns how many were written.
func (c *Connection) Insert(ctx context.Context, q query.Insert) (int64, error) {
	return c.doCount(ctx, query.OpInsert, q)
}

// Update replaces the value of every matched record and returns how
// many were updated.
func (c *Connection) Update(ctx context.Context, q query.Update) (int64, error) {
	return c.doCount(ctx, query.OpUpdate, q)
}

// Remove deletes the matched records and returns how many were removed.
func (c *Connection) Remove(ctx context.Context, q query.Remove) (int64, error) {
	return c.doCount(ctx, query.OpRemove, q)
}

// Count returns the number of records inside the range.
func (c *Connection) Count(ctx context.Context, q query.Count) (int64, error) {
	return c.doCount(ctx, query.OpCount, q)
}

// Transaction applies all steps atomically and returns the total number
// of affected records.
func (c *Connection) Transaction(ctx context.Context, q query.Transaction) (int64, error) {
	return c.doCount(ctx, query.OpTransaction, q)
}

// Union merges several selects, deduplicating by key.
func (c *Connection) Union(ctx context.Context, q query.Union) ([]store.Record, error) {
	data, err := c.do(ctx, query.OpUnion, q)
	if err != nil {
		return nil, err
	}
	return query.DecodeRecords(data)
}

// Intersect returns the records common to all selects.
func (c *Connection) Intersect(ctx context.Context, q query.Intersect) ([]store.Record, error) {
	data, err := c.do(ctx, query.OpIntersect, q)
	if err != nil {
		return nil, err
	}
	return query.DecodeRecords(data)
}

// Submit queues a request under an arbitrary operation name — built-in
// or registered via Executor().Registry() — and returns its Future.
// It is the non-blocking form of the typed query methods. Options such
// as request.WithTimeout bound this request only.
func (c *Connection) Submit(ctx context.Context, name string, payload any, opts ...request.Option) (*Future[[]byte], error) {
	c.mu.Lock()
	if !c.open {
		c.mu.Unlock()
		return nil, ErrNotOpen
	}
	eng := c.engine
	c.mu.Unlock()

	var data []byte
	if payload != nil {
		var err error
		data, err = json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("jsstore: encode %s payload: %w", name, err)
		}
	}

	f := newFuture[[]byte]()
	req := request.New(name, data, f.complete, f.fail, opts...)
	if err := eng.Submit(ctx, req); err != nil {
		return nil, err
	}
	return f, nil
}

func (c *Connection) do(ctx context.Context, name string, payload any) ([]byte, error) {
	f, err := c.Submit(ctx, name, payload)
	if err != nil {
		return nil, err
	}
	return f.Await(ctx)
}

func (c *Connection) doCount(ctx context.Context, name string, payload any) (int64, error) {
	data, err := c.do(ctx, name, payload)
	if err != nil {
		return 0, err
	}
	return query.DecodeCount(data)
}

// ── Execution paths ─────────────────────────────────

// executeDirect is the engine's fallback path: the request runs through
// the middleware chain synchronously in the dispatcher goroutine.
func (c *Connection) executeDirect(ctx context.Context, req *request.Request) ([]byte, error) {
	return c.runChain(ctx, req)
}

// sessionHandler runs inside the background session goroutine. The
// session only sees the decoded frame, so a request view is rebuilt for
// the middleware chain to log and bound.
func (c *Connection) sessionHandler(ctx context.Context, name string, payload []byte) ([]byte, error) {
	req := request.New(name, payload, nil, nil)
	return c.runChain(ctx, req)
}

func (c *Connection) runChain(ctx context.Context, req *request.Request) ([]byte, error) {
	var result []byte
	err := c.chain(ctx, req, func(ctx context.Context) error {
		var execErr error
		result, execErr = c.executor.Execute(ctx, req.Name, req.Payload)
		return execErr
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
