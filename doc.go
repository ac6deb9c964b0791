// Package jsstore provides an embedded, client-side data-access layer over a
// persistent local store, exposing a query API (select, insert, update,
// remove, count, transaction, union, intersect) behind a single-flight
// request dispatch engine.
//
// Every query is submitted as a request to the dispatch engine, which queues
// it and executes it either inside a background session — an independently
// scheduled execution context reachable only via ordered, codec-encoded
// message passing — or, when that session cannot be established, directly in
// the caller's context. The fallback is transparent: callers always receive
// exactly one success or error notification per request, in submission order.
//
// # Quick Start
//
//	conn, err := jsstore.Open(ctx,
//	    jsstore.WithStore(memory.New()),
//	    jsstore.WithProbeWindow(100*time.Millisecond),
//	)
//	if err != nil { ... }
//	defer conn.Close(ctx)
//
//	rows, err := conn.Select(ctx, query.Select{From: "users", Limit: 10})
//
// # Architecture
//
// The engine package owns the request queue, the single-flight dispatcher,
// and the result router. The session package owns the background execution
// context: a probe with a bounded wait window determines once per lifetime
// whether the session is usable, and the engine routes every request
// accordingly. The store package defines the narrow persistence interface
// with memory and SQLite (Bun ORM) backends.
//
// All entity IDs use TypeID — type-prefixed, K-sortable, UUIDv7-based,
// compile-time safe identifiers.
package jsstore
