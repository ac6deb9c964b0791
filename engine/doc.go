// Package engine implements the request dispatch engine: a FIFO queue
// drained by a single dispatcher with at most one request in flight.
//
// The engine owns three cooperating pieces:
//
//   - the session probe, run once per lifetime (or per explicit Reset),
//     which decides whether requests execute inside the background
//     session or fall back to direct execution;
//   - the dispatcher, which sends the queue head over the session
//     channel (status Registered) or executes it synchronously in the
//     dispatcher goroutine (status Failed);
//   - the result router, which correlates inbound result frames
//     positionally with the in-flight request and advances the queue.
//
// All queue mutation, status reads, and frame routing happen on one
// dispatcher goroutine. Submissions, inbound session frames, and control
// messages reach it over channels, so no state is shared across
// goroutines beyond the queue's own lock and the status handle.
//
// Correlation note: because results carry no routing key of their own
// (the correlation ID is verified only as a guard), the single-in-flight
// invariant is load-bearing. Allowing concurrent in-flight requests
// would corrupt result routing.
//
// # Building an Engine
//
//	eng := engine.New(engine.Config{ProbeWindow: 100 * time.Millisecond},
//	    executeFn,
//	    engine.WithLauncher(launcher),
//	    engine.WithExtensions(hooks),
//	    engine.WithLogger(logger),
//	)
//	if err := eng.Start(ctx); err != nil { ... }
//	defer eng.Stop(ctx)
//
//	err := eng.Submit(ctx, request.New("select", payload, onSuccess, onError))
package engine
