package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/mirumirumi/JsStore/hook"
	"github.com/mirumirumi/JsStore/request"
	"github.com/mirumirumi/JsStore/session"
)

// RemoteError carries failure details routed back from the background
// session for a request that failed there.
type RemoteError struct {
	Code    int
	Message string
}

func (r *RemoteError) Error() string { return r.Message }

// run is the dispatcher goroutine. Every piece of loop state — the
// session channel and the in-flight request — lives here and only here.
func (e *Engine) run() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-e.stopCh
		cancel()
	}()
	defer close(e.doneCh)

	e.probe(ctx)
	close(e.readyCh)

	// Stop during the probe window cancels the probe; skip straight to
	// shutdown instead of executing the backlog directly.
	select {
	case <-e.stopCh:
		e.shutdown(ctx)
		return
	default:
	}

	e.dispatch(ctx)

	for {
		// A nil channel parks its select case forever.
		var recv <-chan []byte
		var lost <-chan struct{}
		if e.ch != nil {
			recv = e.ch.Recv()
			lost = e.ch.Done()
		}

		select {
		case <-e.wakeCh:
			e.dispatch(ctx)
		case data := <-recv:
			e.routeFrame(ctx, data)
		case <-lost:
			e.sessionLost(ctx)
		case done := <-e.resetCh:
			e.reset(ctx)
			close(done)
		case <-e.stopCh:
			e.shutdown(ctx)
			return
		}
	}
}

// probe runs one probe cycle and emits the verdict hooks.
func (e *Engine) probe(ctx context.Context) {
	if e.launcher == nil {
		e.status.Conclude(session.StatusFailed)
		e.logger.Debug("no session launcher configured, using direct execution")
	} else {
		e.ch = session.Probe(ctx, e.launcher, e.codec, e.config.ProbeWindow, &e.status, e.logger)
	}

	if e.status.Load() == session.StatusRegistered {
		e.extensions.EmitSessionRegistered(ctx)
	} else {
		e.extensions.EmitSessionFault(ctx, "background session unavailable")
	}
}

// dispatch drives the queue: while nothing is in flight and the probe
// has concluded, the head either goes out over the session channel or
// executes directly, synchronously, right here. Direct completions
// advance the queue immediately, so this loops until the queue is empty
// or a background request is in flight.
func (e *Engine) dispatch(ctx context.Context) {
	for {
		if e.current != nil {
			return
		}
		head := e.queue.Head()
		if head == nil {
			return
		}
		if !e.status.Load().Concluded() {
			// Probe pending; the verdict triggers another dispatch.
			return
		}

		head.MarkDispatched()

		if e.ch != nil && e.status.Load() == session.StatusRegistered {
			if e.sendRequest(ctx, head) {
				e.current = head
				e.inFlight.Store(true)
				e.extensions.EmitRequestDispatched(ctx, head, hook.ModeBackground)
				return
			}
			// Send failed: the session is gone. Fall through to the
			// direct path for this and all following requests.
		}

		e.extensions.EmitRequestDispatched(ctx, head, hook.ModeDirect)
		result, err := e.execute(ctx, head)
		e.queue.Pop()
		e.finish(ctx, head, result, err, hook.ModeDirect)
	}
}

// sendRequest encodes the head into a request frame and sends it.
// It reports whether the frame is on its way; on failure the channel is
// dropped so dispatch falls back to direct execution.
func (e *Engine) sendRequest(ctx context.Context, req *request.Request) bool {
	frame := session.NewRequestFrame(req.ID.String(), req.Name, req.Payload)
	frame.Timeout = req.Timeout
	data, err := e.codec.Encode(frame)
	if err != nil {
		e.logger.Error("request frame encoding failed, executing directly",
			slog.String("request_id", req.ID.String()),
			slog.String("error", err.Error()))
		return false
	}
	if err := e.ch.Send(ctx, data); err != nil {
		e.logger.Warn("session send failed, executing directly",
			slog.String("request_id", req.ID.String()),
			slog.String("error", err.Error()))
		e.ch.Close()
		e.ch = nil
		return false
	}
	return true
}

// routeFrame handles one inbound session frame. Results correlate
// positionally: a result always belongs to the current in-flight head.
// The correlation ID is verified as a guard on top of that invariant.
func (e *Engine) routeFrame(ctx context.Context, data []byte) {
	frame, err := e.codec.Decode(data)
	if err != nil {
		e.logger.Error("dropping undecodable session frame",
			slog.String("error", err.Error()))
		return
	}

	switch frame.Type {
	case session.FrameFault:
		// A fault after registration is never routed as a result. The
		// status stays Registered; the signal is logged and counted.
		msg := ""
		if frame.Error != nil {
			msg = frame.Error.Message
		}
		e.logger.Warn("session fault after registration ignored",
			slog.String("fault", msg))
		e.extensions.EmitSessionFault(ctx, msg)

	case session.FrameResult:
		if e.current == nil {
			e.logger.Error("protocol violation: result frame with nothing in flight, dropping",
				slog.String("frame_id", frame.ID),
				slog.String("correl_id", frame.CorrelID))
			e.extensions.EmitProtocolViolation(ctx, frame.ID)
			return
		}
		if frame.CorrelID != "" && frame.CorrelID != e.current.ID.String() {
			e.logger.Error("protocol violation: result correlation mismatch, dropping",
				slog.String("frame_id", frame.ID),
				slog.String("correl_id", frame.CorrelID),
				slog.String("in_flight", e.current.ID.String()))
			e.extensions.EmitProtocolViolation(ctx, frame.ID)
			return
		}

		req := e.current
		e.current = nil
		e.inFlight.Store(false)
		e.queue.Pop()

		if frame.Failed() {
			e.finish(ctx, req, nil, &RemoteError{Code: frame.Error.Code, Message: frame.Error.Message}, hook.ModeBackground)
		} else {
			e.finish(ctx, req, frame.Data, nil, hook.ModeBackground)
		}

		e.dispatch(ctx)

	default:
		e.logger.Warn("dropping unexpected session frame",
			slog.String("frame_id", frame.ID),
			slog.String("type", string(frame.Type)))
	}
}

// finish completes a request through exactly one of its handlers and
// emits the matching hook. The request's own completion guard makes
// duplicate finishes no-ops.
func (e *Engine) finish(ctx context.Context, req *request.Request, result []byte, err error, mode string) {
	if err != nil {
		if req.Fail(err) {
			e.extensions.EmitRequestFailed(ctx, req, mode, err)
		}
		return
	}
	if req.Succeed(result) {
		e.extensions.EmitRequestCompleted(ctx, req, mode, elapsed(req))
	}
}

func elapsed(req *request.Request) time.Duration {
	if req.DispatchedAt != nil {
		return time.Since(*req.DispatchedAt)
	}
	return time.Since(req.EnqueuedAt)
}

// sessionLost handles the session channel closing after registration.
// The status invariant forbids Registered → Failed, so the engine keeps
// the verdict and simply falls back to direct execution for the rest of
// its lifetime (or until Reset).
func (e *Engine) sessionLost(ctx context.Context) {
	e.logger.Warn("session channel closed, falling back to direct execution")
	e.ch = nil

	if e.current != nil {
		req := e.current
		e.current = nil
		e.inFlight.Store(false)
		e.queue.Pop()
		e.finish(ctx, req, nil, errors.New("engine: session channel closed"), hook.ModeBackground)
	}

	e.dispatch(ctx)
}

// reset tears down the session and runs a fresh probe cycle.
func (e *Engine) reset(ctx context.Context) {
	e.logger.Debug("resetting session")

	if e.current != nil {
		req := e.current
		e.current = nil
		e.inFlight.Store(false)
		e.queue.Pop()
		e.finish(ctx, req, nil, ErrReset, hook.ModeBackground)
	}
	if e.ch != nil {
		e.ch.Close()
		e.ch = nil
	}

	e.status.Reset()
	e.probe(ctx)
	e.dispatch(ctx)
}

// shutdown fails everything still pending with ErrClosed. Queued
// requests are never silently dropped: each completes through its error
// handler exactly once.
func (e *Engine) shutdown(ctx context.Context) {
	if e.current != nil {
		if e.current.Fail(ErrClosed) {
			e.extensions.EmitRequestFailed(ctx, e.current, hook.ModeBackground, ErrClosed)
		}
		e.current = nil
	}
	e.inFlight.Store(false)

	for _, req := range e.queue.Drain() {
		if req.Fail(ErrClosed) {
			e.extensions.EmitRequestFailed(ctx, req, hook.ModeDirect, ErrClosed)
		}
	}

	if e.ch != nil {
		e.ch.Close()
		e.ch = nil
	}

	e.extensions.EmitShutdown(ctx)
}
