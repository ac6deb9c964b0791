package session

import (
	"context"
	"log/slog"

	"github.com/mirumirumi/JsStore/id"
)

// Handler executes an operation inside the session. The session never
// interprets payloads itself; handlers do.
type Handler func(ctx context.Context, name string, payload []byte) ([]byte, error)

// Runner is the background session worker: it consumes request frames
// from its channel endpoint, executes them through the handler, and
// sends one result frame per request. Frames are processed strictly in
// arrival order.
type Runner struct {
	id      id.SessionID
	handler Handler
	codec   Codec
	logger  *slog.Logger
}

// NewRunner creates a session runner.
func NewRunner(handler Handler, codec Codec, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	sid := id.NewSessionID()
	return &Runner{
		id:      sid,
		handler: handler,
		codec:   codec,
		logger:  logger.With(slog.String("session_id", sid.String())),
	}
}

// ID returns the session's unique identifier.
func (r *Runner) ID() id.SessionID { return r.id }

// Run serves the session endpoint until the channel closes or ctx is
// done. It is intended to run on its own goroutine.
func (r *Runner) Run(ctx context.Context, ch *Channel) {
	for {
		select {
		case data := <-ch.Recv():
			r.handleFrame(ctx, ch, data)
		case <-ch.Done():
			return
		case <-ctx.Done():
			ch.Close()
			return
		}
	}
}

func (r *Runner) handleFrame(ctx context.Context, ch *Channel, data []byte) {
	frame, err := r.codec.Decode(data)
	if err != nil {
		r.logger.Error("session: dropping undecodable frame",
			slog.String("codec", r.codec.Name()),
			slog.String("error", err.Error()))
		return
	}
	if frame.Type != FrameRequest {
		r.logger.Warn("session: dropping unexpected frame",
			slog.String("frame_id", frame.ID),
			slog.String("type", string(frame.Type)))
		return
	}

	execCtx := ctx
	if frame.Timeout > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, frame.Timeout)
		defer cancel()
	}

	result, err := r.handler(execCtx, frame.Name, frame.Data)

	var reply *Frame
	if err != nil {
		reply = NewErrorResultFrame(frame.ID, ErrCodeInternal, err.Error())
	} else {
		reply = NewResultFrame(frame.ID, result)
	}

	encoded, err := r.codec.Encode(reply)
	if err != nil {
		r.logger.Error("session: encode result failed",
			slog.String("frame_id", frame.ID),
			slog.String("error", err.Error()))
		// The engine cannot advance without a result. Send a minimal
		// error frame instead; its payload always encodes.
		encoded, err = r.codec.Encode(NewErrorResultFrame(frame.ID, ErrCodeInternal, "result encoding failed"))
		if err != nil {
			return
		}
	}

	if err := ch.Send(ctx, encoded); err != nil {
		r.logger.Warn("session: result not delivered",
			slog.String("frame_id", frame.ID),
			slog.String("error", err.Error()))
	}
}
