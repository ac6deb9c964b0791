package session

import (
	"context"
	"log/slog"
)

// channelBuffer bounds each transport direction. One in-flight request
// plus its result never needs more than a few slots; the headroom
// absorbs a fault frame racing a close.
const channelBuffer = 16

// Launcher creates the background session and returns the engine-side
// channel endpoint. Launch is called once per probe cycle.
type Launcher interface {
	Launch(ctx context.Context) (*Channel, error)
}

// LauncherFunc adapts a function to the Launcher interface.
type LauncherFunc func(ctx context.Context) (*Channel, error)

func (f LauncherFunc) Launch(ctx context.Context) (*Channel, error) {
	return f(ctx)
}

// RunnerLauncher launches an in-process session goroutine. It is the
// default launcher: the session shares the process but communicates
// only through the encoded frame channel.
type RunnerLauncher struct {
	handler Handler
	codec   Codec
	logger  *slog.Logger
}

// NewLauncher creates the default in-process launcher.
func NewLauncher(handler Handler, codec Codec, logger *slog.Logger) *RunnerLauncher {
	if codec == nil {
		codec = &JSONCodec{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RunnerLauncher{
		handler: handler,
		codec:   codec,
		logger:  logger,
	}
}

// Launch starts the session goroutine and returns the engine endpoint.
func (l *RunnerLauncher) Launch(ctx context.Context) (*Channel, error) {
	engineEnd, sessionEnd := Pipe(channelBuffer)
	runner := NewRunner(l.handler, l.codec, l.logger)
	go runner.Run(ctx, sessionEnd)
	return engineEnd, nil
}
