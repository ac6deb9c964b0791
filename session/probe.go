package session

import (
	"context"
	"log/slog"
	"time"
)

// Probe attempts, once per cycle, to create the background session and
// confirm it is responsive. Session creation is itself asynchronous and
// a failure signal may only become observable after a short delay, so
// after a successful launch the probe waits a bounded window for an
// out-of-band fault frame. The window is a tunable constant, not a
// protocol guarantee.
//
// Verdicts, written to status:
//   - launch error: Failed immediately
//   - fault frame at any point inside the window: Failed
//   - window elapses quietly: Registered
//
// On Registered the live engine endpoint is returned; on Failed the
// channel (if any) is closed and nil is returned.
func Probe(ctx context.Context, launcher Launcher, codec Codec, window time.Duration, status *StatusVar, logger *slog.Logger) *Channel {
	if logger == nil {
		logger = slog.Default()
	}

	ch, err := launcher.Launch(ctx)
	if err != nil {
		logger.Warn("session: launch failed, falling back to direct execution",
			slog.String("error", err.Error()))
		status.Conclude(StatusFailed)
		return nil
	}

	timer := time.NewTimer(window)
	defer timer.Stop()

	for {
		select {
		case data := <-ch.Recv():
			frame, err := codec.Decode(data)
			if err != nil {
				logger.Error("session: dropping undecodable frame during probe",
					slog.String("error", err.Error()))
				continue
			}
			if frame.Type != FrameFault {
				// Nothing has been dispatched yet, so any non-fault
				// frame here is protocol noise.
				logger.Warn("session: dropping unexpected frame during probe",
					slog.String("frame_id", frame.ID),
					slog.String("type", string(frame.Type)))
				continue
			}
			msg := ""
			if frame.Error != nil {
				msg = frame.Error.Message
			}
			logger.Warn("session: fault during probe window, falling back to direct execution",
				slog.String("fault", msg))
			status.Conclude(StatusFailed)
			ch.Close()
			return nil

		case <-ch.Done():
			logger.Warn("session: channel closed during probe window")
			status.Conclude(StatusFailed)
			return nil

		case <-timer.C:
			status.Conclude(StatusRegistered)
			logger.Debug("session: registered",
				slog.Duration("window", window))
			return ch

		case <-ctx.Done():
			status.Conclude(StatusFailed)
			ch.Close()
			return nil
		}
	}
}
