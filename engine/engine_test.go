package engine_test

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mirumirumi/JsStore/engine"
	"github.com/mirumirumi/JsStore/hook"
	"github.com/mirumirumi/JsStore/request"
	"github.com/mirumirumi/JsStore/session"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// outcome is one completed request as observed through its handlers.
type outcome struct {
	name   string
	result []byte
	err    error
}

// submit queues a request whose handlers report to out.
func submit(t *testing.T, eng *engine.Engine, name string, payload []byte, out chan<- outcome) {
	t.Helper()

	req := request.New(name, payload,
		func(result []byte) { out <- outcome{name: name, result: result} },
		func(err error) { out <- outcome{name: name, err: err} },
	)
	if err := eng.Submit(context.Background(), req); err != nil {
		t.Fatalf("Submit %s: %v", name, err)
	}
}

func waitOutcome(t *testing.T, out <-chan outcome) outcome {
	t.Helper()

	select {
	case o := <-out:
		return o
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a request to complete")
		return outcome{}
	}
}

func waitReady(t *testing.T, eng *engine.Engine) {
	t.Helper()

	select {
	case <-eng.Ready():
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the probe to conclude")
	}
}

// echoExecute is a direct execution path that records request names.
type echoExecute struct {
	mu    sync.Mutex
	names []string
}

func (x *echoExecute) fn(_ context.Context, req *request.Request) ([]byte, error) {
	x.mu.Lock()
	x.names = append(x.names, req.Name)
	x.mu.Unlock()
	return []byte(`"direct:` + req.Name + `"`), nil
}

func (x *echoExecute) seen() []string {
	x.mu.Lock()
	defer x.mu.Unlock()
	return append([]string(nil), x.names...)
}

// newBackgroundEngine starts an engine whose session runs handler in an
// in-process goroutine, with a short probe window.
func newBackgroundEngine(t *testing.T, handler session.Handler, opts ...engine.Option) (*engine.Engine, *echoExecute) {
	t.Helper()

	direct := &echoExecute{}
	codec := &session.JSONCodec{}
	all := append([]engine.Option{
		engine.WithLauncher(session.NewLauncher(handler, codec, testLogger())),
		engine.WithCodec(codec),
		engine.WithLogger(testLogger()),
	}, opts...)

	eng := engine.New(engine.Config{ProbeWindow: 20 * time.Millisecond}, direct.fn, all...)
	if err := eng.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = eng.Stop(context.Background()) })

	waitReady(t, eng)
	return eng, direct
}

// manualSession returns a launcher whose session side is driven by the
// test itself.
func manualSession() (session.Launcher, *session.Channel) {
	engineEnd, sessionEnd := session.Pipe(16)
	l := session.LauncherFunc(func(context.Context) (*session.Channel, error) {
		return engineEnd, nil
	})
	return l, sessionEnd
}

// violationRecorder counts protocol violation hooks.
type violationRecorder struct {
	count atomic.Int64
}

func (v *violationRecorder) Name() string { return "violation-recorder" }

func (v *violationRecorder) OnProtocolViolation(_ context.Context, _ string) error {
	v.count.Add(1)
	return nil
}

// --- Registered path ---

func TestBackgroundFIFOOrder(t *testing.T) {
	t.Parallel()

	eng, direct := newBackgroundEngine(t, func(_ context.Context, name string, _ []byte) ([]byte, error) {
		return []byte(`"bg:` + name + `"`), nil
	})
	if got := eng.Status(); got != session.StatusRegistered {
		t.Fatalf("status = %v, want %v", got, session.StatusRegistered)
	}

	out := make(chan outcome, 8)
	names := []string{"r1", "r2", "r3", "r4", "r5"}
	for _, name := range names {
		submit(t, eng, name, nil, out)
	}

	for _, want := range names {
		o := waitOutcome(t, out)
		if o.err != nil {
			t.Fatalf("%s failed: %v", o.name, o.err)
		}
		if o.name != want {
			t.Fatalf("completion order: got %s, want %s", o.name, want)
		}
		if string(o.result) != `"bg:`+want+`"` {
			t.Errorf("%s result = %s", want, o.result)
		}
	}

	// Everything went through the session, nothing directly.
	if seen := direct.seen(); len(seen) != 0 {
		t.Errorf("direct path used for %v", seen)
	}
}

func TestSingleFlight(t *testing.T) {
	t.Parallel()

	var entered atomic.Int64
	release := make(chan struct{})
	eng, _ := newBackgroundEngine(t, func(_ context.Context, name string, _ []byte) ([]byte, error) {
		entered.Add(1)
		if name == "r1" {
			<-release
		}
		return nil, nil
	})

	out := make(chan outcome, 2)
	submit(t, eng, "r1", nil, out)

	// Wait until r1 is inside the handler, then submit r2.
	deadline := time.Now().Add(2 * time.Second)
	for entered.Load() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("r1 never started")
		}
		time.Sleep(time.Millisecond)
	}
	submit(t, eng, "r2", nil, out)

	// r2 must stay queued while r1 holds the in-flight slot.
	time.Sleep(50 * time.Millisecond)
	if got := entered.Load(); got != 1 {
		t.Fatalf("expected only r1 in flight, %d handlers entered", got)
	}
	if stats := eng.Stats(); stats.Pending != 2 || !stats.InFlight {
		t.Fatalf("stats = %+v, want 2 pending with one in flight", stats)
	}

	close(release)
	if o := waitOutcome(t, out); o.name != "r1" {
		t.Fatalf("first completion = %s, want r1", o.name)
	}
	if o := waitOutcome(t, out); o.name != "r2" {
		t.Fatalf("second completion = %s, want r2", o.name)
	}
}

func TestSubmitBeforeProbeConcludes(t *testing.T) {
	t.Parallel()

	var executed atomic.Int64
	direct := &echoExecute{}
	codec := &session.JSONCodec{}
	handler := func(_ context.Context, name string, _ []byte) ([]byte, error) {
		executed.Add(1)
		return []byte(`"bg:` + name + `"`), nil
	}

	eng := engine.New(engine.Config{ProbeWindow: 150 * time.Millisecond}, direct.fn,
		engine.WithLauncher(session.NewLauncher(handler, codec, testLogger())),
		engine.WithCodec(codec),
		engine.WithLogger(testLogger()),
	)
	if err := eng.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = eng.Stop(context.Background()) })

	// Submit while the probe window is still open.
	out := make(chan outcome, 4)
	for _, name := range []string{"r1", "r2", "r3"} {
		submit(t, eng, name, nil, out)
	}

	// Nothing may execute before the probe concludes.
	time.Sleep(30 * time.Millisecond)
	if got := executed.Load(); got != 0 {
		t.Fatalf("%d requests executed before the probe concluded", got)
	}
	if got := eng.Status(); got != session.StatusNotStarted {
		t.Fatalf("status = %v, want %v", got, session.StatusNotStarted)
	}

	// The verdict releases the queue in FIFO order.
	waitReady(t, eng)
	for _, want := range []string{"r1", "r2", "r3"} {
		o := waitOutcome(t, out)
		if o.err != nil {
			t.Fatalf("%s failed: %v", o.name, o.err)
		}
		if o.name != want {
			t.Fatalf("completion order: got %s, want %s", o.name, want)
		}
	}
}

func TestConcurrentSubmitAllComplete(t *testing.T) {
	t.Parallel()

	eng, _ := newBackgroundEngine(t, func(_ context.Context, _ string, payload []byte) ([]byte, error) {
		return payload, nil
	})

	const n = 40
	out := make(chan outcome, n)

	var g errgroup.Group
	for i := range n {
		g.Go(func() error {
			name := fmt.Sprintf("r%02d", i)
			req := request.New(name, nil,
				func(result []byte) { out <- outcome{name: name, result: result} },
				func(err error) { out <- outcome{name: name, err: err} },
			)
			return eng.Submit(context.Background(), req)
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("concurrent submit: %v", err)
	}

	seen := make(map[string]int, n)
	for range n {
		o := waitOutcome(t, out)
		if o.err != nil {
			t.Fatalf("%s failed: %v", o.name, o.err)
		}
		seen[o.name]++
	}
	for name, count := range seen {
		if count != 1 {
			t.Errorf("%s completed %d times", name, count)
		}
	}
	if len(seen) != n {
		t.Fatalf("expected %d distinct completions, got %d", n, len(seen))
	}
}

// --- Failed path ---

func TestLaunchErrorFallsBackToDirect(t *testing.T) {
	t.Parallel()

	direct := &echoExecute{}
	launcher := session.LauncherFunc(func(context.Context) (*session.Channel, error) {
		return nil, errors.New("no background context available")
	})

	eng := engine.New(engine.Config{ProbeWindow: time.Second}, direct.fn,
		engine.WithLauncher(launcher),
		engine.WithLogger(testLogger()),
	)
	if err := eng.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = eng.Stop(context.Background()) })
	waitReady(t, eng)

	if got := eng.Status(); got != session.StatusFailed {
		t.Fatalf("status = %v, want %v", got, session.StatusFailed)
	}

	out := make(chan outcome, 1)
	submit(t, eng, "r1", nil, out)
	o := waitOutcome(t, out)
	if o.err != nil {
		t.Fatalf("r1 failed: %v", o.err)
	}
	if string(o.result) != `"direct:r1"` {
		t.Errorf("result = %s, want direct execution result", o.result)
	}
	if seen := direct.seen(); len(seen) != 1 || seen[0] != "r1" {
		t.Fatalf("direct path saw %v, want [r1]", seen)
	}
}

func TestFailedStatusIsSticky(t *testing.T) {
	t.Parallel()

	direct := &echoExecute{}
	eng := engine.New(engine.Config{ProbeWindow: time.Second}, direct.fn,
		engine.WithLogger(testLogger()),
	)
	if err := eng.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = eng.Stop(context.Background()) })
	waitReady(t, eng)

	out := make(chan outcome, 4)
	for _, name := range []string{"r1", "r2", "r3"} {
		submit(t, eng, name, nil, out)
		if o := waitOutcome(t, out); o.err != nil {
			t.Fatalf("%s failed: %v", o.name, o.err)
		}
	}

	if got := eng.Status(); got != session.StatusFailed {
		t.Fatalf("status = %v, want sticky %v", got, session.StatusFailed)
	}
	if seen := direct.seen(); len(seen) != 3 {
		t.Fatalf("direct path saw %v, want all three", seen)
	}
}

func TestFaultDuringProbeWindowFallsBack(t *testing.T) {
	t.Parallel()

	direct := &echoExecute{}
	codec := &session.JSONCodec{}
	launcher := session.LauncherFunc(func(ctx context.Context) (*session.Channel, error) {
		engineEnd, sessionEnd := session.Pipe(1)
		data, err := codec.Encode(session.NewFaultFrame("worker init failed"))
		if err != nil {
			return nil, err
		}
		if err := sessionEnd.Send(ctx, data); err != nil {
			return nil, err
		}
		return engineEnd, nil
	})

	eng := engine.New(engine.Config{ProbeWindow: 5 * time.Second}, direct.fn,
		engine.WithLauncher(launcher),
		engine.WithCodec(codec),
		engine.WithLogger(testLogger()),
	)
	if err := eng.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = eng.Stop(context.Background()) })
	waitReady(t, eng)

	if got := eng.Status(); got != session.StatusFailed {
		t.Fatalf("status = %v, want %v", got, session.StatusFailed)
	}

	out := make(chan outcome, 1)
	submit(t, eng, "r1", nil, out)
	if o := waitOutcome(t, out); o.err != nil {
		t.Fatalf("r1 failed: %v", o.err)
	}
}

func TestDirectExecutionErrorRoutesToErrorHandler(t *testing.T) {
	t.Parallel()

	boom := errors.New("table missing")
	execute := func(_ context.Context, req *request.Request) ([]byte, error) {
		if req.Name == "bad" {
			return nil, boom
		}
		return []byte(`"ok"`), nil
	}

	eng := engine.New(engine.Config{ProbeWindow: time.Second}, execute,
		engine.WithLogger(testLogger()),
	)
	if err := eng.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = eng.Stop(context.Background()) })
	waitReady(t, eng)

	out := make(chan outcome, 2)
	submit(t, eng, "bad", nil, out)
	submit(t, eng, "good", nil, out)

	o := waitOutcome(t, out)
	if o.name != "bad" || !errors.Is(o.err, boom) {
		t.Fatalf("first outcome = %+v, want bad with execution error", o)
	}

	// The failure does not stall the queue.
	o = waitOutcome(t, out)
	if o.name != "good" || o.err != nil {
		t.Fatalf("second outcome = %+v, want good success", o)
	}
}

// --- Manual session: routing edge cases ---

func TestBackgroundFailureRoutesRemoteError(t *testing.T) {
	t.Parallel()

	eng, _ := newBackgroundEngine(t, func(context.Context, string, []byte) ([]byte, error) {
		return nil, errors.New("constraint violated")
	})

	out := make(chan outcome, 1)
	submit(t, eng, "r1", nil, out)

	o := waitOutcome(t, out)
	if o.err == nil {
		t.Fatal("expected an error outcome")
	}
	var remote *engine.RemoteError
	if !errors.As(o.err, &remote) {
		t.Fatalf("error = %T(%v), want *engine.RemoteError", o.err, o.err)
	}
	if remote.Message != "constraint violated" {
		t.Errorf("remote message = %q", remote.Message)
	}
}

func TestUnsolicitedResultIsDropped(t *testing.T) {
	t.Parallel()

	launcher, sessionEnd := manualSession()
	codec := &session.JSONCodec{}
	violations := &violationRecorder{}
	hooks := hook.NewRegistry(testLogger())
	hooks.Register(violations)

	direct := &echoExecute{}
	eng := engine.New(engine.Config{ProbeWindow: 20 * time.Millisecond}, direct.fn,
		engine.WithLauncher(launcher),
		engine.WithCodec(codec),
		engine.WithExtensions(hooks),
		engine.WithLogger(testLogger()),
	)
	if err := eng.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = eng.Stop(context.Background()) })
	waitReady(t, eng)

	// Nothing is in flight; send a stray result.
	ctx := context.Background()
	stray, _ := codec.Encode(session.NewResultFrame("req_nothing", []byte(`"stray"`)))
	if err := sessionEnd.Send(ctx, stray); err != nil {
		t.Fatalf("send stray: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for violations.count.Load() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("protocol violation hook never fired")
		}
		time.Sleep(time.Millisecond)
	}

	// The engine still works afterwards.
	out := make(chan outcome, 1)
	submit(t, eng, "r1", []byte(`1`), out)

	frame := recvRequestFrame(t, sessionEnd, codec)
	reply, _ := codec.Encode(session.NewResultFrame(frame.ID, []byte(`"done"`)))
	if err := sessionEnd.Send(ctx, reply); err != nil {
		t.Fatalf("send reply: %v", err)
	}

	if o := waitOutcome(t, out); o.err != nil || string(o.result) != `"done"` {
		t.Fatalf("outcome = %+v, want done", o)
	}
}

func TestCorrelationMismatchKeepsRequestInFlight(t *testing.T) {
	t.Parallel()

	launcher, sessionEnd := manualSession()
	codec := &session.JSONCodec{}
	violations := &violationRecorder{}
	hooks := hook.NewRegistry(testLogger())
	hooks.Register(violations)

	direct := &echoExecute{}
	eng := engine.New(engine.Config{ProbeWindow: 20 * time.Millisecond}, direct.fn,
		engine.WithLauncher(launcher),
		engine.WithCodec(codec),
		engine.WithExtensions(hooks),
		engine.WithLogger(testLogger()),
	)
	if err := eng.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = eng.Stop(context.Background()) })
	waitReady(t, eng)

	out := make(chan outcome, 1)
	submit(t, eng, "r1", nil, out)

	ctx := context.Background()
	frame := recvRequestFrame(t, sessionEnd, codec)

	// A result for some other request ID is dropped.
	wrong, _ := codec.Encode(session.NewResultFrame("req_wrong", []byte(`"wrong"`)))
	if err := sessionEnd.Send(ctx, wrong); err != nil {
		t.Fatalf("send wrong: %v", err)
	}

	select {
	case o := <-out:
		t.Fatalf("request completed from mismatched result: %+v", o)
	case <-time.After(100 * time.Millisecond):
	}
	if violations.count.Load() == 0 {
		t.Fatal("expected a protocol violation for the mismatch")
	}

	// The correct result still completes the request.
	right, _ := codec.Encode(session.NewResultFrame(frame.ID, []byte(`"right"`)))
	if err := sessionEnd.Send(ctx, right); err != nil {
		t.Fatalf("send right: %v", err)
	}
	if o := waitOutcome(t, out); o.err != nil || string(o.result) != `"right"` {
		t.Fatalf("outcome = %+v, want right", o)
	}
}

func TestDuplicateResultCompletesOnce(t *testing.T) {
	t.Parallel()

	launcher, sessionEnd := manualSession()
	codec := &session.JSONCodec{}

	eng := engine.New(engine.Config{ProbeWindow: 20 * time.Millisecond}, (&echoExecute{}).fn,
		engine.WithLauncher(launcher),
		engine.WithCodec(codec),
		engine.WithLogger(testLogger()),
	)
	if err := eng.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = eng.Stop(context.Background()) })
	waitReady(t, eng)

	var completions atomic.Int64
	req := request.New("r1", nil,
		func([]byte) { completions.Add(1) },
		func(error) { completions.Add(1) },
	)
	if err := eng.Submit(context.Background(), req); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	ctx := context.Background()
	frame := recvRequestFrame(t, sessionEnd, codec)
	reply, _ := codec.Encode(session.NewResultFrame(frame.ID, []byte(`"once"`)))
	if err := sessionEnd.Send(ctx, reply); err != nil {
		t.Fatalf("send reply: %v", err)
	}
	if err := sessionEnd.Send(ctx, reply); err != nil {
		t.Fatalf("send duplicate: %v", err)
	}

	time.Sleep(100 * time.Millisecond)
	if got := completions.Load(); got != 1 {
		t.Fatalf("handlers invoked %d times, want exactly once", got)
	}
}

func TestLateFaultAfterRegistrationIgnored(t *testing.T) {
	t.Parallel()

	launcher, sessionEnd := manualSession()
	codec := &session.JSONCodec{}

	eng := engine.New(engine.Config{ProbeWindow: 20 * time.Millisecond}, (&echoExecute{}).fn,
		engine.WithLauncher(launcher),
		engine.WithCodec(codec),
		engine.WithLogger(testLogger()),
	)
	if err := eng.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = eng.Stop(context.Background()) })
	waitReady(t, eng)

	if got := eng.Status(); got != session.StatusRegistered {
		t.Fatalf("status = %v, want %v", got, session.StatusRegistered)
	}

	// Fault arrives after the window concluded. The verdict stands.
	ctx := context.Background()
	fault, _ := codec.Encode(session.NewFaultFrame("late fault"))
	if err := sessionEnd.Send(ctx, fault); err != nil {
		t.Fatalf("send fault: %v", err)
	}

	time.Sleep(50 * time.Millisecond)
	if got := eng.Status(); got != session.StatusRegistered {
		t.Fatalf("status after late fault = %v, want %v", got, session.StatusRegistered)
	}

	// The session remains usable.
	out := make(chan outcome, 1)
	submit(t, eng, "r1", nil, out)
	frame := recvRequestFrame(t, sessionEnd, codec)
	reply, _ := codec.Encode(session.NewResultFrame(frame.ID, []byte(`"alive"`)))
	if err := sessionEnd.Send(ctx, reply); err != nil {
		t.Fatalf("send reply: %v", err)
	}
	if o := waitOutcome(t, out); o.err != nil {
		t.Fatalf("r1 failed: %v", o.err)
	}
}

func recvRequestFrame(t *testing.T, sessionEnd *session.Channel, codec session.Codec) *session.Frame {
	t.Helper()

	select {
	case data := <-sessionEnd.Recv():
		frame, err := codec.Decode(data)
		if err != nil {
			t.Fatalf("decode request frame: %v", err)
		}
		if frame.Type != session.FrameRequest {
			t.Fatalf("frame type = %q, want request", frame.Type)
		}
		return frame
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a request frame")
		return nil
	}
}

// --- Admission, reset, shutdown ---

func TestSubmitQueueFull(t *testing.T) {
	t.Parallel()

	// A silent session keeps the probe window open, so nothing
	// dispatches and the bound holds.
	bounded := engine.New(engine.Config{ProbeWindow: 5 * time.Second, MaxPending: 2}, (&echoExecute{}).fn,
		engine.WithLauncher(session.LauncherFunc(func(context.Context) (*session.Channel, error) {
			engineEnd, _ := session.Pipe(1)
			return engineEnd, nil
		})),
		engine.WithLogger(testLogger()),
	)
	if err := bounded.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = bounded.Stop(context.Background()) })

	ctx := context.Background()
	for i := range 2 {
		req := request.New(fmt.Sprintf("r%d", i), nil, nil, nil)
		if err := bounded.Submit(ctx, req); err != nil {
			t.Fatalf("Submit %d: %v", i, err)
		}
	}
	err := bounded.Submit(ctx, request.New("overflow", nil, nil, nil))
	if !errors.Is(err, engine.ErrQueueFull) {
		t.Fatalf("Submit = %v, want ErrQueueFull", err)
	}
}

func TestSubmitRateLimited(t *testing.T) {
	t.Parallel()

	eng := engine.New(engine.Config{ProbeWindow: time.Second, RateLimit: 1, RateBurst: 1}, (&echoExecute{}).fn,
		engine.WithLogger(testLogger()),
	)
	if err := eng.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = eng.Stop(context.Background()) })

	ctx := context.Background()
	if err := eng.Submit(ctx, request.New("r1", nil, nil, nil)); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	err := eng.Submit(ctx, request.New("r2", nil, nil, nil))
	if !errors.Is(err, engine.ErrRateLimited) {
		t.Fatalf("second submit = %v, want ErrRateLimited", err)
	}
}

func TestResetRunsFreshProbeCycle(t *testing.T) {
	t.Parallel()

	// The launcher fails its first launch and succeeds afterwards.
	var launches atomic.Int64
	codec := &session.JSONCodec{}
	runnerLauncher := session.NewLauncher(func(_ context.Context, name string, _ []byte) ([]byte, error) {
		return []byte(`"bg:` + name + `"`), nil
	}, codec, testLogger())
	launcher := session.LauncherFunc(func(ctx context.Context) (*session.Channel, error) {
		if launches.Add(1) == 1 {
			return nil, errors.New("transient launch failure")
		}
		return runnerLauncher.Launch(ctx)
	})

	eng := engine.New(engine.Config{ProbeWindow: 20 * time.Millisecond}, (&echoExecute{}).fn,
		engine.WithLauncher(launcher),
		engine.WithCodec(codec),
		engine.WithLogger(testLogger()),
	)
	if err := eng.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = eng.Stop(context.Background()) })
	waitReady(t, eng)

	if got := eng.Status(); got != session.StatusFailed {
		t.Fatalf("status = %v, want %v before reset", got, session.StatusFailed)
	}

	if err := eng.Reset(context.Background()); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if got := eng.Status(); got != session.StatusRegistered {
		t.Fatalf("status = %v, want %v after reset", got, session.StatusRegistered)
	}

	out := make(chan outcome, 1)
	submit(t, eng, "r1", nil, out)
	o := waitOutcome(t, out)
	if o.err != nil || string(o.result) != `"bg:r1"` {
		t.Fatalf("outcome = %+v, want background result", o)
	}
}

func TestStopFailsPendingWithErrClosed(t *testing.T) {
	t.Parallel()

	// Requests queued during the probe window are pending at Stop.
	eng := engine.New(engine.Config{ProbeWindow: 5 * time.Second}, (&echoExecute{}).fn,
		engine.WithLauncher(session.LauncherFunc(func(context.Context) (*session.Channel, error) {
			engineEnd, _ := session.Pipe(1)
			return engineEnd, nil
		})),
		engine.WithLogger(testLogger()),
	)
	if err := eng.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	out := make(chan outcome, 3)
	for _, name := range []string{"r1", "r2", "r3"} {
		submit(t, eng, name, nil, out)
	}

	if err := eng.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	for range 3 {
		o := waitOutcome(t, out)
		if !errors.Is(o.err, engine.ErrClosed) {
			t.Fatalf("%s outcome = %+v, want ErrClosed", o.name, o)
		}
	}

	// Submit after Stop is rejected.
	err := eng.Submit(context.Background(), request.New("late", nil, nil, nil))
	if !errors.Is(err, engine.ErrClosed) {
		t.Fatalf("Submit after Stop = %v, want ErrClosed", err)
	}
}

func TestStopNeverStrandsAcceptedRequests(t *testing.T) {
	t.Parallel()

	// Submitters race Stop; every request accepted with a nil error must
	// still complete through exactly one handler, either by dispatch or
	// by the shutdown drain.
	for range 25 {
		eng := engine.New(engine.Config{ProbeWindow: time.Millisecond},
			func(context.Context, *request.Request) ([]byte, error) { return nil, nil },
			engine.WithLogger(testLogger()),
		)
		if err := eng.Start(context.Background()); err != nil {
			t.Fatalf("Start: %v", err)
		}

		var accepted, completed atomic.Int64
		var wg sync.WaitGroup
		for range 4 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for range 50 {
					req := request.New("r", nil,
						func([]byte) { completed.Add(1) },
						func(error) { completed.Add(1) },
					)
					if err := eng.Submit(context.Background(), req); err == nil {
						accepted.Add(1)
					}
				}
			}()
		}

		if err := eng.Stop(context.Background()); err != nil {
			t.Fatalf("Stop: %v", err)
		}
		wg.Wait()

		if a, c := accepted.Load(), completed.Load(); a != c {
			t.Fatalf("%d requests accepted but only %d completed", a, c)
		}
	}
}

func TestStatsIdleEngine(t *testing.T) {
	t.Parallel()

	eng := engine.New(engine.Config{ProbeWindow: 10 * time.Millisecond}, (&echoExecute{}).fn,
		engine.WithLogger(testLogger()),
	)
	if err := eng.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = eng.Stop(context.Background()) })
	waitReady(t, eng)

	stats := eng.Stats()
	if stats.Pending != 0 || stats.InFlight {
		t.Fatalf("stats = %+v, want idle", stats)
	}
	if stats.Status != session.StatusFailed {
		t.Fatalf("status = %v, want %v without a launcher", stats.Status, session.StatusFailed)
	}
}
