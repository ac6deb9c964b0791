package hook_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/mirumirumi/JsStore/hook"
	"github.com/mirumirumi/JsStore/request"
)

// ──────────────────────────────────────────────────
// Test extensions
// ──────────────────────────────────────────────────

// allHooksExt implements every lifecycle hook for testing.
type allHooksExt struct {
	calls []string
}

func (e *allHooksExt) Name() string { return "all-hooks" }

func (e *allHooksExt) OnRequestQueued(_ context.Context, _ *request.Request) error {
	e.calls = append(e.calls, "OnRequestQueued")
	return nil
}

func (e *allHooksExt) OnRequestDispatched(_ context.Context, _ *request.Request, _ string) error {
	e.calls = append(e.calls, "OnRequestDispatched")
	return nil
}

func (e *allHooksExt) OnRequestCompleted(_ context.Context, _ *request.Request, _ string, _ time.Duration) error {
	e.calls = append(e.calls, "OnRequestCompleted")
	return nil
}

func (e *allHooksExt) OnRequestFailed(_ context.Context, _ *request.Request, _ string, _ error) error {
	e.calls = append(e.calls, "OnRequestFailed")
	return nil
}

func (e *allHooksExt) OnSessionRegistered(_ context.Context) error {
	e.calls = append(e.calls, "OnSessionRegistered")
	return nil
}

func (e *allHooksExt) OnSessionFault(_ context.Context, _ string) error {
	e.calls = append(e.calls, "OnSessionFault")
	return nil
}

func (e *allHooksExt) OnProtocolViolation(_ context.Context, _ string) error {
	e.calls = append(e.calls, "OnProtocolViolation")
	return nil
}

func (e *allHooksExt) OnStoreOpened(_ context.Context) error {
	e.calls = append(e.calls, "OnStoreOpened")
	return nil
}

func (e *allHooksExt) OnShutdown(_ context.Context) error {
	e.calls = append(e.calls, "OnShutdown")
	return nil
}

// requestOnlyExt only implements request-related hooks.
type requestOnlyExt struct {
	calls []string
}

func (e *requestOnlyExt) Name() string { return "request-only" }

func (e *requestOnlyExt) OnRequestQueued(_ context.Context, _ *request.Request) error {
	e.calls = append(e.calls, "OnRequestQueued")
	return nil
}

func (e *requestOnlyExt) OnRequestCompleted(_ context.Context, _ *request.Request, _ string, _ time.Duration) error {
	e.calls = append(e.calls, "OnRequestCompleted")
	return nil
}

// failingExt returns errors from hooks.
type failingExt struct{}

func (e *failingExt) Name() string { return "failing" }

func (e *failingExt) OnRequestQueued(_ context.Context, _ *request.Request) error {
	return errors.New("boom")
}

func (e *failingExt) OnShutdown(_ context.Context) error {
	return errors.New("shutdown boom")
}

// ──────────────────────────────────────────────────
// Tests
// ──────────────────────────────────────────────────

func newTestRequest() *request.Request {
	return request.New("select", nil, nil, nil)
}

func TestRegistry_RegisterDiscoversInterfaces(t *testing.T) {
	r := hook.NewRegistry(slog.Default())
	all := &allHooksExt{}
	r.Register(all)

	if got := len(r.Extensions()); got != 1 {
		t.Fatalf("expected 1 extension, got %d", got)
	}
	if got := r.Extensions()[0].Name(); got != "all-hooks" {
		t.Fatalf("expected name 'all-hooks', got %q", got)
	}
}

func TestRegistry_EmitFiresOnlyImplementors(t *testing.T) {
	r := hook.NewRegistry(slog.Default())
	all := &allHooksExt{}
	ro := &requestOnlyExt{}
	r.Register(all)
	r.Register(ro)

	ctx := context.Background()
	req := newTestRequest()

	// Both implement OnRequestQueued → both called.
	r.EmitRequestQueued(ctx, req)
	if len(all.calls) != 1 || all.calls[0] != "OnRequestQueued" {
		t.Fatalf("all: expected [OnRequestQueued], got %v", all.calls)
	}
	if len(ro.calls) != 1 || ro.calls[0] != "OnRequestQueued" {
		t.Fatalf("ro: expected [OnRequestQueued], got %v", ro.calls)
	}

	// Only all implements OnRequestDispatched → ro not called.
	r.EmitRequestDispatched(ctx, req, hook.ModeBackground)
	if len(all.calls) != 2 || all.calls[1] != "OnRequestDispatched" {
		t.Fatalf("all: expected OnRequestDispatched as 2nd, got %v", all.calls)
	}
	if len(ro.calls) != 1 {
		t.Fatalf("ro: should still have 1 call, got %v", ro.calls)
	}
}

func TestRegistry_AllRequestHooksFire(t *testing.T) {
	r := hook.NewRegistry(slog.Default())
	all := &allHooksExt{}
	r.Register(all)

	ctx := context.Background()
	req := newTestRequest()

	r.EmitRequestQueued(ctx, req)
	r.EmitRequestDispatched(ctx, req, hook.ModeBackground)
	r.EmitRequestCompleted(ctx, req, hook.ModeBackground, time.Second)
	r.EmitRequestFailed(ctx, req, hook.ModeDirect, errors.New("fail"))

	expected := []string{
		"OnRequestQueued", "OnRequestDispatched",
		"OnRequestCompleted", "OnRequestFailed",
	}
	if len(all.calls) != len(expected) {
		t.Fatalf("expected %d calls, got %d: %v", len(expected), len(all.calls), all.calls)
	}
	for i, want := range expected {
		if all.calls[i] != want {
			t.Errorf("call[%d] = %q, want %q", i, all.calls[i], want)
		}
	}
}

func TestRegistry_SessionAndOtherHooksFire(t *testing.T) {
	r := hook.NewRegistry(slog.Default())
	all := &allHooksExt{}
	r.Register(all)

	ctx := context.Background()
	r.EmitSessionRegistered(ctx)
	r.EmitSessionFault(ctx, "worker init failed")
	r.EmitProtocolViolation(ctx, "frm_abc")
	r.EmitStoreOpened(ctx)
	r.EmitShutdown(ctx)

	expected := []string{
		"OnSessionRegistered", "OnSessionFault",
		"OnProtocolViolation", "OnStoreOpened", "OnShutdown",
	}
	if len(all.calls) != len(expected) {
		t.Fatalf("expected %d calls, got %d: %v", len(expected), len(all.calls), all.calls)
	}
	for i, want := range expected {
		if all.calls[i] != want {
			t.Errorf("call[%d] = %q, want %q", i, all.calls[i], want)
		}
	}
}

func TestRegistry_HookErrorsLoggedNotPropagated(t *testing.T) {
	r := hook.NewRegistry(slog.Default())
	failing := &failingExt{}
	all := &allHooksExt{}

	// Register failing first, then all-hooks. Both should be called.
	r.Register(failing)
	r.Register(all)

	ctx := context.Background()

	// No panic, no error propagation. allHooksExt should still fire.
	r.EmitRequestQueued(ctx, newTestRequest())

	if len(all.calls) != 1 || all.calls[0] != "OnRequestQueued" {
		t.Fatalf("all: expected [OnRequestQueued] despite failing ext, got %v", all.calls)
	}
}

func TestRegistry_EmptyRegistryNoOp(_ *testing.T) {
	r := hook.NewRegistry(slog.Default())
	ctx := context.Background()
	req := request.New("select", nil, nil, nil)

	// None of these should panic or error.
	r.EmitRequestQueued(ctx, req)
	r.EmitRequestDispatched(ctx, req, hook.ModeDirect)
	r.EmitRequestCompleted(ctx, req, hook.ModeDirect, time.Second)
	r.EmitRequestFailed(ctx, req, hook.ModeDirect, errors.New("x"))
	r.EmitSessionRegistered(ctx)
	r.EmitSessionFault(ctx, "x")
	r.EmitProtocolViolation(ctx, "frm_x")
	r.EmitStoreOpened(ctx)
	r.EmitShutdown(ctx)
}

func TestRegistry_MultipleExtensionsOrderPreserved(t *testing.T) {
	r := hook.NewRegistry(slog.Default())
	ext1 := &allHooksExt{}
	ext2 := &allHooksExt{}
	r.Register(ext1)
	r.Register(ext2)

	ctx := context.Background()
	r.EmitRequestQueued(ctx, newTestRequest())

	// Both should be called.
	if len(ext1.calls) != 1 {
		t.Errorf("ext1: expected 1 call, got %d", len(ext1.calls))
	}
	if len(ext2.calls) != 1 {
		t.Errorf("ext2: expected 1 call, got %d", len(ext2.calls))
	}
}
