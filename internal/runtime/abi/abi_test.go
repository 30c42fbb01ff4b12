package abi

import (
	"strings"
	"testing"

	"github.com/korlang-lang/korlang/internal/runtime/gc"
)

func TestGcAllocAddRootSurvivesCollect(t *testing.T) {
	rt := New(256)
	obj := rt.GcAlloc(16, 8)
	rt.GcAddRoot(obj.ID)

	stats := rt.GcCollect()

	if stats.Survived == 0 {
		t.Fatalf("expected the rooted object to survive collection, stats=%+v", stats)
	}
}

func TestArcAllocRetainRelease(t *testing.T) {
	rt := New(64)
	h := rt.ArcAlloc(32)
	if rt.ArcSize(h) != 32 {
		t.Fatalf("expected size 32, got %d", rt.ArcSize(h))
	}
	rt.ArcRetain(h)
	rt.ArcRelease(h)
	if rt.ArcPtr(h) == nil {
		t.Fatalf("expected buffer to still be alive after one retain + one release")
	}
	rt.ArcRelease(h)
	if rt.ArcPtr(h) != nil {
		t.Fatalf("expected buffer to be freed after refcount reaches zero")
	}
}

func TestShadowStackPushPopViaRuntime(t *testing.T) {
	rt := New(64)
	obj := rt.GcAlloc(8, 8)
	rt.ShadowStackPush(1, obj.ID)
	snap := rt.Shadow.RootsSnapshot(1)
	if len(snap) != 1 || snap[0] != obj.ID {
		t.Fatalf("expected obj.ID on thread 1's shadow stack, got %v", snap)
	}
	rt.ShadowStackPop(1)
	if got := rt.Shadow.RootsSnapshot(1); len(got) != 0 {
		t.Fatalf("expected empty shadow stack after pop, got %v", got)
	}
}

func TestStackArenaPushPopFrame(t *testing.T) {
	rt := New(128)
	rt.StackPushFrame()
	rt.StackAlloc(16)
	rt.StackPopFrame() // must not panic
}

func TestPinUnpinRoundTrip(t *testing.T) {
	rt := New(64)
	obj := rt.GcAlloc(8, 8)
	rt.GcAddRoot(obj.ID)
	rt.Pin(obj.ID)
	if !rt.Pins.IsPinned(obj.ID) {
		t.Fatalf("expected object to be pinned")
	}
	rt.Unpin(obj.ID)
	if rt.Pins.IsPinned(obj.ID) {
		t.Fatalf("expected object to be unpinned")
	}
}

func TestRegisterFinalizerRunsOnSweep(t *testing.T) {
	rt := New(64)
	obj := rt.GcAlloc(8, 8) // unrooted: eligible for sweep
	ran := false
	rt.RegisterFinalizer(obj.ID, func(addr gc.ObjectID) {
		if addr == obj.ID {
			ran = true
		}
	})
	rt.GcCollect()
	if !ran {
		t.Fatalf("expected the finalizer to run when the unrooted object was swept")
	}
}

func TestArithmeticHelpers(t *testing.T) {
	if AddI64(2, 3) != 5 || SubI64(5, 2) != 3 || MulI64(4, 3) != 12 || DivI64(10, 2) != 5 {
		t.Fatalf("i64 arithmetic helpers produced wrong results")
	}
	if AddF64(2.5, 1.5) != 4.0 {
		t.Fatalf("f64 add produced wrong result")
	}
}

func TestSymbolsTableContainsKnownEntryPoints(t *testing.T) {
	rt := New(64)
	syms := rt.Symbols()
	for _, name := range []string{"GcAlloc", "GcCollect", "ArcAlloc", "ArcRetain", "ShadowStackPush", "Pin", "IoPrintln"} {
		if _, ok := syms[name]; !ok {
			t.Fatalf("expected Symbols() to contain %q", name)
		}
	}
}

func TestIoReadLineStripsNewline(t *testing.T) {
	rt := New(64)
	rt.reader.Reset(strings.NewReader("hello\n"))
	line, ok := rt.IoReadLine()
	if !ok || line != "hello" {
		t.Fatalf("expected (\"hello\", true), got (%q, %v)", line, ok)
	}
}
