// Package abi is the runtime's C-ABI entry-point table: a thin adapter
// layer that gives generated code flat, C-callable-shaped function
// names (alloc, gc_alloc, arc_retain, shadow_stack_push, ...) over
// internal/runtime/gc, alloc, rootset and a process-wide stdio
// surface. Symbols() exposes the *Runtime method entry points through a
// flat map[string]reflect.Value table, since the ABI has no package
// namespace to dispatch on; the package-level scalar arithmetic helpers
// are not part of that table.
package abi

import (
	"bufio"
	"fmt"
	"os"
	"reflect"
	"sync"

	"github.com/korlang-lang/korlang/internal/runtime/alloc"
	"github.com/korlang-lang/korlang/internal/runtime/gc"
	"github.com/korlang-lang/korlang/internal/runtime/rootset"
)

// Runtime bundles one heap, allocator, shadow stack, pin set and
// finalizer table behind the flat entry points generated code calls.
// One Runtime corresponds to one running Korlang process.
type Runtime struct {
	Heap       *gc.Heap
	Allocator  *alloc.Allocator
	Shadow     *rootset.ShadowStack
	Pins       *rootset.PinSet
	Finalizers *rootset.FinalizerTable

	arcMu sync.Mutex
	arcs  map[uintptr]*alloc.ArcBuf
	nextArc uintptr

	reader *bufio.Reader
}

// New builds a Runtime with a fresh heap, a stack arena of the given
// capacity, and stdin wired up for io_read_line.
func New(arenaCapacity int) *Runtime {
	heap := gc.New()
	rt := &Runtime{
		Heap:       heap,
		Allocator:  alloc.New(arenaCapacity, heap),
		Pins:       rootset.NewPinSet(),
		Finalizers: rootset.NewFinalizerTable(),
		arcs:       map[uintptr]*alloc.ArcBuf{},
		reader:     bufio.NewReader(os.Stdin),
	}
	rt.Shadow = rootset.NewShadowStack(heap)
	return rt
}

// --- allocation ---

// Alloc is the untracked-by-GC "system malloc equivalent" (spec's raw
// tier), routed through the Runtime's Allocator.Raw.
func (rt *Runtime) Alloc(size int) []byte { return rt.Allocator.Raw.Alloc(size) }

// Free returns buf to the raw tier.
func (rt *Runtime) Free(buf []byte) { rt.Allocator.Raw.Free(buf) }

// GcAlloc allocates size bytes on the managed (GC) tier.
func (rt *Runtime) GcAlloc(size, align int) *gc.GcObject { return rt.Heap.Alloc(size, align) }

// GcCollect runs one stop-the-world collection cycle.
func (rt *Runtime) GcCollect() gc.Stats { return rt.Heap.Collect() }

func (rt *Runtime) GcAddRoot(id gc.ObjectID)    { rt.Heap.AddRoot(id) }
func (rt *Runtime) GcRemoveRoot(id gc.ObjectID) { rt.Heap.RemoveRoot(id) }
func (rt *Runtime) GcSetConcurrent(v bool)      { rt.Heap.SetConcurrent(v) }
func (rt *Runtime) GcRegisterTracer(t gc.TracerFunc) { rt.Heap.RegisterTracer(t) }

// --- arc ---

// ArcAlloc creates a refcounted buffer and returns an opaque handle.
func (rt *Runtime) ArcAlloc(size int) uintptr { return rt.registerArc(alloc.NewArcBuf(size)) }

// ArcAllocMmap is the anonymous-mapping variant (see alloc.NewArcBufMmap
// for the documented lack of a real mmap binding in this layer).
func (rt *Runtime) ArcAllocMmap(size int) uintptr { return rt.registerArc(alloc.NewArcBufMmap(size)) }

func (rt *Runtime) registerArc(b *alloc.ArcBuf) uintptr {
	rt.arcMu.Lock()
	defer rt.arcMu.Unlock()
	rt.nextArc++
	rt.arcs[rt.nextArc] = b
	return rt.nextArc
}

func (rt *Runtime) lookupArc(h uintptr) *alloc.ArcBuf {
	rt.arcMu.Lock()
	defer rt.arcMu.Unlock()
	return rt.arcs[h]
}

func (rt *Runtime) ArcRetain(h uintptr) {
	if b := rt.lookupArc(h); b != nil {
		b.Retain()
	}
}

// ArcRelease decrements the refcount and, if it reaches zero, drops the
// handle from the table.
func (rt *Runtime) ArcRelease(h uintptr) {
	b := rt.lookupArc(h)
	if b == nil {
		return
	}
	if b.Release() {
		rt.arcMu.Lock()
		delete(rt.arcs, h)
		rt.arcMu.Unlock()
	}
}

func (rt *Runtime) ArcPtr(h uintptr) []byte {
	if b := rt.lookupArc(h); b != nil {
		return b.Ptr()
	}
	return nil
}

func (rt *Runtime) ArcSize(h uintptr) int {
	if b := rt.lookupArc(h); b != nil {
		return b.Size()
	}
	return 0
}

// --- shadow stack / pinning / finalizers ---

func (rt *Runtime) ShadowStackPush(threadID int64, id gc.ObjectID) { rt.Shadow.PushRoot(threadID, id) }
func (rt *Runtime) ShadowStackPop(threadID int64)                 { rt.Shadow.PopRoot(threadID) }

func (rt *Runtime) StackPushFrame() { rt.Allocator.Arena.PushFrame() }
func (rt *Runtime) StackPopFrame()  { rt.Allocator.Arena.PopFrame() }
func (rt *Runtime) StackAlloc(size int) []byte { return rt.Allocator.Arena.Alloc(size, 1) }
func (rt *Runtime) StackAllocAligned(size, align int) []byte {
	return rt.Allocator.Arena.Alloc(size, align)
}

func (rt *Runtime) Pin(id gc.ObjectID)   { rt.Heap.Pin(id); rt.Pins.Pin(id) }
func (rt *Runtime) Unpin(id gc.ObjectID) { rt.Heap.Unpin(id); rt.Pins.Unpin(id) }

func (rt *Runtime) RegisterFinalizer(id gc.ObjectID, fn rootset.FinalizerFunc) {
	rt.Finalizers.Register(id, fn)
	rt.Heap.SetFinalizer(func(freed gc.ObjectID) { rt.Finalizers.Run(freed) })
}

// --- barriers ---

func (rt *Runtime) WriteBarrier(obj gc.ObjectID, field int) { rt.Heap.WriteBarrier(obj, field) }
func (rt *Runtime) ReadBarrier(obj gc.ObjectID)              { rt.Heap.ReadBarrier(obj) }

// --- scalar arithmetic helpers ---
//
// These give generated code a single call target for scalar
// arithmetic. They do no overflow checking: each simply performs the
// Go operation (which wraps for integers, matching two's-complement
// wraparound).

func AddI64(a, b int64) int64 { return a + b }
func SubI64(a, b int64) int64 { return a - b }
func MulI64(a, b int64) int64 { return a * b }
func DivI64(a, b int64) int64 { return a / b }

func AddF64(a, b float64) float64 { return a + b }
func SubF64(a, b float64) float64 { return a - b }
func MulF64(a, b float64) float64 { return a * b }
func DivF64(a, b float64) float64 { return a / b }

// --- stdio ---

func (rt *Runtime) IoPrint(s string)   { fmt.Print(s) }
func (rt *Runtime) IoPrintln(s string) { fmt.Println(s) }

func (rt *Runtime) IoPrintlnI64(v int64)   { fmt.Println(v) }
func (rt *Runtime) IoPrintlnF64(v float64) { fmt.Println(v) }
func (rt *Runtime) IoPrintlnBool(v bool)   { fmt.Println(v) }

// IoReadLine reads one line from stdin, stripping the trailing
// newline. io indicates EOF by returning an empty string and a false
// second value.
func (rt *Runtime) IoReadLine() (string, bool) {
	line, err := rt.reader.ReadString('\n')
	if err != nil && line == "" {
		return "", false
	}
	for len(line) > 0 && (line[len(line)-1] == '\n' || line[len(line)-1] == '\r') {
		line = line[:len(line)-1]
	}
	return line, true
}

// Symbols exposes a flat table of every exported *Runtime method by
// name (the package-level arithmetic helpers are not included), for
// tooling that wants to enumerate or dispatch generated
// `@bridge`/`@import` calls reflectively instead of through direct Go
// calls.
func (rt *Runtime) Symbols() map[string]reflect.Value {
	v := reflect.ValueOf(rt)
	t := v.Type()
	out := make(map[string]reflect.Value, t.NumMethod())
	for i := 0; i < t.NumMethod(); i++ {
		m := t.Method(i)
		out[m.Name] = v.Method(i)
	}
	return out
}
