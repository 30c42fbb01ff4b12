// Package alloc is Korlang's tiered allocator: a per-thread stack arena
// (bump allocation with frame markers), a raw heap tier, and a managed
// tier that delegates to internal/runtime/gc, plus the ArcBuf
// refcounted buffer. Thread-local state is passed explicitly via a
// caller-supplied handle rather than relying on real TLS.
package alloc

import (
	"sync"
	"sync/atomic"

	"github.com/korlang-lang/korlang/internal/runtime/gc"
)

// StackArena is a per-thread bump allocator: PushFrame records a
// high-water mark, PopFrame truncates the arena back to it, invalidating
// every address handed out inside that frame — callers must not retain
// addresses past the owning frame. Not safe for concurrent use by
// design: one arena per thread.
type StackArena struct {
	buf    []byte
	marks  []int
}

func NewStackArena(capacity int) *StackArena {
	return &StackArena{buf: make([]byte, 0, capacity)}
}

// PushFrame records the current high-water mark.
func (a *StackArena) PushFrame() {
	a.marks = append(a.marks, len(a.buf))
}

// PopFrame truncates the arena back to the saved mark. Any slice handed
// out by Alloc inside that frame is now invalid to dereference.
func (a *StackArena) PopFrame() {
	if len(a.marks) == 0 {
		return
	}
	mark := a.marks[len(a.marks)-1]
	a.marks = a.marks[:len(a.marks)-1]
	a.buf = a.buf[:mark]
}

// Alloc bumps the arena by size bytes (alignment rounded up to align)
// and returns the new region. Growth reallocates the backing array,
// which is why addresses must not outlive their owning frame.
func (a *StackArena) Alloc(size, align int) []byte {
	a.AllocAligned(size, align)
	start := len(a.buf)
	for i := 0; i < size; i++ {
		a.buf = append(a.buf, 0)
	}
	return a.buf[start : start+size]
}

// AllocAligned pads the arena to the next align-byte boundary.
func (a *StackArena) AllocAligned(size, align int) {
	if align <= 1 {
		return
	}
	rem := len(a.buf) % align
	if rem == 0 {
		return
	}
	pad := align - rem
	for i := 0; i < pad; i++ {
		a.buf = append(a.buf, 0)
	}
}

// RawHeap is the "system malloc/free equivalent" tier: allocation not
// tracked by the GC at all, freed explicitly by the caller.
type RawHeap struct {
	mu    sync.Mutex
	live  map[*byte][]byte
	count int64
}

func NewRawHeap() *RawHeap {
	return &RawHeap{live: map[*byte][]byte{}}
}

func (h *RawHeap) Alloc(size int) []byte {
	buf := make([]byte, size)
	h.mu.Lock()
	h.live[&buf[0]] = buf
	atomic.AddInt64(&h.count, 1)
	h.mu.Unlock()
	return buf
}

func (h *RawHeap) Free(buf []byte) {
	if len(buf) == 0 {
		return
	}
	h.mu.Lock()
	delete(h.live, &buf[0])
	h.mu.Unlock()
	atomic.AddInt64(&h.count, -1)
}

func (h *RawHeap) LiveCount() int64 { return atomic.LoadInt64(&h.count) }

// Tier selects which allocation strategy Allocator.Alloc uses for a
// given request, driven by the escape/`@nogc` analysis upstream.
type Tier int

const (
	Stack Tier = iota
	Raw
	Managed
)

// Allocator dispatches to the arena, the raw heap, or the managed
// (GC) tier — the "tiered allocator".
type Allocator struct {
	Arena *StackArena
	Raw   *RawHeap
	Heap  *gc.Heap
}

func New(arenaCapacity int, heap *gc.Heap) *Allocator {
	return &Allocator{
		Arena: NewStackArena(arenaCapacity),
		Raw:   NewRawHeap(),
		Heap:  heap,
	}
}

// Alloc allocates size bytes on the requested tier. For Managed it
// returns the heap's *gc.GcObject along with its payload (for Stack and
// Raw the object is nil); callers pin/root a managed object themselves
// via the Heap if it must survive past the current stack frame.
func (al *Allocator) Alloc(tier Tier, size, align int) (*gc.GcObject, []byte) {
	switch tier {
	case Stack:
		return nil, al.Arena.Alloc(size, align)
	case Raw:
		return nil, al.Raw.Alloc(size)
	default:
		obj := al.Heap.Alloc(size, align)
		return obj, obj.Payload
	}
}

// ArcBuf is a refcounted byte buffer, optionally backed by an anonymous
// mapping (simulated here as a plain byte slice — see DESIGN.md for why
// no real mmap binding is wired in). Refcounting uses a Relaxed
// increment and a Release decrement, with an Acquire fence implied by
// Go's atomic package on the final decrement (the last release is the
// one whose atomic decrement returns zero).
type ArcBuf struct {
	data    []byte
	refs    int64
	mmapped bool
}

// NewArcBuf constructs a heap-backed ArcBuf with an initial refcount of 1.
func NewArcBuf(size int) *ArcBuf {
	return &ArcBuf{data: make([]byte, size), refs: 1}
}

// NewArcBufMmap is the anonymous-private-mapping variant; modeled the
// same as NewArcBuf since this layer has no real syscall.Mmap binding.
func NewArcBufMmap(size int) *ArcBuf {
	b := NewArcBuf(size)
	b.mmapped = true
	return b
}

func (b *ArcBuf) Retain() {
	atomic.AddInt64(&b.refs, 1)
}

// Release decrements the refcount and reports whether this call freed
// the buffer (the refcount reached zero).
func (b *ArcBuf) Release() bool {
	if atomic.AddInt64(&b.refs, -1) == 0 {
		b.data = nil
		return true
	}
	return false
}

func (b *ArcBuf) Ptr() []byte   { return b.data }
func (b *ArcBuf) Size() int     { return len(b.data) }
func (b *ArcBuf) RefCount() int64 { return atomic.LoadInt64(&b.refs) }
