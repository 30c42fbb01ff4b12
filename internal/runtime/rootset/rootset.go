// Package rootset implements the per-thread shadow stack and the
// process-wide finalizer table. Go has no native thread-local storage,
// so each entry point here takes an explicit thread identifier (the
// same explicit-handle idiom the scheduler uses for WORKER_ID, passing
// the frame/thread handle explicitly rather than relying on a
// goroutine-local hack).
package rootset

import (
	"sync"

	"github.com/korlang-lang/korlang/internal/runtime/gc"
)

// RootAdder is the subset of gc.Heap's API the shadow stack needs:
// push_root registers an address as both a local shadow-stack entry and
// a GC root in the same call. *gc.Heap satisfies this directly.
type RootAdder interface {
	AddRoot(id gc.ObjectID)
	RemoveRoot(id gc.ObjectID)
}

// ShadowStack is the per-thread root stack. ThreadID is an explicit
// caller-supplied identifier (e.g. a scheduler WORKER_ID) standing in
// for what a native runtime would keep in TLS.
type ShadowStack struct {
	mu    sync.Mutex
	heap  RootAdder
	stack map[int64][]gc.ObjectID
}

func NewShadowStack(heap RootAdder) *ShadowStack {
	return &ShadowStack{heap: heap, stack: map[int64][]gc.ObjectID{}}
}

// PushRoot appends p to threadID's local list and registers it as a GC
// root.
func (s *ShadowStack) PushRoot(threadID int64, p gc.ObjectID) {
	s.mu.Lock()
	s.stack[threadID] = append(s.stack[threadID], p)
	s.mu.Unlock()
	s.heap.AddRoot(p)
}

// PopRoot removes the most recently pushed root for threadID and
// unregisters it.
func (s *ShadowStack) PopRoot(threadID int64) {
	s.mu.Lock()
	list := s.stack[threadID]
	if len(list) == 0 {
		s.mu.Unlock()
		return
	}
	p := list[len(list)-1]
	s.stack[threadID] = list[:len(list)-1]
	s.mu.Unlock()
	s.heap.RemoveRoot(p)
}

// RootsSnapshot returns a copy of threadID's current root list.
func (s *ShadowStack) RootsSnapshot(threadID int64) []gc.ObjectID {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.stack[threadID]
	out := make([]gc.ObjectID, len(list))
	copy(out, list)
	return out
}

// PinSet is the process-wide set of addresses compaction must skip.
type PinSet struct {
	mu  sync.Mutex
	set map[gc.ObjectID]bool
}

func NewPinSet() *PinSet {
	return &PinSet{set: map[gc.ObjectID]bool{}}
}

func (p *PinSet) Pin(addr gc.ObjectID) {
	p.mu.Lock()
	p.set[addr] = true
	p.mu.Unlock()
}

func (p *PinSet) Unpin(addr gc.ObjectID) {
	p.mu.Lock()
	delete(p.set, addr)
	p.mu.Unlock()
}

func (p *PinSet) IsPinned(addr gc.ObjectID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.set[addr]
}

// FinalizerFunc runs once for an address about to be freed. It must not
// resurrect the object by re-registering it as a root — doing so is
// undefined behavior.
type FinalizerFunc func(addr gc.ObjectID)

// FinalizerTable is the process-wide address -> finalizer mapping.
type FinalizerTable struct {
	mu  sync.Mutex
	fns map[gc.ObjectID]FinalizerFunc
}

func NewFinalizerTable() *FinalizerTable {
	return &FinalizerTable{fns: map[gc.ObjectID]FinalizerFunc{}}
}

// Register inserts a finalizer for addr, overwriting any existing one.
func (t *FinalizerTable) Register(addr gc.ObjectID, fn FinalizerFunc) {
	t.mu.Lock()
	t.fns[addr] = fn
	t.mu.Unlock()
}

// Run looks up addr's finalizer and invokes it once, then removes the
// entry. A no-op if addr has no registered finalizer.
func (t *FinalizerTable) Run(addr gc.ObjectID) {
	t.mu.Lock()
	fn, ok := t.fns[addr]
	if ok {
		delete(t.fns, addr)
	}
	t.mu.Unlock()
	if ok {
		fn(addr)
	}
}
