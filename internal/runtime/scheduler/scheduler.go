// Package scheduler implements a fixed-size pool of workers, each
// owning a FIFO deque and a condition variable, with work-stealing
// from the back of a peer's deque.
package scheduler

import (
	"bytes"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

// Task is a unit of work submitted to the pool.
type Task func()

// worker owns a FIFO deque (appended at the back by Spawn, popped from
// the front by its owner, stolen from the back by peers) and a condition variable used to park
// when the deque is empty and no peer has work to steal.
type worker struct {
	id       int
	mu       sync.Mutex
	cond     *sync.Cond
	deque    []Task
	pool     *Pool
}

// Pool is the fixed-size worker pool. Spawn round-robins across
// workers; each worker loops pop-own-front, else try-steal-peer-back,
// else park. The pool runs for the process lifetime; there is no
// shutdown path.
type Pool struct {
	workers []*worker
	next    uint64 // round-robin cursor for Spawn

	closed int32
}

// Go has no native thread-local storage, and a task runs synchronously
// on its owning worker's own goroutine (no per-task goroutine is
// spawned), so WORKER_ID is tracked per calling goroutine via its
// runtime-assigned goroutine id, keyed in a package-level map — the
// closest equivalent Go offers to a native TLS slot.
var workerIDs sync.Map // goroutine id (int64) -> worker id (int)

// goroutineID parses the numeric id out of "goroutine 123 [running]:",
// the first line runtime.Stack emits for the calling goroutine.
func goroutineID() int64 {
	buf := make([]byte, 64)
	n := runtime.Stack(buf, false)
	fields := bytes.Fields(buf[:n])
	if len(fields) < 2 {
		return -1
	}
	id, err := strconv.ParseInt(string(fields[1]), 10, 64)
	if err != nil {
		return -1
	}
	return id
}

// CurrentWorkerID returns the calling goroutine's WORKER_ID if it is a
// pool worker's run loop (or a task running synchronously on it), or
// -1 otherwise.
func CurrentWorkerID() int {
	if v, ok := workerIDs.Load(goroutineID()); ok {
		return v.(int)
	}
	return -1
}

// New builds a pool of n workers and starts their run loops.
func New(n int) *Pool {
	if n <= 0 {
		n = 1
	}
	p := &Pool{workers: make([]*worker, n)}
	for i := 0; i < n; i++ {
		w := &worker{id: i, pool: p}
		w.cond = sync.NewCond(&w.mu)
		p.workers[i] = w
		go w.run()
	}
	go p.nudgeLoop()
	return p
}

// nudgeLoop periodically wakes every parked worker so it rechecks its
// peers' deques. Spawn only signals the one worker it targeted, which
// is exactly what lets owner-vs-stealer ordering hold, but it means a
// worker parked waiting for its OWN work would never otherwise notice
// work sitting on a peer's deque for it to steal.
func (p *Pool) nudgeLoop() {
	ticker := time.NewTicker(time.Millisecond)
	defer ticker.Stop()
	for range ticker.C {
		if atomic.LoadInt32(&p.closed) != 0 {
			return
		}
		for _, w := range p.workers {
			w.cond.Signal()
		}
	}
}

// Spawn selects the next worker round-robin, appends task to its
// deque, and signals its condition variable.
func (p *Pool) Spawn(t Task) {
	idx := int(atomic.AddUint64(&p.next, 1)-1) % len(p.workers)
	w := p.workers[idx]
	w.mu.Lock()
	w.deque = append(w.deque, t)
	w.mu.Unlock()
	w.cond.Signal()
}

// NumWorkers reports the pool's fixed worker count.
func (p *Pool) NumWorkers() int { return len(p.workers) }

func (w *worker) run() {
	workerIDs.Store(goroutineID(), w.id)
	for atomic.LoadInt32(&w.pool.closed) == 0 {
		if t, ok := w.popOwn(); ok {
			t()
			continue
		}
		if t, ok := w.stealFromPeers(); ok {
			t()
			continue
		}
		w.park()
	}
}

// popOwn pops from the front of the worker's own deque: FIFO from the
// owner's point of view.
func (w *worker) popOwn() (Task, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.deque) == 0 {
		return nil, false
	}
	t := w.deque[0]
	w.deque = w.deque[1:]
	return t, true
}

// stealFromPeers attempts to steal from the back of each peer's
// deque using a non-blocking try-lock, skipping contended peers: LIFO
// from the stealer's point of view.
func (w *worker) stealFromPeers() (Task, bool) {
	for _, peer := range w.pool.workers {
		if peer == w {
			continue
		}
		if t, ok := peer.tryStealBack(); ok {
			return t, true
		}
	}
	return nil, false
}

func (w *worker) tryStealBack() (Task, bool) {
	if !w.mu.TryLock() {
		return nil, false
	}
	defer w.mu.Unlock()
	if len(w.deque) == 0 {
		return nil, false
	}
	last := len(w.deque) - 1
	t := w.deque[last]
	w.deque = w.deque[:last]
	return t, true
}

// park waits on the condition variable until Spawn signals new work or
// nudgeLoop's periodic signal wakes it to re-check its peers; park
// itself has no timeout.
func (w *worker) park() {
	w.mu.Lock()
	if len(w.deque) == 0 {
		w.cond.Wait()
	}
	w.mu.Unlock()
}

// Drain blocks the caller until every worker's deque is empty. It does
// not prevent new Spawns from racing in concurrently; it is intended
// for tests that call Spawn first and then wait for drain.
func (p *Pool) Drain() {
	for {
		idle := true
		for _, w := range p.workers {
			w.mu.Lock()
			if len(w.deque) != 0 {
				idle = false
			}
			w.mu.Unlock()
		}
		if idle {
			return
		}
	}
}
