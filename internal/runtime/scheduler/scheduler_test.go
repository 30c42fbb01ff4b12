package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/sync/semaphore"
)

func TestSpawnedTasksAllComplete(t *testing.T) {
	p := New(4)
	const n = 2000
	var counter int64
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		p.Spawn(func() {
			atomic.AddInt64(&counter, 1)
			wg.Done()
		})
	}
	wg.Wait()
	if got := atomic.LoadInt64(&counter); got != n {
		t.Fatalf("expected %d completions, got %d", n, got)
	}
}

// TestDistinctWorkerIDsObserved spawns many small tasks and expects at
// least two distinct WORKER_ID values to be observed across them.
func TestDistinctWorkerIDsObserved(t *testing.T) {
	p := New(4)
	const n = 500
	var mu sync.Mutex
	seen := map[int]bool{}
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		p.Spawn(func() {
			id := CurrentWorkerID()
			mu.Lock()
			seen[id] = true
			mu.Unlock()
			wg.Done()
		})
	}
	wg.Wait()

	if len(seen) < 2 {
		t.Fatalf("expected at least 2 distinct WORKER_IDs, saw %v", seen)
	}
}

// TestBoundedConcurrencyViaSemaphore exercises a
// golang.org/x/sync/semaphore-backed bulk-spawn harness: N tasks gated
// to at most `limit` concurrently in-flight, all observed to complete.
func TestBoundedConcurrencyViaSemaphore(t *testing.T) {
	p := New(8)
	const n = 200
	const limit = 3

	sem := semaphore.NewWeighted(limit)
	ctx := context.Background()

	var inFlight int64
	var maxSeen int64
	var wg sync.WaitGroup
	wg.Add(n)

	for i := 0; i < n; i++ {
		if err := sem.Acquire(ctx, 1); err != nil {
			t.Fatalf("sem.Acquire: %v", err)
		}
		p.Spawn(func() {
			defer sem.Release(1)
			defer wg.Done()
			cur := atomic.AddInt64(&inFlight, 1)
			for {
				max := atomic.LoadInt64(&maxSeen)
				if cur <= max || atomic.CompareAndSwapInt64(&maxSeen, max, cur) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt64(&inFlight, -1)
		})
	}
	wg.Wait()

	if got := atomic.LoadInt64(&maxSeen); got > limit {
		t.Fatalf("observed %d concurrent tasks, want <= %d", got, limit)
	}
}

func TestStealingDrainsAnOverloadedWorker(t *testing.T) {
	p := New(4)
	const n = 1000
	var counter int64
	var wg sync.WaitGroup
	wg.Add(n)
	// All tasks land on worker 0 directly (bypassing round-robin) to
	// force the other three workers to steal from its back.
	w0 := p.workers[0]
	for i := 0; i < n; i++ {
		task := func() {
			atomic.AddInt64(&counter, 1)
			wg.Done()
		}
		w0.mu.Lock()
		w0.deque = append(w0.deque, task)
		w0.mu.Unlock()
	}
	w0.cond.Signal()
	wg.Wait()
	if got := atomic.LoadInt64(&counter); got != n {
		t.Fatalf("expected %d completions, got %d", n, got)
	}
}
