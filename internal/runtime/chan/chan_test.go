package korlangchan

import (
	"sync"
	"testing"
)

// TestSPSCRingHighVolumeNoLossNoDuplication runs a single producer and
// single consumer over 200,000 items and checks every item arrives
// exactly once in order.
func TestSPSCRingHighVolumeNoLossNoDuplication(t *testing.T) {
	const n = 200000
	r := NewSPSCRing(1024)

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			for !r.Push(i) {
			}
		}
	}()

	received := make([]int, 0, n)
	go func() {
		defer wg.Done()
		for len(received) < n {
			v, ok := r.Pop()
			if !ok {
				continue
			}
			received = append(received, v.(int))
		}
	}()

	wg.Wait()

	if len(received) != n {
		t.Fatalf("expected %d items, got %d", n, len(received))
	}
	for i, v := range received {
		if v != i {
			t.Fatalf("item %d out of order or duplicated/lost: got %d", i, v)
		}
	}
}

func TestSPSCRingFullAndEmptyBoundaries(t *testing.T) {
	r := NewSPSCRing(4) // rounds up to 4
	for i := 0; i < 3; i++ {
		if !r.Push(i) {
			t.Fatalf("push %d should have succeeded", i)
		}
	}
	if r.Push(99) {
		t.Fatalf("ring should be full at capacity-1 occupancy")
	}
	for i := 0; i < 3; i++ {
		v, ok := r.Pop()
		if !ok || v.(int) != i {
			t.Fatalf("pop %d: got %v, %v", i, v, ok)
		}
	}
	if _, ok := r.Pop(); ok {
		t.Fatalf("expected empty ring to report false")
	}
}

func TestMPMCQueueMultipleProducersConsumers(t *testing.T) {
	q := NewMPMCQueue()
	const producers, perProducer = 8, 500
	const total = producers * perProducer

	var wg sync.WaitGroup
	wg.Add(producers)
	for i := 0; i < producers; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < perProducer; j++ {
				q.Send(j)
			}
		}()
	}

	var mu sync.Mutex
	count := 0
	var cwg sync.WaitGroup
	cwg.Add(4)
	for c := 0; c < 4; c++ {
		go func() {
			defer cwg.Done()
			for {
				mu.Lock()
				done := count >= total
				mu.Unlock()
				if done {
					return
				}
				if _, ok := q.Receive(); ok {
					mu.Lock()
					count++
					mu.Unlock()
				}
			}
		}()
	}

	wg.Wait()
	// Every item has been sent; closing lets a consumer still blocked in
	// Receive return once the queue is drained.
	q.Close()
	cwg.Wait()

	if count != total {
		t.Fatalf("expected %d items received, got %d", total, count)
	}
}

func TestMPMCQueueCloseUnblocksReceivers(t *testing.T) {
	q := NewMPMCQueue()
	done := make(chan bool)
	go func() {
		_, ok := q.Receive()
		done <- ok
	}()
	q.Close()
	if ok := <-done; ok {
		t.Fatalf("expected Receive to report false after Close on an empty queue")
	}
}

func TestTreiberStackPushPopOrdering(t *testing.T) {
	s := NewTreiberStack()
	for i := 0; i < 5; i++ {
		s.Push(i)
	}
	for i := 4; i >= 0; i-- {
		v, ok := s.Pop()
		if !ok || v.(int) != i {
			t.Fatalf("expected LIFO pop %d, got %v, %v", i, v, ok)
		}
	}
	if _, ok := s.Pop(); ok {
		t.Fatalf("expected empty stack to report false")
	}
}

func TestTreiberStackConcurrentPushPop(t *testing.T) {
	s := NewTreiberStack()
	const n = 10000
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			s.Push(i)
		}
	}()
	popped := 0
	go func() {
		defer wg.Done()
		for popped < n {
			if _, ok := s.Pop(); ok {
				popped++
			}
		}
	}()
	wg.Wait()
	if popped != n {
		t.Fatalf("expected to pop %d items, popped %d", n, popped)
	}
}
