package gc

import (
	"testing"

	"golang.org/x/sync/errgroup"
)

func TestRootedObjectSurvivesCollect(t *testing.T) {
	h := New()
	obj := h.Alloc(16, 8)
	h.AddRoot(obj.ID)

	h.Collect()

	if _, ok := h.objects[obj.ID]; !ok {
		// Compaction may have relocated it; the root set must still
		// resolve to a live object either way.
		found := false
		for id := range h.roots {
			if _, ok := h.objects[id]; ok {
				found = true
			}
		}
		if !found {
			t.Fatalf("rooted object did not survive collection")
		}
	}
}

func TestUnrootedObjectIsSwept(t *testing.T) {
	h := New()
	obj := h.Alloc(16, 8)

	h.Collect()

	if _, ok := h.objects[obj.ID]; ok {
		t.Fatalf("unrooted object should have been freed")
	}
}

func TestFinalizerRunsBeforeFree(t *testing.T) {
	h := New()
	obj := h.Alloc(8, 8)
	ran := false
	h.SetFinalizer(func(id ObjectID) {
		if id == obj.ID {
			ran = true
		}
	})

	h.Collect()

	if !ran {
		t.Fatalf("expected the finalizer to run for the swept object")
	}
}

func TestPromotionAtAgeTwo(t *testing.T) {
	h := New()
	obj := h.Alloc(8, 8)
	h.AddRoot(obj.ID)

	h.Collect() // age 1
	h.Collect() // age 2: promoted

	var found *GcObject
	for _, o := range h.objects {
		found = o
	}
	if found == nil {
		t.Fatalf("rooted object vanished")
	}
	if found.Gen != Old {
		t.Fatalf("expected promotion to Old at age >= 2, got age=%d gen=%v", found.Age, found.Gen)
	}
}

func TestPromotedObjectNotCompacted(t *testing.T) {
	h := New()
	obj := h.Alloc(8, 8)
	h.AddRoot(obj.ID)
	h.Collect()
	h.Collect() // now Old

	var old *GcObject
	for _, o := range h.objects {
		old = o
	}
	idBefore := old.ID

	h.Collect() // a further cycle must not relocate an Old object

	if _, ok := h.objects[idBefore]; !ok {
		t.Fatalf("Old-generation object was compacted (relocated) after promotion")
	}
}

func TestPinnedObjectNotCompacted(t *testing.T) {
	h := New()
	obj := h.Alloc(8, 8)
	h.AddRoot(obj.ID)
	h.Pin(obj.ID)

	h.Collect()

	if _, ok := h.objects[obj.ID]; !ok {
		t.Fatalf("pinned object's address should not change across compaction")
	}
}

func TestTracerPropagatesReachability(t *testing.T) {
	h := New()
	root := h.Alloc(8, 8)
	child := h.Alloc(8, 8)
	h.AddRoot(root.ID)
	h.RegisterTracer(func(obj *GcObject, push func(child ObjectID)) {
		if obj.ID == root.ID {
			push(child.ID)
		}
	})

	h.Collect()

	found := false
	for id := range h.objects {
		if id == child.ID {
			found = true
		}
	}
	if !found {
		t.Fatalf("child reachable only via a tracer hook was swept")
	}
}

// TestStressAllocCollectCycles exercises 5,000 alloc/collect cycles
// fanned out across goroutines via errgroup.
func TestStressAllocCollectCycles(t *testing.T) {
	h := New()
	const cycles = 5000
	var g errgroup.Group
	for i := 0; i < cycles; i++ {
		g.Go(func() error {
			obj := h.Alloc(8, 8)
			h.AddRoot(obj.ID)
			h.RemoveRoot(obj.ID)
			h.Collect()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("stress cycle failed: %v", err)
	}
}
