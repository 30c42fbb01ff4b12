// Package async implements a Coroutine[T, E] wrapping a polled future,
// executed as a scheduler.Task with a no-op waker. Built on
// internal/runtime/scheduler's Task/Pool and on the same
// generic-type-parameter naming style used for the two-parameter
// Coroutine elsewhere in the checker.
package async

import (
	"log"
	"time"

	"github.com/korlang-lang/korlang/internal/runtime/scheduler"
)

// PollState is the result of one Coroutine.Poll call.
type PollState int

const (
	Pending PollState = iota
	Ready
)

// Waker is passed to Poll so a coroutine can, in a fuller
// implementation, ask to be re-polled on readiness. This executor's
// waker is a documented no-op: Pending returns control to the
// scheduler without re-enqueueing.
type Waker interface {
	Wake()
}

type noopWaker struct{}

func (noopWaker) Wake() {}

// Coroutine[T, E] polls to either Ready(value) or an error E, or
// Pending. Poll must be non-blocking and return quickly: the scheduler
// never preempts a running task, so scheduling is cooperative only.
type Coroutine[T any, E any] interface {
	Poll(w Waker) (state PollState, value T, err E)
}

// Run wraps a coroutine into a scheduler.Task. On Ready, the result (or
// error) is logged with the elapsed time since Run was called. On
// Pending, the task simply returns — this executor does not re-enqueue
// itself on wake, a documented simplification; a production
// implementation must re-enqueue when the waker fires.
func Run[T any, E any](p *scheduler.Pool, c Coroutine[T, E]) {
	start := time.Now()
	p.Spawn(func() {
		state, value, err := c.Poll(noopWaker{})
		switch state {
		case Ready:
			log.Printf("async: coroutine ready after %s: value=%v err=%v", time.Since(start), value, err)
		case Pending:
			log.Printf("async: coroutine pending after %s (not re-enqueued)", time.Since(start))
		}
	})
}

// FuncCoroutine adapts a plain poll function into a Coroutine, the
// common case for coroutines compiled down from generated poll bodies
// rather than hand-written state machines.
type FuncCoroutine[T any, E any] func(w Waker) (PollState, T, E)

func (f FuncCoroutine[T, E]) Poll(w Waker) (PollState, T, E) { return f(w) }
