package remotesync

import (
	"context"
	"sync"
)

// Task is a running remote operation. It yields exactly one terminal result;
// progress is reported out of band through the Progress callback.
type Task[T any] struct {
	done   chan struct{}
	cancel context.CancelFunc
	result T
	err    error
}

// Reporter receives (done, total) counts from a running task.
type Reporter func(done, total int)

// Go starts fn in its own goroutine under a cancellable child of ctx.
func Go[T any](ctx context.Context, report Reporter, fn func(ctx context.Context, report Reporter) (T, error)) *Task[T] {
	ctx, cancel := context.WithCancel(ctx)
	if report == nil {
		report = func(int, int) {}
	}
	t := &Task[T]{done: make(chan struct{}), cancel: cancel}
	go func() {
		defer close(t.done)
		defer cancel()
		t.result, t.err = fn(ctx, report)
	}()
	return t
}

// Wait blocks until the task finishes and returns its result.
func (t *Task[T]) Wait() (T, error) {
	<-t.done
	return t.result, t.err
}

// Done is closed when the task finishes.
func (t *Task[T]) Done() <-chan struct{} { return t.done }

// Cancel asks the task to stop. Wait still has to be called to observe the
// terminal result.
func (t *Task[T]) Cancel() { t.cancel() }

// counter is a goroutine-safe progress counter feeding a Reporter.
type counter struct {
	mu     sync.Mutex
	done   int
	total  int
	report Reporter
}

func newCounter(total int, report Reporter) *counter {
	c := &counter{total: total, report: report}
	report(0, total)
	return c
}

func (c *counter) inc() {
	c.mu.Lock()
	c.done++
	done, total := c.done, c.total
	c.mu.Unlock()
	c.report(done, total)
}
