package sequencer

import (
	"context"
	"sync"
)

// fifoLock is a fair mutex: holders get it in the order their turns were
// taken, not the order they happen to call acquire. Each turn waits for the
// previous turn's release.
type fifoLock struct {
	mu   sync.Mutex
	tail chan struct{} // released when the last issued turn is
}

type turn struct {
	prev     <-chan struct{}
	done     chan struct{}
	once     sync.Once
	acquired bool
}

// take reserves the next place in line
func (l *fifoLock) take() *turn {
	l.mu.Lock()
	defer l.mu.Unlock()

	t := &turn{prev: l.tail, done: make(chan struct{})}
	l.tail = t.done
	return t
}

// acquire blocks until every earlier turn has been released
func (t *turn) acquire(ctx context.Context) error {
	if t.prev == nil {
		t.acquired = true
		return nil
	}
	select {
	case <-t.prev:
		t.acquired = true
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// release lets the next turn through. Must be called by the goroutine that
// called acquire, also when acquire failed, or the line stalls. A turn that
// never got the lock passes it on only once the previous turn is released.
func (t *turn) release() {
	t.once.Do(func() {
		if t.acquired || t.prev == nil {
			close(t.done)
			return
		}
		go func() {
			<-t.prev
			close(t.done)
		}()
	})
}
