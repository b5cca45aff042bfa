package midi

import (
	"context"
	"sync"
)

// Latch is a single-fire notification. The transport fires it once its
// position reaches Offset; any number of goroutines may wait on it.
type Latch struct {
	Tag    string
	Offset int64

	once sync.Once
	done chan struct{}
}

// NewLatch returns an unfired latch.
func NewLatch(tag string, offset int64) *Latch {
	return &Latch{
		Tag:    tag,
		Offset: offset,
		done:   make(chan struct{}),
	}
}

// Fire releases all waiters. Calls after the first are no-ops.
func (l *Latch) Fire() {
	l.once.Do(func() { close(l.done) })
}

// Done is closed when the latch fires.
func (l *Latch) Done() <-chan struct{} {
	return l.done
}

// Fired reports whether the latch has fired.
func (l *Latch) Fired() bool {
	select {
	case <-l.done:
		return true
	default:
		return false
	}
}

// Wait blocks until the latch fires or ctx is done.
func (l *Latch) Wait(ctx context.Context) error {
	select {
	case <-l.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
