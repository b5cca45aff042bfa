package sequencer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestFifoLockGrantsInTakeOrder(t *testing.T) {
	var l fifoLock
	turns := []*turn{l.take(), l.take(), l.take(), l.take()}

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup
	// acquire in reverse order; the lock must still hand out 0, 1, 2, 3
	for i := len(turns) - 1; i >= 0; i-- {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := turns[i].acquire(background); err != nil {
				t.Error(err)
				return
			}
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			turns[i].release()
		}()
	}
	wg.Wait()

	for i, got := range order {
		if got != i {
			t.Fatalf("order = %v, want ascending", order)
		}
	}
}

func TestFifoLockAcquireCancelled(t *testing.T) {
	var l fifoLock
	first := l.take()
	second := l.take()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if err := second.acquire(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("acquire() = %v, want deadline exceeded", err)
	}
	second.release()

	// the line must not skip past first, which still holds the lock
	third := l.take()
	short, cancelShort := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancelShort()
	if err := third.acquire(short); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("third acquire() = %v while first holds the lock", err)
	}
	third.release()

	fourth := l.take()
	first.release()
	if err := fourth.acquire(ctxWithTimeout(t)); err != nil {
		t.Errorf("fourth acquire() = %v after first released", err)
	}
	fourth.release()
}

func ctxWithTimeout(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return ctx
}
