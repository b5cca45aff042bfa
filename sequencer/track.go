package sequencer

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"
)

// trackEnv is what a Track shares with the rest of the player
type trackEnv struct {
	channels  *ChannelPool
	patterns  *PatternStore
	transport Transport
	lookAhead int64
	queueSize int
	logger    *log.Logger
	notify    func()
}

// Track is one voice of the performance. It accepts event buffers on a
// queue and schedules them, one buffer at a time, in arrival order.
type Track struct {
	ID int

	env    trackEnv
	logger *log.Logger

	buffers chan []Event
	pending atomic.Int32 // accepted buffers not yet fully scheduled

	mu     sync.Mutex
	active map[string]struct{} // patterns currently looping

	// startOffset is where the next buffer begins. Written only while
	// holding a scheduling turn; read without one by finish-loop tasks.
	startOffset atomic.Int64
	scheduling  fifoLock

	wg sync.WaitGroup // scheduling and finish-loop tasks
}

func newTrack(id int, env trackEnv) *Track {
	return &Track{
		ID:      id,
		env:     env,
		logger:  env.logger.With("track", id),
		buffers: make(chan []Event, env.queueSize),
		active:  make(map[string]struct{}),
	}
}

// Enqueue hands a buffer to the track's intake worker
func (t *Track) Enqueue(ctx context.Context, events []Event) error {
	t.pending.Add(1)
	select {
	case t.buffers <- events:
		return nil
	case <-ctx.Done():
		t.pending.Add(-1)
		return ctx.Err()
	}
}

// run is the intake worker. It never waits for scheduling to finish, so a
// long pattern on this track does not hold up buffers arriving behind it.
func (t *Track) run(ctx context.Context) {
	defer t.wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return
		case events := <-t.buffers:
			t.accept(ctx, events)
		}
	}
}

func (t *Track) accept(ctx context.Context, events []Event) {
	for _, e := range partition(events).finishLoops {
		t.wg.Add(1)
		go func() {
			defer t.wg.Done()
			t.finishLoop(ctx, e)
		}()
	}

	// the turn is taken here, in arrival order, before the task is spawned
	turn := t.scheduling.take()
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		defer t.pending.Add(-1)
		defer turn.release()

		// acquire may win the select against a cancelled ctx
		if err := turn.acquire(ctx); err != nil || ctx.Err() != nil {
			return
		}

		start := t.startOffset.Load()
		t.logger.Debug("scheduling buffer", "startOffset", start, "events", len(events))
		next, err := t.scheduleEvents(ctx, events, start)
		if err != nil {
			if !isCanceled(err) {
				t.logger.Error("scheduling failed", "err", err)
			}
			return
		}
		t.startOffset.Store(next)
		t.env.notify()
	}()
}

// finishLoop stops every looping pattern on the track once the transport
// reaches the event's offset
func (t *Track) finishLoop(ctx context.Context, e FinishLoopEvent) {
	at := t.adjustStartOffset(t.startOffset.Load()) + e.Offset
	if err := t.env.transport.AwaitOffset(at, "finish-loop").Wait(ctx); err != nil {
		return
	}
	t.logger.Debug("clearing active patterns", "offset", at)
	t.mu.Lock()
	clear(t.active)
	t.mu.Unlock()
	t.env.notify()
}

func (t *Track) activate(name string) {
	t.mu.Lock()
	t.active[name] = struct{}{}
	t.mu.Unlock()
}

func (t *Track) deactivate(name string) {
	t.mu.Lock()
	delete(t.active, name)
	t.mu.Unlock()
}

// IsActive reports whether the pattern is looping on this track
func (t *Track) IsActive(name string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.active[name]
	return ok
}

// StopPattern ends the named loop before its next iteration
func (t *Track) StopPattern(name string) {
	t.deactivate(name)
}

// ActivePatterns returns the looping patterns, sorted
func (t *Track) ActivePatterns() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	names := make([]string, 0, len(t.active))
	for name := range t.active {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Pending returns the number of buffers accepted but not yet scheduled
func (t *Track) Pending() int {
	return int(t.pending.Load())
}

// StartOffset returns where the next buffer will begin
func (t *Track) StartOffset() int64 {
	return t.startOffset.Load()
}
