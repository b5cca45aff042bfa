package midi

import (
	"container/heap"
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	gomidi "gitlab.com/gomidi/midi/v2"
)

// Transport owns the playback clock and the schedule of outgoing MIDI
// messages. Positions are milliseconds since the transport was first started;
// the clock is frozen while stopped.
type Transport struct {
	send   func(gomidi.Message) error // nil = dry run
	logger *log.Logger
	now    func() time.Time

	mu      sync.Mutex
	queue   schedule
	seq     uint64
	running bool      // clock advancing
	playing bool      // logical "should be playing" flag
	base    int64     // position when the clock last stopped
	t0      time.Time // wall time the clock last started
	used    [NumChannels]bool

	interruptChan chan struct{} // signal Run to recalculate (queue or clock changed)
}

// NewTransport creates a stopped transport at position 0. send may be nil,
// in which case messages are only logged.
func NewTransport(send func(gomidi.Message) error, logger *log.Logger) *Transport {
	return &Transport{
		send:          send,
		logger:        logger,
		now:           time.Now,
		interruptChan: make(chan struct{}, 1),
	}
}

// position must be called with mu held
func (t *Transport) position() int64 {
	if !t.running {
		return t.base
	}
	return t.base + t.now().Sub(t.t0).Milliseconds()
}

// Now returns the current position.
func (t *Transport) Now() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.position()
}

// IsPlaying returns the logical playing flag.
func (t *Transport) IsPlaying() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.playing
}

// SetPlaying sets the logical playing flag. It does not start the clock.
func (t *Transport) SetPlaying(playing bool) {
	t.mu.Lock()
	t.playing = playing
	t.mu.Unlock()
}

// Running reports whether the clock is advancing.
func (t *Transport) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

// Start starts the clock. No-op if it is already running.
func (t *Transport) Start() {
	t.mu.Lock()
	if t.running {
		t.mu.Unlock()
		return
	}
	t.running = true
	t.t0 = t.now()
	pos := t.base
	t.mu.Unlock()

	t.logger.Info("start", "offset", pos)
	t.interrupt()
}

// Stop halts the clock, clears the playing flag, drops pending output and
// silences every channel that has been used. Pending latches stay queued and
// fire once playback passes their offset again.
func (t *Transport) Stop() {
	t.mu.Lock()
	t.playing = false
	if t.running {
		t.base = t.position()
		t.running = false
	}
	kept := t.queue[:0]
	for _, e := range t.queue {
		if e.latch != nil {
			kept = append(kept, e)
		}
	}
	for i := len(kept); i < len(t.queue); i++ {
		t.queue[i] = nil
	}
	t.queue = kept
	heap.Init(&t.queue)
	used := t.used
	pos := t.base
	t.mu.Unlock()

	for ch, ok := range used {
		if ok {
			t.dispatch(&Event{Type: CC, Channel: uint8(ch), Note: allNotesOff})
		}
	}
	t.logger.Info("stop", "offset", pos)
	t.interrupt()
}

// Note schedules a note on at start and its note off at end.
func (t *Transport) Note(start, end int64, channel, key, velocity uint8) {
	t.push(
		&Event{Offset: start, Type: NoteOn, Channel: channel, Note: key, Velocity: velocity},
		&Event{Offset: end, Type: NoteOff, Channel: channel, Note: key},
	)
}

// Patch schedules a program change.
func (t *Transport) Patch(offset int64, channel, program uint8) {
	t.push(&Event{Offset: offset, Type: ProgramChange, Channel: channel, Note: program})
}

// AwaitOffset returns a latch that fires when the position reaches offset.
// If it already has, the latch is returned fired.
func (t *Transport) AwaitOffset(offset int64, tag string) *Latch {
	l := NewLatch(tag, offset)

	t.mu.Lock()
	if t.position() >= offset {
		t.mu.Unlock()
		l.Fire()
		return l
	}
	t.mu.Unlock()

	t.push(&Event{Offset: offset, Type: marker, latch: l})
	return l
}

// Pending returns the number of queued events, latches included.
func (t *Transport) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.queue)
}

func (t *Transport) push(events ...*Event) {
	t.mu.Lock()
	for _, e := range events {
		t.seq++
		e.seq = t.seq
		if e.latch == nil {
			t.used[e.Channel%NumChannels] = true
		}
		heap.Push(&t.queue, e)
	}
	t.mu.Unlock()
	t.interrupt()
}

// interrupt signals the output loop to recalculate
func (t *Transport) interrupt() {
	select {
	case t.interruptChan <- struct{}{}:
	default:
	}
}

// due pops every event whose offset has been reached and returns how long
// to wait for the next one (-1 = nothing to wait for). Nothing is due while
// the clock is stopped.
func (t *Transport) due() ([]*Event, time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.running {
		return nil, -1
	}

	pos := t.position()
	var out []*Event
	for len(t.queue) > 0 && t.queue[0].Offset <= pos {
		out = append(out, heap.Pop(&t.queue).(*Event))
	}
	if len(t.queue) == 0 {
		return out, -1
	}
	return out, time.Duration(t.queue[0].Offset-pos) * time.Millisecond
}

// Run dispatches scheduled events at their offsets until ctx is done.
func (t *Transport) Run(ctx context.Context) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	for {
		events, wait := t.due()
		for _, e := range events {
			t.dispatch(e)
		}
		if len(events) > 0 {
			continue
		}

		var timer *time.Timer
		var timerC <-chan time.Time
		if wait >= 0 {
			timer = time.NewTimer(wait)
			timerC = timer.C
		}
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		case <-t.interruptChan:
		case <-timerC:
		}
		if timer != nil {
			timer.Stop()
		}
	}
}

func (t *Transport) dispatch(e *Event) {
	if e.latch != nil {
		t.logger.Debug("latch", "tag", e.latch.Tag, "offset", e.Offset)
		e.latch.Fire()
		return
	}

	msg, err := e.Message()
	if err != nil {
		t.logger.Error(err)
		return
	}
	if t.send == nil {
		t.logger.Debug("dry run", "offset", e.Offset, "msg", msg.String())
		return
	}
	if err := t.send(msg); err != nil {
		t.logger.Error("send failed", "msg", msg.String(), "err", err)
	}
}
