package sequencer

import (
	"context"
	"sync"
	"testing"
	"time"

	"go-perform/debug"
	"go-perform/midi"
)

type scheduledNote struct {
	start, end int64
	channel    uint8
	key        uint8
	velocity   uint8
}

type scheduledPatch struct {
	offset  int64
	channel uint8
	program uint8
}

// fakeTransport records what is scheduled on it. By default the clock jumps
// to every awaited offset so latches fire at once; in manual mode latches
// wait for Advance.
type fakeTransport struct {
	mu      sync.Mutex
	now     int64
	playing bool
	running bool
	manual  bool
	starts  int
	stops   int
	notes   []scheduledNote
	patches []scheduledPatch
	awaits  []int64
	held    []*midi.Latch

	// onAwait runs on the n-th AwaitOffset call, before its latch fires
	onAwait func(n int, offset int64)
}

func (f *fakeTransport) Now() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeTransport) IsPlaying() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.playing
}

func (f *fakeTransport) SetPlaying(playing bool) {
	f.mu.Lock()
	f.playing = playing
	f.mu.Unlock()
}

func (f *fakeTransport) Running() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running
}

func (f *fakeTransport) Start() {
	f.mu.Lock()
	f.starts++
	f.running = true
	f.mu.Unlock()
}

func (f *fakeTransport) Stop() {
	f.mu.Lock()
	f.stops++
	f.running = false
	f.playing = false
	f.mu.Unlock()
}

func (f *fakeTransport) Note(start, end int64, channel, key, velocity uint8) {
	f.mu.Lock()
	f.notes = append(f.notes, scheduledNote{start, end, channel, key, velocity})
	f.mu.Unlock()
}

func (f *fakeTransport) Patch(offset int64, channel, program uint8) {
	f.mu.Lock()
	f.patches = append(f.patches, scheduledPatch{offset, channel, program})
	f.mu.Unlock()
}

func (f *fakeTransport) AwaitOffset(offset int64, tag string) *midi.Latch {
	l := midi.NewLatch(tag, offset)

	f.mu.Lock()
	f.awaits = append(f.awaits, offset)
	n := len(f.awaits)
	hook := f.onAwait
	if !f.manual && offset > f.now {
		f.now = offset
	}
	fire := offset <= f.now
	if !fire {
		f.held = append(f.held, l)
	}
	f.mu.Unlock()

	if hook != nil {
		hook(n, offset)
	}
	if fire {
		l.Fire()
	}
	return l
}

// Advance moves the clock and fires every held latch that is due
func (f *fakeTransport) Advance(to int64) {
	f.mu.Lock()
	f.now = to
	var kept []*midi.Latch
	var due []*midi.Latch
	for _, l := range f.held {
		if l.Offset <= to {
			due = append(due, l)
		} else {
			kept = append(kept, l)
		}
	}
	f.held = kept
	f.mu.Unlock()

	for _, l := range due {
		l.Fire()
	}
}

func (f *fakeTransport) scheduledNotes() []scheduledNote {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]scheduledNote(nil), f.notes...)
}

func (f *fakeTransport) awaitCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.awaits)
}

func (f *fakeTransport) startCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.starts
}

// waitFor polls cond until it holds or the test times out
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func newTestTrack(id int, tr Transport, lookAhead int64) (*Track, *PatternStore) {
	patterns := NewPatternStore()
	return newTrack(id, trackEnv{
		channels:  NewChannelPool(),
		patterns:  patterns,
		transport: tr,
		lookAhead: lookAhead,
		queueSize: 16,
		logger:    debug.Discard(),
		notify:    func() {},
	}), patterns
}

func newTestPlayer(tr Transport, parser Parser) *Player {
	return NewPlayer(tr, parser, Options{LookAhead: 200, QueueSize: 16, Logger: debug.Discard()})
}

func note(offset, duration int64, pitch uint8) NoteEvent {
	return NoteEvent{Offset: offset, Duration: duration, AudibleDuration: duration, Pitch: pitch, Velocity: 100}
}

var background = context.Background()
