package sequencer

import (
	"context"
	"errors"
	"testing"

	"go-perform/midi"
)

func noteStarts(notes []scheduledNote) []int64 {
	out := make([]int64, len(notes))
	for i, n := range notes {
		out[i] = n.start
	}
	return out
}

func TestAdjustStartOffset(t *testing.T) {
	tests := []struct {
		name    string
		now     int64
		running bool
		start   int64
		want    int64
	}{
		{"future, stopped", 0, false, 500, 500},
		{"past, stopped", 1000, false, 200, 1000},
		{"past, running", 1000, true, 200, 1200},
		{"inside margin", 1000, true, 1100, 1300},
		{"beyond margin", 1000, true, 1500, 1500},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := &fakeTransport{now: tt.now, running: tt.running}
			track, _ := newTestTrack(1, tr, 200)
			if got := track.adjustStartOffset(tt.start); got != tt.want {
				t.Errorf("adjustStartOffset(%d) = %d, want %d", tt.start, got, tt.want)
			}
		})
	}
}

func TestScheduleEventsReturnsLatestEnd(t *testing.T) {
	tr := &fakeTransport{}
	track, _ := newTestTrack(1, tr, 200)

	next, err := track.scheduleEvents(background, []Event{
		note(0, 500, 60),
		note(100, 100, 62),
	}, 1000)
	if err != nil {
		t.Fatal(err)
	}
	if next != 1500 {
		t.Errorf("next = %d, want 1500", next)
	}
	if got := noteStarts(tr.scheduledNotes()); len(got) != 2 || got[0] != 1000 || got[1] != 1100 {
		t.Errorf("note starts = %v, want [1000 1100]", got)
	}

	// nothing scheduled leaves the cursor alone
	next, err = track.scheduleEvents(background, nil, 1500)
	if err != nil || next != 1500 {
		t.Errorf("empty buffer: next = %d, err = %v", next, err)
	}
}

func TestScheduleEventsAudibleDuration(t *testing.T) {
	tr := &fakeTransport{}
	track, _ := newTestTrack(1, tr, 0)

	n := NoteEvent{Offset: 0, Duration: 500, AudibleDuration: 250, Pitch: 60, Velocity: 90}
	next, _ := track.scheduleEvents(background, []Event{n}, 0)

	if next != 500 {
		t.Errorf("next = %d, want full duration 500", next)
	}
	got := tr.scheduledNotes()[0]
	if got.end != 250 || got.velocity != 90 {
		t.Errorf("note = %+v, want end 250 velocity 90", got)
	}
}

func TestScheduleEventsStartsOnlyWhenPlaying(t *testing.T) {
	tr := &fakeTransport{}
	track, _ := newTestTrack(1, tr, 0)

	track.scheduleEvents(background, []Event{note(0, 100, 60)}, 0)
	if n := tr.startCount(); n != 0 {
		t.Errorf("started %d times without play requested", n)
	}

	tr.SetPlaying(true)
	track.scheduleEvents(background, []Event{note(0, 100, 60)}, 100)
	if n := tr.startCount(); n != 1 {
		t.Errorf("started %d times, want 1", n)
	}
}

func TestScheduleEventsPatchAndPercussion(t *testing.T) {
	tr := &fakeTransport{}
	track, _ := newTestTrack(1, tr, 0)

	track.scheduleEvents(background, []Event{
		note(0, 100, 36),
		PercussionEvent{},
		PatchEvent{Offset: 10, Patch: 5},
	}, 0)

	if got := tr.scheduledNotes()[0].channel; got != midi.PercussionChannel {
		t.Errorf("note channel = %d, want percussion", got)
	}
	if len(tr.patches) != 1 || tr.patches[0] != (scheduledPatch{10, midi.PercussionChannel, 5}) {
		t.Errorf("patches = %+v", tr.patches)
	}
}

func TestScheduleEventsNoChannel(t *testing.T) {
	tr := &fakeTransport{}
	track, _ := newTestTrack(99, tr, 0)
	for id := 0; id < 15; id++ {
		track.env.channels.Acquire(id)
	}

	next, err := track.scheduleEvents(background, []Event{note(0, 100, 60), PatchEvent{Patch: 1}}, 0)
	if err != nil {
		t.Fatal(err)
	}
	if n := len(tr.scheduledNotes()); n != 0 {
		t.Errorf("%d notes scheduled without a channel", n)
	}
	if len(tr.patches) != 0 {
		t.Errorf("patch scheduled without a channel")
	}
	if next != 100 {
		t.Errorf("next = %d, want 100", next)
	}
}

func TestSchedulePatternRepeats(t *testing.T) {
	tr := &fakeTransport{}
	track, patterns := newTestTrack(1, tr, 200)
	patterns.Append("A", []Event{note(0, 200, 60)})

	notes, err := track.schedulePattern(background, PatternEvent{Pattern: "A", Times: 3}, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(notes) != 3 {
		t.Fatalf("%d notes, want 3", len(notes))
	}
	for i, n := range notes {
		if want := int64(i) * 200; n.Offset != want {
			t.Errorf("iteration %d at %d, want %d", i+1, n.Offset, want)
		}
	}
	if track.IsActive("A") {
		t.Error("A still active after its last iteration")
	}
}

func TestSchedulePatternStoppedMidLoop(t *testing.T) {
	tr := &fakeTransport{}
	track, patterns := newTestTrack(1, tr, 200)
	patterns.Append("A", []Event{note(0, 200, 60)})

	// stopped while iteration 2 waits; iteration 2 is already committed
	tr.onAwait = func(n int, _ int64) {
		if n == 2 {
			track.StopPattern("A")
		}
	}

	notes, err := track.schedulePattern(background, PatternEvent{Pattern: "A", Times: 5}, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(notes) != 2 {
		t.Errorf("%d iterations, want 2", len(notes))
	}
	if tr.awaitCount() != 2 {
		t.Errorf("%d iterations waited for, want 2", tr.awaitCount())
	}
}

func TestSchedulePatternForeverUntilStopped(t *testing.T) {
	tr := &fakeTransport{}
	track, patterns := newTestTrack(1, tr, 200)
	patterns.Append("A", []Event{note(0, 100, 60)})

	tr.onAwait = func(n int, _ int64) {
		if n == 4 {
			track.StopPattern("A")
		}
	}

	notes, err := track.schedulePattern(background, PatternEvent{Pattern: "A", Times: Forever}, 0)
	if err != nil {
		t.Fatal(err)
	}
	if got := noteStarts(tr.scheduledNotes()); len(notes) != 4 || got[3] != 300 {
		t.Errorf("note starts = %v, want 4 iterations 100 apart", got)
	}
}

func TestSchedulePatternSeesEdits(t *testing.T) {
	tr := &fakeTransport{}
	track, patterns := newTestTrack(1, tr, 200)
	patterns.Append("A", []Event{note(0, 200, 60)})

	tr.onAwait = func(n int, _ int64) {
		if n == 2 {
			patterns.Clear("A")
			patterns.Append("A", []Event{note(0, 200, 64)})
		}
	}

	notes, err := track.schedulePattern(background, PatternEvent{Pattern: "A", Times: 2}, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(notes) != 2 || notes[0].Pitch != 60 || notes[1].Pitch != 64 {
		t.Errorf("notes = %+v, want pitch 60 then 64", notes)
	}
}

func TestSchedulePatternNested(t *testing.T) {
	tr := &fakeTransport{}
	track, patterns := newTestTrack(1, tr, 200)
	patterns.Append("A", []Event{
		note(0, 200, 60),
		PatternEvent{Pattern: "B", Times: 2},
	})
	patterns.Append("B", []Event{note(0, 100, 70)})

	next, err := track.scheduleEvents(background, []Event{PatternEvent{Pattern: "A", Times: 1}}, 0)
	if err != nil {
		t.Fatal(err)
	}
	if next != 200 {
		t.Errorf("next = %d, want 200", next)
	}

	got := tr.scheduledNotes()
	want := []scheduledNote{
		{0, 200, 0, 60, 100},
		{0, 100, 0, 70, 100},
		{100, 200, 0, 70, 100},
	}
	if len(got) != len(want) {
		t.Fatalf("notes = %+v, want %+v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("note %d = %+v, want %+v", i, got[i], want[i])
		}
	}
	if active := track.ActivePatterns(); len(active) != 0 {
		t.Errorf("active after nesting = %v", active)
	}
}

func TestSchedulePatternEmptyAdvances(t *testing.T) {
	tr := &fakeTransport{}
	track, _ := newTestTrack(1, tr, 0)

	tr.onAwait = func(n int, _ int64) {
		if n == 3 {
			track.StopPattern("empty")
		}
	}

	if _, err := track.schedulePattern(background, PatternEvent{Pattern: "empty", Times: Forever}, 0); err != nil {
		t.Fatal(err)
	}
	tr.mu.Lock()
	defer tr.mu.Unlock()
	for i := 1; i < len(tr.awaits); i++ {
		if tr.awaits[i] <= tr.awaits[i-1] {
			t.Errorf("awaits = %v, want strictly increasing", tr.awaits)
		}
	}
}

func TestSchedulePatternCancelled(t *testing.T) {
	tr := &fakeTransport{manual: true}
	track, patterns := newTestTrack(1, tr, 0)
	patterns.Append("A", []Event{note(0, 100, 60)})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := track.schedulePattern(ctx, PatternEvent{Pattern: "A", Times: Forever}, 100)
		done <- err
	}()

	waitFor(t, "first await", func() bool { return tr.awaitCount() == 1 })
	cancel()

	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want canceled", err)
	}
	if track.IsActive("A") {
		t.Error("A still active after cancel")
	}
	if n := len(tr.scheduledNotes()); n != 0 {
		t.Errorf("%d notes scheduled before the offset was reached", n)
	}
}

func TestFinishLoopClearsActive(t *testing.T) {
	tr := &fakeTransport{manual: true}
	track, _ := newTestTrack(1, tr, 0)
	track.activate("A")
	track.activate("B")

	done := make(chan struct{})
	go func() {
		track.finishLoop(background, FinishLoopEvent{Offset: 50})
		close(done)
	}()

	waitFor(t, "finish-loop await", func() bool { return tr.awaitCount() == 1 })
	if got := track.ActivePatterns(); len(got) != 2 {
		t.Fatalf("cleared before the offset: %v", got)
	}

	tr.Advance(50)
	<-done
	if got := track.ActivePatterns(); len(got) != 0 {
		t.Errorf("active = %v, want none", got)
	}
}

func TestAcceptAfterCancelSchedulesNothing(t *testing.T) {
	tr := &fakeTransport{}
	track, _ := newTestTrack(1, tr, 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	track.pending.Add(1)
	track.accept(ctx, []Event{note(0, 100, 60)})
	track.wg.Wait()

	if n := len(tr.scheduledNotes()); n != 0 {
		t.Errorf("%d notes scheduled after shutdown", n)
	}
	if n := track.Pending(); n != 0 {
		t.Errorf("Pending() = %d, want 0", n)
	}
}

func TestPercussionBindsWhenScheduled(t *testing.T) {
	tr := &fakeTransport{}
	track, _ := newTestTrack(1, tr, 0)

	next, err := track.scheduleEvents(background, []Event{PercussionEvent{Offset: 5000}}, 0)
	if err != nil {
		t.Fatal(err)
	}
	if ch, ok := track.env.channels.Channel(1); !ok || ch != midi.PercussionChannel {
		t.Errorf("Channel(1) = %d, %v; want percussion before its offset", ch, ok)
	}
	if len(tr.scheduledNotes()) != 0 || len(tr.patches) != 0 || tr.awaitCount() != 0 {
		t.Error("percussion binding should not touch the transport")
	}
	if next != 0 {
		t.Errorf("next = %d, want cursor unchanged", next)
	}
}
