package sequencer

import "context"

// minIdleMs is how far an empty loop iteration pushes the loop forward when
// no look-ahead is configured, so an empty pattern does not spin.
const minIdleMs = 10

// adjustStartOffset moves a start offset that is already in the past to
// "now", and while the clock runs keeps it at least one look-ahead ahead of
// now so the transport has time to queue what we schedule.
func (t *Track) adjustStartOffset(start int64) int64 {
	tr := t.env.transport
	now := tr.Now()

	if start < now {
		start = now
	}
	if tr.Running() && start-now < t.env.lookAhead {
		start += t.env.lookAhead
	}
	return start
}

// ensureStarted starts the transport if playback has been requested. Called
// only once something is actually on the schedule.
func (t *Track) ensureStarted() {
	tr := t.env.transport
	if tr.IsPlaying() {
		tr.Start()
	}
}

func (t *Track) scheduleNote(n NoteEvent) {
	ch, ok := t.env.channels.Acquire(t.ID)
	if !ok {
		t.logger.Warn("no MIDI channel available, dropping note", "pitch", n.Pitch, "offset", n.Offset)
		return
	}
	t.env.transport.Note(n.Offset, n.Offset+n.AudibleDuration, ch, n.Pitch, n.Velocity)
}

func (t *Track) schedulePatch(e PatchEvent, start int64) {
	ch, ok := t.env.channels.Acquire(t.ID)
	if !ok {
		t.logger.Warn("no MIDI channel available, dropping patch", "patch", e.Patch)
		return
	}
	t.logger.Debug("patch", "channel", ch, "patch", e.Patch)
	t.env.transport.Patch(start+e.Offset, ch, e.Patch)
}

// bindPercussion puts the track on the percussion channel when the buffer is
// scheduled, not at the event's offset, so notes and patches in the same
// buffer already land on it. Nothing is sent to the transport.
func (t *Track) bindPercussion(e PercussionEvent) {
	t.logger.Debug("percussion", "offset", e.Offset)
	t.env.channels.UsePercussion(t.ID)
}

// scheduleNotes shifts notes by start and schedules them
func (t *Track) scheduleNotes(notes []NoteEvent, start int64) []NoteEvent {
	out := make([]NoteEvent, 0, len(notes))
	for _, n := range notes {
		n = n.Shift(start)
		t.scheduleNote(n)
		out = append(out, n)
	}
	return out
}

// scheduleEvents schedules one buffer starting at cursor and returns where
// the next buffer should start: the latest note end, or cursor unchanged
// when no note was scheduled. Patterns referenced by the buffer are expanded
// just in time, so this blocks until all their iterations are scheduled.
func (t *Track) scheduleEvents(ctx context.Context, events []Event, cursor int64) (int64, error) {
	start := t.adjustStartOffset(cursor)
	g := partition(events)

	// percussion first so patches in the same buffer target its channel
	for _, e := range g.percussion {
		t.bindPercussion(e)
	}
	for _, e := range g.patches {
		t.schedulePatch(e, start)
	}

	notes := t.scheduleNotes(g.notes, start)

	for _, e := range g.loops {
		t.logger.Warn("pattern loop events are not implemented", "pattern", e.Pattern)
	}

	for _, e := range g.patterns {
		scheduled, err := t.schedulePattern(ctx, e, start)
		notes = append(notes, scheduled...)
		if err != nil {
			return cursor, err
		}
	}

	t.ensureStarted()

	return latestEnd(notes, cursor), nil
}

// schedulePattern plays e.Pattern e.Times times starting at base + e.Offset.
// Each iteration waits until the transport is one look-ahead away from it
// and only then reads the pattern, so edits show up in the next iteration.
// Removing the name from the active set stops the loop before its next
// iteration. Returns every note scheduled, nested patterns included.
func (t *Track) schedulePattern(ctx context.Context, e PatternEvent, base int64) ([]NoteEvent, error) {
	t.activate(e.Pattern)
	defer t.deactivate(e.Pattern)

	var scheduled []NoteEvent
	running := base

	for i := 1; e.Forever() || i <= e.Times; i++ {
		if !t.IsActive(e.Pattern) {
			t.logger.Debug("loop stopped", "pattern", e.Pattern, "iteration", i)
			break
		}

		patternStart := running + e.Offset
		at := max(running, patternStart-t.env.lookAhead)

		if err := t.env.transport.AwaitOffset(at, e.Pattern).Wait(ctx); err != nil {
			return scheduled, err
		}

		t.logger.Debug("scheduling pattern", "pattern", e.Pattern, "iteration", i, "offset", patternStart)
		g := partition(t.env.patterns.Events(e.Pattern))

		iteration := t.scheduleNotes(g.notes, patternStart)
		t.ensureStarted()

		// nested patterns block here until they are due
		for _, sub := range g.patterns {
			notes, err := t.schedulePattern(ctx, sub, patternStart)
			iteration = append(iteration, notes...)
			if err != nil {
				return append(scheduled, iteration...), err
			}
		}

		scheduled = append(scheduled, iteration...)

		// an empty iteration still moves the loop past now, otherwise an
		// empty forever-loop would wake at the same offset again and spin
		if len(iteration) == 0 {
			running = max(running, t.env.transport.Now()+max(t.env.lookAhead, minIdleMs))
			continue
		}
		running = latestEnd(iteration, running)
	}

	return scheduled, nil
}
