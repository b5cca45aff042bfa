package sequencer

import "fmt"

// Kind identifies an event variant
type Kind int

const (
	KindNote Kind = iota
	KindPatch
	KindPercussion
	KindPattern
	KindPatternLoop
	KindFinishLoop
)

func (k Kind) String() string {
	switch k {
	case KindNote:
		return "note"
	case KindPatch:
		return "patch"
	case KindPercussion:
		return "percussion"
	case KindPattern:
		return "pattern"
	case KindPatternLoop:
		return "pattern-loop"
	case KindFinishLoop:
		return "finish-loop"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Forever as a PatternEvent's Times loops until the pattern is stopped.
const Forever = -1

// Event is one musical instruction. Offsets are milliseconds relative to the
// start of the buffer (or pattern) the event belongs to. The set of
// implementations is closed.
type Event interface {
	Kind() Kind
	At() int64
	event()
}

// NoteEvent plays a note. AudibleDuration <= Duration; the gap is silence
// that still counts towards where the next event starts.
type NoteEvent struct {
	Offset          int64
	Duration        int64
	AudibleDuration int64
	Pitch           uint8
	Velocity        uint8
}

// PatchEvent selects an instrument (MIDI program)
type PatchEvent struct {
	Offset int64
	Patch  uint8
}

// PercussionEvent puts the track on the percussion channel
type PercussionEvent struct {
	Offset int64
}

// PatternEvent plays a named pattern Times times (Forever = until stopped)
type PatternEvent struct {
	Offset  int64
	Pattern string
	Times   int
}

// PatternLoopEvent marks a looped pattern. Recognised but not acted upon.
type PatternLoopEvent struct {
	Offset  int64
	Pattern string
}

// FinishLoopEvent stops every looping pattern on the track at Offset
type FinishLoopEvent struct {
	Offset int64
}

func (NoteEvent) Kind() Kind        { return KindNote }
func (PatchEvent) Kind() Kind       { return KindPatch }
func (PercussionEvent) Kind() Kind  { return KindPercussion }
func (PatternEvent) Kind() Kind     { return KindPattern }
func (PatternLoopEvent) Kind() Kind { return KindPatternLoop }
func (FinishLoopEvent) Kind() Kind  { return KindFinishLoop }

func (e NoteEvent) At() int64        { return e.Offset }
func (e PatchEvent) At() int64       { return e.Offset }
func (e PercussionEvent) At() int64  { return e.Offset }
func (e PatternEvent) At() int64     { return e.Offset }
func (e PatternLoopEvent) At() int64 { return e.Offset }
func (e FinishLoopEvent) At() int64  { return e.Offset }

func (NoteEvent) event()        {}
func (PatchEvent) event()       {}
func (PercussionEvent) event()  {}
func (PatternEvent) event()     {}
func (PatternLoopEvent) event() {}
func (FinishLoopEvent) event()  {}

// End is where the note's slot ends (offset + duration)
func (e NoteEvent) End() int64 {
	return e.Offset + e.Duration
}

// Shift returns the note moved by d
func (e NoteEvent) Shift(d int64) NoteEvent {
	e.Offset += d
	return e
}

// Forever reports whether the pattern loops until stopped
func (e PatternEvent) Forever() bool {
	return e.Times <= 0
}

// groups holds a buffer's events split by kind, each in original order
type groups struct {
	notes       []NoteEvent
	patches     []PatchEvent
	percussion  []PercussionEvent
	patterns    []PatternEvent
	loops       []PatternLoopEvent
	finishLoops []FinishLoopEvent
}

// partition splits events by kind in a single pass
func partition(events []Event) groups {
	var g groups
	for _, e := range events {
		switch e := e.(type) {
		case NoteEvent:
			g.notes = append(g.notes, e)
		case PatchEvent:
			g.patches = append(g.patches, e)
		case PercussionEvent:
			g.percussion = append(g.percussion, e)
		case PatternEvent:
			g.patterns = append(g.patterns, e)
		case PatternLoopEvent:
			g.loops = append(g.loops, e)
		case FinishLoopEvent:
			g.finishLoops = append(g.finishLoops, e)
		}
	}
	return g
}

// latestEnd returns the max End() over notes, or fallback if there are none
func latestEnd(notes []NoteEvent, fallback int64) int64 {
	if len(notes) == 0 {
		return fallback
	}
	end := notes[0].End()
	for _, n := range notes[1:] {
		end = max(end, n.End())
	}
	return end
}
