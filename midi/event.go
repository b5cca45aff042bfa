package midi

import (
	"fmt"

	gomidi "gitlab.com/gomidi/midi/v2"
)

// MIDI message types
const (
	NoteOn        uint8 = 0x90
	NoteOff       uint8 = 0x80
	CC            uint8 = 0xB0
	ProgramChange uint8 = 0xC0

	// marker never reaches the wire; it releases a Latch.
	marker uint8 = 0x00
)

// PercussionChannel is the General MIDI drum channel (channel 10, zero-based).
const PercussionChannel uint8 = 9

// NumChannels is the number of MIDI channels on one output port.
const NumChannels = 16

// allNotesOff is the channel mode controller that silences a channel.
const allNotesOff uint8 = 123

// Event is one item on the transport's schedule
type Event struct {
	Offset   int64 // ms from transport start
	Type     uint8 // NoteOn, NoteOff, CC, ProgramChange
	Channel  uint8
	Note     uint8 // key, controller or program number
	Velocity uint8 // velocity or controller value

	latch *Latch
	seq   uint64 // insertion order, breaks ties between equal offsets
}

// Message converts the event to a wire message.
func (e *Event) Message() (gomidi.Message, error) {
	switch e.Type {
	case NoteOn:
		return gomidi.NoteOn(e.Channel, e.Note, e.Velocity), nil
	case NoteOff:
		return gomidi.NoteOff(e.Channel, e.Note), nil
	case CC:
		return gomidi.ControlChange(e.Channel, e.Note, e.Velocity), nil
	case ProgramChange:
		return gomidi.ProgramChange(e.Channel, e.Note), nil
	}
	return nil, fmt.Errorf("event type %#x has no MIDI message", e.Type)
}

// schedule is a time-ordered heap of events, earliest in schedule[0].
type schedule []*Event

func (s schedule) Len() int { return len(s) }

func (s schedule) Less(i, j int) bool {
	if s[i].Offset != s[j].Offset {
		return s[i].Offset < s[j].Offset
	}
	// a note ending where the next one starts must be released first
	if (s[i].Type == NoteOff) != (s[j].Type == NoteOff) {
		return s[i].Type == NoteOff
	}
	return s[i].seq < s[j].seq
}

func (s schedule) Swap(i, j int) { s[i], s[j] = s[j], s[i] }

func (s *schedule) Push(x any) { *s = append(*s, x.(*Event)) }

func (s *schedule) Pop() any {
	old := *s
	x := old[len(old)-1]
	old[len(old)-1] = nil
	*s = old[:len(old)-1]
	return x
}
