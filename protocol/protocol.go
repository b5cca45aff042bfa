// Package protocol decodes instruction batches into sequencer updates.
//
// A batch is a JSON array of messages, each an address and its arguments:
//
//	[
//	  {"address": "/track/1/midi/patch", "args": [0, 24]},
//	  {"address": "/track/1/midi/note", "args": [0, 60, 500, 450, 100]},
//	  {"address": "/system/play"}
//	]
package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go-perform/sequencer"
)

var (
	ErrUnknownAddress = errors.New("unknown address")
	ErrBadArgs        = errors.New("bad arguments")
)

// Message is one instruction
type Message struct {
	Address string            `json:"address"`
	Args    []json.RawMessage `json:"args,omitempty"`
}

// NewMessage builds a message, encoding each argument as JSON
func NewMessage(address string, args ...any) (Message, error) {
	m := Message{Address: address}
	for _, a := range args {
		raw, err := json.Marshal(a)
		if err != nil {
			return Message{}, fmt.Errorf("encode %s argument: %w", address, err)
		}
		m.Args = append(m.Args, raw)
	}
	return m, nil
}

// Encode serializes messages as one batch
func Encode(msgs ...Message) ([]byte, error) {
	if msgs == nil {
		msgs = []Message{}
	}
	return json.Marshal(msgs)
}

// Parser implements sequencer.Parser for JSON batches
type Parser struct{}

// Parse decodes a batch. An empty body is an empty batch.
func (Parser) Parse(raw []byte) (*sequencer.Updates, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return &sequencer.Updates{}, nil
	}
	var msgs []Message
	if err := json.Unmarshal(raw, &msgs); err != nil {
		return nil, fmt.Errorf("decode batch: %w", err)
	}
	return ParseMessages(msgs)
}

// ParseMessages converts messages to updates. Events for the same track
// form one buffer, in message order.
func ParseMessages(msgs []Message) (*sequencer.Updates, error) {
	u := &sequencer.Updates{}
	for _, m := range msgs {
		if err := apply(u, m); err != nil {
			return nil, err
		}
	}
	return u, nil
}

func apply(u *sequencer.Updates, m Message) error {
	parts := strings.Split(strings.Trim(m.Address, "/"), "/")
	if len(parts) < 2 {
		return fmt.Errorf("%w: %q", ErrUnknownAddress, m.Address)
	}
	args := &argReader{addr: m.Address, raw: m.Args}

	switch parts[0] {
	case "system":
		return applySystem(u, m.Address, parts[1:])
	case "track":
		n, err := strconv.Atoi(parts[1])
		if err != nil || len(parts) < 3 {
			return fmt.Errorf("%w: %q", ErrUnknownAddress, m.Address)
		}
		return applyTrack(u, n, parts[2:], args)
	case "pattern":
		if parts[1] == "" || len(parts) < 3 {
			return fmt.Errorf("%w: %q", ErrUnknownAddress, m.Address)
		}
		return applyPattern(u, parts[1], parts[2:], args)
	}
	return fmt.Errorf("%w: %q", ErrUnknownAddress, m.Address)
}

func applySystem(u *sequencer.Updates, addr string, rest []string) error {
	if len(rest) != 1 {
		return fmt.Errorf("%w: %q", ErrUnknownAddress, addr)
	}
	switch rest[0] {
	case "play":
		u.AddSystemAction(sequencer.SystemPlay)
	case "stop":
		u.AddSystemAction(sequencer.SystemStop)
	case "clear":
		u.AddSystemAction(sequencer.SystemClear)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownAddress, addr)
	}
	return nil
}

func applyTrack(u *sequencer.Updates, track int, rest []string, args *argReader) error {
	switch strings.Join(rest, "/") {
	case "mute":
		u.AddTrackAction(track, sequencer.TrackMute)
		return nil
	case "unmute":
		u.AddTrackAction(track, sequencer.TrackUnmute)
		return nil
	case "clear":
		u.AddTrackAction(track, sequencer.TrackClear)
		return nil
	}

	e, err := parseEvent(rest, args, true)
	if err != nil {
		return err
	}
	u.AddTrackEvent(track, e)
	return nil
}

func applyPattern(u *sequencer.Updates, name string, rest []string, args *argReader) error {
	if len(rest) == 1 && rest[0] == "clear" {
		u.AddPatternAction(name, sequencer.PatternClear)
		return nil
	}

	e, err := parseEvent(rest, args, false)
	if err != nil {
		return err
	}
	u.AddPatternEvents(name, e)
	return nil
}

// parseEvent decodes the event addressed by rest. Patches, percussion and
// loop control only make sense on tracks.
func parseEvent(rest []string, args *argReader, onTrack bool) (sequencer.Event, error) {
	var e sequencer.Event

	switch kind := strings.Join(rest, "/"); {
	case kind == "midi/note":
		e = sequencer.NoteEvent{
			Offset:          args.num(0),
			Pitch:           args.data(1),
			Duration:        args.num(2),
			AudibleDuration: args.num(3),
			Velocity:        args.data(4),
		}
	case kind == "pattern":
		e = sequencer.PatternEvent{
			Offset:  args.num(0),
			Pattern: args.str(1),
			Times:   int(args.num(2)),
		}
	case onTrack && kind == "midi/patch":
		e = sequencer.PatchEvent{Offset: args.num(0), Patch: args.data(1)}
	case onTrack && kind == "midi/percussion":
		e = sequencer.PercussionEvent{Offset: args.num(0)}
	case onTrack && kind == "pattern-loop":
		e = sequencer.PatternLoopEvent{Offset: args.num(0), Pattern: args.str(1)}
	case onTrack && kind == "finish-loop":
		e = sequencer.FinishLoopEvent{Offset: args.num(0)}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAddress, args.addr)
	}

	if args.err != nil {
		return nil, args.err
	}
	return e, nil
}

// argReader reads positional arguments, keeping the first error
type argReader struct {
	addr string
	raw  []json.RawMessage
	err  error
}

func (r *argReader) arg(i int, v any) bool {
	if r.err != nil {
		return false
	}
	if i >= len(r.raw) {
		r.err = fmt.Errorf("%w: %s: missing argument %d", ErrBadArgs, r.addr, i)
		return false
	}
	if err := json.Unmarshal(r.raw[i], v); err != nil {
		r.err = fmt.Errorf("%w: %s: argument %d: %v", ErrBadArgs, r.addr, i, err)
		return false
	}
	return true
}

func (r *argReader) num(i int) int64 {
	var v int64
	r.arg(i, &v)
	return v
}

// data reads a MIDI data byte (0-127)
func (r *argReader) data(i int) uint8 {
	v := r.num(i)
	if r.err == nil && (v < 0 || v > 127) {
		r.err = fmt.Errorf("%w: %s: argument %d out of range: %d", ErrBadArgs, r.addr, i, v)
	}
	return uint8(v)
}

func (r *argReader) str(i int) string {
	var v string
	if r.arg(i, &v) && v == "" && r.err == nil {
		r.err = fmt.Errorf("%w: %s: argument %d is empty", ErrBadArgs, r.addr, i)
	}
	return v
}
