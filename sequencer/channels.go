package sequencer

import (
	"slices"
	"sync"

	"go-perform/midi"
)

// ChannelPool hands out MIDI channels to tracks. A channel, once bound to a
// track, is never returned to the pool.
type ChannelPool struct {
	mu        sync.Mutex
	available []uint8       // ascending
	bound     map[int]uint8 // track id → channel
}

// NewChannelPool returns a pool of channels 0-15 minus the percussion channel
func NewChannelPool() *ChannelPool {
	p := &ChannelPool{bound: make(map[int]uint8)}
	for ch := uint8(0); ch < midi.NumChannels; ch++ {
		if ch != midi.PercussionChannel {
			p.available = append(p.available, ch)
		}
	}
	return p
}

// Acquire returns the track's channel, binding a free one on first use.
// ok is false when the track has none and the pool is exhausted.
func (p *ChannelPool) Acquire(track int) (channel uint8, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if ch, ok := p.bound[track]; ok {
		return ch, true
	}
	if len(p.available) == 0 {
		return 0, false
	}
	ch := p.available[0]
	p.available = p.available[1:]
	p.bound[track] = ch
	return ch, true
}

// UsePercussion binds the track to the percussion channel, bypassing the pool
func (p *ChannelPool) UsePercussion(track int) {
	p.mu.Lock()
	p.bound[track] = midi.PercussionChannel
	p.mu.Unlock()
}

// Channel returns the track's channel without binding one
func (p *ChannelPool) Channel(track int) (uint8, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	ch, ok := p.bound[track]
	return ch, ok
}

// Available returns the unbound channels
func (p *ChannelPool) Available() []uint8 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.available)
}
