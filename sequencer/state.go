package sequencer

// State is a point-in-time view of the performance for the monitor and API
type State struct {
	Playing      bool           `json:"playing"`
	Running      bool           `json:"running"`
	Offset       int64          `json:"offset"`
	Tracks       []TrackState   `json:"tracks"`
	Patterns     []PatternState `json:"patterns"`
	FreeChannels []uint8        `json:"freeChannels"`
}

// TrackState holds the observable state of a single track
type TrackState struct {
	ID          int      `json:"id"`
	Channel     int      `json:"channel"` // -1 = none assigned yet
	Pending     int      `json:"pending"`
	StartOffset int64    `json:"startOffset"`
	Active      []string `json:"active"`
}

// PatternState holds pattern size
type PatternState struct {
	Name   string `json:"name"`
	Events int    `json:"events"`
}

// Snapshot returns the current state
func (p *Player) Snapshot() State {
	s := State{
		Playing:      p.transport.IsPlaying(),
		Running:      p.transport.Running(),
		Offset:       p.transport.Now(),
		Tracks:       []TrackState{},
		Patterns:     []PatternState{},
		FreeChannels: p.channels.Available(),
	}

	for _, t := range p.trackList() {
		ch := -1
		if c, ok := p.channels.Channel(t.ID); ok {
			ch = int(c)
		}
		s.Tracks = append(s.Tracks, TrackState{
			ID:          t.ID,
			Channel:     ch,
			Pending:     t.Pending(),
			StartOffset: t.StartOffset(),
			Active:      t.ActivePatterns(),
		})
	}

	for _, name := range p.patterns.Names() {
		s.Patterns = append(s.Patterns, PatternState{
			Name:   name,
			Events: p.patterns.Get(name).Len(),
		})
	}

	return s
}
