package sequencer

// SystemAction acts on the whole performance
type SystemAction int

const (
	SystemPlay SystemAction = iota
	SystemStop
	SystemClear
)

// TrackAction acts on one track
type TrackAction int

const (
	TrackMute TrackAction = iota
	TrackUnmute
	TrackClear
)

// PatternAction acts on one pattern
type PatternAction int

const (
	PatternClear PatternAction = iota
)

// Updates is one parsed batch of instructions. The zero value is an empty,
// valid batch.
type Updates struct {
	SystemActions  map[SystemAction]bool
	TrackActions   map[int]map[TrackAction]bool
	TrackEvents    map[int][][]Event // track → buffers, in order
	PatternActions map[string]map[PatternAction]bool
	PatternEvents  map[string][]Event
}

// AddSystemAction records a system action
func (u *Updates) AddSystemAction(a SystemAction) {
	if u.SystemActions == nil {
		u.SystemActions = make(map[SystemAction]bool)
	}
	u.SystemActions[a] = true
}

// AddTrackAction records a track action
func (u *Updates) AddTrackAction(track int, a TrackAction) {
	if u.TrackActions == nil {
		u.TrackActions = make(map[int]map[TrackAction]bool)
	}
	if u.TrackActions[track] == nil {
		u.TrackActions[track] = make(map[TrackAction]bool)
	}
	u.TrackActions[track][a] = true
}

// AddTrackBuffer appends a whole buffer for the track
func (u *Updates) AddTrackBuffer(track int, events []Event) {
	if u.TrackEvents == nil {
		u.TrackEvents = make(map[int][][]Event)
	}
	u.TrackEvents[track] = append(u.TrackEvents[track], events)
}

// AddTrackEvent appends an event to the track's last buffer, starting one if
// there is none
func (u *Updates) AddTrackEvent(track int, e Event) {
	if u.TrackEvents == nil {
		u.TrackEvents = make(map[int][][]Event)
	}
	bufs := u.TrackEvents[track]
	if len(bufs) == 0 {
		u.TrackEvents[track] = [][]Event{{e}}
		return
	}
	bufs[len(bufs)-1] = append(bufs[len(bufs)-1], e)
}

// AddPatternAction records a pattern action
func (u *Updates) AddPatternAction(name string, a PatternAction) {
	if u.PatternActions == nil {
		u.PatternActions = make(map[string]map[PatternAction]bool)
	}
	if u.PatternActions[name] == nil {
		u.PatternActions[name] = make(map[PatternAction]bool)
	}
	u.PatternActions[name][a] = true
}

// AddPatternEvents appends events to be added to the pattern
func (u *Updates) AddPatternEvents(name string, events ...Event) {
	if u.PatternEvents == nil {
		u.PatternEvents = make(map[string][]Event)
	}
	u.PatternEvents[name] = append(u.PatternEvents[name], events...)
}

// Empty reports whether the batch does nothing
func (u *Updates) Empty() bool {
	return u == nil || (len(u.SystemActions) == 0 && len(u.TrackActions) == 0 &&
		len(u.TrackEvents) == 0 && len(u.PatternActions) == 0 && len(u.PatternEvents) == 0)
}
