package sequencer

import (
	"context"
	"errors"
	"maps"
	"slices"
	"sync"

	"github.com/charmbracelet/log"

	"go-perform/midi"
)

// Transport is the clock and output device the player schedules onto
type Transport interface {
	Now() int64

	// IsPlaying is the logical "should be playing" flag; Running reports
	// whether the clock actually advances. Start is idempotent.
	IsPlaying() bool
	SetPlaying(bool)
	Running() bool
	Start()
	Stop()

	Note(start, end int64, channel, key, velocity uint8)
	Patch(offset int64, channel, program uint8)
	AwaitOffset(offset int64, tag string) *midi.Latch
}

// Parser turns a raw instruction batch into Updates
type Parser interface {
	Parse(raw []byte) (*Updates, error)
}

// Options configures a Player
type Options struct {
	LookAhead int64 // ms; margin between scheduling and playing
	QueueSize int   // capacity of the inbound queue and of each track queue
	Logger    *log.Logger
}

// Player owns the performance state: tracks, patterns, channels and the
// transport. Batches are applied one at a time by the dispatch loop (Run).
type Player struct {
	transport Transport
	parser    Parser
	channels  *ChannelPool
	patterns  *PatternStore
	logger    *log.Logger
	lookAhead int64
	queueSize int

	mu     sync.Mutex
	tracks map[int]*Track

	// track workers live until Close
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	queue chan []byte

	// Notify UI of updates
	UpdateChan chan struct{}
}

// NewPlayer creates a player scheduling onto transport
func NewPlayer(transport Transport, parser Parser, opts Options) *Player {
	if opts.QueueSize < 1 {
		opts.QueueSize = 256
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Player{
		transport:  transport,
		parser:     parser,
		channels:   NewChannelPool(),
		patterns:   NewPatternStore(),
		logger:     opts.Logger,
		lookAhead:  opts.LookAhead,
		queueSize:  opts.QueueSize,
		tracks:     make(map[int]*Track),
		ctx:        ctx,
		cancel:     cancel,
		queue:      make(chan []byte, opts.QueueSize),
		UpdateChan: make(chan struct{}, 1),
	}
}

// Patterns returns the pattern store
func (p *Player) Patterns() *PatternStore {
	return p.patterns
}

// Channels returns the channel pool
func (p *Player) Channels() *ChannelPool {
	return p.channels
}

// Track returns the track with the given id, creating it and starting its
// worker on first reference
func (p *Player) Track(id int) *Track {
	p.mu.Lock()
	defer p.mu.Unlock()

	if t, ok := p.tracks[id]; ok {
		return t
	}
	t := newTrack(id, trackEnv{
		channels:  p.channels,
		patterns:  p.patterns,
		transport: p.transport,
		lookAhead: p.lookAhead,
		queueSize: p.queueSize,
		logger:    p.logger,
		notify:    p.notifyUpdate,
	})
	p.tracks[id] = t
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		t.run(p.ctx)
	}()
	return t
}

// trackList returns the tracks ordered by id
func (p *Player) trackList() []*Track {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*Track, 0, len(p.tracks))
	for _, id := range slices.Sorted(maps.Keys(p.tracks)) {
		out = append(out, p.tracks[id])
	}
	return out
}

// Apply applies one batch in four phases, each finished before the next:
// stop/mute/clear, pattern definitions, track buffers, unmute/play.
func (p *Player) Apply(u *Updates) {
	if u.Empty() {
		return
	}

	// PHASE 1: stop/mute/clear
	if u.SystemActions[SystemStop] {
		p.transport.Stop()
	}
	if u.SystemActions[SystemClear] {
		p.logger.Warn("system clear is not implemented")
	}
	for _, id := range slices.Sorted(maps.Keys(u.TrackActions)) {
		actions := u.TrackActions[id]
		if actions[TrackMute] {
			p.logger.Warn("track mute is not implemented", "track", id)
		}
		if actions[TrackClear] {
			p.logger.Warn("track clear is not implemented", "track", id)
		}
	}

	// PHASE 2: update patterns
	for _, name := range slices.Sorted(maps.Keys(u.PatternActions)) {
		if u.PatternActions[name][PatternClear] {
			p.patterns.Clear(name)
		}
	}
	for _, name := range slices.Sorted(maps.Keys(u.PatternEvents)) {
		p.patterns.Append(name, u.PatternEvents[name])
	}

	// PHASE 3: update tracks
	for _, id := range slices.Sorted(maps.Keys(u.TrackEvents)) {
		t := p.Track(id)
		for _, events := range u.TrackEvents[id] {
			if err := t.Enqueue(p.ctx, events); err != nil {
				return
			}
		}
	}

	// PHASE 4: unmute/play
	for _, id := range slices.Sorted(maps.Keys(u.TrackActions)) {
		if u.TrackActions[id][TrackUnmute] {
			p.logger.Warn("track unmute is not implemented", "track", id)
		}
	}

	// the transport is started by a track once it has scheduled something.
	// Tracks still working on earlier buffers (a loop parked on a latch
	// after STOP) will not get there on their own, so start for them.
	if u.SystemActions[SystemPlay] {
		p.transport.SetPlaying(true)
		if p.hasScheduledContent() {
			p.transport.Start()
		}
	}

	p.notifyUpdate()
}

// hasScheduledContent reports whether any track has buffers in flight or
// patterns looping
func (p *Player) hasScheduledContent() bool {
	for _, t := range p.trackList() {
		if t.Pending() > 0 || len(t.ActivePatterns()) > 0 {
			return true
		}
	}
	return false
}

// Enqueue queues a raw instruction batch for the dispatch loop
func (p *Player) Enqueue(ctx context.Context, raw []byte) error {
	if err := p.ctx.Err(); err != nil {
		return err
	}
	select {
	case p.queue <- raw:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-p.ctx.Done():
		return p.ctx.Err()
	}
}

// Run is the dispatch loop: it parses and applies queued batches strictly
// one after another until ctx is done, then shuts the tracks down.
func (p *Player) Run(ctx context.Context) error {
	defer p.Close()

	p.logger.Info("start")
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("stop")
			return nil
		case raw := <-p.queue:
			p.dispatch(raw)
		}
	}
}

func (p *Player) dispatch(raw []byte) {
	updates, err := p.parser.Parse(raw)
	if err != nil {
		p.logger.Warn("dropping instruction batch", "err", err)
		return
	}
	p.Apply(updates)
}

// Close stops every track worker and waits for them to unwind
func (p *Player) Close() {
	p.cancel()
	p.wg.Wait()
}

// notifyUpdate tells the UI something changed
func (p *Player) notifyUpdate() {
	select {
	case p.UpdateChan <- struct{}{}:
	default:
	}
}

// isCanceled reports whether err is an interruption rather than a failure
func isCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
