package sequencer

import (
	"slices"
	"sync"
)

// Pattern is a named, mutable event sequence. Readers take whole snapshots.
type Pattern struct {
	Name string

	mu     sync.Mutex
	events []Event
}

// Events returns a copy of the pattern's current events
func (p *Pattern) Events() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.events)
}

// Len returns the number of events
func (p *Pattern) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

// Clear empties the pattern
func (p *Pattern) Clear() {
	p.mu.Lock()
	p.events = nil
	p.mu.Unlock()
}

// Append adds events at the end
func (p *Pattern) Append(events ...Event) {
	p.mu.Lock()
	p.events = append(p.events, events...)
	p.mu.Unlock()
}

// PatternStore is the shared registry of patterns, created on first reference
type PatternStore struct {
	mu       sync.Mutex
	patterns map[string]*Pattern
}

// NewPatternStore creates an empty store
func NewPatternStore() *PatternStore {
	return &PatternStore{patterns: make(map[string]*Pattern)}
}

// Get returns the named pattern, creating it empty if needed
func (s *PatternStore) Get(name string) *Pattern {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.patterns[name]
	if !ok {
		p = &Pattern{Name: name}
		s.patterns[name] = p
	}
	return p
}

// Events returns a snapshot of the named pattern's events
func (s *PatternStore) Events(name string) []Event {
	return s.Get(name).Events()
}

// Clear empties the named pattern
func (s *PatternStore) Clear(name string) {
	s.Get(name).Clear()
}

// Append adds events to the named pattern
func (s *PatternStore) Append(name string, events []Event) {
	s.Get(name).Append(events...)
}

// Names returns the known pattern names, sorted
func (s *PatternStore) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.patterns))
	for name := range s.patterns {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
