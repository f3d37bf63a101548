// Package snapshot holds the derived tables served by the API. A Snapshot
// is never mutated once published; a build swaps in a new one.
package snapshot

import (
	"sort"
	"sync/atomic"

	"github.com/TobiSchelling/ParlVotes/internal/aggregate"
	"github.com/TobiSchelling/ParlVotes/internal/composition"
	"github.com/TobiSchelling/ParlVotes/internal/votes"
)

// Legislature is the published output of one build.
type Legislature struct {
	Name    string
	BuildID string
	Votes   votes.Table

	// Keyed by votes.Phase Key.
	Approvals    map[string][]aggregate.ApprovalSummary
	Correlations map[string]aggregate.CorrelationMatrix

	Dissent []aggregate.PartyDissent

	// Nil when the legislature has no organization dump.
	Composition *composition.Composition
}

// PhaseTable returns the vote rows belonging to a phase.
func (l *Legislature) PhaseTable(phase votes.Phase) votes.Table {
	if phase.Name == "" {
		return l.Votes
	}
	return l.Votes.Filter(votes.Filter{Phase: phase})
}

// Snapshot is one consistent view across legislatures.
type Snapshot struct {
	Version      uint64
	Legislatures map[string]*Legislature
}

// Legislature returns a legislature's tables.
func (s *Snapshot) Legislature(name string) (*Legislature, bool) {
	l, ok := s.Legislatures[name]
	return l, ok
}

// Names lists the legislatures in the snapshot, sorted.
func (s *Snapshot) Names() []string {
	names := make([]string, 0, len(s.Legislatures))
	for name := range s.Legislatures {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Store hands out the current snapshot without locking readers.
type Store struct {
	current atomic.Pointer[Snapshot]
}

// NewStore creates a store holding an empty snapshot.
func NewStore() *Store {
	s := &Store{}
	s.current.Store(&Snapshot{Legislatures: map[string]*Legislature{}})
	return s
}

// Current returns the live snapshot.
func (s *Store) Current() *Snapshot {
	return s.current.Load()
}

// Replace publishes a snapshot in which one legislature's tables are
// replaced and all others are shared with the previous snapshot.
func (s *Store) Replace(l *Legislature) *Snapshot {
	for {
		old := s.current.Load()
		next := &Snapshot{
			Version:      old.Version + 1,
			Legislatures: make(map[string]*Legislature, len(old.Legislatures)+1),
		}
		for name, existing := range old.Legislatures {
			next.Legislatures[name] = existing
		}
		next.Legislatures[l.Name] = l
		if s.current.CompareAndSwap(old, next) {
			return next
		}
	}
}

// Swap publishes a whole snapshot, such as one rebuilt by Load. Its
// version continues from the live one.
func (s *Store) Swap(snap *Snapshot) *Snapshot {
	for {
		old := s.current.Load()
		next := &Snapshot{Version: old.Version + 1, Legislatures: snap.Legislatures}
		if next.Legislatures == nil {
			next.Legislatures = map[string]*Legislature{}
		}
		if s.current.CompareAndSwap(old, next) {
			return next
		}
	}
}
