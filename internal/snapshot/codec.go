package snapshot

import (
	"encoding/json"
	"fmt"

	"github.com/TobiSchelling/ParlVotes/internal/aggregate"
	"github.com/TobiSchelling/ParlVotes/internal/composition"
	"github.com/TobiSchelling/ParlVotes/internal/database"
	"github.com/TobiSchelling/ParlVotes/internal/votes"
)

// Source reads published tables.
type Source interface {
	PublishedLegislatures() ([]string, error)
	GetPublishedTables(legislature string) ([]database.PublishedTable, error)
}

// Tables serializes a legislature into the rows stored by the database.
// Phase-independent tables use the PhaseAll key.
func Tables(l *Legislature) ([]database.Table, error) {
	var out []database.Table
	add := func(phase, kind string, v any) error {
		payload, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encoding %s/%s: %w", phase, kind, err)
		}
		out = append(out, database.Table{Phase: phase, Kind: kind, Payload: payload})
		return nil
	}

	if err := add(votes.PhaseAll.Key, database.KindVotes, l.Votes); err != nil {
		return nil, err
	}
	if err := add(votes.PhaseAll.Key, database.KindDissent, nonNil(l.Dissent)); err != nil {
		return nil, err
	}
	if l.Composition != nil {
		if err := add(votes.PhaseAll.Key, database.KindComposition, l.Composition); err != nil {
			return nil, err
		}
	}
	for _, p := range votes.Phases {
		if err := add(p.Key, database.KindApprovals, nonNil(l.Approvals[p.Key])); err != nil {
			return nil, err
		}
		if err := add(p.Key, database.KindCorrelations, l.Correlations[p.Key]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// Decode rebuilds a legislature from its published tables. Empty tables
// decode to nil.
func Decode(name string, tables []database.PublishedTable) (*Legislature, error) {
	l := &Legislature{
		Name:         name,
		Approvals:    make(map[string][]aggregate.ApprovalSummary),
		Correlations: make(map[string]aggregate.CorrelationMatrix),
	}

	for _, t := range tables {
		l.BuildID = t.BuildID
		var err error
		switch t.Kind {
		case database.KindVotes:
			err = json.Unmarshal(t.Payload, &l.Votes)
		case database.KindDissent:
			err = json.Unmarshal(t.Payload, &l.Dissent)
			if len(l.Dissent) == 0 {
				l.Dissent = nil
			}
		case database.KindComposition:
			l.Composition = &composition.Composition{}
			err = json.Unmarshal(t.Payload, l.Composition)
		case database.KindApprovals:
			var a []aggregate.ApprovalSummary
			err = json.Unmarshal(t.Payload, &a)
			if len(a) > 0 {
				l.Approvals[t.Phase] = a
			}
		case database.KindCorrelations:
			var m aggregate.CorrelationMatrix
			err = json.Unmarshal(t.Payload, &m)
			if len(m.Parties) > 0 {
				l.Correlations[t.Phase] = m
			}
		}
		if err != nil {
			return nil, fmt.Errorf("decoding %s %s/%s: %w", name, t.Phase, t.Kind, err)
		}
	}
	return l, nil
}

// Load builds a snapshot from everything published in the database.
func Load(src Source) (*Snapshot, error) {
	names, err := src.PublishedLegislatures()
	if err != nil {
		return nil, fmt.Errorf("listing legislatures: %w", err)
	}

	snap := &Snapshot{Legislatures: make(map[string]*Legislature, len(names))}
	for _, name := range names {
		tables, err := src.GetPublishedTables(name)
		if err != nil {
			return nil, fmt.Errorf("reading %s tables: %w", name, err)
		}
		l, err := Decode(name, tables)
		if err != nil {
			return nil, err
		}
		snap.Legislatures[name] = l
	}
	return snap, nil
}
