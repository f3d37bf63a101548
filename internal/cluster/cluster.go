// Package cluster groups parties into voting blocs by Ward clustering of
// their agreement profiles.
package cluster

import (
	"github.com/TobiSchelling/ParlVotes/internal/aggregate"
)

// DefaultDistanceThreshold is the Ward merge distance above which blocs
// stay apart.
const DefaultDistanceThreshold = 1.0

// Bloc is a group of parties with similar voting.
type Bloc struct {
	Parties []string `json:"parties"`

	// Cohesion is the mean pairwise agreement between the bloc's parties,
	// 1 for a single party.
	Cohesion float64 `json:"cohesion"`
}

// Blocs clusters the parties of a correlation matrix. Each party is
// represented by its row of agreements with every party, so two parties
// end up together when they agree with the rest of the chamber alike.
// Blocs are ordered by their first party in matrix order.
func Blocs(m aggregate.CorrelationMatrix, threshold float64) []Bloc {
	n := len(m.Parties)
	if n == 0 {
		return nil
	}
	if threshold <= 0 {
		threshold = DefaultDistanceThreshold
	}

	labels := cutDendrogram(wardLinkage(m.Values), n, threshold)

	var members [][]int
	for i, label := range labels {
		if label == len(members) {
			members = append(members, nil)
		}
		members[label] = append(members[label], i)
	}

	blocs := make([]Bloc, len(members))
	for b, idx := range members {
		blocs[b] = Bloc{Parties: make([]string, len(idx)), Cohesion: cohesion(m, idx)}
		for k, i := range idx {
			blocs[b].Parties[k] = m.Parties[i]
		}
	}
	return blocs
}

func cohesion(m aggregate.CorrelationMatrix, idx []int) float64 {
	if len(idx) < 2 {
		return 1
	}
	var sum float64
	var pairs int
	for x := 0; x < len(idx); x++ {
		for y := x + 1; y < len(idx); y++ {
			sum += m.Values[idx[x]][idx[y]]
			pairs++
		}
	}
	return sum / float64(pairs)
}
