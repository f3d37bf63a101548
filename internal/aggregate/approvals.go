// Package aggregate reduces vote tables into the published summaries:
// per-author approval rates, pairwise party correlations, own-initiative
// dissent and the initiative listing. Every function is pure and works on
// any subset of a projected table.
package aggregate

import (
	"sort"
	"strings"

	"github.com/TobiSchelling/ParlVotes/internal/votes"
)

// ApprovalSummary describes how an author's initiatives fared.
type ApprovalSummary struct {
	ID               string  `json:"id"`
	Author           string  `json:"nome"`
	Count            int     `json:"total_iniciativas"`
	ApprovedFraction float64 `json:"total_iniciativas_aprovadas"`

	// PartyApproval is, per party column, the fraction of the author's rows
	// on which that party voted in favor. Rows where the party has no vote
	// count in the denominator.
	PartyApproval map[string]float64 `json:"aprovacoes"`
}

// Approvals groups rows by resolved author. The result is sorted by Count,
// largest first, and then by author name. An empty table yields nil.
func Approvals(t votes.Table, vocab *votes.Vocabulary) []ApprovalSummary {
	if t.Len() == 0 {
		return nil
	}
	if vocab == nil {
		vocab = votes.DefaultVocabulary()
	}

	type tally struct {
		count, approved int
		inFavor         map[string]int
	}
	groups := make(map[string]*tally)
	var authors []string
	for i := range t.Rows {
		r := &t.Rows[i]
		g, ok := groups[r.Author]
		if !ok {
			g = &tally{inFavor: make(map[string]int)}
			groups[r.Author] = g
			authors = append(authors, r.Author)
		}
		g.count++
		if r.Approved {
			g.approved++
		}
		for _, p := range t.Parties {
			if r.Vote(p) == votes.InFavor {
				g.inFavor[p]++
			}
		}
	}

	out := make([]ApprovalSummary, 0, len(authors))
	for _, a := range authors {
		g := groups[a]
		s := ApprovalSummary{
			ID:               AuthorID(a, vocab),
			Author:           a,
			Count:            g.count,
			ApprovedFraction: float64(g.approved) / float64(g.count),
			PartyApproval:    make(map[string]float64, len(t.Parties)),
		}
		for _, p := range t.Parties {
			s.PartyApproval[p] = float64(g.inFavor[p]) / float64(g.count)
		}
		out = append(out, s)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Author < out[j].Author
	})
	return out
}

// AuthorID is the URL-friendly identifier of an author name. Authors with
// a vote column of their own are identified by its token.
func AuthorID(author string, vocab *votes.Vocabulary) string {
	if vocab == nil {
		vocab = votes.DefaultVocabulary()
	}
	return strings.ReplaceAll(vocab.AuthorToken(author), " ", "-")
}

// PadApprovals appends an empty summary for every party that authored
// none of the summarized rows, so each seated party is listed. Summaries
// already present are matched by author name or id.
func PadApprovals(approvals []ApprovalSummary, parties []string, vocab *votes.Vocabulary) []ApprovalSummary {
	seen := make(map[string]bool, len(approvals))
	var columns []string
	for _, a := range approvals {
		seen[a.Author] = true
		seen[a.ID] = true
		if columns == nil {
			for p := range a.PartyApproval {
				columns = append(columns, p)
			}
		}
	}

	out := append([]ApprovalSummary(nil), approvals...)
	for _, p := range parties {
		id := AuthorID(p, vocab)
		if seen[p] || seen[id] {
			continue
		}
		seen[p], seen[id] = true, true
		pad := ApprovalSummary{ID: id, Author: p, PartyApproval: make(map[string]float64, len(columns))}
		for _, c := range columns {
			pad.PartyApproval[c] = 0
		}
		out = append(out, pad)
	}
	return out
}
