package extract

import (
	"strings"

	"github.com/TobiSchelling/ParlVotes/internal/raw"
)

const (
	// UnregisteredParty marks deputies who left their parliamentary group.
	UnregisteredParty = "Ninsc"

	// GroupsOrigin is the "other author" value of initiatives presented
	// by parliamentary groups.
	GroupsOrigin = "Grupos Parlamentares"
)

// ResolveAuthor picks the single canonical author of a row. The first
// rule that applies wins:
//
//  1. the parliamentary group list, as published;
//  2. the "other" author (government, citizens, ...) when no deputy signed;
//  3. the deputy's own name when they sit as an unregistered member;
//  4. the most frequent party among the signing deputies, ties going to
//     the party that appears first in the list.
func ResolveAuthor(r Row) string {
	if r.GroupAuthors != "" {
		return r.GroupAuthors
	}
	if r.DeputyParties == "" {
		return r.OtherAuthorName
	}
	if r.DeputyParties == UnregisteredParty {
		return r.DeputyAuthors
	}
	return mode(strings.Split(r.DeputyParties, raw.Sep))
}

// ResolveAuthorDeputy prefers the signing deputies' names and falls back to
// the group list for group initiatives, or to the "other" author.
func ResolveAuthorDeputy(r Row) string {
	if r.DeputyAuthors != "" {
		return r.DeputyAuthors
	}
	if r.OtherAuthorName == GroupsOrigin {
		return r.GroupAuthors
	}
	return r.OtherAuthorName
}

func resolve(r *Row) {
	r.Author = ResolveAuthor(*r)
	r.AuthorDeputy = ResolveAuthorDeputy(*r)
}

func mode(values []string) string {
	counts := make(map[string]int, len(values))
	best, bestCount := "", 0
	for _, v := range values {
		counts[v]++
	}
	for _, v := range values {
		if counts[v] > bestCount {
			best, bestCount = v, counts[v]
		}
	}
	return best
}
