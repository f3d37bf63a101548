package votes

import (
	"strings"
	"time"

	"github.com/TobiSchelling/ParlVotes/internal/extract"
)

// Filter selects rows of a Table. Zero fields match everything.
type Filter struct {
	Phase  Phase
	From   time.Time // inclusive
	To     time.Time // inclusive
	Type   string
	Author string // case-insensitive equality
	Deputy string // case-insensitive substring of the deputy author
	Title  string // case-insensitive substring of the title
}

// IsZero reports whether f matches every row.
func (f Filter) IsZero() bool {
	return f.Phase.Name == "" && f.From.IsZero() && f.To.IsZero() &&
		f.Type == "" && f.Author == "" && f.Deputy == "" && f.Title == ""
}

// Match reports whether r passes the filter. Rows with an unparseable date
// fail any date bound.
func (f Filter) Match(r *VoteRow) bool {
	if !f.Phase.Matches(r.Phase) {
		return false
	}
	if f.Type != "" && r.Type != f.Type {
		return false
	}
	if f.Author != "" && !strings.EqualFold(r.Author, f.Author) {
		return false
	}
	if f.Deputy != "" && !containsFold(r.AuthorDeputy, f.Deputy) {
		return false
	}
	if f.Title != "" && !containsFold(r.Title, f.Title) {
		return false
	}

	if !f.From.IsZero() || !f.To.IsZero() {
		d, ok := extract.ParseDate(r.PhaseDate)
		if !ok {
			return false
		}
		if !f.From.IsZero() && d.Before(f.From) {
			return false
		}
		if !f.To.IsZero() && d.After(f.To) {
			return false
		}
	}
	return true
}

// Filter returns the rows matching f. Party columns are preserved.
func (t Table) Filter(f Filter) Table {
	if f.IsZero() {
		return t
	}
	return t.Where(f.Match)
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}
