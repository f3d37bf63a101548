// Package report composes the markdown summary stored with each published
// build.
package report

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/TobiSchelling/ParlVotes/internal/aggregate"
	"github.com/TobiSchelling/ParlVotes/internal/cluster"
	"github.com/TobiSchelling/ParlVotes/internal/snapshot"
	"github.com/TobiSchelling/ParlVotes/internal/votes"
)

// topAuthors is how many authors the approvals section lists.
const topAuthors = 10

// Summary describes the build a report is written for.
type Summary struct {
	BuildID   string
	StageRows int // flattened rows before projection
	Excluded  int // vote rows dropped by the result filter
	Generated time.Time
}

// Compose writes the report of a legislature's published tables.
func Compose(s Summary, l *snapshot.Legislature) string {
	if l.Votes.Len() == 0 {
		return fmt.Sprintf("# Legislatura %s\n\n%s\n\nNo ballots found for this legislature.",
			l.Name, header(s, l))
	}

	sections := []string{
		fmt.Sprintf("# Legislatura %s\n\n%s", l.Name, header(s, l)),
		phaseSection(l),
		approvalsSection(l.Approvals[votes.PhaseAll.Key]),
		correlationSection(l.Correlations[votes.PhaseAll.Key]),
		blocsSection(l.Correlations[votes.PhaseAll.Key]),
		dissentSection(l.Dissent),
	}

	var out []string
	for _, sec := range sections {
		if sec != "" {
			out = append(out, sec)
		}
	}
	return strings.Join(out, "\n\n---\n\n")
}

func header(s Summary, l *snapshot.Legislature) string {
	lines := []string{
		fmt.Sprintf("- Build: `%s`", s.BuildID),
		fmt.Sprintf("- Generated: %s", s.Generated.UTC().Format(time.RFC3339)),
		fmt.Sprintf("- Stage rows: %d", s.StageRows),
		fmt.Sprintf("- Ballots: %d (%d excluded)", l.Votes.Len(), s.Excluded),
		fmt.Sprintf("- Parties: %s", strings.Join(l.Votes.Parties, ", ")),
	}
	return strings.Join(lines, "\n")
}

func phaseSection(l *snapshot.Legislature) string {
	var b strings.Builder
	b.WriteString("## Ballots by phase\n\n| Phase | Ballots | Approved |\n|---|---:|---:|\n")
	for _, p := range votes.Phases {
		t := l.PhaseTable(p)
		approved := 0
		for i := range t.Rows {
			if t.Rows[i].Approved {
				approved++
			}
		}
		fmt.Fprintf(&b, "| %s | %d | %d |\n", p.Key, t.Len(), approved)
	}
	return strings.TrimRight(b.String(), "\n")
}

func approvalsSection(approvals []aggregate.ApprovalSummary) string {
	if len(approvals) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("## Most active authors\n\n| Author | Ballots | Approved |\n|---|---:|---:|\n")
	for i, a := range approvals {
		if i == topAuthors {
			break
		}
		fmt.Fprintf(&b, "| %s | %d | %s |\n", a.Author, a.Count, percent(a.ApprovedFraction))
	}
	return strings.TrimRight(b.String(), "\n")
}

type pair struct {
	a, b  string
	value float64
}

func correlationSection(m aggregate.CorrelationMatrix) string {
	var pairs []pair
	for i, a := range m.Parties {
		for j := i + 1; j < len(m.Parties); j++ {
			pairs = append(pairs, pair{a, m.Parties[j], m.Values[i][j]})
		}
	}
	if len(pairs) == 0 {
		return ""
	}
	sort.SliceStable(pairs, func(i, j int) bool { return pairs[i].value > pairs[j].value })

	var b strings.Builder
	b.WriteString("## Voting alignment\n\n")
	fmt.Fprintf(&b, "- Closest: %s and %s (%s)\n", pairs[0].a, pairs[0].b, percent(pairs[0].value))
	last := pairs[len(pairs)-1]
	fmt.Fprintf(&b, "- Furthest: %s and %s (%s)", last.a, last.b, percent(last.value))
	return b.String()
}

func blocsSection(m aggregate.CorrelationMatrix) string {
	if len(m.Parties) < 2 {
		return ""
	}
	var b strings.Builder
	b.WriteString("## Voting blocs\n")
	for _, bloc := range cluster.Blocs(m, cluster.DefaultDistanceThreshold) {
		b.WriteString("\n- " + strings.Join(bloc.Parties, ", "))
		if len(bloc.Parties) > 1 {
			fmt.Fprintf(&b, " (cohesion %s)", percent(bloc.Cohesion))
		}
	}
	return b.String()
}

func dissentSection(dissent []aggregate.PartyDissent) string {
	if len(dissent) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("## Votes on own initiatives\n\n| Party | Own ballots | Not in favor |\n|---|---:|---:|\n")
	for _, d := range dissent {
		fmt.Fprintf(&b, "| %s | %d | %d (%s) |\n", d.Party, d.Count, d.Dissent, percent(d.Fraction))
	}
	return strings.TrimRight(b.String(), "\n")
}

func percent(f float64) string {
	return fmt.Sprintf("%.1f%%", f*100)
}
