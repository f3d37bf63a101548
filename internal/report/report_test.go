package report

import (
	"strings"
	"testing"
	"time"

	"github.com/TobiSchelling/ParlVotes/internal/aggregate"
	"github.com/TobiSchelling/ParlVotes/internal/snapshot"
	"github.com/TobiSchelling/ParlVotes/internal/votes"
)

func legislature() *snapshot.Legislature {
	table := votes.Table{
		Parties: []string{"ps", "psd", "be"},
		Rows: []votes.VoteRow{
			{
				InitiativeID: "1", Phase: votes.PhaseGenerality.Name, Author: "PS",
				BallotResult: votes.ApprovedResult, Approved: true,
				Votes: map[string]string{"ps": votes.InFavor, "psd": votes.InFavor, "be": votes.Against},
			},
			{
				InitiativeID: "2", Phase: votes.PhaseFinalOverall.Name, Author: "BE",
				BallotResult: "Rejeitado",
				Votes:        map[string]string{"ps": votes.Against, "psd": votes.Against, "be": votes.Abstention},
			},
		},
	}
	return &snapshot.Legislature{
		Name:  "XV",
		Votes: table,
		Approvals: map[string][]aggregate.ApprovalSummary{
			votes.PhaseAll.Key: aggregate.Approvals(table, nil),
		},
		Correlations: map[string]aggregate.CorrelationMatrix{
			votes.PhaseAll.Key: aggregate.Correlations(table),
		},
		Dissent: aggregate.Dissent(table, nil),
	}
}

func TestCompose(t *testing.T) {
	s := Summary{BuildID: "abc", StageRows: 7, Excluded: 1, Generated: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}
	body := Compose(s, legislature())

	for _, want := range []string{
		"# Legislatura XV",
		"- Build: `abc`",
		"- Generated: 2024-05-01T09:00:00Z",
		"- Ballots: 2 (1 excluded)",
		"- Parties: ps, psd, be",
		"| generalidade | 1 | 1 |",
		"| final_global | 1 | 0 |",
		"## Most active authors",
		"- Closest: ps and psd (100.0%)",
		"## Voting blocs\n\n- ps, psd (cohesion 100.0%)\n- be",
		"| be | 1 | 1 (100.0%) |",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("expected report to contain %q\n%s", want, body)
		}
	}
}

func TestComposeEmpty(t *testing.T) {
	body := Compose(Summary{BuildID: "x"}, &snapshot.Legislature{Name: "XIV"})

	if !strings.Contains(body, "No ballots found") {
		t.Errorf("unexpected empty report: %s", body)
	}
	if strings.Contains(body, "## ") {
		t.Errorf("empty report should have no sections: %s", body)
	}
}

func TestAuthorsSectionIsCapped(t *testing.T) {
	var approvals []aggregate.ApprovalSummary
	for i := 0; i < topAuthors+5; i++ {
		approvals = append(approvals, aggregate.ApprovalSummary{Author: "A", Count: 1})
	}
	section := approvalsSection(approvals)

	if n := strings.Count(section, "| A |"); n != topAuthors {
		t.Errorf("expected %d authors, got %d", topAuthors, n)
	}
}
