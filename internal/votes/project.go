package votes

import (
	"strings"

	"github.com/TobiSchelling/ParlVotes/internal/extract"
	"github.com/TobiSchelling/ParlVotes/internal/raw"
)

const (
	// ApprovedResult is the ballot result of an approved initiative.
	ApprovedResult = "Aprovado"

	// Unanimous is the unanimity flag value of a unanimous ballot.
	Unanimous = "unanime"
)

// VoteRow is a stage row that went to a ballot, with one vote column per
// party.
type VoteRow struct {
	InitiativeID         string `json:"iniciativa_id"`
	Number               string `json:"iniciativa_nr"`
	Type                 string `json:"iniciativa_tipo"`
	Title                string `json:"iniciativa_titulo"`
	Phase                string `json:"iniciativa_evento_fase"`
	PhaseDate            string `json:"iniciativa_evento_data"`
	URL                  string `json:"iniciativa_url"`
	Observation          string `json:"iniciativa_obs"`
	SubstituteText       string `json:"iniciativa_texto_subst"`
	GroupAuthors         string `json:"iniciativa_autor_grupos_parlamentares"`
	OtherAuthorName      string `json:"iniciativa_autor_outros_nome"`
	OtherAuthorCommittee string `json:"iniciativa_autor_outros_autor_comissao"`
	DeputyAuthors        string `json:"iniciativa_autor_deputados_nomes"`
	DeputyParties        string `json:"iniciativa_autor_deputados_GPs"`
	BallotResult         string `json:"iniciativa_votacao_res"`
	BallotDescription    string `json:"iniciativa_votacao_desc"`
	BallotUnanimous      string `json:"iniciativa_votacao_unanime"`
	Author               string `json:"iniciativa_autor"`
	AuthorDeputy         string `json:"iniciativa_autor_deputado"`

	// Votes maps a party token to its direction. Parties not mentioned by
	// the ballot have no entry.
	Votes map[string]string `json:"-"`
	// Others maps a direction to the pipe-joined dissenting deputies.
	Others map[string]string `json:"-"`

	Approved             bool `json:"aprovada"`
	AgainstOwnInitiative bool `json:"votou_contra_propria_iniciativa"`
}

// Vote returns the direction of party on this ballot, or "".
func (r *VoteRow) Vote(party string) string {
	return r.Votes[party]
}

// IsUnanimous reports whether the ballot was unanimous.
func (r *VoteRow) IsUnanimous() bool {
	return r.BallotUnanimous == Unanimous
}

// Table is a set of VoteRows sharing the same party columns.
type Table struct {
	Parties []string  `json:"parties"`
	Rows    []VoteRow `json:"rows"`
}

// Len returns the number of rows.
func (t Table) Len() int { return len(t.Rows) }

// Project turns stage rows into vote rows. Rows without a ballot result, or
// whose ballot carries no vote information at all, are dropped. The party
// columns of the result are the recognized parties mentioned by at least
// one ballot; on unanimous ballots every such column left empty is set to
// InFavor.
func Project(rows []extract.Row, vocab *Vocabulary) Table {
	vocab = orDefault(vocab)

	seen := make(map[string]bool)
	out := make([]VoteRow, 0, len(rows))
	for _, r := range rows {
		if r.BallotResult == "" {
			continue
		}

		ballot := scan(r.BallotDetail, vocab)
		if len(ballot) == 0 && r.BallotUnanimous != Unanimous {
			continue
		}

		vr := newVoteRow(r)
		for _, v := range ballot {
			if v.party {
				vr.Votes[v.token] = v.direction
				seen[v.token] = true
				continue
			}
			if prev := vr.Others[v.direction]; prev != "" {
				vr.Others[v.direction] = prev + raw.Sep + v.token
			} else {
				vr.Others[v.direction] = v.token
			}
		}
		out = append(out, vr)
	}

	parties := vocab.order(seen)
	for i := range out {
		vr := &out[i]
		if vr.IsUnanimous() {
			for _, p := range parties {
				if vr.Votes[p] == "" {
					vr.Votes[p] = InFavor
				}
			}
			continue
		}
		vr.AgainstOwnInitiative = vr.Votes[vocab.AuthorToken(vr.Author)] == Against
	}

	return Table{Parties: parties, Rows: out}
}

func newVoteRow(r extract.Row) VoteRow {
	desc := r.BallotDescription
	if r.PhaseObservation != "" {
		if desc != "" {
			desc += raw.Sep + " " + r.PhaseObservation
		} else {
			desc = r.PhaseObservation
		}
	}

	return VoteRow{
		InitiativeID:         r.InitiativeID,
		Number:               r.Number,
		Type:                 r.Type,
		Title:                r.Title,
		Phase:                r.Phase,
		PhaseDate:            r.PhaseDate,
		URL:                  r.URL,
		Observation:          r.Observation,
		SubstituteText:       r.SubstituteText,
		GroupAuthors:         r.GroupAuthors,
		OtherAuthorName:      r.OtherAuthorName,
		OtherAuthorCommittee: r.OtherAuthorCommittee,
		DeputyAuthors:        r.DeputyAuthors,
		DeputyParties:        r.DeputyParties,
		BallotResult:         r.BallotResult,
		BallotDescription:    desc,
		BallotUnanimous:      r.BallotUnanimous,
		Author:               r.Author,
		AuthorDeputy:         r.AuthorDeputy,
		Votes:                make(map[string]string),
		Others:               make(map[string]string),
		Approved:             r.BallotResult == ApprovedResult,
	}
}

// Exclude drops rows whose ballot result is one of results.
func (t Table) Exclude(results ...string) Table {
	if len(results) == 0 {
		return t
	}
	return t.Where(func(r *VoteRow) bool {
		for _, res := range results {
			if strings.EqualFold(r.BallotResult, res) {
				return false
			}
		}
		return true
	})
}

// Where keeps the rows matching keep. Party columns are preserved.
func (t Table) Where(keep func(r *VoteRow) bool) Table {
	out := Table{Parties: t.Parties, Rows: make([]VoteRow, 0, len(t.Rows))}
	for i := range t.Rows {
		if keep(&t.Rows[i]) {
			out.Rows = append(out.Rows, t.Rows[i])
		}
	}
	return out
}
