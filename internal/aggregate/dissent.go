package aggregate

import "github.com/TobiSchelling/ParlVotes/internal/votes"

// PartyDissent is the share of a party's own initiatives on which it did
// not vote in favor.
type PartyDissent struct {
	Party    string  `json:"party"`
	Count    int     `json:"total_iniciativas"`
	Dissent  int     `json:"total_sem_voto_favoravel"`
	Fraction float64 `json:"invalid_entries"`
}

// Dissent reports, for each party column that authored at least one row,
// how often that party's column is anything but InFavor on its own
// initiatives. The result follows the table's party order.
func Dissent(t votes.Table, vocab *votes.Vocabulary) []PartyDissent {
	if vocab == nil {
		vocab = votes.DefaultVocabulary()
	}

	own := make(map[string]*PartyDissent, len(t.Parties))
	for _, p := range t.Parties {
		own[p] = &PartyDissent{Party: p}
	}
	for i := range t.Rows {
		r := &t.Rows[i]
		d, ok := own[vocab.AuthorToken(r.Author)]
		if !ok {
			continue
		}
		d.Count++
		if r.Vote(d.Party) != votes.InFavor {
			d.Dissent++
		}
	}

	var out []PartyDissent
	for _, p := range t.Parties {
		d := own[p]
		if d.Count == 0 {
			continue
		}
		d.Fraction = float64(d.Dissent) / float64(d.Count)
		out = append(out, *d)
	}
	return out
}
