package aggregate

import (
	"sort"

	"github.com/TobiSchelling/ParlVotes/internal/votes"
)

// DetailURLPrefix is the public page of an initiative, keyed by its id.
const DetailURLPrefix = "https://www.parlamento.pt/ActividadeParlamentar/Paginas/DetalheIniciativa.aspx?BID="

// ListingItem is one voted stage as served by the initiatives listing.
type ListingItem struct {
	ID        string            `json:"iniciativa_id"`
	Phase     string            `json:"iniciativa_fase"`
	Title     string            `json:"iniciativa_titulo"`
	URL       string            `json:"iniciativa_url"`
	ResultURL string            `json:"url_res"`
	Author    string            `json:"iniciativa_autor"`
	Deputies  string            `json:"iniciativa_autor_deputados_nomes"`
	Date      string            `json:"iniciativa_data"`
	Type      string            `json:"iniciativa_tipo"`
	Result    string            `json:"iniciativa_votacao_res"`
	Votes     map[string]string `json:"votos"`
}

// Listing projects the table into listing items sorted by date, oldest
// first, and returns the page starting at offset. A limit of zero or less
// returns everything from offset.
func Listing(t votes.Table, limit, offset int) []ListingItem {
	rows := make([]*votes.VoteRow, len(t.Rows))
	for i := range t.Rows {
		rows[i] = &t.Rows[i]
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].PhaseDate < rows[j].PhaseDate
	})

	if offset < 0 {
		offset = 0
	}
	if offset > len(rows) {
		offset = len(rows)
	}
	rows = rows[offset:]
	if limit > 0 && limit < len(rows) {
		rows = rows[:limit]
	}

	out := make([]ListingItem, 0, len(rows))
	for _, r := range rows {
		item := ListingItem{
			ID:        r.InitiativeID,
			Phase:     r.Phase,
			Title:     r.Title,
			URL:       r.URL,
			ResultURL: DetailURLPrefix + r.InitiativeID,
			Author:    r.Author,
			Deputies:  r.DeputyAuthors,
			Date:      r.PhaseDate,
			Type:      r.Type,
			Result:    r.BallotResult,
			Votes:     make(map[string]string, len(t.Parties)),
		}
		for _, p := range t.Parties {
			item.Votes[p] = r.Vote(p)
		}
		out = append(out, item)
	}
	return out
}
