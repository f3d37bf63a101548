package aggregate

import (
	"encoding/json"
	"fmt"

	"github.com/TobiSchelling/ParlVotes/internal/votes"
)

// CorrelationMatrix holds, for every ordered pair of parties, the fraction
// of ballots on which both voted and voted the same way.
type CorrelationMatrix struct {
	Parties []string
	Values  [][]float64 // Values[i][j] is the cell of Parties[i] and Parties[j]
}

// Correlations computes the matrix over the table's party columns. A cell
// only considers rows where both parties have a vote other than Absence;
// a pair without any such row is 0.
func Correlations(t votes.Table) CorrelationMatrix {
	if t.Len() == 0 {
		return CorrelationMatrix{}
	}

	n := len(t.Parties)
	m := CorrelationMatrix{
		Parties: append([]string(nil), t.Parties...),
		Values:  make([][]float64, n),
	}
	for i, a := range t.Parties {
		m.Values[i] = make([]float64, n)
		for j, b := range t.Parties {
			m.Values[i][j] = agreement(t.Rows, a, b)
		}
	}
	return m
}

func agreement(rows []votes.VoteRow, a, b string) float64 {
	var total, same int
	for i := range rows {
		va, vb := rows[i].Vote(a), rows[i].Vote(b)
		if !present(va) || !present(vb) {
			continue
		}
		total++
		if va == vb {
			same++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(same) / float64(total)
}

func present(dir string) bool {
	return dir != "" && dir != votes.Absence
}

// At returns the cell of parties a and b, and whether both are columns.
func (m CorrelationMatrix) At(a, b string) (float64, bool) {
	i, j := m.index(a), m.index(b)
	if i < 0 || j < 0 {
		return 0, false
	}
	return m.Values[i][j], true
}

func (m CorrelationMatrix) index(party string) int {
	for i, p := range m.Parties {
		if p == party {
			return i
		}
	}
	return -1
}

type correlationRow struct {
	Name   string             `json:"nome"`
	Values map[string]float64 `json:"correlacoes"`
}

// MarshalJSON writes one labeled object per party row.
func (m CorrelationMatrix) MarshalJSON() ([]byte, error) {
	rows := make([]correlationRow, len(m.Parties))
	for i, a := range m.Parties {
		rows[i] = correlationRow{Name: a, Values: make(map[string]float64, len(m.Parties))}
		for j, b := range m.Parties {
			rows[i].Values[b] = m.Values[i][j]
		}
	}
	return json.Marshal(rows)
}

// UnmarshalJSON reads a matrix written by MarshalJSON. Row order gives the
// party order.
func (m *CorrelationMatrix) UnmarshalJSON(data []byte) error {
	var rows []correlationRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return err
	}

	out := CorrelationMatrix{
		Parties: make([]string, len(rows)),
		Values:  make([][]float64, len(rows)),
	}
	for i, r := range rows {
		out.Parties[i] = r.Name
	}
	for i, r := range rows {
		out.Values[i] = make([]float64, len(rows))
		for j, b := range out.Parties {
			v, ok := r.Values[b]
			if !ok {
				return fmt.Errorf("correlation row %q: missing column %q", r.Name, b)
			}
			out.Values[i][j] = v
		}
	}
	*m = out
	return nil
}
