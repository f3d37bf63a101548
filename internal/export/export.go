// Package export writes a legislature's published tables to a spreadsheet.
package export

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"github.com/TobiSchelling/ParlVotes/internal/aggregate"
	"github.com/TobiSchelling/ParlVotes/internal/snapshot"
	"github.com/TobiSchelling/ParlVotes/internal/votes"
)

// Sheet names, in workbook order.
const (
	SheetVotes        = "votes"
	SheetApprovals    = "approvals"
	SheetCorrelations = "correlations"
	SheetDissent      = "dissent"
)

var voteHeaders = []string{
	"iniciativa_id", "iniciativa_nr", "iniciativa_tipo", "iniciativa_titulo",
	"iniciativa_evento_fase", "iniciativa_evento_data", "iniciativa_autor",
	"iniciativa_autor_deputado", "iniciativa_votacao_res", "iniciativa_votacao_desc",
	"iniciativa_votacao_unanime", "aprovada", "votou_contra_propria_iniciativa",
}

// Workbook builds the spreadsheet of one phase of a legislature. The
// dissent sheet always covers every phase.
func Workbook(l *snapshot.Legislature, phase votes.Phase) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName(f.GetSheetName(0), SheetVotes); err != nil {
		return nil, err
	}
	for _, name := range []string{SheetApprovals, SheetCorrelations, SheetDissent} {
		if _, err := f.NewSheet(name); err != nil {
			return nil, err
		}
	}

	for _, err := range []error{
		writeVotes(f, l.PhaseTable(phase)),
		writeApprovals(f, l.Approvals[phase.Key], l.Votes.Parties),
		writeCorrelations(f, l.Correlations[phase.Key]),
		writeDissent(f, l.Dissent),
	} {
		if err != nil {
			f.Close()
			return nil, err
		}
	}
	return f, nil
}

// WriteFile saves the workbook to path, creating its directory.
func WriteFile(l *snapshot.Legislature, phase votes.Phase, path string) error {
	f, err := Workbook(l, phase)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("saving %s: %w", path, err)
	}
	return nil
}

// Write streams the workbook to w.
func Write(w io.Writer, l *snapshot.Legislature, phase votes.Phase) error {
	f, err := Workbook(l, phase)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = f.WriteTo(w)
	return err
}

// sheetWriter keeps the first error it hits and ignores later writes.
type sheetWriter struct {
	f     *excelize.File
	sheet string
	err   error
}

func (s *sheetWriter) set(col, row int, value any) {
	if s.err != nil {
		return
	}
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		s.err = fmt.Errorf("%s: %w", s.sheet, err)
		return
	}
	// excelize truncates long strings without reporting it.
	if str, ok := value.(string); ok && utf8.RuneCountInString(str) > excelize.TotalCellChars {
		s.err = fmt.Errorf("%s!%s: %w", s.sheet, cell, excelize.ErrCellCharsLength)
		return
	}
	if err := s.f.SetCellValue(s.sheet, cell, value); err != nil {
		s.err = fmt.Errorf("%s!%s: %w", s.sheet, cell, err)
	}
}

func (s *sheetWriter) header(row int, names ...string) {
	for i, h := range names {
		s.set(i+1, row, h)
	}
}

func writeVotes(f *excelize.File, t votes.Table) error {
	s := &sheetWriter{f: f, sheet: SheetVotes}
	s.header(1, voteHeaders...)
	base := len(voteHeaders)
	for i, p := range t.Parties {
		s.set(base+i+1, 1, votes.VoteColumn(p))
	}
	othersBase := base + len(t.Parties)
	for i, dir := range votes.Directions {
		s.set(othersBase+i+1, 1, votes.OthersColumn(dir))
	}

	for i := range t.Rows {
		r := &t.Rows[i]
		row := i + 2
		for col, v := range []any{
			r.InitiativeID, r.Number, r.Type, r.Title, r.Phase, r.PhaseDate, r.Author,
			r.AuthorDeputy, r.BallotResult, r.BallotDescription, r.BallotUnanimous,
			r.Approved, r.AgainstOwnInitiative,
		} {
			s.set(col+1, row, v)
		}
		for j, p := range t.Parties {
			s.set(base+j+1, row, r.Vote(p))
		}
		for j, dir := range votes.Directions {
			s.set(othersBase+j+1, row, r.Others[dir])
		}
	}
	return s.err
}

func writeApprovals(f *excelize.File, approvals []aggregate.ApprovalSummary, parties []string) error {
	s := &sheetWriter{f: f, sheet: SheetApprovals}
	s.header(1, "id", "nome", "total_iniciativas", "total_iniciativas_aprovadas")
	for i, p := range parties {
		s.set(5+i, 1, p)
	}

	for i, a := range approvals {
		row := i + 2
		s.set(1, row, a.ID)
		s.set(2, row, a.Author)
		s.set(3, row, a.Count)
		s.set(4, row, a.ApprovedFraction)
		for j, p := range parties {
			if v, ok := a.PartyApproval[p]; ok {
				s.set(5+j, row, v)
			}
		}
	}
	return s.err
}

func writeCorrelations(f *excelize.File, m aggregate.CorrelationMatrix) error {
	s := &sheetWriter{f: f, sheet: SheetCorrelations}
	s.set(1, 1, "nome")
	for j, b := range m.Parties {
		s.set(j+2, 1, b)
	}
	for i, a := range m.Parties {
		s.set(1, i+2, a)
		for j := range m.Parties {
			s.set(j+2, i+2, m.Values[i][j])
		}
	}
	return s.err
}

func writeDissent(f *excelize.File, dissent []aggregate.PartyDissent) error {
	s := &sheetWriter{f: f, sheet: SheetDissent}
	s.header(1, "party", "total_iniciativas", "total_sem_voto_favoravel", "invalid_entries")
	for i, d := range dissent {
		row := i + 2
		s.set(1, row, d.Party)
		s.set(2, row, d.Count)
		s.set(3, row, d.Dissent)
		s.set(4, row, d.Fraction)
	}
	return s.err
}
