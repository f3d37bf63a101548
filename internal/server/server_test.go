package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/TobiSchelling/ParlVotes/internal/aggregate"
	"github.com/TobiSchelling/ParlVotes/internal/composition"
	"github.com/TobiSchelling/ParlVotes/internal/config"
	"github.com/TobiSchelling/ParlVotes/internal/database"
	"github.com/TobiSchelling/ParlVotes/internal/raw"
	"github.com/TobiSchelling/ParlVotes/internal/snapshot"
	"github.com/TobiSchelling/ParlVotes/internal/votes"
)

const detailFeed = `[
  {"IniId": "101", "IniNr": "5", "IniTipo": "J", "IniDescTipo": "Projeto de Lei",
   "IniTitulo": "Lei das rendas", "IniAutorOutros": {"nome": "Grupos Parlamentares", "sigla": "G"}},
  {"IniId": "102", "IniNr": "6", "IniTipo": "V", "IniDescTipo": "Voto", "IniTitulo": "Voto de pesar"}
]`

type fakeSource struct{ err error }

func (f fakeSource) RawInitiatives(_ context.Context, _ string) ([]raw.Value, error) {
	if f.err != nil {
		return nil, f.err
	}
	return raw.DecodeFeed([]byte(detailFeed))
}

func openTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func testLegislature() *snapshot.Legislature {
	table := votes.Table{
		Parties: []string{"ps", "psd", "be"},
		Rows: []votes.VoteRow{
			{
				InitiativeID: "101", Title: "Lei das rendas", Type: "Projeto de Lei",
				Phase: votes.PhaseGenerality.Name, PhaseDate: "2024-05-10",
				Author: "PS", AuthorDeputy: "Ana Silva", BallotResult: votes.ApprovedResult, Approved: true,
				Votes: map[string]string{"ps": votes.InFavor, "psd": votes.InFavor, "be": votes.Against},
			},
			{
				InitiativeID: "103", Title: "Lei do clima", Type: "Projeto de Lei",
				Phase: votes.PhaseFinalOverall.Name, PhaseDate: "2024-07-01",
				Author: "BE", AuthorDeputy: "Rui Costa", BallotResult: "Rejeitado",
				Votes: map[string]string{"ps": votes.Against, "psd": votes.Against, "be": votes.Against},
			},
			{
				InitiativeID: "104", Title: "Voto de pesar", Type: "Voto",
				Phase: votes.PhaseFinalOverall.Name, PhaseDate: "2024-08-01",
				Author: "PSD", BallotResult: votes.ApprovedResult, Approved: true,
				Votes: map[string]string{"ps": votes.InFavor, "psd": votes.InFavor, "be": votes.InFavor},
			},
		},
	}
	l := &snapshot.Legislature{
		Name:         "XV",
		BuildID:      "b-xv",
		Votes:        table,
		Approvals:    map[string][]aggregate.ApprovalSummary{},
		Correlations: map[string]aggregate.CorrelationMatrix{},
		Dissent:      aggregate.Dissent(table, nil),
	}
	for _, p := range votes.Phases {
		sub := l.PhaseTable(p)
		l.Approvals[p.Key] = aggregate.Approvals(sub, nil)
		l.Correlations[p.Key] = aggregate.Correlations(sub)
	}
	return l
}

type fixture struct {
	srv   *Server
	db    *database.DB
	store *snapshot.Store
}

func newFixture(t *testing.T, source Source) *fixture {
	t.Helper()
	db := openTestDB(t)
	store := snapshot.NewStore()
	store.Replace(testLegislature())

	cfg := &config.Config{Legislatures: []config.Legislature{
		{Name: "XIV", URL: "https://up/xiv"},
		{Name: "XV", URL: "https://up/xv", Ongoing: true},
	}}
	if source == nil {
		source = fakeSource{}
	}
	srv, err := New(cfg, db, store, source)
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}
	return &fixture{srv: srv, db: db, store: store}
}

func (f *fixture) do(t *testing.T, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("invalid JSON %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestIndexRoute(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.do(t, "GET", "/")

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Legislatures") || !strings.Contains(body, "b-xv") {
		t.Errorf("expected legislature listing in body: %s", body)
	}
}

func TestUnknownPath(t *testing.T) {
	f := newFixture(t, nil)
	if rec := f.do(t, "GET", "/nope"); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestReportRoute(t *testing.T) {
	f := newFixture(t, nil)
	f.db.StartBuild("b-xv", "XV")
	f.db.Publish(database.Publication{
		Legislature: "XV", BuildID: "b-xv",
		Report: "# Legislatura XV\n\n| Phase | Ballots |\n|---|---|\n| all | 3 |",
	})

	rec := f.do(t, "GET", "/report/XV")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "<h1>Legislatura XV</h1>") {
		t.Error("expected rendered markdown heading")
	}
	if !strings.Contains(body, "<table>") {
		t.Error("expected rendered markdown table")
	}

	if rec := f.do(t, "GET", "/report/XIV"); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unpublished report, got %d", rec.Code)
	}
}

func TestApprovalsPrecomputed(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.do(t, "GET", "/parliament/party-approvals?legislature=XV&event_phase=final_global")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	got := decode[[]aggregate.ApprovalSummary](t, rec)
	if len(got) != 2 {
		t.Fatalf("expected 2 authors, got %d", len(got))
	}
	if got[0].Author != "BE" || got[1].Author != "PSD" {
		t.Errorf("unexpected order %v", got)
	}
}

func TestApprovalsFilteredByDate(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.do(t, "GET", "/parliament/party-approvals?dt_ini=2024-07-01&dt_fin=2024-07-31")

	got := decode[[]aggregate.ApprovalSummary](t, rec)
	if len(got) != 1 || got[0].Author != "BE" {
		t.Fatalf("expected only BE in July, got %v", got)
	}
	if got[0].ApprovedFraction != 0 {
		t.Errorf("expected 0 approved, got %v", got[0].ApprovedFraction)
	}
}

func TestApprovalsBadRequest(t *testing.T) {
	f := newFixture(t, nil)
	for _, target := range []string{
		"/parliament/party-approvals?event_phase=nope",
		"/parliament/party-approvals?dt_ini=10-05-2024",
	} {
		if rec := f.do(t, "GET", target); rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", target, rec.Code)
		}
	}
	if rec := f.do(t, "GET", "/parliament/party-approvals?legislature=XIV"); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unpublished legislature, got %d", rec.Code)
	}
}

func withComposition(f *fixture) {
	l := testLegislature()
	l.Composition = &composition.Composition{
		Legislature:    "XV",
		President:      &composition.Member{Name: "Augusto Santos Silva", ID: "1"},
		VicePresidents: []composition.Member{},
		Parties: []composition.Party{
			{Name: "PS", Deputies: 120, Share: 52.2, Leader: "Eurico Brilhante Dias"},
			{Name: "PSD", Deputies: 77, Share: 33.5},
			{Name: "PCP", Deputies: 6, Share: 2.6},
		},
	}
	f.store.Replace(l)
}

func TestLegislatureComposition(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(t, "GET", "/parliament/legislatures?legislature=XV")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 without composition, got %d", rec.Code)
	}
	if e := decode[apiError](t, rec); e.Error != "composition_unavailable" {
		t.Errorf("expected composition_unavailable, got %q", e.Error)
	}

	withComposition(f)
	rec = f.do(t, "GET", "/parliament/legislatures")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	got := decode[composition.Composition](t, rec)
	if got.President == nil || got.President.Name != "Augusto Santos Silva" {
		t.Errorf("unexpected president %+v", got.President)
	}
	if len(got.Parties) != 3 || got.Parties[0].Leader != "Eurico Brilhante Dias" {
		t.Errorf("unexpected parties %+v", got.Parties)
	}

	if rec := f.do(t, "GET", "/parliament/legislatures?legislature=XIV"); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unpublished legislature, got %d", rec.Code)
	}
}

func TestApprovalsPadSeatedParties(t *testing.T) {
	f := newFixture(t, nil)
	withComposition(f)

	got := decode[[]aggregate.ApprovalSummary](t, f.do(t, "GET", "/parliament/party-approvals?event_phase=final_global"))
	if len(got) != 4 {
		t.Fatalf("expected BE, PSD and padded PS and PCP, got %v", got)
	}
	byID := make(map[string]aggregate.ApprovalSummary)
	for _, a := range got {
		byID[a.ID] = a
	}
	for _, id := range []string{"ps", "pcp"} {
		a, ok := byID[id]
		if !ok {
			t.Errorf("expected padded row for %s", id)
			continue
		}
		if a.Count != 0 || a.PartyApproval["psd"] != 0 || len(a.PartyApproval) != 3 {
			t.Errorf("expected zero row for %s, got %+v", id, a)
		}
	}
	if byID["psd"].Count != 1 {
		t.Errorf("expected PSD to keep its own row, got %+v", byID["psd"])
	}

	// Filtered queries are padded too.
	got = decode[[]aggregate.ApprovalSummary](t, f.do(t, "GET", "/parliament/party-approvals?type=Voto"))
	if len(got) != 3 || got[0].Author != "PSD" {
		t.Errorf("expected PSD then padded PS and PCP, got %v", got)
	}
}

func TestCorrelations(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.do(t, "GET", "/parliament/party-correlations")

	got := decode[[]struct {
		Name         string             `json:"nome"`
		Correlations map[string]float64 `json:"correlacoes"`
	}](t, rec)
	if len(got) != 3 || got[0].Name != "ps" {
		t.Fatalf("unexpected matrix %v", got)
	}
	if v := got[0].Correlations["psd"]; v != 1 {
		t.Errorf("expected ps/psd 1, got %v", v)
	}

	rec = f.do(t, "GET", "/parliament/party-correlations?type=Voto")
	filtered := decode[[]map[string]any](t, rec)
	if len(filtered) != 3 {
		t.Errorf("expected party columns to be preserved, got %d", len(filtered))
	}
}

func TestPartyBlocs(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(t, "GET", "/parliament/party-blocs")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := decode[[]map[string]any](t, rec); len(got) != 1 {
		t.Errorf("expected a single bloc at the default threshold, got %v", got)
	}

	rec = f.do(t, "GET", "/parliament/party-blocs?threshold=0.5")
	type bloc struct {
		Parties  []string `json:"parties"`
		Cohesion float64  `json:"cohesion"`
	}
	got := decode[[]bloc](t, rec)
	if len(got) != 2 {
		t.Fatalf("expected 2 blocs, got %v", got)
	}
	if strings.Join(got[0].Parties, ",") != "ps,psd" || got[0].Cohesion != 1 {
		t.Errorf("unexpected first bloc %+v", got[0])
	}
	if strings.Join(got[1].Parties, ",") != "be" {
		t.Errorf("unexpected second bloc %+v", got[1])
	}

	rec = f.do(t, "GET", "/parliament/party-blocs?type=Nothing")
	if body := strings.TrimSpace(rec.Body.String()); body != "[]" {
		t.Errorf("expected empty list, got %s", body)
	}

	if rec := f.do(t, "GET", "/parliament/party-blocs?threshold=-1"); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestInitiativesListing(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.do(t, "GET", "/parliament/initiatives?limit=1&offset=1")

	got := decode[[]aggregate.ListingItem](t, rec)
	if len(got) != 1 || got[0].ID != "103" {
		t.Fatalf("expected second item by date, got %v", got)
	}
	if got[0].ResultURL != aggregate.DetailURLPrefix+"103" {
		t.Errorf("unexpected url %s", got[0].ResultURL)
	}

	rec = f.do(t, "GET", "/parliament/initiatives?party=ps&deputy=ana")
	got = decode[[]aggregate.ListingItem](t, rec)
	if len(got) != 1 || got[0].ID != "101" {
		t.Errorf("expected PS initiative by Ana, got %v", got)
	}

	if rec := f.do(t, "GET", "/parliament/initiatives?limit=-1"); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for negative limit, got %d", rec.Code)
	}
}

func TestInitiativesDefaultLimit(t *testing.T) {
	f := newFixture(t, nil)
	l := testLegislature()
	for i := 0; i < 30; i++ {
		l.Votes.Rows = append(l.Votes.Rows, votes.VoteRow{
			InitiativeID: fmt.Sprint(200 + i), Title: "Voto", Type: "Voto",
			Phase: votes.PhaseFinalOverall.Name, PhaseDate: fmt.Sprintf("2024-09-%02d", i%28+1),
			Author: "PS", Votes: map[string]string{},
		})
	}
	f.store.Replace(l)

	if got := decode[[]aggregate.ListingItem](t, f.do(t, "GET", "/parliament/initiatives")); len(got) != defaultLimit {
		t.Errorf("expected %d items without a limit, got %d", defaultLimit, len(got))
	}
	if got := decode[[]aggregate.ListingItem](t, f.do(t, "GET", "/parliament/initiatives?offset=25")); len(got) != 8 {
		t.Errorf("expected the last 8 items, got %d", len(got))
	}
	if got := decode[[]aggregate.ListingItem](t, f.do(t, "GET", "/parliament/initiatives?limit=0")); len(got) != 33 {
		t.Errorf("expected every item with limit=0, got %d", len(got))
	}
}

func TestInitiativeDetail(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(t, "GET", "/parliament/initiatives/101?legislature=XV")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "Lei das rendas") {
		t.Errorf("expected title in body: %s", rec.Body.String())
	}

	rec = f.do(t, "GET", "/parliament/initiatives/102")
	if rec.Code != http.StatusNotImplemented {
		t.Errorf("expected 501, got %d", rec.Code)
	}
	if e := decode[apiError](t, rec); e.Error != "not_implemented" {
		t.Errorf("expected not_implemented, got %q", e.Error)
	}

	if rec := f.do(t, "GET", "/parliament/initiatives/999"); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
	if rec := f.do(t, "GET", "/parliament/initiatives/abc"); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestInitiativeDetailSourceUnavailable(t *testing.T) {
	f := newFixture(t, fakeSource{err: errors.New("no cached dump")})
	if rec := f.do(t, "GET", "/parliament/initiatives/101"); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}
}

func TestDissent(t *testing.T) {
	f := newFixture(t, nil)
	got := decode[[]aggregate.PartyDissent](t, f.do(t, "GET", "/parliament/dissent"))

	found := false
	for _, d := range got {
		if d.Party == "be" {
			found = true
			if d.Dissent != 1 || d.Fraction != 1 {
				t.Errorf("expected be to vote against its own initiative, got %+v", d)
			}
		}
	}
	if !found {
		t.Errorf("expected be in %v", got)
	}
}

func TestExport(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.do(t, "GET", "/parliament/export?legislature=XV")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.HasPrefix(rec.Body.String(), "PK") {
		t.Error("expected a zip container")
	}
	if rows := exportedRows(t, rec, "votes"); len(rows) != 4 {
		t.Errorf("expected header and 3 ballots, got %d rows", len(rows))
	}
}

func TestExportAppliesFilters(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(t, "GET", "/parliament/export?type=Voto")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	rows := exportedRows(t, rec, "votes")
	if len(rows) != 2 || rows[1][0] != "104" {
		t.Errorf("expected only the vote of sorrow, got %v", rows)
	}
	if approvals := exportedRows(t, rec, "approvals"); len(approvals) != 2 || approvals[1][1] != "PSD" {
		t.Errorf("expected PSD approvals only, got %v", approvals)
	}

	rec = f.do(t, "GET", "/parliament/export?party=BE&dt_ini=2024-01-01&event_phase=final_global")
	if rows := exportedRows(t, rec, "votes"); len(rows) != 2 || rows[1][0] != "103" {
		t.Errorf("expected the BE final ballot, got %v", rows)
	}

	if rec := f.do(t, "GET", "/parliament/export?dt_fin=junk"); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func exportedRows(t *testing.T, rec *httptest.ResponseRecorder, sheet string) [][]string {
	t.Helper()
	wb, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	if err != nil {
		t.Fatalf("failed to open workbook: %v", err)
	}
	defer wb.Close()
	rows, err := wb.GetRows(sheet)
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	return rows
}

func TestUpdateReloadsSnapshot(t *testing.T) {
	f := newFixture(t, nil)
	before := f.store.Current().Version

	rec := f.do(t, "POST", "/update")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if f.store.Current().Version != before+1 {
		t.Errorf("expected version to advance")
	}
	// Nothing is published in the database, so the reloaded snapshot is empty.
	if names := f.store.Current().Names(); len(names) != 0 {
		t.Errorf("expected empty snapshot, got %v", names)
	}

	if rec := f.do(t, "GET", "/update"); rec.Code == http.StatusOK {
		t.Error("expected GET /update to be rejected")
	}
}

func TestMetricsRoute(t *testing.T) {
	f := newFixture(t, nil)
	f.do(t, "GET", "/parliament/dissent")

	rec := f.do(t, "GET", "/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "parlvotes_http_requests_total") {
		t.Error("expected request counter in metrics output")
	}
}
