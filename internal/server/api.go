package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/TobiSchelling/ParlVotes/internal/aggregate"
	"github.com/TobiSchelling/ParlVotes/internal/cluster"
	"github.com/TobiSchelling/ParlVotes/internal/detail"
	"github.com/TobiSchelling/ParlVotes/internal/export"
	"github.com/TobiSchelling/ParlVotes/internal/extract"
	"github.com/TobiSchelling/ParlVotes/internal/metrics"
	"github.com/TobiSchelling/ParlVotes/internal/snapshot"
	"github.com/TobiSchelling/ParlVotes/internal/votes"
)

// defaultLimit caps the initiatives listing when no limit is given.
// An explicit limit=0 lists every matching row.
const defaultLimit = 20

type apiError struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, apiError{Error: code, Message: message})
}

// query holds the parsed common parameters of the parliament endpoints.
type query struct {
	legislature *snapshot.Legislature
	phase       votes.Phase
	filter      votes.Filter
}

// parseQuery resolves the legislature, phase and row filters. On failure
// the error response has already been written.
func (s *Server) parseQuery(w http.ResponseWriter, r *http.Request) (*query, bool) {
	q := r.URL.Query()

	name := q.Get("legislature")
	if name == "" {
		name = s.defaultLegislature()
	}
	l, ok := s.store.Current().Legislature(name)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown_legislature",
			fmt.Sprintf("legislature %q has no published tables", name))
		return nil, false
	}

	phase, ok := votes.LookupPhase(q.Get("event_phase"))
	if !ok {
		writeError(w, http.StatusBadRequest, "bad_request",
			fmt.Sprintf("unknown event_phase %q", q.Get("event_phase")))
		return nil, false
	}

	f := votes.Filter{
		Phase:  phase,
		Type:   q.Get("type"),
		Author: q.Get("party"),
		Deputy: q.Get("deputy"),
		Title:  q.Get("name_filter"),
	}
	var err error
	if f.From, err = dateParam(r, "dt_ini"); err == nil {
		f.To, err = dateParam(r, "dt_fin")
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return nil, false
	}

	return &query{legislature: l, phase: phase, filter: f}, true
}

// precomputed reports whether the published per-phase tables answer the
// query as is.
func (q *query) precomputed() bool {
	f := q.filter
	f.Phase = votes.PhaseAll
	return f.IsZero()
}

func (q *query) table() votes.Table {
	return q.legislature.Votes.Filter(q.filter)
}

// defaultLegislature is the last ongoing legislature, or the last
// configured one.
func (s *Server) defaultLegislature() string {
	legs := s.cfg.Legislatures
	for i := len(legs) - 1; i >= 0; i-- {
		if legs[i].Ongoing {
			return legs[i].Name
		}
	}
	if len(legs) == 0 {
		return ""
	}
	return legs[len(legs)-1].Name
}

func (s *Server) handleApprovals(w http.ResponseWriter, r *http.Request) {
	q, ok := s.parseQuery(w, r)
	if !ok {
		return
	}

	var out []aggregate.ApprovalSummary
	if q.precomputed() {
		out = q.legislature.Approvals[q.phase.Key]
	} else {
		out = aggregate.Approvals(q.table(), s.vocab)
	}
	out = aggregate.PadApprovals(out, q.legislature.Composition.PartyNames(), s.vocab)
	if out == nil {
		out = []aggregate.ApprovalSummary{}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleLegislatures(w http.ResponseWriter, r *http.Request) {
	q, ok := s.parseQuery(w, r)
	if !ok {
		return
	}
	if q.legislature.Composition == nil {
		writeError(w, http.StatusNotFound, "composition_unavailable",
			fmt.Sprintf("legislature %s has no published composition", q.legislature.Name))
		return
	}
	writeJSON(w, http.StatusOK, q.legislature.Composition)
}

func (s *Server) handleCorrelations(w http.ResponseWriter, r *http.Request) {
	q, ok := s.parseQuery(w, r)
	if !ok {
		return
	}

	var out aggregate.CorrelationMatrix
	if q.precomputed() {
		out = q.legislature.Correlations[q.phase.Key]
	} else {
		out = aggregate.Correlations(q.table())
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleBlocs(w http.ResponseWriter, r *http.Request) {
	q, ok := s.parseQuery(w, r)
	if !ok {
		return
	}

	threshold := cluster.DefaultDistanceThreshold
	if v := r.URL.Query().Get("threshold"); v != "" {
		t, err := strconv.ParseFloat(v, 64)
		if err != nil || t <= 0 {
			writeError(w, http.StatusBadRequest, "bad_request", "threshold must be a positive number")
			return
		}
		threshold = t
	}

	m := q.legislature.Correlations[q.phase.Key]
	if !q.precomputed() {
		m = aggregate.Correlations(q.table())
	}
	out := cluster.Blocs(m, threshold)
	if out == nil {
		out = []cluster.Bloc{}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleDissent(w http.ResponseWriter, r *http.Request) {
	q, ok := s.parseQuery(w, r)
	if !ok {
		return
	}

	var out []aggregate.PartyDissent
	if q.filter.IsZero() {
		out = q.legislature.Dissent
	} else {
		out = aggregate.Dissent(q.table(), s.vocab)
	}
	if out == nil {
		out = []aggregate.PartyDissent{}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleInitiatives(w http.ResponseWriter, r *http.Request) {
	q, ok := s.parseQuery(w, r)
	if !ok {
		return
	}

	limit, err := intParam(r, "limit", defaultLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	offset, err := intParam(r, "offset", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, aggregate.Listing(q.table(), limit, offset))
}

func (s *Server) handleInitiative(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "initiative id must be a number")
		return
	}

	name := r.URL.Query().Get("legislature")
	if name == "" {
		name = s.defaultLegislature()
	}
	if _, ok := s.cfg.Legislature(name); !ok {
		writeError(w, http.StatusNotFound, "unknown_legislature", fmt.Sprintf("legislature %q is not configured", name))
		return
	}

	items, err := s.source.RawInitiatives(r.Context(), name)
	if err != nil {
		log.Printf("Reading %s initiatives: %v", name, err)
		writeError(w, http.StatusServiceUnavailable, "unavailable", "initiatives dump is not available")
		return
	}

	ini, err := detail.Lookup(items, id)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, ini)
	case errors.Is(err, detail.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, detail.ErrUnknownInitiativeType):
		writeError(w, http.StatusNotImplemented, "not_implemented", err.Error())
	case errors.Is(err, detail.ErrAmbiguousInitiative):
		writeError(w, http.StatusConflict, "ambiguous", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal", err.Error())
	}
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	q, ok := s.parseQuery(w, r)
	if !ok {
		return
	}

	f, err := export.Workbook(s.exportLegislature(q), q.phase)
	if err != nil {
		log.Printf("Error building export: %v", err)
		writeError(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="parlvotes-%s-%s.xlsx"`, q.legislature.Name, q.phase.Key))
	if _, err := f.WriteTo(w); err != nil {
		log.Printf("Error writing export: %v", err)
	}
}

// exportLegislature narrows the published legislature to the query's row
// filters. The dissent sheet keeps covering every phase of the matching
// rows.
func (s *Server) exportLegislature(q *query) *snapshot.Legislature {
	if q.precomputed() {
		return q.legislature
	}
	all := q.filter
	all.Phase = votes.PhaseAll
	matching := q.legislature.Votes.Filter(all)
	sub := q.table()

	return &snapshot.Legislature{
		Name:         q.legislature.Name,
		BuildID:      q.legislature.BuildID,
		Votes:        matching,
		Approvals:    map[string][]aggregate.ApprovalSummary{q.phase.Key: aggregate.Approvals(sub, s.vocab)},
		Correlations: map[string]aggregate.CorrelationMatrix{q.phase.Key: aggregate.Correlations(sub)},
		Dissent:      aggregate.Dissent(matching, s.vocab),
		Composition:  q.legislature.Composition,
	}
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	snap, err := snapshot.Load(s.db)
	if err != nil {
		log.Printf("Reloading snapshot: %v", err)
		writeError(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}
	live := s.store.Swap(snap)
	metrics.SetSnapshotVersion(live.Version)
	log.Printf("Snapshot reloaded: version %d, %d legislatures", live.Version, len(live.Legislatures))

	writeJSON(w, http.StatusOK, map[string]any{
		"version":      live.Version,
		"legislatures": live.Names(),
	})
}

func dateParam(r *http.Request, name string) (time.Time, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return time.Time{}, nil
	}
	d, ok := extract.ParseDate(v)
	if !ok {
		return time.Time{}, fmt.Errorf("%s must be a %s date", name, extract.DateLayout)
	}
	return d, nil
}

func intParam(r *http.Request, name string, def int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer", name)
	}
	return n, nil
}
