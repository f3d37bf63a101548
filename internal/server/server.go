package server

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/TobiSchelling/ParlVotes/internal/config"
	"github.com/TobiSchelling/ParlVotes/internal/database"
	"github.com/TobiSchelling/ParlVotes/internal/metrics"
	"github.com/TobiSchelling/ParlVotes/internal/raw"
	"github.com/TobiSchelling/ParlVotes/internal/snapshot"
	"github.com/TobiSchelling/ParlVotes/internal/votes"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

var md = goldmark.New(goldmark.WithExtensions(extension.Table))

// Source provides the raw initiatives behind the detail endpoint.
type Source interface {
	RawInitiatives(ctx context.Context, legislature string) ([]raw.Value, error)
}

// Server serves the published tables over HTTP.
type Server struct {
	cfg    *config.Config
	db     *database.DB
	store  *snapshot.Store
	source Source
	vocab  *votes.Vocabulary
	pages  map[string]*template.Template
	mux    *http.ServeMux
}

// New creates a new Server.
func New(cfg *config.Config, db *database.DB, store *snapshot.Store, source Source) (*Server, error) {
	funcMap := template.FuncMap{
		"markdown": renderMarkdown,
		"deref": func(s *string) string {
			if s == nil {
				return ""
			}
			return *s
		},
	}

	base, err := template.New("base.html").Funcs(funcMap).ParseFS(templateFS, "templates/base.html")
	if err != nil {
		return nil, fmt.Errorf("parsing base template: %w", err)
	}

	// Each page gets its own clone of base so "title" and "content" can be
	// redefined per page.
	pageNames := []string{"index.html", "report.html"}
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		clone, err := base.Clone()
		if err != nil {
			return nil, fmt.Errorf("cloning base for %s: %w", name, err)
		}
		_, err = clone.ParseFS(templateFS, "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", name, err)
		}
		pages[name] = clone
	}

	s := &Server{
		cfg:    cfg,
		db:     db,
		store:  store,
		source: source,
		vocab:  cfg.Votes.Vocabulary(),
		pages:  pages,
		mux:    http.NewServeMux(),
	}
	s.routes()
	return s, nil
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return instrument(s.mux)
}

func (s *Server) routes() {
	staticSub, _ := fs.Sub(staticFS, "static")
	s.mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.FS(staticSub))))

	s.mux.HandleFunc("/", s.handleIndex)
	s.mux.HandleFunc("GET /report/{legislature}", s.handleReport)

	s.mux.HandleFunc("GET /parliament/legislatures", s.handleLegislatures)
	s.mux.HandleFunc("GET /parliament/party-approvals", s.handleApprovals)
	s.mux.HandleFunc("GET /parliament/party-correlations", s.handleCorrelations)
	s.mux.HandleFunc("GET /parliament/initiatives", s.handleInitiatives)
	s.mux.HandleFunc("GET /parliament/initiatives/{id}", s.handleInitiative)
	s.mux.HandleFunc("GET /parliament/party-blocs", s.handleBlocs)
	s.mux.HandleFunc("GET /parliament/dissent", s.handleDissent)
	s.mux.HandleFunc("GET /parliament/export", s.handleExport)

	s.mux.HandleFunc("POST /update", s.handleUpdate)
	s.mux.Handle("GET /metrics", promhttp.Handler())
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	builds, err := s.db.GetBuilds(20)
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	stats, _ := s.db.GetStats()

	snap := s.store.Current()
	type row struct {
		Name    string
		BuildID string
		Ballots int
		Parties string
	}
	var legislatures []row
	for _, name := range snap.Names() {
		l, _ := snap.Legislature(name)
		legislatures = append(legislatures, row{
			Name:    name,
			BuildID: l.BuildID,
			Ballots: l.Votes.Len(),
			Parties: strings.Join(l.Votes.Parties, ", "),
		})
	}

	s.render(w, "index.html", map[string]any{
		"Legislatures": legislatures,
		"Builds":       builds,
		"Stats":        stats,
		"Version":      snap.Version,
	})
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("legislature")
	report, err := s.db.GetReport(name)
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if report == nil {
		http.NotFound(w, r)
		return
	}

	s.render(w, "report.html", map[string]any{
		"Report":      report,
		"Legislature": name,
	})
}

func (s *Server) render(w http.ResponseWriter, name string, data any) {
	tmpl, ok := s.pages[name]
	if !ok {
		log.Printf("Template %s not found", name)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.ExecuteTemplate(w, "base.html", data); err != nil {
		log.Printf("Error rendering template %s: %v", name, err)
	}
}

func renderMarkdown(text string) template.HTML {
	var buf bytes.Buffer
	if err := md.Convert([]byte(text), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(text))
	}
	return template.HTML(buf.String()) //nolint: gosec
}

type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}

// instrument counts responses per matched route.
func instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		metrics.ObserveRequest(route, strconv.Itoa(rec.code))
	})
}

// Serve starts the HTTP server on the given port.
func Serve(cfg *config.Config, db *database.DB, store *snapshot.Store, source Source, port int) error {
	srv, err := New(cfg, db, store, source)
	if err != nil {
		return err
	}

	addr := fmt.Sprintf("127.0.0.1:%d", port)
	log.Printf("Server listening on http://%s", addr)
	return http.ListenAndServe(addr, srv.Handler())
}
