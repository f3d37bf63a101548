package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/TobiSchelling/ParlVotes/internal/aggregate"
	"github.com/TobiSchelling/ParlVotes/internal/cache"
	"github.com/TobiSchelling/ParlVotes/internal/composition"
	"github.com/TobiSchelling/ParlVotes/internal/config"
	"github.com/TobiSchelling/ParlVotes/internal/database"
	"github.com/TobiSchelling/ParlVotes/internal/extract"
	"github.com/TobiSchelling/ParlVotes/internal/metrics"
	"github.com/TobiSchelling/ParlVotes/internal/raw"
	"github.com/TobiSchelling/ParlVotes/internal/report"
	"github.com/TobiSchelling/ParlVotes/internal/snapshot"
	"github.com/TobiSchelling/ParlVotes/internal/votes"
)

var (
	// ErrBuildInProgress is returned when a legislature is already being built.
	ErrBuildInProgress = errors.New("build already in progress")

	// ErrNoStages is returned when a dump has initiatives but none of them
	// yields a stage row, which means its layout was not understood.
	ErrNoStages = errors.New("no initiative stages found in dump")
)

const stepCount = 6

// Source provides the raw dumps of a legislature.
type Source interface {
	Refresh(ctx context.Context, legislature string, force bool) (bool, error)
	RawInitiatives(ctx context.Context, legislature string) ([]raw.Value, error)
	RefreshComposition(ctx context.Context, legislature string, force bool) (bool, error)
	Composition(ctx context.Context, legislature string) (*composition.Composition, error)
}

// StepResult holds the result of a single pipeline step.
type StepResult struct {
	Name    string
	Summary string
	Err     error
}

// Result holds the results of one legislature build.
type Result struct {
	Legislature string
	BuildID     string
	Rows        int
	Steps       []StepResult
	Err         error
}

// Options control a run.
type Options struct {
	Refresh bool // download from upstream before building
	Force   bool // download even when a finished legislature is cached
}

// Pipeline builds and publishes the derived tables of each legislature.
type Pipeline struct {
	cfg    *config.Config
	db     *database.DB
	source Source
	store  *snapshot.Store
	vocab  *votes.Vocabulary
	newID  func() string
	now    func() time.Time

	mu      sync.Mutex
	running map[string]bool
}

// New creates a new pipeline.
func New(cfg *config.Config, db *database.DB, source Source, store *snapshot.Store) *Pipeline {
	return &Pipeline{
		cfg:     cfg,
		db:      db,
		source:  source,
		store:   store,
		vocab:   cfg.Votes.Vocabulary(),
		newID:   uuid.NewString,
		now:     time.Now,
		running: make(map[string]bool),
	}
}

// Run builds the given legislatures, or every configured one, in parallel.
// A failure only affects its own legislature. Results follow the order of
// the names.
func (p *Pipeline) Run(ctx context.Context, opts Options, legislatures ...string) []*Result {
	if len(legislatures) == 0 {
		legislatures = p.cfg.LegislatureNames()
	}

	results := make([]*Result, len(legislatures))
	var g errgroup.Group
	for i, name := range legislatures {
		g.Go(func() error {
			results[i] = p.Build(ctx, name, opts)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// Build runs every step for one legislature. Nothing is published unless
// all steps succeed, in which case the database tables and the live
// snapshot are replaced together.
func (p *Pipeline) Build(ctx context.Context, legislature string, opts Options) *Result {
	r := &Result{Legislature: legislature}
	if _, ok := p.cfg.Legislature(legislature); !ok {
		r.Err = fmt.Errorf("unknown legislature %q", legislature)
		return r
	}
	if !p.acquire(legislature) {
		r.Err = fmt.Errorf("%s: %w", legislature, ErrBuildInProgress)
		metrics.ObserveBuild(legislature, "skipped", 0, 0)
		return r
	}
	defer p.release(legislature)

	start := p.now()
	r.BuildID = p.newID()
	if err := p.db.StartBuild(r.BuildID, legislature); err != nil {
		r.Err = fmt.Errorf("recording build: %w", err)
		return r
	}

	r.Err = p.build(ctx, r, opts)
	elapsed := p.now().Sub(start)

	if r.Err != nil {
		log.Printf("[%s] Build %s failed: %v", legislature, r.BuildID, r.Err)
		if err := p.db.FailBuild(r.BuildID, r.Err.Error()); err != nil {
			log.Printf("[%s] Failed to record build failure: %v", legislature, err)
		}
		metrics.ObserveBuild(legislature, database.BuildFailed, elapsed, 0)
		return r
	}

	log.Printf("[%s] Build %s published in %s", legislature, r.BuildID, elapsed.Round(time.Millisecond))
	metrics.ObserveBuild(legislature, database.BuildPublished, elapsed, r.Rows)
	return r
}

// DryRun shows what a run would do without executing it.
func (p *Pipeline) DryRun(legislatures ...string) []*Result {
	if len(legislatures) == 0 {
		legislatures = p.cfg.LegislatureNames()
	}

	var results []*Result
	for _, name := range legislatures {
		r := &Result{Legislature: name}
		leg, ok := p.cfg.Legislature(name)
		if !ok {
			r.Err = fmt.Errorf("unknown legislature %q", name)
			results = append(results, r)
			continue
		}

		if leg.Ongoing {
			r.Steps = append(r.Steps, StepResult{Name: "Refresh", Summary: "[dry-run] Ongoing legislature, would download " + leg.URL})
		} else {
			r.Steps = append(r.Steps, StepResult{Name: "Refresh", Summary: "[dry-run] Finished legislature, would download only if not cached"})
		}

		latest, _ := p.db.LatestBuild(name)
		if latest != nil {
			r.Steps = append(r.Steps, StepResult{
				Name:    "Publish",
				Summary: fmt.Sprintf("[dry-run] Would replace build %s (%s, %d rows)", latest.ID, latest.Status, latest.RowCount),
			})
		} else {
			r.Steps = append(r.Steps, StepResult{Name: "Publish", Summary: "[dry-run] Would publish the first build"})
		}
		results = append(results, r)
	}
	return results
}

func (p *Pipeline) build(ctx context.Context, r *Result, opts Options) error {
	leg := r.Legislature
	conf, _ := p.cfg.Legislature(leg)
	var (
		comp      *composition.Composition
		rows      []extract.Row
		table     votes.Table
		excluded  int
		published *snapshot.Legislature
		body      string
	)

	steps := []struct {
		name string
		run  func() (string, error)
	}{
		{"Refresh", func() (string, error) {
			if !opts.Refresh {
				return "Skipped, using cached dump", nil
			}
			downloaded, err := p.source.Refresh(ctx, leg, opts.Force)
			if err != nil {
				metrics.ObserveRefresh(leg, "failed")
				return "", err
			}
			if conf.CompositionURL != "" {
				// The organization dump is optional; keep building without it.
				if _, err := p.source.RefreshComposition(ctx, leg, opts.Force); err != nil {
					log.Printf("[%s] Composition refresh failed: %v", leg, err)
				}
			}
			if !downloaded {
				metrics.ObserveRefresh(leg, "cached")
				return "Finished legislature already cached", nil
			}
			metrics.ObserveRefresh(leg, "downloaded")
			return "Downloaded fresh dump", nil
		}},
		{"Flatten", func() (string, error) {
			items, err := p.source.RawInitiatives(ctx, leg)
			if err != nil {
				return "", err
			}
			rows = extract.Flatten(items)
			if len(items) > 0 && len(rows) == 0 {
				return "", fmt.Errorf("%d initiatives: %w", len(items), ErrNoStages)
			}
			return fmt.Sprintf("%d initiatives, %d stage rows", len(items), len(rows)), nil
		}},
		{"Project", func() (string, error) {
			projected := votes.Project(rows, p.vocab)
			table = projected.Exclude(p.cfg.Votes.ExcludeResults...)
			excluded = projected.Len() - table.Len()
			r.Rows = table.Len()
			return fmt.Sprintf("%d ballots over %d parties, %d excluded", table.Len(), len(table.Parties), excluded), nil
		}},
		{"Aggregate", func() (string, error) {
			if conf.CompositionURL != "" {
				var err error
				comp, err = p.source.Composition(ctx, leg)
				if errors.Is(err, cache.ErrMiss) {
					log.Printf("[%s] No composition cached, publishing without it", leg)
				} else if err != nil {
					return "", err
				}
			}
			published = p.aggregate(leg, r.BuildID, table)
			published.Composition = comp
			if comp != nil {
				log.Printf("[%s] Composition: %s", leg, comp)
			}
			return fmt.Sprintf("%d phases, %d authors", len(votes.Phases), len(published.Approvals[votes.PhaseAll.Key])), nil
		}},
		{"Report", func() (string, error) {
			body = report.Compose(report.Summary{
				BuildID:   r.BuildID,
				StageRows: len(rows),
				Excluded:  excluded,
				Generated: p.now(),
			}, published)
			return fmt.Sprintf("%d bytes of markdown", len(body)), nil
		}},
		{"Publish", func() (string, error) {
			tables, err := snapshot.Tables(published)
			if err != nil {
				return "", err
			}
			if err := p.db.Publish(database.Publication{
				Legislature: leg,
				BuildID:     r.BuildID,
				RowCount:    table.Len(),
				Tables:      tables,
				Report:      body,
			}); err != nil {
				return "", err
			}
			snap := p.store.Replace(published)
			metrics.SetSnapshotVersion(snap.Version)
			return fmt.Sprintf("%d tables, snapshot version %d", len(tables), snap.Version), nil
		}},
	}

	for i, s := range steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		log.Printf("[%s] Step %d/%d: %s...", leg, i+1, stepCount, s.name)
		summary, err := s.run()
		r.Steps = append(r.Steps, StepResult{Name: s.name, Summary: summary, Err: err})
		if err != nil {
			return fmt.Errorf("%s: %w", s.name, err)
		}
	}
	return nil
}

// aggregate computes every published table of a projected legislature.
func (p *Pipeline) aggregate(name, buildID string, table votes.Table) *snapshot.Legislature {
	l := &snapshot.Legislature{
		Name:         name,
		BuildID:      buildID,
		Votes:        table,
		Approvals:    make(map[string][]aggregate.ApprovalSummary, len(votes.Phases)),
		Correlations: make(map[string]aggregate.CorrelationMatrix, len(votes.Phases)),
		Dissent:      aggregate.Dissent(table, p.vocab),
	}
	for _, phase := range votes.Phases {
		sub := l.PhaseTable(phase)
		l.Approvals[phase.Key] = aggregate.Approvals(sub, p.vocab)
		l.Correlations[phase.Key] = aggregate.Correlations(sub)
	}
	return l
}

func (p *Pipeline) acquire(legislature string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running[legislature] {
		return false
	}
	p.running[legislature] = true
	return true
}

func (p *Pipeline) release(legislature string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.running, legislature)
}
