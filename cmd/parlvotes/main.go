package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/TobiSchelling/ParlVotes/internal/cache"
	"github.com/TobiSchelling/ParlVotes/internal/collect"
	"github.com/TobiSchelling/ParlVotes/internal/composition"
	"github.com/TobiSchelling/ParlVotes/internal/config"
	"github.com/TobiSchelling/ParlVotes/internal/database"
	"github.com/TobiSchelling/ParlVotes/internal/detail"
	"github.com/TobiSchelling/ParlVotes/internal/export"
	"github.com/TobiSchelling/ParlVotes/internal/fetch"
	"github.com/TobiSchelling/ParlVotes/internal/metrics"
	"github.com/TobiSchelling/ParlVotes/internal/pipeline"
	"github.com/TobiSchelling/ParlVotes/internal/raw"
	"github.com/TobiSchelling/ParlVotes/internal/server"
	"github.com/TobiSchelling/ParlVotes/internal/snapshot"
	"github.com/TobiSchelling/ParlVotes/internal/votes"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	cfg        *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "parlvotes",
	Short:   "Parliament initiative votes",
	Long:    "parlvotes downloads the initiatives of the Portuguese parliament, tabulates every ballot by party and serves the derived tables.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip config loading for init and version
		if cmd.Name() == "init" || cmd.Name() == "version" {
			setLogFlags()
			return nil
		}

		path, err := config.ResolveConfigPath(configPath)
		if err != nil {
			return err
		}
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if cfg.Logging.Level == "DEBUG" {
			verbose = true
		}
		setLogFlags()
		return nil
	},
}

func setLogFlags() {
	if verbose {
		log.SetFlags(log.LstdFlags | log.Lshortfile)
	} else {
		log.SetFlags(log.LstdFlags)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(initiativeCmd)
	rootCmd.AddCommand(dissentCmd)
	rootCmd.AddCommand(compositionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("parlvotes", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/parlvotes/",
	RunE: func(cmd *cobra.Command, args []string) error {
		target := filepath.Join(config.ConfigDir(), "config.yaml")
		if _, err := os.Stat(target); err == nil {
			fmt.Printf("Config already exists: %s\n", target)
			return nil
		}

		if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}

		if err := os.WriteFile(target, config.DefaultConfigYAML, 0o644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Printf("Created config: %s\n", target)
		fmt.Println("Edit it to configure legislatures, party vocabulary and the server port.")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show database and build status",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		stats, err := db.GetStats()
		if err != nil {
			return fmt.Errorf("getting stats: %w", err)
		}

		fmt.Printf("Database: %s\n\n", db.Path())
		fmt.Println("Published:")
		fmt.Printf("  Legislatures: %d\n", stats.Legislatures)
		fmt.Printf("  Tables: %d\n", stats.PublishedTables)
		fmt.Println("\nBuilds:")
		fmt.Printf("  Total: %d\n", stats.Builds)
		fmt.Printf("  Failed: %d\n", stats.FailedBuilds)

		fmt.Println("\nLegislatures:")
		for _, leg := range cfg.Legislatures {
			state := "finished"
			if leg.Ongoing {
				state = "ongoing"
			}
			latest, _ := db.LatestBuild(leg.Name)
			if latest == nil {
				fmt.Printf("  %s (%s): never built\n", leg.Name, state)
				continue
			}
			fmt.Printf("  %s (%s): %s build %s, %d rows\n", leg.Name, state, latest.Status, latest.ID, latest.RowCount)
		}

		reports, err := db.GetAllReports()
		if err != nil {
			return fmt.Errorf("getting reports: %w", err)
		}
		if len(reports) > 0 {
			fmt.Println("\nReports:")
			for _, r := range reports {
				generated := "unknown"
				if r.GeneratedAt != nil {
					generated = *r.GeneratedAt
				}
				fmt.Printf("  %s: build %s, generated %s, %d bytes\n", r.Legislature, r.BuildID, generated, len(r.BodyMarkdown))
			}
		}
		return nil
	},
}

// --- fetch command ---

var fetchForce bool

var fetchCmd = &cobra.Command{
	Use:   "fetch [legislature...]",
	Short: "Download initiative dumps into the local cache",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openCache()
		if err != nil {
			return err
		}
		defer store.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		collector := newCollector(store)
		if len(args) == 0 {
			result := collector.Collect(ctx, fetchForce)
			fmt.Println("\nFetch complete:")
			fmt.Printf("  Downloaded: %d\n", result.Downloaded)
			fmt.Printf("  From cache: %d\n", result.FromCache)
			fmt.Printf("  Failed: %d\n", result.Failed)

			names := make([]string, 0, len(result.Bytes))
			for name := range result.Bytes {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				fmt.Printf("  %s: %d bytes\n", name, result.Bytes[name])
			}
			for name, err := range result.Errors {
				fmt.Printf("  %s: %v\n", name, err)
			}
			store.Compact()
			return nil
		}

		for _, name := range args {
			downloaded, err := collector.Refresh(ctx, name, fetchForce)
			if err != nil {
				return err
			}
			if downloaded {
				fmt.Printf("%s: downloaded\n", name)
			} else {
				fmt.Printf("%s: already cached\n", name)
			}

			if leg, _ := cfg.Legislature(name); leg.CompositionURL != "" {
				downloaded, err := collector.RefreshComposition(ctx, name, fetchForce)
				switch {
				case err != nil:
					fmt.Printf("%s composition: %v\n", name, err)
				case downloaded:
					fmt.Printf("%s composition: downloaded\n", name)
				default:
					fmt.Printf("%s composition: already cached\n", name)
				}
			}
		}
		store.Compact()
		return nil
	},
}

func init() {
	fetchCmd.Flags().BoolVar(&fetchForce, "force", false, "Download even finished legislatures that are cached")
}

// --- run command ---

var (
	dryRun    bool
	noRefresh bool
	runForce  bool
)

var runCmd = &cobra.Command{
	Use:   "run [legislature...]",
	Short: "Run the pipeline: refresh -> flatten -> project -> aggregate -> report -> publish",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		store, err := openCache()
		if err != nil {
			return err
		}
		defer store.Close()

		pipe := pipeline.New(cfg, db, newCollector(store), snapshot.NewStore())
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		var results []*pipeline.Result
		if dryRun {
			results = pipe.DryRun(args...)
		} else {
			results = pipe.Run(ctx, pipeline.Options{Refresh: !noRefresh, Force: runForce}, args...)
		}

		failed := 0
		for _, r := range results {
			fmt.Printf("\n%s", r.Legislature)
			if r.BuildID != "" {
				fmt.Printf(" (build %s)", r.BuildID)
			}
			fmt.Println()
			for i, step := range r.Steps {
				fmt.Printf("  Step %d/%d: %s\n", i+1, len(r.Steps), step.Name)
				if step.Err != nil {
					fmt.Printf("    Error: %v\n", step.Err)
				} else {
					fmt.Printf("    %s\n", step.Summary)
				}
			}
			if r.Err != nil {
				failed++
				fmt.Printf("  Failed: %v\n", r.Err)
			}
		}

		if dryRun {
			return nil
		}
		store.Compact()
		if failed > 0 {
			return fmt.Errorf("%d of %d builds failed", failed, len(results))
		}
		fmt.Println("\nPipeline complete! Run 'parlvotes serve' to browse the tables, or POST /update to a running server.")
		return nil
	},
}

func init() {
	runCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show what would be done without executing")
	runCmd.Flags().BoolVar(&noRefresh, "no-refresh", false, "Build from the cached dumps only")
	runCmd.Flags().BoolVar(&runForce, "force", false, "Download even finished legislatures that are cached")
}

// --- serve command ---

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API and web server",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		store := snapshot.NewStore()
		snap, err := snapshot.Load(db)
		if err != nil {
			return fmt.Errorf("loading published tables: %w", err)
		}
		live := store.Swap(snap)
		metrics.SetSnapshotVersion(live.Version)
		log.Printf("Loaded %d published legislatures", len(live.Legislatures))

		port := cfg.Server.Port
		if cmd.Flags().Changed("port") {
			port = servePort
		}
		fmt.Printf("Starting server at http://localhost:%d\n", port)
		fmt.Println("Press Ctrl+C to stop")
		return server.Serve(cfg, db, store, cachedDumps{dir: cacheDir()}, port)
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 8000, "Port to run server on (overrides config)")
}

// --- export command ---

var (
	exportPhase  string
	exportOutput string
)

var exportCmd = &cobra.Command{
	Use:   "export <legislature>",
	Short: "Write a legislature's published tables to an xlsx workbook",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		phase, ok := votes.LookupPhase(exportPhase)
		if !ok {
			return fmt.Errorf("unknown phase %q", exportPhase)
		}

		l, err := publishedLegislature(args[0])
		if err != nil {
			return err
		}

		out := exportOutput
		if out == "-" {
			return export.Write(os.Stdout, l, phase)
		}
		if out == "" {
			out = fmt.Sprintf("parlvotes-%s-%s.xlsx", l.Name, phase.Key)
		}
		if err := export.WriteFile(l, phase, out); err != nil {
			return err
		}
		fmt.Printf("Exported %d ballots to %s\n", l.PhaseTable(phase).Len(), out)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportPhase, "phase", votes.PhaseAll.Key, "Phase: all, generalidade, especialidade or final_global")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Output file, - for stdout (default parlvotes-<legislature>-<phase>.xlsx)")
}

// --- initiative command ---

var initiativeCmd = &cobra.Command{
	Use:   "initiative <legislature> <id>",
	Short: "Show a single bill or government proposal as JSON",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid initiative ID: %s", args[1])
		}

		items, err := cachedDumps{dir: cacheDir()}.RawInitiatives(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		ini, err := detail.Lookup(items, id)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(ini)
	},
}

// --- composition command ---

var compositionCmd = &cobra.Command{
	Use:   "composition <legislature>",
	Short: "Show the published chair, seats and group leaders of a legislature",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		if _, ok := cfg.Legislature(name); !ok {
			return fmt.Errorf("unknown legislature %q", name)
		}

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		t, err := db.GetPublishedTable(name, votes.PhaseAll.Key, database.KindComposition)
		if err != nil {
			return err
		}
		if t == nil {
			return fmt.Errorf("%s has no published composition, set composition_url and run 'parlvotes run %s'", name, name)
		}
		var comp composition.Composition
		if err := json.Unmarshal(t.Payload, &comp); err != nil {
			return fmt.Errorf("decoding %s composition: %w", name, err)
		}

		if comp.President != nil {
			fmt.Printf("President: %s\n", comp.President.Name)
		}
		for _, vp := range comp.VicePresidents {
			fmt.Printf("Vice-president: %s\n", vp.Name)
		}
		fmt.Printf("\n%-10s %6s %7s  %s\n", "Party", "Seats", "Share", "Leader")
		for _, p := range comp.Parties {
			fmt.Printf("%-10s %6d %6.1f%%  %s\n", p.Name, p.Deputies, p.Share, p.Leader)
		}
		return nil
	},
}

// --- dissent command ---

var dissentCmd = &cobra.Command{
	Use:   "dissent <legislature>",
	Short: "Show how often each party did not vote for its own initiatives",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		l, err := publishedLegislature(args[0])
		if err != nil {
			return err
		}
		if len(l.Dissent) == 0 {
			fmt.Println("No party initiatives went to a vote.")
			return nil
		}

		fmt.Printf("%-10s %8s %14s %8s\n", "Party", "Own", "Not in favor", "Share")
		for _, d := range l.Dissent {
			fmt.Printf("%-10s %8d %14d %7.1f%%\n", d.Party, d.Count, d.Dissent, d.Fraction*100)
		}
		return nil
	},
}

func openDB() (*database.DB, error) {
	dataDir := cfg.GetDataDir()
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	return database.OpenDir(dataDir)
}

func cacheDir() string {
	return filepath.Join(cfg.GetDataDir(), "cache")
}

func openCache() (*cache.Cache, error) {
	return cache.Open(cacheDir(), verbose)
}

func newCollector(store *cache.Cache) *collect.Collector {
	client := fetch.NewClient(cfg.Fetch.Timeout, cfg.Fetch.RequestsPerSecond, cfg.Fetch.UserAgent)
	return collect.NewCollector(cfg, client, store)
}

func publishedLegislature(name string) (*snapshot.Legislature, error) {
	if _, ok := cfg.Legislature(name); !ok {
		return nil, fmt.Errorf("unknown legislature %q", name)
	}

	db, err := openDB()
	if err != nil {
		return nil, err
	}
	defer db.Close()

	tables, err := db.GetPublishedTables(name)
	if err != nil {
		return nil, err
	}
	if len(tables) == 0 {
		return nil, fmt.Errorf("%s has not been published yet, run 'parlvotes run %s'", name, name)
	}
	return snapshot.Decode(name, tables)
}

// cachedDumps reads dumps through a short-lived read-only cache handle, so
// the server never holds the lock a build needs.
type cachedDumps struct {
	dir string
}

func (c cachedDumps) RawInitiatives(ctx context.Context, legislature string) ([]raw.Value, error) {
	store, err := cache.OpenReadOnly(c.dir)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	return collect.NewCollector(cfg, nil, store).RawInitiatives(ctx, legislature)
}
