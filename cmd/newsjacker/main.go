package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/TobiSchelling/newsjacker/internal/brief"
	"github.com/TobiSchelling/newsjacker/internal/config"
	"github.com/TobiSchelling/newsjacker/internal/database"
	"github.com/TobiSchelling/newsjacker/internal/logging"
	"github.com/TobiSchelling/newsjacker/internal/pipeline"
	"github.com/TobiSchelling/newsjacker/internal/scheduler"
	"github.com/TobiSchelling/newsjacker/internal/server"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	ownerFlag  string
	cfg        *config.Config
)

func main() {
	err := rootCmd.Execute()
	logging.Close()
	if err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "newsjacker",
	Short:   "Newsjacking opportunity discovery",
	Long:    "Newsjacker searches the news for each brand's search terms, ranks what it finds against the brand and drafts briefs and articles.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// A missing .env is fine; the environment may already be set.
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("loading .env: %w", err)
		}

		// Skip config loading for init and version
		if cmd.Name() == "init" || cmd.Name() == "version" {
			return logging.Init(logging.Options{Verbose: verbose})
		}

		path, err := config.ResolveConfigPath(configPath)
		if err != nil {
			return err
		}
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		return logging.Init(logging.Options{
			Level:   cfg.Logging.Level,
			File:    cfg.Logging.File,
			Verbose: verbose,
		})
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")
	rootCmd.PersistentFlags().StringVarP(&ownerFlag, "owner", "o", "", "Brand owner (defaults to $NEWSJACKER_OWNER)")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(brandCmd)
	rootCmd.AddCommand(termsCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(opportunitiesCmd)
	rootCmd.AddCommand(briefCmd)
	rootCmd.AddCommand(articleCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(daemonCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("newsjacker", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/newsjacker/",
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
		fmt.Println("Set TAVILY_API_KEY, OPENAI_API_KEY and GEMINI_API_KEY (or a .env file), then run 'newsjacker brand load'.")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show database and system status",
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

		fmt.Println("Brands:")
		fmt.Printf("  Owners: %d\n", stats.Owners)
		fmt.Printf("  Brand guides: %d\n", stats.BrandGuides)
		fmt.Printf("  Active term sets: %d (%d total)\n", stats.ActiveTermSets, stats.TotalTermSets)
		fmt.Println("\nOpportunities:")
		fmt.Printf("  Total: %d\n", stats.Opportunities)
		fmt.Printf("  Trending: %d\n", stats.TrendingOpportunities)
		fmt.Printf("  Dismissed: %d\n", stats.DismissedOpportunities)
		fmt.Printf("  With brief: %d\n", stats.BriefedOpportunities)
		fmt.Println("\nArticles:")
		fmt.Printf("  Drafts: %d\n", stats.DraftArticles)
		fmt.Printf("  Published: %d\n", stats.PublishedArticles)
		fmt.Println("\nCycles:")
		fmt.Printf("  Runs: %d\n", stats.CycleRuns)

		last, err := db.GetLatestCycleRun()
		if err != nil {
			return err
		}
		if last != nil {
			fmt.Printf("  Last: %s (%s) %d/%d searches ok, %d new\n",
				last.StartedAt.Format("2006-01-02 15:04"), last.Trigger, last.Succeeded, last.Triples, last.Created)
		}
		return nil
	},
}

// --- search command ---

var manualSearch bool

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Run one search cycle for every active term set",
	Long: "Run one search cycle. With --owner only that owner's terms are searched. " +
		"With --manual, briefs are generated for the new opportunities.",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		orch, _, err := wire(ctx, db, manualSearch)
		if err != nil {
			return err
		}
		defer orch.Close()

		var report *pipeline.CycleReport
		if owner := currentOwner(); manualSearch || owner != "" {
			report, err = orch.RunManual(ctx, owner)
		} else {
			report, err = orch.RunCycle(ctx)
		}
		if err != nil {
			return err
		}

		printReport(report)
		return nil
	},
}

func init() {
	searchCmd.Flags().BoolVar(&manualSearch, "manual", false, "Generate briefs for new opportunities")
}

// --- serve command ---

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the local web dashboard",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		orch, gen, err := wire(ctx, db, true)
		if err != nil {
			return err
		}
		defer orch.Close()

		srv, err := newServer(db, orch, gen)
		if err != nil {
			return err
		}

		fmt.Printf("Starting server at http://localhost:%d\n", port())
		fmt.Println("Press Ctrl+C to stop")
		return server.Serve(ctx, srv, port())
	},
}

// --- daemon command ---

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run scheduled search cycles and the web dashboard",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		orch, gen, err := wire(ctx, db, true)
		if err != nil {
			return err
		}
		defer orch.Close()

		srv, err := newServer(db, orch, gen)
		if err != nil {
			return err
		}

		sched := scheduler.New(orch, cfg.Pipeline.Schedule)
		if err := sched.Start(ctx); err != nil {
			return err
		}
		defer sched.Stop()

		fmt.Printf("Scheduling cycles %q; dashboard at http://localhost:%d\n", cfg.Pipeline.Schedule, port())
		return server.Serve(ctx, srv, port())
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to run server on (defaults to server.port)")
	daemonCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to run server on (defaults to server.port)")
}

func port() int {
	if servePort > 0 {
		return servePort
	}
	return cfg.Server.Port
}

// wire builds the orchestrator from config. Scheduled cycles never write
// briefs, so the generator only matters for manual runs and the dashboard.
func wire(ctx context.Context, db *database.DB, withBriefs bool) (*pipeline.Orchestrator, *brief.Generator, error) {
	var gen *brief.Generator
	if withBriefs {
		gen = pipeline.Generator(cfg, db)
	}
	orch, err := pipeline.FromConfig(ctx, cfg, db, gen)
	if err != nil {
		return nil, nil, err
	}
	return orch, gen, nil
}

func newServer(db *database.DB, orch *pipeline.Orchestrator, gen *brief.Generator) (*server.Server, error) {
	var writer server.Writer
	if gen != nil {
		writer = gen
	}
	return server.New(db, orch, writer)
}

func openDB() (*database.DB, error) {
	dataDir := cfg.GetDataDir()
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	return database.Open(cfg.DBPath())
}

func currentOwner() string {
	if ownerFlag != "" {
		return ownerFlag
	}
	return os.Getenv("NEWSJACKER_OWNER")
}

func requireOwner() (string, error) {
	owner := currentOwner()
	if owner == "" {
		return "", fmt.Errorf("an owner is required: pass --owner or set NEWSJACKER_OWNER")
	}
	return owner, nil
}
