package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/TobiSchelling/newsjacker/internal/brand"
	"github.com/TobiSchelling/newsjacker/internal/database"
	"github.com/TobiSchelling/newsjacker/internal/llm"
	"github.com/TobiSchelling/newsjacker/internal/pipeline"
)

// --- brand command ---

var brandCmd = &cobra.Command{
	Use:   "brand",
	Short: "Manage brand guides",
}

var brandName string

var brandLoadCmd = &cobra.Command{
	Use:   "load [file]",
	Short: "Load a brand guide and activate the search terms extracted from it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		owner, err := requireOwner()
		if err != nil {
			return err
		}
		content, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("reading brand guide: %w", err)
		}
		name := brandName
		if name == "" {
			name = filepath.Base(args[0])
		}

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		embedder, err := pipeline.Embedder(cfg)
		if err != nil {
			return err
		}
		provider := pipeline.Completion(cfg)
		if provider == nil {
			return llm.ErrNotConfigured
		}

		fmt.Printf("Extracting search terms from %s...\n", name)
		proc := brand.NewProcessor(db, provider, embedder, cfg.Generation.MaxTokens)
		res, err := proc.Process(context.Background(), owner, name, string(content))
		if err != nil {
			return err
		}

		fmt.Printf("\nActivated %d search terms for %s (set %d):\n", len(res.Terms), owner, res.TermSetID)
		printTerms(res.Terms)
		return nil
	},
}

func init() {
	brandLoadCmd.Flags().StringVar(&brandName, "name", "", "Display name (defaults to the file name)")
	brandCmd.AddCommand(brandLoadCmd)
}

// --- terms command ---

var termsCmd = &cobra.Command{
	Use:   "terms",
	Short: "Inspect search terms",
}

var termsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the owner's active search terms",
	RunE: func(cmd *cobra.Command, args []string) error {
		owner, err := requireOwner()
		if err != nil {
			return err
		}
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		set, err := db.GetActiveSearchTermSet(owner)
		if err != nil {
			return err
		}
		if set == nil {
			fmt.Printf("No active search terms for %s. Load a brand guide with: newsjacker brand load\n", owner)
			return nil
		}
		fmt.Printf("Active search terms for %s (set %d, %d-dim brand embedding):\n\n", owner, set.ID, len(set.BrandEmbedding))
		printTerms(set.Terms)
		return nil
	},
}

var termsHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "List every search term set of the owner",
	RunE: func(cmd *cobra.Command, args []string) error {
		owner, err := requireOwner()
		if err != nil {
			return err
		}
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		sets, err := db.GetSearchTermSets(owner)
		if err != nil {
			return err
		}
		for _, s := range sets {
			icon := " "
			if s.IsActive {
				icon = "*"
			}
			fmt.Printf("  [%d] %s %s  %d terms  guide %d\n",
				s.ID, icon, s.CreatedAt.Format("2006-01-02 15:04"), len(s.Terms), s.BrandGuideID)
		}
		return nil
	},
}

func init() {
	termsCmd.AddCommand(termsListCmd)
	termsCmd.AddCommand(termsHistoryCmd)
}

func printTerms(terms []database.SearchTerm) {
	for _, t := range terms {
		fmt.Printf("  %-40s %-12s %.1f\n", t.Term, t.Category, t.Weight)
	}
}

// --- opportunities command ---

var opportunitiesCmd = &cobra.Command{
	Use:     "opportunities",
	Aliases: []string{"opps"},
	Short:   "Manage opportunities",
}

var (
	listAll      bool
	listTrending bool
	listLimit    int
)

var opportunitiesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the owner's opportunities, best first",
	RunE: func(cmd *cobra.Command, args []string) error {
		owner, err := requireOwner()
		if err != nil {
			return err
		}
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		opps, err := db.ListOpportunities(owner, database.OpportunityFilter{
			IncludeDismissed: listAll,
			TrendingOnly:     listTrending,
			Limit:            listLimit,
		})
		if err != nil {
			return err
		}
		if len(opps) == 0 {
			fmt.Println("No opportunities. Run: newsjacker search")
			return nil
		}

		for _, o := range opps {
			flags := ""
			if o.IsTrending {
				flags += " [trending]"
			}
			if o.IsDismissed {
				flags += " [dismissed]"
			}
			if o.Brief != nil {
				flags += " [brief]"
			}
			fmt.Printf("  [%d] %.2f %s%s\n", o.ID, o.FinalScore, o.Title, flags)
			fmt.Printf("        %s · %s · %s\n", o.Source, o.PublishedAt.Format("2006-01-02 15:04"), o.URL)
		}
		return nil
	},
}

var opportunitiesDismissCmd = &cobra.Command{
	Use:   "dismiss [id]",
	Short: "Dismiss an opportunity",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		owner, err := requireOwner()
		if err != nil {
			return err
		}
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		if err := db.DismissOpportunity(owner, id); err != nil {
			return fmt.Errorf("opportunity %d: %w", id, err)
		}
		fmt.Printf("Dismissed opportunity [%d]\n", id)
		return nil
	},
}

var clearYes bool

var opportunitiesClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every opportunity of the owner",
	RunE: func(cmd *cobra.Command, args []string) error {
		owner, err := requireOwner()
		if err != nil {
			return err
		}
		if !clearYes {
			return fmt.Errorf("refusing to delete %s's opportunities without --yes", owner)
		}
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		n, err := db.ClearOpportunities(owner)
		if err != nil {
			return err
		}
		fmt.Printf("Deleted %d opportunities for %s\n", n, owner)
		return nil
	},
}

func init() {
	opportunitiesListCmd.Flags().BoolVar(&listAll, "all", false, "Include dismissed opportunities")
	opportunitiesListCmd.Flags().BoolVar(&listTrending, "trending", false, "Only trending opportunities")
	opportunitiesListCmd.Flags().IntVarP(&listLimit, "limit", "n", 50, "Maximum number to list")
	opportunitiesClearCmd.Flags().BoolVar(&clearYes, "yes", false, "Confirm deletion")

	opportunitiesCmd.AddCommand(opportunitiesListCmd)
	opportunitiesCmd.AddCommand(opportunitiesDismissCmd)
	opportunitiesCmd.AddCommand(opportunitiesClearCmd)
}

// --- brief command ---

var briefEmotion string

var briefCmd = &cobra.Command{
	Use:   "brief [id...]",
	Short: "Generate AI briefs for opportunities",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		owner, err := requireOwner()
		if err != nil {
			return err
		}
		ids := make([]int64, 0, len(args))
		for _, a := range args {
			id, err := parseID(a)
			if err != nil {
				return err
			}
			ids = append(ids, id)
		}

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		gen := pipeline.Generator(cfg, db)
		if gen == nil {
			return llm.ErrNotConfigured
		}
		results, err := gen.GenerateBriefs(context.Background(), owner, ids, briefEmotion)
		if err != nil {
			return err
		}

		failed := 0
		for _, r := range results {
			if r.Err != nil {
				failed++
				fmt.Printf("  [%d] failed: %v\n", r.OpportunityID, r.Err)
				continue
			}
			fmt.Printf("  [%d] %s (%s)\n        %s\n", r.OpportunityID, r.Brief.Title, r.Brief.Emotion, r.Brief.Brief)
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d briefs failed", failed, len(results))
		}
		return nil
	},
}

func init() {
	briefCmd.Flags().StringVar(&briefEmotion, "emotion", "", "Target emotion (random when empty)")
}

// --- article command ---

var articleCmd = &cobra.Command{
	Use:   "article",
	Short: "Generate and publish full articles",
}

var articleGenerateCmd = &cobra.Command{
	Use:   "generate [opportunity-id]",
	Short: "Write a draft article for an opportunity",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		owner, err := requireOwner()
		if err != nil {
			return err
		}
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		gen := pipeline.Generator(cfg, db)
		if gen == nil {
			return llm.ErrNotConfigured
		}
		fmt.Println("Writing article...")
		a, err := gen.GenerateArticle(context.Background(), owner, id)
		if err != nil {
			return err
		}
		fmt.Printf("Draft article [%d]: %s (%d words)\n", a.ID, a.Title, len(strings.Fields(a.Content)))
		return nil
	},
}

var articlePublishCmd = &cobra.Command{
	Use:   "publish [article-id]",
	Short: "Publish a draft article",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		owner, err := requireOwner()
		if err != nil {
			return err
		}
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		if err := db.PublishArticle(owner, id); err != nil {
			return fmt.Errorf("article %d: %w", id, err)
		}
		fmt.Printf("Published article [%d]\n", id)
		return nil
	},
}

var articleShowCmd = &cobra.Command{
	Use:   "show [article-id]",
	Short: "Print an article as markdown",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		owner, err := requireOwner()
		if err != nil {
			return err
		}
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		a, err := db.GetArticle(owner, id)
		if err != nil {
			return fmt.Errorf("article %d: %w", id, err)
		}
		fmt.Printf("# %s\n\n%s\n", a.Title, a.Content)
		return nil
	},
}

func init() {
	articleCmd.AddCommand(articleGenerateCmd)
	articleCmd.AddCommand(articlePublishCmd)
	articleCmd.AddCommand(articleShowCmd)
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid ID: %s", s)
	}
	return id, nil
}

func printReport(r *pipeline.CycleReport) {
	fmt.Printf("\nCycle %s (%s):\n", r.RunID, r.Trigger)
	for _, o := range r.Outcomes {
		if o.OK() {
			fmt.Printf("  ok      %-36s %s  found %d, new %d, known %d, dropped %d\n",
				o.Term.Term, o.OwnerID, o.Found, len(o.CreatedIDs), o.Existing, o.Dropped)
			continue
		}
		fmt.Printf("  %-7s %-36s %s  %v\n", o.Kind, o.Term.Term, o.OwnerID, o.Err)
	}
	if len(r.Briefs) > 0 {
		ok := 0
		for _, b := range r.Briefs {
			if b.Err == nil {
				ok++
			}
		}
		fmt.Printf("\nBriefs: %d/%d generated\n", ok, len(r.Briefs))
	}
	fmt.Printf("\n%s\n", r.Summary())
}
