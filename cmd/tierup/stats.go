package main

import (
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/tierup/internal/state"
	"github.com/ShayCichocki/tierup/internal/tui"
)

var (
	statsRecent int
	statsRunID  string
	statsPurge  time.Duration
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show statistics for runs recorded in this project",
	Long: `Show aggregate statistics from .tierup/state.db: runs, success rate,
average cost, attempts and escalations per tier, and total savings against
all-premium generation.

Examples:
  tierup stats                 # Aggregate statistics
  tierup stats --recent 5      # Also list the five most recent runs
  tierup stats --run <id>      # Attempts of one run
  tierup stats --purge 720h    # Delete runs older than 30 days`,
	Args: cobra.NoArgs,
	RunE: runStats,
}

func init() {
	statsCmd.Flags().IntVar(&statsRecent, "recent", 0, "List the N most recent runs")
	statsCmd.Flags().StringVar(&statsRunID, "run", "", "Show the attempts of one run")
	statsCmd.Flags().DurationVar(&statsPurge, "purge", 0, "Delete runs older than this duration")
}

func runStats(cmd *cobra.Command, args []string) error {
	projectRoot, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting working directory: %w", err)
	}
	if _, err := os.Stat(state.ProjectDBPath(projectRoot)); os.IsNotExist(err) {
		fmt.Println("No runs recorded yet. Run `tierup run` first.")
		return nil
	}

	db, err := state.OpenProject(projectRoot)
	if err != nil {
		return fmt.Errorf("open state database: %w", err)
	}
	defer db.Close()

	if n, err := recoverInterrupted(db); err == nil && n > 0 {
		printStatus("⚠", fmt.Sprintf("Marked %d run(s) from dead processes as interrupted", n), color.FgYellow)
	}

	if statsPurge > 0 {
		n, err := db.PurgeOldRuns(statsPurge)
		if err != nil {
			return fmt.Errorf("purge runs: %w", err)
		}
		printStatus("✓", fmt.Sprintf("Purged %d run(s) older than %s", n, statsPurge), color.FgGreen)
	}

	if statsRunID != "" {
		return printRun(db, statsRunID)
	}

	stats, err := db.Stats()
	if err != nil {
		return fmt.Errorf("compute stats: %w", err)
	}
	fmt.Print(tui.RenderStats(stats))

	if statsRecent > 0 {
		runs, err := db.ListRuns(statsRecent)
		if err != nil {
			return fmt.Errorf("list runs: %w", err)
		}
		fmt.Println()
		fmt.Printf("%-36s %-12s %-8s %8s %9s  %s\n", "Run", "Status", "Tier", "Attempts", "Cost", "Started")
		for _, r := range runs {
			fmt.Printf("%-36s %-12s %-8s %8d %9s  %s\n",
				r.ID, r.Status, r.FinalTier, r.Attempts, fmt.Sprintf("$%.4f", r.TotalCost),
				r.StartedAt.Local().Format("2006-01-02 15:04"))
		}
	}
	return nil
}

func printRun(db *state.DB, id string) error {
	run, err := db.GetRun(id)
	if err != nil {
		return fmt.Errorf("get run: %w", err)
	}
	if run == nil {
		return fmt.Errorf("run %s not found", id)
	}
	results, err := db.ListTierResults(id)
	if err != nil {
		return fmt.Errorf("list tier results: %w", err)
	}

	fmt.Printf("Run %s: %s", run.ID, run.Status)
	if run.FinalTier != "" {
		fmt.Printf(" at %s", run.FinalTier)
	}
	fmt.Printf(", $%.4f of $%.2f all-premium\n\n", run.TotalCost, run.PremiumBaseline)

	fmt.Printf("%-8s %-28s %7s %7s %9s %9s  %s\n", "Tier", "Model", "Attempt", "CQS", "Cost", "Tokens", "Escalation")
	for _, r := range results {
		escalation := ""
		if r.Escalated {
			escalation = r.EscalationReason
		}
		fmt.Printf("%-8s %-28s %7d %7.1f %9s %9d  %s\n",
			r.Tier, r.Model, r.Attempt, r.CQS, fmt.Sprintf("$%.4f", r.Cost), r.TokensInput+r.TokensOutput, escalation)
	}

	events, err := db.ListEvents(id)
	if err != nil {
		return fmt.Errorf("list events: %w", err)
	}
	if len(events) > 0 {
		fmt.Println("\nEvents:")
		for _, e := range events {
			fmt.Printf("  %s  %s\n", e.CreatedAt.Local().Format("15:04:05"), e.Type)
		}
	}
	return nil
}
