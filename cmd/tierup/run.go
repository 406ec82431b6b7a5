package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/tierup/internal/executor"
	"github.com/ShayCichocki/tierup/internal/orchestrator"
	"github.com/ShayCichocki/tierup/internal/orchestrator/policy"
	"github.com/ShayCichocki/tierup/internal/signals"
	"github.com/ShayCichocki/tierup/internal/tui"
	"github.com/ShayCichocki/tierup/internal/workflow"
	"github.com/ShayCichocki/tierup/pkg/models"
)

var (
	runItems         int
	runObjective     string
	runMeasureCmd    string
	runReportPath    string
	runMetricsAddr   string
	runYes           bool
	runMaxCost       float64
	runAbortOnBudget bool
	runTiers         []string
	runConcurrency   int
	runVerbose       bool
)

// errRunFailed makes the process exit non-zero after the summary is printed.
var errRunFailed = errors.New("run did not meet the quality bar")

var runCmd = &cobra.Command{
	Use:   "run [objective]",
	Short: "Generate items with progressive tier escalation",
	Long: `Generate --items items toward an objective, starting at the cheapest tier.

Each batch is scored by --measure-cmd, which receives the generated items in
$TIERUP_ITEMS_DIR and prints JSON metrics (test_pass_rate, coverage_percent,
assertion_depth, confidence_score, syntax_errors, items[{id, score, error}]).
Without a measure command every non-empty item passes.

Costs above budget.auto_approve_under ask for confirmation unless --yes is set.
Touch .tierup/signals/stop to stop a run between attempts.

Examples:
  tierup run "pytest unit tests for billing.py" --items 20 --measure-cmd ./score.sh
  tierup run --objective "jest tests" --items 5 --yes --report out/report.yaml
  tierup run "fixtures" --items 50 --tiers cheap,capable --max-cost 2`,
	Args: cobra.ArbitraryArgs,
	RunE: runRun,
}

func init() {
	runCmd.Flags().IntVarP(&runItems, "items", "n", 10, "Number of items to generate")
	runCmd.Flags().StringVarP(&runObjective, "objective", "o", "", "What to generate (alternative to the positional argument)")
	runCmd.Flags().StringVar(&runMeasureCmd, "measure-cmd", "", "Shell command that scores a batch (overrides executor.measure_command)")
	runCmd.Flags().StringVar(&runReportPath, "report", "", "Write a YAML report of the run to this path")
	runCmd.Flags().StringVar(&runMetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9464")
	runCmd.Flags().BoolVarP(&runYes, "yes", "y", false, "Approve all costs without prompting")
	runCmd.Flags().Float64Var(&runMaxCost, "max-cost", 0, "Override budget.max_cost in USD")
	runCmd.Flags().BoolVar(&runAbortOnBudget, "abort-on-budget", false, "Abort when the budget is exceeded instead of warning")
	runCmd.Flags().StringSliceVar(&runTiers, "tiers", nil, "Comma-separated tiers to use, e.g. cheap,capable")
	runCmd.Flags().IntVar(&runConcurrency, "concurrency", 0, "Override executor.concurrency")
	runCmd.Flags().BoolVarP(&runVerbose, "verbose", "v", false, "Write the debug log to stderr instead of .tierup/logs")
}

// resolveObjective prefers --objective and falls back to the positional
// arguments joined by spaces.
func resolveObjective(flag string, args []string) (string, error) {
	objective := strings.TrimSpace(flag)
	if objective == "" {
		objective = strings.TrimSpace(strings.Join(args, " "))
	}
	if objective == "" {
		return "", errors.New("an objective is required: tierup run \"<objective>\" or --objective")
	}
	return objective, nil
}

// applyRunOverrides applies command-line overrides to the policy.
func applyRunOverrides(p *policy.Config, tiers []string, maxCost float64, abort bool) error {
	if len(tiers) > 0 {
		p.Tiers = p.Tiers[:0]
		for _, name := range tiers {
			t, err := models.ParseTier(name)
			if err != nil {
				return err
			}
			p.Tiers = append(p.Tiers, t)
		}
	}
	if maxCost > 0 {
		p.Budget.MaxCost = maxCost
	}
	if abort {
		p.Budget.AbortOnExceeded = true
	}
	return p.Validate()
}

// chooseConfirmer picks the approval channel: --yes approves everything, a
// terminal gets the interactive prompt, anything else reads y/n lines.
func chooseConfirmer(yes bool, in *os.File, out io.Writer) workflow.Confirmer {
	if yes {
		return workflow.AlwaysApprove
	}
	if isatty.IsTerminal(in.Fd()) || isatty.IsCygwinTerminal(in.Fd()) {
		return tui.NewConfirmer(in, out)
	}
	return workflow.NewLineConfirmer(in, out)
}

func runRun(cmd *cobra.Command, args []string) error {
	objective, err := resolveObjective(runObjective, args)
	if err != nil {
		return err
	}
	if runItems < 1 {
		return fmt.Errorf("--items must be at least 1, got %d", runItems)
	}

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	projectRoot, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting working directory: %w", err)
	}

	logger := orchestrator.NewDebugLoggerForProject(projectRoot)
	defer logger.Close()
	if runVerbose {
		logger = orchestrator.NewWriterLogger(os.Stderr)
	}
	orchestrator.SetPackageLogger(logger)

	pol, err := cfg.ToPolicy()
	if err != nil {
		return err
	}
	if err := applyRunOverrides(pol, runTiers, runMaxCost, runAbortOnBudget); err != nil {
		return err
	}

	tierModels := resolveModels(cfg)
	client, err := buildCompleter(cfg, requiredProviders(pol.Tiers, tierModels))
	if err != nil {
		return err
	}

	measureCmd := cfg.Executor.MeasureCommand
	if runMeasureCmd != "" {
		measureCmd = runMeasureCmd
	}
	var measurer executor.Measurer
	if measureCmd != "" {
		measurer = &executor.CommandMeasurer{Command: measureCmd, Dir: cfg.Executor.MeasureDir}
	} else {
		printStatus("⚠", "No measure command configured; items pass when non-empty", color.FgYellow)
	}

	concurrency := cfg.Executor.Concurrency
	if runConcurrency > 0 {
		concurrency = runConcurrency
	}
	ex := executor.New(client, measurer, executor.Config{
		MaxTokens:   cfg.Executor.MaxTokens,
		Concurrency: concurrency,
	}, logger)

	tel, err := setupTelemetry(cfg, projectRoot, runMetricsAddr, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := tel.Close(); err != nil {
			logger.Log("TELEMETRY", "close: %v", err)
		}
	}()

	if n, err := recoverInterrupted(tel.store); err != nil {
		logger.Log("STATE", "recovering interrupted runs: %v", err)
	} else if n > 0 {
		printStatus("⚠", fmt.Sprintf("Marked %d run(s) from dead processes as interrupted", n), color.FgYellow)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	watcher, err := signals.New(projectRoot)
	if err != nil {
		return fmt.Errorf("signals: %w", err)
	}
	defer watcher.Close()
	watcher.Clear()
	ctx, cancel := watcher.WithCancel(ctx)
	defer cancel()

	wf, err := workflow.New(ex,
		workflow.WithPolicy(pol),
		workflow.WithLogger(logger),
		workflow.WithConfirmer(chooseConfirmer(runYes, os.Stdin, os.Stdout)),
		workflow.WithRecorder(tel.recorder),
		workflow.WithModels(tierModels),
	)
	if err != nil {
		return err
	}

	fmt.Printf("Generating %d item(s): %s\n", runItems, objective)
	for _, t := range pol.Tiers {
		fmt.Printf("  %-8s %s\n", t, wf.Model(t))
	}
	fmt.Printf("Estimated cost: $%.2f (all-premium: $%.2f)\n\n",
		wf.EstimateTotalCost(runItems), workflow.PremiumBaseline(pol, runItems))

	res, runErr := wf.Run(ctx, workflow.Task{Objective: objective, ItemCount: runItems})
	return reportRun(ctx, res, runErr, runReportPath)
}

// reportRun prints the outcome, writes the report and maps the outcome to
// the command's error.
func reportRun(ctx context.Context, res *workflow.ProgressiveWorkflowResult, runErr error, reportPath string) error {
	if res != nil {
		fmt.Print(tui.RenderSummary(res))
		if reportPath != "" {
			if err := res.WriteReport(reportPath); err != nil {
				printStatus("✗", fmt.Sprintf("Writing report: %v", err), color.FgRed)
			} else {
				printStatus("✓", "Report written to "+reportPath, color.FgGreen)
			}
		}
	}

	var budgetErr *workflow.BudgetExceededError
	switch {
	case runErr == nil:
		if res != nil && !res.Success {
			return errRunFailed
		}
		return nil
	case errors.Is(context.Cause(ctx), signals.ErrStopRequested):
		printStatus("■", "Stopped by signal file", color.FgYellow)
		return signals.ErrStopRequested
	case errors.Is(runErr, workflow.ErrApprovalDenied):
		printStatus("✗", "Cost approval denied; nothing was generated", color.FgYellow)
		return runErr
	case errors.As(runErr, &budgetErr):
		printStatus("✗", budgetErr.Error(), color.FgRed)
		return runErr
	default:
		return runErr
	}
}
