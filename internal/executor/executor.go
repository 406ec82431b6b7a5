package executor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ShayCichocki/tierup/internal/orchestrator"
	"github.com/ShayCichocki/tierup/internal/workflow"
	"github.com/ShayCichocki/tierup/pkg/models"
)

// Defaults applied by New.
const (
	DefaultMaxTokens   = 4096
	DefaultConcurrency = 4
)

// Config controls generation.
type Config struct {
	// MaxTokens caps each completion.
	MaxTokens int
	// Concurrency bounds in-flight completions per batch.
	Concurrency int
}

// Executor generates every item of a batch with its own completion, then
// measures the batch. It implements workflow.Generator.
type Executor struct {
	client   Completer
	measurer Measurer
	cfg      Config
	logger   *orchestrator.DebugLogger
}

var _ workflow.Generator = (*Executor)(nil)

// New creates an Executor. Without a measurer, items and the batch analysis
// are scored by whether each item produced content.
func New(client Completer, measurer Measurer, cfg Config, logger *orchestrator.DebugLogger) *Executor {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	return &Executor{client: client, measurer: measurer, cfg: cfg, logger: logger}
}

// Generate runs req.ItemCount completions in parallel and measures them.
// Individual completion failures become failed items; the batch fails only
// when every completion fails or the context ends.
func (e *Executor) Generate(ctx context.Context, req workflow.GenerationRequest) (*workflow.GenerationResult, error) {
	started := time.Now()
	system := SystemPrompt(req.Team)
	items := make([]models.GeneratedItem, req.ItemCount)
	errs := make([]error, req.ItemCount)
	var tracker TokenTracker

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Concurrency)
	for i := 0; i < req.ItemCount; i++ {
		g.Go(func() error {
			id := requestItemID(req, i)
			items[i].ID = id
			c, err := e.client.Complete(gctx, req.Model, system, ItemPrompt(req.Prompt, i, req.ItemCount), e.cfg.MaxTokens)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				errs[i] = err
				items[i].Error = err.Error()
				return nil
			}
			tracker.Add(req.Model, c.Tokens)
			items[i].Content = c.Text
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if failed := countErrors(errs); failed == req.ItemCount && failed > 0 {
		return nil, fmt.Errorf("all %d completions failed: %w", failed, errors.Join(errs...))
	} else if failed > 0 {
		e.logger.Log("TIER", "run %s: %d of %d completions failed at %s tier", req.RunID, failed, req.ItemCount, req.Tier)
	}

	res := &workflow.GenerationResult{
		Items:  items,
		Tokens: tracker.Usage(),
		Cost:   tracker.Cost(),
	}

	if e.measurer != nil {
		m, err := e.measurer.Measure(ctx, req, items)
		if err != nil {
			return nil, fmt.Errorf("measure batch: %w", err)
		}
		applyMeasurement(res, m)
	} else {
		res.Analysis = contentAnalysis(res.Items)
	}

	res.Duration = time.Since(started)
	return res, nil
}

func applyMeasurement(res *workflow.GenerationResult, m *Measurement) {
	if m == nil {
		return
	}
	analysis := m.Analysis
	res.Analysis = &analysis
	for i := range res.Items {
		item := &res.Items[i]
		if s, ok := m.Scores[item.ID]; ok {
			item.QualityScore = s
		}
		if msg, ok := m.Errors[item.ID]; ok && item.Error == "" {
			item.Error = msg
		}
	}
}

// contentAnalysis scores items by whether they produced content and derives
// a batch analysis from that pass rate, so an all-passing batch scores a CQS
// of 100 and an all-failing one 0.
func contentAnalysis(items []models.GeneratedItem) *models.FailureAnalysis {
	passed := 0
	for i := range items {
		if items[i].Error == "" && strings.TrimSpace(items[i].Content) != "" {
			items[i].QualityScore = 100
			passed++
		}
	}
	rate := 0.0
	if len(items) > 0 {
		rate = float64(passed) / float64(len(items))
	}
	return &models.FailureAnalysis{
		TestPassRate:    rate,
		CoveragePercent: rate * 100,
		AssertionDepth:  rate * 10,
		ConfidenceScore: rate,
	}
}

func countErrors(errs []error) int {
	n := 0
	for _, err := range errs {
		if err != nil {
			n++
		}
	}
	return n
}

// requestItemID reuses the ID of a regenerated item, or names a new one.
func requestItemID(req workflow.GenerationRequest, i int) string {
	if i < len(req.ItemIDs) && req.ItemIDs[i] != "" {
		return req.ItemIDs[i]
	}
	return ItemID(i)
}

// ItemID names the i-th item of a batch.
func ItemID(i int) string {
	return fmt.Sprintf("item-%03d", i+1)
}

// ItemPrompt appends the item's position to the tier prompt so parallel
// completions produce distinct items.
func ItemPrompt(prompt string, i, n int) string {
	return fmt.Sprintf("%s\n<item index=\"%d\" of=\"%d\"/>", prompt, i+1, n)
}

// SystemPrompt describes the agent team working on the batch.
func SystemPrompt(team []orchestrator.AgentRole) string {
	if len(team) == 0 {
		return ""
	}
	roles := make([]string, len(team))
	for i, r := range team {
		roles[i] = string(r)
	}
	var sb strings.Builder
	sb.WriteString("You are acting as a team with these roles: ")
	sb.WriteString(strings.Join(roles, ", "))
	sb.WriteString(".\n")
	for _, r := range team {
		switch r {
		case orchestrator.RoleGenerator:
			sb.WriteString("- generator: produce the requested artifact.\n")
		case orchestrator.RoleAnalyzer:
			sb.WriteString("- analyzer: check the artifact against the failure patterns in the context.\n")
		case orchestrator.RoleReviewer:
			sb.WriteString("- reviewer: reject anything with syntax errors before answering.\n")
		}
	}
	sb.WriteString("Respond with the artifact only.")
	return sb.String()
}
