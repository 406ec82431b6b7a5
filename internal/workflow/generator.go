package workflow

import (
	"context"
	"time"

	"github.com/ShayCichocki/tierup/internal/orchestrator"
	"github.com/ShayCichocki/tierup/pkg/models"
)

// GenerationRequest is what the workflow hands the generation collaborator
// for one attempt.
type GenerationRequest struct {
	RunID     string
	Tier      models.Tier
	Model     string
	Prompt    string
	Team      []orchestrator.AgentRole
	ItemCount int
	Attempt   int
	// ItemIDs names the items being regenerated, in order. It is empty for
	// the first tier, where the generator assigns IDs.
	ItemIDs []string
}

// GenerationResult is one measured batch. Analysis may be nil when nothing
// could be measured.
type GenerationResult struct {
	Items    []models.GeneratedItem
	Analysis *models.FailureAnalysis
	Tokens   models.TokenUsage
	Cost     float64
	Duration time.Duration
}

// Generator produces and measures a batch of items at one tier.
type Generator interface {
	Generate(ctx context.Context, req GenerationRequest) (*GenerationResult, error)
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func(ctx context.Context, req GenerationRequest) (*GenerationResult, error)

// Generate calls f.
func (f GeneratorFunc) Generate(ctx context.Context, req GenerationRequest) (*GenerationResult, error) {
	return f(ctx, req)
}

// DefaultModels maps each tier to its default model identifier.
var DefaultModels = map[models.Tier]string{
	models.TierCheap:   "claude-3-5-haiku-20241022",
	models.TierCapable: "claude-sonnet-4-20250514",
	models.TierPremium: "claude-opus-4-5-20251101",
}
