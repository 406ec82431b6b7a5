package executor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShayCichocki/tierup/internal/orchestrator"
	"github.com/ShayCichocki/tierup/internal/workflow"
	"github.com/ShayCichocki/tierup/pkg/models"
)

// fakeCompleter answers with a function of the prompt and tracks concurrency.
type fakeCompleter struct {
	mu       sync.Mutex
	prompts  []string
	systems  []string
	inFlight atomic.Int32
	peak     atomic.Int32
	answer   func(prompt string) (Completion, error)
}

func (f *fakeCompleter) Complete(_ context.Context, _, system, prompt string, _ int) (Completion, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}

	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	f.systems = append(f.systems, system)
	f.mu.Unlock()

	if f.answer != nil {
		return f.answer(prompt)
	}
	return Completion{Text: "ok", Tokens: models.NewTokenUsage(1000, 500)}, nil
}

func request(n int) workflow.GenerationRequest {
	return workflow.GenerationRequest{
		RunID:     "run-1",
		Tier:      models.TierCapable,
		Model:     "claude-sonnet-4-20250514",
		Prompt:    "<task/>",
		Team:      orchestrator.CreateAgentTeam(models.TierCapable, nil),
		ItemCount: n,
		Attempt:   1,
	}
}

func TestExecutor_GeneratesEveryItem(t *testing.T) {
	fc := &fakeCompleter{}
	ex := New(fc, nil, Config{Concurrency: 2}, nil)

	res, err := ex.Generate(context.Background(), request(5))
	require.NoError(t, err)
	require.Len(t, res.Items, 5)

	for i, item := range res.Items {
		assert.Equal(t, ItemID(i), item.ID)
		assert.Equal(t, "ok", item.Content)
		assert.Equal(t, 100.0, item.QualityScore, "content without a measurer passes")
	}
	require.NotNil(t, res.Analysis)
	assert.Equal(t, 1.0, res.Analysis.TestPassRate)
	assert.InDelta(t, 100.0, res.Analysis.CalculateQualityScore(), 1e-9)
	assert.Equal(t, int64(5000), res.Tokens.Input)
	assert.Equal(t, int64(7500), res.Tokens.Total)
	// 5 * (1000*3 + 500*15) / 1M
	assert.InDelta(t, 0.0525, res.Cost, 1e-9)
	assert.LessOrEqual(t, fc.peak.Load(), int32(2))
	assert.Positive(t, res.Duration)

	joined := strings.Join(fc.prompts, "\n")
	assert.Contains(t, joined, `<item index="1" of="5"/>`)
	assert.Contains(t, joined, `<item index="5" of="5"/>`)
	assert.Contains(t, fc.systems[0], "generator, analyzer")
}

func TestExecutor_PartialFailures(t *testing.T) {
	fc := &fakeCompleter{answer: func(prompt string) (Completion, error) {
		if strings.Contains(prompt, `index="2"`) {
			return Completion{}, errors.New("rate limited")
		}
		return Completion{Text: "ok"}, nil
	}}
	var buf strings.Builder
	ex := New(fc, nil, Config{}, orchestrator.NewWriterLogger(&buf))

	res, err := ex.Generate(context.Background(), request(3))
	require.NoError(t, err)
	assert.Equal(t, "rate limited", res.Items[1].Error)
	assert.Zero(t, res.Items[1].QualityScore)
	assert.Equal(t, 100.0, res.Items[0].QualityScore)
	assert.Contains(t, buf.String(), "1 of 3 completions failed")
	require.NotNil(t, res.Analysis)
	assert.InDelta(t, 2.0/3.0, res.Analysis.TestPassRate, 1e-9)
	assert.Empty(t, res.Analysis.SyntaxErrors)
}

func TestExecutor_EmptyContentFails(t *testing.T) {
	fc := &fakeCompleter{answer: func(string) (Completion, error) { return Completion{Text: "  "}, nil }}

	res, err := New(fc, nil, Config{}, nil).Generate(context.Background(), request(2))
	require.NoError(t, err)
	assert.Zero(t, res.Items[0].QualityScore)
	require.NotNil(t, res.Analysis)
	assert.Zero(t, res.Analysis.CalculateQualityScore())
}

func TestExecutor_ReusesRequestedItemIDs(t *testing.T) {
	req := request(2)
	req.ItemIDs = []string{"item-004", "item-007"}

	res, err := New(&fakeCompleter{}, nil, Config{}, nil).Generate(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, res.Items, 2)
	assert.Equal(t, "item-004", res.Items[0].ID)
	assert.Equal(t, "item-007", res.Items[1].ID)
}

func TestExecutor_AllFail(t *testing.T) {
	fc := &fakeCompleter{answer: func(string) (Completion, error) {
		return Completion{}, errors.New("bad key")
	}}
	_, err := New(fc, nil, Config{}, nil).Generate(context.Background(), request(2))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all 2 completions failed")
	assert.Contains(t, err.Error(), "bad key")
}

func TestExecutor_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	fc := &fakeCompleter{answer: func(string) (Completion, error) {
		cancel()
		return Completion{}, context.Canceled
	}}

	_, err := New(fc, nil, Config{Concurrency: 1}, nil).Generate(ctx, request(3))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExecutor_AppliesMeasurement(t *testing.T) {
	var seen []models.GeneratedItem
	measurer := MeasurerFunc(func(_ context.Context, req workflow.GenerationRequest, items []models.GeneratedItem) (*Measurement, error) {
		seen = items
		return &Measurement{
			Analysis: models.FailureAnalysis{TestPassRate: 0.5, CoveragePercent: 60},
			Scores:   map[string]float64{ItemID(0): 90, ItemID(1): 40},
			Errors:   map[string]string{ItemID(1): "assertion failed"},
		}, nil
	})

	res, err := New(&fakeCompleter{}, measurer, Config{}, nil).Generate(context.Background(), request(2))
	require.NoError(t, err)
	require.Len(t, seen, 2)
	require.NotNil(t, res.Analysis)
	assert.Equal(t, 0.5, res.Analysis.TestPassRate)
	assert.Equal(t, 90.0, res.Items[0].QualityScore)
	assert.Equal(t, 40.0, res.Items[1].QualityScore)
	assert.Equal(t, "assertion failed", res.Items[1].Error)
}

func TestExecutor_MeasureError(t *testing.T) {
	measurer := MeasurerFunc(func(context.Context, workflow.GenerationRequest, []models.GeneratedItem) (*Measurement, error) {
		return nil, errors.New("pytest missing")
	})
	_, err := New(&fakeCompleter{}, measurer, Config{}, nil).Generate(context.Background(), request(1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pytest missing")
}

func TestExecutor_DrivesWorkflow(t *testing.T) {
	measurer := MeasurerFunc(func(_ context.Context, _ workflow.GenerationRequest, items []models.GeneratedItem) (*Measurement, error) {
		scores := make(map[string]float64)
		for _, it := range items {
			scores[it.ID] = 95
		}
		return &Measurement{
			Analysis: models.FailureAnalysis{TestPassRate: 1, CoveragePercent: 100, AssertionDepth: 10, ConfidenceScore: 1},
			Scores:   scores,
		}, nil
	})
	ex := New(&fakeCompleter{}, measurer, Config{}, nil)

	w, err := workflow.New(ex)
	require.NoError(t, err)
	res, err := w.Run(context.Background(), workflow.Task{Objective: "unit tests", ItemCount: 3})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, models.TierCheap, res.FinalTier())
	assert.Len(t, res.AcceptedItems, 3)
}

func TestExecutor_WithoutMeasurerAcceptedAtCheap(t *testing.T) {
	fc := &fakeCompleter{}
	w, err := workflow.New(New(fc, nil, Config{}, nil), workflow.WithConfirmer(workflow.AlwaysApprove))
	require.NoError(t, err)

	res, err := w.Run(context.Background(), workflow.Task{Objective: "fixtures", ItemCount: 3})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, models.TierCheap, res.FinalTier())
	assert.Len(t, res.TierResults, 1)
	assert.Zero(t, res.Escalations())
	assert.InDelta(t, 100.0, res.TierResults[0].QualityScore(), 1e-9)
}

func TestExecutor_RegeneratedItemsKeepIDsAcrossTiers(t *testing.T) {
	measurer := MeasurerFunc(func(_ context.Context, req workflow.GenerationRequest, items []models.GeneratedItem) (*Measurement, error) {
		if req.Tier == models.TierCheap {
			return &Measurement{
				Analysis: models.FailureAnalysis{TestPassRate: 0.5, CoveragePercent: 50, AssertionDepth: 2, ConfidenceScore: 0.5},
				Scores:   map[string]float64{ItemID(0): 90, ItemID(1): 10},
			}, nil
		}
		scores := make(map[string]float64)
		for _, it := range items {
			scores[it.ID] = 95
		}
		return &Measurement{
			Analysis: models.FailureAnalysis{TestPassRate: 1, CoveragePercent: 100, AssertionDepth: 10, ConfidenceScore: 1},
			Scores:   scores,
		}, nil
	})
	w, err := workflow.New(New(&fakeCompleter{}, measurer, Config{}, nil))
	require.NoError(t, err)

	res, err := w.Run(context.Background(), workflow.Task{Objective: "unit tests", ItemCount: 2})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, models.TierCapable, res.FinalTier())

	ids := make(map[string]int)
	for _, it := range res.AcceptedItems {
		ids[it.ID]++
	}
	assert.Equal(t, map[string]int{ItemID(0): 1, ItemID(1): 1}, ids)
}

func TestRouter(t *testing.T) {
	anth := &fakeCompleter{answer: func(string) (Completion, error) { return Completion{Text: "anthropic"}, nil }}
	oai := &fakeCompleter{answer: func(string) (Completion, error) { return Completion{Text: "openai"}, nil }}
	r := &Router{Anthropic: anth, OpenAI: oai}

	tests := []struct {
		model string
		want  string
	}{
		{"claude-3-5-haiku-20241022", "anthropic"},
		{"gpt-4o", "openai"},
		{"custom-model", "anthropic"},
	}
	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			c, err := r.Complete(context.Background(), tt.model, "", "p", 10)
			require.NoError(t, err)
			assert.Equal(t, tt.want, c.Text)
		})
	}

	_, err := r.Complete(context.Background(), "gemini-1.5-pro", "", "p", 10)
	assert.ErrorContains(t, err, "no backend configured")

	_, err = (&Router{}).Complete(context.Background(), "gpt-4o", "", "p", 10)
	assert.Error(t, err)
}

func TestSystemPrompt(t *testing.T) {
	assert.Empty(t, SystemPrompt(nil))

	p := SystemPrompt(orchestrator.CreateAgentTeam(models.TierPremium, nil))
	assert.Contains(t, p, "generator, analyzer, reviewer")
	assert.Contains(t, p, "- reviewer:")
}

func TestItemID(t *testing.T) {
	assert.Equal(t, "item-001", ItemID(0))
	assert.Equal(t, "item-120", ItemID(119))
	assert.Equal(t, fmt.Sprintf("p\n<item index=%q of=%q/>", "3", "7"), ItemPrompt("p", 2, 7))
}
