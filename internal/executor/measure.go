package executor

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"github.com/tidwall/gjson"

	"github.com/ShayCichocki/tierup/internal/workflow"
	"github.com/ShayCichocki/tierup/pkg/models"
)

// Measurement is the quality of a generated batch.
type Measurement struct {
	Analysis models.FailureAnalysis
	// Scores holds per-item quality scores (0-100) keyed by item ID.
	Scores map[string]float64
	// Errors holds per-item failure messages keyed by item ID.
	Errors map[string]string
}

// Measurer scores a generated batch.
type Measurer interface {
	Measure(ctx context.Context, req workflow.GenerationRequest, items []models.GeneratedItem) (*Measurement, error)
}

// MeasurerFunc adapts a function to the Measurer interface.
type MeasurerFunc func(ctx context.Context, req workflow.GenerationRequest, items []models.GeneratedItem) (*Measurement, error)

// Measure calls f.
func (f MeasurerFunc) Measure(ctx context.Context, req workflow.GenerationRequest, items []models.GeneratedItem) (*Measurement, error) {
	return f(ctx, req, items)
}

// Environment variables passed to measurement commands.
const (
	EnvItemsDir = "TIERUP_ITEMS_DIR"
	EnvTier     = "TIERUP_TIER"
	EnvAttempt  = "TIERUP_ATTEMPT"
	EnvRunID    = "TIERUP_RUN_ID"
)

// CommandMeasurer writes each item to a temporary directory, runs Command
// through sh, and parses JSON metrics from its stdout.
//
// Recognized fields (all optional):
//
//	test_pass_rate | pass_rate      0-1
//	coverage_percent | coverage     0-100
//	assertion_depth                 assertions per test
//	confidence_score | confidence   0-1
//	syntax_errors                   [string | {message, line, snippet}]
//	items                           [{id, score, error}]
type CommandMeasurer struct {
	Command string
	// Dir is the working directory for the command.
	Dir string
}

// Measure runs the command. A non-zero exit is an error only when stdout
// holds no JSON.
func (m *CommandMeasurer) Measure(ctx context.Context, req workflow.GenerationRequest, items []models.GeneratedItem) (*Measurement, error) {
	if m.Command == "" {
		return nil, fmt.Errorf("measure command is empty")
	}

	dir, err := os.MkdirTemp("", "tierup-items-")
	if err != nil {
		return nil, fmt.Errorf("create items dir: %w", err)
	}
	defer os.RemoveAll(dir)

	for _, item := range items {
		if err := os.WriteFile(filepath.Join(dir, item.ID), []byte(item.Content), 0644); err != nil {
			return nil, fmt.Errorf("write item %s: %w", item.ID, err)
		}
	}

	cmd := exec.CommandContext(ctx, "sh", "-c", m.Command)
	cmd.Dir = m.Dir
	cmd.Env = append(os.Environ(),
		EnvItemsDir+"="+dir,
		EnvTier+"="+string(req.Tier),
		EnvAttempt+"="+strconv.Itoa(req.Attempt),
		EnvRunID+"="+req.RunID,
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	out := bytes.TrimSpace(stdout.Bytes())
	if !gjson.ValidBytes(out) || len(out) == 0 {
		if runErr != nil {
			return nil, fmt.Errorf("measure command failed: %w: %s", runErr, bytes.TrimSpace(stderr.Bytes()))
		}
		return nil, fmt.Errorf("measure command produced no JSON")
	}
	return ParseMeasurement(out), nil
}

// ParseMeasurement reads metrics JSON leniently. Missing fields are zero.
func ParseMeasurement(data []byte) *Measurement {
	doc := gjson.ParseBytes(data)
	first := func(paths ...string) float64 {
		for _, p := range paths {
			if v := doc.Get(p); v.Exists() {
				return v.Float()
			}
		}
		return 0
	}

	m := &Measurement{
		Analysis: models.FailureAnalysis{
			TestPassRate:    first("test_pass_rate", "pass_rate"),
			CoveragePercent: first("coverage_percent", "coverage"),
			AssertionDepth:  first("assertion_depth"),
			ConfidenceScore: first("confidence_score", "confidence"),
		},
		Scores: make(map[string]float64),
		Errors: make(map[string]string),
	}

	doc.Get("syntax_errors").ForEach(func(_, v gjson.Result) bool {
		if v.Type == gjson.String {
			m.Analysis.SyntaxErrors = append(m.Analysis.SyntaxErrors, models.SyntaxError{Message: v.String()})
			return true
		}
		m.Analysis.SyntaxErrors = append(m.Analysis.SyntaxErrors, models.SyntaxError{
			Message: v.Get("message").String(),
			Line:    int(v.Get("line").Int()),
			Snippet: v.Get("snippet").String(),
		})
		return true
	})

	doc.Get("items").ForEach(func(_, v gjson.Result) bool {
		id := v.Get("id").String()
		if id == "" {
			return true
		}
		if s := v.Get("score"); s.Exists() {
			m.Scores[id] = s.Float()
		}
		if e := v.Get("error").String(); e != "" {
			m.Errors[id] = e
		}
		return true
	})
	return m
}
