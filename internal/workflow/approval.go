package workflow

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/ShayCichocki/tierup/pkg/models"
)

// Confirmer asks a human (or a stand-in) to approve a cost.
type Confirmer interface {
	Confirm(ctx context.Context, description string, cost float64) (bool, error)
}

// ConfirmerFunc adapts a function to the Confirmer interface.
type ConfirmerFunc func(ctx context.Context, description string, cost float64) (bool, error)

// Confirm calls f.
func (f ConfirmerFunc) Confirm(ctx context.Context, description string, cost float64) (bool, error) {
	return f(ctx, description, cost)
}

// AlwaysApprove approves every request. Used for --yes and CI runs.
var AlwaysApprove Confirmer = ConfirmerFunc(func(context.Context, string, float64) (bool, error) {
	return true, nil
})

// AlwaysDeny refuses every request.
var AlwaysDeny Confirmer = ConfirmerFunc(func(context.Context, string, float64) (bool, error) {
	return false, nil
})

// ScriptedConfirmer answers from a fixed list and records what it was asked.
// Once the answers run out it denies.
type ScriptedConfirmer struct {
	mu       sync.Mutex
	answers  []bool
	Requests []string
}

// NewScriptedConfirmer creates a confirmer that replays answers in order.
func NewScriptedConfirmer(answers ...bool) *ScriptedConfirmer {
	return &ScriptedConfirmer{answers: answers}
}

// Confirm returns the next scripted answer.
func (s *ScriptedConfirmer) Confirm(_ context.Context, description string, cost float64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Requests = append(s.Requests, fmt.Sprintf("%s ($%.2f)", description, cost))
	if len(s.answers) == 0 {
		return false, nil
	}
	answer := s.answers[0]
	s.answers = s.answers[1:]
	return answer, nil
}

// LineConfirmer prompts on a writer and reads y/n answers line by line.
// Unrecognised answers re-prompt; end of input counts as "no".
type LineConfirmer struct {
	in  *bufio.Reader
	out io.Writer
}

// NewLineConfirmer creates a confirmer reading from in and prompting on out.
func NewLineConfirmer(in io.Reader, out io.Writer) *LineConfirmer {
	return &LineConfirmer{in: bufio.NewReader(in), out: out}
}

// Confirm blocks until the user answers y or n.
func (c *LineConfirmer) Confirm(ctx context.Context, description string, cost float64) (bool, error) {
	for {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		fmt.Fprintf(c.out, "%s\nEstimated cost: $%.2f. Proceed? [y/n]: ", description, cost)

		line, err := c.in.ReadString('\n')
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			return true, nil
		case "n", "no":
			return false, nil
		}
		if err == io.EOF {
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("read confirmation: %w", err)
		}
		fmt.Fprintln(c.out, "Please answer y or n.")
	}
}

// RequestApproval approves silently when cost is under the auto-approve
// threshold and otherwise asks the confirmer. A workflow without a
// confirmer denies anything above the threshold.
func (w *Workflow) RequestApproval(ctx context.Context, description string, cost float64) (bool, error) {
	if cost < w.cfg.Budget.AutoApproveUnder {
		w.logger.Log("APPROVAL", "auto-approved %q ($%.2f < $%.2f)", description, cost, w.cfg.Budget.AutoApproveUnder)
		return true, nil
	}
	if w.confirmer == nil {
		w.logger.Log("APPROVAL", "denied %q ($%.2f): no confirmer", description, cost)
		return false, nil
	}

	approved, err := w.confirmer.Confirm(ctx, description, cost)
	if err != nil {
		return false, fmt.Errorf("request approval: %w", err)
	}
	w.logger.Log("APPROVAL", "%q ($%.2f) approved=%v", description, cost, approved)
	return approved, nil
}

// RequestEscalationApproval gates a mid-run escalation the same way as the
// initial approval.
func (w *Workflow) RequestEscalationApproval(ctx context.Context, from, to models.Tier, itemCount int, additionalCost float64) (bool, error) {
	description := fmt.Sprintf("Escalate %d item(s) from %s to %s tier", itemCount, from, to)
	return w.RequestApproval(ctx, description, additionalCost)
}
