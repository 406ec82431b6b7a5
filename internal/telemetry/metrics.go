package telemetry

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "tierup"

// Metrics is a Sink exposing Prometheus collectors for tier attempts,
// escalations, budget overruns and completed runs.
type Metrics struct {
	TierAttempts   *prometheus.CounterVec
	TierCost       *prometheus.CounterVec
	TierTokens     *prometheus.CounterVec
	TierQuality    *prometheus.HistogramVec
	Escalations    *prometheus.CounterVec
	BudgetExceeded *prometheus.CounterVec
	Runs           *prometheus.CounterVec
	RunCost        prometheus.Histogram
}

// NewMetrics creates the collectors and registers them with reg. Collectors
// already registered on reg are reused.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		TierAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "tier",
			Name:      "attempts_total",
			Help:      "Generation attempts by tier, provider and escalation outcome",
		}, []string{"tier", "provider", "escalated"}),
		TierCost: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "tier",
			Name:      "cost_dollars_total",
			Help:      "Accumulated generation cost in USD by tier",
		}, []string{"tier"}),
		TierTokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "tier",
			Name:      "tokens_total",
			Help:      "Tokens consumed by tier and direction",
		}, []string{"tier", "direction"}),
		TierQuality: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "tier",
			Name:      "quality_score",
			Help:      "Distribution of CQS per attempt",
			Buckets:   []float64{10, 25, 50, 60, 70, 75, 80, 85, 90, 95, 100},
		}, []string{"tier"}),
		Escalations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "workflow",
			Name:      "escalations_total",
			Help:      "Tier escalations by source and target tier",
		}, []string{"from", "to"}),
		BudgetExceeded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "workflow",
			Name:      "budget_exceeded_total",
			Help:      "Budget overruns by action taken",
		}, []string{"action"}),
		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "workflow",
			Name:      "runs_total",
			Help:      "Completed runs by final tier and status",
		}, []string{"final_tier", "status"}),
		RunCost: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "workflow",
			Name:      "run_cost_dollars",
			Help:      "Total cost per completed run in USD",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
	}

	var err error
	if m.TierAttempts, err = register(reg, m.TierAttempts); err != nil {
		return nil, err
	}
	if m.TierCost, err = register(reg, m.TierCost); err != nil {
		return nil, err
	}
	if m.TierTokens, err = register(reg, m.TierTokens); err != nil {
		return nil, err
	}
	if m.TierQuality, err = register(reg, m.TierQuality); err != nil {
		return nil, err
	}
	if m.Escalations, err = register(reg, m.Escalations); err != nil {
		return nil, err
	}
	if m.BudgetExceeded, err = register(reg, m.BudgetExceeded); err != nil {
		return nil, err
	}
	if m.Runs, err = register(reg, m.Runs); err != nil {
		return nil, err
	}
	if m.RunCost, err = register(reg, m.RunCost); err != nil {
		return nil, err
	}
	return m, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// Emit updates the collectors for e.
func (m *Metrics) Emit(_ context.Context, e Event) error {
	switch {
	case e.TierExecution != nil:
		te := e.TierExecution
		tier := string(te.Tier)
		escalated := "false"
		if te.Escalated {
			escalated = "true"
		}
		m.TierAttempts.WithLabelValues(tier, te.Provider, escalated).Inc()
		m.TierCost.WithLabelValues(tier).Add(te.Cost)
		m.TierTokens.WithLabelValues(tier, "input").Add(float64(te.TokensInput))
		m.TierTokens.WithLabelValues(tier, "output").Add(float64(te.TokensOutput))
		m.TierQuality.WithLabelValues(tier).Observe(te.QualityScore)
	case e.Escalation != nil:
		m.Escalations.WithLabelValues(string(e.Escalation.From), string(e.Escalation.To)).Inc()
	case e.BudgetExceeded != nil:
		m.BudgetExceeded.WithLabelValues(e.BudgetExceeded.Action).Inc()
	case e.Completion != nil:
		status := "failed"
		if e.Completion.Success {
			status = "succeeded"
		}
		m.Runs.WithLabelValues(string(e.Completion.FinalTier), status).Inc()
		m.RunCost.Observe(e.Completion.TotalCost)
	}
	return nil
}

// Close is a no-op; collectors stay registered.
func (m *Metrics) Close() error {
	return nil
}
