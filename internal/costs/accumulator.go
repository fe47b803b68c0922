// Package costs implements the per-call cost accumulator (§4.3): every
// LLM call appends its usage to a shared, mutex-guarded map keyed by
// phase name, generalized from a per-model totals map to a per-phase
// one to match this pipeline's accounting unit.
package costs

import (
	"sort"
	"sync"

	"github.com/kenhuangus/ai-briefing/internal/model"
)

// Rates holds illustrative USD rates; operators can override them via
// NewWithRates. Values are per-million-tokens.
type Rates struct {
	InputPerMillion     float64
	OutputPerMillion    float64
	ReasoningPerMillion float64
}

var defaultRates = Rates{InputPerMillion: 3.0, OutputPerMillion: 15.0, ReasoningPerMillion: 15.0}

type phaseTotals struct {
	input, output, reasoning int64
}

// Accumulator collects token usage per phase name for the lifetime of
// one orchestrator run.
type Accumulator struct {
	mu     sync.Mutex
	totals map[string]*phaseTotals
	rates  Rates
}

func New() *Accumulator {
	return &Accumulator{totals: make(map[string]*phaseTotals), rates: defaultRates}
}

func NewWithRates(r Rates) *Accumulator {
	return &Accumulator{totals: make(map[string]*phaseTotals), rates: r}
}

// Record appends one call's usage under phase.
func (a *Accumulator) Record(phase string, input, output, reasoning int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	t, ok := a.totals[phase]
	if !ok {
		t = &phaseTotals{}
		a.totals[phase] = t
	}
	t.input += input
	t.output += output
	t.reasoning += reasoning
}

// Flush renders the accumulated totals into a model.CostSummary, sorted
// by phase name for deterministic artifact output.
func (a *Accumulator) Flush() model.CostSummary {
	a.mu.Lock()
	defer a.mu.Unlock()

	phases := make([]string, 0, len(a.totals))
	for p := range a.totals {
		phases = append(phases, p)
	}
	sort.Strings(phases)

	summary := model.CostSummary{}
	var total float64
	for _, p := range phases {
		t := a.totals[p]
		usd := float64(t.input)/1e6*a.rates.InputPerMillion +
			float64(t.output)/1e6*a.rates.OutputPerMillion +
			float64(t.reasoning)/1e6*a.rates.ReasoningPerMillion
		total += usd
		summary.Phases = append(summary.Phases, model.CostEntry{
			Phase:           p,
			InputTokens:     t.input,
			OutputTokens:    t.output,
			ReasoningTokens: t.reasoning,
			EstimatedUSD:    usd,
		})
	}
	summary.TotalUSD = total
	return summary
}
