// Package llmclient wraps the Anthropic Messages API behind a single
// reasoning-aware operation (C3): call_with_reasoning(system, user,
// budget) -> Response. Both "direct" (native key auth) and "proxy"
// (bearer-token, user base URL) modes share this one call shape.
package llmclient

import (
	"context"
	"fmt"
)

// Budget is a named reasoning-token allowance. Using a closed set of
// names (rather than a raw integer) keeps call sites self-documenting
// and keeps the reasoning-present invariant enforceable per budget.
type Budget string

const (
	BudgetQuick    Budget = "quick"
	BudgetStandard Budget = "standard"
	BudgetDeep     Budget = "deep"
	BudgetUltra    Budget = "ultra"
)

// tokens returns the reasoning-token budget for b.
func (b Budget) tokens() int64 {
	switch b {
	case BudgetQuick:
		return 4096
	case BudgetStandard:
		return 8192
	case BudgetDeep:
		return 16000
	case BudgetUltra:
		return 32000
	default:
		return 4096
	}
}

// Usage records input/output/reasoning token counts for one call, fed
// into the phase-keyed cost accumulator (internal/costs).
type Usage struct {
	InputTokens     int64
	OutputTokens    int64
	ReasoningTokens int64
}

// Response is the result of a single call_with_reasoning invocation.
type Response struct {
	Text            string
	ReasoningBlocks []string
	Usage           Usage
}

// Client is the reasoning LLM operation the rest of the pipeline calls
// against. Phase must be a short stable name (e.g. "analyze.news.map")
// so the cost accumulator can attribute spend correctly.
type Client interface {
	CallWithReasoning(ctx context.Context, phase, system, user string, budget Budget) (Response, error)
}

// ReasoningUnavailableHint returns the mode-specific remediation string
// attached to a ReasoningUnavailable error (spec §4.3).
func ReasoningUnavailableHint(mode string) string {
	switch mode {
	case "proxy":
		return "the proxy endpoint stripped reasoning content; verify it passes thinking blocks through unmodified or switch to a passthrough path"
	default:
		return fmt.Sprintf("the model returned no reasoning blocks for a budget>0 request; verify the configured model supports extended thinking (mode=%s)", mode)
	}
}
