package llmclient

import (
	"context"

	"github.com/kenhuangus/ai-briefing/internal/perr"
)

// FatalGuard wraps a Client so that a ReasoningUnavailable response
// aborts the whole run instead of letting the calling phase quietly
// degrade to partial: "extended reasoning must be present or the call
// fails loudly" admits no per-phase exception. Once tripped, Cancel is
// invoked with the triggering error so every phase sharing the guarded
// context observes it via context.Cause and stops.
type FatalGuard struct {
	Client
	Cancel context.CancelCauseFunc
}

// NewFatalGuard wraps c, reporting any ReasoningUnavailable error to
// cancel instead of just returning it to the immediate caller.
func NewFatalGuard(c Client, cancel context.CancelCauseFunc) *FatalGuard {
	return &FatalGuard{Client: c, Cancel: cancel}
}

func (g *FatalGuard) CallWithReasoning(ctx context.Context, phase, system, user string, budget Budget) (Response, error) {
	resp, err := g.Client.CallWithReasoning(ctx, phase, system, user, budget)
	if err != nil && perr.Is(err, perr.KindReasoningUnavailable) {
		g.Cancel(err)
	}
	return resp, err
}
