// Package gather implements the four category gatherers (C5): one per
// Category, each normalizing fetched content into deduplicated Items
// with a deterministic id and a per-source/per-platform status.
package gather

import (
	"context"
	"time"

	"github.com/kenhuangus/ai-briefing/internal/model"
)

// Window is the coverage window a gather pass must filter items into.
type Window struct {
	Start time.Time
	End   time.Time
}

func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// Gatherer is the shared operation every category implementation
// exposes (§4.5).
type Gatherer interface {
	Gather(ctx context.Context, window Window) ([]model.Item, model.CollectionStatus)
}

// dedupe keeps first occurrence per item id within one gather pass.
func dedupe(items []model.Item) []model.Item {
	seen := make(map[string]bool, len(items))
	out := make([]model.Item, 0, len(items))
	for _, it := range items {
		if seen[it.ID] {
			continue
		}
		seen[it.ID] = true
		out = append(out, it)
	}
	return out
}
