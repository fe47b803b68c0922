// Package topics implements cross-category topic synthesis (C8): a
// single Ultra-budget call over the four CategoryReports' top items,
// producing validated, diversity-ordered Topics.
package topics

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/kenhuangus/ai-briefing/internal/llmclient"
	"github.com/kenhuangus/ai-briefing/internal/model"
	"github.com/kenhuangus/ai-briefing/internal/obs"
)

const synthesisSystem = `You find cross-cutting topics across a day's AI news, research, community, and social items. Given item summaries grouped by category, respond with exactly one JSON array in a fenced code block of 3 to 6 objects: {"title":"...","description":"one paragraph","item_ids":["id1","id2",...]}. Every item_id must come from the given input. Favor topics that span multiple categories over single-category clusters.`

type topicCandidate struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	ItemIDs     []string `json:"item_ids"`
}

// Synthesize issues the Ultra-budget call and returns validated,
// diversity-ordered topics. On call or parse failure it returns an
// empty slice and false, signaling the caller to degrade overall
// status to partial (spec §4.10 phase 3).
func Synthesize(ctx context.Context, llm llmclient.Client, reports map[model.Category]model.CategoryReport) ([]model.Topic, bool) {
	index := buildItemIndex(reports)
	if len(index) == 0 {
		return nil, true
	}

	user := buildPrompt(reports)
	resp, err := llm.CallWithReasoning(ctx, "topics.synthesize", synthesisSystem, user, llmclient.BudgetUltra)
	if err != nil {
		obs.LoggerWithTrace(ctx).Warn().Err(err).Msg("topics_synthesis_failed")
		return nil, false
	}

	candidates, err := extractJSONArray(resp.Text)
	if err != nil {
		obs.LoggerWithTrace(ctx).Warn().Err(err).Msg("topics_synthesis_parse_failed")
		return nil, false
	}

	topics := validateAndBuild(candidates, index)
	sortByDiversity(topics)
	return topics, true
}

func buildItemIndex(reports map[model.Category]model.CategoryReport) map[string]model.Category {
	index := make(map[string]model.Category)
	for cat, r := range reports {
		for _, it := range r.TopItems {
			index[it.ID] = cat
		}
	}
	return index
}

func buildPrompt(reports map[model.Category]model.CategoryReport) string {
	var b strings.Builder
	for cat, r := range reports {
		fmt.Fprintf(&b, "Category: %s\n", cat)
		for _, it := range r.TopItems {
			fmt.Fprintf(&b, "- id=%s title=%q summary=%q\n", it.ID, it.Title, it.PerItemSummary)
		}
	}
	return b.String()
}

// validateAndBuild drops unknown item ids and discards any topic whose
// references all turn out to be unknown (spec §4.8).
func validateAndBuild(candidates []topicCandidate, index map[string]model.Category) []model.Topic {
	var out []model.Topic
	for _, c := range candidates {
		mix := map[model.Category]int{}
		var refs []string
		for _, id := range c.ItemIDs {
			cat, ok := index[id]
			if !ok {
				continue
			}
			refs = append(refs, id)
			mix[cat]++
		}
		if len(refs) == 0 {
			continue
		}
		out = append(out, model.Topic{
			Title:             c.Title,
			Description:       c.Description,
			CategoryMix:       mix,
			ReferencedItemIDs: refs,
		})
	}
	return out
}

// sortByDiversity orders topics by Shannon entropy over their
// category_mix (higher diversity first), then by reference count.
func sortByDiversity(topics []model.Topic) {
	sort.SliceStable(topics, func(i, j int) bool {
		ei, ej := shannonEntropy(topics[i].CategoryMix), shannonEntropy(topics[j].CategoryMix)
		if ei != ej {
			return ei > ej
		}
		return len(topics[i].ReferencedItemIDs) > len(topics[j].ReferencedItemIDs)
	})
}

func shannonEntropy(mix map[model.Category]int) float64 {
	total := 0
	for _, n := range mix {
		total += n
	}
	if total == 0 {
		return 0
	}
	var h float64
	for _, n := range mix {
		if n == 0 {
			continue
		}
		p := float64(n) / float64(total)
		h -= p * math.Log2(p)
	}
	return h
}

func extractJSONArray(text string) ([]topicCandidate, error) {
	start := strings.IndexByte(text, '[')
	end := strings.LastIndexByte(text, ']')
	if start < 0 || end < 0 || end < start {
		return nil, fmt.Errorf("no JSON array found in response")
	}
	var out []topicCandidate
	if err := json.Unmarshal([]byte(text[start:end+1]), &out); err != nil {
		return nil, fmt.Errorf("decode topic candidates: %w", err)
	}
	return out, nil
}
