// Package analyze implements the per-category map-reduce analyzer
// (C7): a batched Quick-budget map phase scoring individual items,
// followed by a single Deep-budget reduce phase producing themes, a
// category summary, and a final ranking.
package analyze

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/kenhuangus/ai-briefing/internal/llmclient"
	"github.com/kenhuangus/ai-briefing/internal/model"
	"github.com/kenhuangus/ai-briefing/internal/obs"
)

const (
	defaultBatchSize   = 75
	defaultConcurrency = 4
)

// sourceKindRank orders tie-break preference for the reduce phase's
// final ranking (spec §4.7): preprint > rss > forum > microblog.
var sourceKindRank = map[model.SourceKind]int{
	model.SourceKindPreprint:  0,
	model.SourceKindRSS:       1,
	model.SourceKindForum:     2,
	model.SourceKindMicroblog: 3,
	model.SourceKindAPI:       1,
}

// Analyzer runs the map-reduce pipeline for one category at a time. It
// holds no state across calls: each Analyze invocation is a pure
// function of (items, grounding context), per spec §4.7.
type Analyzer struct {
	LLM         llmclient.Client
	BatchSize   int
	Concurrency int
}

func New(llm llmclient.Client, batchSize, concurrency int) *Analyzer {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	return &Analyzer{LLM: llm, BatchSize: batchSize, Concurrency: concurrency}
}

type itemResult struct {
	ID        string   `json:"id"`
	Summary   string   `json:"summary"`
	Score     float64  `json:"score"`
	ThemeTags []string `json:"themes"`
}

// Analyze runs the map phase (batched, bounded-concurrency) then the
// reduce phase over the results, returning a populated CategoryReport.
func (a *Analyzer) Analyze(ctx context.Context, category model.Category, items []model.Item, grounding string) model.CategoryReport {
	report := model.CategoryReport{Category: category, ItemCountTotal: len(items)}
	if len(items) == 0 {
		report.Status = model.StatusSuccess
		report.Notice = "no items gathered for this category"
		return report
	}

	batches := batchItems(items, a.BatchSize)
	results := make([][]itemResult, len(batches))
	partial := false

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.Concurrency)
	for i, batch := range batches {
		i, batch := i, batch
		g.Go(func() error {
			res, ok := a.mapBatch(gctx, category, batch, grounding)
			if !ok {
				partial = true
				return nil
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait() // mapBatch never returns an error; failures are recorded via partial

	scored := mergeResults(items, results)
	report.Items = scored

	themes, summary, ranked, reduceOK := a.reduce(ctx, category, scored, grounding)
	if !reduceOK {
		partial = true
		ranked = applyRanking(scored, nil)
		summary = fallbackSummary(category, scored)
	}
	report.Themes = themes
	report.CategorySummary = summary
	report.TopItems = topN(ranked, 10)

	report.Status = model.StatusSuccess
	if partial {
		report.Status = model.StatusPartial
		report.Notice = "one or more analyzer calls failed; results reflect a partial pass"
	}
	return report
}

func batchItems(items []model.Item, size int) [][]model.Item {
	var batches [][]model.Item
	for i := 0; i < len(items); i += size {
		end := i + size
		if end > len(items) {
			end = len(items)
		}
		batches = append(batches, items[i:end])
	}
	return batches
}

const mapSystem = `You score and summarize a batch of AI-related content items for inclusion in a daily briefing. For each item, respond with one JSON object in a fenced code block: a JSON array of {"id":"...","summary":"one sentence","score":0.0-1.0,"themes":["tag1","tag2"]}. Use the item's given id verbatim. Do not include items not in the input.`

// mapBatch issues one Quick-budget call for a batch, retrying once on
// failure before giving up on this batch entirely (spec §4.7: "drops
// the batch and records a partial status on the category").
func (a *Analyzer) mapBatch(ctx context.Context, category model.Category, batch []model.Item, grounding string) ([]itemResult, bool) {
	user := buildMapUserPrompt(batch, grounding)
	for attempt := 0; attempt < 2; attempt++ {
		if ctx.Err() != nil {
			return nil, false
		}
		resp, err := a.LLM.CallWithReasoning(ctx, "analyze."+string(category)+".map", mapSystem, user, llmclient.BudgetQuick)
		if err != nil {
			obs.LoggerWithTrace(ctx).Warn().Err(err).Int("attempt", attempt).Msg("analyze_map_batch_failed")
			continue
		}
		results, err := extractJSONArray[itemResult](resp.Text)
		if err != nil {
			obs.LoggerWithTrace(ctx).Warn().Err(err).Int("attempt", attempt).Msg("analyze_map_batch_parse_failed")
			continue
		}
		return results, true
	}
	return nil, false
}

func buildMapUserPrompt(batch []model.Item, grounding string) string {
	var b strings.Builder
	if grounding != "" {
		b.WriteString(grounding)
		b.WriteString("\n\n")
	}
	b.WriteString("Items:\n")
	for _, it := range batch {
		fmt.Fprintf(&b, "- id=%s title=%q content=%q\n", it.ID, it.Title, truncate(it.Content, 600))
	}
	return b.String()
}

func mergeResults(items []model.Item, batches [][]itemResult) []model.Item {
	byID := make(map[string]itemResult)
	for _, batch := range batches {
		for _, r := range batch {
			byID[r.ID] = r
		}
	}
	out := make([]model.Item, len(items))
	for i, it := range items {
		out[i] = it
		if r, ok := byID[it.ID]; ok {
			out[i].PerItemSummary = r.Summary
			out[i].Score = r.Score
			out[i].ThemeTags = r.ThemeTags
		}
	}
	return out
}

type reduceOutput struct {
	Themes          []model.Theme `json:"themes"`
	CategorySummary string        `json:"category_summary"`
	Ranking         []string      `json:"ranking"`
}

const reduceSystem = `You synthesize a daily briefing category from pre-scored items. Respond with exactly one JSON object in a fenced code block: {"themes":[{"name":"...","item_count":N,"description":"..."}] (3 to 7 entries),"category_summary":"one paragraph","ranking":["item-id-1","item-id-2",...]} where ranking lists every given item id ordered best-first.`

func (a *Analyzer) reduce(ctx context.Context, category model.Category, items []model.Item, grounding string) ([]model.Theme, string, []model.Item, bool) {
	var b strings.Builder
	if grounding != "" {
		b.WriteString(grounding)
		b.WriteString("\n\n")
	}
	fmt.Fprintf(&b, "Category: %s\nScored items:\n", category)
	for _, it := range items {
		fmt.Fprintf(&b, "- id=%s score=%.2f summary=%q themes=%v\n", it.ID, it.Score, it.PerItemSummary, it.ThemeTags)
	}

	resp, err := a.LLM.CallWithReasoning(ctx, "analyze."+string(category)+".reduce", reduceSystem, b.String(), llmclient.BudgetDeep)
	if err != nil {
		obs.LoggerWithTrace(ctx).Warn().Err(err).Msg("analyze_reduce_failed")
		return nil, "", nil, false
	}

	out, err := extractJSONObject[reduceOutput](resp.Text)
	if err != nil {
		obs.LoggerWithTrace(ctx).Warn().Err(err).Msg("analyze_reduce_parse_failed")
		return nil, "", nil, false
	}

	ranked := applyRanking(items, out.Ranking)
	return out.Themes, out.CategorySummary, ranked, true
}

// applyRanking sorts items strictly nonincreasing by Score; the
// model's declared ranking only breaks ties between equal scores
// (items it omits, or when the ranking doesn't round-trip every id,
// fall back to the deterministic tie-break order from spec §4.7:
// source kind, then engagement, then earliest collected_at).
func applyRanking(items []model.Item, ranking []string) []model.Item {
	rankIndex := make(map[string]int, len(ranking))
	for i, id := range ranking {
		if _, ok := rankIndex[id]; !ok {
			rankIndex[id] = i
		}
	}

	fallback := deterministicRank(items)
	fallbackIndex := make(map[string]int, len(fallback))
	for i, it := range fallback {
		fallbackIndex[it.ID] = i
	}

	out := make([]model.Item, len(items))
	copy(out, items)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		ri, iok := rankIndex[out[i].ID]
		rj, jok := rankIndex[out[j].ID]
		if iok && jok {
			return ri < rj
		}
		return fallbackIndex[out[i].ID] < fallbackIndex[out[j].ID]
	})
	return out
}

func deterministicRank(items []model.Item) []model.Item {
	out := make([]model.Item, len(items))
	copy(out, items)
	sort.SliceStable(out, func(i, j int) bool {
		ri, rj := sourceKindRank[out[i].SourceKind], sourceKindRank[out[j].SourceKind]
		if ri != rj {
			return ri < rj
		}
		ei, ej := engagement(out[i]), engagement(out[j])
		if ei != ej {
			return ei > ej
		}
		return out[i].CollectedAt.Before(out[j].CollectedAt)
	})
	return out
}

func engagement(it model.Item) int {
	if v, ok := it.Metadata["points"]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return 0
}

func topN(items []model.Item, n int) []model.Item {
	if len(items) <= n {
		return items
	}
	return items[:n]
}

func fallbackSummary(category model.Category, items []model.Item) string {
	return fmt.Sprintf("Reduce phase unavailable; %d items gathered for %s without a synthesized summary.", len(items), category)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// extractJSONArray decodes the span from the first '[' to the last ']'
// of text (typically inside a fenced code block) into []T. When that
// span is not valid JSON it returns an error; no smaller substring is
// tried. Used by the map phase's tolerant parsing (spec §4.7).
func extractJSONArray[T any](text string) ([]T, error) {
	start := strings.IndexByte(text, '[')
	end := strings.LastIndexByte(text, ']')
	if start < 0 || end < 0 || end < start {
		return nil, fmt.Errorf("no JSON array found in response")
	}
	var out []T
	if err := json.Unmarshal([]byte(text[start:end+1]), &out); err != nil {
		return nil, fmt.Errorf("decode JSON array: %w", err)
	}
	return out, nil
}

// extractJSONObject decodes the span from the first '{' to the last '}'
// of text into T. When that span is not valid JSON it returns an error;
// no smaller substring is tried. Used by the reduce phase.
func extractJSONObject[T any](text string) (T, error) {
	var zero T
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end < 0 || end < start {
		return zero, fmt.Errorf("no JSON object found in response")
	}
	var out T
	if err := json.Unmarshal([]byte(text[start:end+1]), &out); err != nil {
		return zero, fmt.Errorf("decode JSON object: %w", err)
	}
	return out, nil
}
