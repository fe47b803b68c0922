package summarize

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kenhuangus/ai-briefing/internal/llmclient"
	"github.com/kenhuangus/ai-briefing/internal/model"
)

type stubLLM struct {
	text string
	err  error
}

func (s stubLLM) CallWithReasoning(ctx context.Context, phase, system, user string, budget llmclient.Budget) (llmclient.Response, error) {
	if s.err != nil {
		return llmclient.Response{}, s.err
	}
	return llmclient.Response{Text: s.text}, nil
}

type assertErr struct{}

func (assertErr) Error() string { return "boom" }

func reportsWithItem() map[model.Category]model.CategoryReport {
	return map[model.Category]model.CategoryReport{
		model.CategoryNews: {
			Category:        model.CategoryNews,
			CategorySummary: "news happened",
			TopItems:        []model.Item{{ID: "n1", Title: "Big release"}},
		},
	}
}

func TestSummarizeReturnsModelText(t *testing.T) {
	text, ok := Summarize(t.Context(), stubLLM{text: "  Executive summary text.  "}, reportsWithItem(), nil)
	assert.True(t, ok)
	assert.Equal(t, "Executive summary text.", text)
}

func TestSummarizeFallsBackOnFailure(t *testing.T) {
	text, ok := Summarize(t.Context(), stubLLM{err: assertErr{}}, reportsWithItem(), nil)
	assert.False(t, ok)
	assert.Contains(t, text, "news happened")
}

func TestEnrichRewritesValidLinks(t *testing.T) {
	llm := stubLLM{text: "Check out [the release](ITEM:n1) today."}
	enriched, warnings := Enrich(t.Context(), llm, "Check out the release today.", reportsWithItem(), nil, "2026-07-30")
	assert.Empty(t, warnings)
	assert.Contains(t, enriched, "/?date=2026-07-30&category=news#item-n1")
}

func TestEnrichDropsUnknownIDLinks(t *testing.T) {
	llm := stubLLM{text: "Check out [a ghost](ITEM:ghost) today."}
	enriched, warnings := Enrich(t.Context(), llm, "original", reportsWithItem(), nil, "2026-07-30")
	require.Len(t, warnings, 1)
	assert.Equal(t, "Check out a ghost today.", enriched)
}

func TestEnrichFailureKeepsOriginal(t *testing.T) {
	enriched, warnings := Enrich(t.Context(), stubLLM{err: assertErr{}}, "original summary", reportsWithItem(), nil, "2026-07-30")
	assert.Equal(t, "original summary", enriched)
	require.Len(t, warnings, 1)
}

func TestRenderHTMLEscapesAndLinks(t *testing.T) {
	html := RenderHTML("Para one with <script>bad</script>.\n\n[link text](/?date=2026-07-30&category=news#item-n1)")
	assert.Contains(t, html, "&lt;script&gt;")
	assert.Contains(t, html, `<a href="/?date=2026-07-30&amp;category=news#item-n1">link text</a>`)
}
