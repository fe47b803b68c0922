package gather

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

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

func TestLinkExtractorFetchesApprovedArticle(t *testing.T) {
	now := time.Now().UTC()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><head><title>Great Article</title></head>
			<body><article><p>` + sampleArticleBody + `</p></article></body></html>`))
	}))
	defer srv.Close()

	items := []model.Item{{Content: "check this out " + srv.URL}}
	ex := NewLinkExtractor(stubLLM{text: "YES"}, srv.Client())

	out := ex.Extract(t.Context(), items, Window{Start: now.Add(-24 * time.Hour), End: now})
	require.Len(t, out, 1)
	assert.Equal(t, model.CategoryNews, out[0].Category)
	assert.Equal(t, "linkextract", out[0].SourceName)
}

func TestLinkExtractorSkipsWhenLLMDeclines(t *testing.T) {
	items := []model.Item{{Content: "check this out https://example.com/a"}}
	ex := NewLinkExtractor(stubLLM{text: "NO"}, http.DefaultClient)

	out := ex.Extract(t.Context(), items, Window{Start: time.Now().Add(-time.Hour), End: time.Now()})
	assert.Empty(t, out)
}

const sampleArticleBody = `This is a long enough paragraph of article body text that readability should treat it as the main content block of the page, well past any minimum content length heuristics the library applies internally.`
