package gather

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kenhuangus/ai-briefing/internal/model"
	"github.com/kenhuangus/ai-briefing/internal/ratelimit"
)

const sampleRSS = `<?xml version="1.0"?>
<rss version="2.0"><channel>
<item>
  <title>Model releases new weights</title>
  <link>https://example.com/a</link>
  <guid>https://example.com/a</guid>
  <pubDate>%s</pubDate>
  <description>&lt;p&gt;Body text&lt;/p&gt;</description>
  <author>jane</author>
</item>
</channel></rss>`

func TestRSSGathererFetchesWithinWindow(t *testing.T) {
	now := time.Now().UTC()
	pub := now.Add(-time.Hour)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		_, _ = w.Write([]byte(withPubDate(pub)))
	}))
	defer srv.Close()

	src := model.Source{Identifier: srv.URL, Category: model.CategoryNews, Kind: model.SourceKindRSS}
	g := NewRSSGatherer([]model.Source{src}, ratelimit.New(srv.Client()))

	window := Window{Start: now.Add(-24 * time.Hour), End: now}
	items, status := g.Gather(t.Context(), window)

	require.Len(t, items, 1)
	assert.Equal(t, "Model releases new weights", items[0].Title)
	assert.Equal(t, "Body text", items[0].Content)
	assert.Equal(t, model.StatusSuccess, status.Overall)
}

func TestRSSGathererOutOfWindowYieldsPartial(t *testing.T) {
	now := time.Now().UTC()
	pub := now.Add(-72 * time.Hour)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(withPubDate(pub)))
	}))
	defer srv.Close()

	src := model.Source{Identifier: srv.URL, Category: model.CategoryNews, Kind: model.SourceKindRSS}
	g := NewRSSGatherer([]model.Source{src}, ratelimit.New(srv.Client()))

	window := Window{Start: now.Add(-24 * time.Hour), End: now}
	items, status := g.Gather(t.Context(), window)

	assert.Empty(t, items)
	assert.Equal(t, model.StatusPartial, status.Overall)
}

func TestRSSGathererServerErrorIsFailed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	src := model.Source{Identifier: srv.URL, Category: model.CategoryNews, Kind: model.SourceKindRSS}
	g := NewRSSGatherer([]model.Source{src}, ratelimit.New(srv.Client()))

	_, status := g.Gather(t.Context(), Window{Start: time.Now().Add(-time.Hour), End: time.Now()})
	assert.Equal(t, model.StatusFailed, status.Overall)
}

func withPubDate(t time.Time) string {
	return fmt.Sprintf(sampleRSS, t.Format(time.RFC1123Z))
}
