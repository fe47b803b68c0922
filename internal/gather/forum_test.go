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

func TestForumGathererParsesHitsShape(t *testing.T) {
	now := time.Now().UTC()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"hits":[{"title":"New inference trick","url":"https://forum.example/t/1","created_at_i":"%d","author":"alice","points":42}]}`, now.Add(-time.Hour).Unix())
	}))
	defer srv.Close()

	src := model.Source{Identifier: srv.URL, Category: model.CategoryCommunity, Kind: model.SourceKindForum}
	g := NewForumGatherer([]model.Source{src}, ratelimit.New(srv.Client()))

	items, status := g.Gather(t.Context(), Window{Start: now.Add(-24 * time.Hour), End: now})

	require.Len(t, items, 1)
	assert.Equal(t, "New inference trick", items[0].Title)
	assert.Equal(t, "42", items[0].Metadata["points"])
	assert.Equal(t, model.StatusSuccess, status.Overall)
}

func TestForumGathererFallsBackToItemsShape(t *testing.T) {
	now := time.Now().UTC()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"items":[{"title":"Second shape","url":"https://forum.example/t/2","created_at":"%s"}]}`, now.Add(-time.Hour).Format(time.RFC3339))
	}))
	defer srv.Close()

	src := model.Source{Identifier: srv.URL, Category: model.CategoryCommunity, Kind: model.SourceKindForum}
	g := NewForumGatherer([]model.Source{src}, ratelimit.New(srv.Client()))

	items, _ := g.Gather(t.Context(), Window{Start: now.Add(-24 * time.Hour), End: now})
	require.Len(t, items, 1)
	assert.Equal(t, "Second shape", items[0].Title)
}
