package gather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/kenhuangus/ai-briefing/internal/model"
	"github.com/kenhuangus/ai-briefing/internal/ratelimit"
)

const forumUserAgent = "ai-briefing-forum-gatherer/1.0 (+https://github.com/kenhuangus/ai-briefing)"

// ForumGatherer hits anonymous JSON forum endpoints (no auth required)
// and normalizes a loosely-typed "hits"/"items" array into Items.
type ForumGatherer struct {
	Sources []model.Source
	Limiter *ratelimit.Limiter
}

func NewForumGatherer(sources []model.Source, limiter *ratelimit.Limiter) *ForumGatherer {
	return &ForumGatherer{Sources: sources, Limiter: limiter}
}

type forumEntry struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	CreatedAtTS string `json:"created_at_i"`
	CreatedAt   string `json:"created_at"`
	Author      string `json:"author"`
	Points      int    `json:"points"`
}

type forumResponse struct {
	Hits  []forumEntry `json:"hits"`
	Items []forumEntry `json:"items"`
}

func (g *ForumGatherer) Gather(ctx context.Context, window Window) ([]model.Item, model.CollectionStatus) {
	status := model.CollectionStatus{ByCategory: map[model.Category]model.SourceStatusState{}}
	var items []model.Item

	for _, src := range g.Sources {
		fetched, st := g.fetchOne(ctx, src, window)
		items = append(items, fetched...)
		status.Sources = append(status.Sources, st)
		status.Overall = model.WorstState(status.Overall, st.State)
		status.ByCategory[src.Category] = model.WorstState(status.ByCategory[src.Category], st.State)
	}
	return dedupe(items), status
}

func (g *ForumGatherer) fetchOne(ctx context.Context, src model.Source, window Window) ([]model.Item, model.SourceStatus) {
	st := model.SourceStatus{Source: src.Identifier, Kind: src.Kind}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.Identifier, nil)
	if err != nil {
		st.State = model.StatusFailed
		st.Err = err.Error()
		return nil, st
	}
	req.Header.Set("User-Agent", forumUserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := g.Limiter.Do(ctx, req.URL.Host, ratelimit.HostPolicy{MinInterval: 500 * time.Millisecond}, req)
	if err != nil {
		st.State = model.StatusFailed
		st.Err = err.Error()
		return nil, st
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		st.State = model.StatusFailed
		st.Err = fmt.Sprintf("status %d", resp.StatusCode)
		return nil, st
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		st.State = model.StatusFailed
		st.Err = err.Error()
		return nil, st
	}

	var fr forumResponse
	if err := json.Unmarshal(body, &fr); err != nil {
		st.State = model.StatusFailed
		st.Err = fmt.Sprintf("parse response: %v", err)
		return nil, st
	}
	entries := fr.Hits
	if len(entries) == 0 {
		entries = fr.Items
	}

	var items []model.Item
	for _, e := range entries {
		item, ok := buildItemFromForum(src, e, window)
		if ok {
			items = append(items, item)
		}
	}
	st.ItemsOK = len(items)
	st.State = model.StatusSuccess
	if len(items) == 0 {
		st.State = model.StatusPartial
		st.Notice = "no entries inside the coverage window"
	}
	return items, st
}

func buildItemFromForum(src model.Source, e forumEntry, window Window) (model.Item, bool) {
	var published time.Time
	if e.CreatedAtTS != "" {
		if ts, err := strconv.ParseInt(e.CreatedAtTS, 10, 64); err == nil {
			published = time.Unix(ts, 0).UTC()
		}
	}
	if published.IsZero() && e.CreatedAt != "" {
		if t, err := time.Parse(time.RFC3339, e.CreatedAt); err == nil {
			published = t.UTC()
		}
	}
	if published.IsZero() {
		published = time.Now().UTC()
	}
	if !window.Contains(published) {
		return model.Item{}, false
	}
	norm := model.NormalizeURL(e.URL)
	return model.Item{
		ID:          model.FingerprintID(norm, e.Title),
		Category:    src.Category,
		SourceName:  src.Identifier,
		SourceKind:  src.Kind,
		URL:         e.URL,
		Title:       e.Title,
		Author:      e.Author,
		PublishedAt: published,
		CollectedAt: time.Now().UTC(),
		Metadata:    map[string]string{"points": strconv.Itoa(e.Points)},
	}, true
}
