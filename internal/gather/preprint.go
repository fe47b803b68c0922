package gather

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kenhuangus/ai-briefing/internal/model"
	"github.com/kenhuangus/ai-briefing/internal/ratelimit"
)

// PreprintGatherer prefers the feed-of-the-day for the current date and
// falls back to a structured API for historical dates. Only `new`/
// `cross` announcement types are accepted (no replacements). A weekend
// date legitimately returning zero items is a notice, not a failure.
type PreprintGatherer struct {
	Sources []model.Source
	Limiter *ratelimit.Limiter
	Now     func() time.Time
}

func NewPreprintGatherer(sources []model.Source, limiter *ratelimit.Limiter) *PreprintGatherer {
	return &PreprintGatherer{Sources: sources, Limiter: limiter, Now: time.Now}
}

func (g *PreprintGatherer) Gather(ctx context.Context, window Window) ([]model.Item, model.CollectionStatus) {
	status := model.CollectionStatus{ByCategory: map[model.Category]model.SourceStatusState{}}
	var items []model.Item
	now := g.Now().UTC()
	isToday := window.Contains(now) || sameDay(window.End, now)

	for _, src := range g.Sources {
		var fetched []model.Item
		var st model.SourceStatus
		if isToday {
			fetched, st = g.fetchDailyFeed(ctx, src, window)
		} else {
			fetched, st = g.fetchHistoricalAPI(ctx, src, window)
		}
		items = append(items, fetched...)
		status.Sources = append(status.Sources, st)
		status.Overall = model.WorstState(status.Overall, st.State)
		status.ByCategory[src.Category] = model.WorstState(status.ByCategory[src.Category], st.State)
	}
	return dedupe(items), status
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func isWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

func (g *PreprintGatherer) fetchDailyFeed(ctx context.Context, src model.Source, window Window) ([]model.Item, model.SourceStatus) {
	st := model.SourceStatus{Source: src.Identifier, Kind: src.Kind}
	feedURL := fmt.Sprintf("https://export.arxiv.org/rss/%s", url.PathEscape(src.Identifier))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		st.State = model.StatusFailed
		st.Err = err.Error()
		return nil, st
	}
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

	var feed rssFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		st.State = model.StatusFailed
		st.Err = fmt.Sprintf("parse feed: %v", err)
		return nil, st
	}

	var items []model.Item
	for _, it := range feed.Channel.Items {
		if !isNewOrCrossAnnouncement(it.Desc) {
			continue
		}
		item, ok := buildItemFromRSS(src, it, window)
		if ok {
			items = append(items, item)
		}
	}
	return g.finalizeStatus(items, st, window)
}

// arXiv RSS entries carry an announce-type marker in their description
// such as "Announce Type: new" or "Announce Type: cross"; replacements
// are excluded per §4.5.
func isNewOrCrossAnnouncement(desc string) bool {
	d := strings.ToLower(desc)
	if !strings.Contains(d, "announce type:") {
		return true // feed without the marker: accept (older arXiv RSS format)
	}
	return strings.Contains(d, "announce type: new") || strings.Contains(d, "announce type: cross")
}

type arxivAPIResponse struct {
	Entries []atomEntry `xml:"entry"`
}

func (g *PreprintGatherer) fetchHistoricalAPI(ctx context.Context, src model.Source, window Window) ([]model.Item, model.SourceStatus) {
	st := model.SourceStatus{Source: src.Identifier, Kind: src.Kind}
	q := url.Values{}
	q.Set("search_query", "cat:"+src.Identifier)
	q.Set("sortBy", "submittedDate")
	q.Set("sortOrder", "descending")
	q.Set("max_results", "200")
	apiURL := "https://export.arxiv.org/api/query?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		st.State = model.StatusFailed
		st.Err = err.Error()
		return nil, st
	}
	resp, err := g.Limiter.Do(ctx, req.URL.Host, ratelimit.HostPolicy{MinInterval: 3 * time.Second}, req)
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

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		st.State = model.StatusFailed
		st.Err = err.Error()
		return nil, st
	}
	var api arxivAPIResponse
	if err := xml.Unmarshal(body, &api); err != nil {
		st.State = model.StatusFailed
		st.Err = fmt.Sprintf("parse api response: %v", err)
		return nil, st
	}

	var items []model.Item
	for _, e := range api.Entries {
		item, ok := buildItemFromAtom(src, e, window)
		if ok {
			items = append(items, item)
		}
	}
	return g.finalizeStatus(items, st, window)
}

func (g *PreprintGatherer) finalizeStatus(items []model.Item, st model.SourceStatus, window Window) ([]model.Item, model.SourceStatus) {
	st.ItemsOK = len(items)
	if len(items) > 0 {
		st.State = model.StatusSuccess
		return items, st
	}
	st.State = model.StatusSuccess
	if isWeekend(window.End) {
		st.Notice = "zero preprints on a weekend date is expected, not a failure"
	} else {
		st.Notice = "zero preprints returned for this window"
	}
	return items, st
}
