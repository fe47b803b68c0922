package gather

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"github.com/kenhuangus/ai-briefing/internal/model"
	"github.com/kenhuangus/ai-briefing/internal/obs"
	"github.com/kenhuangus/ai-briefing/internal/ratelimit"
)

// rssFeed is a minimal RSS 2.0 / Atom union, unmarshaled directly by
// encoding/xml. No pack dependency provides a dedicated feed parser
// (the pack's html-to-markdown/readability libs address article
// bodies, not feed XML), so this is a justified standard-library use.
type rssFeed struct {
	Channel struct {
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
	// Atom feeds use <entry> at the top level instead of <channel><item>.
	Entries []atomEntry `xml:"entry"`
}

type rssItem struct {
	Title   string `xml:"title"`
	Link    string `xml:"link"`
	GUID    string `xml:"guid"`
	PubDate string `xml:"pubDate"`
	Desc    string `xml:"description"`
	Author  string `xml:"author"`
}

type atomEntry struct {
	Title   string `xml:"title"`
	Link    struct{ Href string `xml:"href,attr"` } `xml:"link"`
	ID      string `xml:"id"`
	Updated string `xml:"updated"`
	Summary string `xml:"summary"`
	Author  struct{ Name string `xml:"name"` } `xml:"author"`
}

const maxRSSRedirects = 5

// RSSGatherer fetches configured feed URLs and filters entries into the
// coverage window.
type RSSGatherer struct {
	Sources []model.Source
	Limiter *ratelimit.Limiter
}

func NewRSSGatherer(sources []model.Source, limiter *ratelimit.Limiter) *RSSGatherer {
	return &RSSGatherer{Sources: sources, Limiter: limiter}
}

func (g *RSSGatherer) Gather(ctx context.Context, window Window) ([]model.Item, model.CollectionStatus) {
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

func (g *RSSGatherer) fetchOne(ctx context.Context, src model.Source, window Window) ([]model.Item, model.SourceStatus) {
	st := model.SourceStatus{Source: src.Identifier, Kind: src.Kind}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.Identifier, nil)
	if err != nil {
		st.State = model.StatusFailed
		st.Err = err.Error()
		return nil, st
	}
	req.Header.Set("User-Agent", "ai-briefing/1.0 (+https://github.com/kenhuangus/ai-briefing)")

	resp, err := g.Limiter.Do(ctx, req.URL.Host, ratelimit.HostPolicy{MinInterval: 200 * time.Millisecond}, req)
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
		item, ok := buildItemFromRSS(src, it, window)
		if ok {
			items = append(items, item)
		}
	}
	for _, e := range feed.Entries {
		item, ok := buildItemFromAtom(src, e, window)
		if ok {
			items = append(items, item)
		}
	}

	st.ItemsOK = len(items)
	st.State = model.StatusSuccess
	if len(items) == 0 {
		st.State = model.StatusPartial
		st.Notice = "feed returned zero items inside the coverage window"
	}
	obs.LoggerWithTrace(ctx).Debug().Str("source", src.Identifier).Int("items", len(items)).Msg("rss_fetch_ok")
	return items, st
}

func buildItemFromRSS(src model.Source, it rssItem, window Window) (model.Item, bool) {
	published, err := dateparse.ParseAny(it.PubDate)
	if err != nil {
		published = time.Now().UTC()
	}
	published = published.UTC()
	if !window.Contains(published) {
		return model.Item{}, false
	}
	link := strings.TrimSpace(it.Link)
	if link == "" {
		link = strings.TrimSpace(it.GUID)
	}
	norm := model.NormalizeURL(link)
	return model.Item{
		ID:          model.FingerprintID(norm, it.Title),
		Category:    src.Category,
		SourceName:  src.Identifier,
		SourceKind:  src.Kind,
		URL:         link,
		Title:       strings.TrimSpace(it.Title),
		Content:     SanitizeToPlainText(it.Desc),
		Author:      strings.TrimSpace(it.Author),
		PublishedAt: published,
		CollectedAt: time.Now().UTC(),
	}, true
}

func buildItemFromAtom(src model.Source, e atomEntry, window Window) (model.Item, bool) {
	published, err := dateparse.ParseAny(e.Updated)
	if err != nil {
		published = time.Now().UTC()
	}
	published = published.UTC()
	if !window.Contains(published) {
		return model.Item{}, false
	}
	norm := model.NormalizeURL(e.Link.Href)
	return model.Item{
		ID:          model.FingerprintID(norm, e.Title),
		Category:    src.Category,
		SourceName:  src.Identifier,
		SourceKind:  src.Kind,
		URL:         e.Link.Href,
		Title:       strings.TrimSpace(e.Title),
		Content:     SanitizeToPlainText(e.Summary),
		Author:      strings.TrimSpace(e.Author.Name),
		PublishedAt: published,
		CollectedAt: time.Now().UTC(),
	}, true
}
