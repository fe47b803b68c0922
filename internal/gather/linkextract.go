package gather

import (
	"context"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	readability "github.com/go-shiori/go-readability"

	"github.com/kenhuangus/ai-briefing/internal/llmclient"
	"github.com/kenhuangus/ai-briefing/internal/model"
	"github.com/kenhuangus/ai-briefing/internal/obs"
)

var linkPattern = regexp.MustCompile(`https?://[^\s<>\)"]+`)

// LinkExtractor scans social items for outbound links and, for each
// one, asks the LLM client (budget Quick) whether it is worth fetching
// as a standalone article. Fetched articles are emitted into the news
// stream under their original URL, via a readability+html-to-markdown
// fetch shape adapted from Markdown output to plain-text Item content.
type LinkExtractor struct {
	LLM    llmclient.Client
	Client *http.Client
}

func NewLinkExtractor(llm llmclient.Client, client *http.Client) *LinkExtractor {
	if client == nil {
		client = obs.NewHTTPClient(nil)
	}
	return &LinkExtractor{LLM: llm, Client: client}
}

const linkDecisionSystem = `You triage outbound links found in social posts about AI. Given a single URL and its surrounding post text, answer with exactly one word: YES if the link likely points to a standalone news article or blog post worth extracting in full, NO otherwise (e.g. it points to a tweet, a homepage, an image, or a product page).`

// Extract scans items (typically the social category's gathered posts)
// for outbound links and returns additional news Items for links the
// LLM approves and that successfully fetch.
func (e *LinkExtractor) Extract(ctx context.Context, items []model.Item, window Window) []model.Item {
	var out []model.Item
	seen := map[string]bool{}

	for _, it := range items {
		for _, link := range linkPattern.FindAllString(it.Content, -1) {
			link = strings.TrimRight(link, ".,;:!?)")
			norm := model.NormalizeURL(link)
			if seen[norm] {
				continue
			}
			seen[norm] = true

			if !e.shouldFetch(ctx, link, it.Content) {
				continue
			}
			article, ok := e.fetchArticle(ctx, link, window)
			if ok {
				out = append(out, article)
			}
		}
	}
	return out
}

func (e *LinkExtractor) shouldFetch(ctx context.Context, link, context_ string) bool {
	if e.LLM == nil {
		return false
	}
	user := "URL: " + link + "\n\nPost text:\n" + context_
	resp, err := e.LLM.CallWithReasoning(ctx, "gather.news.linkextract", linkDecisionSystem, user, llmclient.BudgetQuick)
	if err != nil {
		obs.LoggerWithTrace(ctx).Warn().Err(err).Str("url", link).Msg("linkextract_decision_failed")
		return false
	}
	return strings.HasPrefix(strings.ToUpper(strings.TrimSpace(resp.Text)), "YES")
}

func (e *LinkExtractor) fetchArticle(ctx context.Context, link string, window Window) (model.Item, bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return model.Item{}, false
	}
	req.Header.Set("User-Agent", "ai-briefing-linkextract/1.0")

	resp, err := e.Client.Do(req)
	if err != nil {
		return model.Item{}, false
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return model.Item{}, false
	}

	finalURL := resp.Request.URL.String()
	base, _ := url.Parse(finalURL)
	art, err := readability.FromReader(resp.Body, base)
	if err != nil || strings.TrimSpace(art.Content) == "" {
		return model.Item{}, false
	}

	md, err := htmltomarkdown.ConvertString(art.Content)
	if err != nil {
		md = art.Content
	}
	plain := SanitizeToPlainText(md)

	published := time.Now().UTC()
	if art.PublishedTime != nil {
		published = art.PublishedTime.UTC()
	}
	if !window.Contains(published) {
		return model.Item{}, false
	}

	norm := model.NormalizeURL(link)
	return model.Item{
		ID:          model.FingerprintID(norm, art.Title),
		Category:    model.CategoryNews,
		SourceName:  "linkextract",
		SourceKind:  model.SourceKindAPI,
		URL:         link,
		Title:       strings.TrimSpace(art.Title),
		Content:     plain,
		Author:      art.Byline,
		PublishedAt: published,
		CollectedAt: time.Now().UTC(),
	}, true
}
