package gather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/kenhuangus/ai-briefing/internal/model"
	"github.com/kenhuangus/ai-briefing/internal/ratelimit"
)

// Credentials for the social gatherer's authenticated microblog API.
// When Token is empty the gatherer marks only the "microblog" platform
// `skipped` rather than `failed` (§4.5); the federated platforms use
// public, unauthenticated endpoints and are unaffected.
const socialTokenEnv = "SOCIAL_MICROBLOG_TOKEN"

const platformMicroblog = "microblog"

type socialPost struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	URL       string    `json:"url"`
	Author    string    `json:"author"`
	CreatedAt time.Time `json:"created_at"`
}

// SocialGatherer tracks status per {microblog, federated-microblog,
// federated-longform} platform in addition to per-source status.
type SocialGatherer struct {
	Sources []model.Source
	Limiter *ratelimit.Limiter
	Token   string
}

func NewSocialGatherer(sources []model.Source, limiter *ratelimit.Limiter) *SocialGatherer {
	return &SocialGatherer{Sources: sources, Limiter: limiter, Token: os.Getenv(socialTokenEnv)}
}

func (g *SocialGatherer) Gather(ctx context.Context, window Window) ([]model.Item, model.CollectionStatus) {
	status := model.CollectionStatus{ByCategory: map[model.Category]model.SourceStatusState{}}
	platformState := map[string]model.SourceStatusState{}
	var items []model.Item

	for _, src := range g.Sources {
		platform := src.Params["platform"]
		if platform == "" {
			platform = platformMicroblog
		}

		var fetched []model.Item
		var st model.SourceStatus
		if platform == platformMicroblog && g.Token == "" {
			st = model.SourceStatus{Source: src.Identifier, Kind: src.Kind, State: model.StatusSkipped, Notice: "no credentials configured for the social microblog API"}
		} else {
			fetched, st = g.fetchOne(ctx, src, window, platform)
		}

		items = append(items, fetched...)
		status.Sources = append(status.Sources, st)
		status.Overall = model.WorstState(status.Overall, st.State)
		status.ByCategory[src.Category] = model.WorstState(status.ByCategory[src.Category], st.State)
		platformState[platform] = model.WorstState(platformState[platform], st.State)
	}

	for platform, state := range platformState {
		status.Platforms = append(status.Platforms, model.PlatformStatus{Platform: platform, State: state})
	}
	return dedupe(items), status
}

func (g *SocialGatherer) fetchOne(ctx context.Context, src model.Source, window Window, platform string) ([]model.Item, model.SourceStatus) {
	st := model.SourceStatus{Source: src.Identifier, Kind: src.Kind}

	apiURL := src.Params["endpoint"]
	if apiURL == "" {
		host := "api.example-microblog.test"
		if platform != platformMicroblog {
			host = "api.example-fediverse.test"
		}
		apiURL = fmt.Sprintf("https://%s/v1/users/%s/posts", host, src.Identifier)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		st.State = model.StatusFailed
		st.Err = err.Error()
		return nil, st
	}
	if platform == platformMicroblog {
		req.Header.Set("Authorization", "Bearer "+g.Token)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := g.Limiter.Do(ctx, req.URL.Host, ratelimit.HostPolicy{MinInterval: time.Second}, req)
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

	var posts []socialPost
	if err := json.Unmarshal(body, &posts); err != nil {
		st.State = model.StatusFailed
		st.Err = fmt.Sprintf("parse response: %v", err)
		return nil, st
	}

	var items []model.Item
	for _, p := range posts {
		published := p.CreatedAt.UTC()
		if !window.Contains(published) {
			continue
		}
		norm := model.NormalizeURL(p.URL)
		items = append(items, model.Item{
			ID:          model.FingerprintID(norm, p.Text),
			Category:    src.Category,
			SourceName:  src.Identifier,
			SourceKind:  src.Kind,
			URL:         p.URL,
			Title:       p.Text,
			Content:     SanitizeToPlainText(p.Text),
			Author:      p.Author,
			PublishedAt: published,
			CollectedAt: time.Now().UTC(),
		})
	}
	st.ItemsOK = len(items)
	st.State = model.StatusSuccess
	if len(items) == 0 {
		st.State = model.StatusPartial
		st.Notice = "no posts inside the coverage window"
	}
	return items, st
}
