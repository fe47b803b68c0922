package ecosystem

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/kenhuangus/ai-briefing/internal/llmclient"
	"github.com/kenhuangus/ai-briefing/internal/model"
	"github.com/kenhuangus/ai-briefing/internal/obs"
)

const enrichSystem = `You track AI model and vendor releases. Given a day's gathered items and the list of releases already tracked, identify any release mentioned in the items that is NOT already tracked. Respond with a JSON array (no prose) of objects: {"vendor":"...","model_name":"...","general_availability_date":"YYYY-MM-DD or null","api_availability_date":"YYYY-MM-DD or null","confidence":0.0-1.0}. An empty array means nothing new was found. Only report a release if you are confident it is genuinely new; set confidence low (<0.8) if unsure.`

type detectedRelease struct {
	Vendor              string  `json:"vendor"`
	ModelName           string  `json:"model_name"`
	GeneralAvailability string  `json:"general_availability_date"`
	APIAvailability     string  `json:"api_availability_date"`
	Confidence          float64 `json:"confidence"`
}

// Enrich runs phase 4.6: a Standard-budget call over the day's items
// asking whether any referenced release is missing from the timeline.
// Only confidence >= 0.8 detections are appended; the call is
// best-effort and never blocks the run (spec §4.10).
func Enrich(ctx context.Context, llm llmclient.Client, tl *Timeline, items []model.Item) {
	if llm == nil || len(items) == 0 {
		return
	}
	var b strings.Builder
	for _, it := range items {
		fmt.Fprintf(&b, "- [%s] %s: %s\n", it.Category, it.Title, truncate(it.Content, 300))
	}

	resp, err := llm.CallWithReasoning(ctx, "ecosystem.enrich", enrichSystem, b.String(), llmclient.BudgetStandard)
	if err != nil {
		obs.LoggerWithTrace(ctx).Warn().Err(err).Msg("ecosystem_enrichment_failed")
		return
	}

	detected, err := parseDetections(resp.Text)
	if err != nil {
		obs.LoggerWithTrace(ctx).Warn().Err(err).Msg("ecosystem_enrichment_parse_failed")
		return
	}

	appended := 0
	for _, d := range detected {
		rel, ok := toRelease(d)
		if !ok {
			continue
		}
		if tl.AppendAutoDetected(rel) {
			appended++
		}
	}
	obs.LoggerWithTrace(ctx).Info().Int("detected", len(detected)).Int("appended", appended).Msg("ecosystem_enrichment_complete")
}

func toRelease(d detectedRelease) (model.EcosystemRelease, bool) {
	if d.Vendor == "" || d.ModelName == "" {
		return model.EcosystemRelease{}, false
	}
	rel := model.EcosystemRelease{Vendor: d.Vendor, ModelName: d.ModelName, Confidence: d.Confidence}
	if t, ok := parseDate(d.GeneralAvailability); ok {
		rel.GeneralAvailability = &t
	}
	if t, ok := parseDate(d.APIAvailability); ok {
		rel.APIAvailability = &t
	}
	return rel, true
}

func parseDate(s string) (time.Time, bool) {
	if s == "" || strings.EqualFold(s, "null") {
		return time.Time{}, false
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// parseDetections decodes the span from the first '[' to the last ']'
// of the response, tolerating surrounding prose or a fenced code block.
// When that span is not valid JSON it returns an error; no smaller
// substring is tried.
func parseDetections(text string) ([]detectedRelease, error) {
	start := strings.IndexByte(text, '[')
	end := strings.LastIndexByte(text, ']')
	if start < 0 || end < 0 || end < start {
		return nil, fmt.Errorf("no JSON array found in response")
	}
	var out []detectedRelease
	if err := json.Unmarshal([]byte(text[start:end+1]), &out); err != nil {
		return nil, fmt.Errorf("parse detections: %w", err)
	}
	return out, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
