// Package summarize implements the executive summary and link
// enrichment passes (C9): two sequential Deep-budget calls, with the
// enrichment pass constrained to only introduce anchor links whose
// item id is already present in the day's reports.
package summarize

import (
	"context"
	"fmt"
	"html"
	"regexp"
	"strings"

	"github.com/kenhuangus/ai-briefing/internal/llmclient"
	"github.com/kenhuangus/ai-briefing/internal/model"
	"github.com/kenhuangus/ai-briefing/internal/obs"
)

const summarySystem = `You write the executive summary for a daily AI briefing. Given category summaries and cross-category topics, write 2-4 short paragraphs in plain prose (no headings, no markdown links) covering the day's most important developments. Be concrete; name specific releases, papers, or posts where useful.`

// Summarize issues the first Deep-budget call. On failure it returns a
// deterministic fallback assembled from the category summaries (spec
// §4.10 phase 4) and false.
func Summarize(ctx context.Context, llm llmclient.Client, reports map[model.Category]model.CategoryReport, topics []model.Topic) (string, bool) {
	user := buildSummaryPrompt(reports, topics)
	resp, err := llm.CallWithReasoning(ctx, "summarize.executive", summarySystem, user, llmclient.BudgetDeep)
	if err != nil {
		obs.LoggerWithTrace(ctx).Warn().Err(err).Msg("executive_summary_failed")
		return fallbackSummary(reports), false
	}
	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return fallbackSummary(reports), false
	}
	return text, true
}

func buildSummaryPrompt(reports map[model.Category]model.CategoryReport, topics []model.Topic) string {
	var b strings.Builder
	for cat, r := range reports {
		fmt.Fprintf(&b, "Category: %s\nSummary: %s\n\n", cat, r.CategorySummary)
	}
	if len(topics) > 0 {
		b.WriteString("Cross-category topics:\n")
		for _, t := range topics {
			fmt.Fprintf(&b, "- %s: %s\n", t.Title, t.Description)
		}
	}
	return b.String()
}

func fallbackSummary(reports map[model.Category]model.CategoryReport) string {
	var b strings.Builder
	b.WriteString("Today's briefing summary could not be synthesized; category highlights follow.\n")
	for cat, r := range reports {
		if r.CategorySummary == "" {
			continue
		}
		fmt.Fprintf(&b, "%s: %s\n", cat, r.CategorySummary)
	}
	return b.String()
}

const enrichSystem = `You enrich an executive summary with internal navigation links. Given the summary, all category themes, and all topic descriptions, rewrite the summary inserting markdown links of the form [relevant phrase](ITEM:<id>) around phrases that reference a specific item, using only the item ids given in the input. Do not invent ids. Keep all other prose unchanged.`

var itemLinkPattern = regexp.MustCompile(`\[([^\]]+)\]\(ITEM:([a-zA-Z0-9_-]+)\)`)

// Enrich issues the second Deep-budget call, producing a version of
// summary with `[text](ITEM:<id>)` placeholders, then rewrites every
// placeholder whose id is in validIDs into the real anchor-link form
// `/?date=<reportDate>&category=<c>#item-<id>`; placeholders whose id
// doesn't validate are degraded back to plain text (spec §4.9). A
// call failure leaves the unenriched summary and reports a warning.
func Enrich(ctx context.Context, llm llmclient.Client, summary string, reports map[model.Category]model.CategoryReport, topics []model.Topic, reportDate string) (string, []string) {
	index := buildItemIndex(reports)
	resp, err := llm.CallWithReasoning(ctx, "summarize.enrich", enrichSystem, buildEnrichPrompt(summary, reports, topics), llmclient.BudgetDeep)
	if err != nil {
		obs.LoggerWithTrace(ctx).Warn().Err(err).Msg("link_enrichment_failed")
		return summary, []string{"link enrichment failed; executive summary was not enriched with anchor links"}
	}

	enriched := strings.TrimSpace(resp.Text)
	if enriched == "" {
		return summary, []string{"link enrichment returned empty output; executive summary was not enriched"}
	}

	var warnings []string
	rendered := itemLinkPattern.ReplaceAllStringFunc(enriched, func(match string) string {
		groups := itemLinkPattern.FindStringSubmatch(match)
		text, id := groups[1], groups[2]
		cat, ok := index[id]
		if !ok {
			warnings = append(warnings, fmt.Sprintf("enrichment referenced unknown item id %q; link dropped", id))
			return text
		}
		return fmt.Sprintf("[%s](/?date=%s&category=%s#item-%s)", text, reportDate, cat, id)
	})
	return rendered, warnings
}

func buildEnrichPrompt(summary string, reports map[model.Category]model.CategoryReport, topics []model.Topic) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Summary:\n%s\n\nKnown item ids:\n", summary)
	for cat, r := range reports {
		for _, it := range r.TopItems {
			fmt.Fprintf(&b, "- id=%s category=%s title=%q\n", it.ID, cat, it.Title)
		}
	}
	if len(topics) > 0 {
		b.WriteString("\nTopics:\n")
		for _, t := range topics {
			fmt.Fprintf(&b, "- %s: %s\n", t.Title, t.Description)
		}
	}
	return b.String()
}

func buildItemIndex(reports map[model.Category]model.CategoryReport) map[string]model.Category {
	index := make(map[string]model.Category)
	for cat, r := range reports {
		for _, it := range r.TopItems {
			index[it.ID] = cat
		}
		for _, it := range r.Items {
			index[it.ID] = cat
		}
	}
	return index
}

var mdLinkPattern = regexp.MustCompile(`\[([^\]]+)\]\(([^)]+)\)`)

// RenderHTML converts the (already link-validated) markdown-ish
// summary text into sanitized HTML: paragraphs separated by blank
// lines become <p> elements, and surviving markdown links become
// anchors. All other text is HTML-escaped, so nothing the model wrote
// can inject markup outside of the validated link syntax.
func RenderHTML(text string) string {
	paragraphs := strings.Split(strings.TrimSpace(text), "\n\n")
	var b strings.Builder
	for _, p := range paragraphs {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		b.WriteString("<p>")
		b.WriteString(renderInlineLinks(p))
		b.WriteString("</p>\n")
	}
	return strings.TrimSpace(b.String())
}

func renderInlineLinks(p string) string {
	var out strings.Builder
	last := 0
	for _, loc := range mdLinkPattern.FindAllStringSubmatchIndex(p, -1) {
		out.WriteString(html.EscapeString(p[last:loc[0]]))
		text := p[loc[2]:loc[3]]
		href := p[loc[4]:loc[5]]
		fmt.Fprintf(&out, `<a href="%s">%s</a>`, html.EscapeString(href), html.EscapeString(text))
		last = loc[1]
	}
	out.WriteString(html.EscapeString(p[last:]))
	return out.String()
}
