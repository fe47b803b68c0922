// Package orchestrator drives the seven-phase daily briefing pipeline
// (C10): gather, analyze, synthesize topics, summarize, enrich, and
// assemble+write the terminal DayReport, applying the per-phase
// failure policy from spec §4.10.
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kenhuangus/ai-briefing/internal/analyze"
	"github.com/kenhuangus/ai-briefing/internal/costs"
	"github.com/kenhuangus/ai-briefing/internal/ecosystem"
	"github.com/kenhuangus/ai-briefing/internal/gather"
	"github.com/kenhuangus/ai-briefing/internal/imageclient"
	"github.com/kenhuangus/ai-briefing/internal/llmclient"
	"github.com/kenhuangus/ai-briefing/internal/model"
	"github.com/kenhuangus/ai-briefing/internal/obs"
	"github.com/kenhuangus/ai-briefing/internal/perr"
	"github.com/kenhuangus/ai-briefing/internal/report"
	"github.com/kenhuangus/ai-briefing/internal/summarize"
	"github.com/kenhuangus/ai-briefing/internal/topics"
)

// Orchestrator holds every already-constructed dependency (phase 0 is
// the caller's job: load+validate config, build clients, load the
// ecosystem timeline — see cmd/briefing). Run drives phases 1-5.
type Orchestrator struct {
	LLM       llmclient.Client
	Image     imageclient.Client // nil when unconfigured; phase 4.7 is skipped
	Gatherers map[model.Category]gather.Gatherer
	LinkExtractor *gather.LinkExtractor
	Analyzer  *analyze.Analyzer
	Timeline  *ecosystem.Timeline
	Registry  ecosystem.Registry
	Accumulator *costs.Accumulator
	S3        *report.S3Mirror

	ArtifactRoot  string
	RunDeadline   time.Duration
	WriteDeadline time.Duration
}

// Run executes phases 1 through 5 for one report date and coverage
// window, returning the written DayReport. A run-level deadline wraps
// phases 1-4.7; phase 5 gets its own independent deadline so a
// near-timeout run still flushes a partial report (spec §4.10).
func (o *Orchestrator) Run(ctx context.Context, window gather.Window, reportDate string) (model.DayReport, error) {
	rep := model.DayReport{
		ReportDate:    reportDate,
		CoverageStart: window.Start,
		CoverageEnd:   window.End,
		Categories:    map[model.Category]model.CategoryReport{},
	}

	runCtx := ctx
	var cancel context.CancelFunc
	if o.RunDeadline > 0 {
		runCtx, cancel = context.WithTimeout(ctx, o.RunDeadline)
		defer cancel()
	}

	// A ReasoningUnavailable response must abort the whole run rather
	// than degrade one phase to partial. llm is the guarded client every
	// phase below calls through; once it trips, fatalCancel's cause
	// shows up on runCtx and the checks below stop the run before any
	// artifact is written.
	runCtx, fatalCancel := context.WithCancelCause(runCtx)
	defer fatalCancel(nil)
	llm := llmclient.NewFatalGuard(o.LLM, fatalCancel)
	if o.Analyzer != nil {
		o.Analyzer.LLM = llm
	}
	if o.LinkExtractor != nil {
		o.LinkExtractor.LLM = llm
	}

	items, collectionStatus := o.gatherAll(runCtx, window)
	rep.CollectionStatus = collectionStatus
	if cause := context.Cause(runCtx); perr.Is(cause, perr.KindReasoningUnavailable) {
		return model.DayReport{}, fmt.Errorf("aborting run: %w", cause)
	}

	categoryReports := o.analyzeAll(runCtx, items)
	rep.Categories = categoryReports
	if cause := context.Cause(runCtx); perr.Is(cause, perr.KindReasoningUnavailable) {
		return model.DayReport{}, fmt.Errorf("aborting run: %w", cause)
	}

	topicList, topicsOK := topics.Synthesize(runCtx, llm, categoryReports)
	rep.TopTopics = topicList
	if cause := context.Cause(runCtx); perr.Is(cause, perr.KindReasoningUnavailable) {
		return model.DayReport{}, fmt.Errorf("aborting run: %w", cause)
	}

	execSummary, execOK := summarize.Summarize(runCtx, llm, categoryReports, topicList)
	enriched, enrichWarnings := summarize.Enrich(runCtx, llm, execSummary, categoryReports, topicList, reportDate)
	if cause := context.Cause(runCtx); perr.Is(cause, perr.KindReasoningUnavailable) {
		return model.DayReport{}, fmt.Errorf("aborting run: %w", cause)
	}
	rep.ExecutiveSummary = enriched
	rep.ExecutiveSummaryHTML = summarize.RenderHTML(enriched)
	rep.Warnings = append(rep.Warnings, enrichWarnings...)

	o.enrichEcosystem(runCtx, llm, items)
	if cause := context.Cause(runCtx); perr.Is(cause, perr.KindReasoningUnavailable) {
		return model.DayReport{}, fmt.Errorf("aborting run: %w", cause)
	}

	o.generateHeroImage(runCtx, &rep)

	rep.OverallStatus = overallStatus(collectionStatus, categoryReports, topicsOK, execOK)
	rep.CostSummary = o.flushCosts()

	path, err := o.writeWithDeadline(ctx, rep)
	if err != nil {
		return rep, err
	}

	if o.S3 != nil {
		o.S3.Mirror(ctx, o.ArtifactRoot)
	}

	obs.LoggerWithTrace(ctx).Info().Str("path", path).Str("overall_status", string(rep.OverallStatus)).Msg("run_complete")
	return rep, nil
}

// gatherAll fans out every configured category gatherer concurrently,
// then appends the link extractor's news items (spec §4.5: social
// posts' outbound links are scanned and approved ones added to news).
func (o *Orchestrator) gatherAll(ctx context.Context, window gather.Window) ([]model.Item, model.CollectionStatus) {
	type result struct {
		cat    model.Category
		items  []model.Item
		status model.CollectionStatus
	}
	results := make([]result, 0, len(o.Gatherers))
	resultsCh := make(chan result, len(o.Gatherers))

	g, gctx := errgroup.WithContext(ctx)
	for cat, gatherer := range o.Gatherers {
		cat, gatherer := cat, gatherer
		g.Go(func() error {
			items, status := gatherer.Gather(gctx, window)
			resultsCh <- result{cat: cat, items: items, status: status}
			return nil
		})
	}
	_ = g.Wait()
	close(resultsCh)
	for r := range resultsCh {
		results = append(results, r)
	}

	merged := model.CollectionStatus{ByCategory: map[model.Category]model.SourceStatusState{}}
	var allItems []model.Item
	var socialItems []model.Item
	for _, r := range results {
		allItems = append(allItems, r.items...)
		if r.cat == model.CategorySocial {
			socialItems = append(socialItems, r.items...)
		}
		merged.Sources = append(merged.Sources, r.status.Sources...)
		merged.Platforms = append(merged.Platforms, r.status.Platforms...)
		merged.Overall = model.WorstState(merged.Overall, r.status.Overall)
		for c, s := range r.status.ByCategory {
			merged.ByCategory[c] = model.WorstState(merged.ByCategory[c], s)
		}
	}

	if o.LinkExtractor != nil && len(socialItems) > 0 {
		extracted := o.LinkExtractor.Extract(ctx, socialItems, window)
		allItems = append(allItems, extracted...)
	}

	return allItems, merged
}

func (o *Orchestrator) analyzeAll(ctx context.Context, items []model.Item) map[model.Category]model.CategoryReport {
	byCategory := map[model.Category][]model.Item{}
	for _, it := range items {
		byCategory[it.Category] = append(byCategory[it.Category], it)
	}

	grounding := ""
	if o.Timeline != nil {
		grounding = o.Timeline.GroundingText()
	}

	out := map[model.Category]model.CategoryReport{}
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	categories := allCategories(byCategory)
	for _, cat := range categories {
		cat := cat
		catItems := byCategory[cat]
		g.Go(func() error {
			r := o.Analyzer.Analyze(gctx, cat, catItems, grounding)
			mu.Lock()
			out[cat] = r
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func allCategories(byCategory map[model.Category][]model.Item) []model.Category {
	cats := []model.Category{model.CategoryNews, model.CategoryResearch, model.CategorySocial, model.CategoryCommunity}
	out := make([]model.Category, 0, len(cats))
	for _, c := range cats {
		if _, ok := byCategory[c]; ok {
			out = append(out, c)
		}
	}
	return out
}

// enrichEcosystem runs phase 4.6: best-effort, never blocks the run.
func (o *Orchestrator) enrichEcosystem(ctx context.Context, llm llmclient.Client, items []model.Item) {
	if o.Timeline == nil {
		return
	}
	if o.Registry != nil {
		o.Timeline.MergeExternal(ctx, o.Registry)
	}
	ecosystem.Enrich(ctx, llm, o.Timeline, items)
	if err := o.Timeline.Save(); err != nil {
		obs.LoggerWithTrace(ctx).Warn().Err(err).Msg("ecosystem_timeline_save_failed")
	}
}

// generateHeroImage runs phase 4.7: best-effort; a nil Image client
// (unconfigured) is skipped with a single warning log, not an error. The raw bytes are
// attached to rep for report.Write to persist as the report_date
// directory's hero.webp sibling (§6); this phase never touches disk.
func (o *Orchestrator) generateHeroImage(ctx context.Context, rep *model.DayReport) {
	if o.Image == nil {
		obs.LoggerWithTrace(ctx).Warn().Msg("hero_image_skipped_no_image_client")
		return
	}
	prompt := heroImagePrompt(rep)
	data, err := o.Image.Generate(ctx, imageclient.Request{Prompt: prompt, AspectRatio: "16:9", Size: "1K"})
	if err != nil {
		obs.LoggerWithTrace(ctx).Warn().Err(err).Msg("hero_image_generation_failed")
		rep.Warnings = append(rep.Warnings, "hero image generation failed; no image attached")
		return
	}

	rep.HeroImageBytes = data
	rep.HeroImageURL = rep.ReportDate + "/hero.webp"
	rep.HeroImagePrompt = prompt
}

func heroImagePrompt(rep *model.DayReport) string {
	return fmt.Sprintf("An editorial illustration capturing the day's AI news: %s", truncate(rep.ExecutiveSummary, 300))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// writeWithDeadline bounds the final artifact write with its own short
// deadline, independent of the run deadline, so a run that consumed
// its whole budget in earlier phases still gets a chance to flush
// whatever it produced (spec §4.10 phase 5).
func (o *Orchestrator) writeWithDeadline(ctx context.Context, rep model.DayReport) (string, error) {
	if o.WriteDeadline <= 0 {
		return report.Write(o.ArtifactRoot, rep)
	}

	type result struct {
		path string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		path, err := report.Write(o.ArtifactRoot, rep)
		done <- result{path, err}
	}()

	select {
	case r := <-done:
		return r.path, r.err
	case <-time.After(o.WriteDeadline):
		return "", fmt.Errorf("report write exceeded deadline %s", o.WriteDeadline)
	}
}

func (o *Orchestrator) flushCosts() model.CostSummary {
	if o.Accumulator == nil {
		return model.CostSummary{}
	}
	return o.Accumulator.Flush()
}

// overallStatus projects the run's worst phase outcome onto a single
// terminal status (spec §4.10): gathering and analyzer statuses are
// weighted normally; zero surviving (non-empty) categories forces
// failed even though an output is still produced; topic synthesis or
// executive summary failures degrade to partial, never fatal.
func overallStatus(collection model.CollectionStatus, categories map[model.Category]model.CategoryReport, topicsOK, execOK bool) model.SourceStatusState {
	status := collection.Overall

	survivingCategories := 0
	for _, r := range categories {
		status = model.WorstState(status, r.Status)
		if r.ItemCountTotal > 0 {
			survivingCategories++
		}
	}
	if len(categories) > 0 && survivingCategories == 0 {
		return model.StatusFailed
	}
	if !topicsOK || !execOK {
		status = model.WorstState(status, model.StatusPartial)
	}
	return status
}
