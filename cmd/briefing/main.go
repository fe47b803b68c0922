// Command briefing runs one end-to-end daily briefing pass: load
// config, gather items across all four categories, analyze, synthesize
// topics, write the executive summary, and persist the terminal
// DayReport artifact.
package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/kenhuangus/ai-briefing/internal/analyze"
	"github.com/kenhuangus/ai-briefing/internal/config"
	"github.com/kenhuangus/ai-briefing/internal/costs"
	"github.com/kenhuangus/ai-briefing/internal/ecosystem"
	"github.com/kenhuangus/ai-briefing/internal/gather"
	"github.com/kenhuangus/ai-briefing/internal/imageclient"
	"github.com/kenhuangus/ai-briefing/internal/llmclient"
	"github.com/kenhuangus/ai-briefing/internal/model"
	"github.com/kenhuangus/ai-briefing/internal/obs"
	"github.com/kenhuangus/ai-briefing/internal/orchestrator"
	"github.com/kenhuangus/ai-briefing/internal/ratelimit"
	"github.com/kenhuangus/ai-briefing/internal/report"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("briefing")
	}
}

func run() error {
	baseCtx := context.Background()

	providersPath := getenv("PROVIDERS_CONFIG", "config/providers.yaml")
	legacyEnvPath := getenv("LEGACY_ENV_FILE", ".env")
	if _, err := config.MigrateIfNeeded(providersPath, legacyEnvPath, time.Now()); err != nil {
		return fmt.Errorf("migrate legacy env config: %w", err)
	}

	providers, err := config.Load(providersPath)
	if err != nil {
		return fmt.Errorf("load provider config: %w", err)
	}
	proc := config.LoadProcessConfig()

	obs.InitLogger(proc.LogFile, proc.LogLevel)
	runID := uuid.New().String()
	log.Logger = log.Logger.With().Str("run_id", runID).Logger()

	shutdown, err := obs.InitOTel(baseCtx, obs.TelemetryConfig{OTLPEndpoint: proc.OTLPEndpoint, ServiceName: "ai-briefing"})
	if err != nil {
		log.Warn().Err(err).Msg("otel_init_failed_continuing_without_export")
		shutdown = func(context.Context) error { return nil }
	}
	defer func() { _ = shutdown(context.Background()) }()

	tr := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 7 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		ForceAttemptHTTP2:     true,
		TLSHandshakeTimeout:   7 * time.Second,
		MaxIdleConns:          proc.HTTPPoolSize * 2,
		MaxIdleConnsPerHost:   proc.HTTPPoolSize,
		MaxConnsPerHost:       proc.HTTPPoolSize * 4,
		IdleConnTimeout:       90 * time.Second,
		ResponseHeaderTimeout: 15 * time.Second,
	}
	httpClient := obs.NewHTTPClient(&http.Client{Transport: tr})

	acc := costs.New()
	llm, err := llmclient.New(providers.LLM, httpClient, acc)
	if err != nil {
		return fmt.Errorf("init llm client: %w", err)
	}

	var image imageclient.Client
	if providers.Image != nil && providers.Image.Configured() {
		switch providers.Image.Mode {
		case config.ImageModeNative:
			image, err = imageclient.NewNative(baseCtx, *providers.Image, httpClient)
		case config.ImageModeProxy:
			image, err = imageclient.NewProxy(*providers.Image, httpClient)
		}
		if err != nil {
			log.Warn().Err(err).Msg("image_client_init_failed_disabling_hero_image")
			image = nil
		}
	}

	sources, err := gather.LoadSources(getenv("SOURCES_DIR", "config/sources"))
	if err != nil {
		return fmt.Errorf("load sources: %w", err)
	}

	limiter := ratelimit.New(httpClient)
	gatherers := buildGatherers(sources, limiter)

	timeline, err := ecosystem.Load(getenv("ECOSYSTEM_TIMELINE", "config/ecosystem/timeline.yaml"))
	if err != nil {
		return fmt.Errorf("load ecosystem timeline: %w", err)
	}
	var registry ecosystem.Registry
	if endpoint := getenv("ECOSYSTEM_REGISTRY_URL", ""); endpoint != "" {
		registry = ecosystem.NewHTTPRegistry(endpoint, httpClient)
	}

	s3, err := report.S3MirrorFromEnv(baseCtx)
	if err != nil {
		log.Warn().Err(err).Msg("s3_mirror_init_failed_continuing_without_mirror")
		s3 = nil
	}

	o := &orchestrator.Orchestrator{
		LLM:           llm,
		Image:         image,
		Gatherers:     gatherers,
		LinkExtractor: gather.NewLinkExtractor(llm, httpClient),
		Analyzer:      analyze.New(llm, proc.AnalyzerBatchSize, proc.AnalyzerConcurrency),
		Timeline:      timeline,
		Registry:      registry,
		Accumulator:   acc,
		S3:            s3,
		ArtifactRoot:  proc.ArtifactRoot,
		RunDeadline:   proc.RunDeadline,
		WriteDeadline: proc.WriteDeadline,
	}

	window, err := coverageWindow(proc.RunDate)
	if err != nil {
		return fmt.Errorf("compute coverage window: %w", err)
	}

	rep, err := o.Run(baseCtx, window, proc.RunDate)
	costSummary := acc.Flush()
	log.Info().Float64("total_usd", costSummary.TotalUSD).Interface("phases", costSummary.Phases).Msg("cost_summary")
	if err != nil {
		return fmt.Errorf("run briefing pipeline: %w", err)
	}

	log.Info().
		Str("report_date", rep.ReportDate).
		Str("overall_status", string(rep.OverallStatus)).
		Int("total_items", rep.TotalItemCount()).
		Msg("briefing_run_complete")
	return nil
}

// buildGatherers wires one Gatherer for each of the four categories,
// each given only the loaded sources of its own category; a category
// with no sources still gets a gatherer. The social gatherer tracks
// status per platform from each source's platform parameter (spec §4.5).
func buildGatherers(sources []model.Source, limiter *ratelimit.Limiter) map[model.Category]gather.Gatherer {
	byCategory := make(map[model.Category][]model.Source)
	for _, src := range sources {
		byCategory[src.Category] = append(byCategory[src.Category], src)
	}
	gatherers := make(map[model.Category]gather.Gatherer)
	gatherers[model.CategoryNews] = gather.NewRSSGatherer(byCategory[model.CategoryNews], limiter)
	gatherers[model.CategoryResearch] = gather.NewPreprintGatherer(byCategory[model.CategoryResearch], limiter)
	gatherers[model.CategoryCommunity] = gather.NewForumGatherer(byCategory[model.CategoryCommunity], limiter)
	gatherers[model.CategorySocial] = gather.NewSocialGatherer(byCategory[model.CategorySocial], limiter)
	return gatherers
}

// coverageWindow returns the 24-hour window ending at runDate's own
// midnight, ET-local: the closed interval [runDate 00:00 - 24h,
// runDate 00:00] (spec §4.5's default daily coverage window).
func coverageWindow(runDate string) (gather.Window, error) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		loc = time.UTC
	}
	end, err := time.ParseInLocation("2006-01-02", runDate, loc)
	if err != nil {
		return gather.Window{}, fmt.Errorf("parse run date %q: %w", runDate, err)
	}
	return gather.Window{Start: end.Add(-24 * time.Hour), End: end}, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
