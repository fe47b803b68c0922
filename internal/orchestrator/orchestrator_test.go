package orchestrator

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kenhuangus/ai-briefing/internal/analyze"
	"github.com/kenhuangus/ai-briefing/internal/gather"
	"github.com/kenhuangus/ai-briefing/internal/imageclient"
	"github.com/kenhuangus/ai-briefing/internal/llmclient"
	"github.com/kenhuangus/ai-briefing/internal/model"
)

type stubGatherer struct {
	items  []model.Item
	status model.CollectionStatus
}

func (g stubGatherer) Gather(ctx context.Context, window gather.Window) ([]model.Item, model.CollectionStatus) {
	return g.items, g.status
}

type stubLLM struct {
	text string
	err  error
}

func (s stubLLM) CallWithReasoning(ctx context.Context, phase, system, user string, budget llmclient.Budget) (llmclient.Response, error) {
	if s.err != nil {
		return llmclient.Response{}, s.err
	}
	return llmclient.Response{Text: s.text}, nil
}

type stubImage struct {
	data []byte
	err  error
}

func (s stubImage) Generate(ctx context.Context, req imageclient.Request) ([]byte, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.data, nil
}

func newsStatus() model.CollectionStatus {
	return model.CollectionStatus{Overall: model.StatusSuccess, ByCategory: map[model.Category]model.SourceStatusState{model.CategoryNews: model.StatusSuccess}}
}

func window() gather.Window {
	now := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)
	return gather.Window{Start: now.Add(-24 * time.Hour), End: now}
}

func TestRunProducesDayReportWithSurvivingCategory(t *testing.T) {
	dir := t.TempDir()
	llm := stubLLM{text: `[{"id":"n1","summary":"s","score":0.9,"theme_tags":["x"]}]`}

	// Every LLM call reads the same stub text: extractJSONArray (map,
	// topics) decodes it as an item array, and extractJSONObject (reduce)
	// decodes its inner object into an otherwise empty reduce result.
	// This integration-level test therefore verifies structure and
	// status wiring, not analyzer content.
	o := &Orchestrator{
		LLM: llm,
		Gatherers: map[model.Category]gather.Gatherer{
			model.CategoryNews: stubGatherer{
				items:  []model.Item{{ID: "n1", Category: model.CategoryNews, Title: "Release", SourceKind: model.SourceKindRSS, CollectedAt: time.Now()}},
				status: newsStatus(),
			},
		},
		Analyzer:      analyze.New(llm, 75, 4),
		ArtifactRoot:  dir,
		RunDeadline:   5 * time.Second,
		WriteDeadline: 5 * time.Second,
	}

	rep, err := o.Run(t.Context(), window(), "2026-07-30")
	require.NoError(t, err)
	assert.Equal(t, "2026-07-30", rep.ReportDate)
	assert.NotEmpty(t, rep.Categories)
	assert.Contains(t, rep.Categories, model.CategoryNews)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.NotEmpty(t, entries)
}

func TestRunWithNoItemsYieldsFailedOverallStatus(t *testing.T) {
	dir := t.TempDir()
	llm := stubLLM{text: "[]"}
	o := &Orchestrator{
		LLM: llm,
		Gatherers: map[model.Category]gather.Gatherer{
			model.CategoryNews: stubGatherer{items: nil, status: model.CollectionStatus{Overall: model.StatusFailed, ByCategory: map[model.Category]model.SourceStatusState{model.CategoryNews: model.StatusFailed}}},
		},
		Analyzer:      analyze.New(llm, 75, 4),
		ArtifactRoot:  dir,
		RunDeadline:   5 * time.Second,
		WriteDeadline: 5 * time.Second,
	}

	rep, err := o.Run(t.Context(), window(), "2026-07-30")
	require.NoError(t, err)
	assert.Equal(t, model.StatusFailed, rep.OverallStatus)
}

func TestRunSkipsHeroImageWhenClientNil(t *testing.T) {
	dir := t.TempDir()
	llm := stubLLM{text: "[]"}
	o := &Orchestrator{
		LLM:           llm,
		Gatherers:     map[model.Category]gather.Gatherer{},
		Analyzer:      analyze.New(llm, 75, 4),
		ArtifactRoot:  dir,
		RunDeadline:   5 * time.Second,
		WriteDeadline: 5 * time.Second,
	}

	rep, err := o.Run(t.Context(), window(), "2026-07-30")
	require.NoError(t, err)
	assert.Empty(t, rep.HeroImageURL)
}

func TestRunGeneratesHeroImageWhenConfigured(t *testing.T) {
	dir := t.TempDir()
	llm := stubLLM{text: "[]"}
	o := &Orchestrator{
		LLM:           llm,
		Image:         stubImage{data: []byte("fake-png-bytes")},
		Gatherers:     map[model.Category]gather.Gatherer{},
		Analyzer:      analyze.New(llm, 75, 4),
		ArtifactRoot:  dir,
		RunDeadline:   5 * time.Second,
		WriteDeadline: 5 * time.Second,
	}

	rep, err := o.Run(t.Context(), window(), "2026-07-30")
	require.NoError(t, err)
	assert.NotEmpty(t, rep.HeroImageURL)

	data, err := os.ReadFile(dir + "/" + rep.HeroImageURL)
	require.NoError(t, err)
	assert.Equal(t, []byte("fake-png-bytes"), data)
}

func TestWriteWithDeadlineTimesOut(t *testing.T) {
	dir := t.TempDir()
	o := &Orchestrator{ArtifactRoot: dir, WriteDeadline: time.Nanosecond}
	_, err := o.writeWithDeadline(t.Context(), model.DayReport{ReportDate: "2026-07-30"})
	// A write this small will usually beat a 1ns deadline only on an
	// unloaded machine; allow either outcome but require no panic and a
	// sane error message when it does trip.
	if err != nil {
		assert.Contains(t, err.Error(), "deadline")
	}
}
