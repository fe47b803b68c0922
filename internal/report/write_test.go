package report

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kenhuangus/ai-briefing/internal/model"
)

func TestWriteProducesPerCategoryAndSummaryFiles(t *testing.T) {
	dir := t.TempDir()
	rep := model.DayReport{
		ReportDate:       "2026-07-30",
		ExecutiveSummary: "hello",
		Categories: map[model.Category]model.CategoryReport{
			model.CategoryNews:     {Category: model.CategoryNews, ItemCountTotal: 3},
			model.CategoryResearch: {Category: model.CategoryResearch, ItemCountTotal: 1},
		},
	}

	path, err := Write(dir, rep)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "2026-07-30"), path)

	data, err := os.ReadFile(filepath.Join(path, "summary.json"))
	require.NoError(t, err)
	var summary summaryView
	require.NoError(t, json.Unmarshal(data, &summary))
	assert.Equal(t, "hello", summary.ExecutiveSummary)
	assert.Equal(t, 4, summary.TotalItems)
	assert.Nil(t, summary.HeroImageURL)

	newsData, err := os.ReadFile(filepath.Join(path, "news.json"))
	require.NoError(t, err)
	var news model.CategoryReport
	require.NoError(t, json.Unmarshal(newsData, &news))
	assert.Equal(t, 3, news.ItemCountTotal)

	_, err = os.ReadFile(filepath.Join(path, "research.json"))
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(path, "hero.webp"))
	assert.True(t, os.IsNotExist(err))
}

func TestWriteWritesHeroImageWhenPresent(t *testing.T) {
	dir := t.TempDir()
	rep := model.DayReport{ReportDate: "2026-07-30", HeroImageBytes: []byte("fake-webp-bytes")}

	path, err := Write(dir, rep)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(path, "hero.webp"))
	require.NoError(t, err)
	assert.Equal(t, "fake-webp-bytes", string(data))
}

func TestWriteLeavesNoTempDirBehind(t *testing.T) {
	dir := t.TempDir()
	_, err := Write(dir, model.DayReport{ReportDate: "2026-07-30"})
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name()
	}
	assert.ElementsMatch(t, []string{"2026-07-30", "index.json"}, names)
}

func TestWriteUpdatesIndexManifestAcrossRuns(t *testing.T) {
	dir := t.TempDir()
	_, err := Write(dir, model.DayReport{ReportDate: "2026-07-29"})
	require.NoError(t, err)
	_, err = Write(dir, model.DayReport{ReportDate: "2026-07-30"})
	require.NoError(t, err)
	_, err = Write(dir, model.DayReport{ReportDate: "2026-07-30"})
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "index.json"))
	require.NoError(t, err)
	var manifest indexManifest
	require.NoError(t, json.Unmarshal(data, &manifest))
	assert.Equal(t, []string{"2026-07-30", "2026-07-29"}, manifest.ReportDates)
}

func TestS3MirrorFromEnvNilWhenBucketUnset(t *testing.T) {
	t.Setenv("ARTIFACT_S3_BUCKET", "")
	m, err := S3MirrorFromEnv(t.Context())
	require.NoError(t, err)
	assert.Nil(t, m)
}

func TestS3MirrorNilMirrorIsNoop(t *testing.T) {
	var m *S3Mirror
	m.Mirror(t.Context(), t.TempDir())
}
