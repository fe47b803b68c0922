// Package report assembles and persists the terminal DayReport artifact
// (C10 phase 5) and optionally mirrors it to S3-compatible storage.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/kenhuangus/ai-briefing/internal/model"
	"github.com/kenhuangus/ai-briefing/internal/perr"
)

// summaryView is the web/data/<report_date>/summary.json shape (§6):
// the DayReport's top-level fields, with per-category detail living in
// its own <category>.json sibling instead of being duplicated here.
type summaryView struct {
	ReportDate           string                  `json:"report_date"`
	CoverageStart        time.Time               `json:"coverage_start"`
	CoverageEnd          time.Time               `json:"coverage_end"`
	TotalItems           int                     `json:"total_items"`
	ExecutiveSummary     string                  `json:"executive_summary"`
	ExecutiveSummaryHTML string                  `json:"executive_summary_html"`
	TopTopics            []model.Topic           `json:"top_topics"`
	CollectionStatus     model.CollectionStatus  `json:"collection_status"`
	HeroImageURL         *string                 `json:"hero_image_url"`
	HeroImagePrompt      *string                 `json:"hero_image_prompt"`
	CostSummary          model.CostSummary       `json:"cost_summary"`
	OverallStatus        model.SourceStatusState `json:"overall_status"`
	Warnings             []string                `json:"warnings,omitempty"`
}

// indexManifest is the web/data/index.json manifest upstream of every
// per-date directory (§6): every report_date this program has ever
// written, most recent first.
type indexManifest struct {
	ReportDates []string `json:"report_dates"`
}

// Write persists one run's artifacts under <dir>/<report_date>/:
// summary.json, one <category>.json per category, and hero.webp when a
// hero image was generated, then updates the top-level index.json
// manifest. The whole report_date directory is assembled in a `.tmp`
// sibling and renamed into place in one step, so a reader only ever
// sees either every declared artifact or none of them (§6, §8).
func Write(dir string, rep model.DayReport) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", perr.Wrap(perr.KindWriteFailed, "create artifact root", err)
	}

	final := filepath.Join(dir, rep.ReportDate)
	tmp := final + ".tmp"
	if err := os.RemoveAll(tmp); err != nil {
		return "", perr.Wrap(perr.KindWriteFailed, "clear stale tmp dir", err)
	}
	if err := os.MkdirAll(tmp, 0o755); err != nil {
		return "", perr.Wrap(perr.KindWriteFailed, "create tmp report dir", err)
	}
	defer os.RemoveAll(tmp) // no-op once renamed away; cleans up on any early error

	if err := writeSummary(tmp, rep); err != nil {
		return "", err
	}
	if err := writeCategories(tmp, rep.Categories); err != nil {
		return "", err
	}
	if len(rep.HeroImageBytes) > 0 {
		if err := atomicWriteFile(filepath.Join(tmp, "hero.webp"), rep.HeroImageBytes, 0o644); err != nil {
			return "", perr.Wrap(perr.KindWriteFailed, "write hero image", err)
		}
	}

	if err := os.RemoveAll(final); err != nil {
		return "", perr.Wrap(perr.KindWriteFailed, "clear previous report dir", err)
	}
	if err := os.Rename(tmp, final); err != nil {
		return "", perr.Wrap(perr.KindWriteFailed, "publish report dir", err)
	}

	if err := updateIndex(dir, rep.ReportDate); err != nil {
		return "", err
	}
	return final, nil
}

func writeSummary(tmpDir string, rep model.DayReport) error {
	view := summaryView{
		ReportDate:           rep.ReportDate,
		CoverageStart:        rep.CoverageStart,
		CoverageEnd:          rep.CoverageEnd,
		TotalItems:           rep.TotalItemCount(),
		ExecutiveSummary:     rep.ExecutiveSummary,
		ExecutiveSummaryHTML: rep.ExecutiveSummaryHTML,
		TopTopics:            rep.TopTopics,
		CollectionStatus:     rep.CollectionStatus,
		CostSummary:          rep.CostSummary,
		OverallStatus:        rep.OverallStatus,
		Warnings:             rep.Warnings,
	}
	if rep.HeroImageURL != "" {
		view.HeroImageURL = &rep.HeroImageURL
	}
	if rep.HeroImagePrompt != "" {
		view.HeroImagePrompt = &rep.HeroImagePrompt
	}

	data, err := json.MarshalIndent(view, "", "  ")
	if err != nil {
		return perr.Wrap(perr.KindWriteFailed, "marshal summary", err)
	}
	if err := atomicWriteFile(filepath.Join(tmpDir, "summary.json"), data, 0o644); err != nil {
		return perr.Wrap(perr.KindWriteFailed, "write summary", err)
	}
	return nil
}

func writeCategories(tmpDir string, categories map[model.Category]model.CategoryReport) error {
	for _, cat := range sortedCategories(categories) {
		data, err := json.MarshalIndent(categories[cat], "", "  ")
		if err != nil {
			return perr.Wrap(perr.KindWriteFailed, fmt.Sprintf("marshal category %s", cat), err)
		}
		path := filepath.Join(tmpDir, string(cat)+".json")
		if err := atomicWriteFile(path, data, 0o644); err != nil {
			return perr.Wrap(perr.KindWriteFailed, fmt.Sprintf("write category %s", cat), err)
		}
	}
	return nil
}

func sortedCategories(categories map[model.Category]model.CategoryReport) []model.Category {
	out := make([]model.Category, 0, len(categories))
	for cat := range categories {
		out = append(out, cat)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// updateIndex adds reportDate to dir/index.json (a no-op if already
// present) and rewrites the manifest atomically. Best-effort relative
// to the report_date directory itself: a malformed existing manifest
// is replaced rather than blocking an otherwise-successful write.
func updateIndex(dir, reportDate string) error {
	path := filepath.Join(dir, "index.json")
	var manifest indexManifest
	if data, err := os.ReadFile(path); err == nil {
		_ = json.Unmarshal(data, &manifest)
	}

	for _, d := range manifest.ReportDates {
		if d == reportDate {
			return nil
		}
	}
	manifest.ReportDates = append(manifest.ReportDates, reportDate)
	sort.Sort(sort.Reverse(sort.StringSlice(manifest.ReportDates)))

	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return perr.Wrap(perr.KindWriteFailed, "marshal index manifest", err)
	}
	if err := atomicWriteFile(path, data, 0o644); err != nil {
		return perr.Wrap(perr.KindWriteFailed, "write index manifest", err)
	}
	return nil
}

// atomicWriteFile writes data to a `.tmp` sibling of path, fsyncs it,
// then renames it into place. Justified standard-library use: no pack
// dependency wraps atomic file replace, and os.Rename on the same
// filesystem is already atomic on every platform this pipeline targets.
func atomicWriteFile(path string, data []byte, perm os.FileMode) error {
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return fmt.Errorf("create temp file %s: %w", tmp, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("write temp file %s: %w", tmp, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("fsync temp file %s: %w", tmp, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close temp file %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename %s to %s: %w", tmp, path, err)
	}
	return nil
}
