// Package ecosystem loads and maintains the curated model/vendor
// release timeline (C6): the source-of-truth grounding document
// attached to every analyzer, synthesis, and summary call.
package ecosystem

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kenhuangus/ai-briefing/internal/model"
	"github.com/kenhuangus/ai-briefing/internal/obs"
)

// Timeline holds the merged curated + external-registry release set and
// renders itself into the compact grounding block attached as system
// context elsewhere in the pipeline.
type Timeline struct {
	path     string
	releases []model.EcosystemRelease
}

// Load reads the curated YAML timeline from path. A missing file is not
// an error: the timeline starts empty and accumulates entries as
// phase 4.6 runs.
func Load(path string) (*Timeline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Timeline{path: path}, nil
		}
		return nil, fmt.Errorf("read ecosystem timeline %s: %w", path, err)
	}
	var releases []model.EcosystemRelease
	if err := yaml.Unmarshal(data, &releases); err != nil {
		return nil, fmt.Errorf("parse ecosystem timeline %s: %w", path, err)
	}
	return &Timeline{path: path, releases: releases}, nil
}

// Releases returns a copy of the current merged release set.
func (t *Timeline) Releases() []model.EcosystemRelease {
	out := make([]model.EcosystemRelease, len(t.releases))
	copy(out, t.releases)
	return out
}

// MergeExternal fetches an external availability registry and merges
// API-availability dates into existing curated entries by
// vendor+model_name; entries the registry names that aren't already
// tracked are appended with source=external_registry. Best-effort: a
// fetch failure is logged and leaves the curated set untouched.
func (t *Timeline) MergeExternal(ctx context.Context, registry Registry) {
	entries, err := registry.Fetch(ctx)
	if err != nil {
		obs.LoggerWithTrace(ctx).Warn().Err(err).Msg("ecosystem_external_registry_failed")
		return
	}
	for _, e := range entries {
		t.upsertExternal(e)
	}
}

func (t *Timeline) upsertExternal(e model.EcosystemRelease) {
	for i := range t.releases {
		if sameRelease(t.releases[i], e) {
			if e.APIAvailability != nil {
				t.releases[i].APIAvailability = e.APIAvailability
			}
			return
		}
	}
	e.Source = model.EcosystemSourceExternal
	t.releases = append(t.releases, e)
}

func sameRelease(a, b model.EcosystemRelease) bool {
	return strings.EqualFold(a.Vendor, b.Vendor) && strings.EqualFold(a.ModelName, b.ModelName)
}

// AppendAutoDetected appends a phase-4.6 auto-detected entry. Entries
// are never auto-modified, only appended, and only when confidence
// meets the 0.8 threshold (spec §4.6); callers should already have
// filtered but this enforces the invariant defensively at the one
// mutation point.
func (t *Timeline) AppendAutoDetected(e model.EcosystemRelease) bool {
	if e.Confidence < 0.8 {
		return false
	}
	e.Source = model.EcosystemSourceAuto
	t.releases = append(t.releases, e)
	return true
}

// Save atomically writes the current release set back to the curated
// file: write to a temp file in the same directory, fsync, then
// rename, so a crash mid-write never leaves a truncated timeline.
func (t *Timeline) Save() error {
	out, err := yaml.Marshal(t.releases)
	if err != nil {
		return fmt.Errorf("marshal ecosystem timeline: %w", err)
	}
	return atomicWrite(t.path, out)
}

func atomicWrite(path string, data []byte) error {
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("create temp file %s: %w", tmp, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("write temp file %s: %w", tmp, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("fsync temp file %s: %w", tmp, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close temp file %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename %s to %s: %w", tmp, path, err)
	}
	return nil
}

// GroundingText renders the timeline into a compact block suitable as
// system context for analyzer/synthesis/summary calls: one line per
// release, most confident and most recent first.
func (t *Timeline) GroundingText() string {
	if len(t.releases) == 0 {
		return "No known ecosystem releases are tracked yet."
	}
	sorted := make([]model.EcosystemRelease, len(t.releases))
	copy(sorted, t.releases)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Confidence != sorted[j].Confidence {
			return sorted[i].Confidence > sorted[j].Confidence
		}
		return releaseDate(sorted[i]).After(releaseDate(sorted[j]))
	})

	var b strings.Builder
	b.WriteString("Known ecosystem releases (vendor, model, GA date, API date, source):\n")
	for _, r := range sorted {
		fmt.Fprintf(&b, "- %s %s | GA:%s | API:%s | %s\n",
			r.Vendor, r.ModelName, formatDate(r.GeneralAvailability), formatDate(r.APIAvailability), r.Source)
	}
	return b.String()
}

func releaseDate(r model.EcosystemRelease) time.Time {
	if r.APIAvailability != nil {
		return *r.APIAvailability
	}
	if r.GeneralAvailability != nil {
		return *r.GeneralAvailability
	}
	return time.Time{}
}

func formatDate(t *time.Time) string {
	if t == nil {
		return "unknown"
	}
	return t.Format("2006-01-02")
}
