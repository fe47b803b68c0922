package ecosystem

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kenhuangus/ai-briefing/internal/model"
)

func TestLoadMissingFileIsEmptyNotError(t *testing.T) {
	tl, err := Load(filepath.Join(t.TempDir(), "timeline.yaml"))
	require.NoError(t, err)
	assert.Empty(t, tl.Releases())
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "timeline.yaml")
	tl, err := Load(path)
	require.NoError(t, err)

	ga := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	tl.AppendAutoDetected(model.EcosystemRelease{Vendor: "Acme", ModelName: "Atlas-2", GeneralAvailability: &ga, Confidence: 0.9})
	require.NoError(t, tl.Save())

	reloaded, err := Load(path)
	require.NoError(t, err)
	require.Len(t, reloaded.Releases(), 1)
	assert.Equal(t, "Acme", reloaded.Releases()[0].Vendor)
}

func TestAppendAutoDetectedRejectsLowConfidence(t *testing.T) {
	tl := &Timeline{}
	ok := tl.AppendAutoDetected(model.EcosystemRelease{Vendor: "Acme", ModelName: "Atlas-2", Confidence: 0.5})
	assert.False(t, ok)
	assert.Empty(t, tl.Releases())
}

func TestGroundingTextOrdersByConfidenceThenDate(t *testing.T) {
	tl := &Timeline{releases: []model.EcosystemRelease{
		{Vendor: "A", ModelName: "One", Confidence: 0.8},
		{Vendor: "B", ModelName: "Two", Confidence: 0.95},
	}}
	text := tl.GroundingText()
	assert.True(t, indexOf(text, "B Two") < indexOf(text, "A One"))
}

func indexOf(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}

type stubRegistry struct {
	entries []model.EcosystemRelease
	err     error
}

func (s stubRegistry) Fetch(ctx context.Context) ([]model.EcosystemRelease, error) {
	return s.entries, s.err
}

func TestMergeExternalUpsertsByVendorAndModel(t *testing.T) {
	tl := &Timeline{releases: []model.EcosystemRelease{{Vendor: "Acme", ModelName: "Atlas-2", Source: model.EcosystemSourceCurated}}}
	api := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	tl.MergeExternal(t.Context(), stubRegistry{entries: []model.EcosystemRelease{{Vendor: "acme", ModelName: "atlas-2", APIAvailability: &api}}})

	require.Len(t, tl.Releases(), 1)
	assert.Equal(t, model.EcosystemSourceCurated, tl.Releases()[0].Source)
	assert.Equal(t, &api, tl.Releases()[0].APIAvailability)
}

func TestMergeExternalAppendsUnknownEntry(t *testing.T) {
	tl := &Timeline{}
	tl.MergeExternal(t.Context(), stubRegistry{entries: []model.EcosystemRelease{{Vendor: "NewCo", ModelName: "Nova"}}})
	require.Len(t, tl.Releases(), 1)
	assert.Equal(t, model.EcosystemSourceExternal, tl.Releases()[0].Source)
}

func TestMergeExternalFailureLeavesTimelineUntouched(t *testing.T) {
	tl := &Timeline{releases: []model.EcosystemRelease{{Vendor: "Acme", ModelName: "Atlas-2"}}}
	tl.MergeExternal(t.Context(), stubRegistry{err: assertErr{}})
	assert.Len(t, tl.Releases(), 1)
}

type assertErr struct{}

func (assertErr) Error() string { return "boom" }

func TestAtomicWriteCreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.yaml")
	require.NoError(t, atomicWrite(path, []byte("x: 1\n")))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "x: 1\n", string(data))
}
