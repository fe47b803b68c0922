package costs

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordAccumulatesAcrossCallsForSamePhase(t *testing.T) {
	a := New()
	a.Record("analyze.news.map", 100, 50, 0)
	a.Record("analyze.news.map", 200, 75, 10)

	summary := a.Flush()
	require.Len(t, summary.Phases, 1)
	entry := summary.Phases[0]
	assert.Equal(t, "analyze.news.map", entry.Phase)
	assert.EqualValues(t, 300, entry.InputTokens)
	assert.EqualValues(t, 125, entry.OutputTokens)
	assert.EqualValues(t, 10, entry.ReasoningTokens)
}

func TestFlushOrdersPhasesAlphabeticallyAndSumsTotal(t *testing.T) {
	a := New()
	a.Record("topics.synthesize", 1_000_000, 1_000_000, 0)
	a.Record("analyze.news.map", 1_000_000, 0, 0)

	summary := a.Flush()
	require.Len(t, summary.Phases, 2)
	assert.Equal(t, "analyze.news.map", summary.Phases[0].Phase)
	assert.Equal(t, "topics.synthesize", summary.Phases[1].Phase)
	assert.Greater(t, summary.TotalUSD, 0.0)
}

func TestNewWithRatesOverridesPricing(t *testing.T) {
	a := NewWithRates(Rates{InputPerMillion: 1, OutputPerMillion: 1, ReasoningPerMillion: 1})
	a.Record("x", 1_000_000, 1_000_000, 1_000_000)
	summary := a.Flush()
	assert.InDelta(t, 3.0, summary.TotalUSD, 1e-9)
}

func TestRecordIsConcurrencySafe(t *testing.T) {
	a := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.Record("concurrent", 10, 10, 0)
		}()
	}
	wg.Wait()

	summary := a.Flush()
	require.Len(t, summary.Phases, 1)
	assert.EqualValues(t, 500, summary.Phases[0].InputTokens)
}
