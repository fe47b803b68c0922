package gather

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/kenhuangus/ai-briefing/internal/model"
)

func TestIsNewOrCrossAnnouncement(t *testing.T) {
	cases := []struct {
		desc string
		want bool
	}{
		{"Announce Type: new", true},
		{"Announce Type: cross", true},
		{"Announce Type: replace", false},
		{"no marker at all", true},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, isNewOrCrossAnnouncement(c.desc), c.desc)
	}
}

func TestSameDayAndIsWeekend(t *testing.T) {
	a := time.Date(2026, 7, 30, 1, 0, 0, 0, time.UTC)
	b := time.Date(2026, 7, 30, 23, 0, 0, 0, time.UTC)
	assert.True(t, sameDay(a, b))
	assert.False(t, sameDay(a, b.AddDate(0, 0, 1)))

	saturday := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	assert.True(t, isWeekend(saturday))
	assert.False(t, isWeekend(a))
}

func TestPreprintGathererWeekendZeroItemsIsSuccessNotice(t *testing.T) {
	saturday := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	g := &PreprintGatherer{Now: func() time.Time { return saturday }}
	items, st := g.finalizeStatus(nil, model.SourceStatus{Source: "cs.CL"}, Window{Start: saturday.Add(-time.Hour), End: saturday})
	assert.Empty(t, items)
	assert.Equal(t, model.StatusSuccess, st.State)
	assert.Contains(t, st.Notice, "weekend")
}

func TestPreprintGathererWeekdayZeroItemsStillSuccessWithNotice(t *testing.T) {
	monday := time.Date(2026, 8, 3, 12, 0, 0, 0, time.UTC)
	g := &PreprintGatherer{Now: func() time.Time { return monday }}
	items, st := g.finalizeStatus(nil, model.SourceStatus{Source: "cs.CL"}, Window{Start: monday.Add(-time.Hour), End: monday})
	assert.Empty(t, items)
	assert.Equal(t, model.StatusSuccess, st.State)
	assert.NotContains(t, st.Notice, "weekend")
}
