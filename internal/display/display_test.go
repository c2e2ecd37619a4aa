package display_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tazhate/solcal/internal/display"
	"github.com/tazhate/solcal/internal/domain"
	"github.com/tazhate/solcal/internal/recurrence"
)

func aggregator() *display.Aggregator {
	return display.NewAggregator(recurrence.NewExpander(zerolog.Nop()))
}

func event(uid string, start, end time.Time, allDay bool, repeat domain.Repeat) *domain.Event {
	return &domain.Event{
		UID:     uid,
		Summary: uid,
		Start:   start,
		End:     end,
		AllDay:  allDay,
		Repeat:  repeat,
	}
}

func d(y int, m time.Month, day int) domain.Date {
	return domain.NewDate(y, m, day)
}

func TestMonthRange(t *testing.T) {
	from, to := display.MonthRange(2025, time.February)
	assert.Equal(t, d(2025, time.January, 26), from)
	assert.Equal(t, d(2025, time.March, 14), to)

	from, to = display.MonthRange(2024, time.December)
	assert.Equal(t, d(2024, time.November, 25), from)
	assert.Equal(t, d(2025, time.January, 14), to)
}

func TestMonthIncludesPaddingAndSkipsDisabled(t *testing.T) {
	work := display.Source{
		ID: "work", Color: "#8B5CF6", Enabled: true,
		Events: []*domain.Event{
			event("weekly", time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC), time.Date(2025, 1, 6, 10, 0, 0, 0, time.UTC), false, domain.Weekly),
		},
	}
	hidden := display.Source{
		ID: "hidden", Color: "#000000", Enabled: false,
		Events: []*domain.Event{
			event("secret", time.Date(2025, 2, 3, 9, 0, 0, 0, time.UTC), time.Date(2025, 2, 3, 10, 0, 0, 0, time.UTC), false, domain.Never),
		},
	}

	days := aggregator().Month([]display.Source{work, hidden}, 2025, time.February)

	// Mondays from Jan 27 through Mar 10 fall inside the padded window
	assert.Equal(t, 7, days.Count())
	items := days.On(d(2025, time.January, 27))
	require.Len(t, items, 1)
	assert.Equal(t, "weekly_20250127", items[0].UID)
	assert.Equal(t, "#8B5CF6", items[0].Color)
	assert.Equal(t, "work", items[0].CalendarID)
	require.NotNil(t, items[0].Start)
	assert.Equal(t, "09:00", items[0].Start.String())
	assert.Equal(t, "10:00", items[0].End.String())
	assert.Nil(t, items[0].SpanStart)
}

func TestMultiDayAllDaySpansEachDay(t *testing.T) {
	src := display.Source{
		ID: "personal", Color: "#3B82F6", Enabled: true,
		Events: []*domain.Event{
			event("trip", time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC), time.Date(2025, 3, 8, 0, 0, 0, 0, time.UTC), true, domain.Never),
		},
	}

	week := display.WeekDays(d(2025, time.March, 3))
	days := aggregator().Week([]display.Source{src}, week)

	for _, day := range []int{5, 6, 7, 8} {
		items := days.On(d(2025, time.March, day))
		require.Len(t, items, 1, "day %d", day)
		assert.True(t, items[0].IsMultiDay())
		assert.Equal(t, d(2025, time.March, 5), *items[0].SpanStart)
		assert.Equal(t, d(2025, time.March, 8), *items[0].SpanEnd)
		assert.Nil(t, items[0].Start)
	}
	assert.Empty(t, days.On(d(2025, time.March, 4)))

	item := days.On(d(2025, time.March, 6))[0]
	assert.Equal(t, display.SpanFirst, item.Position(d(2025, time.March, 5)))
	assert.Equal(t, display.SpanMiddle, item.Position(d(2025, time.March, 6)))
	assert.Equal(t, display.SpanLast, item.Position(d(2025, time.March, 8)))
}

func TestMultiDayStartedBeforeRange(t *testing.T) {
	src := display.Source{
		ID: "p", Color: "#fff", Enabled: true,
		Events: []*domain.Event{
			event("retreat", time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC), time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC), true, domain.Never),
			event("done", time.Date(2025, 2, 27, 0, 0, 0, 0, time.UTC), time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC), true, domain.Never),
		},
	}

	days := aggregator().Week([]display.Source{src}, display.WeekDays(d(2025, time.March, 3)))
	assert.Equal(t, 2, days.Count())
	for _, day := range []int{3, 4} {
		items := days.On(d(2025, time.March, day))
		require.Len(t, items, 1, "day %d", day)
		assert.Equal(t, "retreat", items[0].UID)
		assert.Equal(t, d(2025, time.February, 28), *items[0].SpanStart)
	}
}

func TestMultiDayClampedToRangeEnd(t *testing.T) {
	src := display.Source{
		ID: "p", Color: "#fff", Enabled: true,
		Events: []*domain.Event{
			event("long", time.Date(2025, 3, 8, 0, 0, 0, 0, time.UTC), time.Date(2025, 3, 12, 0, 0, 0, 0, time.UTC), true, domain.Never),
		},
	}

	days := aggregator().Week([]display.Source{src}, display.WeekDays(d(2025, time.March, 3)))
	assert.Equal(t, 2, days.Count())
	assert.Len(t, days.On(d(2025, time.March, 8)), 1)
	assert.Len(t, days.On(d(2025, time.March, 9)), 1)
}

func TestDayOrdering(t *testing.T) {
	day := time.Date(2025, 4, 2, 0, 0, 0, 0, time.UTC)
	src := display.Source{
		ID: "c", Color: "#111", Enabled: true,
		Events: []*domain.Event{
			event("late", day.Add(17*time.Hour), day.Add(18*time.Hour), false, domain.Never),
			event("early", day.Add(8*time.Hour), day.Add(9*time.Hour), false, domain.Never),
			event("holiday", day, day, true, domain.Never),
			event("span", day.AddDate(0, 0, -1), day.AddDate(0, 0, 1), true, domain.Never),
		},
	}

	days := aggregator().Aggregate([]display.Source{src}, d(2025, time.April, 1), d(2025, time.April, 3))
	items := days.On(d(2025, time.April, 2))
	require.Len(t, items, 4)

	got := []string{items[0].UID, items[1].UID, items[2].UID, items[3].UID}
	assert.Equal(t, []string{"span", "holiday", "early", "late"}, got)
	assert.False(t, items[1].IsMultiDay())
}

func TestWeekEmptyDays(t *testing.T) {
	assert.Empty(t, aggregator().Week(nil, nil))
}

func TestDaysJSON(t *testing.T) {
	start := time.Date(2025, 5, 1, 14, 5, 0, 0, time.UTC)
	src := display.Source{ID: "c", Color: "#222", Enabled: true,
		Events: []*domain.Event{event("x", start, start.Add(time.Hour), false, domain.Never)}}

	days := aggregator().Aggregate([]display.Source{src}, d(2025, time.May, 1), d(2025, time.May, 1))
	data, err := json.Marshal(days)
	require.NoError(t, err)
	assert.JSONEq(t, `{"2025-05-01":[{"calendar_id":"c","uid":"x","summary":"x","color":"#222","all_day":false,"start_time":"14:05","end_time":"15:05"}]}`, string(data))
}
