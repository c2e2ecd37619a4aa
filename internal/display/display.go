// Package display groups expanded occurrences by calendar day for month and
// week views.
package display

import (
	"fmt"
	"sort"
	"time"

	"github.com/tazhate/solcal/internal/domain"
	"github.com/tazhate/solcal/internal/recurrence"
)

// Month grids show at most 6 leading days of the previous month and 13
// trailing days of the next one.
const (
	monthLeadDays  = 6
	monthTrailDays = 13
)

// Source is one calendar as seen by the aggregator
type Source struct {
	ID      string
	Color   string
	Enabled bool
	Events  []*domain.Event
}

// Clock is a time of day at minute precision
type Clock struct {
	Hour   int
	Minute int
}

func clockOf(t time.Time) *Clock {
	return &Clock{Hour: t.Hour(), Minute: t.Minute()}
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

func (c Clock) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c Clock) minutes() int {
	return c.Hour*60 + c.Minute
}

// SpanPosition is where a day sits inside a multi-day item
type SpanPosition int

const (
	SpanSingle SpanPosition = iota
	SpanFirst
	SpanMiddle
	SpanLast
)

// Item is one entry in a day cell
type Item struct {
	CalendarID string       `json:"calendar_id"`
	UID        string       `json:"uid"`
	Summary    string       `json:"summary"`
	Color      string       `json:"color"`
	AllDay     bool         `json:"all_day"`
	Start      *Clock       `json:"start_time,omitempty"`
	End        *Clock       `json:"end_time,omitempty"`
	SpanStart  *domain.Date `json:"span_start,omitempty"`
	SpanEnd    *domain.Date `json:"span_end,omitempty"`
}

// IsMultiDay reports whether the item spans several days
func (i Item) IsMultiDay() bool {
	return i.AllDay && i.SpanStart != nil && i.SpanEnd != nil && *i.SpanStart != *i.SpanEnd
}

// Position returns where d falls inside the item's span
func (i Item) Position(d domain.Date) SpanPosition {
	if !i.IsMultiDay() {
		return SpanSingle
	}
	switch {
	case d == *i.SpanStart:
		return SpanFirst
	case d == *i.SpanEnd:
		return SpanLast
	case d.After(*i.SpanStart) && d.Before(*i.SpanEnd):
		return SpanMiddle
	default:
		return SpanSingle
	}
}

// Days maps a calendar date to the items shown on it
type Days map[domain.Date][]Item

// On returns the items of one day
func (d Days) On(date domain.Date) []Item {
	return d[date]
}

// Count returns the number of items over all days
func (d Days) Count() int {
	n := 0
	for _, items := range d {
		n += len(items)
	}
	return n
}

// Aggregator expands sources into Days
type Aggregator struct {
	expander *recurrence.Expander
}

func NewAggregator(expander *recurrence.Expander) *Aggregator {
	return &Aggregator{expander: expander}
}

// Aggregate expands every event of every enabled source over [from, to].
// Multi-day all-day occurrences appear on each covered day inside the range,
// including spans that began before from; everything else only on its start date. Within a day, all-day items come
// first, then timed items by start time; ties keep source order.
func (a *Aggregator) Aggregate(sources []Source, from, to domain.Date) Days {
	days := make(Days)
	for _, src := range sources {
		if !src.Enabled {
			continue
		}
		for _, e := range src.Events {
			// spans that start before the window still cover its first days
			lookFrom := from
			if e.IsMultiDay() {
				lookFrom = from.AddDays(-domain.DateOf(e.Start).DaysUntil(domain.DateOf(e.End)))
			}
			res := a.expander.Expand(e, lookFrom, to)
			for _, occ := range res.Occurrences {
				add(days, src, occ.Event, from, to)
			}
		}
	}
	for d := range days {
		sortDay(days[d])
	}
	return days
}

func add(days Days, src Source, occ *domain.Event, from, to domain.Date) {
	start := domain.DateOf(occ.Start)
	end := domain.DateOf(occ.End)

	if occ.AllDay && end.After(start) {
		spanStart, spanEnd := start, end
		for cur := start; !cur.After(end) && !cur.After(to); cur = cur.AddDays(1) {
			if cur.Before(from) {
				continue
			}
			days[cur] = append(days[cur], Item{
				CalendarID: src.ID,
				UID:        occ.UID,
				Summary:    occ.Summary,
				Color:      src.Color,
				AllDay:     true,
				SpanStart:  &spanStart,
				SpanEnd:    &spanEnd,
			})
		}
		return
	}

	if start.Before(from) || start.After(to) {
		return
	}
	item := Item{
		CalendarID: src.ID,
		UID:        occ.UID,
		Summary:    occ.Summary,
		Color:      src.Color,
		AllDay:     occ.AllDay,
	}
	if !occ.AllDay {
		item.Start = clockOf(occ.Start)
		item.End = clockOf(occ.End)
	}
	days[start] = append(days[start], item)
}

func sortDay(items []Item) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.AllDay != b.AllDay {
			return a.AllDay
		}
		if a.AllDay {
			return a.IsMultiDay() && !b.IsMultiDay()
		}
		return a.Start.minutes() < b.Start.minutes()
	})
}

// MonthRange returns the padded window rendered by a month grid
func MonthRange(year int, month time.Month) (domain.Date, domain.Date) {
	first := domain.Date{Year: year, Month: month, Day: 1}
	return first.AddDays(-monthLeadDays), first.AddDays(domain.DaysIn(year, month) + monthTrailDays)
}

// Month aggregates the padded window of a month grid
func (a *Aggregator) Month(sources []Source, year int, month time.Month) Days {
	from, to := MonthRange(year, month)
	return a.Aggregate(sources, from, to)
}

// WeekDays returns the seven days starting at first
func WeekDays(first domain.Date) []domain.Date {
	days := make([]domain.Date, 7)
	for i := range days {
		days[i] = first.AddDays(i)
	}
	return days
}

// Week aggregates from the first to the last of the given days
func (a *Aggregator) Week(sources []Source, days []domain.Date) Days {
	if len(days) == 0 {
		return make(Days)
	}
	return a.Aggregate(sources, days[0], days[len(days)-1])
}
