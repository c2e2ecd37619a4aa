// Package recurrence turns stored master events into dated occurrences.
package recurrence

import (
	"github.com/rs/zerolog"

	"github.com/tazhate/solcal/internal/domain"
)

// MaxIterations bounds the work done for one event in one Expand call
const MaxIterations = 1000

// Result holds the occurrences of one event within a window.
// Truncated is set when MaxIterations stopped the expansion early.
type Result struct {
	Occurrences []domain.Occurrence
	Truncated   bool
}

// Expander expands events and logs truncation
type Expander struct {
	log           zerolog.Logger
	maxIterations int
}

func NewExpander(log zerolog.Logger) *Expander {
	return &Expander{
		log:           log.With().Str("component", "recurrence").Logger(),
		maxIterations: MaxIterations,
	}
}

// Expand is a convenience for callers without a logger
func Expand(e *domain.Event, from, to domain.Date) Result {
	return NewExpander(zerolog.Nop()).Expand(e, from, to)
}

// Expand returns the occurrences of e dated within [from, to] (both
// inclusive) in cadence order.
//
// Recurring occurrences carry the virtual occurrence id as uid and are shifted
// to their date keeping the master's time of day and duration. Custom rules
// are not interpreted: such a series only yields its own start date.
func (x *Expander) Expand(e *domain.Event, from, to domain.Date) Result {
	var res Result
	if to.Before(from) {
		return res
	}

	first := domain.DateOf(e.Start)

	if !e.IsRecurring() {
		if !first.Before(from) && !first.After(to) {
			res.Occurrences = append(res.Occurrences, domain.Occurrence{Date: first, Event: e.Clone()})
		}
		return res
	}

	end := to
	if e.RepeatUntil != nil && e.RepeatUntil.Before(end) {
		end = *e.RepeatUntil
	}

	cursor := skipAhead(first, from, e.Repeat.Kind)
	iterations := 0
	for !cursor.After(end) {
		if iterations == x.maxIterations {
			res.Truncated = true
			x.log.Warn().
				Str("uid", e.UID).
				Str("calendar_id", e.CalendarID).
				Int("cap", x.maxIterations).
				Str("stopped_at", cursor.String()).
				Msg("recurrence expansion truncated")
			break
		}
		iterations++

		if !cursor.Before(from) && !e.HasException(cursor) {
			res.Occurrences = append(res.Occurrences, domain.Occurrence{
				Date:  cursor,
				Event: materialize(e, cursor),
			})
		}

		next, ok := advance(cursor, e.Repeat.Kind)
		if !ok {
			break
		}
		cursor = next
	}
	return res
}

// skipAhead moves a fixed-step cursor to the last cadence date before from so
// that old series do not spend the iteration budget outside the window.
// Month based steps clamp the day and drift, so they start from the series start.
func skipAhead(cursor, from domain.Date, kind domain.RepeatKind) domain.Date {
	step := 0
	switch kind {
	case domain.RepeatDaily:
		step = 1
	case domain.RepeatWeekly:
		step = 7
	case domain.RepeatBiweekly:
		step = 14
	}
	if step == 0 || !cursor.Before(from) {
		return cursor
	}
	gap := cursor.DaysUntil(from)
	return cursor.AddDays(gap / step * step)
}

func advance(d domain.Date, kind domain.RepeatKind) (domain.Date, bool) {
	switch kind {
	case domain.RepeatDaily:
		return d.AddDays(1), true
	case domain.RepeatWeekly:
		return d.AddDays(7), true
	case domain.RepeatBiweekly:
		return d.AddDays(14), true
	case domain.RepeatMonthly:
		if next, ok := d.AddMonths(1); ok {
			return next, true
		}
		return d.AddDays(30), true
	case domain.RepeatYearly:
		if next, ok := d.AddMonths(12); ok {
			return next, true
		}
		return d.AddDays(365), true
	default:
		return d, false
	}
}

func materialize(e *domain.Event, d domain.Date) *domain.Event {
	occ := e.Clone()
	occ.Start = d.At(e.Start)
	occ.End = occ.Start.Add(e.Duration())
	occ.UID = OccurrenceID(e.UID, d)
	return occ
}
