// Package ical converts between iCalendar data and domain events.
package ical

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-ical"
	"github.com/google/uuid"
	"github.com/teambition/rrule-go"

	"github.com/tazhate/solcal/internal/domain"
)

// ProductID is written into exported calendars
const ProductID = "-//solcal//EN"

const propAppleTravel = "X-APPLE-TRAVEL-DURATION"

// Result of decoding a stream. Invalid lists VEVENTs that could not be read.
type Result struct {
	Events  []*domain.Event
	Invalid []error
}

// Decode reads every VCALENDAR in r. Floating times are read in loc (UTC when nil).
func Decode(r io.Reader, loc *time.Location) (*Result, error) {
	if loc == nil {
		loc = time.UTC
	}
	res := &Result{}
	dec := ical.NewDecoder(r)
	for {
		cal, err := dec.Decode()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode calendar: %w", err)
		}
		for _, ev := range cal.Events() {
			e, err := FromComponent(ev.Component, loc)
			if err != nil {
				res.Invalid = append(res.Invalid, err)
				continue
			}
			res.Events = append(res.Events, e)
		}
	}
	return res, nil
}

// FromComponent converts one VEVENT. Events without a UID get a random one.
func FromComponent(comp *ical.Component, loc *time.Location) (*domain.Event, error) {
	if comp.Name != ical.CompEvent {
		return nil, fmt.Errorf("component %s is not an event", comp.Name)
	}
	if loc == nil {
		loc = time.UTC
	}

	e := &domain.Event{
		Repeat:     domain.Never,
		Alert:      domain.AlertNone,
		TravelTime: domain.TravelNone,
	}

	e.UID = text(comp, ical.PropUID)
	if e.UID == "" {
		e.UID = uuid.NewString()
	}
	e.Summary = text(comp, ical.PropSummary)
	e.Location = text(comp, ical.PropLocation)
	e.Notes = text(comp, ical.PropDescription)
	if p := comp.Props.Get(ical.PropURL); p != nil {
		e.URL = p.Value
	}

	start := comp.Props.Get(ical.PropDateTimeStart)
	if start == nil {
		return nil, fmt.Errorf("event %s: missing DTSTART", e.UID)
	}
	t, err := propTime(start, loc)
	if err != nil {
		return nil, fmt.Errorf("event %s: DTSTART: %w", e.UID, err)
	}
	e.AllDay = isDate(start)
	e.Start = t.UTC()

	switch {
	case comp.Props.Get(ical.PropDateTimeEnd) != nil:
		end, err := propTime(comp.Props.Get(ical.PropDateTimeEnd), loc)
		if err != nil {
			return nil, fmt.Errorf("event %s: DTEND: %w", e.UID, err)
		}
		e.End = end.UTC()
		// DTEND of a date event is exclusive
		if e.AllDay && e.End.After(e.Start) {
			e.End = e.End.AddDate(0, 0, -1)
		}
	case comp.Props.Get(ical.PropDuration) != nil:
		d, err := comp.Props.Get(ical.PropDuration).Duration()
		if err != nil {
			return nil, fmt.Errorf("event %s: DURATION: %w", e.UID, err)
		}
		e.End = e.Start.Add(d)
		if e.AllDay && e.End.After(e.Start) {
			e.End = e.End.AddDate(0, 0, -1)
		}
	default:
		e.End = e.Start
	}

	if p := comp.Props.Get(ical.PropRecurrenceRule); p != nil {
		e.Repeat, e.RepeatUntil = repeatFromRule(p.Value)
	}

	for _, p := range comp.Props.Values(ical.PropExceptionDates) {
		for _, part := range strings.Split(p.Value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			single := ical.Prop{Name: p.Name, Params: p.Params, Value: part}
			t, err := propTime(&single, loc)
			if err != nil {
				continue
			}
			e.AddException(domain.DateOf(t))
		}
	}

	for _, p := range comp.Props.Values(ical.PropAttendee) {
		if addr := stripMailto(p.Value); addr != "" {
			e.Invitees = append(e.Invitees, addr)
		}
	}
	for _, p := range comp.Props.Values(ical.PropAttach) {
		if p.Value != "" {
			e.Attachments = append(e.Attachments, p.Value)
		}
	}

	if p := comp.Props.Get(propAppleTravel); p != nil {
		if d, err := p.Duration(); err == nil {
			e.TravelTime = travelForDuration(d)
		}
	}

	var alerts []domain.AlertTime
	for _, child := range comp.Children {
		if child.Name != ical.CompAlarm {
			continue
		}
		// absolute DATE-TIME triggers fail Duration and are skipped
		trigger := child.Props.Get(ical.PropTrigger)
		if trigger == nil {
			continue
		}
		d, err := trigger.Duration()
		if err != nil || d > 0 {
			continue
		}
		if a := domain.AlertForOffset(-d); a != domain.AlertNone {
			alerts = append(alerts, a)
		}
	}
	if len(alerts) > 0 {
		e.Alert = alerts[0]
	}
	if len(alerts) > 1 {
		second := alerts[1]
		e.AlertSecond = &second
	}

	return e, nil
}

// Encode writes events as a single VCALENDAR
func Encode(w io.Writer, events []*domain.Event) error {
	cal := ToCalendar(events)
	if err := ical.NewEncoder(w).Encode(cal); err != nil {
		return fmt.Errorf("encode calendar: %w", err)
	}
	return nil
}

// ToCalendar builds a VCALENDAR with one VEVENT per master event
func ToCalendar(events []*domain.Event) *ical.Calendar {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, ProductID)
	for _, e := range events {
		cal.Children = append(cal.Children, ToComponent(e))
	}
	return cal
}

// ToComponent converts a master event into a VEVENT
func ToComponent(e *domain.Event) *ical.Component {
	ev := ical.NewEvent()
	ev.Props.SetText(ical.PropUID, e.UID)
	ev.Props.SetText(ical.PropSummary, e.Summary)
	ev.Props.SetDateTime(ical.PropDateTimeStamp, time.Now().UTC())

	if e.Location != "" {
		ev.Props.SetText(ical.PropLocation, e.Location)
	}
	if e.Notes != "" {
		ev.Props.SetText(ical.PropDescription, e.Notes)
	}
	if e.URL != "" {
		p := ical.NewProp(ical.PropURL)
		p.Value = e.URL
		ev.Props.Set(p)
	}

	if e.AllDay {
		ev.Props.SetDate(ical.PropDateTimeStart, e.Start)
		ev.Props.SetDate(ical.PropDateTimeEnd, e.End.AddDate(0, 0, 1))
	} else {
		ev.Props.SetDateTime(ical.PropDateTimeStart, e.Start.UTC())
		ev.Props.SetDateTime(ical.PropDateTimeEnd, e.End.UTC())
	}

	if rule := ruleForRepeat(e); rule != "" {
		p := ical.NewProp(ical.PropRecurrenceRule)
		p.Value = rule
		ev.Props.Set(p)
	}

	for _, d := range e.ExceptionDates {
		p := ical.NewProp(ical.PropExceptionDates)
		if e.AllDay {
			p.SetDate(d.Time())
		} else {
			p.SetDateTime(d.At(e.Start))
		}
		ev.Props.Add(p)
	}

	for _, addr := range e.Invitees {
		p := ical.NewProp(ical.PropAttendee)
		p.Value = withMailto(addr)
		ev.Props.Add(p)
	}
	for _, a := range e.Attachments {
		p := ical.NewProp(ical.PropAttach)
		p.Value = a
		ev.Props.Add(p)
	}

	if d := e.TravelTime.Duration(); d > 0 {
		p := ical.NewProp(propAppleTravel)
		p.SetDuration(d)
		ev.Props.Set(p)
	}

	if alarm := alarmComponent(e.Summary, e.Alert); alarm != nil {
		ev.Children = append(ev.Children, alarm)
	}
	if e.AlertSecond != nil {
		if alarm := alarmComponent(e.Summary, *e.AlertSecond); alarm != nil {
			ev.Children = append(ev.Children, alarm)
		}
	}

	return ev.Component
}

func alarmComponent(summary string, a domain.AlertTime) *ical.Component {
	offset, ok := a.Offset()
	if !ok {
		return nil
	}
	alarm := ical.NewComponent(ical.CompAlarm)
	alarm.Props.SetText(ical.PropAction, "DISPLAY")
	alarm.Props.SetText(ical.PropDescription, summary)
	trigger := ical.NewProp(ical.PropTrigger)
	trigger.SetDuration(-offset)
	alarm.Props.Set(trigger)
	return alarm
}

// repeatFromRule maps plain rules onto the fixed frequencies; anything else
// is kept verbatim as a custom rule
func repeatFromRule(raw string) (domain.Repeat, *domain.Date) {
	raw = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(raw), "RRULE:"))
	opt, err := rrule.StrToROption(raw)
	if err != nil {
		return domain.Custom(raw), nil
	}

	plain := opt.Count == 0 &&
		len(opt.Bysetpos) == 0 && len(opt.Bymonth) == 0 && len(opt.Bymonthday) == 0 &&
		len(opt.Byyearday) == 0 && len(opt.Byweekno) == 0 && len(opt.Byweekday) == 0 &&
		len(opt.Byhour) == 0 && len(opt.Byminute) == 0 && len(opt.Bysecond) == 0 &&
		len(opt.Byeaster) == 0
	if !plain {
		return domain.Custom(raw), nil
	}

	interval := opt.Interval
	if interval == 0 {
		interval = 1
	}

	var repeat domain.Repeat
	switch {
	case opt.Freq == rrule.DAILY && interval == 1:
		repeat = domain.Daily
	case opt.Freq == rrule.WEEKLY && interval == 1:
		repeat = domain.Weekly
	case opt.Freq == rrule.WEEKLY && interval == 2:
		repeat = domain.Biweekly
	case opt.Freq == rrule.MONTHLY && interval == 1:
		repeat = domain.Monthly
	case opt.Freq == rrule.YEARLY && interval == 1:
		repeat = domain.Yearly
	default:
		return domain.Custom(raw), nil
	}

	if opt.Until.IsZero() {
		return repeat, nil
	}
	until := domain.DateOf(opt.Until)
	return repeat, &until
}

func ruleForRepeat(e *domain.Event) string {
	opt := rrule.ROption{}
	switch e.Repeat.Kind {
	case domain.RepeatCustom:
		return e.Repeat.Rule
	case domain.RepeatDaily:
		opt.Freq = rrule.DAILY
	case domain.RepeatWeekly:
		opt.Freq = rrule.WEEKLY
	case domain.RepeatBiweekly:
		opt.Freq = rrule.WEEKLY
		opt.Interval = 2
	case domain.RepeatMonthly:
		opt.Freq = rrule.MONTHLY
	case domain.RepeatYearly:
		opt.Freq = rrule.YEARLY
	default:
		return ""
	}
	if e.RepeatUntil != nil {
		opt.Until = e.RepeatUntil.At(e.Start)
	}
	return opt.RRuleString()
}

func text(comp *ical.Component, name string) string {
	s, err := comp.Props.Text(name)
	if err != nil {
		if p := comp.Props.Get(name); p != nil {
			return p.Value
		}
		return ""
	}
	return s
}

// propTime reads a DATE or DATE-TIME value. Dates are anchored at UTC midnight.
func propTime(p *ical.Prop, loc *time.Location) (time.Time, error) {
	if isDate(p) {
		d, err := domain.ParseCompactDate(strings.TrimSpace(p.Value))
		if err != nil {
			return time.Time{}, err
		}
		return d.Time(), nil
	}
	return p.DateTime(loc)
}

func isDate(p *ical.Prop) bool {
	if p.Params.Get(ical.ParamValue) == string(ical.ValueDate) {
		return true
	}
	return len(strings.TrimSpace(p.Value)) == len(domain.CompactDateLayout)
}

func stripMailto(v string) string {
	v = strings.TrimSpace(v)
	if len(v) >= 7 && strings.EqualFold(v[:7], "mailto:") {
		return v[7:]
	}
	return v
}

func withMailto(addr string) string {
	if strings.Contains(addr, ":") {
		return addr
	}
	return "mailto:" + addr
}

var travelByDuration = map[time.Duration]domain.TravelTime{
	15 * time.Minute: domain.TravelFifteenMinutes,
	30 * time.Minute: domain.TravelThirtyMinutes,
	time.Hour:        domain.TravelOneHour,
	2 * time.Hour:    domain.TravelTwoHours,
}

func travelForDuration(d time.Duration) domain.TravelTime {
	if t, ok := travelByDuration[d]; ok {
		return t
	}
	return domain.TravelNone
}
