package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event is a stored master event. A recurring series is one Event.
type Event struct {
	UID        string
	CalendarID string

	Summary  string
	Location string
	Notes    string
	URL      string

	AllDay bool
	Start  time.Time // UTC
	End    time.Time // UTC

	TravelTime     TravelTime
	Repeat         Repeat
	RepeatUntil    *Date
	ExceptionDates []Date

	Invitees    []string
	Attachments []string

	Alert       AlertTime
	AlertSecond *AlertTime

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Duration returns End - Start
func (e *Event) Duration() time.Duration {
	return e.End.Sub(e.Start)
}

// IsRecurring returns true if the event repeats
func (e *Event) IsRecurring() bool {
	return e.Repeat.IsRecurring()
}

// IsMultiDay returns true for all-day events spanning more than one date
func (e *Event) IsMultiDay() bool {
	return e.AllDay && DateOf(e.End).After(DateOf(e.Start))
}

// HasException reports whether d is suppressed for this series
func (e *Event) HasException(d Date) bool {
	for _, ex := range e.ExceptionDates {
		if ex == d {
			return true
		}
	}
	return false
}

// AddException appends d to the exception dates unless already present.
// Returns false when d was already excluded.
func (e *Event) AddException(d Date) bool {
	if e.HasException(d) {
		return false
	}
	e.ExceptionDates = append(e.ExceptionDates, d)
	return true
}

// Validate checks the invariants enforced on import
func (e *Event) Validate() error {
	if e.UID == "" {
		return fmt.Errorf("event has no uid")
	}
	if e.End.Before(e.Start) {
		return fmt.Errorf("event %s ends before it starts", e.UID)
	}
	return nil
}

// Clone returns a deep copy
func (e *Event) Clone() *Event {
	c := *e
	if e.RepeatUntil != nil {
		u := *e.RepeatUntil
		c.RepeatUntil = &u
	}
	if e.AlertSecond != nil {
		a := *e.AlertSecond
		c.AlertSecond = &a
	}
	c.ExceptionDates = append([]Date(nil), e.ExceptionDates...)
	c.Invitees = append([]string(nil), e.Invitees...)
	c.Attachments = append([]string(nil), e.Attachments...)
	return &c
}

// Occurrence is one concrete dated instance of an Event. Never stored.
type Occurrence struct {
	Date  Date
	Event *Event
}

// TravelTime is the travel buffer before an event
type TravelTime string

const (
	TravelNone           TravelTime = "None"
	TravelFifteenMinutes TravelTime = "FifteenMinutes"
	TravelThirtyMinutes  TravelTime = "ThirtyMinutes"
	TravelOneHour        TravelTime = "OneHour"
	TravelTwoHours       TravelTime = "TwoHours"
)

var travelDurations = map[TravelTime]time.Duration{
	TravelNone:           0,
	TravelFifteenMinutes: 15 * time.Minute,
	TravelThirtyMinutes:  30 * time.Minute,
	TravelOneHour:        time.Hour,
	TravelTwoHours:       2 * time.Hour,
}

// Valid reports whether t is a known variant
func (t TravelTime) Valid() bool {
	_, ok := travelDurations[t]
	return ok
}

// Duration returns the travel buffer
func (t TravelTime) Duration() time.Duration {
	return travelDurations[t]
}

// AlertTime is how long before the start an alert fires
type AlertTime string

const (
	AlertNone           AlertTime = "None"
	AlertAtTime         AlertTime = "AtTime"
	AlertFiveMinutes    AlertTime = "FiveMinutes"
	AlertTenMinutes     AlertTime = "TenMinutes"
	AlertFifteenMinutes AlertTime = "FifteenMinutes"
	AlertThirtyMinutes  AlertTime = "ThirtyMinutes"
	AlertOneHour        AlertTime = "OneHour"
	AlertTwoHours       AlertTime = "TwoHours"
	AlertOneDay         AlertTime = "OneDay"
	AlertTwoDays        AlertTime = "TwoDays"
	AlertOneWeek        AlertTime = "OneWeek"
)

// alertOrder keeps lookups by offset deterministic
var alertOrder = []AlertTime{
	AlertAtTime, AlertFiveMinutes, AlertTenMinutes, AlertFifteenMinutes, AlertThirtyMinutes,
	AlertOneHour, AlertTwoHours, AlertOneDay, AlertTwoDays, AlertOneWeek,
}

var alertOffsets = map[AlertTime]time.Duration{
	AlertAtTime:         0,
	AlertFiveMinutes:    5 * time.Minute,
	AlertTenMinutes:     10 * time.Minute,
	AlertFifteenMinutes: 15 * time.Minute,
	AlertThirtyMinutes:  30 * time.Minute,
	AlertOneHour:        time.Hour,
	AlertTwoHours:       2 * time.Hour,
	AlertOneDay:         24 * time.Hour,
	AlertTwoDays:        48 * time.Hour,
	AlertOneWeek:        7 * 24 * time.Hour,
}

// Valid reports whether a is a known variant
func (a AlertTime) Valid() bool {
	if a == AlertNone {
		return true
	}
	_, ok := alertOffsets[a]
	return ok
}

// Offset returns how long before the start the alert fires.
// ok is false for AlertNone and unknown values.
func (a AlertTime) Offset() (time.Duration, bool) {
	d, ok := alertOffsets[a]
	return d, ok
}

// AlertForOffset maps an offset back to its variant, AlertNone if none matches
func AlertForOffset(d time.Duration) AlertTime {
	for _, a := range alertOrder {
		if alertOffsets[a] == d {
			return a
		}
	}
	return AlertNone
}

// RepeatKind enumerates the repeat frequencies
type RepeatKind int

const (
	RepeatNever RepeatKind = iota
	RepeatDaily
	RepeatWeekly
	RepeatBiweekly
	RepeatMonthly
	RepeatYearly
	RepeatCustom
)

var repeatNames = map[RepeatKind]string{
	RepeatNever:    "Never",
	RepeatDaily:    "Daily",
	RepeatWeekly:   "Weekly",
	RepeatBiweekly: "Biweekly",
	RepeatMonthly:  "Monthly",
	RepeatYearly:   "Yearly",
	RepeatCustom:   "Custom",
}

func (k RepeatKind) String() string {
	if n, ok := repeatNames[k]; ok {
		return n
	}
	return fmt.Sprintf("RepeatKind(%d)", int(k))
}

// Repeat is the recurrence of a series. Rule is only set for RepeatCustom and
// holds the raw RRULE text, which is stored but not expanded.
type Repeat struct {
	Kind RepeatKind
	Rule string
}

var (
	Never    = Repeat{Kind: RepeatNever}
	Daily    = Repeat{Kind: RepeatDaily}
	Weekly   = Repeat{Kind: RepeatWeekly}
	Biweekly = Repeat{Kind: RepeatBiweekly}
	Monthly  = Repeat{Kind: RepeatMonthly}
	Yearly   = Repeat{Kind: RepeatYearly}
)

// Custom returns a custom repeat carrying the raw rule
func Custom(rule string) Repeat {
	return Repeat{Kind: RepeatCustom, Rule: rule}
}

// IsRecurring is false only for Never
func (r Repeat) IsRecurring() bool {
	return r.Kind != RepeatNever
}

func (r Repeat) String() string {
	if r.Kind == RepeatCustom {
		return "Custom(" + r.Rule + ")"
	}
	return r.Kind.String()
}

// ParseRepeatKind maps a unit variant name to its kind
func ParseRepeatKind(name string) (RepeatKind, bool) {
	for k, n := range repeatNames {
		if n == name && k != RepeatCustom {
			return k, true
		}
	}
	return RepeatNever, false
}

// MarshalJSON encodes unit variants as a bare string ("Weekly") and the
// custom variant as {"Custom":"<rule>"}.
func (r Repeat) MarshalJSON() ([]byte, error) {
	if r.Kind == RepeatCustom {
		return json.Marshal(map[string]string{"Custom": r.Rule})
	}
	name, ok := repeatNames[r.Kind]
	if !ok {
		return nil, fmt.Errorf("unknown repeat kind %d", int(r.Kind))
	}
	return json.Marshal(name)
}

func (r *Repeat) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		kind, ok := ParseRepeatKind(name)
		if !ok {
			return fmt.Errorf("unknown repeat %q", name)
		}
		*r = Repeat{Kind: kind}
		return nil
	}

	var tagged map[string]string
	if err := json.Unmarshal(data, &tagged); err != nil {
		return fmt.Errorf("decode repeat: %w", err)
	}
	rule, ok := tagged["Custom"]
	if !ok || len(tagged) != 1 {
		return fmt.Errorf("unknown repeat %s", string(data))
	}
	*r = Custom(rule)
	return nil
}
