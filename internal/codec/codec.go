// Package codec maps domain.Event to the flattened row stored in the events
// table and back. Enum fields are stored as JSON values ("Weekly",
// {"Custom":"FREQ=..."}), list fields as JSON arrays and timestamps as
// RFC 3339 strings in UTC.
//
// Decoding never fails as a whole: a corrupt field falls back to its safe
// default and is reported as a FieldWarning.
package codec

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/tazhate/solcal/internal/domain"
)

// sqliteTimestamp is what datetime('now') column defaults produce
const sqliteTimestamp = "2006-01-02 15:04:05"

// Row is the stored representation of an event
type Row struct {
	UID            string
	CalendarID     string
	Summary        string
	Location       sql.NullString
	AllDay         bool
	StartTime      string
	EndTime        string
	TravelTime     string
	Repeat         string
	RepeatUntil    sql.NullString
	ExceptionDates string
	Invitees       string
	Alert          string
	AlertSecond    sql.NullString
	Attachments    string
	URL            sql.NullString
	Notes          sql.NullString
	CreatedAt      string
	UpdatedAt      string
}

// FieldWarning describes a stored field that could not be decoded
type FieldWarning struct {
	Field string
	Value string
	Err   error
}

func (w FieldWarning) Error() string {
	return fmt.Sprintf("field %s (%q): %v", w.Field, w.Value, w.Err)
}

func (w FieldWarning) Unwrap() error {
	return w.Err
}

// Encode flattens e into a Row
func Encode(e *domain.Event) Row {
	exceptions := make([]string, 0, len(e.ExceptionDates))
	for _, d := range e.ExceptionDates {
		exceptions = append(exceptions, d.String())
	}

	row := Row{
		UID:            e.UID,
		CalendarID:     e.CalendarID,
		Summary:        e.Summary,
		Location:       nullString(e.Location),
		AllDay:         e.AllDay,
		StartTime:      FormatTimestamp(e.Start),
		EndTime:        FormatTimestamp(e.End),
		TravelTime:     encodeTag(string(travelOrDefault(e.TravelTime))),
		Repeat:         encodeRepeat(e.Repeat),
		ExceptionDates: encodeList(exceptions),
		Invitees:       encodeList(e.Invitees),
		Alert:          encodeTag(string(alertOrDefault(e.Alert))),
		Attachments:    encodeList(e.Attachments),
		URL:            nullString(e.URL),
		Notes:          nullString(e.Notes),
		CreatedAt:      FormatTimestamp(e.CreatedAt),
		UpdatedAt:      FormatTimestamp(e.UpdatedAt),
	}
	if e.RepeatUntil != nil {
		row.RepeatUntil = sql.NullString{String: e.RepeatUntil.String(), Valid: true}
	}
	if e.AlertSecond != nil {
		row.AlertSecond = sql.NullString{String: encodeTag(string(*e.AlertSecond)), Valid: true}
	}
	return row
}

// Decode rebuilds an event from a row. Fields that fail to decode take their
// default value and are listed in the returned warnings.
func Decode(row Row) (*domain.Event, []FieldWarning) {
	var warns []FieldWarning
	warn := func(field, value string, err error) {
		warns = append(warns, FieldWarning{Field: field, Value: value, Err: err})
	}

	e := &domain.Event{
		UID:        row.UID,
		CalendarID: row.CalendarID,
		Summary:    row.Summary,
		Location:   row.Location.String,
		AllDay:     row.AllDay,
		URL:        row.URL.String,
		Notes:      row.Notes.String,
	}

	var err error
	if e.Start, err = ParseTimestamp(row.StartTime); err != nil {
		warn("start_time", row.StartTime, err)
	}
	if e.End, err = ParseTimestamp(row.EndTime); err != nil {
		warn("end_time", row.EndTime, err)
		e.End = e.Start
	}

	e.TravelTime = domain.TravelNone
	if tag, err := decodeTag(row.TravelTime); err != nil {
		warn("travel_time", row.TravelTime, err)
	} else if t := domain.TravelTime(tag); !t.Valid() {
		warn("travel_time", row.TravelTime, fmt.Errorf("unknown travel time %q", tag))
	} else {
		e.TravelTime = t
	}

	if e.Repeat, err = decodeRepeat(row.Repeat); err != nil {
		warn("repeat", row.Repeat, err)
		e.Repeat = domain.Never
	}

	if row.RepeatUntil.Valid && row.RepeatUntil.String != "" {
		if d, err := domain.ParseDate(row.RepeatUntil.String); err != nil {
			warn("repeat_until", row.RepeatUntil.String, err)
		} else {
			e.RepeatUntil = &d
		}
	}

	exceptions, err := decodeList(row.ExceptionDates)
	if err != nil {
		warn("exception_dates", row.ExceptionDates, err)
	}
	for _, s := range exceptions {
		d, err := domain.ParseDate(s)
		if err != nil {
			warn("exception_dates", s, err)
			continue
		}
		e.ExceptionDates = append(e.ExceptionDates, d)
	}

	if e.Invitees, err = decodeList(row.Invitees); err != nil {
		warn("invitees", row.Invitees, err)
	}
	if e.Attachments, err = decodeList(row.Attachments); err != nil {
		warn("attachments", row.Attachments, err)
	}

	e.Alert = domain.AlertNone
	if a, err := decodeAlert(row.Alert); err != nil {
		warn("alert", row.Alert, err)
	} else {
		e.Alert = a
	}

	if row.AlertSecond.Valid && row.AlertSecond.String != "" {
		if a, err := decodeAlert(row.AlertSecond.String); err != nil {
			warn("alert_second", row.AlertSecond.String, err)
		} else {
			e.AlertSecond = &a
		}
	}

	if row.CreatedAt != "" {
		if e.CreatedAt, err = ParseTimestamp(row.CreatedAt); err != nil {
			warn("created_at", row.CreatedAt, err)
		}
	}
	if row.UpdatedAt != "" {
		if e.UpdatedAt, err = ParseTimestamp(row.UpdatedAt); err != nil {
			warn("updated_at", row.UpdatedAt, err)
		}
	}

	return e, warns
}

// FormatTimestamp renders t as RFC 3339 in UTC
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// ParseTimestamp accepts RFC 3339 (with or without fraction) and the
// "YYYY-MM-DD HH:MM:SS" form written by sqlite column defaults
func ParseTimestamp(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(sqliteTimestamp, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t.UTC(), nil
}

func encodeTag(tag string) string {
	data, _ := json.Marshal(tag)
	return string(data)
}

// decodeTag reads a JSON string; bare words such as the column default
// 'None' are accepted as-is
func decodeTag(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("empty value")
	}
	if !strings.HasPrefix(s, `"`) {
		if strings.ContainsAny(s, `{}[]":,`) {
			return "", fmt.Errorf("not a tag: %s", s)
		}
		return s, nil
	}
	var tag string
	if err := json.Unmarshal([]byte(s), &tag); err != nil {
		return "", err
	}
	return tag, nil
}

func encodeRepeat(r domain.Repeat) string {
	data, err := json.Marshal(r)
	if err != nil {
		return encodeTag(domain.RepeatNever.String())
	}
	return string(data)
}

func decodeRepeat(s string) (domain.Repeat, error) {
	s = strings.TrimSpace(s)
	if s != "" && !strings.HasPrefix(s, `"`) && !strings.HasPrefix(s, "{") {
		s = encodeTag(s)
	}
	var r domain.Repeat
	if err := json.Unmarshal([]byte(s), &r); err != nil {
		return domain.Never, err
	}
	return r, nil
}

func decodeAlert(s string) (domain.AlertTime, error) {
	tag, err := decodeTag(s)
	if err != nil {
		return domain.AlertNone, err
	}
	a := domain.AlertTime(tag)
	if !a.Valid() {
		return domain.AlertNone, fmt.Errorf("unknown alert %q", tag)
	}
	return a, nil
}

func encodeList(items []string) string {
	if items == nil {
		items = []string{}
	}
	data, _ := json.Marshal(items)
	return string(data)
}

func decodeList(s string) ([]string, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var items []string
	if err := json.Unmarshal([]byte(s), &items); err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	return items, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func travelOrDefault(t domain.TravelTime) domain.TravelTime {
	if t == "" {
		return domain.TravelNone
	}
	return t
}

func alertOrDefault(a domain.AlertTime) domain.AlertTime {
	if a == "" {
		return domain.AlertNone
	}
	return a
}
