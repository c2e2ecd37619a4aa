package ical_test

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tazhate/solcal/internal/domain"
	"github.com/tazhate/solcal/internal/ical"
)

const sample = "BEGIN:VCALENDAR\r\n" +
	"VERSION:2.0\r\n" +
	"PRODID:-//test//EN\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:standup@example.com\r\n" +
	"DTSTAMP:20250101T000000Z\r\n" +
	"SUMMARY:Standup\r\n" +
	"LOCATION:Room 1\\, 2nd floor\r\n" +
	"DESCRIPTION:Daily sync\r\n" +
	"DTSTART:20250106T090000Z\r\n" +
	"DTEND:20250106T100000Z\r\n" +
	"RRULE:FREQ=WEEKLY;UNTIL=20250127T090000Z\r\n" +
	"EXDATE:20250113T090000Z\r\n" +
	"ATTENDEE;CN=Ann:mailto:ann@example.com\r\n" +
	"ATTACH:https://example.com/notes.pdf\r\n" +
	"X-APPLE-TRAVEL-DURATION;VALUE=DURATION:PT30M\r\n" +
	"BEGIN:VALARM\r\n" +
	"ACTION:DISPLAY\r\n" +
	"DESCRIPTION:Standup\r\n" +
	"TRIGGER:-PT15M\r\n" +
	"END:VALARM\r\n" +
	"BEGIN:VALARM\r\n" +
	"ACTION:DISPLAY\r\n" +
	"DESCRIPTION:Standup\r\n" +
	"TRIGGER:-P1D\r\n" +
	"END:VALARM\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:holiday@example.com\r\n" +
	"DTSTAMP:20250101T000000Z\r\n" +
	"SUMMARY:Holiday\r\n" +
	"DTSTART;VALUE=DATE:20250310\r\n" +
	"DTEND;VALUE=DATE:20250313\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:gym@example.com\r\n" +
	"DTSTAMP:20250101T000000Z\r\n" +
	"SUMMARY:Gym\r\n" +
	"DTSTART:20250107T180000Z\r\n" +
	"DURATION:PT1H30M\r\n" +
	"RRULE:FREQ=WEEKLY;BYDAY=TU,TH\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:broken@example.com\r\n" +
	"DTSTAMP:20250101T000000Z\r\n" +
	"SUMMARY:No start\r\n" +
	"END:VEVENT\r\n" +
	"END:VCALENDAR\r\n"

func byUID(events []*domain.Event) map[string]*domain.Event {
	out := make(map[string]*domain.Event, len(events))
	for _, e := range events {
		out[e.UID] = e
	}
	return out
}

func TestDecode(t *testing.T) {
	res, err := ical.Decode(strings.NewReader(sample), nil)
	require.NoError(t, err)
	require.Len(t, res.Events, 3)
	assert.Len(t, res.Invalid, 1)

	events := byUID(res.Events)

	standup := events["standup@example.com"]
	require.NotNil(t, standup)
	assert.Equal(t, "Standup", standup.Summary)
	assert.Equal(t, "Room 1, 2nd floor", standup.Location)
	assert.Equal(t, "Daily sync", standup.Notes)
	assert.Equal(t, time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC), standup.Start)
	assert.Equal(t, time.Hour, standup.Duration())
	assert.Equal(t, domain.Weekly, standup.Repeat)
	require.NotNil(t, standup.RepeatUntil)
	assert.Equal(t, domain.NewDate(2025, time.January, 27), *standup.RepeatUntil)
	assert.Equal(t, []domain.Date{domain.NewDate(2025, time.January, 13)}, standup.ExceptionDates)
	assert.Equal(t, []string{"ann@example.com"}, standup.Invitees)
	assert.Equal(t, []string{"https://example.com/notes.pdf"}, standup.Attachments)
	assert.Equal(t, domain.TravelThirtyMinutes, standup.TravelTime)
	assert.Equal(t, domain.AlertFifteenMinutes, standup.Alert)
	require.NotNil(t, standup.AlertSecond)
	assert.Equal(t, domain.AlertOneDay, *standup.AlertSecond)

	holiday := events["holiday@example.com"]
	require.NotNil(t, holiday)
	assert.True(t, holiday.AllDay)
	assert.Equal(t, domain.NewDate(2025, time.March, 10), domain.DateOf(holiday.Start))
	assert.Equal(t, domain.NewDate(2025, time.March, 12), domain.DateOf(holiday.End))
	assert.Equal(t, domain.Never, holiday.Repeat)

	gym := events["gym@example.com"]
	require.NotNil(t, gym)
	assert.Equal(t, 90*time.Minute, gym.Duration())
	assert.Equal(t, domain.RepeatCustom, gym.Repeat.Kind)
	assert.Equal(t, "FREQ=WEEKLY;BYDAY=TU,TH", gym.Repeat.Rule)
}

func TestEncodeDecodeKeepsFields(t *testing.T) {
	until := domain.NewDate(2025, time.June, 30)
	second := domain.AlertOneHour
	events := []*domain.Event{
		{
			UID:            "biweekly-1",
			Summary:        "Review, planning; retro",
			Location:       "HQ",
			Notes:          "line one\nline two",
			URL:            "https://example.com/r",
			Start:          time.Date(2025, 4, 2, 13, 0, 0, 0, time.UTC),
			End:            time.Date(2025, 4, 2, 14, 0, 0, 0, time.UTC),
			Repeat:         domain.Biweekly,
			RepeatUntil:    &until,
			ExceptionDates: []domain.Date{domain.NewDate(2025, time.April, 16)},
			Invitees:       []string{"bob@example.com"},
			Alert:          domain.AlertTenMinutes,
			AlertSecond:    &second,
			TravelTime:     domain.TravelOneHour,
		},
		{
			UID:        "trip",
			Summary:    "Trip",
			AllDay:     true,
			Start:      time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC),
			End:        time.Date(2025, 8, 3, 0, 0, 0, 0, time.UTC),
			Repeat:     domain.Custom("FREQ=YEARLY;BYMONTH=8"),
			Alert:      domain.AlertNone,
			TravelTime: domain.TravelNone,
		},
	}

	var buf bytes.Buffer
	require.NoError(t, ical.Encode(&buf, events))
	out := buf.String()
	assert.Contains(t, out, "PRODID:"+ical.ProductID)
	assert.Contains(t, out, "FREQ=YEARLY;BYMONTH=8")

	res, err := ical.Decode(&buf, nil)
	require.NoError(t, err)
	require.Empty(t, res.Invalid)
	got := byUID(res.Events)

	review := got["biweekly-1"]
	require.NotNil(t, review)
	assert.Equal(t, events[0].Summary, review.Summary)
	assert.Equal(t, events[0].Notes, review.Notes)
	assert.Equal(t, events[0].URL, review.URL)
	assert.Equal(t, events[0].Start, review.Start)
	assert.Equal(t, events[0].End, review.End)
	assert.Equal(t, domain.Biweekly, review.Repeat)
	require.NotNil(t, review.RepeatUntil)
	assert.Equal(t, until, *review.RepeatUntil)
	assert.Equal(t, events[0].ExceptionDates, review.ExceptionDates)
	assert.Equal(t, events[0].Invitees, review.Invitees)
	assert.Equal(t, domain.AlertTenMinutes, review.Alert)
	require.NotNil(t, review.AlertSecond)
	assert.Equal(t, domain.AlertOneHour, *review.AlertSecond)
	assert.Equal(t, domain.TravelOneHour, review.TravelTime)

	trip := got["trip"]
	require.NotNil(t, trip)
	assert.True(t, trip.AllDay)
	assert.Equal(t, events[1].Start, trip.Start)
	assert.Equal(t, events[1].End, trip.End)
	assert.Equal(t, events[1].Repeat, trip.Repeat)
}

func TestDecodeMissingUIDGetsOne(t *testing.T) {
	data := "BEGIN:VCALENDAR\r\nVERSION:2.0\r\nPRODID:-//t//EN\r\n" +
		"BEGIN:VEVENT\r\nDTSTAMP:20250101T000000Z\r\nSUMMARY:Anon\r\nDTSTART:20250201T100000Z\r\nEND:VEVENT\r\n" +
		"END:VCALENDAR\r\n"

	res, err := ical.Decode(strings.NewReader(data), nil)
	require.NoError(t, err)
	require.Len(t, res.Events, 1)
	assert.NotEmpty(t, res.Events[0].UID)
	assert.Equal(t, res.Events[0].Start, res.Events[0].End)
}

func TestDecodeFloatingTimeUsesLocation(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*60*60)
	data := "BEGIN:VCALENDAR\r\nVERSION:2.0\r\nPRODID:-//t//EN\r\n" +
		"BEGIN:VEVENT\r\nUID:f\r\nDTSTAMP:20250101T000000Z\r\nSUMMARY:Local\r\nDTSTART:20250201T100000\r\nDTEND:20250201T110000\r\nEND:VEVENT\r\n" +
		"END:VCALENDAR\r\n"

	res, err := ical.Decode(strings.NewReader(data), loc)
	require.NoError(t, err)
	require.Len(t, res.Events, 1)
	assert.Equal(t, time.Date(2025, 2, 1, 7, 0, 0, 0, time.UTC), res.Events[0].Start)
}

func TestAlarmAndTravelDurations(t *testing.T) {
	second := domain.AlertOneWeek
	e := &domain.Event{
		UID:         "dentist",
		Summary:     "Dentist",
		Start:       time.Date(2025, 5, 5, 8, 0, 0, 0, time.UTC),
		End:         time.Date(2025, 5, 5, 9, 0, 0, 0, time.UTC),
		Repeat:      domain.Never,
		Alert:       domain.AlertAtTime,
		AlertSecond: &second,
		TravelTime:  domain.TravelThirtyMinutes,
	}

	var buf bytes.Buffer
	require.NoError(t, ical.Encode(&buf, []*domain.Event{e}))
	out := buf.String()
	assert.Contains(t, out, "TRIGGER:PT0S")
	assert.Contains(t, out, "TRIGGER:-PT604800S")
	assert.Contains(t, out, "X-APPLE-TRAVEL-DURATION;VALUE=DURATION:PT1800S")

	res, err := ical.Decode(&buf, nil)
	require.NoError(t, err)
	require.Len(t, res.Events, 1)
	got := res.Events[0]
	assert.Equal(t, domain.AlertAtTime, got.Alert)
	require.NotNil(t, got.AlertSecond)
	assert.Equal(t, domain.AlertOneWeek, *got.AlertSecond)
	assert.Equal(t, domain.TravelThirtyMinutes, got.TravelTime)
}

func TestDecodeDurationForms(t *testing.T) {
	data := "BEGIN:VCALENDAR\r\nVERSION:2.0\r\nPRODID:-//t//EN\r\n" +
		"BEGIN:VEVENT\r\nUID:d\r\nDTSTAMP:20250101T000000Z\r\nSUMMARY:Week\r\n" +
		"DTSTART:20250201T100000Z\r\nDURATION:+P1DT2H\r\n" +
		"X-APPLE-TRAVEL-DURATION:PT2H\r\n" +
		"BEGIN:VALARM\r\nACTION:DISPLAY\r\nDESCRIPTION:Week\r\nTRIGGER:-P1W\r\nEND:VALARM\r\n" +
		"BEGIN:VALARM\r\nACTION:DISPLAY\r\nDESCRIPTION:Week\r\nTRIGGER;VALUE=DATE-TIME:20250201T090000Z\r\nEND:VALARM\r\n" +
		"BEGIN:VALARM\r\nACTION:DISPLAY\r\nDESCRIPTION:Week\r\nTRIGGER:PT5M\r\nEND:VALARM\r\n" +
		"END:VEVENT\r\nEND:VCALENDAR\r\n"

	res, err := ical.Decode(strings.NewReader(data), nil)
	require.NoError(t, err)
	require.Len(t, res.Events, 1)
	e := res.Events[0]
	assert.Equal(t, 26*time.Hour, e.Duration())
	assert.Equal(t, domain.TravelTwoHours, e.TravelTime)
	assert.Equal(t, domain.AlertOneWeek, e.Alert)
	assert.Nil(t, e.AlertSecond)
}
