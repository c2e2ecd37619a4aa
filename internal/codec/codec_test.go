package codec_test

import (
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tazhate/solcal/internal/codec"
	"github.com/tazhate/solcal/internal/domain"
)

func fullEvent(repeat domain.Repeat, alert domain.AlertTime, travel domain.TravelTime) *domain.Event {
	until := domain.NewDate(2025, time.March, 31)
	second := domain.AlertOneDay
	return &domain.Event{
		UID:            "evt-1",
		CalendarID:     "work",
		Summary:        "Planning",
		Location:       "Room 4",
		Notes:          "bring slides",
		URL:            "https://example.com/meet",
		Start:          time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC),
		End:            time.Date(2025, 1, 6, 10, 30, 0, 0, time.UTC),
		TravelTime:     travel,
		Repeat:         repeat,
		RepeatUntil:    &until,
		ExceptionDates: []domain.Date{domain.NewDate(2025, 1, 13), domain.NewDate(2025, 2, 3)},
		Invitees:       []string{"ann@example.com", "bob@example.com"},
		Attachments:    []string{"https://example.com/agenda.pdf"},
		Alert:          alert,
		AlertSecond:    &second,
		CreatedAt:      time.Date(2024, 12, 1, 8, 0, 0, 0, time.UTC),
		UpdatedAt:      time.Date(2024, 12, 2, 8, 0, 0, 0, time.UTC),
	}
}

func TestRoundTripAllVariants(t *testing.T) {
	repeats := []domain.Repeat{
		domain.Never, domain.Daily, domain.Weekly, domain.Biweekly,
		domain.Monthly, domain.Yearly, domain.Custom("FREQ=WEEKLY;BYDAY=MO,WE"),
	}
	alerts := []domain.AlertTime{
		domain.AlertNone, domain.AlertAtTime, domain.AlertFiveMinutes, domain.AlertTenMinutes,
		domain.AlertFifteenMinutes, domain.AlertThirtyMinutes, domain.AlertOneHour,
		domain.AlertTwoHours, domain.AlertOneDay, domain.AlertTwoDays, domain.AlertOneWeek,
	}
	travels := []domain.TravelTime{
		domain.TravelNone, domain.TravelFifteenMinutes, domain.TravelThirtyMinutes,
		domain.TravelOneHour, domain.TravelTwoHours,
	}

	for i, alert := range alerts {
		repeat := repeats[i%len(repeats)]
		travel := travels[i%len(travels)]
		t.Run(repeat.String()+"/"+string(alert), func(t *testing.T) {
			in := fullEvent(repeat, alert, travel)
			out, warns := codec.Decode(codec.Encode(in))
			assert.Empty(t, warns)
			assert.Equal(t, in, out)
		})
	}

	for _, repeat := range repeats {
		in := fullEvent(repeat, domain.AlertNone, domain.TravelNone)
		out, warns := codec.Decode(codec.Encode(in))
		assert.Empty(t, warns)
		assert.Equal(t, in.Repeat, out.Repeat)
	}
}

func TestEncodeFormats(t *testing.T) {
	row := codec.Encode(fullEvent(domain.Custom("FREQ=DAILY;COUNT=3"), domain.AlertFifteenMinutes, domain.TravelOneHour))

	assert.Equal(t, "2025-01-06T09:00:00Z", row.StartTime)
	assert.Equal(t, `{"Custom":"FREQ=DAILY;COUNT=3"}`, row.Repeat)
	assert.Equal(t, `"FifteenMinutes"`, row.Alert)
	assert.Equal(t, `"OneHour"`, row.TravelTime)
	assert.Equal(t, `["2025-01-13","2025-02-03"]`, row.ExceptionDates)
	assert.Equal(t, sql.NullString{String: "2025-03-31", Valid: true}, row.RepeatUntil)
	assert.Equal(t, sql.NullString{String: `"OneDay"`, Valid: true}, row.AlertSecond)
}

func TestEncodeEmptyOptionals(t *testing.T) {
	e := &domain.Event{
		UID:   "x",
		Start: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	row := codec.Encode(e)

	assert.False(t, row.Location.Valid)
	assert.False(t, row.RepeatUntil.Valid)
	assert.False(t, row.AlertSecond.Valid)
	assert.Equal(t, "[]", row.Invitees)
	assert.Equal(t, "[]", row.ExceptionDates)
	assert.Equal(t, `"Never"`, row.Repeat)
	assert.Equal(t, `"None"`, row.Alert)
	assert.Equal(t, `"None"`, row.TravelTime)
}

func TestDecodeLegacyBareTags(t *testing.T) {
	row := codec.Row{
		UID:            "legacy",
		CalendarID:     "personal",
		Summary:        "Old",
		StartTime:      "2024-05-01T12:00:00Z",
		EndTime:        "2024-05-01T13:00:00Z",
		TravelTime:     "None",
		Repeat:         "Never",
		ExceptionDates: "[]",
		Invitees:       "[]",
		Attachments:    "[]",
		Alert:          "None",
		CreatedAt:      "2024-05-01 10:00:00",
		UpdatedAt:      "2024-05-01 10:00:00",
	}

	e, warns := codec.Decode(row)
	require.Empty(t, warns)
	assert.Equal(t, domain.Never, e.Repeat)
	assert.Equal(t, domain.AlertNone, e.Alert)
	assert.Equal(t, domain.TravelNone, e.TravelTime)
	assert.Equal(t, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC), e.CreatedAt)
	assert.Nil(t, e.Invitees)
}

func TestDecodeCorruptFieldsDegrade(t *testing.T) {
	row := codec.Encode(fullEvent(domain.Weekly, domain.AlertOneHour, domain.TravelOneHour))
	row.Repeat = `{"Hourly":true}`
	row.Alert = `"Sometimes"`
	row.TravelTime = `[1,2]`
	row.Invitees = `not json`
	row.ExceptionDates = `["2025-01-13","garbage"]`
	row.AlertSecond = sql.NullString{String: `{`, Valid: true}
	row.RepeatUntil = sql.NullString{String: "31/03/2025", Valid: true}

	e, warns := codec.Decode(row)

	assert.Equal(t, "evt-1", e.UID)
	assert.Equal(t, "Planning", e.Summary)
	assert.Equal(t, domain.Never, e.Repeat)
	assert.Equal(t, domain.AlertNone, e.Alert)
	assert.Equal(t, domain.TravelNone, e.TravelTime)
	assert.Nil(t, e.Invitees)
	assert.Nil(t, e.AlertSecond)
	assert.Nil(t, e.RepeatUntil)
	assert.Equal(t, []domain.Date{domain.NewDate(2025, 1, 13)}, e.ExceptionDates)
	assert.Equal(t, []string{"https://example.com/agenda.pdf"}, e.Attachments)

	fields := make([]string, 0, len(warns))
	for _, w := range warns {
		fields = append(fields, w.Field)
	}
	assert.ElementsMatch(t, []string{
		"repeat", "alert", "travel_time", "invitees", "exception_dates", "alert_second", "repeat_until",
	}, fields)
}

func TestDecodeBadTimes(t *testing.T) {
	row := codec.Encode(fullEvent(domain.Never, domain.AlertNone, domain.TravelNone))
	row.EndTime = "yesterday"

	e, warns := codec.Decode(row)
	require.Len(t, warns, 1)
	assert.Equal(t, "end_time", warns[0].Field)
	assert.Equal(t, e.Start, e.End)
	assert.ErrorContains(t, warns[0], "end_time")
}
