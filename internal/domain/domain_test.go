package domain_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tazhate/solcal/internal/domain"
)

func TestAddMonthsClampsDay(t *testing.T) {
	jan31 := domain.NewDate(2025, time.January, 31)

	feb, ok := jan31.AddMonths(1)
	require.True(t, ok)
	assert.Equal(t, domain.NewDate(2025, time.February, 28), feb)

	leap, ok := domain.NewDate(2024, time.February, 29).AddMonths(12)
	require.True(t, ok)
	assert.Equal(t, domain.NewDate(2025, time.February, 28), leap)

	dec, ok := jan31.AddMonths(-1)
	require.True(t, ok)
	assert.Equal(t, domain.NewDate(2024, time.December, 31), dec)

	_, ok = domain.Date{Year: 9999, Month: time.December, Day: 1}.AddMonths(1)
	assert.False(t, ok)
}

func TestDateHelpers(t *testing.T) {
	d := domain.NewDate(2025, time.March, 9)
	assert.Equal(t, "2025-03-09", d.String())
	assert.Equal(t, "20250309", d.Compact())
	assert.Equal(t, 3, d.DaysUntil(domain.NewDate(2025, time.March, 12)))
	assert.Equal(t, 739251, domain.NewDate(1, time.January, 1).DaysUntil(domain.NewDate(2025, time.January, 1)))
	assert.Equal(t, -3, d.DaysUntil(domain.NewDate(2025, time.March, 6)))
	assert.True(t, d.Before(d.AddDays(1)))
	assert.Equal(t, time.Date(2025, 3, 9, 7, 30, 0, 0, time.UTC),
		d.At(time.Date(2001, 1, 1, 7, 30, 0, 0, time.UTC)))
	assert.Equal(t, 29, domain.DaysIn(2024, time.February))

	_, err := domain.ParseDate("2025-02-30")
	assert.Error(t, err)
}

func TestRepeatJSON(t *testing.T) {
	for _, r := range []domain.Repeat{domain.Never, domain.Weekly, domain.Custom("FREQ=WEEKLY;BYDAY=MO")} {
		data, err := json.Marshal(r)
		require.NoError(t, err)
		var back domain.Repeat
		require.NoError(t, json.Unmarshal(data, &back))
		assert.Equal(t, r, back)
	}

	data, _ := json.Marshal(domain.Custom("FREQ=DAILY"))
	assert.JSONEq(t, `{"Custom":"FREQ=DAILY"}`, string(data))

	var r domain.Repeat
	assert.Error(t, json.Unmarshal([]byte(`"Fortnightly"`), &r))
	assert.Error(t, json.Unmarshal([]byte(`{"Other":"x"}`), &r))
}

func TestAlertOffsets(t *testing.T) {
	_, ok := domain.AlertNone.Offset()
	assert.False(t, ok)
	assert.True(t, domain.AlertNone.Valid())
	assert.False(t, domain.AlertTime("Soon").Valid())
	assert.Equal(t, domain.AlertOneDay, domain.AlertForOffset(24*time.Hour))
	assert.Equal(t, domain.AlertNone, domain.AlertForOffset(7*time.Minute))
}

func TestEventExceptionsAndClone(t *testing.T) {
	until := domain.NewDate(2025, time.June, 1)
	e := &domain.Event{UID: "a", Repeat: domain.Daily, RepeatUntil: &until}
	d := domain.NewDate(2025, time.May, 5)

	assert.True(t, e.AddException(d))
	assert.False(t, e.AddException(d))
	assert.True(t, e.HasException(d))

	c := e.Clone()
	c.ExceptionDates[0] = domain.NewDate(2025, time.May, 6)
	*c.RepeatUntil = domain.NewDate(2026, time.June, 1)
	assert.Equal(t, d, e.ExceptionDates[0])
	assert.Equal(t, until, *e.RepeatUntil)
}
