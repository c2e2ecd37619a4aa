package scheduler_test

import (
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tazhate/solcal/config"
	"github.com/tazhate/solcal/internal/domain"
	"github.com/tazhate/solcal/internal/recurrence"
	"github.com/tazhate/solcal/internal/scheduler"
)

type fakeAgenda struct {
	events []*domain.Event
	err    error
}

func (f *fakeAgenda) Agenda(from, to domain.Date) ([]domain.Occurrence, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []domain.Occurrence
	for _, e := range f.events {
		out = append(out, recurrence.Expand(e, from, to).Occurrences...)
	}
	return out, nil
}

type fakeSender struct {
	chats    []int64
	messages []string
	err      error
}

func (f *fakeSender) SendMessage(chatID int64, text string) error {
	if f.err != nil {
		return f.err
	}
	f.chats = append(f.chats, chatID)
	f.messages = append(f.messages, text)
	return nil
}

func newScheduler(agenda scheduler.AgendaSource, sender *fakeSender, clock *time.Time) *scheduler.Scheduler {
	cfg := &config.Config{Timezone: time.UTC, AlertCheckCron: "* * * * *"}
	s := scheduler.New(cfg, agenda, zerolog.Nop())
	s.SetSender(sender, 42)
	s.SetClock(func() time.Time { return *clock })
	return s
}

func TestCheckAlertsFiresOncePerOccurrence(t *testing.T) {
	second := domain.AlertOneDay
	standup := &domain.Event{
		UID:         "standup",
		CalendarID:  "work",
		Summary:     "Standup <daily>",
		Location:    "Room 1",
		Start:       time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC),
		End:         time.Date(2025, 1, 6, 9, 15, 0, 0, time.UTC),
		Repeat:      domain.Daily,
		Alert:       domain.AlertFifteenMinutes,
		AlertSecond: &second,
		TravelTime:  domain.TravelNone,
	}
	sender := &fakeSender{}
	now := time.Date(2025, 1, 8, 8, 45, 0, 0, time.UTC)
	s := newScheduler(&fakeAgenda{events: []*domain.Event{standup}}, sender, &now)

	n, err := s.CheckAlerts()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Len(t, sender.messages, 1)
	assert.Equal(t, []int64{42}, sender.chats)
	assert.Contains(t, sender.messages[0], "Standup &lt;daily&gt;")
	assert.Contains(t, sender.messages[0], "Room 1")
	assert.Contains(t, sender.messages[0], "in 15 min")

	n, err = s.CheckAlerts()
	require.NoError(t, err)
	assert.Zero(t, n)

	// one day before tomorrow's standup
	now = time.Date(2025, 1, 8, 9, 0, 0, 0, time.UTC)
	n, err = s.CheckAlerts()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Contains(t, sender.messages[1], "in 1 day")

	now = time.Date(2025, 1, 9, 8, 45, 0, 0, time.UTC)
	n, err = s.CheckAlerts()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestCheckAlertsIgnoresNoneAndExceptions(t *testing.T) {
	quiet := &domain.Event{
		UID: "quiet", Summary: "Quiet",
		Start: time.Date(2025, 1, 8, 9, 0, 0, 0, time.UTC), End: time.Date(2025, 1, 8, 10, 0, 0, 0, time.UTC),
		Repeat: domain.Never, Alert: domain.AlertNone,
	}
	skipped := &domain.Event{
		UID: "skipped", Summary: "Skipped",
		Start: time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC), End: time.Date(2025, 1, 6, 10, 0, 0, 0, time.UTC),
		Repeat: domain.Daily, Alert: domain.AlertAtTime,
		ExceptionDates: []domain.Date{domain.NewDate(2025, time.January, 8)},
	}
	sender := &fakeSender{}
	now := time.Date(2025, 1, 8, 9, 0, 0, 0, time.UTC)
	s := newScheduler(&fakeAgenda{events: []*domain.Event{quiet, skipped}}, sender, &now)

	n, err := s.CheckAlerts()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCheckAlertsSkipsFailedSends(t *testing.T) {
	e := &domain.Event{
		UID: "call", CalendarID: "personal", Summary: "Call",
		Start: time.Date(2025, 1, 8, 9, 0, 0, 0, time.UTC), End: time.Date(2025, 1, 8, 9, 30, 0, 0, time.UTC),
		Repeat: domain.Never, Alert: domain.AlertAtTime, TravelTime: domain.TravelThirtyMinutes,
	}
	sender := &fakeSender{err: errors.New("offline")}
	now := time.Date(2025, 1, 8, 9, 0, 0, 0, time.UTC)
	s := newScheduler(&fakeAgenda{events: []*domain.Event{e}}, sender, &now)

	n, err := s.CheckAlerts()
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, sender.messages)
}

func TestCheckAlertsPropagatesAgendaErrors(t *testing.T) {
	now := time.Date(2025, 1, 8, 9, 0, 0, 0, time.UTC)
	s := newScheduler(&fakeAgenda{err: errors.New("db locked")}, &fakeSender{}, &now)

	_, err := s.CheckAlerts()
	assert.Error(t, err)
}
