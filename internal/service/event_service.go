package service

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tazhate/solcal/internal/calendars"
	"github.com/tazhate/solcal/internal/display"
	"github.com/tazhate/solcal/internal/domain"
	"github.com/tazhate/solcal/internal/ical"
	"github.com/tazhate/solcal/internal/recurrence"
	"github.com/tazhate/solcal/internal/storage"
)

var (
	ErrNotRecurring = errors.New("event does not repeat")
	ErrInvalidEvent = errors.New("invalid event")
)

// EventService is the write and read path for events across calendars
type EventService struct {
	storage    *storage.Storage
	calendars  *calendars.Manager
	expander   *recurrence.Expander
	aggregator *display.Aggregator
	log        zerolog.Logger
}

func NewEventService(s *storage.Storage, cals *calendars.Manager, expander *recurrence.Expander, log zerolog.Logger) *EventService {
	return &EventService{
		storage:    s,
		calendars:  cals,
		expander:   expander,
		aggregator: display.NewAggregator(expander),
		log:        log.With().Str("component", "events").Logger(),
	}
}

func (s *EventService) requireCalendar(calendarID string) error {
	if _, ok := s.calendars.Get(calendarID); !ok {
		return fmt.Errorf("%s: %w", calendarID, calendars.ErrCalendarNotFound)
	}
	return nil
}

// normalize fills defaults and checks the stored invariants
func normalize(e *domain.Event) error {
	e.Summary = strings.TrimSpace(e.Summary)
	if e.Summary == "" {
		return fmt.Errorf("%w: summary cannot be empty", ErrInvalidEvent)
	}
	if e.Alert == "" {
		e.Alert = domain.AlertNone
	}
	if e.TravelTime == "" {
		e.TravelTime = domain.TravelNone
	}
	if !e.Alert.Valid() || (e.AlertSecond != nil && !e.AlertSecond.Valid()) {
		return fmt.Errorf("%w: unknown alert", ErrInvalidEvent)
	}
	if !e.TravelTime.Valid() {
		return fmt.Errorf("%w: unknown travel time %q", ErrInvalidEvent, e.TravelTime)
	}
	if e.End.IsZero() {
		e.End = e.Start
	}
	e.Start = e.Start.UTC()
	e.End = e.End.UTC()
	if err := e.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	return nil
}

// AddEvent stores a new master event. A missing uid is generated.
func (s *EventService) AddEvent(calendarID string, e *domain.Event) error {
	if err := s.requireCalendar(calendarID); err != nil {
		return err
	}
	if e.UID == "" {
		e.UID = uuid.NewString()
	}
	if err := normalize(e); err != nil {
		return err
	}
	if err := s.storage.InsertEvent(calendarID, e); err != nil {
		return fmt.Errorf("add event: %w", err)
	}
	s.log.Debug().Str("calendar_id", calendarID).Str("uid", e.UID).Msg("event added")
	return nil
}

// GetEvent returns the master event for a uid or occurrence id, nil if absent
func (s *EventService) GetEvent(calendarID, id string) (*domain.Event, error) {
	return s.lookup(calendarID, id)
}

// lookup resolves id to a stored event. An exact uid match wins, so a master
// whose own uid ends in _YYYYMMDD stays addressable; otherwise the suffix is
// read as an occurrence and its series master is returned.
func (s *EventService) lookup(calendarID, id string) (*domain.Event, error) {
	e, err := s.storage.GetEvent(calendarID, id)
	if err != nil || e != nil {
		return e, err
	}
	if master := recurrence.MasterUID(id); master != id {
		return s.storage.GetEvent(calendarID, master)
	}
	return nil, nil
}

// ListEvents returns every master event of a calendar
func (s *EventService) ListEvents(calendarID string) ([]*domain.Event, error) {
	if err := s.requireCalendar(calendarID); err != nil {
		return nil, err
	}
	return s.storage.ListEventsForCalendar(calendarID)
}

// UpdateEvent replaces the master event addressed by e.UID, which may be an
// occurrence id. Returns false when no such event exists.
func (s *EventService) UpdateEvent(calendarID string, e *domain.Event) (bool, error) {
	if err := normalize(e); err != nil {
		return false, err
	}
	existing, err := s.lookup(calendarID, e.UID)
	if err != nil {
		return false, fmt.Errorf("update event: %w", err)
	}
	if existing == nil {
		return false, nil
	}
	return s.replace(calendarID, existing, e)
}

// replace overwrites existing with e, keeping the stored uid and creation time
func (s *EventService) replace(calendarID string, existing, e *domain.Event) (bool, error) {
	e.UID = existing.UID
	e.CreatedAt = existing.CreatedAt
	ok, err := s.storage.UpdateEvent(calendarID, e)
	if err != nil {
		return false, fmt.Errorf("update event: %w", err)
	}
	return ok, nil
}

// DeleteEvent removes a whole series. id may be an occurrence id.
func (s *EventService) DeleteEvent(calendarID, id string) (bool, error) {
	existing, err := s.lookup(calendarID, id)
	if err != nil {
		return false, fmt.Errorf("delete event: %w", err)
	}
	if existing == nil {
		return false, nil
	}
	return s.remove(calendarID, existing.UID)
}

func (s *EventService) remove(calendarID, uid string) (bool, error) {
	ok, err := s.storage.DeleteEvent(calendarID, uid)
	if err != nil {
		return false, fmt.Errorf("delete event: %w", err)
	}
	return ok, nil
}

// DeleteOccurrence hides a single instance of a series by adding its date to
// the exception dates. Deleting the same occurrence twice is a no-op.
func (s *EventService) DeleteOccurrence(calendarID, occurrenceID string) error {
	date, ok := recurrence.OccurrenceDate(occurrenceID)
	if !ok {
		return fmt.Errorf("%s: %w", occurrenceID, ErrNotRecurring)
	}
	uid := recurrence.MasterUID(occurrenceID)

	master, err := s.storage.GetEvent(calendarID, uid)
	if err != nil {
		return fmt.Errorf("delete occurrence: %w", err)
	}
	if master == nil {
		return fmt.Errorf("%s/%s: %w", calendarID, uid, storage.ErrNotFound)
	}
	if !master.IsRecurring() {
		return fmt.Errorf("%s: %w", uid, ErrNotRecurring)
	}
	if !master.AddException(date) {
		return nil
	}
	if _, err := s.storage.UpdateEvent(calendarID, master); err != nil {
		return fmt.Errorf("delete occurrence: %w", err)
	}
	s.log.Info().Str("calendar_id", calendarID).Str("uid", uid).Str("date", date.String()).Msg("occurrence deleted")
	return nil
}

// ImportResult summarizes one import
type ImportResult struct {
	Imported     int      `json:"imported"`
	Skipped      int      `json:"skipped"`
	Failed       int      `json:"failed"`
	ImportedUIDs []string `json:"imported_uids"`
	Errors       []string `json:"errors,omitempty"`
}

// Import inserts events into a calendar. Events whose uid already exists
// there are skipped; invalid events are counted as failed. The returned
// ImportedUIDs can be handed to RevertImport.
func (s *EventService) Import(calendarID string, events []*domain.Event) (*ImportResult, error) {
	if err := s.requireCalendar(calendarID); err != nil {
		return nil, err
	}

	res := &ImportResult{}
	for _, e := range events {
		if e.UID == "" {
			e.UID = uuid.NewString()
		}
		if e.Summary == "" {
			e.Summary = "(untitled)"
		}
		if err := normalize(e); err != nil {
			res.Failed++
			res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", e.UID, err))
			continue
		}

		err := s.storage.InsertEvent(calendarID, e)
		switch {
		case errors.Is(err, storage.ErrConflict):
			res.Skipped++
		case err != nil:
			res.Failed++
			res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", e.UID, err))
		default:
			res.Imported++
			res.ImportedUIDs = append(res.ImportedUIDs, e.UID)
		}
	}

	s.log.Info().
		Str("calendar_id", calendarID).
		Int("imported", res.Imported).
		Int("skipped", res.Skipped).
		Int("failed", res.Failed).
		Msg("import finished")
	return res, nil
}

// ImportICS decodes an iCalendar stream and imports its events.
// Unreadable VEVENTs are counted as failed.
func (s *EventService) ImportICS(calendarID string, r io.Reader, loc *time.Location) (*ImportResult, error) {
	decoded, err := ical.Decode(r, loc)
	if err != nil {
		return nil, fmt.Errorf("import ics: %w", err)
	}
	res, err := s.Import(calendarID, decoded.Events)
	if err != nil {
		return nil, err
	}
	for _, invalid := range decoded.Invalid {
		res.Failed++
		res.Errors = append(res.Errors, invalid.Error())
	}
	return res, nil
}

// RevertImport deletes the given uids from a calendar and returns how many
// were removed.
func (s *EventService) RevertImport(calendarID string, uids []string) (int, error) {
	removed := 0
	for _, uid := range uids {
		ok, err := s.storage.DeleteEvent(calendarID, uid)
		if err != nil {
			return removed, fmt.Errorf("revert import: %w", err)
		}
		if ok {
			removed++
		}
	}
	s.log.Info().Str("calendar_id", calendarID).Int("removed", removed).Msg("import reverted")
	return removed, nil
}

// ExportICS writes every master event of a calendar as one VCALENDAR
func (s *EventService) ExportICS(calendarID string, w io.Writer) (int, error) {
	events, err := s.ListEvents(calendarID)
	if err != nil {
		return 0, err
	}
	if err := ical.Encode(w, events); err != nil {
		return 0, err
	}
	return len(events), nil
}

// sources loads the enabled calendars with every event that can have an
// instance on or before to.
func (s *EventService) sources(to domain.Date) ([]display.Source, error) {
	enabled := s.calendars.Enabled()
	out := make([]display.Source, 0, len(enabled))
	for _, cal := range enabled {
		events, err := s.storage.ListEventsInRange(cal.ID, to)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", cal.ID, err)
		}
		out = append(out, display.Source{ID: cal.ID, Color: cal.Color, Enabled: true, Events: events})
	}
	return out, nil
}

// MonthView returns the padded month grid of every enabled calendar
func (s *EventService) MonthView(year int, month time.Month) (display.Days, error) {
	_, to := display.MonthRange(year, month)
	src, err := s.sources(to)
	if err != nil {
		return nil, err
	}
	return s.aggregator.Month(src, year, month), nil
}

// WeekView returns the given days of every enabled calendar
func (s *EventService) WeekView(days []domain.Date) (display.Days, error) {
	if len(days) == 0 {
		return make(display.Days), nil
	}
	src, err := s.sources(days[len(days)-1])
	if err != nil {
		return nil, err
	}
	return s.aggregator.Week(src, days), nil
}

// Agenda lists the occurrences of every enabled calendar in [from, to]
// ordered by start. Occurrence.Event.CalendarID names the source calendar.
func (s *EventService) Agenda(from, to domain.Date) ([]domain.Occurrence, error) {
	src, err := s.sources(to)
	if err != nil {
		return nil, err
	}
	var out []domain.Occurrence
	for _, cal := range src {
		for _, e := range cal.Events {
			out = append(out, s.expander.Expand(e, from, to).Occurrences...)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Event.Start.Before(out[j].Event.Start)
	})
	return out, nil
}
