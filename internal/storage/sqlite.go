package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tazhate/solcal/internal/codec"
	"github.com/tazhate/solcal/internal/domain"

	_ "github.com/mattn/go-sqlite3"
)

// Storage is the event store. All access is serialized by mu.
type Storage struct {
	mu  sync.Mutex
	db  *sql.DB
	log zerolog.Logger
}

func New(dbPath string, log zerolog.Logger) (*Storage, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, ioErr("create db dir", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, ioErr("open db", err)
	}
	// one connection keeps the single-owner model and makes :memory: usable
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, ioErr("ping db", err)
	}

	s := &Storage{db: db, log: log.With().Str("component", "storage").Logger()}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	s.log.Info().Str("path", dbPath).Msg("database opened")
	return s, nil
}

func (s *Storage) Close() error {
	return s.db.Close()
}

// Version returns the schema version stamped in the meta table
func (s *Storage) Version() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readVersion()
}

const selectEvent = `SELECT ` + eventColumns + ` FROM events`

func (s *Storage) InsertEvent(calendarID string, e *domain.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC().Truncate(time.Second)
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	if e.UpdatedAt.IsZero() {
		e.UpdatedAt = now
	}
	e.CalendarID = calendarID
	r := codec.Encode(e)

	_, err := s.db.Exec(`INSERT INTO events (`+eventColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.UID, calendarID, r.Summary, r.Location, r.AllDay, r.StartTime, r.EndTime,
		r.TravelTime, r.Repeat, r.RepeatUntil, r.ExceptionDates, r.Invitees, r.Alert,
		r.AlertSecond, r.Attachments, r.URL, r.Notes, r.CreatedAt, r.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("insert %s/%s: %w", calendarID, e.UID, ErrConflict)
	}
	return ioErr("insert event", err)
}

// UpdateEvent replaces every field of the row keyed by (calendarID, e.UID)
// and reports whether such a row existed.
func (s *Storage) UpdateEvent(calendarID string, e *domain.Event) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e.CalendarID = calendarID
	e.UpdatedAt = time.Now().UTC().Truncate(time.Second)
	r := codec.Encode(e)

	res, err := s.db.Exec(`UPDATE events SET
			summary = ?, location = ?, all_day = ?, start_time = ?, end_time = ?,
			travel_time = ?, repeat = ?, repeat_until = ?, exception_dates = ?,
			invitees = ?, alert = ?, alert_second = ?, attachments = ?, url = ?, notes = ?,
			updated_at = ?
		WHERE calendar_id = ? AND uid = ?`,
		r.Summary, r.Location, r.AllDay, r.StartTime, r.EndTime,
		r.TravelTime, r.Repeat, r.RepeatUntil, r.ExceptionDates,
		r.Invitees, r.Alert, r.AlertSecond, r.Attachments, r.URL, r.Notes,
		r.UpdatedAt, calendarID, r.UID,
	)
	if err != nil {
		return false, ioErr("update event", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, ioErr("update event", err)
	}
	return n > 0, nil
}

// DeleteEvent removes one master event and reports whether it existed
func (s *Storage) DeleteEvent(calendarID, uid string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`DELETE FROM events WHERE calendar_id = ? AND uid = ?`, calendarID, uid)
	if err != nil {
		return false, ioErr("delete event", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, ioErr("delete event", err)
	}
	return n > 0, nil
}

// DeleteEventsForCalendar removes every event of a calendar and returns the count
func (s *Storage) DeleteEventsForCalendar(calendarID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`DELETE FROM events WHERE calendar_id = ?`, calendarID)
	if err != nil {
		return 0, ioErr("delete calendar events", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, ioErr("delete calendar events", err)
	}
	s.log.Info().Str("calendar_id", calendarID).Int64("count", n).Msg("calendar events deleted")
	return n, nil
}

// GetEvent returns nil, nil when the event does not exist
func (s *Storage) GetEvent(calendarID, uid string) (*domain.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.db.QueryRow(selectEvent+` WHERE calendar_id = ? AND uid = ?`, calendarID, uid)
	e, err := s.scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, ioErr("get event", err)
	}
	return e, nil
}

// ListEventsForCalendar returns the master events of a calendar ordered by start
func (s *Storage) ListEventsForCalendar(calendarID string) ([]*domain.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(selectEvent+` WHERE calendar_id = ? ORDER BY start_time, uid`, calendarID)
	if err != nil {
		return nil, ioErr("list events", err)
	}
	defer rows.Close()

	var events []*domain.Event
	for rows.Next() {
		e, err := s.scanEvent(rows)
		if err != nil {
			return nil, ioErr("scan event", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, ioErr("list events", err)
	}
	return events, nil
}

// ListEventsInRange returns master events of a calendar that may produce
// occurrences on or before to: every recurring series plus single events
// starting no later than to.
func (s *Storage) ListEventsInRange(calendarID string, to domain.Date) ([]*domain.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	limit := codec.FormatTimestamp(to.AddDays(1).Time())
	rows, err := s.db.Query(selectEvent+`
		WHERE calendar_id = ? AND (start_time < ? OR repeat NOT IN ('"Never"', 'Never'))
		ORDER BY start_time, uid`, calendarID, limit)
	if err != nil {
		return nil, ioErr("list events", err)
	}
	defer rows.Close()

	var events []*domain.Event
	for rows.Next() {
		e, err := s.scanEvent(rows)
		if err != nil {
			return nil, ioErr("scan event", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, ioErr("list events", err)
	}
	return events, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func (s *Storage) scanEvent(sc scanner) (*domain.Event, error) {
	var r codec.Row
	err := sc.Scan(
		&r.UID, &r.CalendarID, &r.Summary, &r.Location, &r.AllDay, &r.StartTime, &r.EndTime,
		&r.TravelTime, &r.Repeat, &r.RepeatUntil, &r.ExceptionDates, &r.Invitees, &r.Alert,
		&r.AlertSecond, &r.Attachments, &r.URL, &r.Notes, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	e, warns := codec.Decode(r)
	for _, w := range warns {
		s.log.Warn().
			Str("calendar_id", r.CalendarID).
			Str("uid", r.UID).
			Str("field", w.Field).
			Err(w.Err).
			Msg("stored field could not be decoded, using default")
	}
	return e, nil
}
