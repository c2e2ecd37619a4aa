// Package calendars keeps calendar metadata (name, color, enabled flag) in a
// YAML file next to the event database. Events themselves live in storage and
// only reference a calendar by id.
package calendars

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

var (
	ErrCalendarNotFound = errors.New("calendar not found")
	ErrInvalidCalendar  = errors.New("invalid calendar")
)

const (
	TypeLocal  = "local"
	TypeCalDAV = "caldav"
)

// Calendar is one entry of the calendars file
type Calendar struct {
	ID      string `yaml:"id" json:"id"`
	Name    string `yaml:"name" json:"name" validate:"required"`
	Color   string `yaml:"color" json:"color" validate:"required,hexcolor"`
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Type    string `yaml:"type" json:"type" validate:"omitempty,oneof=local caldav"`
}

type file struct {
	Calendars []Calendar `yaml:"calendars"`
}

// Defaults are written on first run
func Defaults() []Calendar {
	return []Calendar{
		{ID: "personal", Name: "Personal", Color: "#3B82F6", Enabled: true, Type: TypeLocal},
		{ID: "work", Name: "Work", Color: "#8B5CF6", Enabled: true, Type: TypeLocal},
	}
}

// EventPurger removes every event of a calendar
type EventPurger interface {
	DeleteEventsForCalendar(calendarID string) (int64, error)
}

// Update carries the fields to change; nil fields are left as they are
type Update struct {
	Name    *string
	Color   *string
	Enabled *bool
}

type Manager struct {
	mu        sync.RWMutex
	path      string
	calendars []Calendar
	events    EventPurger
	validate  *validator.Validate
	log       zerolog.Logger
}

// Open loads the calendars file. A missing or empty file is replaced by the
// default calendars.
func Open(path string, events EventPurger, log zerolog.Logger) (*Manager, error) {
	if path == "" {
		return nil, errors.New("calendars path is empty")
	}
	m := &Manager{
		path:     path,
		events:   events,
		validate: validator.New(),
		log:      log.With().Str("component", "calendars").Logger(),
	}

	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("read calendars: %w", err)
	}
	if err == nil {
		var f file
		if err := yaml.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("parse calendars: %w", err)
		}
		m.calendars = f.Calendars
	}

	if len(m.calendars) == 0 {
		m.log.Info().Msg("no saved calendars, creating defaults")
		m.calendars = Defaults()
		if err := m.save(); err != nil {
			return nil, err
		}
	}
	for i := range m.calendars {
		if m.calendars[i].Type == "" {
			m.calendars[i].Type = TypeLocal
		}
	}

	m.log.Info().Int("count", len(m.calendars)).Msg("calendars loaded")
	return m, nil
}

// List returns all calendars in file order
func (m *Manager) List() []Calendar {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Calendar(nil), m.calendars...)
}

// Enabled returns only enabled calendars
func (m *Manager) Enabled() []Calendar {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Calendar
	for _, c := range m.calendars {
		if c.Enabled {
			out = append(out, c)
		}
	}
	return out
}

func (m *Manager) Get(id string) (Calendar, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if i := m.index(id); i >= 0 {
		return m.calendars[i], true
	}
	return Calendar{}, false
}

// Create adds an enabled local calendar with an id derived from name
func (m *Manager) Create(name, color string) (Calendar, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cal := Calendar{
		Name:    strings.TrimSpace(name),
		Color:   color,
		Enabled: true,
		Type:    TypeLocal,
	}
	if err := m.validate.Struct(cal); err != nil {
		return Calendar{}, fmt.Errorf("%w: %v", ErrInvalidCalendar, err)
	}
	cal.ID = m.generateID(cal.Name)
	if cal.ID == "" {
		return Calendar{}, fmt.Errorf("%w: name %q has no usable characters", ErrInvalidCalendar, name)
	}

	m.calendars = append(m.calendars, cal)
	if err := m.save(); err != nil {
		m.calendars = m.calendars[:len(m.calendars)-1]
		return Calendar{}, err
	}
	m.log.Info().Str("calendar_id", cal.ID).Msg("calendar created")
	return cal, nil
}

// Update changes name, color or enabled flag
func (m *Manager) Update(id string, upd Update) (Calendar, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.index(id)
	if i < 0 {
		return Calendar{}, fmt.Errorf("%s: %w", id, ErrCalendarNotFound)
	}

	cal := m.calendars[i]
	if upd.Name != nil {
		cal.Name = strings.TrimSpace(*upd.Name)
	}
	if upd.Color != nil {
		cal.Color = *upd.Color
	}
	if upd.Enabled != nil {
		cal.Enabled = *upd.Enabled
	}
	if err := m.validate.Struct(cal); err != nil {
		return Calendar{}, fmt.Errorf("%w: %v", ErrInvalidCalendar, err)
	}

	prev := m.calendars[i]
	m.calendars[i] = cal
	if err := m.save(); err != nil {
		m.calendars[i] = prev
		return Calendar{}, err
	}
	return cal, nil
}

// ToggleEnabled flips the enabled flag and returns the new value
func (m *Manager) ToggleEnabled(id string) (bool, error) {
	cal, ok := m.Get(id)
	if !ok {
		return false, fmt.Errorf("%s: %w", id, ErrCalendarNotFound)
	}
	enabled := !cal.Enabled
	if _, err := m.Update(id, Update{Enabled: &enabled}); err != nil {
		return false, err
	}
	return enabled, nil
}

// Delete removes the calendar and all of its events. A failure to purge
// events is logged; the calendar is removed regardless.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.index(id)
	if i < 0 {
		return fmt.Errorf("%s: %w", id, ErrCalendarNotFound)
	}

	if m.events != nil {
		n, err := m.events.DeleteEventsForCalendar(id)
		if err != nil {
			m.log.Error().Err(err).Str("calendar_id", id).Msg("failed to delete calendar events")
		} else {
			m.log.Info().Str("calendar_id", id).Int64("count", n).Msg("deleted calendar events")
		}
	}

	m.calendars = append(m.calendars[:i:i], m.calendars[i+1:]...)
	return m.save()
}

// GenerateID derives a unique id from a display name
func (m *Manager) GenerateID(name string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.generateID(name)
}

func (m *Manager) generateID(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r == ' ':
			b.WriteRune('-')
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		}
	}
	base := b.String()
	if base == "" {
		return ""
	}

	id := base
	for n := 1; m.index(id) >= 0; n++ {
		id = fmt.Sprintf("%s-%d", base, n)
	}
	return id
}

func (m *Manager) index(id string) int {
	for i, c := range m.calendars {
		if c.ID == id {
			return i
		}
	}
	return -1
}

// save writes the file atomically via a temp file in the same directory
func (m *Manager) save() error {
	dir := filepath.Dir(m.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create calendars dir: %w", err)
	}

	data, err := yaml.Marshal(file{Calendars: m.calendars})
	if err != nil {
		return fmt.Errorf("encode calendars: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".calendars-*.tmp")
	if err != nil {
		return fmt.Errorf("save calendars: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("save calendars: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("save calendars: %w", err)
	}
	if err := os.Rename(tmp.Name(), m.path); err != nil {
		return fmt.Errorf("save calendars: %w", err)
	}
	return nil
}
