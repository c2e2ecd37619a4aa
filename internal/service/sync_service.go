package service

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/rs/zerolog"

	"github.com/tazhate/solcal/internal/domain"
)

// EventSource is a remote calendar that can be pulled
type EventSource interface {
	GetEvents(ctx context.Context, calendarPath string, from, to time.Time) ([]*domain.Event, error)
}

// SyncResult contains sync operation results
type SyncResult struct {
	Added   int      `json:"added"`
	Updated int      `json:"updated"`
	Deleted int      `json:"deleted"`
	Errors  []string `json:"errors,omitempty"`
}

// SyncService mirrors one remote calendar into a local one
type SyncService struct {
	events     *EventService
	source     EventSource
	remotePath string
	calendarID string
	lookBack   time.Duration
	lookAhead  time.Duration
	now        func() time.Time
	log        zerolog.Logger
}

func NewSyncService(events *EventService, source EventSource, remotePath, calendarID string, log zerolog.Logger) *SyncService {
	return &SyncService{
		events:     events,
		source:     source,
		remotePath: remotePath,
		calendarID: calendarID,
		lookBack:   30 * 24 * time.Hour,
		lookAhead:  90 * 24 * time.Hour,
		now:        time.Now,
		log:        log.With().Str("component", "sync").Logger(),
	}
}

// SetClock replaces the time source
func (s *SyncService) SetClock(now func() time.Time) {
	s.now = now
}

// Sync pulls the remote window [now-30d, now+90d) and updates or inserts each
// event into the local calendar. Local events starting inside the window that
// the remote no longer returns are deleted.
func (s *SyncService) Sync(ctx context.Context) (*SyncResult, error) {
	if s.source == nil || s.remotePath == "" {
		return nil, fmt.Errorf("CalDAV not configured")
	}
	if err := s.events.requireCalendar(s.calendarID); err != nil {
		return nil, err
	}

	today := s.now().UTC().Truncate(24 * time.Hour)
	from, to := today.Add(-s.lookBack), today.Add(s.lookAhead)

	remote, err := s.source.GetEvents(ctx, s.remotePath, from, to)
	if err != nil {
		return nil, fmt.Errorf("get remote events: %w", err)
	}

	local, err := s.events.ListEvents(s.calendarID)
	if err != nil {
		return nil, fmt.Errorf("get local events: %w", err)
	}
	localByUID := make(map[string]*domain.Event, len(local))
	for _, e := range local {
		localByUID[e.UID] = e
	}

	result := &SyncResult{}
	seen := make(map[string]bool, len(remote))
	for _, re := range remote {
		seen[re.UID] = true
		if re.Summary == "" {
			re.Summary = "(untitled)"
		}
		if err := normalize(re); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", re.UID, err))
			continue
		}
		existing, ok := localByUID[re.UID]
		if ok {
			if !changed(existing, re) {
				continue
			}
			ok, err := s.events.replace(s.calendarID, existing, re)
			if err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("update %s: %v", re.UID, err))
				continue
			}
			if !ok {
				result.Errors = append(result.Errors, fmt.Sprintf("update %s: event vanished", re.UID))
				continue
			}
			result.Updated++
			continue
		}
		if err := s.events.AddEvent(s.calendarID, re); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("create %s: %v", re.UID, err))
			continue
		}
		result.Added++
	}

	for uid, e := range localByUID {
		if seen[uid] || e.Start.Before(from) || !e.Start.Before(to) {
			continue
		}
		if _, err := s.events.remove(s.calendarID, uid); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("delete %s: %v", uid, err))
			continue
		}
		result.Deleted++
	}

	s.log.Info().
		Str("calendar_id", s.calendarID).
		Int("added", result.Added).
		Int("updated", result.Updated).
		Int("deleted", result.Deleted).
		Int("errors", len(result.Errors)).
		Msg("sync finished")
	return result, nil
}

// changed reports whether any synced field differs between the stored copy
// and the remote event
func changed(local, remote *domain.Event) bool {
	if local.Summary != remote.Summary || local.Location != remote.Location ||
		local.Notes != remote.Notes || local.URL != remote.URL {
		return true
	}
	if !local.Start.Equal(remote.Start) || !local.End.Equal(remote.End) || local.AllDay != remote.AllDay {
		return true
	}
	if local.Repeat != remote.Repeat || local.Alert != remote.Alert || local.TravelTime != remote.TravelTime {
		return true
	}
	if !equalPtr(local.RepeatUntil, remote.RepeatUntil) || !equalPtr(local.AlertSecond, remote.AlertSecond) {
		return true
	}
	return !slices.Equal(local.ExceptionDates, remote.ExceptionDates) ||
		!slices.Equal(local.Invitees, remote.Invitees) ||
		!slices.Equal(local.Attachments, remote.Attachments)
}

func equalPtr[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
