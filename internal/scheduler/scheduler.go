package scheduler

import (
	"context"
	"fmt"
	"html"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/tazhate/solcal/config"
	"github.com/tazhate/solcal/internal/domain"
	"github.com/tazhate/solcal/internal/service"
)

// alertHorizon is how far ahead occurrences are expanded when looking for alerts
const alertHorizon = 7

type MessageSender interface {
	SendMessage(chatID int64, text string) error
}

// AgendaSource lists expanded occurrences of the enabled calendars
type AgendaSource interface {
	Agenda(from, to domain.Date) ([]domain.Occurrence, error)
}

// Syncer pulls a remote calendar
type Syncer interface {
	Sync(ctx context.Context) (*service.SyncResult, error)
}

type Scheduler struct {
	cron   *cron.Cron
	cfg    *config.Config
	agenda AgendaSource
	syncer Syncer
	sender MessageSender
	chatID int64
	now    func() time.Time
	log    zerolog.Logger

	mu        sync.Mutex
	lastCheck time.Time
	sent      map[string]bool
}

func New(cfg *config.Config, agenda AgendaSource, log zerolog.Logger) *Scheduler {
	location := cfg.Timezone
	if location == nil {
		location = time.UTC
	}

	return &Scheduler{
		cron:   cron.New(cron.WithLocation(location)),
		cfg:    cfg,
		agenda: agenda,
		now:    time.Now,
		sent:   make(map[string]bool),
		log:    log.With().Str("component", "scheduler").Logger(),
	}
}

func (s *Scheduler) SetSender(sender MessageSender, chatID int64) {
	s.sender = sender
	s.chatID = chatID
}

func (s *Scheduler) SetSyncer(syncer Syncer) {
	s.syncer = syncer
}

// SetClock replaces the time source
func (s *Scheduler) SetClock(now func() time.Time) {
	s.now = now
}

// Start registers the jobs and blocks until ctx is done
func (s *Scheduler) Start(ctx context.Context) error {
	if s.sender != nil {
		if _, err := s.cron.AddFunc(s.cfg.AlertCheckCron, s.alertJob); err != nil {
			return fmt.Errorf("add alert check: %w", err)
		}
	}

	if s.syncer != nil {
		if _, err := s.cron.AddFunc(s.cfg.CalDAVSyncCron, func() { s.syncJob(ctx) }); err != nil {
			return fmt.Errorf("add caldav sync: %w", err)
		}
	}

	s.cron.Start()
	s.log.Info().
		Str("tz", s.cfg.Timezone.String()).
		Bool("alerts", s.sender != nil).
		Bool("sync", s.syncer != nil).
		Msg("scheduler started")

	<-ctx.Done()
	return nil
}

func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info().Msg("scheduler stopped")
}

func (s *Scheduler) alertJob() {
	if _, err := s.CheckAlerts(); err != nil {
		s.log.Error().Err(err).Msg("alert check failed")
	}
}

func (s *Scheduler) syncJob(ctx context.Context) {
	if _, err := s.syncer.Sync(ctx); err != nil {
		s.log.Error().Err(err).Msg("caldav sync failed")
	}
}

// CheckAlerts sends every alert whose fire time falls after the previous
// check and not after now. Each (calendar, occurrence, alert) is sent once per
// process. Returns the number of messages sent.
func (s *Scheduler) CheckAlerts() (int, error) {
	if s.sender == nil {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	since := s.lastCheck
	if since.IsZero() {
		since = now.Add(-time.Minute)
	}

	today := domain.DateOf(now)
	occs, err := s.agenda.Agenda(today.AddDays(-1), today.AddDays(alertHorizon))
	if err != nil {
		return 0, fmt.Errorf("load agenda: %w", err)
	}

	sent := 0
	for _, occ := range occs {
		e := occ.Event
		alerts := []domain.AlertTime{e.Alert}
		if e.AlertSecond != nil {
			alerts = append(alerts, *e.AlertSecond)
		}
		for _, a := range alerts {
			offset, ok := a.Offset()
			if !ok {
				continue
			}
			fireAt := e.Start.Add(-offset)
			if !fireAt.After(since) || fireAt.After(now) {
				continue
			}
			key := e.CalendarID + "/" + e.UID + "/" + string(a)
			if s.sent[key] {
				continue
			}
			if err := s.sender.SendMessage(s.chatID, s.formatAlert(e, now)); err != nil {
				s.log.Error().Err(err).Str("uid", e.UID).Msg("send alert")
				continue
			}
			s.sent[key] = true
			sent++
		}
	}

	s.lastCheck = now
	return sent, nil
}

func (s *Scheduler) formatAlert(e *domain.Event, now time.Time) string {
	loc := s.cfg.Timezone
	if loc == nil {
		loc = time.UTC
	}

	var b strings.Builder
	fmt.Fprintf(&b, "🔔 <b>%s</b>\n", html.EscapeString(e.Summary))
	if e.AllDay {
		fmt.Fprintf(&b, "📅 %s, all day", e.Start.Format("Mon 02 Jan"))
	} else {
		fmt.Fprintf(&b, "🕐 %s", e.Start.In(loc).Format("Mon 02 Jan 15:04"))
		if until := e.Start.Sub(now); until > 0 {
			fmt.Fprintf(&b, " (in %s)", humanize(until))
		}
	}
	if e.Location != "" {
		fmt.Fprintf(&b, "\n📍 %s", html.EscapeString(e.Location))
	}
	if travel := e.TravelTime.Duration(); travel > 0 {
		fmt.Fprintf(&b, "\n🚗 leave %s earlier", humanize(travel))
	}
	return b.String()
}

func humanize(d time.Duration) string {
	d = d.Round(time.Minute)
	switch {
	case d >= 24*time.Hour:
		days := int(d / (24 * time.Hour))
		if days == 1 {
			return "1 day"
		}
		return fmt.Sprintf("%d days", days)
	case d >= time.Hour && d%time.Hour == 0:
		return fmt.Sprintf("%d h", int(d/time.Hour))
	case d >= time.Hour:
		return fmt.Sprintf("%d h %d min", int(d/time.Hour), int(d%time.Hour/time.Minute))
	default:
		return fmt.Sprintf("%d min", int(d/time.Minute))
	}
}
