package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/tazhate/solcal/config"
	"github.com/tazhate/solcal/internal/calendars"
	"github.com/tazhate/solcal/internal/clients/caldav"
	"github.com/tazhate/solcal/internal/recurrence"
	"github.com/tazhate/solcal/internal/service"
	"github.com/tazhate/solcal/internal/storage"
)

// app holds the components shared by every command
type app struct {
	cfg       *config.Config
	log       zerolog.Logger
	store     *storage.Storage
	calendars *calendars.Manager
	events    *service.EventService
}

func setupLogger(level zerolog.Level) zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(level).
		With().Timestamp().Logger()
}

func openApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	log := setupLogger(cfg.LogLevel)

	store, err := storage.New(cfg.DatabasePath(), log)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	cals, err := calendars.Open(cfg.CalendarsFile, store, log)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("load calendars: %w", err)
	}

	return &app{
		cfg:       cfg,
		log:       log,
		store:     store,
		calendars: cals,
		events:    service.NewEventService(store, cals, recurrence.NewExpander(log), log),
	}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.log.Error().Err(err).Msg("close storage")
	}
}

// caldavClient returns nil when no credentials are configured
func (a *app) caldavClient() *caldav.Client {
	c := caldav.NewClient(a.cfg.CalDAVURL, a.cfg.CalDAVUsername, a.cfg.CalDAVPassword, a.cfg.Timezone, a.log)
	if !c.IsConfigured() {
		return nil
	}
	return c
}

// syncService returns nil when CalDAV pull is not configured
func (a *app) syncService() *service.SyncService {
	if !a.cfg.CalDAVEnabled() {
		return nil
	}
	return service.NewSyncService(a.events, a.caldavClient(), a.cfg.CalDAVCalendar, a.cfg.CalDAVTargetCalendar, a.log)
}
