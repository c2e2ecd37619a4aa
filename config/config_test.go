package config_test

import (
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tazhate/solcal/config"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/tmp/xdg")
	for _, k := range []string{"SOLCAL_DATA_DIR", "SOLCAL_DB_NAME", "SOLCAL_CALENDARS_FILE", "TIMEZONE",
		"LOG_LEVEL", "TELEGRAM_CHAT_ID", "TELEGRAM_BOT_TOKEN", "CALDAV_USERNAME", "CALDAV_TARGET_CALENDAR"} {
		t.Setenv(k, "")
	}

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/tmp/xdg", "sol-calendar", "sol.db"), cfg.DatabasePath())
	assert.Equal(t, filepath.Join("/tmp/xdg", "sol-calendar", "calendars.yaml"), cfg.CalendarsFile)
	assert.Equal(t, "UTC", cfg.Timezone.String())
	assert.Equal(t, zerolog.InfoLevel, cfg.LogLevel)
	assert.Equal(t, "personal", cfg.CalDAVTargetCalendar)
	assert.False(t, cfg.CalDAVEnabled())
	assert.False(t, cfg.AlertsEnabled())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SOLCAL_DATA_DIR", "/srv/sol")
	t.Setenv("SOLCAL_DB_NAME", "test.db")
	t.Setenv("TIMEZONE", "Europe/Berlin")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("TELEGRAM_BOT_TOKEN", "token")
	t.Setenv("TELEGRAM_CHAT_ID", "42")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "/srv/sol/test.db", cfg.DatabasePath())
	assert.Equal(t, "Europe/Berlin", cfg.Timezone.String())
	assert.Equal(t, zerolog.DebugLevel, cfg.LogLevel)
	assert.True(t, cfg.AlertsEnabled())
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("TIMEZONE", "Mars/Olympus")
	_, err := config.Load()
	assert.Error(t, err)

	t.Setenv("TIMEZONE", "UTC")
	t.Setenv("TELEGRAM_CHAT_ID", "abc")
	_, err = config.Load()
	assert.Error(t, err)
}
