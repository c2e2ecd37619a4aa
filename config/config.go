package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rs/zerolog"
)

const appDir = "sol-calendar"

type Config struct {
	DataDir       string
	DBName        string
	CalendarsFile string
	Timezone      *time.Location
	LogLevel      zerolog.Level
	ServerPort    string

	APIUsername string
	APIPassword string

	CalDAVURL            string
	CalDAVUsername       string
	CalDAVPassword       string
	CalDAVCalendar       string // remote calendar path
	CalDAVTargetCalendar string // local calendar id receiving pulled events
	CalDAVSyncCron       string

	AlertCheckCron string
	TelegramToken  string
	TelegramChatID int64
}

func Load() (*Config, error) {
	dataDir := os.Getenv("SOLCAL_DATA_DIR")
	if dataDir == "" {
		dataDir = defaultDataDir()
	}

	calendarsFile := os.Getenv("SOLCAL_CALENDARS_FILE")
	if calendarsFile == "" {
		calendarsFile = filepath.Join(dataDir, "calendars.yaml")
	}

	tz, err := time.LoadLocation(getenv("TIMEZONE", "UTC"))
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE: %w", err)
	}

	level, err := zerolog.ParseLevel(getenv("LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}

	var chatID int64
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		chatID, err = strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("TELEGRAM_CHAT_ID must be a number")
		}
	}

	return &Config{
		DataDir:              dataDir,
		DBName:               getenv("SOLCAL_DB_NAME", "sol.db"),
		CalendarsFile:        calendarsFile,
		Timezone:             tz,
		LogLevel:             level,
		ServerPort:           getenv("SERVER_PORT", "8080"),
		APIUsername:          os.Getenv("API_USERNAME"),
		APIPassword:          os.Getenv("API_PASSWORD"),
		CalDAVURL:            os.Getenv("CALDAV_URL"),
		CalDAVUsername:       os.Getenv("CALDAV_USERNAME"),
		CalDAVPassword:       os.Getenv("CALDAV_PASSWORD"),
		CalDAVCalendar:       os.Getenv("CALDAV_CALENDAR"),
		CalDAVTargetCalendar: getenv("CALDAV_TARGET_CALENDAR", "personal"),
		CalDAVSyncCron:       getenv("CALDAV_SYNC_CRON", "*/30 * * * *"),
		AlertCheckCron:       getenv("ALERT_CHECK_CRON", "* * * * *"),
		TelegramToken:        os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramChatID:       chatID,
	}, nil
}

// DatabasePath is the sqlite file inside the data directory
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, c.DBName)
}

// CalDAVEnabled reports whether a remote calendar should be pulled
func (c *Config) CalDAVEnabled() bool {
	return c.CalDAVUsername != "" && c.CalDAVPassword != "" && c.CalDAVCalendar != ""
}

// AlertsEnabled reports whether Telegram alerts can be delivered
func (c *Config) AlertsEnabled() bool {
	return c.TelegramToken != "" && c.TelegramChatID != 0
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// defaultDataDir is $XDG_DATA_HOME/sol-calendar, falling back to
// ~/.local/share/sol-calendar and finally ./data.
func defaultDataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, appDir)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "share", appDir)
	}
	return filepath.Join("data", appDir)
}
