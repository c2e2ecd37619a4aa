package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"
)

// SchemaVersion is the version written by this build
const SchemaVersion = 5

const eventColumns = `uid, calendar_id, summary, location, all_day, start_time, end_time,
	travel_time, repeat, repeat_until, exception_dates, invitees, alert,
	alert_second, attachments, url, notes, created_at, updated_at`

const createMeta = `CREATE TABLE IF NOT EXISTS meta (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
)`

const createEventsV5 = `CREATE TABLE IF NOT EXISTS %s (
	uid TEXT NOT NULL,
	calendar_id TEXT NOT NULL,
	summary TEXT NOT NULL,
	location TEXT,
	all_day INTEGER NOT NULL DEFAULT 0,
	start_time TEXT NOT NULL,
	end_time TEXT NOT NULL,
	travel_time TEXT NOT NULL DEFAULT 'None',
	repeat TEXT NOT NULL DEFAULT 'Never',
	repeat_until TEXT,
	exception_dates TEXT NOT NULL DEFAULT '[]',
	invitees TEXT NOT NULL DEFAULT '[]',
	alert TEXT NOT NULL DEFAULT 'None',
	alert_second TEXT,
	attachments TEXT NOT NULL DEFAULT '[]',
	url TEXT,
	notes TEXT,
	created_at TEXT NOT NULL DEFAULT (datetime('now')),
	updated_at TEXT NOT NULL DEFAULT (datetime('now')),
	UNIQUE(calendar_id, uid)
)`

var eventIndexes = []string{
	`CREATE INDEX IF NOT EXISTS idx_events_start_time ON events(start_time)`,
	`CREATE INDEX IF NOT EXISTS idx_events_calendar_id ON events(calendar_id)`,
	`CREATE INDEX IF NOT EXISTS idx_events_calendar_date ON events(calendar_id, start_time)`,
}

// migration moves the schema from version-1 to version
type migration struct {
	version int
	name    string
	stmts   []string
}

var migrations = []migration{
	{
		version: 2,
		name:    "full event fields, description renamed to notes",
		stmts: append([]string{
			`CREATE TABLE events_new (
				uid TEXT PRIMARY KEY,
				calendar_id TEXT NOT NULL,
				summary TEXT NOT NULL,
				location TEXT,
				all_day INTEGER NOT NULL DEFAULT 0,
				start_time TEXT NOT NULL,
				end_time TEXT NOT NULL,
				travel_time TEXT NOT NULL DEFAULT 'None',
				repeat TEXT NOT NULL DEFAULT 'Never',
				invitees TEXT NOT NULL DEFAULT '[]',
				alert TEXT NOT NULL DEFAULT 'None',
				alert_second TEXT,
				attachments TEXT NOT NULL DEFAULT '[]',
				url TEXT,
				notes TEXT,
				created_at TEXT NOT NULL DEFAULT (datetime('now')),
				updated_at TEXT NOT NULL DEFAULT (datetime('now'))
			)`,
			`INSERT INTO events_new (uid, calendar_id, summary, location, all_day, start_time, end_time, notes, created_at, updated_at)
				SELECT uid, calendar_id, summary, location, all_day, start_time, end_time, description, created_at, updated_at
				FROM events`,
			`DROP TABLE events`,
			`ALTER TABLE events_new RENAME TO events`,
		}, eventIndexes...),
	},
	{
		version: 3,
		name:    "repeat_until",
		stmts:   []string{`ALTER TABLE events ADD COLUMN repeat_until TEXT`},
	},
	{
		version: 4,
		name:    "exception_dates",
		stmts:   []string{`ALTER TABLE events ADD COLUMN exception_dates TEXT NOT NULL DEFAULT '[]'`},
	},
	{
		version: 5,
		name:    "uid unique per calendar",
		stmts: append([]string{
			fmt.Sprintf(createEventsV5, "events_new"),
			`INSERT INTO events_new (` + eventColumns + `)
				SELECT ` + eventColumns + ` FROM events`,
			`DROP TABLE events`,
			`ALTER TABLE events_new RENAME TO events`,
		}, eventIndexes...),
	},
}

func (s *Storage) migrate() error {
	if _, err := s.db.Exec(createMeta); err != nil {
		return ioErr("create meta", err)
	}

	version, err := s.readVersion()
	if err != nil {
		return err
	}

	if version == 0 {
		legacy, err := s.tableExists("events")
		if err != nil {
			return err
		}
		if !legacy {
			s.log.Info().Int("version", SchemaVersion).Msg("creating fresh schema")
			return s.inTx("create schema", func(tx *sql.Tx) error {
				stmts := append([]string{fmt.Sprintf(createEventsV5, "events")}, eventIndexes...)
				return execAll(tx, stmts, SchemaVersion)
			})
		}
		// events table predating the meta table
		version = 1
	}

	if version > SchemaVersion {
		return fmt.Errorf("database schema version %d is newer than supported %d", version, SchemaVersion)
	}
	if version == SchemaVersion {
		return nil
	}

	for _, m := range migrations {
		if m.version <= version {
			continue
		}
		s.log.Info().Int("from", m.version-1).Int("to", m.version).Str("step", m.name).Msg("migrating schema")
		if err := s.inTx("migrate "+strconv.Itoa(m.version), func(tx *sql.Tx) error {
			return execAll(tx, m.stmts, m.version)
		}); err != nil {
			return fmt.Errorf("migrate to v%d: %w", m.version, err)
		}
		version = m.version
	}
	return nil
}

func (s *Storage) readVersion() (int, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM meta WHERE key = 'schema_version'`).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, ioErr("read schema version", err)
	}
	version, err := strconv.Atoi(value)
	if err != nil {
		s.log.Warn().Str("value", value).Msg("unparsable schema version, treating as absent")
		return 0, nil
	}
	return version, nil
}

func (s *Storage) tableExists(name string) (bool, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, name).Scan(&n)
	if err != nil {
		return false, ioErr("inspect schema", err)
	}
	return n > 0, nil
}

func (s *Storage) inTx(op string, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.Begin()
	if err != nil {
		return ioErr(op, err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return ioErr(op, err)
	}
	return ioErr(op, tx.Commit())
}

func execAll(tx *sql.Tx, stmts []string, stamp int) error {
	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}
	_, err := tx.Exec(`INSERT OR REPLACE INTO meta (key, value) VALUES ('schema_version', ?)`, strconv.Itoa(stamp))
	return err
}
