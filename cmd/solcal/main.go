package main

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"
)

func main() {
	// Load .env file first, but don't error if it doesn't exist.
	_ = godotenv.Load()

	app := &cli.App{
		Name:  "solcal",
		Usage: "Local calendar engine with month/week views, iCalendar import and CalDAV pull.",
		Commands: []*cli.Command{
			serveCommand(),
			agendaCommand(),
			calendarsCommand(),
			importCommand(),
			revertCommand(),
			exportCommand(),
			deleteOccurrenceCommand(),
			syncCommand(),
			remoteCalendarsCommand(),
			pushCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Timestamp().Logger()
		log.Error().Err(err).Msg("solcal failed")
		os.Exit(1)
	}
}
