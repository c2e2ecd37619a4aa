package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/tazhate/solcal/internal/api"
	"github.com/tazhate/solcal/internal/domain"
	"github.com/tazhate/solcal/internal/notify"
	"github.com/tazhate/solcal/internal/scheduler"
)

var calendarFlag = &cli.StringFlag{
	Name:    "calendar",
	Aliases: []string{"c"},
	Value:   "personal",
	Usage:   "target calendar id",
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP API, alert notifications and periodic CalDAV pull.",
		Action: func(c *cli.Context) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			sched := scheduler.New(a.cfg, a.events, a.log)
			if a.cfg.AlertsEnabled() {
				tg, err := notify.NewTelegram(a.cfg.TelegramToken, a.log)
				if err != nil {
					return err
				}
				sched.SetSender(tg, a.cfg.TelegramChatID)
			}
			if syncer := a.syncService(); syncer != nil {
				sched.SetSyncer(syncer)
			}
			go func() {
				if err := sched.Start(ctx); err != nil {
					a.log.Error().Err(err).Msg("scheduler error")
				}
			}()

			srv := api.New(":"+a.cfg.ServerPort, a.events, a.calendars,
				api.Credentials{Username: a.cfg.APIUsername, Password: a.cfg.APIPassword},
				a.cfg.Timezone, a.log)
			errCh := make(chan error, 1)
			go func() { errCh <- srv.Start() }()

			select {
			case err = <-errCh:
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if stopErr := srv.Stop(shutdownCtx); stopErr != nil {
				a.log.Error().Err(stopErr).Msg("server shutdown")
			}
			sched.Stop()
			return err
		},
	}
}

func agendaCommand() *cli.Command {
	return &cli.Command{
		Name:  "agenda",
		Usage: "Print upcoming occurrences of enabled calendars.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "from", Usage: "first day (YYYY-MM-DD), default today"},
			&cli.IntFlag{Name: "days", Value: 7, Usage: "number of days"},
		},
		Action: func(c *cli.Context) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			y, m, d := time.Now().In(a.cfg.Timezone).Date()
			from := domain.NewDate(y, m, d)
			if v := c.String("from"); v != "" {
				if from, err = domain.ParseDate(v); err != nil {
					return err
				}
			}
			if c.Int("days") < 1 {
				return fmt.Errorf("--days must be positive")
			}
			occs, err := a.events.Agenda(from, from.AddDays(c.Int("days")-1))
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			for _, occ := range occs {
				e := occ.Event
				when := "all day"
				if !e.AllDay {
					when = e.Start.In(a.cfg.Timezone).Format("15:04") + "-" + e.End.In(a.cfg.Timezone).Format("15:04")
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", occ.Date, when, e.CalendarID, e.Summary, e.UID)
			}
			return w.Flush()
		},
	}
}

func calendarsCommand() *cli.Command {
	return &cli.Command{
		Name:  "calendars",
		Usage: "Manage calendars.",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List calendars.",
				Action: func(c *cli.Context) error {
					a, err := openApp()
					if err != nil {
						return err
					}
					defer a.Close()

					w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
					fmt.Fprintln(w, "ID\tNAME\tCOLOR\tENABLED\tTYPE")
					for _, cal := range a.calendars.List() {
						fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%s\n", cal.ID, cal.Name, cal.Color, cal.Enabled, cal.Type)
					}
					return w.Flush()
				},
			},
			{
				Name:      "create",
				Usage:     "Create a calendar.",
				ArgsUsage: "<name>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "color", Value: "#10B981", Usage: "hex color"},
				},
				Action: func(c *cli.Context) error {
					name := strings.Join(c.Args().Slice(), " ")
					a, err := openApp()
					if err != nil {
						return err
					}
					defer a.Close()

					cal, err := a.calendars.Create(name, c.String("color"))
					if err != nil {
						return err
					}
					fmt.Println(cal.ID)
					return nil
				},
			},
			{
				Name:      "toggle",
				Usage:     "Enable or disable a calendar.",
				ArgsUsage: "<id>",
				Action: func(c *cli.Context) error {
					a, err := openApp()
					if err != nil {
						return err
					}
					defer a.Close()

					enabled, err := a.calendars.ToggleEnabled(c.Args().First())
					if err != nil {
						return err
					}
					fmt.Printf("%s enabled=%t\n", c.Args().First(), enabled)
					return nil
				},
			},
			{
				Name:      "delete",
				Usage:     "Delete a calendar and all of its events.",
				ArgsUsage: "<id>",
				Action: func(c *cli.Context) error {
					a, err := openApp()
					if err != nil {
						return err
					}
					defer a.Close()
					return a.calendars.Delete(c.Args().First())
				},
			},
		},
	}
}

func importCommand() *cli.Command {
	return &cli.Command{
		Name:      "import",
		Usage:     "Import events from an .ics file.",
		ArgsUsage: "<file.ics>",
		Flags:     []cli.Flag{calendarFlag},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("expected exactly one file")
			}
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			f, err := os.Open(c.Args().First())
			if err != nil {
				return err
			}
			defer f.Close()

			res, err := a.events.ImportICS(c.String("calendar"), f, a.cfg.Timezone)
			if err != nil {
				return err
			}
			return printJSON(res)
		},
	}
}

func revertCommand() *cli.Command {
	return &cli.Command{
		Name:      "revert-import",
		Usage:     "Delete the uids reported by a previous import.",
		ArgsUsage: "<uid>...",
		Flags:     []cli.Flag{calendarFlag},
		Action: func(c *cli.Context) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			removed, err := a.events.RevertImport(c.String("calendar"), c.Args().Slice())
			if err != nil {
				return err
			}
			fmt.Printf("removed %d events\n", removed)
			return nil
		},
	}
}

func exportCommand() *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Write a calendar as iCalendar.",
		Flags: []cli.Flag{
			calendarFlag,
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "file to write, stdout when empty"},
		},
		Action: func(c *cli.Context) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			out := os.Stdout
			if path := c.String("output"); path != "" {
				f, err := os.Create(path)
				if err != nil {
					return err
				}
				defer f.Close()
				out = f
			}
			n, err := a.events.ExportICS(c.String("calendar"), out)
			if err != nil {
				return err
			}
			a.log.Info().Int("events", n).Msg("exported")
			return nil
		},
	}
}

func deleteOccurrenceCommand() *cli.Command {
	return &cli.Command{
		Name:      "delete-occurrence",
		Usage:     "Hide one occurrence of a repeating event.",
		ArgsUsage: "<uid_YYYYMMDD>",
		Flags:     []cli.Flag{calendarFlag},
		Action: func(c *cli.Context) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()
			return a.events.DeleteOccurrence(c.String("calendar"), c.Args().First())
		},
	}
}

func syncCommand() *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Pull the configured CalDAV calendar once.",
		Action: func(c *cli.Context) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			syncer := a.syncService()
			if syncer == nil {
				return fmt.Errorf("CALDAV_USERNAME, CALDAV_PASSWORD and CALDAV_CALENDAR must be set")
			}
			res, err := syncer.Sync(c.Context)
			if err != nil {
				return err
			}
			return printJSON(res)
		},
	}
}

func remoteCalendarsCommand() *cli.Command {
	return &cli.Command{
		Name:  "remote-calendars",
		Usage: "List calendars available on the CalDAV server.",
		Action: func(c *cli.Context) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			client := a.caldavClient()
			if client == nil {
				return fmt.Errorf("CALDAV_USERNAME and CALDAV_PASSWORD must be set")
			}
			cals, err := client.DiscoverCalendars(c.Context)
			if err != nil {
				return err
			}
			return printJSON(cals)
		},
	}
}

func pushCommand() *cli.Command {
	return &cli.Command{
		Name:  "push",
		Usage: "Upload every event of a local calendar to the CalDAV calendar.",
		Flags: []cli.Flag{calendarFlag},
		Action: func(c *cli.Context) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			client := a.caldavClient()
			if client == nil || a.cfg.CalDAVCalendar == "" {
				return fmt.Errorf("CALDAV_USERNAME, CALDAV_PASSWORD and CALDAV_CALENDAR must be set")
			}
			events, err := a.events.ListEvents(c.String("calendar"))
			if err != nil {
				return err
			}
			pushed := 0
			for _, e := range events {
				if err := client.PutEvent(c.Context, a.cfg.CalDAVCalendar, e); err != nil {
					a.log.Error().Err(err).Str("uid", e.UID).Msg("push failed")
					continue
				}
				pushed++
			}
			a.log.Info().Int("pushed", pushed).Int("total", len(events)).Msg("push finished")
			return nil
		},
	}
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
