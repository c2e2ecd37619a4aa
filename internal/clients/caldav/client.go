package caldav

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/emersion/go-webdav/caldav"
	"github.com/rs/zerolog"

	"github.com/tazhate/solcal/internal/domain"
	"github.com/tazhate/solcal/internal/ical"
)

const (
	// Apple iCloud CalDAV endpoint
	DefaultiCloudURL = "https://caldav.icloud.com"
)

// Client pulls events from a CalDAV server and pushes local ones back
type Client struct {
	baseURL  string
	username string
	password string
	loc      *time.Location
	client   *caldav.Client
	log      zerolog.Logger
}

// NewClient creates a new CalDAV client. Floating times are read in loc.
func NewClient(baseURL, username, password string, loc *time.Location, log zerolog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultiCloudURL
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Client{
		baseURL:  baseURL,
		username: username,
		password: password,
		loc:      loc,
		log:      log.With().Str("component", "caldav").Logger(),
	}
}

// IsConfigured returns true if the client has credentials
func (c *Client) IsConfigured() bool {
	return c != nil && c.username != "" && c.password != ""
}

func (c *Client) connect() (*caldav.Client, error) {
	if c.client != nil {
		return c.client, nil
	}

	httpClient := &http.Client{
		Transport: &basicAuthTransport{
			username: c.username,
			password: c.password,
		},
		Timeout: 30 * time.Second,
	}

	client, err := caldav.NewClient(httpClient, c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to CalDAV: %w", err)
	}

	c.client = client
	return client, nil
}

// basicAuthTransport adds Basic Auth to HTTP requests
type basicAuthTransport struct {
	username string
	password string
}

func (t *basicAuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.SetBasicAuth(t.username, t.password)
	return http.DefaultTransport.RoundTrip(req)
}

// DiscoverCalendars returns all calendars in the user's home set
func (c *Client) DiscoverCalendars(ctx context.Context) ([]Calendar, error) {
	client, err := c.connect()
	if err != nil {
		return nil, err
	}

	principal, err := client.FindCurrentUserPrincipal(ctx)
	if err != nil {
		return nil, fmt.Errorf("find principal: %w", err)
	}

	homeSet, err := client.FindCalendarHomeSet(ctx, principal)
	if err != nil {
		return nil, fmt.Errorf("find home set: %w", err)
	}

	cals, err := client.FindCalendars(ctx, homeSet)
	if err != nil {
		return nil, fmt.Errorf("find calendars: %w", err)
	}

	result := make([]Calendar, 0, len(cals))
	for _, cal := range cals {
		result = append(result, Calendar{
			Path:        cal.Path,
			DisplayName: cal.Name,
			Description: cal.Description,
		})
	}
	return result, nil
}

// GetEvents returns the master events with an instance in [from, to)
func (c *Client) GetEvents(ctx context.Context, calendarPath string, from, to time.Time) ([]*domain.Event, error) {
	if calendarPath == "" {
		return nil, fmt.Errorf("calendar path not specified")
	}
	client, err := c.connect()
	if err != nil {
		return nil, err
	}

	query := &caldav.CalendarQuery{
		CompFilter: caldav.CompFilter{
			Name: "VCALENDAR",
			Comps: []caldav.CompFilter{
				{
					Name:  "VEVENT",
					Start: from,
					End:   to,
				},
			},
		},
	}

	objects, err := client.QueryCalendar(ctx, calendarPath, query)
	if err != nil {
		return nil, fmt.Errorf("query calendar: %w", err)
	}

	var events []*domain.Event
	for _, obj := range objects {
		if obj.Data == nil {
			continue
		}
		// Overridden instances share the master UID; only the master is kept.
		for _, ev := range obj.Data.Events() {
			if ev.Props.Get("RECURRENCE-ID") != nil {
				continue
			}
			e, err := ical.FromComponent(ev.Component, c.loc)
			if err != nil {
				c.log.Warn().Err(err).Str("path", obj.Path).Msg("skip unreadable event")
				continue
			}
			events = append(events, e)
		}
	}

	c.log.Debug().Str("calendar", calendarPath).Int("events", len(events)).Msg("fetched events")
	return events, nil
}

// PutEvent creates or replaces the object <calendarPath>/<uid>.ics
func (c *Client) PutEvent(ctx context.Context, calendarPath string, e *domain.Event) error {
	if calendarPath == "" {
		return fmt.Errorf("calendar path not specified")
	}
	client, err := c.connect()
	if err != nil {
		return err
	}

	cal := ical.ToCalendar([]*domain.Event{e})
	if _, err := client.PutCalendarObject(ctx, objectPath(calendarPath, e.UID), cal); err != nil {
		return fmt.Errorf("put event %s: %w", e.UID, err)
	}
	return nil
}

func objectPath(calendarPath, uid string) string {
	if !strings.HasSuffix(calendarPath, "/") {
		calendarPath += "/"
	}
	return calendarPath + uid + ".ics"
}
