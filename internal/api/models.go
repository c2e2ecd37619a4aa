package api

import (
	"time"

	"github.com/tazhate/solcal/internal/display"
	"github.com/tazhate/solcal/internal/domain"
)

type CalendarRequest struct {
	Name  string `json:"name" validate:"required"`
	Color string `json:"color" validate:"required,hexcolor"`
}

type CalendarPatch struct {
	Name    *string `json:"name" validate:"omitempty,min=1"`
	Color   *string `json:"color" validate:"omitempty,hexcolor"`
	Enabled *bool   `json:"enabled"`
}

type EventRequest struct {
	UID            string         `json:"uid"`
	Summary        string         `json:"summary" validate:"required"`
	Location       string         `json:"location"`
	Notes          string         `json:"notes"`
	URL            string         `json:"url" validate:"omitempty,url"`
	AllDay         bool           `json:"all_day"`
	Start          time.Time      `json:"start" validate:"required"`
	End            time.Time      `json:"end" validate:"required,gtefield=Start"`
	TravelTime     string         `json:"travel_time" validate:"omitempty,oneof=None FifteenMinutes ThirtyMinutes OneHour TwoHours"`
	Repeat         *domain.Repeat `json:"repeat"`
	RepeatUntil    *domain.Date   `json:"repeat_until"`
	ExceptionDates []domain.Date  `json:"exception_dates"`
	Invitees       []string       `json:"invitees" validate:"dive,email"`
	Attachments    []string       `json:"attachments"`
	Alert          string         `json:"alert" validate:"omitempty,oneof=None AtTime FiveMinutes TenMinutes FifteenMinutes ThirtyMinutes OneHour TwoHours OneDay TwoDays OneWeek"`
	AlertSecond    *string        `json:"alert_second" validate:"omitempty,oneof=AtTime FiveMinutes TenMinutes FifteenMinutes ThirtyMinutes OneHour TwoHours OneDay TwoDays OneWeek"`
}

func (r *EventRequest) toEvent() *domain.Event {
	e := &domain.Event{
		UID:            r.UID,
		Summary:        r.Summary,
		Location:       r.Location,
		Notes:          r.Notes,
		URL:            r.URL,
		AllDay:         r.AllDay,
		Start:          r.Start.UTC(),
		End:            r.End.UTC(),
		TravelTime:     domain.TravelTime(r.TravelTime),
		Repeat:         domain.Never,
		RepeatUntil:    r.RepeatUntil,
		ExceptionDates: r.ExceptionDates,
		Invitees:       r.Invitees,
		Attachments:    r.Attachments,
		Alert:          domain.AlertTime(r.Alert),
	}
	if r.Repeat != nil {
		e.Repeat = *r.Repeat
	}
	if r.AlertSecond != nil {
		a := domain.AlertTime(*r.AlertSecond)
		e.AlertSecond = &a
	}
	return e
}

type EventResponse struct {
	UID            string        `json:"uid"`
	CalendarID     string        `json:"calendar_id"`
	Summary        string        `json:"summary"`
	Location       string        `json:"location,omitempty"`
	Notes          string        `json:"notes,omitempty"`
	URL            string        `json:"url,omitempty"`
	AllDay         bool          `json:"all_day"`
	Start          time.Time     `json:"start"`
	End            time.Time     `json:"end"`
	TravelTime     string        `json:"travel_time"`
	Repeat         domain.Repeat `json:"repeat"`
	RepeatUntil    *domain.Date  `json:"repeat_until,omitempty"`
	ExceptionDates []domain.Date `json:"exception_dates"`
	Invitees       []string      `json:"invitees"`
	Attachments    []string      `json:"attachments"`
	Alert          string        `json:"alert"`
	AlertSecond    *string       `json:"alert_second,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

func toResponse(e *domain.Event) EventResponse {
	resp := EventResponse{
		UID:            e.UID,
		CalendarID:     e.CalendarID,
		Summary:        e.Summary,
		Location:       e.Location,
		Notes:          e.Notes,
		URL:            e.URL,
		AllDay:         e.AllDay,
		Start:          e.Start,
		End:            e.End,
		TravelTime:     string(e.TravelTime),
		Repeat:         e.Repeat,
		RepeatUntil:    e.RepeatUntil,
		ExceptionDates: nonNil(e.ExceptionDates),
		Invitees:       nonNil(e.Invitees),
		Attachments:    nonNil(e.Attachments),
		Alert:          string(e.Alert),
		CreatedAt:      e.CreatedAt,
		UpdatedAt:      e.UpdatedAt,
	}
	if e.AlertSecond != nil {
		a := string(*e.AlertSecond)
		resp.AlertSecond = &a
	}
	return resp
}

func toResponses(events []*domain.Event) []EventResponse {
	out := make([]EventResponse, 0, len(events))
	for _, e := range events {
		out = append(out, toResponse(e))
	}
	return out
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

type ViewResponse struct {
	From domain.Date  `json:"from"`
	To   domain.Date  `json:"to"`
	Days display.Days `json:"days"`
}

type RevertRequest struct {
	UIDs []string `json:"uids" validate:"required,min=1"`
}
