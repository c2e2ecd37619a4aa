package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/tazhate/solcal/internal/calendars"
	"github.com/tazhate/solcal/internal/display"
	"github.com/tazhate/solcal/internal/domain"
)

const maxImportSize = 10 << 20

func decodeBody(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	if err := validate.Struct(v); err != nil {
		return err
	}
	return nil
}

// GET /api/v1/calendars
func (s *Server) listCalendars(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, s.calendars.List())
}

// POST /api/v1/calendars
func (s *Server) createCalendar(w http.ResponseWriter, r *http.Request) {
	var req CalendarRequest
	if err := decodeBody(r, &req); err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	cal, err := s.calendars.Create(req.Name, req.Color)
	if err != nil {
		s.fail(w, err)
		return
	}
	jsonResponse(w, http.StatusCreated, cal)
}

// PATCH /api/v1/calendars/{id}
func (s *Server) updateCalendar(w http.ResponseWriter, r *http.Request) {
	var req CalendarPatch
	if err := decodeBody(r, &req); err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	cal, err := s.calendars.Update(mux.Vars(r)["id"], calendars.Update{
		Name:    req.Name,
		Color:   req.Color,
		Enabled: req.Enabled,
	})
	if err != nil {
		s.fail(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, cal)
}

// DELETE /api/v1/calendars/{id}
func (s *Server) deleteCalendar(w http.ResponseWriter, r *http.Request) {
	if err := s.calendars.Delete(mux.Vars(r)["id"]); err != nil {
		s.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GET /api/v1/calendars/{id}/events
func (s *Server) listEvents(w http.ResponseWriter, r *http.Request) {
	events, err := s.events.ListEvents(mux.Vars(r)["id"])
	if err != nil {
		s.fail(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, toResponses(events))
}

// GET /api/v1/calendars/{id}/events/{uid}
func (s *Server) getEvent(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	e, err := s.events.GetEvent(vars["id"], vars["uid"])
	if err != nil {
		s.fail(w, err)
		return
	}
	if e == nil {
		jsonError(w, "event not found", http.StatusNotFound)
		return
	}
	jsonResponse(w, http.StatusOK, toResponse(e))
}

// POST /api/v1/calendars/{id}/events
func (s *Server) createEvent(w http.ResponseWriter, r *http.Request) {
	var req EventRequest
	if err := decodeBody(r, &req); err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	e := req.toEvent()
	if err := s.events.AddEvent(mux.Vars(r)["id"], e); err != nil {
		s.fail(w, err)
		return
	}
	jsonResponse(w, http.StatusCreated, toResponse(e))
}

// PUT /api/v1/calendars/{id}/events/{uid}
// uid may be an occurrence id; the whole series is replaced.
func (s *Server) updateEvent(w http.ResponseWriter, r *http.Request) {
	var req EventRequest
	if err := decodeBody(r, &req); err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	vars := mux.Vars(r)
	e := req.toEvent()
	e.UID = vars["uid"]
	ok, err := s.events.UpdateEvent(vars["id"], e)
	if err != nil {
		s.fail(w, err)
		return
	}
	if !ok {
		jsonError(w, "event not found", http.StatusNotFound)
		return
	}
	jsonResponse(w, http.StatusOK, toResponse(e))
}

// DELETE /api/v1/calendars/{id}/events/{uid}[?occurrence=true]
func (s *Server) deleteEvent(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if r.URL.Query().Get("occurrence") == "true" {
		if err := s.events.DeleteOccurrence(vars["id"], vars["uid"]); err != nil {
			s.fail(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}

	ok, err := s.events.DeleteEvent(vars["id"], vars["uid"])
	if err != nil {
		s.fail(w, err)
		return
	}
	if !ok {
		jsonError(w, "event not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// POST /api/v1/calendars/{id}/import with a text/calendar body
func (s *Server) importICS(w http.ResponseWriter, r *http.Request) {
	body := http.MaxBytesReader(w, r.Body, maxImportSize)
	res, err := s.events.ImportICS(mux.Vars(r)["id"], body, s.loc)
	if err != nil {
		s.fail(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, res)
}

// POST /api/v1/calendars/{id}/import/revert
func (s *Server) revertImport(w http.ResponseWriter, r *http.Request) {
	var req RevertRequest
	if err := decodeBody(r, &req); err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	removed, err := s.events.RevertImport(mux.Vars(r)["id"], req.UIDs)
	if err != nil {
		s.fail(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]int{"removed": removed})
}

// GET /api/v1/calendars/{id}/export
func (s *Server) exportICS(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if _, ok := s.calendars.Get(id); !ok {
		jsonError(w, "calendar not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.ics"`, id))
	if _, err := s.events.ExportICS(id, w); err != nil {
		s.log.Error().Err(err).Str("calendar_id", id).Msg("export failed")
	}
}

// GET /api/v1/month/{year}/{month}
func (s *Server) month(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	year, _ := strconv.Atoi(vars["year"])
	m, _ := strconv.Atoi(vars["month"])
	if m < 1 || m > 12 {
		jsonError(w, "month must be 1-12", http.StatusBadRequest)
		return
	}

	days, err := s.events.MonthView(year, time.Month(m))
	if err != nil {
		s.fail(w, err)
		return
	}
	from, to := display.MonthRange(year, time.Month(m))
	jsonResponse(w, http.StatusOK, ViewResponse{From: from, To: to, Days: days})
}

// GET /api/v1/week/{date}: seven days starting at date
func (s *Server) week(w http.ResponseWriter, r *http.Request) {
	first, err := domain.ParseDate(mux.Vars(r)["date"])
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	dates := display.WeekDays(first)
	days, err := s.events.WeekView(dates)
	if err != nil {
		s.fail(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, ViewResponse{From: dates[0], To: dates[len(dates)-1], Days: days})
}

// GET /api/v1/agenda?from=YYYY-MM-DD&to=YYYY-MM-DD, defaulting to the next 7 days
func (s *Server) agenda(w http.ResponseWriter, r *http.Request) {
	y, mo, d := time.Now().In(s.loc).Date()
	from := domain.NewDate(y, mo, d)
	if v := r.URL.Query().Get("from"); v != "" {
		d, err := domain.ParseDate(v)
		if err != nil {
			jsonError(w, err.Error(), http.StatusBadRequest)
			return
		}
		from = d
	}
	to := from.AddDays(6)
	if v := r.URL.Query().Get("to"); v != "" {
		d, err := domain.ParseDate(v)
		if err != nil {
			jsonError(w, err.Error(), http.StatusBadRequest)
			return
		}
		to = d
	}
	if to.Before(from) {
		jsonError(w, "to is before from", http.StatusBadRequest)
		return
	}

	occs, err := s.events.Agenda(from, to)
	if err != nil {
		s.fail(w, err)
		return
	}
	out := make([]EventResponse, 0, len(occs))
	for _, occ := range occs {
		out = append(out, toResponse(occ.Event))
	}
	jsonResponse(w, http.StatusOK, out)
}
