// Package api serves the calendar engine over JSON HTTP.
package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/tazhate/solcal/internal/calendars"
	"github.com/tazhate/solcal/internal/service"
	"github.com/tazhate/solcal/internal/storage"
)

var validate = validator.New()

// Credentials protect /api with basic auth when Username is set
type Credentials struct {
	Username string
	Password string
}

type Server struct {
	Server    *http.Server
	events    *service.EventService
	calendars *calendars.Manager
	creds     Credentials
	loc       *time.Location
	log       zerolog.Logger
}

// New builds the server. Floating times in imported files are read in loc.
func New(addr string, events *service.EventService, cals *calendars.Manager, creds Credentials, loc *time.Location, log zerolog.Logger) *Server {
	if loc == nil {
		loc = time.UTC
	}
	s := &Server{
		Server: &http.Server{
			Addr:         addr,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		events:    events,
		calendars: cals,
		creds:     creds,
		loc:       loc,
		log:       log.With().Str("component", "api").Logger(),
	}

	r := mux.NewRouter()
	s.setupRoutes(r)
	s.Server.Handler = r
	return s
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.Server.Handler
}

func (s *Server) setupRoutes(r *mux.Router) {
	r.Use(s.loggingMiddleware)

	r.HandleFunc("/health", s.healthCheck).Methods("GET")

	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(s.basicAuth)

	cals := api.PathPrefix("/calendars").Subrouter()
	cals.HandleFunc("", s.listCalendars).Methods("GET")
	cals.HandleFunc("", s.createCalendar).Methods("POST")
	cals.HandleFunc("/{id}", s.updateCalendar).Methods("PATCH")
	cals.HandleFunc("/{id}", s.deleteCalendar).Methods("DELETE")

	cals.HandleFunc("/{id}/events", s.listEvents).Methods("GET")
	cals.HandleFunc("/{id}/events", s.createEvent).Methods("POST")
	cals.HandleFunc("/{id}/events/{uid}", s.getEvent).Methods("GET")
	cals.HandleFunc("/{id}/events/{uid}", s.updateEvent).Methods("PUT")
	cals.HandleFunc("/{id}/events/{uid}", s.deleteEvent).Methods("DELETE")

	cals.HandleFunc("/{id}/import", s.importICS).Methods("POST")
	cals.HandleFunc("/{id}/import/revert", s.revertImport).Methods("POST")
	cals.HandleFunc("/{id}/export", s.exportICS).Methods("GET")

	api.HandleFunc("/month/{year:[0-9]{4}}/{month:[0-9]{1,2}}", s.month).Methods("GET")
	api.HandleFunc("/week/{date}", s.week).Methods("GET")
	api.HandleFunc("/agenda", s.agenda).Methods("GET")
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Str("address", s.Server.Addr).Msg("starting server")
	if err := s.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop gracefully shuts down the server
func (s *Server) Stop(ctx context.Context) error {
	s.log.Info().Msg("shutting down server")
	return s.Server.Shutdown(ctx)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{w, http.StatusOK}

		next.ServeHTTP(rw, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rw.status).
			Dur("duration", time.Since(start)).
			Msg("request processed")
	})
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (s *Server) basicAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.creds.Username == "" {
			next.ServeHTTP(w, r)
			return
		}
		username, password, ok := r.BasicAuth()
		if !ok ||
			subtle.ConstantTimeCompare([]byte(username), []byte(s.creds.Username)) != 1 ||
			subtle.ConstantTimeCompare([]byte(password), []byte(s.creds.Password)) != 1 {
			w.Header().Set("WWW-Authenticate", `Basic realm="solcal"`)
			jsonError(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func jsonResponse(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(APIResponse{Success: true, Data: data})
}

func jsonError(w http.ResponseWriter, msg string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(APIResponse{Success: false, Error: msg})
}

// fail maps engine errors to HTTP statuses
func (s *Server) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, calendars.ErrCalendarNotFound), errors.Is(err, storage.ErrNotFound):
		jsonError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, storage.ErrConflict):
		jsonError(w, err.Error(), http.StatusConflict)
	case errors.Is(err, calendars.ErrInvalidCalendar), errors.Is(err, service.ErrInvalidEvent),
		errors.Is(err, service.ErrNotRecurring):
		jsonError(w, err.Error(), http.StatusBadRequest)
	default:
		s.log.Error().Err(err).Msg("request failed")
		jsonError(w, "internal error", http.StatusInternalServerError)
	}
}
