// Package httpapi exposes the geofence check service and a transition
// webhook over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Veraticus/whereabouts/internal/model"
)

const maxBodyBytes = 1 << 20

// Checker answers pull-based geofence checks.
type Checker interface {
	CheckTaskGeofence(ctx context.Context, taskID string) (model.GeofenceStatus, error)
	CheckMultipleTaskGeofences(ctx context.Context, taskIDs []string) (map[string]model.GeofenceStatus, error)
}

// Server holds the dependencies of the HTTP handlers.
type Server struct {
	checker Checker
	sink    EventSink
}

// EventSink accepts a transition event; it must not block on processing.
type EventSink func(event model.TransitionEvent)

// NewServer creates a Server.
func NewServer(checker Checker, sink EventSink) *Server {
	return &Server{checker: checker, sink: sink}
}

// SetupRoutes returns the API router.
func (s *Server) SetupRoutes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(requestLogger)

	r.Get("/healthz", s.health)
	r.Get("/tasks/{taskID}/geofence", s.checkTask)
	r.Post("/tasks/geofence/check", s.checkTasks)
	r.Post("/transitions", s.postTransition)
	r.Handle("/metrics", promhttp.Handler())

	return r
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) checkTask(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")
	status, err := s.checker.CheckTaskGeofence(r.Context(), taskID)
	if err != nil {
		slog.Error("Geofence check failed", "task_id", taskID, "error", err)
		writeError(w, http.StatusInternalServerError, "geofence check failed")
		return
	}
	writeJSON(w, http.StatusOK, status)
}

type checkRequest struct {
	TaskIDs []string `json:"task_ids"`
}

type checkResponse struct {
	Statuses map[string]model.GeofenceStatus `json:"statuses"`
}

func (s *Server) checkTasks(w http.ResponseWriter, r *http.Request) {
	var req checkRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.TaskIDs) == 0 {
		writeError(w, http.StatusBadRequest, "task_ids is required")
		return
	}

	statuses, err := s.checker.CheckMultipleTaskGeofences(r.Context(), req.TaskIDs)
	if err != nil {
		slog.Error("Batch geofence check failed", "tasks", len(req.TaskIDs), "error", err)
		writeError(w, http.StatusInternalServerError, "geofence check failed")
		return
	}
	writeJSON(w, http.StatusOK, checkResponse{Statuses: statuses})
}

type transitionRequest struct {
	Timestamp  time.Time `json:"timestamp"`
	Transition string    `json:"transition"`
	RegionIDs  []string  `json:"region_ids"`
	ErrorCode  int       `json:"error_code"`
}

func (s *Server) postTransition(w http.ResponseWriter, r *http.Request) {
	var req transitionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	event := model.TransitionEvent{
		Timestamp: req.Timestamp,
		RegionIDs: req.RegionIDs,
		ErrorCode: req.ErrorCode,
	}
	if req.ErrorCode == 0 {
		transition, err := model.ParseTransition(req.Transition)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		event.Transition = transition
	}

	s.sink(event)
	writeJSON(w, http.StatusAccepted, map[string]bool{"accepted": true})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer func() { _ = r.Body.Close() }()

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		return errors.New("bad json")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("Failed to write response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		slog.Debug("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}
