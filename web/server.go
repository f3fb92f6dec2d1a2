// ABOUTME: Dashboard HTTP server: timeline JSON, message submission, impact rollups, and live SSE push.
// ABOUTME: One chi router behind request logging; all state reads go through store snapshots.
package web

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/oklog/ulid/v2"

	"github.com/CIRISAI/scoutgui/pipeline"
	"github.com/CIRISAI/scoutgui/scout"
)

// Submitter sends a message to the agent. Satisfied by *scout.Client;
// narrowed to an interface so handler tests can fake acknowledgments.
type Submitter interface {
	SubmitMessage(ctx context.Context, channelID, content string) (scout.SubmitResult, error)
}

// ServerConfig holds the configuration for the dashboard server.
type ServerConfig struct {
	Store     *pipeline.Store
	Submitter Submitter
	ChannelID string
	Coeffs    pipeline.ImpactCoefficients
	AgentName string // display name for the page header
}

// Server serves the dashboard UI and its JSON API.
type Server struct {
	store     *pipeline.Store
	submitter Submitter
	channelID string
	coeffs    pipeline.ImpactCoefficients
	agentName string
	runID     string
	router    chi.Router
	page      *template.Template
}

// NewServer builds the router and parses the embedded page template.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Store == nil {
		return nil, errors.New("web: ServerConfig.Store is required")
	}

	page, err := template.ParseFS(templateFS, "templates/dashboard.html")
	if err != nil {
		return nil, fmt.Errorf("parsing dashboard template: %w", err)
	}

	s := &Server{
		store:     cfg.Store,
		submitter: cfg.Submitter,
		channelID: cfg.ChannelID,
		coeffs:    cfg.Coeffs,
		agentName: cfg.AgentName,
		runID:     ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String(),
		page:      page,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	r.Get("/", s.handleIndex)
	r.Get("/api/timeline", s.handleTimeline)
	r.Get("/api/tasks/{id}/impact", s.handleImpact)
	r.Post("/api/message", s.handleSubmit)
	r.Get("/api/events", s.handleEvents)
	r.Get("/api/stats", s.handleStats)
	r.Handle("/metrics", s.metricsHandler())

	s.router = r
	return s, nil
}

// ServeHTTP delegates to the internal router.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// RunID identifies this server process, stamped into page and API responses
// so a browser can detect a restart and reconnect its event stream.
func (s *Server) RunID() string {
	return s.runID
}

// handleIndex renders the dashboard page shell; all data arrives over the
// JSON API and the event stream.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	data := struct {
		AgentName string
		ChannelID string
		RunID     string
	}{
		AgentName: s.agentName,
		ChannelID: s.channelID,
		RunID:     s.runID,
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.page.Execute(w, data); err != nil {
		// Headers are already out; nothing to do but log.
		logTemplateError(err)
	}
}

// handleTimeline returns the current projection as JSON.
func (s *Server) handleTimeline(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.timelineView())
}

// handleImpact returns the rollup for one task. A task with no impact data
// answers an explicit JSON null so the client can tell "no data" from zero.
func (s *Server) handleImpact(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	task := s.store.TaskSnapshot(id)
	if task == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "task not found"})
		return
	}

	writeJSON(w, http.StatusOK, pipeline.ComputeImpact(task, s.coeffs))
}

// submitRequest is the browser's message submission body.
type submitRequest struct {
	Content string `json:"content"`
}

// handleSubmit forwards a message to the agent and, on acceptance, registers
// the (task, message) correlation. A rejection relays the server-supplied
// reason with 200: it is a normal outcome, not an HTTP error.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if s.submitter == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "submission not configured"})
		return
	}

	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}
	if req.Content == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "empty message"})
		return
	}

	result, err := s.submitter.SubmitMessage(r.Context(), s.channelID, req.Content)
	if err != nil {
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
		return
	}

	if result.Accepted {
		s.store.RegisterSubmission(result.TaskID, result.MessageID)
	}
	writeJSON(w, http.StatusOK, result)
}

// handleStats exposes the intake counters as JSON for the page footer.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Stats())
}

// handleEvents pushes the timeline to the browser as an SSE stream: one
// "timeline" frame immediately, then one per store version change, until the
// client disconnects.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	updates, cancel := s.store.Subscribe()
	defer cancel()

	send := func() bool {
		data, err := json.Marshal(s.timelineView())
		if err != nil {
			return false
		}
		fmt.Fprintf(w, "event: timeline\ndata: %s\n\n", data)
		flusher.Flush()
		return true
	}

	if !send() {
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case _, open := <-updates:
			if !open {
				return
			}
			if !send() {
				return
			}
		}
	}
}

// writeJSON encodes v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
