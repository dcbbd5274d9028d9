package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"papercast/internal/logging"
	"papercast/internal/pipeline"
	"papercast/internal/publish"
	"papercast/internal/stage"
)

const (
	defaultMaxUploadBytes = 50 << 20
	maxNoteRequestBytes   = 64 << 10
	defaultListLimit      = 20
	maxListLimit          = 200
)

// Options tunes a Server.
type Options struct {
	// MaxUploadBytes caps the multipart body; zero selects 50 MiB.
	MaxUploadBytes int64
	// Checkers feed the readiness section of /health.
	Checkers []stage.Checker
	// Notes serves /api/generate_podcast_from_note; nil disables it.
	Notes NoteImporter
}

// NoteImporter builds and publishes a podcast from a stored note.
type NoteImporter interface {
	Import(ctx context.Context, req publish.NoteRequest) (publish.NoteResult, error)
}

// Server serves the podcast API.
type Server struct {
	svc            *pipeline.Service
	checkers       []stage.Checker
	notes          NoteImporter
	maxUploadBytes int64
	logger         *slog.Logger
	now            func() time.Time
}

// New builds a Server around svc.
func New(svc *pipeline.Service, opts Options, logger *slog.Logger) *Server {
	maxUpload := opts.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = defaultMaxUploadBytes
	}
	return &Server{
		svc:            svc,
		checkers:       opts.Checkers,
		notes:          opts.Notes,
		maxUploadBytes: maxUpload,
		logger:         logging.NewComponentLogger(logger, "api-server"),
		now:            time.Now,
	}
}

// Handler returns the routed handler with request middleware applied.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(s.requestIDMiddleware, s.accessLogMiddleware)

	r.HandleFunc("/create-podcast", s.handleCreatePodcast).Methods(http.MethodPost)
	r.HandleFunc("/podcast_status/{id}", s.handleStatus).Methods(http.MethodGet)
	r.HandleFunc("/get_podcast/{id}", s.handleGetPodcast).Methods(http.MethodGet)
	r.HandleFunc("/podcast/{id}/status", s.handleStatus).Methods(http.MethodGet)
	r.HandleFunc("/podcast/{id}", s.handleGetPodcast).Methods(http.MethodGet)
	r.HandleFunc("/api/podcasts", s.handleListPodcasts).Methods(http.MethodGet)
	r.HandleFunc("/api/generate_podcast_from_note", s.handleNotePodcast).Methods(http.MethodPost)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		s.writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	return r
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
