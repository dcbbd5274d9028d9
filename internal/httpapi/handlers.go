package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"papercast/internal/logging"
	"papercast/internal/metadata"
	"papercast/internal/pipeline"
	"papercast/internal/publish"
	"papercast/internal/services"
	"papercast/internal/stage"
)

type createResponse struct {
	TaskID string `json:"task_id"`
}

type healthResponse struct {
	Status    string         `json:"status"`
	Timestamp string         `json:"timestamp"`
	Ready     bool           `json:"ready"`
	Checks    []stage.Health `json:"checks"`
	Jobs      map[string]int `json:"jobs"`
}

type podcastsResponse struct {
	Podcasts []metadata.Record `json:"podcasts"`
}

func (s *Server) handleCreatePodcast(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("upload exceeds %d bytes", s.maxUploadBytes))
			return
		}
		s.writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("pdf_file")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "pdf_file is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "failed to read upload")
		return
	}

	runSync, _ := strconv.ParseBool(strings.TrimSpace(r.FormValue("sync")))
	id, err := s.svc.Submit(r.Context(), pipeline.Submission{
		Filename: header.Filename,
		Data:     data,
		Model:    r.FormValue("model"),
		Sync:     runSync,
	})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrValidation):
			s.writeError(w, http.StatusBadRequest, err.Error())
		default:
			logging.ErrorWithContext(logging.WithContext(r.Context(), s.logger), "podcast submission failed", "submit_failed",
				logging.JobID(id),
				logging.Error(err),
			)
			s.writeError(w, http.StatusInternalServerError, "An error occurred: "+err.Error())
		}
		return
	}
	s.writeJSON(w, http.StatusOK, createResponse{TaskID: id})
}

func (s *Server) handleNotePodcast(w http.ResponseWriter, r *http.Request) {
	if s.notes == nil {
		s.writeError(w, http.StatusServiceUnavailable, "note publishing is not configured")
		return
	}
	var req publish.NoteRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxNoteRequestBytes)).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.NoteID) == "" || strings.TrimSpace(req.UserID) == "" {
		s.writeError(w, http.StatusBadRequest, "note_id and user_id are required")
		return
	}

	result, err := s.notes.Import(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrValidation):
			s.writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, services.ErrNotFound):
			s.writeError(w, http.StatusNotFound, err.Error())
		default:
			logging.ErrorWithContext(logging.WithContext(r.Context(), s.logger), "note podcast failed", "note_import_failed",
				logging.String("note_id", req.NoteID),
				logging.Error(err),
			)
			s.writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	job, err := s.svc.Status(id)
	if err != nil {
		s.writeError(w, http.StatusNotFound, "Task not found")
		return
	}
	s.writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleGetPodcast(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	record, err := s.svc.Result(r.Context(), id)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "Podcast not found or not completed")
			return
		}
		s.logger.Error("podcast lookup failed", logging.JobID(id), logging.Error(err))
		s.writeError(w, http.StatusInternalServerError, "podcast lookup failed")
		return
	}

	f, err := os.Open(record.OutputPath)
	if err != nil {
		s.writeError(w, http.StatusNotFound, "Audio file not found")
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		s.writeError(w, http.StatusNotFound, "Audio file not found")
		return
	}

	name := filepath.Base(record.OutputPath)
	w.Header().Set("Content-Type", "audio/mpeg")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	http.ServeContent(w, r, name, info.ModTime(), f)
}

func (s *Server) handleListPodcasts(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			s.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(parsed, maxListLimit)
	}
	records, err := s.svc.Records(r.Context(), limit)
	if err != nil {
		s.logger.Error("list podcasts failed", logging.Error(err))
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if records == nil {
		records = []metadata.Record{}
	}
	s.writeJSON(w, http.StatusOK, podcastsResponse{Podcasts: records})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	checks := stage.Collect(r.Context(), s.checkers...)
	counts := make(map[string]int)
	for _, job := range s.svc.Jobs() {
		counts[string(job.Status)]++
	}
	s.writeJSON(w, http.StatusOK, healthResponse{
		Status:    "healthy",
		Timestamp: s.now().Format("2006-01-02T15:04:05.000000"),
		Ready:     stage.AllReady(checks),
		Checks:    checks,
		Jobs:      counts,
	})
}
