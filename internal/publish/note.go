package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"papercast/internal/extract"
	"papercast/internal/jobs"
	"papercast/internal/logging"
	"papercast/internal/pipeline"
	"papercast/internal/services"
)

// Submitter runs one document through the pipeline.
type Submitter interface {
	Submit(ctx context.Context, sub pipeline.Submission) (string, error)
}

// NoteRequest asks for a podcast built from a stored note.
type NoteRequest struct {
	NoteID string `json:"note_id"`
	UserID string `json:"user_id"`
	// Title overrides the note's own title.
	Title string `json:"title,omitempty"`
}

// NoteResult describes the published podcast.
type NoteResult struct {
	JobID    string  `json:"task_id"`
	AudioURL string  `json:"audio_url"`
	Podcast  Episode `json:"podcast"`
}

// NoteImporter turns a note row into a published podcast: it fetches the
// note's document, runs it through the pipeline synchronously, and publishes
// the audio under the note owner's prefix.
type NoteImporter struct {
	publisher  *Publisher
	submitter  Submitter
	notesTable string
	logger     *slog.Logger
}

// NewNoteImporter builds an importer reading notes from notesTable.
func NewNoteImporter(publisher *Publisher, submitter Submitter, notesTable string, logger *slog.Logger) (*NoteImporter, error) {
	if publisher == nil || submitter == nil {
		return nil, errors.New("publish: note import requires a publisher and a submitter")
	}
	if publisher.jobs == nil {
		return nil, errors.New("publish: note import requires the job store")
	}
	if strings.TrimSpace(notesTable) == "" {
		return nil, errors.New("publish: notes table is required")
	}
	return &NoteImporter{
		publisher:  publisher,
		submitter:  submitter,
		notesTable: strings.TrimSpace(notesTable),
		logger:     logging.NewComponentLogger(logger, "note-import"),
	}, nil
}

// Import builds and publishes the podcast for req. Missing notes are
// services.ErrNotFound and malformed requests services.ErrValidation.
func (n *NoteImporter) Import(ctx context.Context, req NoteRequest) (NoteResult, error) {
	noteID := strings.TrimSpace(req.NoteID)
	userID := strings.TrimSpace(req.UserID)
	if noteID == "" || userID == "" {
		return NoteResult{}, services.Wrap(services.ErrValidation, "", "import note", "note_id and user_id are required", nil)
	}
	if strings.ContainsAny(userID, `/\`) || userID == "." || userID == ".." {
		return NoteResult{}, services.Wrap(services.ErrValidation, "", "import note", fmt.Sprintf("invalid user_id %q", userID), nil)
	}
	logger := logging.WithContext(ctx, n.logger).With(
		logging.String("note_id", noteID),
		logging.String("user_id", userID),
	)

	note, err := n.publisher.backend.FetchNote(n.notesTable, noteID)
	if err != nil {
		if errors.Is(err, ErrNoteNotFound) {
			return NoteResult{}, services.Wrap(services.ErrNotFound, "", "fetch note", "Note not found", err)
		}
		return NoteResult{}, fmt.Errorf("fetch note %s: %w", noteID, err)
	}
	data, err := n.publisher.backend.Download(note.FilePath)
	if err != nil {
		return NoteResult{}, services.Wrap(services.ErrNotFound, "", "download note", "Could not download the note document", err)
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = strings.TrimSpace(note.Title)
	}
	id, err := n.submitter.Submit(ctx, pipeline.Submission{
		Filename: noteFilename(noteID, note.FilePath),
		Data:     data,
		Sync:     true,
		Title:    title,
		UserID:   userID,
		NoteID:   noteID,
	})
	if err != nil {
		return NoteResult{}, fmt.Errorf("podcast generation failed: %w", err)
	}

	job, found := n.publisher.jobs.Get(id)
	if !found {
		return NoteResult{}, fmt.Errorf("podcast generation failed: job %s disappeared", id)
	}
	if job.Status != jobs.StatusCompleted {
		return NoteResult{}, fmt.Errorf("podcast generation failed: %s", strings.TrimPrefix(job.Message, "Error: "))
	}

	noteTitle := strings.TrimSpace(note.Title)
	if noteTitle == "" {
		noteTitle = noteID
	}
	episode, err := n.publisher.publish(ctx, job, "Podcast generated from note "+noteTitle)
	if err != nil {
		return NoteResult{}, fmt.Errorf("publish podcast %s: %w", id, err)
	}
	logger.Info("note podcast published",
		logging.JobID(id),
		logging.String(logging.FieldEventType, "note_podcast_published"),
		logging.String("public_url", episode.AudioURL),
		logging.Bool("fallback", job.Fallback),
	)
	return NoteResult{JobID: id, AudioURL: episode.AudioURL, Podcast: episode}, nil
}

// noteFilename names the upload after the stored object. Notes whose object
// has no supported extension are assumed to be PDFs; extraction sniffs the
// content either way.
func noteFilename(noteID, ref string) string {
	name := ""
	if _, objectPath, err := ParseObjectRef(ref); err == nil {
		name = path.Base(objectPath)
	}
	if _, supported := extract.KindForFilename(name); !supported {
		return noteID + ".pdf"
	}
	return name
}
