package publish

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"papercast/internal/jobs"
	"papercast/internal/pipeline"
	"papercast/internal/services"
)

// fakeSubmitter stands in for the pipeline service: it records the submission
// and leaves a terminal job in the store.
type fakeSubmitter struct {
	store  *jobs.Store
	dir    string
	fail   string
	err    error
	called []pipeline.Submission
}

func (f *fakeSubmitter) Submit(_ context.Context, sub pipeline.Submission) (string, error) {
	f.called = append(f.called, sub)
	if f.err != nil {
		return "", f.err
	}
	id := "job-note"
	if err := f.store.Create(id, jobs.Job{
		OriginalFilename: sub.Filename,
		Title:            sub.Title,
		UserID:           sub.UserID,
		NoteID:           sub.NoteID,
	}); err != nil {
		return "", err
	}
	if f.fail != "" {
		return id, f.store.Update(id, jobs.Patch{Status: jobs.Ptr(jobs.StatusFailed), Message: jobs.Ptr("Error: " + f.fail)})
	}
	audioPath := filepath.Join(f.dir, "podcast_"+id+".mp3")
	if err := os.WriteFile(audioPath, []byte("ID3note"), 0o644); err != nil {
		return "", err
	}
	return id, f.store.Update(id, jobs.Patch{Status: jobs.Ptr(jobs.StatusCompleted), AudioPath: jobs.Ptr(audioPath)})
}

const lectureURL = "https://proj.supabase.co/storage/v1/object/public/notes/user-1/lecture.pdf"

func newImportEnv(t *testing.T) (*NoteImporter, *fakeBackend, *fakeSubmitter, *jobs.Store) {
	t.Helper()
	store := jobs.NewStore()
	backend := &fakeBackend{
		notes:   map[string]Note{"note-1": {FilePath: lectureURL, Title: "Cell Biology"}},
		objects: map[string][]byte{lectureURL: []byte("%PDF-1.7 lecture")},
	}
	publisher, err := New(backend, "podcast_audio", "podcasts", store, nil)
	if err != nil {
		t.Fatal(err)
	}
	submitter := &fakeSubmitter{store: store, dir: t.TempDir()}
	importer, err := NewNoteImporter(publisher, submitter, "notes", nil)
	if err != nil {
		t.Fatal(err)
	}
	return importer, backend, submitter, store
}

func TestImportNotePublishesUnderOwner(t *testing.T) {
	importer, backend, submitter, store := newImportEnv(t)

	result, err := importer.Import(context.Background(), NoteRequest{NoteID: "note-1", UserID: "user-1"})
	if err != nil {
		t.Fatalf("Import: %v", err)
	}

	if backend.notesTable != "notes" {
		t.Fatalf("unexpected notes table %q", backend.notesTable)
	}
	if len(submitter.called) != 1 {
		t.Fatalf("expected one submission, got %d", len(submitter.called))
	}
	sub := submitter.called[0]
	if !sub.Sync || sub.Filename != "lecture.pdf" || string(sub.Data) != "%PDF-1.7 lecture" {
		t.Fatalf("unexpected submission %+v", sub)
	}
	if sub.UserID != "user-1" || sub.NoteID != "note-1" || sub.Title != "Cell Biology" {
		t.Fatalf("note owner not carried: %+v", sub)
	}

	if string(backend.uploads["podcast_audio/user-1/podcast_job-note.mp3"]) != "ID3note" {
		t.Fatalf("unexpected uploads %v", backend.uploads)
	}
	if len(backend.rows) != 1 {
		t.Fatalf("expected one row, got %d", len(backend.rows))
	}
	episode := backend.rows[0].(Episode)
	if episode.UserID != "user-1" || episode.NoteID != "note-1" || episode.Title != "Cell Biology" {
		t.Fatalf("unexpected episode %+v", episode)
	}
	if episode.Description != "Podcast generated from note Cell Biology" {
		t.Fatalf("unexpected description %q", episode.Description)
	}
	wantURL := "https://cdn.example/podcast_audio/user-1/podcast_job-note.mp3"
	if result.JobID != "job-note" || result.AudioURL != wantURL || result.Podcast.AudioURL != wantURL {
		t.Fatalf("unexpected result %+v", result)
	}
	job, _ := store.Get("job-note")
	if job.PublicURL != wantURL || job.Status != jobs.StatusCompleted {
		t.Fatalf("unexpected job %+v", job)
	}
}

func TestImportNoteTitleOverride(t *testing.T) {
	importer, backend, _, _ := newImportEnv(t)
	if _, err := importer.Import(context.Background(), NoteRequest{NoteID: "note-1", UserID: "user-1", Title: "Week 3"}); err != nil {
		t.Fatal(err)
	}
	episode := backend.rows[0].(Episode)
	if episode.Title != "Week 3" || !strings.HasSuffix(episode.Description, "Cell Biology") {
		t.Fatalf("unexpected episode %+v", episode)
	}
}

func TestImportNoteErrors(t *testing.T) {
	tests := []struct {
		name   string
		req    NoteRequest
		mutate func(*fakeBackend, *fakeSubmitter)
		marker error
	}{
		{"missing ids", NoteRequest{NoteID: "note-1"}, nil, services.ErrValidation},
		{"user with slash", NoteRequest{NoteID: "note-1", UserID: "../etc"}, nil, services.ErrValidation},
		{"unknown note", NoteRequest{NoteID: "nope", UserID: "user-1"}, nil, services.ErrNotFound},
		{"document missing", NoteRequest{NoteID: "note-1", UserID: "user-1"}, func(b *fakeBackend, _ *fakeSubmitter) {
			b.objects = nil
		}, services.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			importer, backend, submitter, _ := newImportEnv(t)
			if tt.mutate != nil {
				tt.mutate(backend, submitter)
			}
			_, err := importer.Import(context.Background(), tt.req)
			if !errors.Is(err, tt.marker) {
				t.Fatalf("expected %v, got %v", tt.marker, err)
			}
			if len(submitter.called) != 0 || len(backend.rows) != 0 {
				t.Fatal("nothing should be generated or published")
			}
		})
	}
}

func TestImportNoteFailedJobIsNotPublished(t *testing.T) {
	importer, backend, submitter, _ := newImportEnv(t)
	submitter.fail = "document contains no readable text"

	_, err := importer.Import(context.Background(), NoteRequest{NoteID: "note-1", UserID: "user-1"})
	if err == nil || !strings.Contains(err.Error(), "no readable text") {
		t.Fatalf("expected generation failure, got %v", err)
	}
	if len(backend.rows) != 0 || len(backend.uploads) != 0 {
		t.Fatal("failed jobs must not be published")
	}
}

func TestJobFinishedLeavesNoteJobsToImporter(t *testing.T) {
	backend := &fakeBackend{}
	publisher, _ := New(backend, "b", "t", nil, nil)
	publisher.JobFinished(context.Background(), jobs.Job{ID: "x", Status: jobs.StatusCompleted, NoteID: "note-1", AudioPath: "/nonexistent"})
	if len(backend.rows) != 0 || len(backend.uploads) != 0 {
		t.Fatal("note jobs are published by the importer")
	}
}

func TestNoteFilename(t *testing.T) {
	tests := []struct {
		ref  string
		want string
	}{
		{lectureURL, "lecture.pdf"},
		{"notes/user-1/summary.html", "summary.html"},
		{"https://proj.supabase.co/storage/v1/object/public/notes/user-1/scan", "note-9.pdf"},
		{"", "note-9.pdf"},
	}
	for _, tt := range tests {
		if got := noteFilename("note-9", tt.ref); got != tt.want {
			t.Fatalf("noteFilename(%q) = %q, want %q", tt.ref, got, tt.want)
		}
	}
}

func TestParseObjectRef(t *testing.T) {
	tests := []struct {
		ref        string
		bucket     string
		objectPath string
		ok         bool
	}{
		{lectureURL, "notes", "user-1/lecture.pdf", true},
		{"https://proj.supabase.co/storage/v1/object/sign/notes/a.pdf?token=abc", "notes", "a.pdf", true},
		{"notes/a.pdf", "notes", "a.pdf", true},
		{"https://example.com/files/a.pdf", "", "", false},
		{"notes", "", "", false},
		{"notes/", "", "", false},
	}
	for _, tt := range tests {
		bucket, objectPath, err := ParseObjectRef(tt.ref)
		if (err == nil) != tt.ok || bucket != tt.bucket || objectPath != tt.objectPath {
			t.Fatalf("ParseObjectRef(%q) = %q, %q, %v", tt.ref, bucket, objectPath, err)
		}
	}
}
