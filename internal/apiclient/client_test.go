package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"papercast/internal/jobs"
	"papercast/internal/publish"
	"papercast/internal/services"
)

func TestSubmitSendsMultipartForm(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/create-podcast" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		file, header, err := r.FormFile("pdf_file")
		if err != nil {
			t.Errorf("FormFile: %v", err)
			return
		}
		data, _ := io.ReadAll(file)
		if header.Filename != "paper.txt" || string(data) != "hello" {
			t.Errorf("unexpected upload %q %q", header.Filename, data)
		}
		if r.FormValue("model") != "llama" || r.FormValue("sync") != "true" {
			t.Errorf("unexpected fields model=%q sync=%q", r.FormValue("model"), r.FormValue("sync"))
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"task_id": "abc"})
	}))
	defer server.Close()

	client, err := New(server.URL)
	if err != nil {
		t.Fatal(err)
	}
	id, err := client.Submit(context.Background(), "paper.txt", strings.NewReader("hello"), "llama", true)
	if err != nil || id != "abc" {
		t.Fatalf("Submit = %q, %v", id, err)
	}
}

func TestStatusMapsNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "Task not found"})
	}))
	defer server.Close()

	client, _ := New(server.URL)
	_, err := client.Status(context.Background(), "missing")
	if !errors.Is(err, services.ErrNotFound) || !strings.Contains(err.Error(), "Task not found") {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestWaitForTerminalPolls(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		status := jobs.StatusProcessing
		if calls.Add(1) >= 3 {
			status = jobs.StatusCompleted
		}
		_ = json.NewEncoder(w).Encode(jobs.Job{ID: "j", Status: status})
	}))
	defer server.Close()

	client, _ := New(server.URL)
	var updates int
	job, err := client.WaitForTerminal(context.Background(), "j", 5*time.Millisecond, func(jobs.Job) { updates++ })
	if err != nil || job.Status != jobs.StatusCompleted {
		t.Fatalf("WaitForTerminal = %+v, %v", job, err)
	}
	if updates != 3 {
		t.Fatalf("expected 3 updates, got %d", updates)
	}
}

func TestDownloadCopiesBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/get_podcast/j" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("ID3data"))
	}))
	defer server.Close()

	client, _ := New(server.URL)
	var buf bytes.Buffer
	n, err := client.Download(context.Background(), "j", &buf)
	if err != nil || n != 7 || buf.String() != "ID3data" {
		t.Fatalf("Download = %d, %v, %q", n, err, buf.String())
	}
}

func TestUnreachableServer(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	addr := server.URL
	server.Close()

	client, _ := New(addr)
	if _, err := client.Health(context.Background()); !errors.Is(err, ErrAPIUnavailable) {
		t.Fatalf("expected ErrAPIUnavailable, got %v", err)
	}
}

func TestNewAcceptsBareHostPort(t *testing.T) {
	client, err := New("127.0.0.1:8000")
	if err != nil {
		t.Fatal(err)
	}
	if client.base.String() != "http://127.0.0.1:8000" {
		t.Fatalf("unexpected base %q", client.base.String())
	}
}

func TestSubmitNotePostsJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate_podcast_from_note" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode: %v", err)
		}
		if body["note_id"] != "note-1" || body["user_id"] != "user-1" {
			t.Errorf("unexpected body %v", body)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"task_id":   "job-n",
			"audio_url": "https://cdn.example/a.mp3",
			"podcast":   map[string]any{"job_id": "job-n", "note_id": "note-1", "title": "Cells"},
		})
	}))
	defer server.Close()

	client, _ := New(server.URL)
	result, err := client.SubmitNote(context.Background(), publish.NoteRequest{NoteID: "note-1", UserID: "user-1"})
	if err != nil {
		t.Fatal(err)
	}
	if result.JobID != "job-n" || result.AudioURL != "https://cdn.example/a.mp3" || result.Podcast.Title != "Cells" {
		t.Fatalf("unexpected result %+v", result)
	}
}
