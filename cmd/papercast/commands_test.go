package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"papercast/internal/jobs"
	"papercast/internal/services"
	"papercast/internal/testsupport"
)

var taskPattern = regexp.MustCompile(`Task (\S+) submitted`)

func TestRunCommandCreatesPodcast(t *testing.T) {
	llmServer := testsupport.NewLLMServer(t, testsupport.DefaultScriptJSON)
	speech := testsupport.NewSpeechServer(t, http.StatusOK)
	cfg := testsupport.NewConfig(t,
		testsupport.WithLLMEndpoint(llmServer.URL),
		testsupport.WithSpeechEndpoint(speech.URL),
	)
	path := writeTestConfig(t, cfg)
	doc := testsupport.WriteDocument(t, t.TempDir(), "notes.txt", "Photosynthesis converts light into chemical energy.")

	out, err := runCLI(t, "--config", path, "run", doc)
	if err != nil {
		t.Fatalf("run: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Podcast created successfully") {
		t.Fatalf("expected success message:\n%s", out)
	}
	matches, _ := filepath.Glob(filepath.Join(cfg.Paths.PodcastDir, "podcast_*.mp3"))
	if len(matches) != 1 {
		t.Fatalf("expected one podcast, found %v", matches)
	}
	uploads, _ := os.ReadDir(cfg.Paths.UploadDir)
	if len(uploads) != 0 {
		t.Fatalf("expected uploads to be cleaned up, found %d entries", len(uploads))
	}
}

func TestRunCommandReportsPlaceholder(t *testing.T) {
	llmServer := testsupport.NewLLMServer(t, testsupport.DefaultScriptJSON)
	speech := testsupport.NewSpeechServer(t, http.StatusBadRequest)
	cfg := testsupport.NewConfig(t,
		testsupport.WithLLMEndpoint(llmServer.URL),
		testsupport.WithSpeechEndpoint(speech.URL),
	)
	path := writeTestConfig(t, cfg)
	doc := testsupport.WriteDocument(t, t.TempDir(), "notes.txt", "Plate tectonics shape continents.")

	out, err := runCLI(t, "--config", path, "run", doc)
	if err != nil {
		t.Fatalf("run: %v\n%s", err, out)
	}
	if !strings.Contains(out, "silent placeholder") {
		t.Fatalf("expected placeholder notice:\n%s", out)
	}
}

func TestRunCommandFailsOnUnsupportedFile(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	path := writeTestConfig(t, cfg)
	doc := testsupport.WriteDocument(t, t.TempDir(), "slides.pptx", "binary")

	_, err := runCLI(t, "--config", path, "run", doc)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestClientCommandsAgainstServer(t *testing.T) {
	llmServer := testsupport.NewLLMServer(t, testsupport.DefaultScriptJSON)
	speech := testsupport.NewSpeechServer(t, http.StatusOK)
	cfg := testsupport.NewConfig(t,
		testsupport.WithLLMEndpoint(llmServer.URL),
		testsupport.WithSpeechEndpoint(speech.URL),
	)
	path := writeTestConfig(t, cfg)
	addr := startServer(t, cfg)
	doc := testsupport.WriteDocument(t, t.TempDir(), "lecture.txt", "The French Revolution began in 1789.")

	out, err := runCLI(t, "--config", path, "--api", addr, "submit", doc, "--wait", "--interval", "20ms")
	if err != nil {
		t.Fatalf("submit: %v\n%s", err, out)
	}
	match := taskPattern.FindStringSubmatch(out)
	if match == nil {
		t.Fatalf("no task id in output:\n%s", out)
	}
	id := match[1]
	if !strings.Contains(out, "papercast fetch "+id) {
		t.Fatalf("expected fetch hint:\n%s", out)
	}

	out, err = runCLI(t, "--config", path, "--api", addr, "status", id, "--json")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	var job jobs.Job
	if err := json.Unmarshal([]byte(out), &job); err != nil {
		t.Fatalf("decode status: %v\n%s", err, out)
	}
	if job.Status != jobs.StatusCompleted || job.AudioURL != "/get_podcast/"+id {
		t.Fatalf("unexpected job %+v", job)
	}

	target := filepath.Join(t.TempDir(), "episode.mp3")
	if out, err := runCLI(t, "--config", path, "--api", addr, "fetch", id, "-o", target); err != nil {
		t.Fatalf("fetch: %v\n%s", err, out)
	}
	data, err := os.ReadFile(target)
	if err != nil || !strings.HasPrefix(string(data), "ID3") {
		t.Fatalf("unexpected download %q: %v", data, err)
	}

	out, err = runCLI(t, "--config", path, "--api", addr, "list")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(out, id) || !strings.Contains(out, "Test Episode") || !strings.Contains(out, "1 podcast(s)") {
		t.Fatalf("unexpected list output:\n%s", out)
	}
}

func TestStatusUnknownJob(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	path := writeTestConfig(t, cfg)
	addr := startServer(t, cfg)

	_, err := runCLI(t, "--config", path, "--api", addr, "status", "does-not-exist")
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestFetchMissingPodcastLeavesNoFile(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	path := writeTestConfig(t, cfg)
	addr := startServer(t, cfg)
	dir := t.TempDir()
	target := filepath.Join(dir, "missing.mp3")

	if _, err := runCLI(t, "--config", path, "--api", addr, "fetch", "nope", "-o", target); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Fatalf("expected no files left behind, found %d", len(entries))
	}
}

func TestSubmitServerUnavailable(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	path := writeTestConfig(t, cfg)
	doc := testsupport.WriteDocument(t, t.TempDir(), "notes.txt", "hello")

	_, err := runCLI(t, "--config", path, "--api", "127.0.0.1:1", "submit", doc)
	if err == nil || !strings.Contains(err.Error(), "papercast serve") {
		t.Fatalf("expected unavailable hint, got %v", err)
	}
}

func TestDoctorPassesWithHealthyServices(t *testing.T) {
	llmServer := testsupport.NewLLMServer(t, `{"ok":true}`)
	cfg := testsupport.NewConfig(t, testsupport.WithLLMEndpoint(llmServer.URL))
	path := writeTestConfig(t, cfg)

	out, err := runCLI(t, "--config", path, "doctor")
	if err != nil {
		t.Fatalf("doctor: %v\n%s", err, out)
	}
	if strings.Contains(out, "[ERROR]") {
		t.Fatalf("unexpected failure:\n%s", out)
	}
}

func TestDoctorReportsFailures(t *testing.T) {
	t.Setenv("GROQ_API_KEY", "")
	cfg := testsupport.NewConfig(t)
	cfg.LLM.APIKey = ""
	path := writeTestConfig(t, cfg)

	out, err := runCLI(t, "--config", path, "doctor")
	if err == nil || !strings.Contains(err.Error(), "checks failed") {
		t.Fatalf("expected failed checks, got %v", err)
	}
	if !strings.Contains(out, "API key missing") {
		t.Fatalf("expected missing key detail:\n%s", out)
	}
}

func TestServeStopsOnCancel(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	path := writeTestConfig(t, cfg)

	cmd := newRootCommand()
	cmd.SetOut(os.Stderr)
	cmd.SetArgs([]string{"--config", path, "serve"})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := cmd.ExecuteContext(ctx); err != nil {
		t.Fatalf("serve: %v", err)
	}
	if _, err := os.Stat(cfg.LockPath()); err != nil {
		t.Fatalf("expected lock file to exist after run: %v", err)
	}
}

func TestTestNotifyWithoutTopic(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	path := writeTestConfig(t, cfg)

	out, err := runCLI(t, "--config", path, "test-notify")
	if err != nil {
		t.Fatalf("test-notify: %v", err)
	}
	if !strings.Contains(out, "Notifications disabled") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestNoteCommandAgainstServerWithoutPublishing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	path := writeTestConfig(t, cfg)
	addr := startServer(t, cfg)

	if _, err := runCLI(t, "--config", path, "--api", addr, "note", "note-1"); err == nil || !strings.Contains(err.Error(), "--user") {
		t.Fatalf("expected missing user error, got %v", err)
	}
	_, err := runCLI(t, "--config", path, "--api", addr, "note", "note-1", "--user", "user-1")
	if err == nil || !strings.Contains(err.Error(), "note publishing is not configured") {
		t.Fatalf("expected disabled publishing error, got %v", err)
	}
}
