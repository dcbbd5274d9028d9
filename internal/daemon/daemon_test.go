package daemon_test

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"papercast/internal/apiclient"
	"papercast/internal/config"
	"papercast/internal/daemon"
	"papercast/internal/jobs"
	"papercast/internal/logging"
	"papercast/internal/pipeline"
	"papercast/internal/testsupport"
)

func startDaemon(t *testing.T, cfg *config.Config) (*daemon.Daemon, *daemon.Pipeline) {
	t.Helper()
	logger := logging.NewNop()
	p, err := daemon.BuildPipeline(context.Background(), cfg, logger)
	if err != nil {
		t.Fatalf("BuildPipeline: %v", err)
	}
	d, err := daemon.New(cfg, p, logger)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	return d, p
}

func TestDaemonStartStop(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d, _ := startDaemon(t, cfg)

	status := d.Status()
	if !status.Running || status.APIAddress == "" || status.MetadataDriver != config.MetadataDriverSQLite {
		t.Fatalf("unexpected status %+v", status)
	}
	if err := d.Start(context.Background()); err == nil {
		t.Fatal("expected second start to fail")
	}

	d.Stop()
	if d.Status().Running {
		t.Fatal("expected daemon to be stopped")
	}
}

func TestSecondInstanceIsLockedOut(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	startDaemon(t, cfg)

	p, err := daemon.BuildPipeline(context.Background(), cfg, logging.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	second, err := daemon.New(cfg, p, logging.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	defer second.Close()
	if err := second.Start(context.Background()); err == nil || !strings.Contains(err.Error(), "already running") {
		t.Fatalf("expected lock error, got %v", err)
	}
}

func TestDaemonServesPodcastEndToEnd(t *testing.T) {
	llmServer := testsupport.NewLLMServer(t, testsupport.DefaultScriptJSON)
	speech := testsupport.NewSpeechServer(t, http.StatusOK)
	cfg := testsupport.NewConfig(t,
		testsupport.WithLLMEndpoint(llmServer.URL),
		testsupport.WithSpeechEndpoint(speech.URL),
	)
	d, _ := startDaemon(t, cfg)

	client, err := apiclient.New(d.Status().APIAddress)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	id, err := client.Submit(ctx, "notes.txt", strings.NewReader("Mitochondria produce ATP."), "", false)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	waitCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	job, err := client.WaitForTerminal(waitCtx, id, 20*time.Millisecond, nil)
	if err != nil {
		t.Fatalf("WaitForTerminal: %v", err)
	}
	if job.Status != jobs.StatusCompleted || job.Fallback {
		t.Fatalf("unexpected job %+v", job)
	}
	if speech.Calls() == 0 {
		t.Fatal("expected speech requests")
	}
	var audio strings.Builder
	if _, err := client.Download(ctx, id, &audio); err != nil {
		t.Fatalf("Download: %v", err)
	}
	if !strings.HasPrefix(audio.String(), "ID3") {
		t.Fatalf("unexpected audio %q", audio.String())
	}
	records, err := client.List(ctx, 10)
	if err != nil || len(records) != 1 || records[0].JobID != id {
		t.Fatalf("List = %+v, %v", records, err)
	}
	health, err := client.Health(ctx)
	if err != nil || health.Status != "healthy" || !health.Ready {
		t.Fatalf("Health = %+v, %v", health, err)
	}
}

func TestFallbackFailureStopsDaemon(t *testing.T) {
	llmServer := testsupport.NewLLMServer(t, testsupport.DefaultScriptJSON)
	speech := testsupport.NewSpeechServer(t, http.StatusBadRequest)
	cfg := testsupport.NewConfig(t,
		testsupport.WithLLMEndpoint(llmServer.URL),
		testsupport.WithSpeechEndpoint(speech.URL),
	)
	d, p := startDaemon(t, cfg)

	// A regular file where the podcast directory should be makes every write fail.
	if err := os.RemoveAll(cfg.Paths.PodcastDir); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(cfg.Paths.PodcastDir, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	id, err := p.Service.Submit(context.Background(), pipeline.Submission{Filename: "a.txt", Data: []byte("text"), Sync: true})
	var fatalErr *pipeline.FatalError
	if !errors.As(err, &fatalErr) {
		t.Fatalf("expected FatalError, got %v", err)
	}
	select {
	case <-d.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("daemon did not stop after fatal error")
	}
	if !errors.As(d.Err(), &fatalErr) {
		t.Fatalf("expected daemon error, got %v", d.Err())
	}
	job, _ := p.Service.Status(id)
	if job.Status != jobs.StatusFailed {
		t.Fatalf("expected failed job, got %s", job.Status)
	}
}

func TestTestNotificationWithoutTopic(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d, _ := startDaemon(t, cfg)
	sent, detail, err := d.TestNotification(context.Background())
	if sent || err != nil || detail != "ntfy topic not configured" {
		t.Fatalf("unexpected result %v %q %v", sent, detail, err)
	}
}

func TestStartRemovesOrphanedUploads(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	orphan := testsupport.WriteDocument(t, cfg.Paths.UploadDir, "dead_notes.txt", "left behind")
	recent := testsupport.WriteDocument(t, cfg.Paths.UploadDir, "live_notes.txt", "in flight elsewhere")
	past := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(orphan, past, past); err != nil {
		t.Fatal(err)
	}

	startDaemon(t, cfg)

	if _, err := os.Stat(orphan); !os.IsNotExist(err) {
		t.Fatalf("expected orphaned upload removed, stat err=%v", err)
	}
	if _, err := os.Stat(recent); err != nil {
		t.Fatalf("expected recent upload kept: %v", err)
	}
}

func TestOrphanedUploadsIgnoreLogRetention(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Logging.RetentionDays = 0
	orphan := testsupport.WriteDocument(t, cfg.Paths.UploadDir, "dead_paper.html", "<p>left behind</p>")
	oldLog := testsupport.WriteDocument(t, cfg.Paths.LogDir, "papercast-20200101.log", "old log")
	past := time.Now().AddDate(0, 0, -90)
	for _, path := range []string{orphan, oldLog} {
		if err := os.Chtimes(path, past, past); err != nil {
			t.Fatal(err)
		}
	}

	startDaemon(t, cfg)

	if _, err := os.Stat(orphan); !os.IsNotExist(err) {
		t.Fatalf("expected orphaned upload removed with log retention disabled, stat err=%v", err)
	}
	if _, err := os.Stat(oldLog); err != nil {
		t.Fatalf("expected log kept when retention is disabled: %v", err)
	}
}

func TestBuildPipelineWiresNoteImportWithPublishing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	p, err := daemon.BuildPipeline(context.Background(), cfg, logging.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	if p.Notes != nil {
		t.Fatal("note import must stay off without publishing")
	}
	_ = p.Close()

	cfg.Publish.Enabled = true
	cfg.Publish.SupabaseURL = "https://project.supabase.co"
	cfg.Publish.SupabaseKey = "service-key"
	p, err = daemon.BuildPipeline(context.Background(), cfg, logging.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()
	if p.Notes == nil {
		t.Fatal("expected note import with publishing enabled")
	}
}
