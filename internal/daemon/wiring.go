package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"papercast/internal/audio"
	"papercast/internal/config"
	"papercast/internal/extract"
	"papercast/internal/jobs"
	"papercast/internal/metadata"
	"papercast/internal/notifications"
	"papercast/internal/pipeline"
	"papercast/internal/preflight"
	"papercast/internal/publish"
	"papercast/internal/script"
	"papercast/internal/services/llm"
	"papercast/internal/services/tts"
	"papercast/internal/stage"
)

// Pipeline is the assembled podcast pipeline shared by the daemon and the
// in-process "run" command.
type Pipeline struct {
	Jobs     *jobs.Store
	Metadata *metadata.Store
	Service  *pipeline.Service
	Checkers []stage.Checker
	// Notes is nil unless publishing is enabled.
	Notes *publish.NoteImporter
}

// BuildPipeline opens the metadata store and wires every collaborator from cfg.
func BuildPipeline(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Pipeline, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	records, err := metadata.OpenFromConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open metadata store: %w", err)
	}

	llmCfg := cfg.GetLLM()
	llmClient := llm.NewClient(llm.Config{
		APIKey:         llmCfg.APIKey,
		BaseURL:        llmCfg.BaseURL,
		Model:          llmCfg.Model,
		Referer:        llmCfg.Referer,
		Title:          llmCfg.Title,
		TimeoutSeconds: llmCfg.TimeoutSeconds,
	})
	fallbackDuration := time.Duration(cfg.Fallback.DurationSeconds * float64(time.Second))

	store := jobs.NewStore()
	orchestrator, err := pipeline.NewOrchestrator(store, pipeline.Collaborators{
		Extractor:   extract.New(logger),
		Generator:   script.NewGenerator(llmClient, cfg.LLM.MaxInputChars, logger),
		Synthesizer: tts.NewClient(tts.ConfigFrom(cfg), tts.WithLogger(logger)),
		Fallback:    audio.NewFallback(cfg.Paths.PodcastDir, fallbackDuration, logger),
		Metadata:    records,
	}, logger)
	if err != nil {
		_ = records.Close()
		return nil, err
	}
	svc, err := pipeline.NewService(orchestrator, pipeline.ServiceOptions{
		UploadDir:    cfg.Paths.UploadDir,
		DefaultModel: llmCfg.Model,
	}, logger)
	if err != nil {
		_ = records.Close()
		return nil, err
	}

	svc.AddHook(pipeline.NewNotificationHook(notifications.NewService(cfg), logger))
	publisher, err := publish.NewFromConfig(cfg, store, logger)
	if err != nil {
		_ = records.Close()
		return nil, fmt.Errorf("configure publishing: %w", err)
	}
	var notes *publish.NoteImporter
	if publisher != nil {
		svc.AddHook(publisher)
		notes, err = publish.NewNoteImporter(publisher, svc, cfg.Publish.NotesTable, logger)
		if err != nil {
			_ = records.Close()
			return nil, fmt.Errorf("configure note import: %w", err)
		}
	}

	return &Pipeline{
		Jobs:     store,
		Metadata: records,
		Service:  svc,
		Checkers: preflight.Checkers(cfg, records),
		Notes:    notes,
	}, nil
}

// Close waits for in-flight jobs and closes the metadata store.
func (p *Pipeline) Close() error {
	if p == nil {
		return nil
	}
	p.Service.Wait()
	return p.Metadata.Close()
}
