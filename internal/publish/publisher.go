package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"papercast/internal/audio"
	"papercast/internal/config"
	"papercast/internal/jobs"
	"papercast/internal/logging"
	"papercast/internal/textutil"
)

// Episode is the row written for each published podcast.
type Episode struct {
	JobID            string    `json:"job_id"`
	UserID           string    `json:"user_id,omitempty"`
	NoteID           string    `json:"note_id,omitempty"`
	Title            string    `json:"title"`
	Description      string    `json:"description,omitempty"`
	AudioURL         string    `json:"audio_url"`
	OriginalFilename string    `json:"original_filename"`
	Fallback         bool      `json:"fallback"`
	CreatedAt        time.Time `json:"created_at"`
}

// Publisher uploads completed podcasts.
type Publisher struct {
	backend Backend
	bucket  string
	table   string
	jobs    *jobs.Store
	logger  *slog.Logger
	now     func() time.Time
}

// New builds a Publisher writing to bucket and table.
func New(backend Backend, bucket, table string, store *jobs.Store, logger *slog.Logger) (*Publisher, error) {
	if backend == nil {
		return nil, errors.New("publish: backend required")
	}
	if strings.TrimSpace(bucket) == "" || strings.TrimSpace(table) == "" {
		return nil, errors.New("publish: bucket and table are required")
	}
	return &Publisher{
		backend: backend,
		bucket:  bucket,
		table:   table,
		jobs:    store,
		logger:  logging.NewComponentLogger(logger, "publish"),
		now:     time.Now,
	}, nil
}

// NewFromConfig returns nil when publishing is disabled.
func NewFromConfig(cfg *config.Config, store *jobs.Store, logger *slog.Logger) (*Publisher, error) {
	if cfg == nil || !cfg.Publish.Enabled {
		return nil, nil
	}
	backend, err := NewSupabaseBackend(cfg.Publish.SupabaseURL, cfg.Publish.SupabaseKey)
	if err != nil {
		return nil, err
	}
	return New(backend, cfg.Publish.Bucket, cfg.Publish.Table, store, logger)
}

// JobFinished publishes completed uploads and ignores everything else. Jobs
// built from a note are published by the NoteImporter that submitted them.
func (p *Publisher) JobFinished(ctx context.Context, job jobs.Job) {
	if p == nil || job.Status != jobs.StatusCompleted || job.NoteID != "" {
		return
	}
	logger := logging.WithContext(ctx, p.logger)
	publicURL, err := p.Publish(ctx, job)
	if err != nil {
		logging.WarnWithContext(logger, "podcast publish failed", "publish_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check publish credentials and the bucket policy"),
			logging.String(logging.FieldImpact, "podcast is only available from this server"),
		)
		return
	}
	logger.Info("podcast published",
		logging.String(logging.FieldEventType, "podcast_published"),
		logging.String("public_url", publicURL),
	)
}

// Publish uploads the job's audio, inserts its episode row, and stores the
// public URL on the job.
func (p *Publisher) Publish(ctx context.Context, job jobs.Job) (string, error) {
	episode, err := p.publish(ctx, job, "")
	return episode.AudioURL, err
}

func (p *Publisher) publish(ctx context.Context, job jobs.Job, description string) (Episode, error) {
	if err := ctx.Err(); err != nil {
		return Episode{}, err
	}
	if strings.TrimSpace(job.AudioPath) == "" {
		return Episode{}, fmt.Errorf("job %s has no audio", job.ID)
	}
	data, err := os.ReadFile(job.AudioPath)
	if err != nil {
		return Episode{}, fmt.Errorf("read audio: %w", err)
	}
	publicURL, err := p.backend.Upload(p.bucket, ObjectPath(job), data)
	if err != nil {
		return Episode{}, err
	}
	title := job.Title
	if title == "" {
		title = textutil.TitleFromFilename(job.OriginalFilename)
	}
	episode := Episode{
		JobID:            job.ID,
		UserID:           job.UserID,
		NoteID:           job.NoteID,
		Title:            title,
		Description:      description,
		AudioURL:         publicURL,
		OriginalFilename: job.OriginalFilename,
		Fallback:         job.Fallback,
		CreatedAt:        p.now().UTC(),
	}
	if err := p.backend.Insert(p.table, episode); err != nil {
		return Episode{}, err
	}
	if p.jobs != nil && publicURL != "" {
		if err := p.jobs.Update(job.ID, jobs.Patch{PublicURL: jobs.Ptr(publicURL)}); err != nil {
			return episode, fmt.Errorf("record public url: %w", err)
		}
	}
	return episode, nil
}

// ObjectPath is where a job's audio is stored in the bucket. Jobs owned by a
// user live under that user's prefix.
func ObjectPath(job jobs.Job) string {
	name := audio.PodcastFileName(job.ID)
	if job.UserID == "" {
		return name
	}
	return job.UserID + "/" + name
}
