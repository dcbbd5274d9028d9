package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	"papercast/internal/extract"
	"papercast/internal/fileutil"
	"papercast/internal/jobs"
	"papercast/internal/logging"
	"papercast/internal/metadata"
	"papercast/internal/services"
	"papercast/internal/textutil"
)

const messageQueued = "Processing document"

// CompletionHook observes jobs once they reach a terminal status.
type CompletionHook interface {
	JobFinished(ctx context.Context, job jobs.Job)
}

// CompletionFunc adapts a function to CompletionHook.
type CompletionFunc func(ctx context.Context, job jobs.Job)

// JobFinished calls f.
func (f CompletionFunc) JobFinished(ctx context.Context, job jobs.Job) { f(ctx, job) }

// Submission is an uploaded document awaiting processing.
type Submission struct {
	Filename string
	Data     []byte
	Model    string
	// Sync runs the pipeline before Submit returns.
	Sync bool

	// Title, UserID and NoteID are carried on the job for submissions that
	// come from a stored note.
	Title  string
	UserID string
	NoteID string
}

// ServiceOptions configures a Service.
type ServiceOptions struct {
	UploadDir    string
	DefaultModel string
	IDSource     IDSource
}

// Service accepts uploads and runs them through the Orchestrator.
type Service struct {
	orchestrator *Orchestrator
	jobs         *jobs.Store
	metadata     MetadataStore
	uploadDir    string
	defaultModel string
	newID        IDSource
	logger       *slog.Logger

	wg      sync.WaitGroup
	mu      sync.RWMutex
	onFatal func(error)
	hooks   []CompletionHook
}

// NewService builds a Service around orchestrator.
func NewService(orchestrator *Orchestrator, opts ServiceOptions, logger *slog.Logger) (*Service, error) {
	if orchestrator == nil {
		return nil, errors.New("pipeline: orchestrator required")
	}
	if strings.TrimSpace(opts.UploadDir) == "" {
		return nil, errors.New("pipeline: upload directory required")
	}
	newID := opts.IDSource
	if newID == nil {
		newID = uuid.NewString
	}
	return &Service{
		orchestrator: orchestrator,
		jobs:         orchestrator.jobs,
		metadata:     orchestrator.metadata,
		uploadDir:    opts.UploadDir,
		defaultModel: strings.TrimSpace(opts.DefaultModel),
		newID:        newID,
		logger:       logging.NewComponentLogger(logger, "pipeline-service"),
	}, nil
}

// OnFatal registers fn to receive *FatalError values from any job.
func (s *Service) OnFatal(fn func(error)) {
	s.mu.Lock()
	s.onFatal = fn
	s.mu.Unlock()
}

// AddHook registers a post-terminal observer.
func (s *Service) AddHook(hook CompletionHook) {
	if hook == nil {
		return
	}
	s.mu.Lock()
	s.hooks = append(s.hooks, hook)
	s.mu.Unlock()
}

// Submit creates the job, stores the upload, and starts the pipeline. The
// job runs on a context detached from ctx so a departing caller does not
// abort it. In sync mode Submit returns after the job is terminal; the
// returned error is then non-nil only for a *FatalError.
func (s *Service) Submit(ctx context.Context, sub Submission) (string, error) {
	filename := strings.TrimSpace(sub.Filename)
	if _, supported := extract.KindForFilename(filename); !supported {
		return "", services.Wrap(services.ErrValidation, "", "submit",
			fmt.Sprintf("unsupported file type %q; expected one of %s", textutil.Extension(filename), strings.Join(extract.SupportedExtensions, ", ")), nil)
	}

	model := strings.TrimSpace(sub.Model)
	if model == "" {
		model = s.defaultModel
	}

	// A taken ID must leave the owning job's upload alone.
	id := s.newID()
	if err := s.jobs.Create(id, jobs.Job{
		Status:           jobs.StatusProcessing,
		Stage:            jobs.StageQueued,
		Message:          messageQueued,
		Progress:         jobs.InitialProgress,
		OriginalFilename: filename,
		Model:            model,
		Title:            strings.TrimSpace(sub.Title),
		UserID:           strings.TrimSpace(sub.UserID),
		NoteID:           strings.TrimSpace(sub.NoteID),
	}); err != nil {
		return "", fmt.Errorf("create job %s: %w", id, err)
	}

	inputPath := filepath.Join(s.uploadDir, id+"_"+textutil.SanitizeFileName(filename))
	if err := s.storeUpload(inputPath, sub.Data); err != nil {
		if updateErr := s.jobs.Update(id, jobs.Patch{
			Status:  jobs.Ptr(jobs.StatusFailed),
			Message: jobs.Ptr("Error: " + err.Error()),
		}); updateErr != nil {
			s.logger.Error("failed to record job failure", logging.JobID(id), logging.Error(updateErr))
		}
		return id, err
	}

	logging.WithContext(ctx, s.logger).Info("podcast job accepted",
		logging.JobID(id),
		logging.String(logging.FieldEventType, "job_accepted"),
		logging.String("original_filename", filename),
		logging.Int("bytes", len(sub.Data)),
		logging.Bool("sync", sub.Sync),
	)

	req := Request{JobID: id, InputPath: inputPath, Model: model, OriginalFilename: filename}
	jobCtx := context.WithoutCancel(ctx)
	s.wg.Add(1)
	if sub.Sync {
		defer s.wg.Done()
		return id, s.execute(jobCtx, req)
	}
	go func() {
		defer s.wg.Done()
		_ = s.execute(jobCtx, req)
	}()
	return id, nil
}

func (s *Service) storeUpload(path string, data []byte) error {
	if err := os.MkdirAll(s.uploadDir, 0o755); err != nil {
		return fmt.Errorf("create upload directory: %w", err)
	}
	if err := fileutil.WriteFileAtomic(path, data, 0o644); err != nil {
		return fmt.Errorf("store upload: %w", err)
	}
	return nil
}

// execute runs one job and returns a *FatalError if one occurred.
func (s *Service) execute(ctx context.Context, req Request) error {
	err := s.orchestrator.Run(ctx, req)

	var fatalErr *FatalError
	if errors.As(err, &fatalErr) {
		s.mu.RLock()
		onFatal := s.onFatal
		s.mu.RUnlock()
		if onFatal != nil {
			onFatal(fatalErr)
		}
	}

	if job, found := s.jobs.Get(req.JobID); found {
		s.runHooks(services.WithJobID(ctx, req.JobID), job)
	}
	if fatalErr != nil {
		return fatalErr
	}
	return nil
}

func (s *Service) runHooks(ctx context.Context, job jobs.Job) {
	s.mu.RLock()
	hooks := append([]CompletionHook(nil), s.hooks...)
	s.mu.RUnlock()
	for _, hook := range hooks {
		func() {
			defer func() {
				if r := recover(); r != nil {
					s.logger.Error("completion hook panicked",
						logging.JobID(job.ID),
						logging.Any("panic", r),
					)
				}
			}()
			hook.JobFinished(ctx, job)
		}()
	}
}

// Wait blocks until every submitted job has finished, hooks included.
func (s *Service) Wait() {
	s.wg.Wait()
}

// Status returns a snapshot of the job.
func (s *Service) Status(id string) (jobs.Job, error) {
	job, found := s.jobs.Get(id)
	if !found {
		return jobs.Job{}, fmt.Errorf("job %s: %w", id, services.ErrNotFound)
	}
	return job, nil
}

// Jobs lists every job known to this process, newest first.
func (s *Service) Jobs() []jobs.Job {
	return s.jobs.List()
}

// Result returns the metadata of a finished podcast whose audio is on disk.
func (s *Service) Result(ctx context.Context, id string) (*metadata.Record, error) {
	record, err := s.metadata.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load podcast %s: %w", id, err)
	}
	if !record.IsCompleted() {
		return nil, fmt.Errorf("podcast %s: %w", id, services.ErrNotFound)
	}
	if _, err := os.Stat(record.OutputPath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("podcast %s audio missing: %w", id, services.ErrNotFound)
		}
		return nil, fmt.Errorf("stat podcast %s: %w", id, err)
	}
	return record, nil
}

// Records lists recent metadata records, newest first.
func (s *Service) Records(ctx context.Context, limit int) ([]metadata.Record, error) {
	return s.metadata.List(ctx, limit)
}
