package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"time"

	"papercast/internal/fileutil"
	"papercast/internal/jobs"
	"papercast/internal/logging"
	"papercast/internal/metadata"
	"papercast/internal/script"
	"papercast/internal/services"
	"papercast/internal/textutil"
)

const (
	progressExtracting = 0.2
	progressScripting  = 0.4
	progressAudio      = 0.8
	progressDone       = 1.0

	messageExtracting = "Extracting text from document"
	messageScripting  = "Generating podcast script"
	messageAudio      = "Generating audio"
	messageCompleted  = "Podcast created successfully"
)

// AudioURL is the retrieval route for a finished podcast.
func AudioURL(jobID string) string {
	return "/get_podcast/" + jobID
}

// Request describes one pipeline run.
type Request struct {
	JobID            string
	InputPath        string
	Model            string
	OriginalFilename string
}

// Orchestrator runs jobs through every stage.
type Orchestrator struct {
	jobs        *jobs.Store
	extractor   Extractor
	generator   ScriptGenerator
	synthesizer Synthesizer
	fallback    FallbackGenerator
	metadata    MetadataStore
	logger      *slog.Logger
	now         func() time.Time
}

// NewOrchestrator wires the stage collaborators. All of them are required.
func NewOrchestrator(store *jobs.Store, c Collaborators, logger *slog.Logger) (*Orchestrator, error) {
	switch {
	case store == nil:
		return nil, errors.New("pipeline: job store required")
	case c.Extractor == nil:
		return nil, errors.New("pipeline: extractor required")
	case c.Generator == nil:
		return nil, errors.New("pipeline: script generator required")
	case c.Synthesizer == nil:
		return nil, errors.New("pipeline: synthesizer required")
	case c.Fallback == nil:
		return nil, errors.New("pipeline: fallback generator required")
	case c.Metadata == nil:
		return nil, errors.New("pipeline: metadata store required")
	}
	return &Orchestrator{
		jobs:        store,
		extractor:   c.Extractor,
		generator:   c.Generator,
		synthesizer: c.Synthesizer,
		fallback:    c.Fallback,
		metadata:    c.Metadata,
		logger:      logging.NewComponentLogger(logger, "pipeline"),
		now:         time.Now,
	}, nil
}

// Run executes the job described by req. The job ends completed or failed,
// and the input file is removed, whatever happens. The returned error is the
// cause of a failed job; a *FatalError means the placeholder audio could not
// be written.
func (o *Orchestrator) Run(ctx context.Context, req Request) (runErr error) {
	ctx = services.WithJobID(ctx, req.JobID)
	logger := logging.WithContext(ctx, o.logger)
	started := o.now()

	defer o.cleanup(logger, req.InputPath)
	defer func() {
		if r := recover(); r != nil {
			runErr = fmt.Errorf("pipeline panic: %v", r)
			logging.ErrorWithContext(logger, "pipeline panicked", "pipeline_panic",
				logging.Any("panic", r),
				logging.String("stack", string(debug.Stack())),
			)
			o.fail(logger, req.JobID, runErr)
		}
	}()

	logger.Info("pipeline started",
		logging.String(logging.FieldEventType, "pipeline_start"),
		logging.String("original_filename", req.OriginalFilename),
		logging.String("model", req.Model),
	)

	text, out := o.extract(ctx, req)
	if out.kind != outcomeOK {
		return o.abort(logger, req.JobID, jobs.StageExtracting, out)
	}

	podcastScript, out := o.writeScript(ctx, req, text)
	if out.kind != outcomeOK {
		return o.abort(logger, req.JobID, jobs.StageScripting, out)
	}

	audioPath, out := o.renderAudio(ctx, logger, req, podcastScript)
	switch out.kind {
	case outcomeFatal:
		return o.abort(logger, req.JobID, jobs.StageSynthesizing, out)
	case outcomeRecoverable:
		logging.WarnWithContext(logger, "speech synthesis failed; silent placeholder used", "synthesis_fallback",
			logging.Error(out.err),
			logging.String(logging.FieldErrorHint, "check speech.api_key and speech.base_url"),
			logging.String(logging.FieldImpact, "podcast contains silence instead of narration"),
		)
	}
	fallback := out.kind == outcomeRecoverable

	if err := o.finalize(ctx, req, podcastScript, audioPath, fallback); err != nil {
		o.fail(logger, req.JobID, err)
		return err
	}

	logger.Info("pipeline completed",
		logging.String(logging.FieldEventType, "pipeline_complete"),
		logging.String("audio_path", audioPath),
		logging.Bool("fallback", fallback),
		logging.Duration("elapsed", o.now().Sub(started)),
	)
	return nil
}

func (o *Orchestrator) extract(ctx context.Context, req Request) (string, outcome) {
	o.advance(req.JobID, jobs.StageExtracting, messageExtracting, progressExtracting)
	ctx = services.WithStage(ctx, string(jobs.StageExtracting))

	data, err := os.ReadFile(req.InputPath)
	if err != nil {
		return "", fatal(services.Wrap(services.ErrExtraction, "extracting", "read input", "", err))
	}
	name := strings.TrimSpace(req.OriginalFilename)
	if name == "" {
		name = filepath.Base(req.InputPath)
	}
	text, err := o.extractor.Extract(ctx, name, data)
	if err != nil {
		if !services.IsJobFatal(err) {
			err = services.Wrap(services.ErrExtraction, "extracting", "extract text", "", err)
		}
		return "", fatal(err)
	}
	text = textutil.NormalizeDocumentText(text)
	if text == "" {
		return "", fatal(services.Wrap(services.ErrExtraction, "extracting", "extract text", "document contains no readable text", nil))
	}
	logging.WithContext(ctx, o.logger).Debug("text extracted", logging.Int("chars", len(text)))
	return text, ok()
}

func (o *Orchestrator) writeScript(ctx context.Context, req Request, text string) (script.Script, outcome) {
	o.advance(req.JobID, jobs.StageScripting, messageScripting, progressScripting)
	ctx = services.WithStage(ctx, string(jobs.StageScripting))

	s, err := o.generator.Generate(ctx, text, req.Model)
	if err != nil {
		if !services.IsJobFatal(err) {
			err = services.Wrap(services.ErrGeneration, "scripting", "generate script", "", err)
		}
		return script.Script{}, fatal(err)
	}
	logging.WithContext(ctx, o.logger).Debug("script generated",
		logging.String("title", s.Title),
		logging.Int("turns", len(s.Turns)),
		logging.Int("words", s.WordCount()),
	)
	return s, ok()
}

// renderAudio prefers real speech; any synthesis failure is absorbed by the
// placeholder. Only a placeholder write failure is fatal.
func (o *Orchestrator) renderAudio(ctx context.Context, logger *slog.Logger, req Request, s script.Script) (string, outcome) {
	o.advance(req.JobID, jobs.StageSynthesizing, messageAudio, progressAudio)
	ctx = services.WithStage(ctx, string(jobs.StageSynthesizing))

	path, err := o.synthesize(ctx, req.JobID, s)
	if err == nil {
		return path, ok()
	}

	path, fallbackErr := o.fallback.Generate(req.JobID)
	if fallbackErr != nil {
		logging.ErrorWithContext(logger, "placeholder audio failed", "fallback_failed",
			logging.Error(fallbackErr),
			logging.String("synthesis_error", err.Error()),
			logging.String(logging.FieldErrorHint, "check that paths.podcast_dir exists and is writable"),
		)
		return "", fatal(&FatalError{JobID: req.JobID, Err: fallbackErr})
	}
	return path, recoverable(err)
}

// synthesize converts collaborator panics and empty results into errors so
// the fallback covers them too.
func (o *Orchestrator) synthesize(ctx context.Context, jobID string, s script.Script) (path string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = services.Wrap(services.ErrSynthesis, "synthesizing", "synthesize", fmt.Sprintf("panic: %v", r), nil)
		}
	}()
	path, err = o.synthesizer.Synthesize(ctx, jobID, s)
	if err == nil && strings.TrimSpace(path) == "" {
		err = services.Wrap(services.ErrSynthesis, "synthesizing", "synthesize", "synthesizer returned no audio path", nil)
	}
	return path, err
}

func (o *Orchestrator) finalize(ctx context.Context, req Request, s script.Script, audioPath string, fallback bool) error {
	ctx = services.WithStage(ctx, string(jobs.StageFinalizing))
	if err := o.jobs.Update(req.JobID, jobs.Patch{Stage: jobs.Ptr(jobs.StageFinalizing)}); err != nil {
		o.logUpdateError(req.JobID, err)
	}

	title := strings.TrimSpace(s.Title)
	if title == "" {
		title = textutil.TitleFromFilename(req.OriginalFilename)
	}
	record := metadata.Record{
		JobID:            req.JobID,
		OriginalFilename: req.OriginalFilename,
		OutputPath:       audioPath,
		Status:           metadata.StatusCompleted,
		Fallback:         fallback,
		Model:            req.Model,
		Title:            title,
		CreatedAt:        o.now().UTC(),
	}
	if err := o.metadata.Save(ctx, record); err != nil {
		return fmt.Errorf("save podcast metadata: %w", err)
	}

	if err := o.jobs.Update(req.JobID, jobs.Patch{
		Status:    jobs.Ptr(jobs.StatusCompleted),
		Stage:     jobs.Ptr(jobs.StageDone),
		Message:   jobs.Ptr(messageCompleted),
		Progress:  jobs.Ptr(progressDone),
		AudioPath: jobs.Ptr(audioPath),
		AudioURL:  jobs.Ptr(AudioURL(req.JobID)),
		Fallback:  jobs.Ptr(fallback),
	}); err != nil {
		o.logUpdateError(req.JobID, err)
	}
	return nil
}

func (o *Orchestrator) abort(logger *slog.Logger, jobID string, stage jobs.Stage, out outcome) error {
	logging.ErrorWithContext(logger, "stage failed", "stage_failure",
		logging.String(logging.FieldStage, string(stage)),
		logging.String("outcome", out.kind.String()),
		logging.Error(out.err),
		logging.String(logging.FieldErrorHint, failureHint(out.err)),
	)
	o.fail(logger, jobID, out.err)
	return out.err
}

// fail marks the job failed. Progress keeps its last value.
func (o *Orchestrator) fail(logger *slog.Logger, jobID string, err error) {
	message := "Error: unknown failure"
	if err != nil {
		message = "Error: " + err.Error()
	}
	if updateErr := o.jobs.Update(jobID, jobs.Patch{
		Status:  jobs.Ptr(jobs.StatusFailed),
		Message: jobs.Ptr(message),
	}); updateErr != nil {
		logger.Error("failed to record job failure", logging.Error(updateErr))
	}
}

func (o *Orchestrator) advance(jobID string, stage jobs.Stage, message string, progress float64) {
	if err := o.jobs.Update(jobID, jobs.Patch{
		Stage:    jobs.Ptr(stage),
		Message:  jobs.Ptr(message),
		Progress: jobs.Ptr(progress),
	}); err != nil {
		o.logUpdateError(jobID, err)
	}
}

func (o *Orchestrator) cleanup(logger *slog.Logger, inputPath string) {
	if strings.TrimSpace(inputPath) == "" {
		return
	}
	removed, err := fileutil.RemoveIfExists(inputPath)
	if err != nil {
		logging.WarnWithContext(logger, "failed to remove uploaded input", "input_cleanup_failed",
			logging.String("path", inputPath),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "remove the file manually"),
			logging.String(logging.FieldImpact, "upload directory keeps a stale file"),
		)
		return
	}
	if removed {
		logger.Debug("uploaded input removed", logging.String("path", inputPath))
	}
}

func (o *Orchestrator) logUpdateError(jobID string, err error) {
	o.logger.Error("job update failed",
		logging.JobID(jobID),
		logging.Error(err),
	)
}

func failureHint(err error) string {
	switch {
	case errors.Is(err, services.ErrExtraction):
		return "check that the upload is a readable document"
	case errors.Is(err, services.ErrGeneration):
		return "check llm.api_key and llm.model"
	default:
		var fatalErr *FatalError
		if errors.As(err, &fatalErr) {
			return "check that paths.podcast_dir exists and is writable"
		}
		return "check logs for details"
	}
}
