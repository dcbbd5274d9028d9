// Package jobs holds the in-process record of every submitted podcast job.
//
// The Store is the only state shared between the pipeline (writer) and the
// HTTP handlers (readers). Updates are atomic merges of the fields set in a
// Patch; reads return copies. Jobs are never deleted for the life of the
// process.
//
// The Orchestrator owns every lifecycle field until the job is terminal.
// After that the only write allowed is PublicURL, set by the completion hook
// that published the audio. Status, stage, message, progress and audio
// location never change once a job is terminal.
package jobs

import (
	"errors"
	"sort"
	"sync"
	"time"
)

// Status is the lifecycle state of a job.
type Status string

const (
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// IsTerminal reports whether no further transitions happen.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Stage names the pipeline step a job is in.
type Stage string

const (
	StageQueued       Stage = "queued"
	StageExtracting   Stage = "extracting"
	StageScripting    Stage = "scripting"
	StageSynthesizing Stage = "synthesizing"
	StageFinalizing   Stage = "finalizing"
	StageDone         Stage = "done"
)

// InitialProgress is recorded when a job is created.
const InitialProgress = 0.1

// Job is a snapshot of one podcast job.
type Job struct {
	ID               string    `json:"id"`
	Status           Status    `json:"status"`
	Stage            Stage     `json:"stage,omitempty"`
	Message          string    `json:"message"`
	Progress         float64   `json:"progress"`
	AudioPath        string    `json:"audio_path,omitempty"`
	AudioURL         string    `json:"audio_url,omitempty"`
	PublicURL        string    `json:"public_url,omitempty"`
	OriginalFilename string    `json:"original_filename,omitempty"`
	Model            string    `json:"model,omitempty"`
	Title            string    `json:"title,omitempty"`
	UserID           string    `json:"user_id,omitempty"`
	NoteID           string    `json:"note_id,omitempty"`
	Fallback         bool      `json:"fallback"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Patch lists the fields an Update sets; nil fields are left untouched.
type Patch struct {
	Status    *Status
	Stage     *Stage
	Message   *string
	Progress  *float64
	AudioPath *string
	AudioURL  *string
	// PublicURL is the one field set after a job is terminal.
	PublicURL *string
	Fallback  *bool
}

func (p Patch) touchesLifecycle() bool {
	return p.Status != nil || p.Stage != nil || p.Message != nil || p.Progress != nil ||
		p.AudioPath != nil || p.AudioURL != nil || p.Fallback != nil
}

// Ptr returns a pointer to v, for building patches.
func Ptr[T any](v T) *T {
	return &v
}

var (
	// ErrExists is returned when creating a job whose ID is already taken.
	ErrExists = errors.New("job already exists")
	// ErrUnknown is returned when updating a job that was never created.
	ErrUnknown = errors.New("unknown job")
	// ErrTerminal is returned when a patch would change a finished job.
	ErrTerminal = errors.New("job already finished")
)

// Store is a mutex-guarded map of jobs.
type Store struct {
	mu   sync.RWMutex
	jobs map[string]*Job
	now  func() time.Time
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{jobs: make(map[string]*Job), now: time.Now}
}

// Create records job under id. IDs are never reused.
func (s *Store) Create(id string, job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[id]; ok {
		return ErrExists
	}
	now := s.now().UTC()
	job.ID = id
	if job.Status == "" {
		job.Status = StatusProcessing
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = now
	s.jobs[id] = &job
	return nil
}

// Update merges patch into the job with the given id. Once the job is
// terminal only PublicURL may be set; any other field returns ErrTerminal
// and leaves the job unchanged.
func (s *Store) Update(id string, patch Patch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return ErrUnknown
	}
	if job.Status.IsTerminal() && patch.touchesLifecycle() {
		return ErrTerminal
	}
	if patch.Status != nil {
		job.Status = *patch.Status
	}
	if patch.Stage != nil {
		job.Stage = *patch.Stage
	}
	if patch.Message != nil {
		job.Message = *patch.Message
	}
	if patch.Progress != nil {
		job.Progress = clamp(*patch.Progress)
	}
	if patch.AudioPath != nil {
		job.AudioPath = *patch.AudioPath
	}
	if patch.AudioURL != nil {
		job.AudioURL = *patch.AudioURL
	}
	if patch.PublicURL != nil {
		job.PublicURL = *patch.PublicURL
	}
	if patch.Fallback != nil {
		job.Fallback = *patch.Fallback
	}
	job.UpdatedAt = s.now().UTC()
	return nil
}

// Get returns a copy of the job.
func (s *Store) Get(id string) (Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return Job{}, false
	}
	return *job, true
}

// List returns copies of all jobs, newest first.
func (s *Store) List() []Job {
	s.mu.RLock()
	out := make([]Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		out = append(out, *job)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Counts tallies jobs by status.
func (s *Store) Counts() map[Status]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[Status]int, 3)
	for _, job := range s.jobs {
		counts[job.Status]++
	}
	return counts
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
