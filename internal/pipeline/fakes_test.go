package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"papercast/internal/audio"
	"papercast/internal/jobs"
	"papercast/internal/metadata"
	"papercast/internal/script"
	"papercast/internal/services"
)

type fakeExtractor struct {
	text   string
	err    error
	panic  any
	onCall func(ctx context.Context)
}

func (f *fakeExtractor) Extract(ctx context.Context, _ string, data []byte) (string, error) {
	if f.onCall != nil {
		f.onCall(ctx)
	}
	if f.panic != nil {
		panic(f.panic)
	}
	if f.err != nil {
		return "", f.err
	}
	if f.text != "" {
		return f.text, nil
	}
	return string(data), nil
}

type fakeGenerator struct {
	err    error
	onCall func(ctx context.Context)
	mu     sync.Mutex
	models []string
	texts  []string
}

func (f *fakeGenerator) Generate(ctx context.Context, text, model string) (script.Script, error) {
	if f.onCall != nil {
		f.onCall(ctx)
	}
	f.mu.Lock()
	f.models = append(f.models, model)
	f.texts = append(f.texts, text)
	f.mu.Unlock()
	if f.err != nil {
		return script.Script{}, f.err
	}
	return script.Script{
		Title: "Test Episode",
		Turns: []script.Turn{
			{Speaker: script.DefaultHost, Text: "Welcome. " + text},
			{Speaker: script.DefaultGuest, Text: "Thanks for having me."},
		},
	}, nil
}

type fakeSynthesizer struct {
	dir    string
	err    error
	onCall func(ctx context.Context)
	calls  int
	mu     sync.Mutex
}

func (f *fakeSynthesizer) Synthesize(ctx context.Context, jobID string, _ script.Script) (string, error) {
	if f.onCall != nil {
		f.onCall(ctx)
	}
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	path := audio.PodcastPath(f.dir, jobID)
	if err := os.WriteFile(path, []byte("ID3speech"), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

type failingFallback struct{}

func (failingFallback) Generate(string) (string, error) {
	return "", errors.New("disk full")
}

// memoryMetadata is a MetadataStore kept in a map.
type memoryMetadata struct {
	mu      sync.Mutex
	records map[string]metadata.Record
	saveErr error
}

func newMemoryMetadata() *memoryMetadata {
	return &memoryMetadata{records: make(map[string]metadata.Record)}
}

func (m *memoryMetadata) Save(_ context.Context, r metadata.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.records[r.JobID] = r
	return nil
}

func (m *memoryMetadata) Get(_ context.Context, id string) (*metadata.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[id]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (m *memoryMetadata) List(_ context.Context, limit int) ([]metadata.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]metadata.Record, 0, len(m.records))
	for _, r := range m.records {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].JobID < out[j].JobID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type harness struct {
	t           *testing.T
	store       *jobs.Store
	uploadDir   string
	podcastDir  string
	extractor   *fakeExtractor
	generator   *fakeGenerator
	synthesizer *fakeSynthesizer
	fallback    FallbackGenerator
	metadata    *memoryMetadata

	progressMu sync.Mutex
	progress   map[string][]float64
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	base := t.TempDir()
	h := &harness{
		t:          t,
		store:      jobs.NewStore(),
		uploadDir:  filepath.Join(base, "uploads"),
		podcastDir: filepath.Join(base, "podcasts"),
		metadata:   newMemoryMetadata(),
		progress:   make(map[string][]float64),
	}
	for _, dir := range []string{h.uploadDir, h.podcastDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatal(err)
		}
	}
	h.extractor = &fakeExtractor{onCall: h.record}
	h.generator = &fakeGenerator{onCall: h.record}
	h.synthesizer = &fakeSynthesizer{dir: h.podcastDir, onCall: h.record}
	h.fallback = audio.NewFallback(h.podcastDir, audio.DefaultFallbackDuration, nil)
	return h
}

// record samples the job's progress as each collaborator is entered.
func (h *harness) record(ctx context.Context) {
	id, ok := services.JobIDFromContext(ctx)
	if !ok {
		return
	}
	job, found := h.store.Get(id)
	if !found {
		return
	}
	h.progressMu.Lock()
	h.progress[id] = append(h.progress[id], job.Progress)
	h.progressMu.Unlock()
}

func (h *harness) progressFor(id string) []float64 {
	h.progressMu.Lock()
	defer h.progressMu.Unlock()
	out := append([]float64(nil), h.progress[id]...)
	if job, ok := h.store.Get(id); ok {
		out = append(out, job.Progress)
	}
	return out
}

func (h *harness) orchestrator() *Orchestrator {
	h.t.Helper()
	o, err := NewOrchestrator(h.store, Collaborators{
		Extractor:   h.extractor,
		Generator:   h.generator,
		Synthesizer: h.synthesizer,
		Fallback:    h.fallback,
		Metadata:    h.metadata,
	}, nil)
	if err != nil {
		h.t.Fatalf("NewOrchestrator: %v", err)
	}
	return o
}

func (h *harness) service(ids ...string) *Service {
	h.t.Helper()
	next := 0
	var mu sync.Mutex
	source := func() string {
		mu.Lock()
		defer mu.Unlock()
		next++
		if next <= len(ids) {
			return ids[next-1]
		}
		return fmt.Sprintf("job-%d", next)
	}
	svc, err := NewService(h.orchestrator(), ServiceOptions{
		UploadDir:    h.uploadDir,
		DefaultModel: "default-model",
		IDSource:     source,
	}, nil)
	if err != nil {
		h.t.Fatalf("NewService: %v", err)
	}
	return svc
}

// uploads returns the files left in the upload directory.
func (h *harness) uploads() []string {
	h.t.Helper()
	entries, err := os.ReadDir(h.uploadDir)
	if err != nil {
		h.t.Fatal(err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	return names
}
