package pipeline

import (
	"context"

	"papercast/internal/metadata"
	"papercast/internal/script"
)

// Extractor pulls plain text out of an uploaded document.
type Extractor interface {
	Extract(ctx context.Context, filename string, data []byte) (string, error)
}

// ScriptGenerator turns document text into a two-speaker script.
type ScriptGenerator interface {
	Generate(ctx context.Context, text, model string) (script.Script, error)
}

// Synthesizer renders a script to an MP3 file and returns its path.
type Synthesizer interface {
	Synthesize(ctx context.Context, jobID string, s script.Script) (string, error)
}

// FallbackGenerator writes the silent placeholder used when synthesis fails.
type FallbackGenerator interface {
	Generate(jobID string) (string, error)
}

// MetadataStore persists finished podcasts.
type MetadataStore interface {
	Save(ctx context.Context, r metadata.Record) error
	Get(ctx context.Context, jobID string) (*metadata.Record, error)
	List(ctx context.Context, limit int) ([]metadata.Record, error)
}

// IDSource mints job identifiers.
type IDSource func() string

// Collaborators bundles the stage implementations an Orchestrator drives.
type Collaborators struct {
	Extractor   Extractor
	Generator   ScriptGenerator
	Synthesizer Synthesizer
	Fallback    FallbackGenerator
	Metadata    MetadataStore
}
