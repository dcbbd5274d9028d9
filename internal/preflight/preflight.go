package preflight

import (
	"context"

	"papercast/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Upload directory", cfg.Paths.UploadDir),
		CheckDirectoryAccess("Podcast directory", cfg.Paths.PodcastDir),
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckMetadata(ctx, cfg),
		CheckLLM(ctx, "Script LLM", cfg.GetLLM()),
		CheckSpeech(cfg),
	}

	if cfg.Publish.Enabled {
		results = append(results, CheckPublish(cfg))
	}
	if cfg.Notifications.NtfyTopic != "" {
		results = append(results, Result{Name: "Notifications", Passed: true, Detail: "ntfy topic configured"})
	}
	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}
