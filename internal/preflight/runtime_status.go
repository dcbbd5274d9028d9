package preflight

import (
	"context"

	"papercast/internal/config"
	"papercast/internal/services/tts"
	"papercast/internal/stage"
)

// Pinger is satisfied by the open metadata store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Checkers returns cheap readiness checks for the /health endpoint.
func Checkers(cfg *config.Config, store Pinger) []stage.Checker {
	checkers := []stage.Checker{
		directoryChecker("uploads", cfg.Paths.UploadDir),
		directoryChecker("podcasts", cfg.Paths.PodcastDir),
		stage.CheckFunc(func(context.Context) stage.Health {
			llmCfg := cfg.GetLLM()
			switch {
			case llmCfg.APIKey == "":
				return stage.Unhealthy("llm", "api key missing")
			case llmCfg.Model == "":
				return stage.Unhealthy("llm", "model missing")
			}
			return stage.Healthy("llm")
		}),
		stage.CheckFunc(func(context.Context) stage.Health {
			if err := tts.NewClient(tts.ConfigFrom(cfg)).Ready(); err != nil {
				return stage.Unhealthy("speech", err.Error())
			}
			return stage.Healthy("speech")
		}),
	}
	if store != nil {
		checkers = append(checkers, stage.CheckFunc(func(ctx context.Context) stage.Health {
			if err := store.Ping(ctx); err != nil {
				return stage.Unhealthy("metadata", err.Error())
			}
			return stage.Healthy("metadata")
		}))
	}
	return checkers
}

func directoryChecker(name, path string) stage.Checker {
	return stage.CheckFunc(func(context.Context) stage.Health {
		if result := CheckDirectoryAccess(name, path); !result.Passed {
			return stage.Unhealthy(name, result.Detail)
		}
		return stage.Healthy(name)
	})
}
