package config

const (
	defaultConfigPath           = "~/.config/papercast/config.toml"
	defaultUploadDir            = "~/.local/share/papercast/uploads"
	defaultPodcastDir           = "~/.local/share/papercast/podcasts"
	defaultDataDir              = "~/.local/share/papercast/data"
	defaultLogDir               = "~/.local/share/papercast/logs"
	defaultAPIHost              = "127.0.0.1"
	defaultAPIPort              = "8000"
	defaultLLMBaseURL           = "https://api.groq.com/openai/v1/chat/completions"
	defaultLLMReferer           = "https://github.com/papercast/papercast"
	defaultLLMTitle             = "papercast"
	defaultLLMTimeoutSeconds    = 120
	defaultLLMMaxInputChars     = 32000
	defaultSpeechBaseURL        = "https://api.groq.com/openai/v1/audio/speech"
	defaultSpeechModel          = "playai-tts"
	defaultSpeechFormat         = "mp3"
	defaultSpeechTimeoutSeconds = 120
	defaultFallbackDuration     = 2.0
	defaultPublishBucket        = "podcast_audio"
	defaultPublishTable         = "podcasts"
	defaultPublishNotesTable    = "notes"
	defaultNotifyTimeout        = 10
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
	defaultLogRetentionDays     = 30

	// MetadataDriverSQLite stores result records in a local SQLite file.
	MetadataDriverSQLite = "sqlite"
	// MetadataDriverPostgres stores result records in PostgreSQL via pgx.
	MetadataDriverPostgres = "postgres"
)

var defaultSpeechVoices = []string{"Fritz-PlayAI", "Celeste-PlayAI"}

// Default returns a Config populated with repository defaults.
func Default() Config {
	voices := make([]string, len(defaultSpeechVoices))
	copy(voices, defaultSpeechVoices)
	return Config{
		Paths: Paths{
			UploadDir:  defaultUploadDir,
			PodcastDir: defaultPodcastDir,
			DataDir:    defaultDataDir,
			LogDir:     defaultLogDir,
		},
		LLM: LLM{
			BaseURL:        defaultLLMBaseURL,
			Referer:        defaultLLMReferer,
			Title:          defaultLLMTitle,
			TimeoutSeconds: defaultLLMTimeoutSeconds,
			MaxInputChars:  defaultLLMMaxInputChars,
		},
		Speech: Speech{
			BaseURL:        defaultSpeechBaseURL,
			Model:          defaultSpeechModel,
			Voices:         voices,
			Format:         defaultSpeechFormat,
			TimeoutSeconds: defaultSpeechTimeoutSeconds,
		},
		Fallback: Fallback{
			DurationSeconds: defaultFallbackDuration,
		},
		Metadata: Metadata{
			Driver: MetadataDriverSQLite,
		},
		Publish: Publish{
			Bucket:     defaultPublishBucket,
			Table:      defaultPublishTable,
			NotesTable: defaultPublishNotesTable,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
			Completed:      true,
			Failed:         true,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
