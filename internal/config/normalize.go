package config

import (
	"fmt"
	"net"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeLLM()
	c.normalizeSpeech()
	c.normalizeFallback()
	c.normalizeMetadata()
	c.normalizePublish()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.UploadDir, err = expandPath(c.Paths.UploadDir); err != nil {
		return fmt.Errorf("paths.upload_dir: %w", err)
	}
	if c.Paths.PodcastDir, err = expandPath(c.Paths.PodcastDir); err != nil {
		return fmt.Errorf("paths.podcast_dir: %w", err)
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		host := defaultAPIHost
		port := defaultAPIPort
		if value, ok := os.LookupEnv("HOST"); ok && strings.TrimSpace(value) != "" {
			host = strings.TrimSpace(value)
		}
		if value, ok := os.LookupEnv("PORT"); ok && strings.TrimSpace(value) != "" {
			port = strings.TrimSpace(value)
		}
		c.Paths.APIBind = net.JoinHostPort(host, port)
	}
	c.Paths.APIURL = strings.TrimRight(strings.TrimSpace(c.Paths.APIURL), "/")
	if c.Paths.APIURL == "" {
		c.Paths.APIURL = apiURLFromBind(c.Paths.APIBind)
	}
	return nil
}

// apiURLFromBind derives a client URL, swapping wildcard hosts for loopback.
func apiURLFromBind(bind string) string {
	host, port, err := net.SplitHostPort(bind)
	if err != nil {
		return "http://" + bind
	}
	switch host {
	case "", "0.0.0.0", "::":
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port)
}

func (c *Config) normalizeLLM() {
	c.LLM.APIKey = strings.TrimSpace(c.LLM.APIKey)
	if c.LLM.APIKey == "" {
		if value, ok := os.LookupEnv("GROQ_API_KEY"); ok {
			c.LLM.APIKey = strings.TrimSpace(value)
		}
	}
	c.LLM.Model = strings.TrimSpace(c.LLM.Model)
	if c.LLM.Model == "" {
		if value, ok := os.LookupEnv("GROQ_MODEL"); ok {
			c.LLM.Model = strings.TrimSpace(value)
		}
	}
	c.LLM.BaseURL = strings.TrimSpace(c.LLM.BaseURL)
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = defaultLLMBaseURL
	}
	c.LLM.Referer = strings.TrimSpace(c.LLM.Referer)
	if c.LLM.Referer == "" {
		c.LLM.Referer = defaultLLMReferer
	}
	c.LLM.Title = strings.TrimSpace(c.LLM.Title)
	if c.LLM.Title == "" {
		c.LLM.Title = defaultLLMTitle
	}
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = defaultLLMTimeoutSeconds
	}
	if c.LLM.MaxInputChars <= 0 {
		c.LLM.MaxInputChars = defaultLLMMaxInputChars
	}
}

func (c *Config) normalizeSpeech() {
	c.Speech.APIKey = strings.TrimSpace(c.Speech.APIKey)
	if c.Speech.APIKey == "" {
		if value, ok := os.LookupEnv("TTS_API_KEY"); ok {
			c.Speech.APIKey = strings.TrimSpace(value)
		}
	}
	if c.Speech.APIKey == "" {
		c.Speech.APIKey = c.LLM.APIKey
	}
	c.Speech.BaseURL = strings.TrimSpace(c.Speech.BaseURL)
	if c.Speech.BaseURL == "" {
		c.Speech.BaseURL = defaultSpeechBaseURL
	}
	c.Speech.Model = strings.TrimSpace(c.Speech.Model)
	if c.Speech.Model == "" {
		c.Speech.Model = defaultSpeechModel
	}
	voices := make([]string, 0, len(c.Speech.Voices))
	for _, voice := range c.Speech.Voices {
		if trimmed := strings.TrimSpace(voice); trimmed != "" {
			voices = append(voices, trimmed)
		}
	}
	if len(voices) == 0 {
		voices = append(voices, defaultSpeechVoices...)
	}
	c.Speech.Voices = voices
	c.Speech.Format = strings.ToLower(strings.TrimSpace(c.Speech.Format))
	if c.Speech.Format == "" {
		c.Speech.Format = defaultSpeechFormat
	}
	if c.Speech.TimeoutSeconds <= 0 {
		c.Speech.TimeoutSeconds = defaultSpeechTimeoutSeconds
	}
}

func (c *Config) normalizeFallback() {
	if c.Fallback.DurationSeconds == 0 {
		c.Fallback.DurationSeconds = defaultFallbackDuration
	}
}

func (c *Config) normalizeMetadata() {
	driver := strings.ToLower(strings.TrimSpace(c.Metadata.Driver))
	switch driver {
	case "", "sqlite3":
		driver = MetadataDriverSQLite
	case "postgresql", "pgx":
		driver = MetadataDriverPostgres
	}
	c.Metadata.Driver = driver
	c.Metadata.DSN = strings.TrimSpace(c.Metadata.DSN)
}

func (c *Config) normalizePublish() {
	c.Publish.SupabaseURL = strings.TrimRight(strings.TrimSpace(c.Publish.SupabaseURL), "/")
	if c.Publish.SupabaseURL == "" {
		if value, ok := os.LookupEnv("SUPABASE_URL"); ok {
			c.Publish.SupabaseURL = strings.TrimRight(strings.TrimSpace(value), "/")
		}
	}
	c.Publish.SupabaseKey = strings.TrimSpace(c.Publish.SupabaseKey)
	if c.Publish.SupabaseKey == "" {
		if value, ok := os.LookupEnv("SUPABASE_SERVICE_KEY"); ok {
			c.Publish.SupabaseKey = strings.TrimSpace(value)
		}
	}
	c.Publish.Bucket = strings.TrimSpace(c.Publish.Bucket)
	if c.Publish.Bucket == "" {
		c.Publish.Bucket = defaultPublishBucket
	}
	c.Publish.Table = strings.TrimSpace(c.Publish.Table)
	if c.Publish.Table == "" {
		c.Publish.Table = defaultPublishTable
	}
	c.Publish.NotesTable = strings.TrimSpace(c.Publish.NotesTable)
	if c.Publish.NotesTable == "" {
		c.Publish.NotesTable = defaultPublishNotesTable
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyTimeout
	}
}

func (c *Config) normalizeLogging() {
	format := strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if format == "" {
		format = defaultLogFormat
	}
	c.Logging.Format = format

	level := strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if level == "" {
		level = defaultLogLevel
	}
	c.Logging.Level = level
}
