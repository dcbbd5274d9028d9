package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateLLM(); err != nil {
		return err
	}
	if err := c.validateSpeech(); err != nil {
		return err
	}
	if err := c.validateFallback(); err != nil {
		return err
	}
	if err := c.validateMetadata(); err != nil {
		return err
	}
	if err := c.validatePublish(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if c.Paths.UploadDir == "" {
		return errors.New("paths.upload_dir must be set")
	}
	if c.Paths.PodcastDir == "" {
		return errors.New("paths.podcast_dir must be set")
	}
	if c.Paths.DataDir == "" {
		return errors.New("paths.data_dir must be set")
	}
	if c.Paths.LogDir == "" {
		return errors.New("paths.log_dir must be set")
	}
	if c.Paths.APIBind == "" {
		return errors.New("paths.api_bind must be set")
	}
	return nil
}

func (c *Config) validateLLM() error {
	if err := validateHTTPURL("llm.base_url", c.LLM.BaseURL); err != nil {
		return err
	}
	if c.LLM.TimeoutSeconds <= 0 {
		return errors.New("llm.timeout_seconds must be positive")
	}
	if c.LLM.MaxInputChars <= 0 {
		return errors.New("llm.max_input_chars must be positive")
	}
	return nil
}

func (c *Config) validateSpeech() error {
	if err := validateHTTPURL("speech.base_url", c.Speech.BaseURL); err != nil {
		return err
	}
	if len(c.Speech.Voices) == 0 {
		return errors.New("speech.voices must list at least one voice")
	}
	if c.Speech.Format != "mp3" {
		return fmt.Errorf("speech.format %q is not supported (only mp3)", c.Speech.Format)
	}
	if c.Speech.TimeoutSeconds <= 0 {
		return errors.New("speech.timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateFallback() error {
	if c.Fallback.DurationSeconds <= 0 {
		return errors.New("fallback.duration_seconds must be positive")
	}
	if c.Fallback.DurationSeconds > 600 {
		return errors.New("fallback.duration_seconds must not exceed 600")
	}
	return nil
}

func (c *Config) validateMetadata() error {
	switch c.Metadata.Driver {
	case MetadataDriverSQLite:
		return nil
	case MetadataDriverPostgres:
		if c.Metadata.DSN == "" {
			return errors.New("metadata.dsn must be set when metadata.driver is postgres")
		}
		return nil
	default:
		return fmt.Errorf("metadata.driver %q is not supported (use sqlite or postgres)", c.Metadata.Driver)
	}
}

func (c *Config) validatePublish() error {
	if !c.Publish.Enabled {
		return nil
	}
	if c.Publish.SupabaseURL == "" {
		return errors.New("publish.supabase_url must be set when publishing is enabled")
	}
	if err := validateHTTPURL("publish.supabase_url", c.Publish.SupabaseURL); err != nil {
		return err
	}
	if c.Publish.SupabaseKey == "" {
		return errors.New("publish.supabase_key must be set when publishing is enabled")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.NtfyTopic != "" {
		if err := validateHTTPURL("notifications.ntfy_topic", c.Notifications.NtfyTopic); err != nil {
			return err
		}
	}
	if c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format %q is not supported (use console or json)", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level %q is not supported", c.Logging.Level)
	}
	if c.Logging.RetentionDays < 0 {
		return errors.New("logging.retention_days must be zero or positive")
	}
	return nil
}

// ValidateGeneration ensures script generation can reach the LLM. Commands that
// only talk to a running server skip this check.
func (c *Config) ValidateGeneration() error {
	if c.LLM.APIKey == "" {
		return errors.New("llm.api_key must be set (or GROQ_API_KEY exported)")
	}
	if c.LLM.Model == "" {
		return errors.New("llm.model must be set (or GROQ_MODEL exported)")
	}
	return nil
}

func validateHTTPURL(key, value string) error {
	parsed, err := url.Parse(strings.TrimSpace(value))
	if err != nil || parsed.Host == "" {
		return fmt.Errorf("%s must be an absolute URL", key)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("%s must use http or https", key)
	}
	return nil
}
