// Package tts synthesizes podcast scripts through an OpenAI-compatible
// /audio/speech endpoint. Each script turn becomes one request voiced by the
// speaker's assigned voice, and the returned MP3 segments are concatenated
// into the job's podcast artifact.
package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"papercast/internal/audio"
	"papercast/internal/config"
	"papercast/internal/fileutil"
	"papercast/internal/logging"
	"papercast/internal/script"
	"papercast/internal/services"
	"papercast/internal/services/retry"
)

const (
	defaultHTTPTimeout = 120 * time.Second
	defaultFormat      = "mp3"
	// maxSegmentChars keeps each request well inside provider input limits.
	maxSegmentChars = 4000
)

// Config captures the speech endpoint settings.
type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	Voices         []string
	Format         string
	TimeoutSeconds int
	OutputDir      string
}

// ConfigFrom maps the [speech] section and podcast directory onto a Config.
func ConfigFrom(cfg *config.Config) Config {
	voices := make([]string, len(cfg.Speech.Voices))
	copy(voices, cfg.Speech.Voices)
	return Config{
		APIKey:         cfg.Speech.APIKey,
		BaseURL:        cfg.Speech.BaseURL,
		Model:          cfg.Speech.Model,
		Voices:         voices,
		Format:         cfg.Speech.Format,
		TimeoutSeconds: cfg.Speech.TimeoutSeconds,
		OutputDir:      cfg.Paths.PodcastDir,
	}
}

// Client synthesizes scripts into MP3 files.
type Client struct {
	cfg        Config
	httpClient *http.Client
	policy     retry.Policy
	logger     *slog.Logger
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithRetryPolicy overrides the default retry policy.
func WithRetryPolicy(policy retry.Policy) Option {
	return func(c *Client) {
		c.policy = policy
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logging.NewComponentLogger(logger, "tts")
	}
}

// NewClient constructs a speech client.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	voices := make([]string, 0, len(cfg.Voices))
	for _, v := range cfg.Voices {
		if v = strings.TrimSpace(v); v != "" {
			voices = append(voices, v)
		}
	}
	format := strings.TrimSpace(cfg.Format)
	if format == "" {
		format = defaultFormat
	}
	client := &Client{
		cfg: Config{
			APIKey:         strings.TrimSpace(cfg.APIKey),
			BaseURL:        strings.TrimSpace(cfg.BaseURL),
			Model:          strings.TrimSpace(cfg.Model),
			Voices:         voices,
			Format:         format,
			TimeoutSeconds: cfg.TimeoutSeconds,
			OutputDir:      strings.TrimSpace(cfg.OutputDir),
		},
		httpClient: &http.Client{Timeout: timeout},
		policy:     retry.Default(),
		logger:     logging.NewComponentLogger(nil, "tts"),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

type speechRequest struct {
	Model          string `json:"model"`
	Input          string `json:"input"`
	Voice          string `json:"voice"`
	ResponseFormat string `json:"response_format"`
}

// Synthesize voices every turn of s and writes podcast_<jobID>.mp3. Any
// failure is reported as ErrSynthesis and leaves no artifact behind.
func (c *Client) Synthesize(ctx context.Context, jobID string, s script.Script) (string, error) {
	if err := c.ready(); err != nil {
		return "", services.Wrap(services.ErrSynthesis, "synthesizing", "configure", "speech client unavailable", err)
	}
	if err := s.Validate(); err != nil {
		return "", services.Wrap(services.ErrSynthesis, "synthesizing", "validate", "script cannot be voiced", err)
	}

	voices := c.AssignVoices(s.Speakers())
	logger := logging.WithContext(ctx, c.logger)

	var combined bytes.Buffer
	segments := 0
	started := time.Now()
	for i, turn := range s.Turns {
		for _, chunk := range splitText(turn.Text, maxSegmentChars) {
			data, err := c.synthesizeSegment(ctx, chunk, voices[strings.TrimSpace(turn.Speaker)])
			if err != nil {
				return "", services.Wrap(services.ErrSynthesis, "synthesizing", fmt.Sprintf("turn %d", i+1), "speech request failed", err)
			}
			combined.Write(data)
			segments++
		}
	}

	path := audio.PodcastPath(c.cfg.OutputDir, jobID)
	if err := fileutil.WriteFileAtomic(path, combined.Bytes(), 0o644); err != nil {
		return "", services.Wrap(services.ErrSynthesis, "synthesizing", "write", "persist audio", err)
	}
	logger.Info("podcast audio synthesized",
		logging.String("path", path),
		logging.Int("segments", segments),
		logging.Int("bytes", combined.Len()),
		logging.Duration("elapsed", time.Since(started)),
	)
	return path, nil
}

// AssignVoices maps speakers to configured voices round-robin in order of
// first appearance.
func (c *Client) AssignVoices(speakers []string) map[string]string {
	out := make(map[string]string, len(speakers))
	if len(c.cfg.Voices) == 0 {
		return out
	}
	for i, speaker := range speakers {
		out[speaker] = c.cfg.Voices[i%len(c.cfg.Voices)]
	}
	return out
}

// Ready reports whether the client has enough configuration to synthesize.
func (c *Client) Ready() error {
	return c.ready()
}

func (c *Client) ready() error {
	switch {
	case c.cfg.APIKey == "":
		return errors.New("speech api key not configured")
	case c.cfg.BaseURL == "":
		return errors.New("speech base url not configured")
	case c.cfg.Model == "":
		return errors.New("speech model not configured")
	case len(c.cfg.Voices) == 0:
		return errors.New("no speech voices configured")
	case c.cfg.OutputDir == "":
		return errors.New("podcast output directory not configured")
	}
	return nil
}

func (c *Client) synthesizeSegment(ctx context.Context, text, voice string) ([]byte, error) {
	payload, err := json.Marshal(speechRequest{
		Model:          c.cfg.Model,
		Input:          text,
		Voice:          voice,
		ResponseFormat: c.cfg.Format,
	})
	if err != nil {
		return nil, fmt.Errorf("encode speech request: %w", err)
	}

	var data []byte
	err = c.policy.Do(ctx, "speech request", func(int) error {
		body, err := c.sendOnce(ctx, payload)
		if err != nil {
			return err
		}
		data = body
		return nil
	})
	return data, err
}

func (c *Client) sendOnce(ctx context.Context, payload []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("speech request: new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("speech request: http error (timeout=%s): %w", c.httpClient.Timeout, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("speech request: read body: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return nil, retry.StatusFromResponse("speech request", resp, body)
	}
	if len(body) == 0 {
		return nil, errors.New("speech request: empty audio response")
	}
	if !audio.IsFrameSync(body) {
		return nil, fmt.Errorf("speech request: response is not mp3 audio (content-type %q)", resp.Header.Get("Content-Type"))
	}
	return body, nil
}

// splitText breaks text into chunks of at most limit runes on word boundaries.
func splitText(text string, limit int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	var chunks []string
	var current strings.Builder
	size := 0
	for _, word := range words {
		wordLen := len([]rune(word))
		if size > 0 && size+1+wordLen > limit {
			chunks = append(chunks, current.String())
			current.Reset()
			size = 0
		}
		if size > 0 {
			current.WriteByte(' ')
			size++
		}
		current.WriteString(word)
		size += wordLen
	}
	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}
	return chunks
}
