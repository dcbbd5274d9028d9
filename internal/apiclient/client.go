// Package apiclient talks to a running papercast server.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"papercast/internal/jobs"
	"papercast/internal/metadata"
	"papercast/internal/publish"
	"papercast/internal/services"
	"papercast/internal/stage"
)

// ErrAPIUnavailable is returned when the server cannot be reached.
var ErrAPIUnavailable = errors.New("papercast API unavailable")

// Health mirrors the /health response.
type Health struct {
	Status    string         `json:"status"`
	Timestamp string         `json:"timestamp"`
	Ready     bool           `json:"ready"`
	Checks    []stage.Health `json:"checks"`
	Jobs      map[string]int `json:"jobs"`
}

// Client is a thin HTTP client for the papercast API.
type Client struct {
	base *url.URL
	http *http.Client
}

// New builds a client for baseURL ("host:port" or a full URL).
func New(baseURL string) (*Client, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errors.New("api url required")
	}
	if !strings.Contains(baseURL, "://") {
		baseURL = "http://" + baseURL
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse api url: %w", err)
	}
	base.Path = ""
	base.RawQuery = ""
	base.Fragment = ""
	// No client timeout: sync submissions block until the pipeline finishes.
	return &Client{base: base, http: &http.Client{}}, nil
}

// Submit uploads a document and returns the task id.
func (c *Client) Submit(ctx context.Context, filename string, data io.Reader, model string, sync bool) (string, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("pdf_file", filename)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, data); err != nil {
		return "", fmt.Errorf("read %s: %w", filename, err)
	}
	if model = strings.TrimSpace(model); model != "" {
		_ = writer.WriteField("model", model)
	}
	if sync {
		_ = writer.WriteField("sync", "true")
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/create-podcast", nil, &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	var out struct {
		TaskID string `json:"task_id"`
	}
	if err := c.doJSON(req, &out); err != nil {
		return "", err
	}
	return out.TaskID, nil
}

// SubmitNote asks the server to build and publish a podcast from a stored
// note. The call returns once the podcast is published.
func (c *Client) SubmitNote(ctx context.Context, note publish.NoteRequest) (publish.NoteResult, error) {
	payload, err := json.Marshal(note)
	if err != nil {
		return publish.NoteResult{}, err
	}
	req, err := c.newRequest(ctx, http.MethodPost, "/api/generate_podcast_from_note", nil, bytes.NewReader(payload))
	if err != nil {
		return publish.NoteResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	var out publish.NoteResult
	if err := c.doJSON(req, &out); err != nil {
		return publish.NoteResult{}, err
	}
	return out, nil
}

// Status returns the job snapshot for id.
func (c *Client) Status(ctx context.Context, id string) (jobs.Job, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/podcast_status/"+url.PathEscape(id), nil, nil)
	if err != nil {
		return jobs.Job{}, err
	}
	var job jobs.Job
	if err := c.doJSON(req, &job); err != nil {
		return jobs.Job{}, err
	}
	return job, nil
}

// WaitForTerminal polls until the job completes or fails.
func (c *Client) WaitForTerminal(ctx context.Context, id string, interval time.Duration, onUpdate func(jobs.Job)) (jobs.Job, error) {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		job, err := c.Status(ctx, id)
		if err != nil {
			return jobs.Job{}, err
		}
		if onUpdate != nil {
			onUpdate(job)
		}
		if job.Status.IsTerminal() {
			return job, nil
		}
		select {
		case <-ctx.Done():
			return job, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Download streams the finished podcast into w.
func (c *Client) Download(ctx context.Context, id string, w io.Writer) (int64, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/get_podcast/"+url.PathEscape(id), nil, nil)
	if err != nil {
		return 0, err
	}
	resp, err := c.do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return 0, err
	}
	return io.Copy(w, resp.Body)
}

// List returns up to limit recent podcast records.
func (c *Client) List(ctx context.Context, limit int) ([]metadata.Record, error) {
	values := url.Values{}
	if limit > 0 {
		values.Set("limit", strconv.Itoa(limit))
	}
	req, err := c.newRequest(ctx, http.MethodGet, "/api/podcasts", values, nil)
	if err != nil {
		return nil, err
	}
	var out struct {
		Podcasts []metadata.Record `json:"podcasts"`
	}
	if err := c.doJSON(req, &out); err != nil {
		return nil, err
	}
	return out.Podcasts, nil
}

// Health fetches server health.
func (c *Client) Health(ctx context.Context) (Health, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/health", nil, nil)
	if err != nil {
		return Health{}, err
	}
	var out Health
	if err := c.doJSON(req, &out); err != nil {
		return Health{}, err
	}
	return out, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body io.Reader) (*http.Request, error) {
	if c == nil {
		return nil, ErrAPIUnavailable
	}
	endpoint := c.base.ResolveReference(&url.URL{Path: path, RawQuery: query.Encode()})
	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (c *Client) do(req *http.Request) (*http.Response, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		var opErr *net.OpError
		if errors.As(err, &opErr) {
			return nil, fmt.Errorf("%w: %v", ErrAPIUnavailable, err)
		}
		return nil, err
	}
	return resp, nil
}

func (c *Client) doJSON(req *http.Request, out any) error {
	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", req.URL.Path, err)
	}
	return nil
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}
	var payload struct {
		Error string `json:"error"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	message := strings.TrimSpace(string(raw))
	if json.Unmarshal(raw, &payload) == nil && payload.Error != "" {
		message = payload.Error
	}
	switch resp.StatusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%s: %w", message, services.ErrNotFound)
	case http.StatusBadRequest:
		return fmt.Errorf("%s: %w", message, services.ErrValidation)
	default:
		return fmt.Errorf("api returned status %d: %s", resp.StatusCode, message)
	}
}
