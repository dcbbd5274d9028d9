package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"papercast/internal/services/retry"
)

func completionHandler(t *testing.T, content string) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		payload := map[string]any{
			"choices": []any{
				map[string]any{"message": map[string]any{"content": content}},
			},
		}
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			t.Errorf("encode response: %v", err)
		}
	}
}

func noSleep() Option {
	return WithRetryPolicy(retry.Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, Sleeper: func(time.Duration) {}})
}

func TestClientHealthCheck(t *testing.T) {
	server := httptest.NewServer(completionHandler(t, `{"ok":true}`))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"})
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck returned error: %v", err)
	}
}

func TestClientHealthCheckFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "bad", BaseURL: server.URL, Model: "demo"}, noSleep())
	if err := client.HealthCheck(context.Background()); err == nil {
		t.Fatal("expected health check to fail")
	}
}

func TestCompleteJSONSendsModelAndHeaders(t *testing.T) {
	var gotModel, gotAuth, gotTitle string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatCompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		gotModel = req.Model
		gotAuth = r.Header.Get("Authorization")
		gotTitle = r.Header.Get("X-Title")
		if req.ResponseFormat["type"] != "json_object" {
			t.Errorf("expected json response format, got %v", req.ResponseFormat)
		}
		completionHandler(t, "```json\n{\"title\":\"x\"}\n```")(w, r)
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "secret", BaseURL: server.URL, Model: "default-model", Title: "papercast"})
	content, err := client.CompleteJSON(context.Background(), "override-model", "system", "user")
	if err != nil {
		t.Fatalf("CompleteJSON returned error: %v", err)
	}
	if gotModel != "override-model" {
		t.Fatalf("expected override model, got %q", gotModel)
	}
	if gotAuth != "Bearer secret" || gotTitle != "papercast" {
		t.Fatalf("unexpected headers auth=%q title=%q", gotAuth, gotTitle)
	}
	var decoded struct {
		Title string `json:"title"`
	}
	if err := DecodeLLMJSON(content, &decoded); err != nil || decoded.Title != "x" {
		t.Fatalf("expected fenced JSON to decode, got %+v err=%v", decoded, err)
	}
}

func TestCompleteJSONRetriesServerErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		completionHandler(t, `{"ok":true}`)(w, r)
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "k", BaseURL: server.URL, Model: "m"}, noSleep())
	if _, err := client.CompleteJSON(context.Background(), "", "s", "u"); err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
}

func TestCompleteJSONRetriesEmptyContent(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		completionHandler(t, "")(w, r)
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "k", BaseURL: server.URL, Model: "m"}, noSleep())
	_, err := client.CompleteJSON(context.Background(), "", "s", "u")
	if err == nil || !strings.Contains(err.Error(), "empty content") {
		t.Fatalf("expected empty content error, got %v", err)
	}
	if atomic.LoadInt32(&calls) != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
}

func TestCompleteJSONRequiresKeyAndModel(t *testing.T) {
	if _, err := NewClient(Config{Model: "m"}).CompleteJSON(context.Background(), "", "s", "u"); err == nil {
		t.Fatal("expected missing api key error")
	}
	if _, err := NewClient(Config{APIKey: "k"}).CompleteJSON(context.Background(), "", "s", "u"); err == nil {
		t.Fatal("expected missing model error")
	}
}

func TestDecodeLLMJSONExtractsObject(t *testing.T) {
	var out map[string]any
	if err := DecodeLLMJSON("Sure! Here you go: {\"a\": 1} hope that helps", &out); err != nil {
		t.Fatalf("DecodeLLMJSON: %v", err)
	}
	if out["a"] != float64(1) {
		t.Fatalf("unexpected decode: %v", out)
	}
	if err := DecodeLLMJSON("no json here", &out); err == nil {
		t.Fatal("expected error for non-JSON payload")
	}
}
