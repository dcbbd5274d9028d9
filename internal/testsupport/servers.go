package testsupport

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

// DefaultScriptJSON is a minimal valid two-speaker script.
const DefaultScriptJSON = `{"title":"Test Episode","turns":[{"speaker":"Alex","text":"Welcome to the show."},{"speaker":"Jordan","text":"Glad to be here."}]}`

// SpeechBytes is what NewSpeechServer returns for every request.
var SpeechBytes = []byte{'I', 'D', '3', 0x04, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0xFF, 0xFB, 0x90, 0xC0}

// NewLLMServer serves OpenAI-style chat completions whose content is content.
func NewLLMServer(t testing.TB, content string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{
				"message":       map[string]string{"role": "assistant", "content": content},
				"finish_reason": "stop",
			}},
		})
	}))
	t.Cleanup(server.Close)
	return server
}

// SpeechServer counts synthesis requests.
type SpeechServer struct {
	*httptest.Server
	calls atomic.Int64
}

// Calls returns the number of requests served.
func (s *SpeechServer) Calls() int64 {
	return s.calls.Load()
}

// NewSpeechServer answers every request with status; 200 responses carry
// SpeechBytes. Use a 4xx status to fail without triggering retries.
func NewSpeechServer(t testing.TB, status int) *SpeechServer {
	t.Helper()
	s := &SpeechServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		s.calls.Add(1)
		if status != http.StatusOK {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":"unavailable"}`))
			return
		}
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write(SpeechBytes)
	}))
	t.Cleanup(s.Server.Close)
	return s
}
