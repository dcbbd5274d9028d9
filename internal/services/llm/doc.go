// Package llm provides an OpenAI-compatible chat completion client used to
// turn document text into podcast scripts.
//
// The default endpoint is Groq's chat completions API; any provider that
// speaks the same schema works by changing base_url.
//
// # Entry Points
//
// NewClient: construct client from Config.
// Client.CompleteJSON: send system/user prompts, receive a JSON payload.
// Client.HealthCheck: verify API key and model availability.
// DecodeLLMJSON: tolerant decoding for fenced or chatty JSON replies.
//
// # Retry Behaviour
//
// Requests retry on HTTP 408/429/5xx, network timeouts, and empty completions
// using the shared policy in internal/services/retry (base 1s, max 10s, up to
// 5 attempts). Context cancellation aborts retries immediately.
package llm
