// Package notifications sends podcast lifecycle alerts to an ntfy topic.
//
// NewService returns a no-op implementation when no topic is configured, so
// callers never need nil checks. Messages are plain text with Title, Tags, and
// Priority headers as ntfy expects.
package notifications
