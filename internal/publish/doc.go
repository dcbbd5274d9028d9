// Package publish copies finished podcasts to Supabase.
//
// A Publisher runs after a job completes: it uploads the MP3 to a Storage
// bucket, inserts a row describing the episode, and records the public URL
// on the job. Publishing never changes a job's status; failures are logged.
//
// A NoteImporter drives the other direction. It reads a notes row, downloads
// the document the row points at, runs it through the pipeline
// synchronously, and publishes the result under the note owner's prefix with
// the owner and note IDs on the episode row.
package publish
