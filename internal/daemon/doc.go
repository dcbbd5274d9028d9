// Package daemon coordinates the long-running papercast server process.
//
// It wires configuration, the metadata store, the pipeline collaborators, the
// HTTP API, and post-job hooks into a single lifecycle with flock-based
// locking to prevent multiple instances. A fatal pipeline error (the silent
// placeholder cannot be written) cancels the daemon context so the process
// exits non-zero.
//
// Keep orchestration logic here: pipeline stages live in their own packages
// while the daemon focuses on startup, shutdown, and high level coordination.
package daemon
