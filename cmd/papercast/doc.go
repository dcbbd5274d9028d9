// Package main implements the papercast command-line interface.
//
// The CLI covers both halves of the system: `papercast serve` runs the HTTP
// server and pipeline in the foreground, while submit, status, fetch, and
// list talk to a running server through internal/apiclient. `papercast run`
// executes one document through the pipeline in-process without a server,
// and `papercast doctor` runs the preflight checks.
//
// Configuration is loaded once per invocation through the shared command
// context; commands annotated with skipConfigLoad (config init) bypass it.
package main
