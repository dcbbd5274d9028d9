// Package preflight provides readiness checks for the external services
// and filesystem paths papercast depends on.
//
// These checks run in two contexts:
//   - The CLI "papercast doctor" command calls RunAll, which may touch the
//     network (an LLM round trip, a metadata connection).
//   - The HTTP /health endpoint uses Checkers, which only inspects
//     configuration, directories, and the already-open metadata store.
//
// Optional features (publishing, notifications) are skipped when disabled.
package preflight
