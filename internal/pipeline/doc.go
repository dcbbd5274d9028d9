// Package pipeline coordinates the podcast job lifecycle.
//
// Orchestrator.Run drives one job through extraction, script generation,
// speech synthesis (falling back to a silent placeholder), metadata
// persistence, and input cleanup, recording progress in the jobs.Store as
// it goes. Service wraps the orchestrator with upload handling, job
// creation, sync/async dispatch, and the post-terminal hooks used for
// notifications and publishing.
//
// Every job reaches a terminal status. A metadata record exists exactly
// when the job completed, and the uploaded input is removed on every path.
package pipeline
