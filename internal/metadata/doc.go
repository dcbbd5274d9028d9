// Package metadata persists the durable result record of every podcast that
// reached a playable artifact.
//
// A Record is written once per job at finalize time (including fallback
// audio) and never for jobs that failed before producing audio, so record
// presence is the definition of "podcast exists". Records live in SQLite by
// default (modernc.org/sqlite, WAL mode) or PostgreSQL through pgx's
// database/sql driver; queries are built with squirrel so one code path serves
// both placeholder styles. The schema is bootstrapped from schema.sql and
// guarded by a schema_version row.
package metadata
