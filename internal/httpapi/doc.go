// Package httpapi exposes the podcast pipeline over HTTP.
//
// Routes:
//
//	POST /create-podcast          multipart upload (pdf_file, model, sync)
//	GET  /podcast_status/{id}     job snapshot
//	GET  /get_podcast/{id}        finished MP3
//	GET  /podcast/{id}/status     legacy alias of /podcast_status/{id}
//	GET  /podcast/{id}            legacy alias of /get_podcast/{id}
//	GET  /api/podcasts            recent metadata records
//	POST /api/generate_podcast_from_note
//	                              JSON {note_id, user_id, title}; runs the
//	                              note's document synchronously and publishes it
//	GET  /health                  liveness and collaborator readiness
package httpapi
