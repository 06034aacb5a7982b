// Package inspector serves a Recorder's timeline over HTTP.
//
// Routes:
//
//	GET  /healthz             liveness and recorder status
//	GET  /api/timeline        the live timeline, not persisted
//	POST /api/timeline        snapshot the recorder into the store
//	GET  /api/timeline/{id}   a stored timeline
//	GET  /api/timelines       summaries of stored timelines, newest first
//	GET  /ws                  live event stream, one JSON event per message
//	GET  /metrics             Prometheus exposition
package inspector
