// Package api provides the JSON REST API server for serve mode.
//
// # Architecture
//
// The server uses Go 1.22+ routing with a layered middleware stack:
//
//	Recovery → RequestID → Logging → Metrics → CORS → RateLimit → Routes
//
// Health and metrics probes bypass the middleware stack via a top-level
// mux, so they stay fast and unthrottled.
//
// # Endpoints
//
// Probes (no middleware):
//   - GET /healthz — returns {"status":"ok"}
//   - GET /metrics — Prometheus exposition
//
// Chat:
//   - POST /api/ask — resolve one turn; an empty sessionId starts a session
//
// Session CRUD:
//   - POST   /api/sessions                — create a session (greeting seeded)
//   - GET    /api/sessions                — list sessions
//   - GET    /api/sessions/{id}/messages  — full chronological log
//   - DELETE /api/sessions/{id}           — delete a session
//
// # Sessions and Concurrency
//
// Each session gets its own assistant from a per-session cache, so
// concurrent sessions resolve turns independently while one session's
// turns stay strictly serialized. All assistants share the chat log
// store, the model clients and the warehouse pipeline, whose throttle
// keeps the combined call rate inside the API quota.
//
// # Error Handling
//
// All responses use an envelope format:
//
//	Success: {"data": <payload>}
//	Error:   {"error": {"code": "...", "message": "..."}}
//
// Turn-stage failures outside the SQL pipeline surface as 502 with a
// generic payload; the detail goes to the server log only.
package api
