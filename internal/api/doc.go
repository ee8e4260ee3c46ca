// Package api serves rootline over HTTP for `rootline serve`.
//
// Tree views live in memory on the server, keyed by a view id returned in
// the X-View-ID response header of GET /v1/tree/{ref}. Later requests for the
// same view (another load, a hop, a picture upload) send the id back. Idle
// views are closed by a background sweep.
//
// Callers authenticate with a session id obtained from POST /v1/sessions,
// sent as "Authorization: Bearer <session id>". Requests without one run as
// the anonymous viewer.
//
// Errors are JSON objects {"code", "message", "request_id"} with the HTTP
// status derived from the rootline error code.
package api
