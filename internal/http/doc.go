// Package http provides the thin JSON surface of the availability engine.
//
// The router exposes the following endpoints:
//   - POST /search: runs the batch first-reservable-time search. Body:
//     {"unit_ids","date_start","date_end","time_start","time_end",
//     "minimum_duration_minutes","show_only_reservable","cache_key",
//     "offset","limit"}. Dates use "2006-01-02", times of day "15:04", both
//     interpreted in the service's configured location. Response:
//     {"results":[{"unit_id","is_closed","first_reservable"}]}.
//   - GET /healthz: storage liveness probe, 204 on success.
//
// The full query surface with its filter and sort vocabulary lives in the
// consuming API layer; this package only exposes the core computation.
package http
