// Package server exposes the resolution engine over a small JSON API.
//
// # Routing
//
// [ChiRouter] implements [Router] on top of chi. [Middleware] is applied per route at registration time and
// wraps in reverse order, so the first middleware added is the outermost. [NewRouter] installs request IDs,
// panic recovery, request logging and Prometheus instrumentation.
//
// Handlers implement [Handler] and declare their own routes:
//
//	GET  /health                        liveness plus enabled provider count
//	GET  /metrics                       Prometheus exposition
//	GET  /api/search?q=&limit=          aggregate search across enabled providers
//	POST /api/resolve                   {"track": {...}, "quality": "higher"}
//	POST /api/lyric                     {"track": {...}}
//	GET  /api/providers                 strategy and per-provider health
//	POST /api/providers/{id}/enable     also disable and reset
//	GET  /api/history?track_id=&op=     recent resolutions, when a history source is configured
//
// # Errors
//
// Failures are written as {"error", "kind", "attempts", "request_id"}. Invalid input maps to 400, unknown
// providers and tracks with no equivalent to 404, unplayable tracks to 451, transient exhaustion and missing
// providers to 503, and cancellation to 408.
package server
