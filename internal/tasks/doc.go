// Package tasks orchestrates providers into one resolution engine with real-time progress reporting.
//
// # Core Operations
//
// The [Engine] interface defines three operations:
//
//  1. [Engine.Search] : Aggregate search
//     - Queries every enabled provider concurrently
//     - Tolerates per-provider failures, reported per source
//     - Interleaves results round-robin and drops duplicate track IDs
//
//  2. [Engine.ResolveURL] : Playable URL with cross-provider fallback
//     - Tries the track's own provider first, unless the track is flagged unplayable
//     - Ranks the remaining enabled providers by the active strategy
//     - Searches each alternate for "title first-artist" and matches candidates with [matcher.Matcher]
//     - Contacts each provider at most once per resolution
//
//  3. [Engine.ResolveLyric] : Lyric with the same fallback machine
//
// [Orchestrator.BulkResolve] runs [Engine.ResolveURL] over many tracks through a rate-limited worker pool.
//
// # Strategies
//
// auto ranks by 0.4·successRate + 0.3·speed + 0.3·qualityWeight, fallback keeps declaration order,
// quality sorts by the static quality weight, speed sorts by average latency. Ties keep declaration order.
//
// # Health
//
// Every upstream attempt updates the provider's [HealthTracker] entry: an exponential moving average
// (α = 0.1) of success and latency. Licensing refusals and empty answers count as successes since the
// provider itself answered. Cancelled calls are not recorded.
//
// # Progress Reporting
//
// All operations accept an optional channel for progress updates.
//
// The [ProgressUpdate] struct contains the machine state, step counters, messages, and optional data.
// Updates use select with default to prevent blocking.
//
// # Resolution History
//
// The optional [ResolutionRecorder] interface receives every finished resolution.
//
// Recording errors are logged and never disrupt a resolution.
package tasks
