// Package repositories implements SQLite persistence for provider health and the resolution history.
//
// Key Implementations:
//   - [HealthRepository] : Rolling provider health snapshots, one row per provider, upserted on save
//   - [ResolutionRepository] : Append-only log of orchestrated URL and lyric resolutions
//   - [HistoryRecorder] : Adapts [ResolutionRepository] to the orchestrator's recorder interface with retention
//
// Repositories take a [database/sql.DB] prepared by shared.OpenDatabase, which applies the embedded migrations.
package repositories
