// Package models defines the domain entities shared by providers, the matcher and the orchestrator.
//
// The package contains two categories of types:
//
// 1. Normalized upstream data, created at the provider boundary and immutable afterwards
//   - [Track] : Song metadata with a provider-namespaced ID
//   - [SearchResult] : Ordered tracks plus per-provider status for aggregate searches
//   - [StreamResult] : A playable URL and the provider it was resolved from
//   - [Lyric] : Lyric text with an optional translation
//
// 2. Engine state
//   - [MatchResult] : A scored candidate produced by the matcher
//   - [ProviderHealth] : Rolling success rate and latency for one provider
//   - [Resolution] : A record of one orchestrated URL or lyric resolution
package models
