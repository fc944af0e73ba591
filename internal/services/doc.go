// Package services defines the [Provider] interface for music platforms and implements it for
// NetEase, Kugou, QQ, Kuwo, Migu, Spotify and YouTube Music.
//
// # Provider Interface
//
// Every platform implements the same four capabilities (search, stream URL, lyric, playability),
// so the orchestrator never depends on a concrete adapter. Adapters are built by ID through [New]
// or from configuration through [FromConfig], and held in a [Registry] that keeps declaration order,
// the enabled flag and a static quality weight per provider.
//
// # Transport
//
// Each adapter owns one transport: a shared [http.Client], an optional [rate.Limiter] and default
// headers. The transport is the only place raw failures are classified:
//   - dial, reset and DNS failures : [shared.ErrNetwork]
//   - deadline exceeded : [shared.ErrTimeout]
//   - 5xx : [shared.ErrUpstreamServer]
//   - 429 and 408 : [shared.ErrRateLimited]
//   - any other non-2xx : [shared.ErrRejected]
//   - undecodable bodies : [shared.ErrParse]
//
// Copyright, region and paywall refusals are reported by the adapters as [shared.ErrNotPlayable].
//
// # Normalization
//
// Upstream payloads become [models.Track] values with IDs of the form "provider:native", HTML-free
// titles and artists ([CleanText]) and the Playable flag set once from [Provider.IsPlayable].
// An empty search is an empty result, never an error. A missing lyric is an empty lyric.
//
// # Spotify
//
// [SpotifyProvider] authenticates with the client-credentials grant; the [oauth2] token source
// refreshes the app token on its own. Only 30 second previews are resolvable and there are no lyrics.
//
// # YouTube Music
//
// [YouTubeProvider] talks to a local ytmusicapi proxy exposing search, stream and lyric endpoints.
//
// # Caching
//
// [CachedProvider] wraps an adapter with TTL/LRU caches, in-flight deduplication and the retry policy.
// Keys carry the provider ID, so one [Caches] set serves every provider.
package services
