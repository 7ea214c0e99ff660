// Package enrichment keeps catalog entries populated with TMDB metadata.
//
// Decide applies the staleness policy: a movie is enriched once, a series is
// re-checked whenever any of its seasons lacks a latest_episode_entry stamp
// or its newest season's stamp is older than the staleness window. Responses
// are kept in a per-title JSON cache in cache_dir that is consulted before
// any network request, so the catalog can be rebuilt without hitting the API.
//
// The Scheduler serializes all enrichment through one goroutine: entries
// notified by ingestion are handled as they arrive and the whole catalog is
// walked in batches on every refresh interval.
package enrichment
