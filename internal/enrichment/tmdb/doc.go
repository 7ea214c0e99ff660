// Package tmdb is the minimal TMDB client used for catalog enrichment.
//
// Lookup searches movies or TV by title and optional year, takes the first
// result and fetches its full details. Every request waits on a shared
// rate limiter so the client never exceeds one request per configured
// interval. Failures carry services markers: network errors, 429 and 5xx
// responses are transient, an undecodable body is a validation failure and
// an empty result set is ErrNotFound.
package tmdb
