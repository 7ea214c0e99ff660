// Package subtitles finds sidecar subtitle files for a media file and
// converts SubRip files to WebVTT so players can load them directly.
//
// Sidecars are looked up in a dedicated "subs_<stem>" folder next to the
// media file first, then among siblings sharing the media stem
// ("Movie.srt", "Movie.en.vtt").
package subtitles
