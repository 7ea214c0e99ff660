// Package ffprobe wraps the ffprobe inspector and normalizes its JSON output
// into media.Technical.
//
// Key types:
//   - Result: parsed ffprobe output containing streams and format metadata
//   - Prober: runs Inspect under a per-call timeout and normalizes the result
//
// Inspect classifies failures with the services markers: a missing binary is
// ErrToolMissing, a killed process is ErrTimeout and unreadable output is
// ErrProbe.
package ffprobe
