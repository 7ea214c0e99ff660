// Package logging assembles structured slog loggers and formatting helpers used
// across the reelsync daemon and CLI.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so pipeline code can tag log
// lines with run IDs, stages, categories and file paths. The package also
// provides a no-op logger for tests, a progress sampler for encoder output,
// and retention pruning for per-run log files.
package logging
