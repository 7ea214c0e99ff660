// Package services defines shared utilities consumed by the sync pipeline and
// its external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp run IDs, stage names, file paths and
//     categories for logging.
//   - Structured error markers plus the Wrap helper, and Classify, which maps
//     a failure onto retry/skip/drop/abort handling.
//
// Use these helpers when wiring new pipeline steps so error handling and
// observability stay uniform across the scanner, watcher and transcode worker.
package services
