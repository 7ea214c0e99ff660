// Package pipeline assembles the synchronization engine.
//
// A Pipeline is built once per process and owns every piece of shared
// mutable state: the suppression set, the keyed watcher pool, the single
// transcode worker, the ingestor and the enrichment scheduler. The watcher
// and the reconciler receive these by handle, so nothing lives in package
// globals and tests can substitute fakes for the external tools and the
// metadata provider.
//
// Two entry points exist. Scan performs one reconciliation pass, ingests the
// new files, drains the transcode queue and refreshes enrichment, then
// returns; the CLI uses it. Start launches the long-running daemon: watcher,
// transcode worker and scheduler run in the background while a startup pass
// brings the catalog up to date.
package pipeline
