// Package watcher turns live filesystem events under the library roots into
// ingestion and pruning work.
//
// Every configured root is watched recursively with fsnotify. Repeated
// events for one path collapse within the debounce window; when the window
// closes the path is checked against the suppression set, then routed by
// what is on disk: an existing file is fingerprinted once it stops growing
// and handed to the ingestion path, a vanished file or directory triggers a
// missing-only reconciliation pass. New directories are added to the watch
// set and the files already inside them are dispatched as creates.
//
// Work runs on a shared Pool keyed by path so the event loop never blocks,
// and ingestion holds a per-fingerprint lock so two paths carrying the same
// content never race into the catalog.
package watcher
