// Package catalog persists the media catalog in SQLite.
//
// The Store owns schema creation, busy-retry, and the transactional verbs the
// synchronization engine relies on: Ingest (one transaction per file),
// AllFingerprints, DeleteByFingerprint, LookupByTitleKey and ApplyEnrichment.
// Entries (media_items) are keyed by TitleKey and instances (media_metadata)
// by fingerprint. A trigger removes an entry once its last instance is gone,
// and foreign keys cascade everything hanging off either row.
//
// Schema changes bump schemaVersion in schema.go; an older catalog is
// rejected with ErrSchemaMismatch and rebuilt by a fresh scan.
package catalog
