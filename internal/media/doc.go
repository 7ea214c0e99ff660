// Package media defines the domain vocabulary shared by the sync engine:
// library categories and roots, discovered files, normalized technical
// metadata, and the tagged MovieRecord/SeriesRecord ingestion payloads.
package media
