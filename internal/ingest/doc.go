// Package ingest runs one media file through the shared ingestion path used
// by both the startup reconciliation and the live watcher: parse the name,
// probe the streams, classify against the compatibility policy, then either
// write the catalog record or hand the file to the transcode worker.
//
// A successful catalog write notifies the enrichment scheduler. Transcoded
// outputs re-enter through Transcoded and are catalogued without being
// classified for another transcode.
package ingest
