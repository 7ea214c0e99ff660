// Package transcode rewrites files that fail the compatibility policy into
// the accepted codec and container using the ffmpeg CLI.
//
// A single Worker drains a bounded FIFO queue one job at a time. Before the
// encoder starts, the output and source paths are added to the suppression
// set so the watcher ignores the encoder's own writes and the source
// deletion that follows a successful job. Failed jobs are dropped with the
// source left in place; the next reconciliation pass will offer the file
// again.
package transcode
