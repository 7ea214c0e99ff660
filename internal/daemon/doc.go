// Package daemon coordinates the long-running reelsync process.
//
// It ties the catalog store and the synchronization pipeline into a single
// lifecycle guarded by a flock-based lock in the data directory, so only one
// engine ever writes a given catalog. The CLI uses LockHeld to report whether
// a daemon is running without taking the lock itself.
//
// Keep orchestration here; the work itself lives in the pipeline and the
// packages it wires together.
package daemon
