// Command reelsync keeps a SQLite media catalog in sync with the movie and
// series folders named in its configuration.
//
// `reelsync run` is the long-running daemon. The remaining commands are
// one-shot: scan reconciles once, status reports health, probe explains how a
// single file would be catalogued, and catalog, cache and config cover
// maintenance.
package main
