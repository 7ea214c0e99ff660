// Package daemonrun hosts the foreground runtime behind `reelsync run`:
// signal handling, the per-run log file, the pid file, startup diagnostics
// and the daemon lifecycle.
package daemonrun
