// Package preflight provides readiness checks for the filesystem paths and
// external services reelsync depends on.
//
// The daemon runs RunAll once at startup and logs failures without refusing
// to start, since a missing root may be an unmounted drive that returns
// later. The CLI "reelsync status" command renders the same results together
// with free space per root.
package preflight
