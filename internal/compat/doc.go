// Package compat decides whether a probed file already matches the
// directly-playable codec and container policy. Everything here is pure.
package compat
