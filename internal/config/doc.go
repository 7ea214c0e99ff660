// Package config loads, normalizes, and validates reelsync configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// TMDB_API_KEY. The Config type centralizes the library root mapping, the
// compatibility policy, external tool settings and sync tuning so the daemon
// and CLI discover everything in one pass.
//
// Always obtain settings through this package so downstream code receives
// absolute, de-duplicated library roots and clear validation errors.
package config
