// Package identity computes the two identities the catalog is keyed on: the
// partial-content fingerprint of a physical file and the TitleKey that groups
// every file of one movie or series.
//
// Fingerprints hash a bounded leading byte range, so two files sharing an
// identical header collide. That is an accepted accuracy tradeoff for large
// media files.
package identity
