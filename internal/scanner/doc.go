// Package scanner walks library roots and lists candidate media files by
// extension. It holds no state between walks.
package scanner
