// Package parser turns media filenames into structured identities.
//
// Every function is pure apart from the episode tiebreaker clock held by
// Parser. Titles are title-cased after separator cleanup so that differently
// formatted names of the same title produce the same TitleKey.
package parser
