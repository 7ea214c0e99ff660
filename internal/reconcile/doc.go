// Package reconcile diffs the files found under the library roots against
// the fingerprints recorded in the catalog.
//
// A pass fingerprints every scanned file with bounded parallelism, reports
// files the catalog has not seen, and deletes catalog instances whose
// fingerprint no longer exists locally. It is the only code path that
// removes instances. Files that could not be fingerprinted (locked, still
// copying) are never treated as deleted: their catalogued path is protected
// until a later pass can read them.
package reconcile
