// Package identity stores the mapping from library folder paths to catalog
// identities in SQLite. A folder is resolved once; both successful and
// failed lookups are cached so the reconciliation loop never repeats catalog
// queries for a folder until the entry is invalidated.
package identity
