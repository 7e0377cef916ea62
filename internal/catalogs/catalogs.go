// Package catalogs defines the consumer-side contract for metadata
// catalogs. AniList is the primary source; TVDB can be enabled as a
// secondary. The resolver only depends on this interface, never on a
// concrete client.
package catalogs

import "context"

// Candidate is one search result from a catalog. Titles carries every known
// form of the name in the order the catalog reports them.
type Candidate struct {
	Source   string
	ID       string
	Titles   []string
	Synopsis string
	CoverURL string
}

// Client searches a single catalog for series matching a free-text term.
type Client interface {
	// Name identifies the catalog in logs and cached records.
	Name() string

	// SearchTitles returns candidates for the term. An empty slice with a
	// nil error means the catalog answered but found nothing.
	SearchTitles(ctx context.Context, term string) ([]Candidate, error)
}
