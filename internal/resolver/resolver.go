package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"shadowplay/internal/catalogs"
	"shadowplay/internal/identity"
	"shadowplay/internal/logging"
	"shadowplay/internal/titlematch"
)

// coverFetcher downloads cover art for a catalog identity.
type coverFetcher interface {
	Ensure(ctx context.Context, source, id, coverURL string) (string, error)
}

// identityStore is the slice of the identity store the resolver uses.
type identityStore interface {
	Lookup(ctx context.Context, folderPath string) (identity.Record, error)
	Save(ctx context.Context, rec identity.Record) error
}

// Result carries a resolution outcome. FromCache distinguishes a cache hit
// from a fresh catalog round trip.
type Result struct {
	Record    identity.Record
	FromCache bool
}

// Resolver maps library folders to catalog identities. Every outcome,
// including a failed lookup, is persisted; a folder is queried against the
// catalogs at most once until its cache entry is invalidated.
type Resolver struct {
	store       identityStore
	primary     catalogs.Client
	secondary   catalogs.Client
	covers      coverFetcher
	threshold   float64
	callTimeout time.Duration
	logger      *slog.Logger
}

// Option customises the Resolver.
type Option func(*Resolver)

// WithSecondary adds a fallback catalog consulted when the primary yields no
// acceptable match.
func WithSecondary(client catalogs.Client) Option {
	return func(r *Resolver) {
		if client != nil {
			r.secondary = client
		}
	}
}

// WithCovers enables cover art fetching for resolved identities.
func WithCovers(covers coverFetcher) Option {
	return func(r *Resolver) {
		if covers != nil {
			r.covers = covers
		}
	}
}

// WithCatalogTimeout bounds each individual catalog query. A hung catalog
// then costs one deadline per query instead of starving the queries after it.
func WithCatalogTimeout(timeout time.Duration) Option {
	return func(r *Resolver) {
		if timeout > 0 {
			r.callTimeout = timeout
		}
	}
}

// New creates a resolver.
func New(store identityStore, primary catalogs.Client, threshold float64, logger *slog.Logger, opts ...Option) (*Resolver, error) {
	if store == nil {
		return nil, errors.New("resolver: identity store required")
	}
	if primary == nil {
		return nil, errors.New("resolver: primary catalog required")
	}
	if threshold < 0 || threshold > 1 {
		return nil, fmt.Errorf("resolver: threshold %f out of range", threshold)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	r := &Resolver{
		store:     store,
		primary:   primary,
		threshold: threshold,
		logger:    logging.NewComponentLogger(logger, "resolver"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Resolve returns the identity for a library folder, consulting the cache
// first. folderName is the folder's base name; folderPath is the cache key.
func (r *Resolver) Resolve(ctx context.Context, folderName, folderPath string) (Result, error) {
	cached, err := r.store.Lookup(ctx, folderPath)
	if err == nil {
		return Result{Record: cached, FromCache: true}, nil
	}
	if !errors.Is(err, identity.ErrNotFound) {
		return Result{}, fmt.Errorf("resolver: %w", err)
	}

	term := titlematch.SearchTerm(folderName)
	if term == "" {
		term = strings.TrimSpace(folderName)
	}

	// The outcome must reach the cache even when the catalogs exhausted the
	// caller's deadline; otherwise the folder gets re-queried every cycle.
	persistCtx := context.WithoutCancel(ctx)

	match, found, searchErr := r.search(ctx, term, folderName)
	if searchErr != nil || !found {
		rec := identity.Record{
			FolderPath: folderPath,
			Resolved:   false,
			SearchTerm: term,
		}
		if searchErr != nil {
			r.logger.Warn("catalog lookup failed, caching as unresolved",
				logging.String(logging.FieldFolder, folderName),
				logging.Error(searchErr))
		} else {
			r.logger.Info("no catalog match, caching as unresolved",
				logging.String(logging.FieldFolder, folderName),
				logging.String("term", term))
		}
		if saveErr := r.store.Save(persistCtx, rec); saveErr != nil {
			return Result{}, fmt.Errorf("resolver: persist unresolved: %w", saveErr)
		}
		return Result{Record: rec}, nil
	}

	rec := identity.Record{
		FolderPath: folderPath,
		Resolved:   true,
		Source:     match.Candidate.Source,
		SourceID:   match.Candidate.ID,
		Title:      displayTitle(match),
		SearchTerm: term,
		Score:      match.Score,
		Synopsis:   match.Synopsis,
	}
	if r.covers != nil && match.CoverURL != "" {
		coverFile, coverErr := r.covers.Ensure(ctx, rec.Source, rec.SourceID, match.CoverURL)
		if coverErr != nil {
			r.logger.Warn("cover fetch failed",
				logging.String(logging.FieldSourceID, rec.SourceID),
				logging.Error(coverErr))
		} else {
			rec.CoverFile = coverFile
		}
	}

	if err := r.store.Save(persistCtx, rec); err != nil {
		return Result{}, fmt.Errorf("resolver: persist identity: %w", err)
	}
	r.logger.Info("folder resolved",
		logging.String(logging.FieldFolder, folderName),
		logging.String(logging.FieldSource, rec.Source),
		logging.String(logging.FieldSourceID, rec.SourceID),
		logging.String(logging.FieldSeries, rec.Title),
		logging.Float64(logging.FieldScore, rec.Score))
	return Result{Record: rec}, nil
}

// candidateMatch keeps the winning candidate's metadata with the match.
type candidateMatch struct {
	titlematch.Match
	Synopsis string
	CoverURL string
}

// search queries the primary catalog with the derived term, falls back to
// the raw folder name, then repeats against the secondary catalog.
func (r *Resolver) search(ctx context.Context, term, folderName string) (candidateMatch, bool, error) {
	terms := []string{term}
	if raw := strings.TrimSpace(folderName); raw != "" && !strings.EqualFold(raw, term) {
		terms = append(terms, raw)
	}

	clients := []catalogs.Client{r.primary}
	if r.secondary != nil {
		clients = append(clients, r.secondary)
	}

	var lastErr error
	for _, client := range clients {
		for _, query := range terms {
			candidates, err := r.searchOne(ctx, client, query)
			if err != nil {
				lastErr = fmt.Errorf("%s: %w", client.Name(), err)
				continue
			}
			if match, ok := r.pick(query, candidates); ok {
				return match, true, nil
			}
		}
	}
	if lastErr != nil {
		return candidateMatch{}, false, lastErr
	}
	return candidateMatch{}, false, nil
}

// searchOne runs a single catalog query under its own deadline when one is
// configured.
func (r *Resolver) searchOne(ctx context.Context, client catalogs.Client, query string) ([]catalogs.Candidate, error) {
	if r.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.callTimeout)
		defer cancel()
	}
	return client.SearchTitles(ctx, query)
}

func (r *Resolver) pick(query string, candidates []catalogs.Candidate) (candidateMatch, bool) {
	pool := make([]titlematch.Candidate, 0, len(candidates))
	index := make(map[string]catalogs.Candidate, len(candidates))
	for _, candidate := range candidates {
		key := candidate.Source + "/" + candidate.ID
		index[key] = candidate
		pool = append(pool, titlematch.Candidate{
			Source: candidate.Source,
			ID:     candidate.ID,
			Titles: candidate.Titles,
		})
	}

	match, ok := titlematch.Best(query, pool, r.threshold)
	if !ok {
		return candidateMatch{}, false
	}
	source := index[match.Candidate.Source+"/"+match.Candidate.ID]
	return candidateMatch{
		Match:    match,
		Synopsis: source.Synopsis,
		CoverURL: source.CoverURL,
	}, true
}

func displayTitle(match candidateMatch) string {
	if len(match.Candidate.Titles) > 0 {
		return match.Candidate.Titles[0]
	}
	return match.Title
}
