package resolver

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"shadowplay/internal/catalogs"
	"shadowplay/internal/identity"
)

type memoryStore struct {
	records map[string]identity.Record
	saves   int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{records: make(map[string]identity.Record)}
}

func (m *memoryStore) Lookup(_ context.Context, folderPath string) (identity.Record, error) {
	rec, ok := m.records[folderPath]
	if !ok {
		return identity.Record{}, fmt.Errorf("%w: %s", identity.ErrNotFound, folderPath)
	}
	return rec, nil
}

// Save fails on an expired context, like a database/sql write would.
func (m *memoryStore) Save(ctx context.Context, rec identity.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.saves++
	m.records[rec.FolderPath] = rec
	return nil
}

type fakeCatalog struct {
	name    string
	results map[string][]catalogs.Candidate
	err     error
	queries []string
}

func (f *fakeCatalog) Name() string { return f.name }

func (f *fakeCatalog) SearchTitles(_ context.Context, term string) ([]catalogs.Candidate, error) {
	f.queries = append(f.queries, term)
	if f.err != nil {
		return nil, f.err
	}
	return f.results[term], nil
}

// hangingCatalog blocks every query until the caller's deadline expires.
type hangingCatalog struct {
	name    string
	queries int
}

func (h *hangingCatalog) Name() string { return h.name }

func (h *hangingCatalog) SearchTitles(ctx context.Context, _ string) ([]catalogs.Candidate, error) {
	h.queries++
	<-ctx.Done()
	return nil, ctx.Err()
}

type fakeCovers struct {
	calls int
	fail  bool
}

func (f *fakeCovers) Ensure(_ context.Context, source, id, _ string) (string, error) {
	f.calls++
	if f.fail {
		return "", errors.New("network down")
	}
	return fmt.Sprintf("%s_%s.jpg", source, id), nil
}

func frierenCandidates() []catalogs.Candidate {
	return []catalogs.Candidate{{
		Source:   "anilist",
		ID:       "154587",
		Titles:   []string{"Sousou no Frieren", "Frieren: Beyond Journey's End"},
		Synopsis: "An elf mage outlives her party.",
		CoverURL: "https://img.anili.st/xl/154587.jpg",
	}}
}

func TestResolvePersistsIdentityAndCover(t *testing.T) {
	store := newMemoryStore()
	catalog := &fakeCatalog{name: "anilist", results: map[string][]catalogs.Candidate{
		"Frieren": frierenCandidates(),
	}}
	covers := &fakeCovers{}

	r, err := New(store, catalog, 0.6, nil, WithCovers(covers))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	result, err := r.Resolve(context.Background(), "Frieren [1080p]", "/media/anime/Frieren [1080p]")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if result.FromCache {
		t.Fatal("first resolve must not report a cache hit")
	}

	rec := result.Record
	if !rec.Resolved || rec.Source != "anilist" || rec.SourceID != "154587" {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if rec.Title != "Sousou no Frieren" {
		t.Fatalf("unexpected display title %q", rec.Title)
	}
	if rec.CoverFile != "anilist_154587.jpg" {
		t.Fatalf("unexpected cover %q", rec.CoverFile)
	}
	if rec.SearchTerm != "Frieren" {
		t.Fatalf("unexpected search term %q", rec.SearchTerm)
	}
	if covers.calls != 1 {
		t.Fatalf("expected one cover fetch, got %d", covers.calls)
	}
	if _, ok := store.records[rec.FolderPath]; !ok {
		t.Fatal("record not persisted")
	}
}

func TestResolveCacheHitSkipsCatalogs(t *testing.T) {
	store := newMemoryStore()
	store.records["/media/anime/Frieren"] = identity.Record{
		FolderPath: "/media/anime/Frieren",
		Resolved:   true,
		Source:     "anilist",
		SourceID:   "154587",
		Title:      "Sousou no Frieren",
	}
	catalog := &fakeCatalog{name: "anilist"}

	r, err := New(store, catalog, 0.6, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	result, err := r.Resolve(context.Background(), "Frieren", "/media/anime/Frieren")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !result.FromCache {
		t.Fatal("expected cache hit")
	}
	if len(catalog.queries) != 0 {
		t.Fatalf("cache hit must not query catalogs, got %v", catalog.queries)
	}
}

func TestResolveUnreachableCatalogCachesUnresolved(t *testing.T) {
	store := newMemoryStore()
	catalog := &fakeCatalog{name: "anilist", err: errors.New("connection refused")}

	r, err := New(store, catalog, 0.6, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	result, err := r.Resolve(context.Background(), "Obscure Show", "/media/anime/Obscure Show")
	if err != nil {
		t.Fatalf("Resolve should cache the failure, got error: %v", err)
	}
	if result.Record.Resolved {
		t.Fatal("record should be unresolved")
	}

	saved, ok := store.records["/media/anime/Obscure Show"]
	if !ok || saved.Resolved {
		t.Fatalf("unresolved record not persisted: %+v", saved)
	}

	// The failure is terminal: a second resolve hits the cache.
	again, err := r.Resolve(context.Background(), "Obscure Show", "/media/anime/Obscure Show")
	if err != nil {
		t.Fatalf("Resolve again: %v", err)
	}
	if !again.FromCache {
		t.Fatal("unresolved record should be served from cache")
	}
	if got := len(catalog.queries); got != 2 {
		t.Fatalf("expected no further catalog queries, got %d", got)
	}
}

func TestResolveHangingCatalogCachesUnresolved(t *testing.T) {
	store := newMemoryStore()
	catalog := &hangingCatalog{name: "anilist"}

	r, err := New(store, catalog, 0.6, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	result, err := r.Resolve(ctx, "Obscure Show", "/media/anime/Obscure Show")
	if err != nil {
		t.Fatalf("Resolve should cache the timeout, got error: %v", err)
	}
	if result.Record.Resolved {
		t.Fatal("record should be unresolved")
	}

	// The write must land even though the catalogs exhausted the deadline.
	saved, ok := store.records["/media/anime/Obscure Show"]
	if !ok || saved.Resolved {
		t.Fatalf("unresolved record not persisted: %+v", saved)
	}

	queriesAfterFirst := catalog.queries
	again, err := r.Resolve(context.Background(), "Obscure Show", "/media/anime/Obscure Show")
	if err != nil {
		t.Fatalf("Resolve again: %v", err)
	}
	if !again.FromCache {
		t.Fatal("timed-out lookup should be terminal until invalidated")
	}
	if catalog.queries != queriesAfterFirst {
		t.Fatalf("cached folder must not be re-queried, got %d extra", catalog.queries-queriesAfterFirst)
	}
}

func TestCatalogTimeoutAppliesPerQuery(t *testing.T) {
	store := newMemoryStore()
	primary := &hangingCatalog{name: "anilist"}
	secondary := &fakeCatalog{name: "tvdb", results: map[string][]catalogs.Candidate{
		"Dark": {{Source: "tvdb", ID: "348545", Titles: []string{"Dark"}}},
	}}

	r, err := New(store, primary, 0.6, nil,
		WithSecondary(secondary),
		WithCatalogTimeout(20*time.Millisecond))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	// The hanging primary burns only its own per-query budget; the secondary
	// still gets a live context and resolves.
	result, err := r.Resolve(context.Background(), "Dark", "/media/tv/Dark")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !result.Record.Resolved || result.Record.Source != "tvdb" {
		t.Fatalf("expected tvdb identity despite hanging primary, got %+v", result.Record)
	}
}

func TestResolveNoMatchCachesUnresolved(t *testing.T) {
	store := newMemoryStore()
	catalog := &fakeCatalog{name: "anilist", results: map[string][]catalogs.Candidate{
		"Totally Different": {{Source: "anilist", ID: "1", Titles: []string{"Cowboy Bebop"}}},
	}}

	r, err := New(store, catalog, 0.6, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	result, err := r.Resolve(context.Background(), "Totally Different", "/media/anime/Totally Different")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if result.Record.Resolved {
		t.Fatal("no acceptable match should yield an unresolved record")
	}
}

func TestResolveFallsBackToSecondary(t *testing.T) {
	store := newMemoryStore()
	primary := &fakeCatalog{name: "anilist", results: map[string][]catalogs.Candidate{}}
	secondary := &fakeCatalog{name: "tvdb", results: map[string][]catalogs.Candidate{
		"Dark": {{Source: "tvdb", ID: "348545", Titles: []string{"Dark"}, CoverURL: ""}},
	}}

	r, err := New(store, primary, 0.6, nil, WithSecondary(secondary))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	result, err := r.Resolve(context.Background(), "Dark", "/media/tv/Dark")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !result.Record.Resolved || result.Record.Source != "tvdb" {
		t.Fatalf("expected tvdb identity, got %+v", result.Record)
	}
}

func TestResolveRetriesWithRawFolderName(t *testing.T) {
	store := newMemoryStore()
	// The derived term finds nothing, the raw folder name does.
	catalog := &fakeCatalog{name: "anilist", results: map[string][]catalogs.Candidate{
		"86 s1": {{Source: "anilist", ID: "116589", Titles: []string{"86 s1", "86 Eighty-Six"}}},
	}}

	r, err := New(store, catalog, 0.6, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	result, err := r.Resolve(context.Background(), "86 s1", "/media/anime/86 s1")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !result.Record.Resolved {
		t.Fatalf("raw-name fallback should resolve, got %+v", result.Record)
	}
	if len(catalog.queries) != 2 {
		t.Fatalf("expected derived term then raw name, got %v", catalog.queries)
	}
}

func TestNewValidation(t *testing.T) {
	store := newMemoryStore()
	catalog := &fakeCatalog{name: "anilist"}
	if _, err := New(nil, catalog, 0.6, nil); err == nil {
		t.Fatal("expected error for nil store")
	}
	if _, err := New(store, nil, 0.6, nil); err == nil {
		t.Fatal("expected error for nil catalog")
	}
	if _, err := New(store, catalog, 1.5, nil); err == nil {
		t.Fatal("expected error for out-of-range threshold")
	}
}
