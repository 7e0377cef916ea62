package titlematch

import "testing"

func TestNormalize(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Attack on Titan", "attack on titan"},
		{"The Promised Neverland", "promised neverland"},
		{"[SubsPlease] Frieren - Beyond Journey's End (1080p)", "frieren beyond journey s end"},
		{"Mob.Psycho.100", "mob psycho 100"},
		{"  ", ""},
	}
	for _, tc := range cases {
		if got := Normalize(tc.in); got != tc.want {
			t.Errorf("Normalize(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNormalizeFolderStripsMarkers(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Attack on Titan S4", "attack on titan"},
		{"attack_on_titan_s4_1080p", "attack on titan"},
		{"Vinland Saga Season 2 [BD 1080p HEVC]", "vinland saga"},
		{"Made in Abyss Part 2", "made in abyss"},
		{"86", "86"},
	}
	for _, tc := range cases {
		if got := NormalizeFolder(tc.in); got != tc.want {
			t.Errorf("NormalizeFolder(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestScoreExactNormalizedForms(t *testing.T) {
	if got := Score("Attack on Titan", "attack.on.titan"); got != 1.0 {
		t.Fatalf("expected 1.0 for equal normalized forms, got %f", got)
	}
}

func TestScoreHandlesWordOverlap(t *testing.T) {
	got := Score("Attack on Titan", "Attack on Titan Final Season")
	if got < 0.5 || got >= 1.0 {
		t.Fatalf("expected partial overlap score, got %f", got)
	}
}

func TestScoreUnrelatedTitles(t *testing.T) {
	if got := Score("Attack on Titan", "One Piece"); got > 0.6 {
		t.Fatalf("unrelated titles should score low, got %f", got)
	}
}

func TestBestPrefersSynonymOverPartialMatch(t *testing.T) {
	candidates := []Candidate{
		{
			Source: "anilist",
			ID:     "110277",
			Titles: []string{"Shingeki no Kyojin: The Final Season", "Attack on Titan Final Season", "Attack on Titan S4"},
		},
		{
			Source: "anilist",
			ID:     "16498",
			Titles: []string{"Shingeki no Kyojin", "Attack on Titan"},
		},
	}

	match, ok := Best("Attack on Titan S4", candidates, 0.6)
	if !ok {
		t.Fatal("expected a match")
	}
	if match.Candidate.ID != "110277" {
		t.Fatalf("expected final-season entry, got %s via %q (%.2f)", match.Candidate.ID, match.Title, match.Score)
	}
	if match.Score != 1.0 {
		t.Fatalf("synonym should match exactly, got %f", match.Score)
	}
}

func TestBestBelowThreshold(t *testing.T) {
	candidates := []Candidate{
		{Source: "anilist", ID: "1", Titles: []string{"Cowboy Bebop"}},
	}
	if _, ok := Best("Attack on Titan", candidates, 0.6); ok {
		t.Fatal("expected no match below threshold")
	}
}

func TestBestTieBreaksOnOrder(t *testing.T) {
	candidates := []Candidate{
		{Source: "anilist", ID: "first", Titles: []string{"Steins Gate"}},
		{Source: "tvdb", ID: "second", Titles: []string{"Steins Gate"}},
	}
	match, ok := Best("Steins;Gate", candidates, 0.6)
	if !ok {
		t.Fatal("expected a match")
	}
	if match.Candidate.ID != "first" {
		t.Fatalf("tie should resolve to the first candidate, got %s", match.Candidate.ID)
	}
}

func TestSearchTerm(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"attack_on_titan_s4_1080p", "Attack On Titan"},
		{"[Judas] Frieren (1080p)", "Frieren"},
		{"vinland-saga-season-2", "Vinland Saga"},
	}
	for _, tc := range cases {
		if got := SearchTerm(tc.in); got != tc.want {
			t.Errorf("SearchTerm(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
