package anilist

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestSearchTitles(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		var payload struct {
			Query     string            `json:"query"`
			Variables map[string]string `json:"variables"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if payload.Variables["search"] != "Frieren" {
			t.Errorf("unexpected search term %q", payload.Variables["search"])
		}
		_, _ = w.Write([]byte(`{
			"data": {"Page": {"media": [{
				"id": 154587,
				"title": {"romaji": "Sousou no Frieren", "english": "Frieren: Beyond Journey's End", "native": "葬送のフリーレン"},
				"synonyms": ["Frieren at the Funeral"],
				"description": "An elf mage <i>outlives</i> her party.<br>She journeys on.",
				"coverImage": {"large": "https://img.anili.st/large/154587.jpg", "extraLarge": "https://img.anili.st/xl/154587.jpg"}
			}]}}
		}`))
	}))
	defer server.Close()

	client, err := New(server.URL, 2*time.Second)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	candidates, err := client.SearchTitles(context.Background(), "Frieren")
	if err != nil {
		t.Fatalf("SearchTitles: %v", err)
	}
	if len(candidates) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(candidates))
	}

	got := candidates[0]
	if got.Source != SourceName || got.ID != "154587" {
		t.Fatalf("unexpected identity: %+v", got)
	}
	if len(got.Titles) != 4 || got.Titles[1] != "Frieren: Beyond Journey's End" {
		t.Fatalf("unexpected titles: %v", got.Titles)
	}
	if got.Synopsis != "An elf mage outlives her party.\nShe journeys on." {
		t.Fatalf("markup not stripped: %q", got.Synopsis)
	}
	if got.CoverURL != "https://img.anili.st/xl/154587.jpg" {
		t.Fatalf("expected extraLarge cover, got %q", got.CoverURL)
	}
}

func TestSearchTitlesEmptyResult(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"data": {"Page": {"media": []}}}`))
	}))
	defer server.Close()

	client, err := New(server.URL, 2*time.Second)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	candidates, err := client.SearchTitles(context.Background(), "does not exist")
	if err != nil {
		t.Fatalf("SearchTitles: %v", err)
	}
	if len(candidates) != 0 {
		t.Fatalf("expected no candidates, got %d", len(candidates))
	}
}

func TestSearchTitlesGraphQLError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"errors": [{"message": "rate limited"}]}`))
	}))
	defer server.Close()

	client, err := New(server.URL, 2*time.Second)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := client.SearchTitles(context.Background(), "anything"); err == nil {
		t.Fatal("expected error from GraphQL errors payload")
	}
}

func TestSearchTitlesServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client, err := New(server.URL, 2*time.Second)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := client.SearchTitles(context.Background(), "anything"); err == nil {
		t.Fatal("expected error for 502 response")
	}
}

func TestStripMarkup(t *testing.T) {
	in := "Line one.<br><br/><b>Bold</b> &amp; &quot;quoted&quot;  text."
	want := "Line one.\n\nBold & \"quoted\" text."
	if got := StripMarkup(in); got != want {
		t.Fatalf("StripMarkup = %q, want %q", got, want)
	}
}

func TestNewRequiresEndpoint(t *testing.T) {
	if _, err := New("  ", time.Second); err == nil {
		t.Fatal("expected error for empty endpoint")
	}
}
