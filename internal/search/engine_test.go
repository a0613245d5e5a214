package search

import (
	"testing"

	"memberdir/syncservice/internal/domain"
)

func profileWithKeywords(id, name string, keywords ...string) domain.Profile {
	return domain.Profile{ID: id, Name: name, Keywords: keywords}
}

func TestNormalizeQuery(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want []string
	}{
		{"empty", "", nil},
		{"whitespace only", "   \t ", nil},
		{"lowercases", "Fat LOSS", []string{"fat", "loss"}},
		{"collapses spacing", "  fat   loss  ", []string{"fat", "loss"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := NormalizeQuery(tc.raw)
			if len(got) != len(tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Fatalf("expected %v, got %v", tc.want, got)
				}
			}
		})
	}
}

func TestMatchesConjunctive(t *testing.T) {
	profile := profileWithKeywords("1", "Guildford Fitness",
		"fat loss", "strength", "guildford", "nutrition")

	cases := []struct {
		name  string
		query string
		want  bool
	}{
		{"single word substring", "loss", true},
		{"words across different keywords", "fat loss guildford", true},
		{"case insensitive", "GUILDFORD", true},
		{"one word misses", "fat loss london", false},
		{"partial word matches substring", "guild", true},
		{"unrelated", "yoga", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Matches(profile, NormalizeQuery(tc.query))
			if got != tc.want {
				t.Fatalf("Matches(%q) = %v, want %v", tc.query, got, tc.want)
			}
		})
	}
}

func TestMatchesNoKeywords(t *testing.T) {
	profile := domain.Profile{ID: "1", Name: "Empty"}
	if Matches(profile, []string{"anything"}) {
		t.Fatal("a profile without keywords must never match")
	}
	if Matches(profile, nil) {
		t.Fatal("an empty word set must never match")
	}
}

func TestFilterEmptyQueryMatchesNothing(t *testing.T) {
	profiles := []domain.Profile{
		profileWithKeywords("1", "A", "fitness"),
		profileWithKeywords("2", "B", "yoga"),
	}

	for _, query := range []string{"", "   "} {
		got := Filter(query, profiles)
		if got == nil {
			t.Fatalf("Filter(%q) must return an empty slice, not nil", query)
		}
		if len(got) != 0 {
			t.Fatalf("Filter(%q) = %d results, want 0", query, len(got))
		}
	}
}

func TestFilterKeepsInputOrder(t *testing.T) {
	profiles := []domain.Profile{
		profileWithKeywords("1", "First", "yoga"),
		profileWithKeywords("2", "Second", "fitness"),
		profileWithKeywords("3", "Third", "yoga", "pilates"),
	}

	got := Filter("yoga", profiles)
	if len(got) != 2 || got[0].ID != "1" || got[1].ID != "3" {
		t.Fatalf("unexpected filter result %+v", got)
	}
}

func TestRankPrefersExactKeywordHit(t *testing.T) {
	profiles := []domain.Profile{
		profileWithKeywords("sub", "Substring Hit", "bodyweight yoga classes"),
		profileWithKeywords("exact", "Exact Hit", "yoga"),
	}

	got := Rank("yoga", profiles)
	if len(got) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(got))
	}
	if got[0].ID != "exact" {
		t.Fatalf("exact keyword hit should rank first, got %s", got[0].ID)
	}
}

func TestRankNeverDropsMatches(t *testing.T) {
	profiles := []domain.Profile{
		profileWithKeywords("1", "A", "fitness"),
		profileWithKeywords("2", "B", "fitness coach"),
		profileWithKeywords("3", "C", "fitness", "nutrition"),
	}

	filtered := Filter("fitness", profiles)
	ranked := Rank("fitness", profiles)
	if len(filtered) != len(ranked) {
		t.Fatalf("ranking dropped matches: filter %d, rank %d", len(filtered), len(ranked))
	}
}

func TestScoreUsesRatingAndVolume(t *testing.T) {
	words := NormalizeQuery("fitness")
	base := profileWithKeywords("1", "A", "fitness")
	rated := base
	rated.Rating = 4.8
	rated.ReviewCount = 40
	rated.ClickCount = 200

	if Score(rated, words) <= Score(base, words) {
		t.Fatal("a better rated, busier profile must score higher on equal keyword hits")
	}
}

func TestFilterIdempotent(t *testing.T) {
	profiles := []domain.Profile{
		profileWithKeywords("1", "A", "fat loss"),
		profileWithKeywords("2", "B", "strength"),
	}

	once := Filter("fat", profiles)
	twice := Filter("fat", once)
	if len(once) != len(twice) {
		t.Fatalf("filtering its own output changed the result: %d vs %d", len(once), len(twice))
	}
	for i := range once {
		if once[i].ID != twice[i].ID {
			t.Fatal("filtering its own output reordered the result")
		}
	}
}
