// Package search filters, ranks and highlights directory profiles against a
// free-text query. Matching runs over the profile keyword set with
// conjunctive substring semantics: every query word must appear inside at
// least one keyword.
package search

import (
	"math"
	"sort"
	"strings"

	"golang.org/x/text/cases"

	"memberdir/syncservice/internal/domain"
)

var folder = cases.Fold()

// NormalizeQuery trims, case-folds and splits a raw query into search words.
// A nil result means the query was empty or whitespace-only.
func NormalizeQuery(raw string) []string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil
	}
	return strings.Fields(folder.String(trimmed))
}

// Matches reports whether every search word is a substring of at least one
// of the profile's keywords. A profile without keywords never matches a
// non-empty word set.
func Matches(profile domain.Profile, searchWords []string) bool {
	if len(searchWords) == 0 {
		return false
	}
	keywords := make([]string, 0, len(profile.Keywords))
	for _, keyword := range profile.Keywords {
		keyword = strings.TrimSpace(keyword)
		if keyword == "" {
			continue
		}
		keywords = append(keywords, folder.String(keyword))
	}
	if len(keywords) == 0 {
		return false
	}
	for _, word := range searchWords {
		found := false
		for _, keyword := range keywords {
			if strings.Contains(keyword, word) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Filter returns the profiles matching the query, in input order. An empty
// or whitespace-only query matches nothing; unfiltered browsing goes through
// the listing, not through search.
func Filter(query string, profiles []domain.Profile) []domain.Profile {
	searchWords := NormalizeQuery(query)
	if len(searchWords) == 0 {
		return []domain.Profile{}
	}
	matched := make([]domain.Profile, 0, len(profiles))
	for _, profile := range profiles {
		if Matches(profile, searchWords) {
			matched = append(matched, profile)
		}
	}
	return matched
}

// Rank filters and orders the matches by descending relevance. Ranking only
// reorders; every profile returned by Filter stays in the result.
func Rank(query string, profiles []domain.Profile) []domain.Profile {
	matched := Filter(query, profiles)
	if len(matched) < 2 {
		return matched
	}
	searchWords := NormalizeQuery(query)

	scores := make(map[string]float64, len(matched))
	for _, profile := range matched {
		scores[profile.ID] = Score(profile, searchWords)
	}
	sort.SliceStable(matched, func(i, j int) bool {
		left, right := matched[i], matched[j]
		if scores[left.ID] != scores[right.ID] {
			return scores[left.ID] > scores[right.ID]
		}
		return strings.Compare(folder.String(left.Name), folder.String(right.Name)) < 0
	})
	return matched
}

// Score computes a deterministic relevance value for an already-matched
// profile. Exact keyword hits beat prefix hits beat plain substring hits;
// rating, review volume and click volume break the remaining ties.
func Score(profile domain.Profile, searchWords []string) float64 {
	score := 0.0
	for _, word := range searchWords {
		best := 0.0
		for _, raw := range profile.Keywords {
			keyword := folder.String(strings.TrimSpace(raw))
			switch {
			case keyword == word:
				best = math.Max(best, 10)
			case strings.HasPrefix(keyword, word):
				best = math.Max(best, 6)
			case strings.Contains(keyword, word):
				best = math.Max(best, 3)
			}
		}
		score += best
	}
	score += profile.Rating * 2
	score += math.Log1p(math.Max(float64(profile.ReviewCount), 0))
	score += math.Log1p(math.Max(float64(profile.ClickCount), 0)) * 0.5
	return score
}
