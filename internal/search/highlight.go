package search

import (
	"regexp"
	"strings"
	"sync"

	"memberdir/syncservice/internal/domain"
)

const defaultSnippetBudget = 120

// User input is always quoted before compilation, so the pattern cache is
// bounded by distinct queries and never sees raw metacharacters.
var (
	patternMu    sync.Mutex
	patternCache = make(map[string]*regexp.Regexp)
)

func highlightPattern(trimmedQuery string) (*regexp.Regexp, error) {
	patternMu.Lock()
	defer patternMu.Unlock()
	if re, ok := patternCache[trimmedQuery]; ok {
		return re, nil
	}
	re, err := regexp.Compile("(?i)" + regexp.QuoteMeta(trimmedQuery))
	if err != nil {
		return nil, err
	}
	if len(patternCache) > 512 {
		patternCache = make(map[string]*regexp.Regexp)
	}
	patternCache[trimmedQuery] = re
	return re, nil
}

// Highlight splits text into alternating unmatched/matched runs against the
// whole trimmed query, case-insensitive and case-preserving. Literal
// punctuation in the query is escaped, so user input never changes match
// semantics. Empty unmatched runs are dropped; an empty query yields the
// text as a single unmatched run.
func Highlight(text, rawQuery string) []domain.HighlightRun {
	trimmed := strings.TrimSpace(rawQuery)
	if text == "" {
		return []domain.HighlightRun{}
	}
	if trimmed == "" {
		return []domain.HighlightRun{{Text: text, Matched: false}}
	}

	re, err := highlightPattern(trimmed)
	if err != nil {
		return []domain.HighlightRun{{Text: text, Matched: false}}
	}

	runs := make([]domain.HighlightRun, 0, 4)
	cursor := 0
	for _, loc := range re.FindAllStringIndex(text, -1) {
		if loc[0] > cursor {
			runs = append(runs, domain.HighlightRun{Text: text[cursor:loc[0]], Matched: false})
		}
		if loc[1] > loc[0] {
			runs = append(runs, domain.HighlightRun{Text: text[loc[0]:loc[1]], Matched: true})
		}
		cursor = loc[1]
	}
	if cursor < len(text) {
		runs = append(runs, domain.HighlightRun{Text: text[cursor:], Matched: false})
	}
	return runs
}

// Snippet truncates text to a fixed character budget for list display,
// appending an ellipsis. Presentation only; matching always runs on the full
// fields.
func Snippet(text string, budget int) string {
	if budget <= 0 {
		budget = defaultSnippetBudget
	}
	trimmed := strings.TrimSpace(text)
	if len(trimmed) <= budget {
		return trimmed
	}
	cut := trimmed[:budget]
	if idx := strings.LastIndexByte(cut, ' '); idx > budget/2 {
		cut = cut[:idx]
	}
	return strings.TrimRight(cut, " ") + "…"
}
