package search

import (
	"regexp"
	"sort"
	"strings"
	"time"
)

// Filters narrows a result list. All populated criteria must hold for a
// result to pass.
type Filters struct {
	Domain          string   `json:"domain,omitempty"`
	Keywords        []string `json:"keywords,omitempty"`
	ExcludeKeywords []string `json:"exclude_keywords,omitempty"`
}

// SortKey orders a filtered result list.
type SortKey string

// Supported sort keys. Relevance preserves backend rank order.
const (
	SortRelevance SortKey = "relevance"
	SortTitle     SortKey = "title"
	SortDate      SortKey = "date"
)

// ParseSortKey validates s, falling back to relevance for unknown values.
func ParseSortKey(s string) SortKey {
	switch SortKey(s) {
	case SortTitle, SortDate:
		return SortKey(s)
	default:
		return SortRelevance
	}
}

// FilterResults applies all filters conjunctively and returns the survivors
// in their original order. The input slice is not modified.
func FilterResults(results []Result, f Filters) []Result {
	filtered := make([]Result, 0, len(results))
	for _, r := range results {
		if !matchesDomain(r, f.Domain) {
			continue
		}
		if !matchesKeywords(r, f.Keywords) {
			continue
		}
		if matchesAnyKeyword(r, f.ExcludeKeywords) {
			continue
		}
		filtered = append(filtered, r)
	}
	return filtered
}

func matchesDomain(r Result, domain string) bool {
	if domain == "" {
		return true
	}
	return strings.Contains(strings.ToLower(r.URL), strings.ToLower(domain))
}

func matchesKeywords(r Result, keywords []string) bool {
	if len(keywords) == 0 {
		return true
	}
	haystack := strings.ToLower(r.Title + " " + r.Snippet)
	for _, kw := range keywords {
		if !strings.Contains(haystack, strings.ToLower(kw)) {
			return false
		}
	}
	return true
}

func matchesAnyKeyword(r Result, keywords []string) bool {
	haystack := strings.ToLower(r.Title + " " + r.Snippet)
	for _, kw := range keywords {
		if kw != "" && strings.Contains(haystack, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// SortResults orders results by key, in place, using a stable sort so that
// ties keep backend rank order. Relevance is a no-op unless reversed.
func SortResults(results []Result, key SortKey, reverse bool) {
	switch key {
	case SortTitle:
		sort.SliceStable(results, func(i, j int) bool {
			return strings.ToLower(results[i].Title) < strings.ToLower(results[j].Title)
		})
	case SortDate:
		sort.SliceStable(results, func(i, j int) bool {
			return snippetDate(results[i].Snippet).Before(snippetDate(results[j].Snippet))
		})
	}
	if reverse {
		for i, j := 0, len(results)-1; i < j; i, j = i+1, j-1 {
			results[i], results[j] = results[j], results[i]
		}
	}
}

// Date patterns tried in order against snippet text. Results whose snippets
// match nothing sort as the zero time.
var datePatterns = []struct {
	re     *regexp.Regexp
	layout string
}{
	{regexp.MustCompile(`\d{4}-\d{2}-\d{2}`), "2006-01-02"},
	{regexp.MustCompile(`\d{1,2}/\d{1,2}/\d{4}`), "1/2/2006"},
	{regexp.MustCompile(`[A-Z][a-z]+ \d{1,2}, \d{4}`), "January 2, 2006"},
}

func snippetDate(snippet string) time.Time {
	for _, p := range datePatterns {
		match := p.re.FindString(snippet)
		if match == "" {
			continue
		}
		if t, err := time.Parse(p.layout, match); err == nil {
			return t
		}
	}
	return time.Time{}
}
