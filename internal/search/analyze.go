package search

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"
)

// ErrNoData reports that there are no results to analyze.
var ErrNoData = errors.New("no results to analyze")

// Analysis summarizes a result list.
type Analysis struct {
	TotalResults     int          `json:"total_results"`
	TopDomains       []CountedKey `json:"top_domains"`
	TopKeywords      []CountedKey `json:"top_keywords"`
	AvgTitleLength   float64      `json:"avg_title_length"`
	AvgSnippetLength float64      `json:"avg_snippet_length"`
	Summary          string       `json:"summary"`
}

// CountedKey is one ranked (key, occurrences) pair.
type CountedKey struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

var wordRE = regexp.MustCompile(`[a-zA-Z]{3,}`)

// Common English words excluded from keyword frequency counts.
var stopWords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "are": {}, "but": {}, "not": {},
	"you": {}, "all": {}, "can": {}, "her": {}, "was": {}, "one": {},
	"our": {}, "out": {}, "has": {}, "have": {}, "this": {}, "that": {},
	"with": {}, "from": {}, "they": {}, "will": {}, "what": {}, "when": {},
	"your": {}, "how": {}, "its": {}, "who": {}, "get": {}, "more": {},
	"about": {}, "which": {}, "their": {}, "than": {}, "been": {},
	"were": {}, "into": {}, "also": {}, "other": {}, "some": {},
}

// Analyze computes aggregate statistics over a result list. It returns
// ErrNoData for an empty list.
func Analyze(query string, results []Result) (Analysis, error) {
	if len(results) == 0 {
		return Analysis{}, ErrNoData
	}

	domains := map[string]int{}
	keywords := map[string]int{}
	var titleRunes, snippetRunes int

	for _, r := range results {
		if host := hostOf(r.URL); host != "" {
			domains[host]++
		}
		for _, word := range wordRE.FindAllString(strings.ToLower(r.Title+" "+r.Snippet), -1) {
			if _, skip := stopWords[word]; skip {
				continue
			}
			keywords[word]++
		}
		titleRunes += len([]rune(r.Title))
		snippetRunes += len([]rune(r.Snippet))
	}

	n := float64(len(results))
	a := Analysis{
		TotalResults:     len(results),
		TopDomains:       topCounted(domains, 5),
		TopKeywords:      topCounted(keywords, 10),
		AvgTitleLength:   float64(titleRunes) / n,
		AvgSnippetLength: float64(snippetRunes) / n,
	}
	a.Summary = summarize(query, a)
	return a, nil
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}

// topCounted ranks counts descending, breaking ties by key so output is
// deterministic.
func topCounted(counts map[string]int, limit int) []CountedKey {
	ranked := make([]CountedKey, 0, len(counts))
	for k, c := range counts {
		ranked = append(ranked, CountedKey{Key: k, Count: c})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Count != ranked[j].Count {
			return ranked[i].Count > ranked[j].Count
		}
		return ranked[i].Key < ranked[j].Key
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

func summarize(query string, a Analysis) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d results for %q", a.TotalResults, query)
	if len(a.TopDomains) > 0 {
		fmt.Fprintf(&b, ", led by %s (%d)", a.TopDomains[0].Key, a.TopDomains[0].Count)
	}
	if len(a.TopKeywords) > 0 {
		terms := make([]string, 0, 3)
		for i, kw := range a.TopKeywords {
			if i == 3 {
				break
			}
			terms = append(terms, kw.Key)
		}
		fmt.Fprintf(&b, "; frequent terms: %s", strings.Join(terms, ", "))
	}
	return b.String()
}
