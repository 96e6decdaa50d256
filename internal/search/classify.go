package search

import "strings"

// QueryClass determines which cache lifetime a query gets.
type QueryClass int

// Query classes, from fastest- to slowest-moving content.
const (
	ClassDefault QueryClass = iota
	ClassNews
	ClassDocs
)

// Default recency and reference terms, multi-locale. A query containing any
// news term is fast-moving regardless of docs terms; the news check runs
// first.
var (
	DefaultNewsTerms = []string{"新聞", "最新", "今日", "news", "latest"}
	DefaultDocsTerms = []string{"文檔", "教程", "指南", "docs", "tutorial", "guide"}
)

// ClassifyQuery classes a query by its terms, case-insensitively. Empty term
// lists fall back to the defaults.
func ClassifyQuery(query string, newsTerms, docsTerms []string) QueryClass {
	if len(newsTerms) == 0 {
		newsTerms = DefaultNewsTerms
	}
	if len(docsTerms) == 0 {
		docsTerms = DefaultDocsTerms
	}
	lowered := strings.ToLower(query)
	if containsAny(lowered, newsTerms) {
		return ClassNews
	}
	if containsAny(lowered, docsTerms) {
		return ClassDocs
	}
	return ClassDefault
}

func containsAny(lowered string, terms []string) bool {
	for _, term := range terms {
		if strings.Contains(lowered, strings.ToLower(term)) {
			return true
		}
	}
	return false
}
