package search

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func sampleResults() []Result {
	return []Result{
		{Title: "Go Tutorial", URL: "https://go.dev/tour", Snippet: "Learn Go step by step. 2024-03-01"},
		{Title: "Python Guide", URL: "https://docs.python.org/guide", Snippet: "Official guide. 2023-01-15"},
		{Title: "Advanced Go Patterns", URL: "https://blog.example.com/go", Snippet: "Concurrency patterns in Go. March 5, 2024"},
		{Title: "Rust Book", URL: "https://doc.rust-lang.org/book", Snippet: "The Rust programming language"},
	}
}

func TestFilterResults_Domain(t *testing.T) {
	t.Parallel()
	got := FilterResults(sampleResults(), Filters{Domain: "go.dev"})
	require.Len(t, got, 1)
	require.Equal(t, "Go Tutorial", got[0].Title)
}

func TestFilterResults_KeywordsConjunctive(t *testing.T) {
	t.Parallel()
	got := FilterResults(sampleResults(), Filters{Keywords: []string{"go", "patterns"}})
	require.Len(t, got, 1)
	require.Equal(t, "Advanced Go Patterns", got[0].Title)
}

func TestFilterResults_ExcludeKeywords(t *testing.T) {
	t.Parallel()
	got := FilterResults(sampleResults(), Filters{ExcludeKeywords: []string{"rust", "python"}})
	require.Len(t, got, 2)
	for _, r := range got {
		require.NotContains(t, r.Title, "Rust")
		require.NotContains(t, r.Title, "Python")
	}
}

func TestFilterResults_AllCriteriaMustHold(t *testing.T) {
	t.Parallel()
	got := FilterResults(sampleResults(), Filters{
		Domain:          "example.com",
		Keywords:        []string{"go"},
		ExcludeKeywords: []string{"concurrency"},
	})
	require.Empty(t, got)
}

func TestFilterResults_EmptyFiltersKeepEverything(t *testing.T) {
	t.Parallel()
	in := sampleResults()
	got := FilterResults(in, Filters{})
	require.Equal(t, in, got)
}

func TestSortResults_Title(t *testing.T) {
	t.Parallel()
	results := sampleResults()
	SortResults(results, SortTitle, false)
	require.Equal(t, "Advanced Go Patterns", results[0].Title)
	require.Equal(t, "Rust Book", results[3].Title)

	SortResults(results, SortTitle, true)
	require.Equal(t, "Rust Book", results[0].Title)
}

func TestSortResults_Date(t *testing.T) {
	t.Parallel()
	results := sampleResults()
	SortResults(results, SortDate, false)

	// The dateless snippet sorts as the zero time, so it comes first.
	require.Equal(t, "Rust Book", results[0].Title)
	require.Equal(t, "Python Guide", results[1].Title)
	require.Equal(t, "Go Tutorial", results[2].Title)
	require.Equal(t, "Advanced Go Patterns", results[3].Title)
}

func TestSortResults_RelevanceKeepsOrder(t *testing.T) {
	t.Parallel()
	results := sampleResults()
	want := sampleResults()
	SortResults(results, SortRelevance, false)
	require.Equal(t, want, results)
}

func TestParseSortKey(t *testing.T) {
	t.Parallel()
	require.Equal(t, SortTitle, ParseSortKey("title"))
	require.Equal(t, SortDate, ParseSortKey("date"))
	require.Equal(t, SortRelevance, ParseSortKey("relevance"))
	require.Equal(t, SortRelevance, ParseSortKey("bogus"))
	require.Equal(t, SortRelevance, ParseSortKey(""))
}

func TestSnippetDate(t *testing.T) {
	t.Parallel()
	cases := map[string]string{
		"released 2024-03-01 stable": "2024-03-01",
		"updated 3/5/2024":           "2024-03-05",
		"posted March 5, 2024":       "2024-03-05",
	}
	for snippet, want := range cases {
		got := snippetDate(snippet)
		require.Equal(t, want, got.Format("2006-01-02"), "snippet %q", snippet)
	}
	require.True(t, snippetDate("no date here").IsZero())
}
