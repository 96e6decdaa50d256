package app

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"searchfetch/internal/config"
	"searchfetch/internal/search"
)

const searchHTML = `<html><body>
<div class="result__body">
  <a class="result__a" href="#">Go Programming Language</a>
  <span class="result__url">go.dev</span>
  <a class="result__snippet">Build systems with Go.</a>
</div>
<div class="result__body">
  <a class="result__a" href="#">A Tour of Go</a>
  <span class="result__url">go.dev/tour</span>
  <a class="result__snippet">Interactive introduction.</a>
</div>
</body></html>`

const emptyHTML = `<html><body></body></html>`

// manyResultsHTML builds a backend page with n result records.
func manyResultsHTML(n int) string {
	var b strings.Builder
	b.WriteString("<html><body>")
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, `<div class="result__body">
  <a class="result__a" href="#">Result %d</a>
  <span class="result__url">example.com/p%d</span>
  <a class="result__snippet">Snippet %d.</a>
</div>`, i, i, i)
	}
	b.WriteString("</body></html>")
	return b.String()
}

const contentHTML = `<html><body><main><p>Page body text.</p></main></body></html>`

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

// routeTransport serves canned pages keyed by URL substring.
type routeTransport struct {
	mu      sync.Mutex
	calls   []string
	handler func(rawURL string, params url.Values) (search.Page, error)
}

func (rt *routeTransport) Get(_ context.Context, rawURL string, params url.Values, _ time.Duration) (search.Page, error) {
	rt.mu.Lock()
	rt.calls = append(rt.calls, rawURL)
	rt.mu.Unlock()
	return rt.handler(rawURL, params)
}

func (rt *routeTransport) callCount() int {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return len(rt.calls)
}

func testConfig() config.Config {
	return config.Config{
		Server: config.ServerConfig{Port: 8080},
		Search: config.SearchConfig{
			BaseURL:        "https://search.example.com/html/",
			Region:         "tw",
			SafeSearch:     true,
			MaxResults:     10,
			SnippetLength:  150,
			TimeoutSeconds: 30,
		},
		Fetch: config.FetchConfig{
			ContentLimit:   5000,
			TimeoutSeconds: 15,
		},
		Cache: config.CacheConfig{
			Capacity:          100,
			DefaultTTLSeconds: 3600,
			NewsTTLSeconds:    900,
			DocsTTLSeconds:    86400,
		},
		Limits: config.LimitsConfig{Concurrency: 5},
	}
}

func newTestApp(transport search.Transport) *App {
	clk := fixedClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	return New(testConfig(), transport, clk, nil)
}

func searchingTransport(body string) *routeTransport {
	return &routeTransport{handler: func(rawURL string, _ url.Values) (search.Page, error) {
		if strings.HasPrefix(rawURL, "https://search.example.com/") {
			return search.Page{StatusCode: 200, Body: []byte(body)}, nil
		}
		return search.Page{StatusCode: 200, Body: []byte(contentHTML)}, nil
	}}
}

func TestApp_SearchEmptyQuery(t *testing.T) {
	t.Parallel()
	transport := searchingTransport(searchHTML)
	a := newTestApp(transport)

	_, err := a.Search(context.Background(), SearchRequest{Query: "   "})
	require.Error(t, err)
	require.Equal(t, search.ErrInvalidInput, search.AsError(err).Kind)
	require.Zero(t, transport.callCount(), "validation failures never reach the network")
}

func TestApp_SearchDefaults(t *testing.T) {
	t.Parallel()
	var captured url.Values
	transport := &routeTransport{handler: func(_ string, params url.Values) (search.Page, error) {
		captured = params
		return search.Page{StatusCode: 200, Body: []byte(searchHTML)}, nil
	}}
	a := newTestApp(transport)

	resp, err := a.Search(context.Background(), SearchRequest{Query: "golang"})
	require.NoError(t, err)
	require.Equal(t, 2, resp.Total)
	require.Equal(t, "tw-tzh", captured.Get("kl"), "preference region resolves to backend code")
	require.Equal(t, "1", captured.Get("kp"))
}

func TestApp_SearchRegionOverride(t *testing.T) {
	t.Parallel()
	var captured url.Values
	transport := &routeTransport{handler: func(_ string, params url.Values) (search.Page, error) {
		captured = params
		return search.Page{StatusCode: 200, Body: []byte(searchHTML)}, nil
	}}
	a := newTestApp(transport)

	_, err := a.Search(context.Background(), SearchRequest{Query: "golang", Region: "US"})
	require.NoError(t, err)
	require.Equal(t, "us-en", captured.Get("kl"))

	// Unknown regions fall back to the preference default.
	_, err = a.Search(context.Background(), SearchRequest{Query: "golang two", Region: "atlantis"})
	require.NoError(t, err)
	require.Equal(t, "tw-tzh", captured.Get("kl"))
}

func TestApp_SearchLimitCappedByPreferences(t *testing.T) {
	t.Parallel()
	transport := searchingTransport(searchHTML)
	a := newTestApp(transport)

	three := 3
	_, err := a.SetPreferences(PreferencesUpdate{MaxResults: &three})
	require.NoError(t, err)

	resp, err := a.Search(context.Background(), SearchRequest{Query: "golang", Limit: 9})
	require.NoError(t, err)
	require.LessOrEqual(t, resp.Total, 3)
}

func TestApp_SearchAndFetch(t *testing.T) {
	t.Parallel()
	transport := searchingTransport(searchHTML)
	a := newTestApp(transport)

	resp, err := a.SearchAndFetch(context.Background(), SearchAndFetchRequest{Query: "golang"})
	require.NoError(t, err)
	require.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Results, 2)
	for _, r := range resp.Results {
		require.Equal(t, "success", r.Status)
		require.Contains(t, r.Content, "Page body text.")
		require.NotEmpty(t, r.Title)
	}
}

func TestApp_SearchAndFetchLimitBound(t *testing.T) {
	t.Parallel()
	transport := searchingTransport(manyResultsHTML(12))
	a := newTestApp(transport)

	// Requested limits up to 10 are honored as-is.
	resp, err := a.SearchAndFetch(context.Background(), SearchAndFetchRequest{Query: "golang", Limit: 8})
	require.NoError(t, err)
	require.Len(t, resp.Results, 8)

	// Beyond 10 the limit is capped, not rejected.
	resp, err = a.SearchAndFetch(context.Background(), SearchAndFetchRequest{Query: "golang", Limit: 50})
	require.NoError(t, err)
	require.Len(t, resp.Results, 10)
}

func TestApp_SearchAndFetchPartialFailure(t *testing.T) {
	t.Parallel()
	transport := &routeTransport{handler: func(rawURL string, _ url.Values) (search.Page, error) {
		switch {
		case strings.HasPrefix(rawURL, "https://search.example.com/"):
			return search.Page{StatusCode: 200, Body: []byte(searchHTML)}, nil
		case strings.Contains(rawURL, "/tour"):
			return search.Page{}, &search.Error{Kind: search.ErrHTTP, Code: 404, Message: "HTTP 404"}
		default:
			return search.Page{StatusCode: 200, Body: []byte(contentHTML)}, nil
		}
	}}
	a := newTestApp(transport)

	resp, err := a.SearchAndFetch(context.Background(), SearchAndFetchRequest{Query: "golang"})
	require.NoError(t, err, "one failed page never fails the batch")
	require.Len(t, resp.Results, 2)

	byURL := map[string]EnrichedResult{}
	for _, r := range resp.Results {
		byURL[r.URL] = r
	}
	ok := byURL["https://go.dev"]
	require.Equal(t, "success", ok.Status)

	failed := byURL["https://go.dev/tour"]
	require.Equal(t, "error", failed.Status)
	require.Equal(t, "http", failed.ErrorType)
	require.Equal(t, 404, failed.Code)
	require.NotEmpty(t, failed.Message)
	require.Equal(t, "A Tour of Go", failed.Title, "search record survives the failed fetch")
}

func TestApp_SearchAndFetchNoResults(t *testing.T) {
	t.Parallel()
	transport := searchingTransport(emptyHTML)
	a := newTestApp(transport)

	resp, err := a.SearchAndFetch(context.Background(), SearchAndFetchRequest{Query: "qzxv impossible"})
	require.NoError(t, err)
	require.Equal(t, "no_results", resp.Status)
	require.Empty(t, resp.Results)
	require.Equal(t, []string{
		"qzxv impossible tutorial",
		"qzxv impossible example",
		"how to use qzxv impossible",
	}, resp.AlternativeQueries)
	require.Equal(t, 1, transport.callCount(), "nothing to enrich")
}

func TestApp_AdvancedSearch(t *testing.T) {
	t.Parallel()
	transport := searchingTransport(searchHTML)
	a := newTestApp(transport)

	resp, err := a.AdvancedSearch(context.Background(), AdvancedSearchRequest{
		Query:   "golang",
		Filters: search.Filters{Keywords: []string{"tour"}},
		SortBy:  "title",
	})
	require.NoError(t, err)
	require.Equal(t, 2, resp.TotalBeforeFilter)
	require.Equal(t, 1, resp.Total)
	require.Equal(t, "A Tour of Go", resp.Results[0].Title)
	require.Equal(t, search.SortTitle, resp.SortedBy)
}

func TestApp_AdvancedSearchLimitBound(t *testing.T) {
	t.Parallel()
	transport := searchingTransport(manyResultsHTML(12))
	a := newTestApp(transport)

	resp, err := a.AdvancedSearch(context.Background(), AdvancedSearchRequest{Query: "golang", Limit: 50})
	require.NoError(t, err)
	require.Equal(t, 10, resp.TotalBeforeFilter)
}

func TestApp_AdvancedSearchUnknownSortKey(t *testing.T) {
	t.Parallel()
	transport := searchingTransport(searchHTML)
	a := newTestApp(transport)

	resp, err := a.AdvancedSearch(context.Background(), AdvancedSearchRequest{Query: "golang", SortBy: "bogus"})
	require.NoError(t, err)
	require.Equal(t, search.SortRelevance, resp.SortedBy)
}

func TestApp_SummarizeNoResults(t *testing.T) {
	t.Parallel()
	transport := searchingTransport(emptyHTML)
	a := newTestApp(transport)

	_, err := a.Summarize(context.Background(), "qzxv impossible", 5, "")
	require.Error(t, err)
	e := search.AsError(err)
	require.Equal(t, search.ErrGeneral, e.Kind)
	require.Contains(t, e.Message, "no search results")
}

func TestApp_Summarize(t *testing.T) {
	t.Parallel()
	transport := searchingTransport(searchHTML)
	a := newTestApp(transport)

	analysis, err := a.Summarize(context.Background(), "golang", 5, "")
	require.NoError(t, err)
	require.Equal(t, 2, analysis.TotalResults)
	require.Equal(t, "go.dev", analysis.TopDomains[0].Key)
}

func TestApp_CacheStatsAndClear(t *testing.T) {
	t.Parallel()
	transport := searchingTransport(searchHTML)
	a := newTestApp(transport)

	_, err := a.Search(context.Background(), SearchRequest{Query: "golang"})
	require.NoError(t, err)
	_, err = a.Search(context.Background(), SearchRequest{Query: "golang"})
	require.NoError(t, err)

	stats := a.CacheStats()
	require.Equal(t, uint64(1), stats.Hits)
	require.Equal(t, uint64(1), stats.Misses)
	require.Equal(t, "50.00%", stats.HitRate)
	require.Equal(t, 1, stats.SearchEntries)

	report := a.ClearCache()
	require.Equal(t, 1, report.SearchEntriesCleared)
	require.Equal(t, "2025-06-01 12:00:00", report.ClearedAt)

	stats = a.CacheStats()
	require.Zero(t, stats.TotalLookups)
	require.Zero(t, stats.SearchEntries)
}

func TestApp_SetPreferencesValidation(t *testing.T) {
	t.Parallel()
	a := newTestApp(searchingTransport(searchHTML))

	bad := "atlantis"
	_, err := a.SetPreferences(PreferencesUpdate{Region: &bad})
	require.Error(t, err)
	require.Equal(t, search.ErrInvalidInput, search.AsError(err).Kind)

	tooMany := 51
	_, err = a.SetPreferences(PreferencesUpdate{MaxResults: &tooMany})
	require.Error(t, err)

	negative := -1
	_, err = a.SetPreferences(PreferencesUpdate{CacheTTLSeconds: &negative})
	require.Error(t, err)

	// Valid updates apply and normalize.
	region := " US "
	yes := false
	prefs, err := a.SetPreferences(PreferencesUpdate{Region: &region, SafeSearch: &yes})
	require.NoError(t, err)
	require.Equal(t, "us", prefs.Region)
	require.False(t, prefs.SafeSearch)
}

func TestApp_SetPreferencesTTLChangeSwapsCaches(t *testing.T) {
	t.Parallel()
	transport := searchingTransport(searchHTML)
	a := newTestApp(transport)

	_, err := a.Search(context.Background(), SearchRequest{Query: "golang"})
	require.NoError(t, err)
	require.Equal(t, 1, a.CacheStats().SearchEntries)

	ttl := 7200
	_, err = a.SetPreferences(PreferencesUpdate{CacheTTLSeconds: &ttl})
	require.NoError(t, err)

	stats := a.CacheStats()
	require.Zero(t, stats.SearchEntries, "TTL change replaces the cache instances")
	require.Zero(t, stats.TotalLookups, "counters reset with the swap")
	require.Equal(t, 7200, stats.CacheTTLSeconds)

	// The old entry is gone, so the same query hits the backend again.
	before := transport.callCount()
	_, err = a.Search(context.Background(), SearchRequest{Query: "golang"})
	require.NoError(t, err)
	require.Equal(t, before+1, transport.callCount())
}

func TestApp_SystemInfo(t *testing.T) {
	t.Parallel()
	a := newTestApp(searchingTransport(searchHTML))

	info := a.SystemInfo()
	require.NotEmpty(t, info.GoVersion)
	require.Greater(t, info.Goroutines, 0)
	require.Equal(t, 5, info.GatePermits)
	require.Equal(t, "2025-06-01 12:00:00", info.StartedAt)
}
