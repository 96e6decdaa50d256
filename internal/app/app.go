// Package app wires the caches, admission gate, search client, and content
// fetcher into the operations the API exposes.
package app

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"searchfetch/internal/cache"
	"searchfetch/internal/config"
	"searchfetch/internal/gate"
	"searchfetch/internal/policy/ratelimit"
	"searchfetch/internal/search"
)

// Region aliases accepted from callers, mapped to backend region codes.
var regionCodes = map[string]string{
	"tw":     "tw-tzh",
	"hk":     "hk-tzh",
	"cn":     "cn-zh",
	"jp":     "jp-jp",
	"us":     "us-en",
	"uk":     "uk-en",
	"global": "wt-wt",
}

// maxSearchLimit bounds every operation's result count; only the defaults
// differ per operation.
const (
	defaultSearchLimit   = 5
	defaultEnrichLimit   = 3
	defaultAdvancedLimit = 10
	maxSearchLimit       = 10
)

// Preferences are the runtime-adjustable defaults applied to requests that
// do not override them.
type Preferences struct {
	Region          string `json:"default_region"`
	SafeSearch      bool   `json:"safe_search"`
	MaxResults      int    `json:"max_results"`
	CacheTTLSeconds int    `json:"cache_ttl_seconds"`
}

// App owns the long-lived service state and implements every operation the
// API surface exposes.
type App struct {
	cfg          config.Config
	logger       *zap.Logger
	clk          search.Clock
	gate         *gate.Gate
	stats        *cache.Stats
	searchCache  *cache.Handle[[]search.Result]
	contentCache *cache.Handle[search.FetchResult]
	client       *search.Client
	fetcher      *search.ContentFetcher

	prefMu    sync.RWMutex
	prefs     Preferences
	startedAt time.Time
}

// New assembles an App from configuration and a transport.
func New(cfg config.Config, transport search.Transport, clk search.Clock, logger *zap.Logger) *App {
	if logger == nil {
		logger = zap.NewNop()
	}
	stats := cache.NewStats()
	now := clk.Now
	searchCache := cache.NewHandle(cache.New[[]search.Result]("search", cfg.Cache.Capacity, stats, now))
	contentCache := cache.NewHandle(cache.New[search.FetchResult]("content", cfg.Cache.Capacity, stats, now))

	g := gate.New(cfg.Limits.Concurrency)
	limiter := ratelimit.New(ratelimit.Config{
		DefaultRPS:   cfg.Limits.PerDomainRPS,
		DefaultBurst: cfg.Limits.PerDomainBurst,
	})

	client := search.NewClient(search.ClientConfig{
		BaseURL:       cfg.Search.BaseURL,
		Timeout:       cfg.SearchTimeout(),
		SnippetLength: cfg.Search.SnippetLength,
		NewsTTL:       cfg.NewsTTL(),
		DocsTTL:       cfg.DocsTTL(),
	}, transport, g, searchCache, logger)

	fetcher := search.NewContentFetcher(search.FetcherConfig{
		Timeout:       cfg.FetchTimeout(),
		ReaderEnabled: cfg.Fetch.ReaderEnabled,
		ReaderBaseURL: cfg.Fetch.ReaderBaseURL,
		ReaderTimeout: cfg.ReaderTimeout(),
		RawTimeout:    cfg.RawTimeout(),
	}, transport, g, limiter, contentCache, logger)

	return &App{
		cfg:          cfg,
		logger:       logger,
		clk:          clk,
		gate:         g,
		stats:        stats,
		searchCache:  searchCache,
		contentCache: contentCache,
		client:       client,
		fetcher:      fetcher,
		prefs: Preferences{
			Region:          cfg.Search.Region,
			SafeSearch:      cfg.Search.SafeSearch,
			MaxResults:      cfg.Search.MaxResults,
			CacheTTLSeconds: cfg.Cache.DefaultTTLSeconds,
		},
		startedAt: clk.Now(),
	}
}

// SearchRequest is one search invocation. Zero-valued fields fall back to
// the current preferences.
type SearchRequest struct {
	Query      string
	Limit      int
	Region     string
	SafeSearch *bool
}

// Search validates the request, applies preference defaults, and runs the
// backend query.
func (a *App) Search(ctx context.Context, req SearchRequest) (search.Response, error) {
	q, err := a.resolveQuery(req, defaultSearchLimit, maxSearchLimit)
	if err != nil {
		return search.Response{}, err
	}
	return a.client.Search(ctx, q)
}

// FetchRequest is one page fetch invocation.
type FetchRequest struct {
	URL       string
	Format    string
	MaxLength int
}

// Fetch retrieves a single page in the requested format, defaulting to
// markdown.
func (a *App) Fetch(ctx context.Context, req FetchRequest) (search.FetchResult, error) {
	format := search.ParseFormat(req.Format, search.FormatMarkdown)
	maxLength := req.MaxLength
	if maxLength <= 0 || maxLength > a.cfg.Fetch.ContentLimit {
		maxLength = a.cfg.Fetch.ContentLimit
	}
	return a.fetcher.Fetch(ctx, req.URL, format, maxLength, a.cacheTTL())
}

// EnrichedResult merges one search record with its fetched content. Failed
// fetches keep the record with an error status so one bad page never sinks
// the batch.
type EnrichedResult struct {
	search.Result
	Status    string        `json:"status"`
	Format    search.Format `json:"format,omitempty"`
	Content   string        `json:"content,omitempty"`
	Code      int           `json:"code,omitempty"`
	Note      string        `json:"note,omitempty"`
	Message   string        `json:"message,omitempty"`
	ErrorType string        `json:"error_type,omitempty"`
}

// SearchAndFetchResponse is a search whose results carry page content.
type SearchAndFetchResponse struct {
	Query              string           `json:"query"`
	Status             string           `json:"status"` // "ok" or "no_results"
	Results            []EnrichedResult `json:"results"`
	Suggestion         string           `json:"suggestion,omitempty"`
	AlternativeQueries []string         `json:"alternative_queries,omitempty"`
	Total              int              `json:"total"`
	Source             string           `json:"source"`
}

// SearchAndFetchRequest is one combined invocation.
type SearchAndFetchRequest struct {
	Query  string
	Limit  int
	Format string
	Region string
}

// SearchAndFetch runs a search and fetches each result's content
// concurrently. Per-result fetch failures are recorded inline; only the
// search itself can fail the call.
func (a *App) SearchAndFetch(ctx context.Context, req SearchAndFetchRequest) (SearchAndFetchResponse, error) {
	resp, err := a.Search(ctx, SearchRequest{
		Query:  req.Query,
		Limit:  boundLimit(req.Limit, defaultEnrichLimit, maxSearchLimit),
		Region: req.Region,
	})
	if err != nil {
		return SearchAndFetchResponse{}, err
	}
	if len(resp.Results) == 0 {
		return SearchAndFetchResponse{
			Query:              resp.Query,
			Status:             "no_results",
			Results:            []EnrichedResult{},
			Suggestion:         resp.Suggestion,
			AlternativeQueries: alternativeQueries(resp.Query),
			Source:             resp.Source,
		}, nil
	}

	format := search.ParseFormat(req.Format, search.FormatText)
	enriched := make([]EnrichedResult, len(resp.Results))
	var wg sync.WaitGroup
	for i, r := range resp.Results {
		wg.Add(1)
		go func(i int, r search.Result) {
			defer wg.Done()
			enriched[i] = a.enrich(ctx, r, format)
		}(i, r)
	}
	wg.Wait()

	return SearchAndFetchResponse{
		Query:      resp.Query,
		Status:     "ok",
		Results:    enriched,
		Suggestion: resp.Suggestion,
		Total:      len(enriched),
		Source:     resp.Source,
	}, nil
}

func (a *App) enrich(ctx context.Context, r search.Result, format search.Format) EnrichedResult {
	fetched, err := a.fetcher.Fetch(ctx, r.URL, format, a.cfg.Fetch.ContentLimit, a.cacheTTL())
	if err != nil {
		e := search.AsError(err)
		return EnrichedResult{
			Result:    r,
			Status:    "error",
			Message:   e.Message,
			ErrorType: string(e.Kind),
			Code:      e.Code,
		}
	}
	return EnrichedResult{
		Result:  r,
		Status:  "success",
		Format:  fetched.Format,
		Content: fetched.Content,
		Code:    fetched.Code,
		Note:    fetched.Note,
	}
}

// alternativeQueries proposes reformulations for a query that matched
// nothing.
func alternativeQueries(query string) []string {
	return []string{
		query + " tutorial",
		query + " example",
		"how to use " + query,
	}
}

// AdvancedSearchRequest narrows and reorders a search.
type AdvancedSearchRequest struct {
	Query      string         `json:"query"`
	Limit      int            `json:"limit"`
	Region     string         `json:"region"`
	SafeSearch *bool          `json:"safe_search"`
	Filters    search.Filters `json:"filters"`
	SortBy     string         `json:"sort_by"`
	Reverse    bool           `json:"reverse"`
}

// AdvancedSearchResponse reports the filtered, sorted results along with the
// pre-filter count.
type AdvancedSearchResponse struct {
	Query             string          `json:"query"`
	Results           []search.Result `json:"results"`
	Total             int             `json:"total"`
	TotalBeforeFilter int             `json:"total_before_filter"`
	SortedBy          search.SortKey  `json:"sorted_by"`
	Source            string          `json:"source"`
}

// AdvancedSearch runs a search, then filters and sorts the results locally.
// Unknown sort keys fall back to relevance order.
func (a *App) AdvancedSearch(ctx context.Context, req AdvancedSearchRequest) (AdvancedSearchResponse, error) {
	resp, err := a.Search(ctx, SearchRequest{
		Query:      req.Query,
		Limit:      boundLimit(req.Limit, defaultAdvancedLimit, maxSearchLimit),
		Region:     req.Region,
		SafeSearch: req.SafeSearch,
	})
	if err != nil {
		return AdvancedSearchResponse{}, err
	}

	filtered := search.FilterResults(resp.Results, req.Filters)
	key := search.ParseSortKey(req.SortBy)
	search.SortResults(filtered, key, req.Reverse)

	return AdvancedSearchResponse{
		Query:             resp.Query,
		Results:           filtered,
		Total:             len(filtered),
		TotalBeforeFilter: len(resp.Results),
		SortedBy:          key,
		Source:            resp.Source,
	}, nil
}

// Summarize searches and aggregates the result list into statistics.
func (a *App) Summarize(ctx context.Context, query string, limit int, region string) (search.Analysis, error) {
	resp, err := a.Search(ctx, SearchRequest{
		Query:  query,
		Limit:  boundLimit(limit, defaultAdvancedLimit, maxSearchLimit),
		Region: region,
	})
	if err != nil {
		return search.Analysis{}, err
	}
	analysis, err := search.Analyze(resp.Query, resp.Results)
	if err != nil {
		return search.Analysis{}, &search.Error{
			Kind:    search.ErrGeneral,
			Message: "no search results to analyze",
			Hint:    "try a broader query",
		}
	}
	return analysis, nil
}

func (a *App) resolveQuery(req SearchRequest, def, max int) (search.Query, error) {
	text := strings.TrimSpace(req.Query)
	if text == "" {
		return search.Query{}, &search.Error{
			Kind:    search.ErrInvalidInput,
			Message: "a search query is required",
		}
	}

	prefs := a.snapshot()
	limit := boundLimit(req.Limit, def, max)
	if limit > prefs.MaxResults {
		limit = prefs.MaxResults
	}

	region := prefs.Region
	if alias := strings.ToLower(strings.TrimSpace(req.Region)); alias != "" {
		if _, ok := regionCodes[alias]; ok {
			region = alias
		} else {
			a.logger.Warn("unknown region, using preference default", zap.String("region", alias))
		}
	}

	safeSearch := prefs.SafeSearch
	if req.SafeSearch != nil {
		safeSearch = *req.SafeSearch
	}

	return search.Query{
		Text:       text,
		Limit:      limit,
		Region:     regionCodes[region],
		SafeSearch: safeSearch,
		DefaultTTL: time.Duration(prefs.CacheTTLSeconds) * time.Second,
	}, nil
}

func (a *App) snapshot() Preferences {
	a.prefMu.RLock()
	defer a.prefMu.RUnlock()
	return a.prefs
}

func (a *App) cacheTTL() time.Duration {
	return time.Duration(a.snapshot().CacheTTLSeconds) * time.Second
}

func boundLimit(limit, def, max int) int {
	if limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}
