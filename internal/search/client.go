package search

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"searchfetch/internal/cache"
	"searchfetch/internal/gate"
	"searchfetch/internal/telemetry"
)

// ClientConfig controls backend search behavior.
type ClientConfig struct {
	BaseURL       string
	Timeout       time.Duration
	SnippetLength int
	NewsTTL       time.Duration
	DocsTTL       time.Duration
	NewsTerms     []string
	DocsTerms     []string
}

// Query captures one search request. DefaultTTL is the cache lifetime for
// queries that are neither news- nor docs-classed; it comes from the live
// preference snapshot rather than static config.
type Query struct {
	Text       string
	Limit      int
	Region     string
	SafeSearch bool
	DefaultTTL time.Duration
}

// Client issues queries against the DuckDuckGo HTML backend and caches the
// ranked result lists under classification-derived TTLs.
type Client struct {
	cfg       ClientConfig
	transport Transport
	gate      *gate.Gate
	cache     *cache.Handle[[]Result]
	logger    *zap.Logger
}

// NewClient constructs a Client.
func NewClient(cfg ClientConfig, transport Transport, g *gate.Gate, store *cache.Handle[[]Result], logger *zap.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.SnippetLength <= 0 {
		cfg.SnippetLength = 150
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		cfg:       cfg,
		transport: transport,
		gate:      g,
		cache:     store,
		logger:    logger,
	}
}

// Search returns ranked results for q, serving from cache when a result list
// for the same (query, limit, region, safeSearch) tuple is still live. The
// TTL is fixed at insertion by the query's classification and travels with
// the entry.
func (c *Client) Search(ctx context.Context, q Query) (Response, error) {
	ttl := c.resolveTTL(q)
	key := fmt.Sprintf("%s:%d:%s:%t", q.Text, q.Limit, q.Region, q.SafeSearch)

	store := c.cache.Current()
	if results, ok := store.Get(key); ok {
		telemetry.ObserveSearch("cache")
		c.logger.Debug("search served from cache", zap.String("query", q.Text))
		return Response{
			Query:   q.Text,
			Results: results,
			Total:   len(results),
			Source:  "cache",
		}, nil
	}

	if err := c.gate.Acquire(ctx); err != nil {
		return Response{}, &Error{
			Kind:    ErrGeneral,
			Message: "search canceled while waiting for a connection slot",
		}
	}
	defer c.gate.Release()

	params := url.Values{}
	params.Set("q", q.Text)
	params.Set("kl", q.Region)
	if q.SafeSearch {
		params.Set("kp", "1")
	}

	page, err := c.transport.Get(ctx, c.cfg.BaseURL, params, c.cfg.Timeout)
	if err != nil {
		return Response{}, c.searchError(q.Text, err)
	}
	telemetry.ObserveSearch("backend")
	telemetry.ObserveOutbound("search", "ok")

	results, suggestion := parseResults(page.Body, q.Limit, c.cfg.SnippetLength)
	store.Put(key, results, ttl)
	c.logger.Info("search completed",
		zap.String("query", q.Text),
		zap.String("region", q.Region),
		zap.Int("results", len(results)),
	)

	return Response{
		Query:      q.Text,
		Results:    results,
		Suggestion: suggestion,
		Total:      len(results),
		Source:     "backend",
	}, nil
}

func (c *Client) resolveTTL(q Query) time.Duration {
	switch ClassifyQuery(q.Text, c.cfg.NewsTerms, c.cfg.DocsTerms) {
	case ClassNews:
		c.logger.Debug("using news cache lifetime", zap.String("query", q.Text))
		return c.cfg.NewsTTL
	case ClassDocs:
		c.logger.Debug("using docs cache lifetime", zap.String("query", q.Text))
		return c.cfg.DocsTTL
	default:
		return q.DefaultTTL
	}
}

func (c *Client) searchError(query string, err error) *Error {
	e := AsError(err)
	switch e.Kind {
	case ErrTimeout:
		telemetry.ObserveOutbound("search", "timeout")
		c.logger.Warn("search request timed out", zap.String("query", query))
		return &Error{
			Kind:    ErrTimeout,
			Message: "search request timed out, please try again later",
			Hint:    "shorten the query or check network connectivity",
		}
	case ErrHTTP:
		telemetry.ObserveOutbound("search", "http_error")
		c.logger.Error("search backend returned an error",
			zap.String("query", query),
			zap.Int("code", e.Code),
		)
		return &Error{
			Kind:    ErrHTTP,
			Code:    e.Code,
			Message: "search service is temporarily unavailable",
			Hint:    "try again shortly or use a simpler query",
		}
	default:
		telemetry.ObserveOutbound("search", "error")
		c.logger.Error("search failed", zap.String("query", query), zap.Error(err))
		return &Error{
			Kind:    ErrGeneral,
			Message: "search failed unexpectedly",
			Hint:    "try different keywords",
		}
	}
}

// parseResults extracts ranked records from the backend's HTML, bounded to
// limit. It also picks up the optional "did you mean" suggestion.
func parseResults(body []byte, limit, snippetLength int) ([]Result, string) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, ""
	}

	results := make([]Result, 0, limit)
	doc.Find(".result__body").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if len(results) >= limit {
			return false
		}
		title := strings.TrimSpace(sel.Find(".result__a").First().Text())
		rawURL := strings.TrimSpace(sel.Find(".result__url").First().Text())
		if title == "" || rawURL == "" {
			return true
		}
		rawURL = EnsureScheme(rawURL)
		snippet := FormatSnippet(sel.Find(".result__snippet").First().Text(), snippetLength)
		results = append(results, Result{
			Title:      title,
			URL:        rawURL,
			DisplayURL: FormatDisplayURL(rawURL),
			Snippet:    snippet,
		})
		return true
	})

	suggestion := strings.TrimSpace(doc.Find(".search__did-you-mean a").First().Text())
	return results, suggestion
}
