// Package search implements the search-and-fetch core: the backend search
// client, the page content fetcher, and result post-processing.
package search

import (
	"context"
	"net/url"
	"time"
)

// Format selects how fetched page content is normalized.
type Format string

// Supported content formats.
const (
	FormatText     Format = "text"
	FormatMarkdown Format = "markdown"
	FormatHTML     Format = "html"
)

// ParseFormat validates s, falling back to def for unknown values.
func ParseFormat(s string, def Format) Format {
	switch Format(s) {
	case FormatText, FormatMarkdown, FormatHTML:
		return Format(s)
	default:
		return def
	}
}

// Result is one ranked search record. It is immutable after creation;
// enrichment with fetched content produces a merged record, it never mutates
// the original.
type Result struct {
	Title      string `json:"title"`
	URL        string `json:"url"`
	DisplayURL string `json:"display_url"`
	Snippet    string `json:"snippet"`
}

// Response is the outcome of one search call.
type Response struct {
	Query      string   `json:"query"`
	Results    []Result `json:"results"`
	Suggestion string   `json:"suggestion,omitempty"`
	Total      int      `json:"total"`
	Source     string   `json:"source"` // "cache" or "backend"
}

// FetchResult is the normalized content of one fetched page.
type FetchResult struct {
	URL     string `json:"url"`
	Format  Format `json:"format"`
	Content string `json:"content"`
	Code    int    `json:"code"`
	Note    string `json:"note,omitempty"`
}

// Page is a raw HTTP response captured by a Transport.
type Page struct {
	URL        string
	FinalURL   string
	StatusCode int
	Body       []byte
}

// Transport executes a single outbound HTTP GET. Implementations classify
// failures into *Error values: ErrTimeout for deadline overruns, ErrHTTP
// with the status code for non-2xx responses, ErrGeneral otherwise.
type Transport interface {
	Get(ctx context.Context, rawURL string, params url.Values, timeout time.Duration) (Page, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}
