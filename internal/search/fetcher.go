package search

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"searchfetch/internal/cache"
	"searchfetch/internal/gate"
	"searchfetch/internal/policy/ratelimit"
	"searchfetch/internal/telemetry"
)

// Tags removed before content extraction. The fallback path strips only the
// non-renderable pair since it runs under a tight deadline.
const (
	primaryStripSelector  = "script,style,nav,footer,iframe,header,aside"
	fallbackStripSelector = "script,style"
)

const (
	truncatedNote      = "...\n\n[content truncated; open the original link for the full page]"
	truncatedShortNote = "...\n\n[content truncated]"
	degradedNote       = "markdown extraction timed out; fell back to plain text"
)

// FetcherConfig controls content fetching behavior. Timeout bounds direct
// fetches, ReaderTimeout bounds the markdown extraction service (typically
// slower), RawTimeout bounds the degraded fallback fetch (typically shorter).
type FetcherConfig struct {
	Timeout       time.Duration
	ReaderEnabled bool
	ReaderBaseURL string
	ReaderTimeout time.Duration
	RawTimeout    time.Duration
}

// ContentFetcher retrieves and normalizes single pages, caching successful
// results under (url, format).
type ContentFetcher struct {
	cfg       FetcherConfig
	transport Transport
	gate      *gate.Gate
	limiter   *ratelimit.Limiter
	cache     *cache.Handle[FetchResult]
	logger    *zap.Logger
}

// NewContentFetcher constructs a ContentFetcher. The limiter may be nil.
func NewContentFetcher(
	cfg FetcherConfig,
	transport Transport,
	g *gate.Gate,
	limiter *ratelimit.Limiter,
	store *cache.Handle[FetchResult],
	logger *zap.Logger,
) *ContentFetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.ReaderTimeout <= 0 {
		cfg.ReaderTimeout = 15 * time.Second
	}
	if cfg.RawTimeout <= 0 {
		cfg.RawTimeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ContentFetcher{
		cfg:       cfg,
		transport: transport,
		gate:      g,
		limiter:   limiter,
		cache:     store,
		logger:    logger,
	}
}

// Fetch retrieves rawURL and normalizes its content to the requested format,
// truncated to maxLength runes. A cache hit consumes no permit and makes no
// network call. Successful results are cached for ttl.
func (f *ContentFetcher) Fetch(ctx context.Context, rawURL string, format Format, maxLength int, ttl time.Duration) (FetchResult, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return FetchResult{}, &Error{Kind: ErrInvalidInput, Message: "a URL is required"}
	}
	rawURL = EnsureScheme(rawURL)

	key := rawURL + ":" + string(format)
	store := f.cache.Current()
	if result, ok := store.Get(key); ok {
		f.logger.Debug("content served from cache", zap.String("url", rawURL))
		return result, nil
	}

	if err := f.gate.Acquire(ctx); err != nil {
		return FetchResult{}, &Error{
			Kind:    ErrGeneral,
			Message: "fetch canceled while waiting for a connection slot",
		}
	}
	defer f.gate.Release()

	if f.limiter != nil {
		if err := f.limiter.Wait(ctx, rawURL); err != nil {
			return FetchResult{}, &Error{
				Kind:    ErrGeneral,
				Message: "fetch canceled while waiting for the rate limiter",
			}
		}
	}

	if format == FormatMarkdown && f.cfg.ReaderEnabled {
		return f.fetchViaReader(ctx, rawURL, key, maxLength, ttl, store)
	}
	return f.fetchDirect(ctx, rawURL, key, format, maxLength, ttl, store)
}

// fetchViaReader routes the request through the markdown extraction service.
// On a reader timeout it degrades to a raw fetch of the original URL; any
// other reader failure is terminal.
func (f *ContentFetcher) fetchViaReader(
	ctx context.Context,
	rawURL, key string,
	maxLength int,
	ttl time.Duration,
	store *cache.Store[FetchResult],
) (FetchResult, error) {
	f.logger.Info("fetching via markdown extraction service", zap.String("url", rawURL))
	page, err := f.transport.Get(ctx, f.cfg.ReaderBaseURL+rawURL, nil, f.cfg.ReaderTimeout)
	if err == nil {
		telemetry.ObserveOutbound("reader", "ok")
		result := FetchResult{
			URL:     rawURL,
			Format:  FormatMarkdown,
			Content: truncate(string(page.Body), maxLength, truncatedNote),
			Code:    page.StatusCode,
		}
		store.Put(key, result, ttl)
		return result, nil
	}

	if !IsTimeout(err) {
		telemetry.ObserveOutbound("reader", "error")
		return FetchResult{}, f.fetchError(rawURL, err)
	}

	telemetry.ObserveOutbound("reader", "timeout")
	f.logger.Warn("markdown extraction timed out, falling back to raw fetch", zap.String("url", rawURL))
	return f.fetchFallback(ctx, rawURL, key, maxLength, ttl, store)
}

// fetchFallback is the degraded path after a reader timeout: a direct fetch
// with a shorter deadline, stripped to plain text and annotated.
func (f *ContentFetcher) fetchFallback(
	ctx context.Context,
	rawURL, key string,
	maxLength int,
	ttl time.Duration,
	store *cache.Store[FetchResult],
) (FetchResult, error) {
	page, err := f.transport.Get(ctx, rawURL, nil, f.cfg.RawTimeout)
	if err != nil {
		telemetry.ObserveOutbound("fallback", "error")
		f.logger.Error("fallback fetch failed", zap.String("url", rawURL), zap.Error(err))
		return FetchResult{}, &Error{
			Kind:    ErrTimeout,
			Message: "could not read the page, try again later or open the link directly",
		}
	}
	telemetry.ObserveOutbound("fallback", "ok")

	text, err := extractText(page.Body, fallbackStripSelector)
	if err != nil {
		return FetchResult{}, f.fetchError(rawURL, err)
	}
	result := FetchResult{
		URL:     rawURL,
		Format:  FormatText,
		Content: truncate(text, maxLength, truncatedShortNote),
		Code:    page.StatusCode,
		Note:    degradedNote,
	}
	store.Put(key, result, ttl)
	return result, nil
}

// fetchDirect retrieves the URL itself and normalizes the body to text or
// html. A timeout here is terminal; there is no second fallback.
func (f *ContentFetcher) fetchDirect(
	ctx context.Context,
	rawURL, key string,
	format Format,
	maxLength int,
	ttl time.Duration,
	store *cache.Store[FetchResult],
) (FetchResult, error) {
	f.logger.Info("fetching page", zap.String("url", rawURL), zap.String("format", string(format)))
	page, err := f.transport.Get(ctx, rawURL, nil, f.cfg.Timeout)
	if err != nil {
		if IsTimeout(err) {
			telemetry.ObserveOutbound("content", "timeout")
			return FetchResult{}, &Error{
				Kind:    ErrTimeout,
				Message: "request timed out, the page is too slow or unreachable",
			}
		}
		telemetry.ObserveOutbound("content", "error")
		return FetchResult{}, f.fetchError(rawURL, err)
	}
	telemetry.ObserveOutbound("content", "ok")

	var content string
	switch format {
	case FormatHTML:
		content, err = extractHTML(page.Body)
		content = truncate(content, maxLength, "...")
	default:
		content, err = extractText(page.Body, primaryStripSelector)
		content = truncate(content, maxLength, truncatedNote)
	}
	if err != nil {
		return FetchResult{}, f.fetchError(rawURL, err)
	}

	result := FetchResult{
		URL:     rawURL,
		Format:  format,
		Content: content,
		Code:    page.StatusCode,
	}
	store.Put(key, result, ttl)
	return result, nil
}

func (f *ContentFetcher) fetchError(rawURL string, err error) *Error {
	e := AsError(err)
	if e.Kind == ErrHTTP {
		f.logger.Error("page returned an HTTP error",
			zap.String("url", rawURL),
			zap.Int("code", e.Code),
		)
		return &Error{Kind: ErrHTTP, Code: e.Code, Message: httpStatusMessage(e.Code)}
	}
	f.logger.Error("fetch failed", zap.String("url", rawURL), zap.Error(err))
	return &Error{
		Kind:    ErrGeneral,
		Message: "could not read the page content, open the link directly instead",
	}
}

// httpStatusMessage maps status codes to user-facing messages. HTTP errors
// are reported, never retried.
func httpStatusMessage(code int) string {
	switch code {
	case 404:
		return "the page does not exist or has been removed"
	case 403:
		return "access to this page was denied, it may require a login"
	case 500:
		return "the site reported a server error, try again later"
	case 503:
		return "the site is temporarily unavailable, possibly under maintenance"
	default:
		return fmt.Sprintf("request failed (HTTP %d)", code)
	}
}

// extractText parses body, removes the selected tags, and collapses the
// remaining tree to whitespace-normalized text.
func extractText(body []byte, stripSelector string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}
	doc.Find(stripSelector).Remove()
	return collapseText(doc.Text()), nil
}

// extractHTML strips non-content tags and serializes the best enclosing
// semantic container, first match wins.
func extractHTML(body []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}
	doc.Find(primaryStripSelector).Remove()

	// Semantic containers in preference order, most specific first.
	for _, sel := range []string{"main", "article", "div", "body"} {
		container := doc.Find(sel).First()
		if container.Length() == 0 {
			continue
		}
		html, err := goquery.OuterHtml(container)
		if err != nil {
			return "", fmt.Errorf("serialize html: %w", err)
		}
		return html, nil
	}
	html, err := doc.Html()
	if err != nil {
		return "", fmt.Errorf("serialize html: %w", err)
	}
	return html, nil
}

// collapseText squeezes extracted text into non-empty, trimmed lines.
func collapseText(s string) string {
	var chunks []string
	for _, line := range strings.Split(s, "\n") {
		for _, phrase := range strings.Split(strings.TrimSpace(line), "  ") {
			phrase = strings.TrimSpace(phrase)
			if phrase != "" {
				chunks = append(chunks, phrase)
			}
		}
	}
	return strings.Join(chunks, "\n")
}

// truncate cuts s to maxLength runes and appends marker. A non-positive
// maxLength disables truncation.
func truncate(s string, maxLength int, marker string) string {
	if maxLength <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= maxLength {
		return s
	}
	return string(runes[:maxLength]) + marker
}
