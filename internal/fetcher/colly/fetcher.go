// Package collyfetcher implements search.Transport using gocolly.
package collyfetcher

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"

	"searchfetch/internal/search"
)

// Config controls collector behavior.
type Config struct {
	UserAgent      string
	AcceptLanguage string
}

// Transport implements search.Transport using the Colly collector. Each Get
// clones the base collector so per-call timeouts never race.
type Transport struct {
	cfg           Config
	baseCollector *colly.Collector
}

// New builds a Transport with a pooled HTTP transport.
func New(cfg Config) *Transport {
	// colly v2.1.0's Async option ignores its argument and always enables
	// async mode; the zero value already gives the synchronous collector
	// this transport requires.
	c := colly.NewCollector()
	c.AllowURLRevisit = true
	c.WithTransport(newHTTPTransport())
	if cfg.UserAgent != "" {
		c.UserAgent = cfg.UserAgent
	}
	return &Transport{cfg: cfg, baseCollector: c}
}

// Get executes a single HTTP GET against rawURL with params merged into its
// query string. Failures come back as typed *search.Error values.
func (t *Transport) Get(ctx context.Context, rawURL string, params url.Values, timeout time.Duration) (search.Page, error) {
	target, err := mergeParams(rawURL, params)
	if err != nil {
		return search.Page{}, &search.Error{
			Kind:    search.ErrInvalidInput,
			Message: fmt.Sprintf("invalid URL %q", rawURL),
		}
	}

	var (
		page     search.Page
		fetchErr error
	)
	collector := t.baseCollector.Clone()
	collector.AllowURLRevisit = true
	if timeout > 0 {
		collector.SetRequestTimeout(timeout)
	}

	collector.OnRequest(func(r *colly.Request) {
		if t.cfg.AcceptLanguage != "" {
			r.Headers.Set("Accept-Language", t.cfg.AcceptLanguage)
		}
	})
	collector.OnResponse(func(r *colly.Response) {
		page = search.Page{
			URL:        rawURL,
			FinalURL:   r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Body:       append([]byte(nil), r.Body...),
		}
	})
	collector.OnError(func(r *colly.Response, err error) {
		fetchErr = classify(r, err)
	})

	if err := runCollector(ctx, collector, target, &fetchErr); err != nil {
		return search.Page{}, err
	}
	return page, nil
}

func runCollector(ctx context.Context, collector *colly.Collector, target string, fetchErr *error) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(target)
	}()

	select {
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return &search.Error{Kind: search.ErrTimeout, Message: "request deadline exceeded"}
		}
		return &search.Error{Kind: search.ErrGeneral, Message: "request canceled"}
	case err := <-done:
		if *fetchErr != nil {
			return *fetchErr
		}
		if err != nil {
			return classify(nil, err)
		}
		return nil
	}
}

// classify maps collector failures onto the typed error kinds callers switch
// on. Colly reports non-2xx statuses through OnError with the response
// attached.
func classify(r *colly.Response, err error) error {
	var typed *search.Error
	if errors.As(err, &typed) {
		return typed
	}
	if r != nil && r.StatusCode >= 400 {
		return &search.Error{
			Kind:    search.ErrHTTP,
			Code:    r.StatusCode,
			Message: fmt.Sprintf("HTTP %d", r.StatusCode),
		}
	}
	if isTimeoutErr(err) {
		return &search.Error{Kind: search.ErrTimeout, Message: "request timed out"}
	}
	return &search.Error{Kind: search.ErrGeneral, Message: err.Error()}
}

func isTimeoutErr(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return strings.Contains(err.Error(), "Client.Timeout")
}

func mergeParams(rawURL string, params url.Values) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	if len(params) > 0 {
		q := u.Query()
		for key, values := range params {
			for _, v := range values {
				q.Add(key, v)
			}
		}
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
