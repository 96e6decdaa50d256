package search

import (
	"net/url"
	"regexp"
	"strings"
)

var whitespaceRE = regexp.MustCompile(`\s+`)

// EnsureScheme prefixes https:// when raw lacks a scheme.
func EnsureScheme(raw string) string {
	if strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://") {
		return raw
	}
	return "https://" + raw
}

// FormatSnippet collapses whitespace and truncates to maxLength runes with a
// trailing ellipsis.
func FormatSnippet(snippet string, maxLength int) string {
	snippet = strings.TrimSpace(whitespaceRE.ReplaceAllString(snippet, " "))
	if snippet == "" {
		return ""
	}
	runes := []rune(snippet)
	if maxLength > 0 && len(runes) > maxLength {
		return string(runes[:maxLength]) + "..."
	}
	return snippet
}

// FormatDisplayURL renders a URL for display: the www. prefix is stripped
// from the host and long paths are shortened to their first segments.
func FormatDisplayURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	host := strings.TrimPrefix(u.Host, "www.")
	path := u.Path
	if len(path) > 30 {
		parts := strings.Split(path, "/")
		if len(parts) > 3 {
			path = strings.Join(parts[:3], "/") + "/..."
		}
	}
	return host + path
}
