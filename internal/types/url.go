package types

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// NormalizeURL canonicalizes a URL for identity comparison:
// - lowercases scheme and host
// - removes the fragment
// - sorts query parameters by name
// - ensures a non-empty path ("/" for bare hosts)
//
// Two URLs are the same page if and only if they normalize to the same string.
func NormalizeURL(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("invalid URL %q: %w", rawURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported scheme %q in %q", u.Scheme, rawURL)
	}
	if u.Host == "" {
		return "", fmt.Errorf("URL %q has no host", rawURL)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	if u.RawQuery != "" {
		params := u.Query()
		keys := make([]string, 0, len(params))
		for k := range params {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		var sorted []string
		for _, k := range keys {
			vals := params[k]
			sort.Strings(vals)
			for _, v := range vals {
				sorted = append(sorted, url.QueryEscape(k)+"="+url.QueryEscape(v))
			}
		}
		u.RawQuery = strings.Join(sorted, "&")
	}

	if u.Path == "" {
		u.Path = "/"
	}

	return u.String(), nil
}

// MustNormalizeURL is NormalizeURL for inputs already known to be valid.
// On error it returns the input unchanged.
func MustNormalizeURL(rawURL string) string {
	n, err := NormalizeURL(rawURL)
	if err != nil {
		return rawURL
	}
	return n
}

// Host returns the lowercased hostname of a URL, or "" if it cannot be parsed.
func Host(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// ValidCrawlURL reports whether a raw string is an absolute http(s) URL
// suitable for crawling.
func ValidCrawlURL(rawURL string) bool {
	_, err := NormalizeURL(rawURL)
	return err == nil
}
