package parser

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/ratcrawler/ratcrawler/internal/types"
)

// extractLinks walks every <a href>, resolves it, classifies internal vs
// external by host, and captures anchor text, nofollow, and a context window
// from the surrounding parent text.
func extractLinks(doc *goquery.Document, base *url.URL) (internal, external []Link) {
	pageHost := strings.ToLower(base.Hostname())

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		abs := resolveURL(base, href)
		if abs == "" {
			return
		}

		link := Link{
			URL:        abs,
			AnchorText: collapseWhitespace(s.Text()),
			Context:    linkContext(s),
			IsNofollow: isNofollow(s),
			Internal:   types.Host(abs) == pageHost,
		}
		if link.Internal {
			internal = append(internal, link)
		} else {
			external = append(external, link)
		}
	})
	return internal, external
}

// isNofollow checks the rel attribute tokens for "nofollow".
func isNofollow(s *goquery.Selection) bool {
	rel, ok := s.Attr("rel")
	if !ok {
		return false
	}
	for _, token := range strings.Fields(strings.ToLower(rel)) {
		if token == "nofollow" {
			return true
		}
	}
	return false
}

// linkContext returns up to maxContextLen characters of the anchor's parent
// text. The parent gives enough surrounding prose to judge link quality
// without dragging in the whole document.
func linkContext(s *goquery.Selection) string {
	text := collapseWhitespace(s.Parent().Text())
	if len(text) > maxContextLen {
		runes := []rune(text)
		if len(runes) > maxContextLen {
			text = string(runes[:maxContextLen])
		}
	}
	return text
}
