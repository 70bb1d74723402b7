// Package parser turns fetched HTML into the structured page record: title,
// meta tags, headings, language, the classified link sets, and the cleaned
// body text. Malformed input degrades to empty fields, never a panic.
package parser

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/ratcrawler/ratcrawler/internal/types"
)

// maxContextLen caps the anchor context window stored per link.
const maxContextLen = 250

// Link is one outbound <a href> resolved to an absolute URL.
type Link struct {
	URL        string
	AnchorText string
	Context    string // surrounding parent text, capped at maxContextLen
	IsNofollow bool
	Internal   bool // host equals the page host
}

// Document is the parsed view of one HTML page.
type Document struct {
	URL             string
	Title           string
	MetaDescription string
	MetaKeywords    []string
	RobotsMeta      string
	CanonicalURL    string
	Language        string
	H1Tags          []string
	H2Tags          []string
	ContentText     string
	WordCount       int
	ImagesCount     int
	InternalLinks   []Link
	ExternalLinks   []Link
}

// NoIndex reports whether the page's robots meta forbids indexing.
func (d *Document) NoIndex() bool {
	return strings.Contains(strings.ToLower(d.RobotsMeta), "noindex")
}

// Links returns internal then external links as one slice.
func (d *Document) Links() []Link {
	out := make([]Link, 0, len(d.InternalLinks)+len(d.ExternalLinks))
	out = append(out, d.InternalLinks...)
	out = append(out, d.ExternalLinks...)
	return out
}

// Parse extracts the Document from decoded HTML. pageURL must be the final
// (post-redirect) normalized URL; relative hrefs resolve against it.
func Parse(pageURL, htmlText string) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlText))
	if err != nil {
		return nil, &types.ParseError{URL: pageURL, Err: err}
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, &types.ParseError{URL: pageURL, Err: err}
	}

	d := &Document{URL: pageURL}

	d.Title = strings.TrimSpace(doc.Find("title").First().Text())
	d.MetaDescription = metaContent(doc, "description")
	d.RobotsMeta = metaContent(doc, "robots")
	if kw := metaContent(doc, "keywords"); kw != "" {
		for _, k := range strings.Split(kw, ",") {
			if k = strings.TrimSpace(k); k != "" {
				d.MetaKeywords = append(d.MetaKeywords, k)
			}
		}
	}

	if href, ok := doc.Find(`link[rel="canonical"]`).First().Attr("href"); ok {
		if abs := resolveURL(base, href); abs != "" {
			d.CanonicalURL = abs
		}
	}
	if lang, ok := doc.Find("html").First().Attr("lang"); ok {
		d.Language = strings.TrimSpace(lang)
	}

	doc.Find("h1").Each(func(_ int, s *goquery.Selection) {
		if t := strings.TrimSpace(s.Text()); t != "" {
			d.H1Tags = append(d.H1Tags, t)
		}
	})
	doc.Find("h2").Each(func(_ int, s *goquery.Selection) {
		if t := strings.TrimSpace(s.Text()); t != "" {
			d.H2Tags = append(d.H2Tags, t)
		}
	})

	d.ImagesCount = doc.Find("img").Length()
	d.InternalLinks, d.ExternalLinks = extractLinks(doc, base)

	// Boilerplate tags are dropped before text extraction.
	doc.Find("script, style, meta, link, noscript").Remove()
	d.ContentText = collapseWhitespace(doc.Find("body").Text())
	if d.ContentText == "" {
		d.ContentText = collapseWhitespace(doc.Text())
	}
	d.WordCount = len(strings.Fields(d.ContentText))

	return d, nil
}

// metaContent returns the content of <meta name=...>, trimmed.
func metaContent(doc *goquery.Document, name string) string {
	sel := doc.Find(`meta[name="` + name + `"]`).First()
	content, _ := sel.Attr("content")
	return strings.TrimSpace(content)
}

// resolveURL makes href absolute against base and normalizes it. Returns ""
// for unusable hrefs (fragments, javascript:, mailto:, parse failures).
func resolveURL(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	abs := base.ResolveReference(ref)
	norm, err := types.NormalizeURL(abs.String())
	if err != nil {
		return ""
	}
	return norm
}

// collapseWhitespace squeezes runs of whitespace into single spaces.
func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
