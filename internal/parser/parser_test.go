package parser

import (
	"strings"
	"testing"

	"github.com/ratcrawler/ratcrawler/internal/types"
)

const sampleHTML = `<!DOCTYPE html>
<html lang="en">
<head>
	<title>Sample Page</title>
	<meta name="description" content="A test page">
	<meta name="keywords" content="go, crawler, testing">
	<meta name="robots" content="index, follow">
	<link rel="canonical" href="https://example.com/sample">
	<script>console.log("boilerplate")</script>
	<style>body { color: red }</style>
</head>
<body>
	<h1>Main Heading</h1>
	<h2>First Section</h2>
	<h2>Second Section</h2>
	<p>Intro text with an <a href="/internal">internal link</a> inside.</p>
	<p>Outbound: <a href="https://other.org/page" rel="nofollow sponsored">partner site</a>.</p>
	<p><a href="#fragment">skip me</a> <a href="mailto:x@y.z">and me</a></p>
	<img src="/a.png"><img src="/b.png">
</body>
</html>`

func TestParseExtraction(t *testing.T) {
	doc, err := Parse("https://example.com/sample", sampleHTML)
	if err != nil {
		t.Fatal(err)
	}

	if doc.Title != "Sample Page" {
		t.Errorf("title = %q", doc.Title)
	}
	if doc.MetaDescription != "A test page" {
		t.Errorf("description = %q", doc.MetaDescription)
	}
	if len(doc.MetaKeywords) != 3 || doc.MetaKeywords[0] != "go" {
		t.Errorf("keywords = %v", doc.MetaKeywords)
	}
	if doc.CanonicalURL != "https://example.com/sample" {
		t.Errorf("canonical = %q", doc.CanonicalURL)
	}
	if doc.Language != "en" {
		t.Errorf("lang = %q", doc.Language)
	}
	if len(doc.H1Tags) != 1 || doc.H1Tags[0] != "Main Heading" {
		t.Errorf("h1 = %v", doc.H1Tags)
	}
	if len(doc.H2Tags) != 2 {
		t.Errorf("h2 = %v", doc.H2Tags)
	}
	if doc.ImagesCount != 2 {
		t.Errorf("images = %d, want 2", doc.ImagesCount)
	}
	if doc.NoIndex() {
		t.Error("index,follow must not read as noindex")
	}
}

func TestParseLinkClassification(t *testing.T) {
	doc, err := Parse("https://example.com/sample", sampleHTML)
	if err != nil {
		t.Fatal(err)
	}

	if len(doc.InternalLinks) != 1 {
		t.Fatalf("internal links = %v", doc.InternalLinks)
	}
	in := doc.InternalLinks[0]
	if in.URL != "https://example.com/internal" {
		t.Errorf("internal URL = %q (relative href not resolved)", in.URL)
	}
	if in.AnchorText != "internal link" {
		t.Errorf("anchor = %q", in.AnchorText)
	}
	if in.IsNofollow {
		t.Error("plain link marked nofollow")
	}
	if !strings.Contains(in.Context, "Intro text") {
		t.Errorf("context = %q, want surrounding paragraph text", in.Context)
	}

	if len(doc.ExternalLinks) != 1 {
		t.Fatalf("external links = %v (fragment/mailto must be dropped)", doc.ExternalLinks)
	}
	ext := doc.ExternalLinks[0]
	if ext.URL != "https://other.org/page" {
		t.Errorf("external URL = %q", ext.URL)
	}
	if !ext.IsNofollow {
		t.Error("rel=\"nofollow sponsored\" not detected")
	}
}

func TestParseBoilerplateStripped(t *testing.T) {
	doc, err := Parse("https://example.com/", sampleHTML)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(doc.ContentText, "boilerplate") {
		t.Error("script content leaked into text")
	}
	if strings.Contains(doc.ContentText, "color: red") {
		t.Error("style content leaked into text")
	}
	if doc.WordCount == 0 {
		t.Error("word count should be positive")
	}
}

func TestParseNoIndex(t *testing.T) {
	html := `<html><head><meta name="robots" content="NOINDEX, nofollow"></head><body></body></html>`
	doc, err := Parse("https://example.com/", html)
	if err != nil {
		t.Fatal(err)
	}
	if !doc.NoIndex() {
		t.Error("NOINDEX not detected case-insensitively")
	}
}

func TestParseMalformedHTML(t *testing.T) {
	doc, err := Parse("https://example.com/", "<html><body><p>unclosed <a href='/x'>link")
	if err != nil {
		t.Fatalf("malformed HTML must degrade, not fail: %v", err)
	}
	if len(doc.InternalLinks) != 1 {
		t.Errorf("links from malformed HTML = %v", doc.InternalLinks)
	}
}

func TestLinkContextCapped(t *testing.T) {
	long := strings.Repeat("word ", 200)
	html := `<html><body><p>` + long + `<a href="/x">anchor</a></p></body></html>`
	doc, err := Parse("https://example.com/", html)
	if err != nil {
		t.Fatal(err)
	}
	if len(doc.InternalLinks) != 1 {
		t.Fatal("expected one link")
	}
	if n := len([]rune(doc.InternalLinks[0].Context)); n > 250 {
		t.Errorf("context length = %d, want <= 250", n)
	}
}

func TestClassifyURL(t *testing.T) {
	cases := []struct {
		url  string
		want types.ContentType
		ext  string
	}{
		{"https://example.com/", types.ContentHTML, ""},
		{"https://example.com/page", types.ContentHTML, ""},
		{"https://example.com/page.html", types.ContentHTML, ".html"},
		{"https://example.com/doc.PDF", types.ContentPDF, ".pdf"},
		{"https://example.com/pic.jpeg", types.ContentImage, ".jpeg"},
		{"https://example.com/data.json", types.ContentData, ".json"},
		{"https://example.com/site.css", types.ContentStylesheet, ".css"},
		{"https://example.com/app.js", types.ContentScript, ".js"},
		{"https://example.com/font.woff2", types.ContentFont, ".woff2"},
		{"https://example.com/dump.sqlite", types.ContentOther, ".sqlite"},
		{"https://example.com/dir/", types.ContentHTML, ""},
	}
	for _, tc := range cases {
		ct, ext := ClassifyURL(tc.url)
		if ct != tc.want || ext != tc.ext {
			t.Errorf("ClassifyURL(%q) = (%s, %q), want (%s, %q)", tc.url, ct, ext, tc.want, tc.ext)
		}
	}
}
