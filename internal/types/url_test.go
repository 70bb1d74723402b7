package types

import "testing"

func TestNormalizeURL(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"https://Example.COM", "https://example.com/"},
		{"HTTP://example.com/path", "http://example.com/path"},
		{"https://example.com/page#section", "https://example.com/page"},
		{"https://example.com/?b=2&a=1", "https://example.com/?a=1&b=2"},
		{"  https://example.com/x  ", "https://example.com/x"},
		{"https://example.com/a?z=1&z=0", "https://example.com/a?z=0&z=1"},
	}
	for _, tc := range cases {
		got, err := NormalizeURL(tc.in)
		if err != nil {
			t.Fatalf("NormalizeURL(%q): unexpected error %v", tc.in, err)
		}
		if got != tc.want {
			t.Errorf("NormalizeURL(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNormalizeURLIdempotent(t *testing.T) {
	in := "https://Example.com/Path?b=2&a=1#frag"
	once, err := NormalizeURL(in)
	if err != nil {
		t.Fatal(err)
	}
	twice, err := NormalizeURL(once)
	if err != nil {
		t.Fatal(err)
	}
	if once != twice {
		t.Errorf("not idempotent: %q then %q", once, twice)
	}
}

func TestNormalizeURLRejects(t *testing.T) {
	for _, in := range []string{
		"ftp://example.com/file",
		"mailto:user@example.com",
		"javascript:void(0)",
		"/relative/path",
		"",
	} {
		if _, err := NormalizeURL(in); err == nil {
			t.Errorf("NormalizeURL(%q) succeeded, want error", in)
		}
	}
}

func TestHost(t *testing.T) {
	if got := Host("https://WWW.Example.com:8080/page"); got != "www.example.com" {
		t.Errorf("Host = %q, want www.example.com", got)
	}
	if got := Host("://bad"); got != "" {
		t.Errorf("Host on invalid URL = %q, want empty", got)
	}
}

func TestValidCrawlURL(t *testing.T) {
	if !ValidCrawlURL("https://example.com") {
		t.Error("expected https URL to be valid")
	}
	if ValidCrawlURL("ftp://example.com") {
		t.Error("expected ftp URL to be invalid")
	}
	if ValidCrawlURL("not a url") {
		t.Error("expected garbage to be invalid")
	}
}
