package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// --- Seed file ---

func TestLoadSeedsArray(t *testing.T) {
	path := writeFile(t, "seeds.json",
		`["https://example.com", "ftp://skip.me", "http://other.org/page"]`)

	seeds, err := LoadSeeds(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(seeds) != 2 {
		t.Fatalf("expected 2 seeds, got %d: %v", len(seeds), seeds)
	}
	if seeds[0] != "https://example.com" || seeds[1] != "http://other.org/page" {
		t.Errorf("unexpected seeds: %v", seeds)
	}
}

func TestLoadSeedsKeyedObject(t *testing.T) {
	for _, key := range []string{"urls", "websites", "links", "targets", "domains", "tasks"} {
		path := writeFile(t, "seeds.json", `{"`+key+`": ["https://example.com"]}`)
		seeds, err := LoadSeeds(path)
		if err != nil {
			t.Fatalf("key %q: %v", key, err)
		}
		if len(seeds) != 1 {
			t.Errorf("key %q: expected 1 seed, got %v", key, seeds)
		}
	}
}

func TestLoadSeedsUnknownShape(t *testing.T) {
	path := writeFile(t, "seeds.json", `{"pages": ["https://example.com"]}`)
	if _, err := LoadSeeds(path); err == nil {
		t.Error("expected error for object without a known seed field")
	}
}

func TestLoadSeedsFiltersNonHTTP(t *testing.T) {
	path := writeFile(t, "seeds.json",
		`{"urls": ["https://a.com", "  https://b.com  ", "gopher://c.com", "b.com"]}`)
	seeds, err := LoadSeeds(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(seeds) != 2 {
		t.Errorf("expected 2 seeds after filtering, got %v", seeds)
	}
}

// --- Databases file ---

const backendJSON = `{
	"name": "crawl-01",
	"url": "libsql://crawl-01.example.turso.io",
	"auth_token": "tok",
	"apikey": "key",
	"organization": "acme",
	"cat": 2,
	"monthly_write_limit": 10000000,
	"storage_quota_gb": 5
}`

func TestLoadBackendsArray(t *testing.T) {
	path := writeFile(t, "databases.json", `[`+backendJSON+`]`)
	descs, err := LoadBackends(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(descs) != 1 {
		t.Fatalf("expected 1 descriptor, got %d", len(descs))
	}
	d := descs[0]
	if d.Name != "crawl-01" || d.Cat != CatCrawl || d.StorageQuotaGB != 5 {
		t.Errorf("unexpected descriptor: %+v", d)
	}
}

func TestLoadBackendsWrapped(t *testing.T) {
	path := writeFile(t, "databases.json", `{"databases": [`+backendJSON+`]}`)
	descs, err := LoadBackends(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(descs) != 1 || descs[0].Organization != "acme" {
		t.Errorf("unexpected descriptors: %+v", descs)
	}
}

func TestLoadBackendsRejectsBadCat(t *testing.T) {
	path := writeFile(t, "databases.json",
		`[{"name": "x", "url": "libsql://x", "cat": 9}]`)
	if _, err := LoadBackends(path); err == nil {
		t.Error("expected error for unknown cat")
	}
}

func TestLoadBackendsRejectsMissingName(t *testing.T) {
	path := writeFile(t, "databases.json", `[{"url": "libsql://x", "cat": 1}]`)
	if _, err := LoadBackends(path); err == nil {
		t.Error("expected error for missing name")
	}
}

func TestLoadBackendsRejectsEmpty(t *testing.T) {
	path := writeFile(t, "databases.json", `[]`)
	if _, err := LoadBackends(path); err == nil {
		t.Error("expected error for empty descriptor list")
	}
}

// --- Config load & validation ---

func TestDefaultConfigValidates(t *testing.T) {
	if err := Validate(DefaultConfig()); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestValidateRejects(t *testing.T) {
	mutations := map[string]func(*Config){
		"zero concurrency":  func(c *Config) { c.Crawler.MaxConcurrent = 0 },
		"huge concurrency":  func(c *Config) { c.Crawler.MaxConcurrent = 500 },
		"zero batch":        func(c *Config) { c.Crawler.BatchSize = 0 },
		"no user agents":    func(c *Config) { c.Fetcher.UserAgents = nil },
		"zero storage":      func(c *Config) { c.Router.StorageLimitBytes = 0 },
		"bad log level":     func(c *Config) { c.Logging.Level = "loud" },
		"inverted delays":   func(c *Config) { c.Discovery.DepthDelayMin = 10; c.Discovery.DepthDelayMax = 1 },
	}
	for name, mutate := range mutations {
		cfg := DefaultConfig()
		mutate(cfg)
		if err := Validate(cfg); err == nil {
			t.Errorf("%s: expected validation error", name)
		}
	}
}

func TestJSONPathOverride(t *testing.T) {
	dbPath := writeFile(t, "databases.json", `[`+backendJSON+`]`)
	t.Setenv("JSONPATH", dbPath)

	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DatabasesPath != dbPath {
		t.Errorf("DatabasesPath = %q, want %q", cfg.DatabasesPath, dbPath)
	}
}
