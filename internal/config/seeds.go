package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// seedKeys are the object fields accepted in seed_urls.json, in lookup order.
var seedKeys = []string{"urls", "websites", "links", "targets", "domains", "tasks"}

// LoadSeeds reads seed_urls.json: either a bare array of URL strings or an
// object whose urls/websites/links/targets/domains/tasks field is such an
// array. Entries that are not absolute http(s) URLs are dropped.
func LoadSeeds(path string) ([]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}

	var direct []string
	if err := json.Unmarshal(raw, &direct); err == nil {
		return filterSeeds(direct), nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, fmt.Errorf("parse seed file %s: %w", path, err)
	}
	for _, key := range seedKeys {
		rawList, ok := obj[key]
		if !ok {
			continue
		}
		var list []string
		if err := json.Unmarshal(rawList, &list); err != nil {
			return nil, fmt.Errorf("seed file field %q is not a string array: %w", key, err)
		}
		return filterSeeds(list), nil
	}
	return nil, fmt.Errorf("seed file %s has none of the expected fields (%s)", path, strings.Join(seedKeys, "|"))
}

func filterSeeds(urls []string) []string {
	var out []string
	for _, u := range urls {
		u = strings.TrimSpace(u)
		if strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://") {
			out = append(out, u)
		}
	}
	return out
}
