package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// Backend categories in databases.json.
const (
	CatBacklink = 1
	CatCrawl    = 2
)

// BackendDescriptor is one entry of databases.json.
type BackendDescriptor struct {
	Name              string `json:"name"`
	URL               string `json:"url"`
	AuthToken         string `json:"auth_token"`
	APIKey            string `json:"apikey"`
	Organization      string `json:"organization"`
	Cat               int    `json:"cat"`
	MonthlyWriteLimit int64  `json:"monthly_write_limit"`
	StorageQuotaGB    int64  `json:"storage_quota_gb"`
}

// LoadBackends reads databases.json, which is either a top-level array or an
// object with a "databases" key.
func LoadBackends(path string) ([]BackendDescriptor, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read databases file: %w", err)
	}

	var direct []BackendDescriptor
	if err := json.Unmarshal(raw, &direct); err == nil {
		return validateBackends(direct)
	}

	var wrapped struct {
		Databases []BackendDescriptor `json:"databases"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, fmt.Errorf("parse databases file %s: %w", path, err)
	}
	return validateBackends(wrapped.Databases)
}

func validateBackends(descs []BackendDescriptor) ([]BackendDescriptor, error) {
	if len(descs) == 0 {
		return nil, fmt.Errorf("no database descriptors configured")
	}
	for i, d := range descs {
		if d.Name == "" || d.URL == "" {
			return nil, fmt.Errorf("database descriptor %d is missing name or url", i)
		}
		if d.Cat != CatBacklink && d.Cat != CatCrawl {
			return nil, fmt.Errorf("database %q has unknown cat %d", d.Name, d.Cat)
		}
	}
	return descs, nil
}
