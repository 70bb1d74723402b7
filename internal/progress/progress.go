// Package progress persists batch-crawl state to a local JSON file so an
// interrupted run resumes from the next unprocessed page. The file is a terse
// mirror of the session row: restart works even when every backend is
// temporarily unreachable.
package progress

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// State is the contents of crawl_progress.json. CurrentPage is the next page
// to process, not the last completed one.
type State struct {
	CurrentPage      int    `json:"current_page"`
	BatchSize        int    `json:"batch_size"`
	TotalURLs        int    `json:"total_urls"`
	URLsProcessed    int    `json:"urls_processed"`
	SuccessfulCrawls int    `json:"successful_crawls"`
	FailedCrawls     int    `json:"failed_crawls"`
	LastUpdate       string `json:"last_update"`
	SessionID        int64  `json:"session_id"`
	DBName           string `json:"db_name"`
	IsRunning        bool   `json:"is_running"`
}

// defaultState returns a fresh progress state starting at page 1.
func defaultState() State {
	return State{
		CurrentPage: 1,
		BatchSize:   50,
	}
}

// Store loads and saves the progress file.
type Store struct {
	path string
}

// NewStore creates a Store for the given file path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Load reads the progress file, merging with defaults so newly added fields
// are tolerated. A file left with is_running=true means the previous run
// crashed; it is coerced to false and written back.
func (s *Store) Load() (State, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return defaultState(), nil
		}
		return defaultState(), fmt.Errorf("read progress file: %w", err)
	}

	state := defaultState()
	if err := json.Unmarshal(raw, &state); err != nil {
		return defaultState(), fmt.Errorf("parse progress file %s: %w", s.path, err)
	}

	if state.IsRunning {
		state.IsRunning = false
		if err := s.Save(state); err != nil {
			return state, err
		}
	}
	return state, nil
}

// Save writes the state atomically (temp file + rename), pretty-printed.
func (s *Store) Save(state State) error {
	state.LastUpdate = time.Now().Format(time.RFC3339)

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("encode progress: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".progress-*.tmp")
	if err != nil {
		return fmt.Errorf("create progress temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write progress: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename progress file: %w", err)
	}
	return nil
}

// MarkStart flags the run as active and persists immediately.
func (s *Store) MarkStart(state *State) error {
	state.IsRunning = true
	return s.Save(*state)
}

// MarkStop flags the run as stopped and persists immediately.
func (s *Store) MarkStop(state *State) error {
	state.IsRunning = false
	return s.Save(*state)
}

// CompleteBatch records a finished page: advances CurrentPage to the next
// page and accumulates the batch counters.
func (s *Store) CompleteBatch(state *State, page, processed, successful, failed int) error {
	state.CurrentPage = page + 1
	state.URLsProcessed += processed
	state.SuccessfulCrawls += successful
	state.FailedCrawls += failed
	return s.Save(*state)
}

// Reset overwrites the file with defaults.
func (s *Store) Reset() error {
	return s.Save(defaultState())
}
