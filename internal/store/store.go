// Package store persists one summary file per calendar date.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/hpungsan/daybook/internal/stats"
	"github.com/hpungsan/daybook/internal/summary"
)

const fileExt = ".json"

// Store reads and writes <dir>/<YYYY-MM-DD>.json.
type Store struct {
	dir string
}

// New returns a Store rooted at dir. The directory is created on first Save.
func New(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the summaries directory.
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the file path for a date.
func (s *Store) Path(date string) string {
	return filepath.Join(s.dir, date+fileExt)
}

// LogPath returns the path of the backfill log.
func (s *Store) LogPath() string {
	return filepath.Join(s.dir, "backfill.log")
}

// ValidDate reports whether date is a YYYY-MM-DD calendar date.
func ValidDate(date string) bool {
	_, err := time.Parse(stats.DateLayout, date)
	return err == nil
}

// Load returns the stored summary for date, or nil when the file is missing
// or unreadable. Corrupt files are logged and treated as missing.
func (s *Store) Load(date string) *summary.Summary {
	if !ValidDate(date) {
		return nil
	}
	data, err := os.ReadFile(s.Path(date))
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Printf("store: read %s: %v", date, err)
		}
		return nil
	}

	var sum summary.Summary
	if err := json.Unmarshal(data, &sum); err != nil {
		log.Printf("store: corrupt summary %s: %v", date, err)
		return nil
	}
	if sum.Highlights == nil {
		sum.Highlights = []string{}
	}
	return &sum
}

// Exists reports whether a readable summary is stored for date.
func (s *Store) Exists(date string) bool {
	return s.Load(date) != nil
}

// Save replaces the summary for date. The write goes to a temp file that is
// renamed into place, so readers never see a partial file.
func (s *Store) Save(date string, sum summary.Summary) error {
	if !ValidDate(date) {
		return fmt.Errorf("invalid date %q", date)
	}
	if sum.Highlights == nil {
		sum.Highlights = []string{}
	}
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("create summaries dir: %w", err)
	}

	data, err := json.MarshalIndent(sum, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, "."+date+"-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.Path(date)); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename summary: %w", err)
	}
	return nil
}

// History lists stored dates strictly before today, newest first.
// A missing directory yields an empty list.
func (s *Store) History(today string) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("read summaries dir: %w", err)
	}

	dates := []string{}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		date, ok := strings.CutSuffix(e.Name(), fileExt)
		if !ok || !ValidDate(date) || date >= today {
			continue
		}
		dates = append(dates, date)
	}
	slices.Sort(dates)
	slices.Reverse(dates)
	return dates, nil
}
