// Package scan walks the session log tree and keeps parsed sessions cached by
// file modification time.
package scan

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/hpungsan/daybook/internal/session"
	"github.com/hpungsan/daybook/internal/transcript"
)

const (
	logSuffix   = ".jsonl"
	agentPrefix = "agent-"
)

// Options configures a Loader.
type Options struct {
	// Root holds one subdirectory per project.
	Root string

	// Home is used to shorten project names. Empty disables home stripping.
	Home string

	// Excluded are case-insensitive substrings of project directory names to skip.
	Excluded []string

	// Filters defaults to transcript.DefaultFilters().
	Filters *transcript.Filters
}

// Report describes one scan.
type Report struct {
	Files     int           `json:"files"`
	Parsed    int           `json:"parsed"`
	CacheHits int           `json:"cache_hits"`
	Evicted   int           `json:"evicted"`
	Skipped   int           `json:"skipped"`
	Sessions  int           `json:"sessions"`
	Duration  time.Duration `json:"duration"`
}

func (r Report) String() string {
	return fmt.Sprintf("files=%d parsed=%d hits=%d evicted=%d skipped=%d sessions=%d in %s",
		r.Files, r.Parsed, r.CacheHits, r.Evicted, r.Skipped, r.Sessions, r.Duration.Round(time.Millisecond))
}

type cacheEntry struct {
	modTime time.Time
	session *session.Session // nil when the file was parsed but not retained
}

// Loader owns the session cache. Load is serialized: a second caller waits for
// the scan in flight.
type Loader struct {
	root     string
	home     string
	excluded []string
	filters  *transcript.Filters

	mu    sync.Mutex
	cache map[string]cacheEntry
}

// NewLoader creates a Loader with an empty cache.
func NewLoader(opts Options) *Loader {
	f := opts.Filters
	if f == nil {
		f = transcript.DefaultFilters()
	}
	excluded := make([]string, 0, len(opts.Excluded))
	for _, e := range opts.Excluded {
		if e = strings.TrimSpace(e); e != "" {
			excluded = append(excluded, strings.ToLower(e))
		}
	}
	return &Loader{
		root:     opts.Root,
		home:     opts.Home,
		excluded: excluded,
		filters:  f,
		cache:    make(map[string]cacheEntry),
	}
}

// Root returns the scanned directory.
func (l *Loader) Root() string {
	return l.root
}

// Load scans every project directory and returns the retained sessions.
// Unchanged files are served from cache without being read. A missing root
// yields no sessions and no error. Unreadable files are skipped.
func (l *Loader) Load(ctx context.Context) ([]session.Session, Report, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	start := time.Now()
	var rep Report
	seen := make(map[string]bool)

	projects, err := l.projectDirs()
	if err != nil {
		return nil, rep, err
	}

	var out []session.Session
	for _, dir := range projects {
		if err := ctx.Err(); err != nil {
			return nil, rep, err
		}

		dirPath := filepath.Join(l.root, dir)
		entries, err := os.ReadDir(dirPath)
		if err != nil {
			log.Printf("scan: skip project %s: %v", dir, err)
			rep.Skipped++
			continue
		}

		projectName := session.ProjectName(dir, l.home)
		for _, fe := range entries {
			name := fe.Name()
			if fe.IsDir() || !strings.HasSuffix(name, logSuffix) || strings.HasPrefix(name, agentPrefix) {
				continue
			}
			rep.Files++

			path := filepath.Join(dirPath, name)
			info, err := fe.Info()
			if err != nil {
				log.Printf("scan: skip %s: %v", path, err)
				rep.Skipped++
				continue
			}

			if cached, ok := l.cache[path]; ok && cached.modTime.Equal(info.ModTime()) {
				seen[path] = true
				rep.CacheHits++
				if cached.session != nil {
					out = append(out, *cached.session)
				}
				continue
			}

			data, err := os.ReadFile(path)
			if err != nil {
				log.Printf("scan: skip %s: %v", path, err)
				rep.Skipped++
				continue
			}
			seen[path] = true
			rep.Parsed++

			s := session.Parse(data, l.filters)
			if !session.Retained(s) {
				s = nil
			} else {
				s.ID = strings.TrimSuffix(name, logSuffix)
				s.ProjectPath = dir
				s.ProjectName = projectName
				out = append(out, *s)
			}
			l.cache[path] = cacheEntry{modTime: info.ModTime(), session: s}
		}
	}

	for path := range l.cache {
		if !seen[path] {
			delete(l.cache, path)
			rep.Evicted++
		}
	}

	rep.Sessions = len(out)
	rep.Duration = time.Since(start)
	return out, rep, nil
}

// ProjectDirs returns the absolute paths of the project directories a scan
// would visit.
func (l *Loader) ProjectDirs() ([]string, error) {
	dirs, err := l.projectDirs()
	if err != nil {
		return nil, err
	}
	out := make([]string, len(dirs))
	for i, d := range dirs {
		out[i] = filepath.Join(l.root, d)
	}
	return out, nil
}

// Excluded reports whether a project directory name matches an exclusion.
func (l *Loader) Excluded(dir string) bool {
	lower := strings.ToLower(dir)
	for _, e := range l.excluded {
		if strings.Contains(lower, e) {
			return true
		}
	}
	return false
}

func (l *Loader) projectDirs() ([]string, error) {
	entries, err := os.ReadDir(l.root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read sessions dir: %w", err)
	}

	var dirs []string
	for _, e := range entries {
		if !e.IsDir() || l.Excluded(e.Name()) {
			continue
		}
		dirs = append(dirs, e.Name())
	}
	return dirs, nil
}
