package store

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Backfill log results.
const (
	ResultStarted     = "started"
	ResultSuccess     = "success"
	ResultRateLimited = "rate_limited"
	ResultFailed      = "failed"
	ResultFallback    = "fallback"
	ResultLocal       = "local"
	ResultComplete    = "complete"
)

// LogEntry is one backfill outcome.
type LogEntry struct {
	Time        time.Time
	RunID       string
	Date        string
	Attempt     int
	MaxAttempts int
	Result      string
	Status      int // upstream HTTP status, 0 when none
	Detail      string
}

// Line renders the entry as a single plain-text line without the newline.
func (e LogEntry) Line() string {
	var b strings.Builder
	b.WriteString(e.Time.UTC().Format(time.RFC3339))
	if e.RunID != "" {
		fmt.Fprintf(&b, " run=%s", e.RunID)
	}
	if e.Date != "" {
		fmt.Fprintf(&b, " day=%s", e.Date)
	}
	if e.Attempt > 0 {
		fmt.Fprintf(&b, " attempt=%d/%d", e.Attempt, e.MaxAttempts)
	}
	fmt.Fprintf(&b, " result=%s", e.Result)
	if e.Status != 0 {
		fmt.Fprintf(&b, " status=%d", e.Status)
	}
	if e.Detail != "" {
		fmt.Fprintf(&b, " detail=%q", e.Detail)
	}
	return b.String()
}

// BackfillLog appends one line per backfill outcome to a plain-text file.
type BackfillLog struct {
	path string
	mu   sync.Mutex
}

// NewBackfillLog returns a log writing to path. The parent directory is
// created on first Append; an existing file is never truncated.
func NewBackfillLog(path string) *BackfillLog {
	return &BackfillLog{path: path}
}

// Path returns the log file path.
func (l *BackfillLog) Path() string {
	return l.path
}

// Append writes one entry. A zero Time is set to now.
func (l *BackfillLog) Append(e LogEntry) error {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	line := e.Line() + "\n"

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("write log entry: %w", err)
	}
	return nil
}

// Tail returns the last n lines, oldest first. n <= 0 returns every line.
// A missing file yields an empty slice.
func (l *BackfillLog) Tail(n int) ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.Open(l.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	lines := []string{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if line := scanner.Text(); line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read log file: %w", err)
	}

	if n > 0 && len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines, nil
}
