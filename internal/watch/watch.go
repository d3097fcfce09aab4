// Package watch turns filesystem events under the session log tree into
// coalesced change signals.
package watch

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// DirLister returns the project directories to watch.
type DirLister func() ([]string, error)

// Watcher watches the root directory and every project directory beneath it.
// Project directories created later are picked up as they appear.
type Watcher struct {
	root    string
	list    DirLister
	fsw     *fsnotify.Watcher
	changes chan struct{}

	mu       sync.Mutex
	watching map[string]bool
}

// New starts watching root and the directories returned by list. A missing
// root is not an error; nothing is watched until the process restarts, and
// periodic rescans still run.
func New(root string, list DirLister) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	w := &Watcher{
		root:     root,
		list:     list,
		fsw:      fsw,
		changes:  make(chan struct{}, 1),
		watching: make(map[string]bool),
	}

	if _, err := os.Stat(root); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			log.Printf("watch: %s does not exist, relying on rescans", root)
			return w, nil
		}
		fsw.Close()
		return nil, fmt.Errorf("stat root: %w", err)
	}
	if err := w.add(root); err != nil {
		fsw.Close()
		return nil, err
	}
	w.addProjects()
	return w, nil
}

// Changes receives a signal whenever a session log may have changed. Bursts
// coalesce into one pending signal.
func (w *Watcher) Changes() <-chan struct{} {
	return w.changes
}

// Watched returns the number of watched directories.
func (w *Watcher) Watched() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.watching)
}

// Run forwards events until ctx is done or the watcher is closed.
func (w *Watcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handle(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			log.Printf("watch: %v", err)
		}
	}
}

// Close stops watching.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

func (w *Watcher) handle(ev fsnotify.Event) {
	if filepath.Dir(ev.Name) == filepath.Clean(w.root) {
		switch {
		case ev.Has(fsnotify.Create):
			if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
				w.addProjects()
				w.signal()
			}
			return
		case ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename):
			if w.forget(ev.Name) {
				w.signal()
				return
			}
		}
	}
	if !strings.HasSuffix(ev.Name, ".jsonl") {
		return
	}
	if ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write) || ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
		w.signal()
	}
}

func (w *Watcher) signal() {
	select {
	case w.changes <- struct{}{}:
	default:
	}
}

func (w *Watcher) addProjects() {
	dirs, err := w.list()
	if err != nil {
		log.Printf("watch: list projects: %v", err)
		return
	}
	for _, d := range dirs {
		if err := w.add(d); err != nil {
			log.Printf("watch: %v", err)
		}
	}
}

// forget drops a project directory that was removed or renamed away, so a
// directory recreated under the same name is watched again. It reports
// whether dir was being watched.
func (w *Watcher) forget(dir string) bool {
	dir = filepath.Clean(dir)
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.watching[dir] {
		return false
	}
	delete(w.watching, dir)
	// The kernel watch is usually gone already.
	_ = w.fsw.Remove(dir)
	return true
}

func (w *Watcher) add(dir string) error {
	dir = filepath.Clean(dir)
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.watching[dir] {
		return nil
	}
	if err := w.fsw.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	w.watching[dir] = true
	return nil
}
