// Package watcher observes the resume drop directory and reports files
// once their writes have settled.
package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultQuiescence is how long a file's size and mtime must stay
// unchanged before it counts as fully written.
const DefaultQuiescence = time.Second

// ignoredSuffixes are partial-download artifacts browsers and sync tools
// leave next to the real file.
var ignoredSuffixes = []string{".part", ".crdownload", ".tmp", ".download"}

// DiscoveredFunc receives one stable file. initial marks files found by the
// startup scan; those feed the manifest but are not published as events.
type DiscoveredFunc func(absPath string, initial bool)

// Watcher emits a discovery for every matching file in dir, both the ones
// present at startup and the ones added later. Writes are debounced: a file
// is reported only after a quiescence window with no size/mtime change,
// avoiding partial-file reads.
type Watcher struct {
	dir          string
	quiesce      time.Duration
	onDiscovered DiscoveredFunc
	logger       *slog.Logger

	fsw *fsnotify.Watcher

	mu      sync.Mutex
	pending map[string]candidate

	done chan struct{}
}

// candidate is a file waiting out its quiescence window.
type candidate struct {
	size    int64
	mtime   time.Time
	since   time.Time
	initial bool
}

// New creates a Watcher for dir. quiesce <= 0 uses DefaultQuiescence.
func New(dir string, quiesce time.Duration, onDiscovered DiscoveredFunc) *Watcher {
	if quiesce <= 0 {
		quiesce = DefaultQuiescence
	}
	return &Watcher{
		dir:          dir,
		quiesce:      quiesce,
		onDiscovered: onDiscovered,
		logger:       slog.Default(),
		pending:      make(map[string]candidate),
		done:         make(chan struct{}),
	}
}

// Start scans dir for pre-existing files and begins watching for new ones.
// It returns after the scan; discoveries arrive on the callback once files
// settle. The watcher stops when ctx is cancelled.
func (w *Watcher) Start(ctx context.Context) error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("creating watch directory: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating fs watcher: %w", err)
	}
	if err := fsw.Add(w.dir); err != nil {
		fsw.Close()
		return fmt.Errorf("watching %s: %w", w.dir, err)
	}
	w.fsw = fsw

	entries, err := os.ReadDir(w.dir)
	if err != nil {
		fsw.Close()
		return fmt.Errorf("scanning %s: %w", w.dir, err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !eligible(entry.Name()) {
			continue
		}
		w.note(filepath.Join(w.dir, entry.Name()), true)
	}

	go w.run(ctx)
	return nil
}

// Done is closed once the watcher loop has exited.
func (w *Watcher) Done() <-chan struct{} {
	return w.done
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.done)
	defer w.fsw.Close()

	tick := w.quiesce / 4
	if tick < 50*time.Millisecond {
		tick = 50 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Error("fs watcher error", "error", err)

		case <-ticker.C:
			w.settle()
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	name := filepath.Base(event.Name)
	if !eligible(name) {
		return
	}

	switch {
	case event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) != 0:
		w.note(event.Name, false)
	case event.Op&fsnotify.Remove != 0:
		w.mu.Lock()
		delete(w.pending, event.Name)
		w.mu.Unlock()
	}
}

// note records a file as a discovery candidate, resetting its quiescence
// window when size or mtime moved.
func (w *Watcher) note(path string, initial bool) {
	info, err := os.Stat(path)
	if err != nil {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	prev, known := w.pending[path]
	if known && prev.size == info.Size() && prev.mtime.Equal(info.ModTime()) {
		return
	}
	w.pending[path] = candidate{
		size:    info.Size(),
		mtime:   info.ModTime(),
		since:   time.Now(),
		initial: initial || (known && prev.initial),
	}
}

// settle promotes candidates whose window has elapsed without change.
func (w *Watcher) settle() {
	now := time.Now()

	w.mu.Lock()
	var ready []string
	var initials []bool
	for path, c := range w.pending {
		info, err := os.Stat(path)
		if err != nil {
			delete(w.pending, path)
			continue
		}
		if info.Size() != c.size || !info.ModTime().Equal(c.mtime) {
			w.pending[path] = candidate{size: info.Size(), mtime: info.ModTime(), since: now, initial: c.initial}
			continue
		}
		if now.Sub(c.since) >= w.quiesce {
			delete(w.pending, path)
			ready = append(ready, path)
			initials = append(initials, c.initial)
		}
	}
	w.mu.Unlock()

	for i, path := range ready {
		w.onDiscovered(path, initials[i])
	}
}

// eligible filters to the domain file type, skipping hidden files and
// partial-download artifacts.
func eligible(name string) bool {
	if strings.HasPrefix(name, ".") {
		return false
	}
	lower := strings.ToLower(name)
	for _, suffix := range ignoredSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return false
		}
	}
	return strings.HasSuffix(lower, ".pdf")
}
