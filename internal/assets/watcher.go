package assets

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bep/debounce"
	"github.com/fsnotify/fsnotify"
)

// DefaultQuietPeriod is how long the tree must stay still before a batch of
// changes is delivered. Editors write a file several times per save.
const DefaultQuietPeriod = 100 * time.Millisecond

// Watcher follows an asset root recursively and reports changed paths,
// relative to the root, in batches.
type Watcher struct {
	root     string
	onChange func(paths []string)
	debounce func(f func())

	mu      sync.Mutex
	fw      *fsnotify.Watcher
	pending map[string]struct{}
	done    chan struct{}
	stopped bool
	wg      sync.WaitGroup
}

// NewWatcher prepares a watcher for root. Nothing is watched until Start.
func NewWatcher(root string, quiet time.Duration, onChange func(paths []string)) *Watcher {
	if quiet <= 0 {
		quiet = DefaultQuietPeriod
	}
	return &Watcher{
		root:     root,
		onChange: onChange,
		debounce: debounce.New(quiet),
		pending:  make(map[string]struct{}),
	}
}

func (w *Watcher) Name() string { return "asset-watcher" }

// Start adds every non-hidden directory under the root and begins
// delivering batches.
func (w *Watcher) Start(context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}

	err = filepath.WalkDir(w.root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if path == w.root {
				return err
			}
			return nil // unreadable subtrees are skipped
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.root && isHidden(d.Name()) {
			return filepath.SkipDir
		}
		return fw.Add(path)
	})
	if err != nil {
		fw.Close()
		return fmt.Errorf("watch %s: %w", w.root, err)
	}

	w.mu.Lock()
	w.fw = fw
	w.done = make(chan struct{})
	w.stopped = false
	w.mu.Unlock()

	w.wg.Add(1)
	go w.loop(fw, w.done)
	return nil
}

// Stop ends monitoring. Safe to call more than once.
func (w *Watcher) Stop(context.Context) error {
	w.mu.Lock()
	if w.stopped || w.fw == nil {
		w.stopped = true
		w.mu.Unlock()
		return nil
	}
	w.stopped = true
	close(w.done)
	fw := w.fw
	w.mu.Unlock()

	err := fw.Close()
	w.wg.Wait()
	return err
}

func (w *Watcher) loop(fw *fsnotify.Watcher, done <-chan struct{}) {
	defer w.wg.Done()
	for {
		select {
		case event, ok := <-fw.Events:
			if !ok {
				return
			}
			w.handle(fw, event)
		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			log.Printf("WARN: asset watcher error: %v", err)
		case <-done:
			return
		}
	}
}

func (w *Watcher) handle(fw *fsnotify.Watcher, event fsnotify.Event) {
	rel, err := filepath.Rel(w.root, event.Name)
	if err != nil || hasHiddenSegment(rel) {
		return
	}

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := fw.Add(event.Name); err != nil {
				log.Printf("WARN: failed to watch new directory %s: %v", event.Name, err)
			}
		}
	}

	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return
	}

	w.mu.Lock()
	w.pending[filepath.ToSlash(rel)] = struct{}{}
	w.mu.Unlock()
	w.debounce(w.flush)
}

func (w *Watcher) flush() {
	w.mu.Lock()
	if w.stopped || len(w.pending) == 0 {
		w.mu.Unlock()
		return
	}
	paths := make([]string, 0, len(w.pending))
	for p := range w.pending {
		paths = append(paths, p)
	}
	w.pending = make(map[string]struct{})
	w.mu.Unlock()

	sort.Strings(paths)
	if w.onChange != nil {
		w.onChange(paths)
	}
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".") && name != "." && name != ".."
}

func hasHiddenSegment(rel string) bool {
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		if isHidden(part) {
			return true
		}
	}
	return false
}
