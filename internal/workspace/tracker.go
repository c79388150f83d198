package workspace

import (
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	gitignore "github.com/sabhiram/go-gitignore"
)

// defaultIgnores are never reported even when the workspace has no
// .gitignore of its own.
var defaultIgnores = []string{
	".git/",
	".cowork/",
	"node_modules/",
	"__pycache__/",
	"*.swp",
	"*.tmp",
	".DS_Store",
}

// Tracker watches a task workspace and records which files the run created
// or modified. The executor reads the snapshots for artifact evidence; the
// daemon streams batches to the UI as files_changed events.
type Tracker struct {
	root     string
	watcher  *fsnotify.Watcher
	matcher  *gitignore.GitIgnore
	debounce time.Duration
	onBatch  func(created, changed []string)

	mu       sync.Mutex
	created  map[string]bool
	changed  map[string]bool
	pendingC map[string]bool // created since the last flush
	pendingM map[string]bool // modified since the last flush

	done chan struct{}
	wg   sync.WaitGroup
}

// NewTracker builds a tracker rooted at dir. The workspace's .gitignore, if
// present, extends the default ignore set.
func NewTracker(dir string) (*Tracker, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	patterns := append([]string(nil), defaultIgnores...)
	if data, err := os.ReadFile(filepath.Join(dir, ".gitignore")); err == nil {
		for _, line := range strings.Split(string(data), "\n") {
			line = strings.TrimSpace(line)
			if line != "" && !strings.HasPrefix(line, "#") {
				patterns = append(patterns, line)
			}
		}
	}

	return &Tracker{
		root:     dir,
		watcher:  watcher,
		matcher:  gitignore.CompileIgnoreLines(patterns...),
		debounce: 500 * time.Millisecond,
		created:  make(map[string]bool),
		changed:  make(map[string]bool),
		pendingC: make(map[string]bool),
		pendingM: make(map[string]bool),
		done:     make(chan struct{}),
	}, nil
}

// OnBatch registers a callback fired after each debounce window that saw
// changes. Set before Start.
func (t *Tracker) OnBatch(fn func(created, changed []string)) {
	t.onBatch = fn
}

// Start begins watching the workspace tree.
func (t *Tracker) Start() error {
	err := filepath.WalkDir(t.root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		rel, rerr := filepath.Rel(t.root, path)
		if rerr != nil {
			return nil
		}
		if rel != "." && t.matcher.MatchesPath(rel) {
			return filepath.SkipDir
		}
		if werr := t.watcher.Add(path); werr != nil {
			log.Printf("⚠️  failed to watch %s: %v", path, werr)
		}
		return nil
	})
	if err != nil {
		return err
	}

	t.wg.Add(2)
	go t.eventLoop()
	go t.flushLoop()
	return nil
}

// Stop ends watching and flushes nothing further.
func (t *Tracker) Stop() error {
	close(t.done)
	err := t.watcher.Close()
	t.wg.Wait()
	return err
}

// CreatedFiles returns the files created since the tracker started, sorted.
func (t *Tracker) CreatedFiles() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return sortedKeys(t.created)
}

// ChangedFiles returns files modified (but not created) during the run.
func (t *Tracker) ChangedFiles() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return sortedKeys(t.changed)
}

func (t *Tracker) eventLoop() {
	defer t.wg.Done()
	for {
		select {
		case <-t.done:
			return
		case event, ok := <-t.watcher.Events:
			if !ok {
				return
			}
			t.handleEvent(event)
		case err, ok := <-t.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("⚠️  workspace watcher error: %v", err)
		}
	}
}

func (t *Tracker) handleEvent(event fsnotify.Event) {
	rel, err := filepath.Rel(t.root, event.Name)
	if err != nil || t.matcher.MatchesPath(rel) {
		return
	}

	if event.Has(fsnotify.Create) {
		if info, serr := os.Stat(event.Name); serr == nil && info.IsDir() {
			// New directories get watched; files inside them report next.
			if werr := t.watcher.Add(event.Name); werr != nil {
				log.Printf("⚠️  failed to watch new directory %s: %v", event.Name, werr)
			}
			return
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	switch {
	case event.Has(fsnotify.Create):
		t.created[rel] = true
		t.pendingC[rel] = true
	case event.Has(fsnotify.Write):
		if !t.created[rel] {
			t.changed[rel] = true
		}
		t.pendingM[rel] = true
	case event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename):
		// A deleted file is no longer evidence of anything.
		delete(t.created, rel)
		delete(t.changed, rel)
	}
}

func (t *Tracker) flushLoop() {
	defer t.wg.Done()
	ticker := time.NewTicker(t.debounce)
	defer ticker.Stop()
	for {
		select {
		case <-t.done:
			return
		case <-ticker.C:
			t.flush()
		}
	}
}

func (t *Tracker) flush() {
	t.mu.Lock()
	if len(t.pendingC) == 0 && len(t.pendingM) == 0 {
		t.mu.Unlock()
		return
	}
	created := sortedKeys(t.pendingC)
	changed := sortedKeys(t.pendingM)
	t.pendingC = make(map[string]bool)
	t.pendingM = make(map[string]bool)
	cb := t.onBatch
	t.mu.Unlock()

	if cb != nil {
		cb(created, changed)
	}
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
