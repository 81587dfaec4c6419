package watcher

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Event names a file under the sync dir that changed and may need an
// upload. Paths are absolute.
type Event struct {
	AbsPath string
}

// debounce is how long a path must stay quiet before it is reported.
// Editors write files in bursts; uploading mid-burst wastes a
// negotiation on a half-written file.
const debounce = 500 * time.Millisecond

// Watcher tails a directory tree recursively with fsnotify and
// reports settled file changes. fsnotify does not recurse, so newly
// created directories are added to the watch set as they appear.
type Watcher struct {
	root    string
	fsw     *fsnotify.Watcher
	Events  chan Event
	pending map[string]time.Time
}

// New builds a watcher over the sync root and its current subtree.
func New(root string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		root:    root,
		fsw:     fsw,
		Events:  make(chan Event, 64),
		pending: make(map[string]time.Time),
	}
	if err := w.addTree(root); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	return w, nil
}

func (w *Watcher) addTree(dir string) error {
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if isHidden(info.Name()) && path != w.root {
				return filepath.SkipDir
			}
			return w.fsw.Add(path)
		}
		return nil
	})
}

// Run pumps fsnotify events until the context ends, flushing settled
// paths onto Events.
func (w *Watcher) Run(ctx context.Context) {
	defer w.fsw.Close()
	ticker := time.NewTicker(debounce / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			log.Printf("watcher error: %v", err)
		case now := <-ticker.C:
			w.flush(now)
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	name := filepath.Base(event.Name)
	if isHidden(name) || strings.HasSuffix(name, ".tmp") {
		return
	}
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename|fsnotify.Remove) == 0 {
		return
	}

	info, err := os.Stat(event.Name)
	if err != nil {
		// Gone from disk. Report it anyway so local bookkeeping for
		// the path can be dropped.
		if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
			w.pending[event.Name] = time.Now()
		}
		return
	}
	if info.IsDir() {
		if event.Op&fsnotify.Create != 0 {
			if err := w.addTree(event.Name); err != nil {
				log.Printf("watch new dir %s: %v", event.Name, err)
			}
		}
		return
	}
	w.pending[event.Name] = time.Now()
}

func (w *Watcher) flush(now time.Time) {
	for path, last := range w.pending {
		if now.Sub(last) < debounce {
			continue
		}
		delete(w.pending, path)
		select {
		case w.Events <- Event{AbsPath: path}:
		default:
			// Channel full; the initial-scan fallback picks it up.
			log.Printf("watcher: dropping event for %s", path)
		}
	}
}

// isHidden filters dotfiles and the local state dirs.
func isHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}

// Scan walks the sync root and reports every regular file, used at
// startup to catch changes made while the daemon was down.
func Scan(root string, visit func(absPath string) error) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if isHidden(info.Name()) && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		if isHidden(info.Name()) || strings.HasSuffix(info.Name(), ".tmp") {
			return nil
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		return visit(path)
	})
}
