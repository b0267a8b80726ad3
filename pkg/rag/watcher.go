package rag

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long a path must stay quiet before its event is emitted.
const DefaultDebounce = 250 * time.Millisecond

// FileEvent reports a corpus file that was created or written.
type FileEvent struct {
	Path string
	ID   string
	Time time.Time
}

// Watcher monitors a corpus directory tree and emits one debounced event per
// changed file that the matcher selects. Removals are ignored: the index is
// add-only.
type Watcher struct {
	root     string
	matcher  *Matcher
	debounce time.Duration
	watcher  *fsnotify.Watcher

	mu      sync.Mutex
	pending map[string]*time.Timer
	events  chan FileEvent
	stopped bool
}

// NewWatcher prepares a watcher on root. Call Start to begin receiving events.
func NewWatcher(root string, patterns []string, debounce time.Duration) (*Watcher, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, &fs.PathError{Op: "watch", Path: root, Err: fs.ErrInvalid}
	}
	matcher, err := NewMatcher(patterns)
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		root:     root,
		matcher:  matcher,
		debounce: debounce,
		watcher:  fw,
		pending:  make(map[string]*time.Timer),
		events:   make(chan FileEvent, 64),
	}, nil
}

// Start registers the directory tree and processes events until ctx ends or
// Stop is called. The returned channel is closed afterwards.
func (w *Watcher) Start(ctx context.Context) (<-chan FileEvent, error) {
	if err := w.addRecursive(w.root); err != nil {
		w.watcher.Close()
		return nil, err
	}
	go w.loop(ctx)
	return w.events, nil
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // Skip paths with errors
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return w.watcher.Add(path)
	})
}

func (w *Watcher) loop(ctx context.Context) {
	defer w.cleanup()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handle(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("corpus watcher error", "error", err)
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return
	}

	info, err := os.Stat(event.Name)
	if err != nil {
		return
	}
	if info.IsDir() {
		// New directories are watched too; files already inside them are
		// picked up by the next full index.
		if err := w.addRecursive(event.Name); err != nil {
			slog.Warn("failed to watch new directory", "path", event.Name, "error", err)
		}
		return
	}

	id, err := DocumentID(w.root, event.Name)
	if err != nil || !w.matcher.Match(id) || !Supported(event.Name) {
		return
	}
	w.schedule(event.Name, id)
}

// schedule restarts the debounce timer of path.
func (w *Watcher) schedule(path, id string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	if t, ok := w.pending[path]; ok {
		t.Stop()
	}
	w.pending[path] = time.AfterFunc(w.debounce, func() {
		w.emit(FileEvent{Path: path, ID: id, Time: time.Now()})
	})
}

func (w *Watcher) emit(ev FileEvent) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	delete(w.pending, ev.Path)
	select {
	case w.events <- ev:
	default:
		slog.Warn("corpus watcher queue full, dropping event", "path", ev.Path)
	}
}

// Stop ends the watch. Safe to call more than once.
func (w *Watcher) Stop() error {
	return w.watcher.Close()
}

func (w *Watcher) cleanup() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stopped = true
	for _, t := range w.pending {
		t.Stop()
	}
	clear(w.pending)
	w.watcher.Close()
	close(w.events)
}
