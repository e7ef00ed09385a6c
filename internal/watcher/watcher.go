// Package watcher reports when loaded media files disappear or come back.
package watcher

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

type Watcher interface {
	Watch(ctx context.Context, path string) error
	Unwatch(path string) error
	Stop() error
	OnChange(callback func(path string, event EventType))
}

type EventType int

const (
	EventCreate EventType = iota
	EventModify
	EventDelete
)

func (e EventType) String() string {
	switch e {
	case EventCreate:
		return "create"
	case EventModify:
		return "modify"
	default:
		return "delete"
	}
}

// New returns an fsnotify-backed watcher, falling back to a no-op watcher
// when the platform backend cannot be created.
func New(logger *slog.Logger) Watcher {
	w, err := NewFSWatcher(logger)
	if err != nil {
		logger.Warn("file watching unavailable, missing media will not be detected", "error", err)
		return NewStubWatcher(logger)
	}
	return w
}

// FSWatcher watches the parent directories of individual files. Directory
// watches are reference counted so several files can share one.
type FSWatcher struct {
	fs     *fsnotify.Watcher
	logger *slog.Logger

	mu       sync.Mutex
	files    map[string]int // cleaned file path -> watch count
	dirs     map[string]int // directory -> number of watched files in it
	callback func(path string, event EventType)

	done chan struct{}
	once sync.Once
}

func NewFSWatcher(logger *slog.Logger) (*FSWatcher, error) {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &FSWatcher{
		fs:     fs,
		logger: logger,
		files:  make(map[string]int),
		dirs:   make(map[string]int),
		done:   make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

func (w *FSWatcher) Watch(ctx context.Context, path string) error {
	path = filepath.Clean(path)
	dir := filepath.Dir(path)

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.dirs[dir] == 0 {
		if err := w.fs.Add(dir); err != nil {
			return err
		}
	}
	w.dirs[dir]++
	w.files[path]++
	w.logger.Debug("watching media file", "path", path)
	return nil
}

func (w *FSWatcher) Unwatch(path string) error {
	path = filepath.Clean(path)
	dir := filepath.Dir(path)

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.files[path] == 0 {
		return nil
	}
	if w.files[path]--; w.files[path] == 0 {
		delete(w.files, path)
	}
	if w.dirs[dir]--; w.dirs[dir] == 0 {
		delete(w.dirs, dir)
		if err := w.fs.Remove(dir); err != nil {
			return err
		}
	}
	return nil
}

func (w *FSWatcher) Stop() error {
	w.once.Do(func() {
		close(w.done)
	})
	return w.fs.Close()
}

func (w *FSWatcher) OnChange(callback func(path string, event EventType)) {
	w.mu.Lock()
	w.callback = callback
	w.mu.Unlock()
}

func (w *FSWatcher) loop() {
	for {
		select {
		case <-w.done:
			return
		case evt, ok := <-w.fs.Events:
			if !ok {
				return
			}
			w.dispatch(evt)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.logger.Warn("file watcher error", "error", err)
		}
	}
}

func (w *FSWatcher) dispatch(evt fsnotify.Event) {
	path := filepath.Clean(evt.Name)

	w.mu.Lock()
	watched := w.files[path] > 0
	cb := w.callback
	w.mu.Unlock()

	if !watched || cb == nil {
		return
	}

	switch {
	case evt.Has(fsnotify.Remove), evt.Has(fsnotify.Rename):
		cb(path, EventDelete)
	case evt.Has(fsnotify.Create):
		cb(path, EventCreate)
	case evt.Has(fsnotify.Write):
		cb(path, EventModify)
	}
}

// Exists reports whether path is present, for callers reconciling state
// after a watch was (re)established.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// StubWatcher accepts watches and never reports events.
type StubWatcher struct {
	logger   *slog.Logger
	callback func(path string, event EventType)
}

func NewStubWatcher(logger *slog.Logger) *StubWatcher {
	return &StubWatcher{logger: logger}
}

func (w *StubWatcher) Watch(ctx context.Context, path string) error {
	w.logger.Debug("watcher stub: watch requested", "path", path)
	return nil
}

func (w *StubWatcher) Unwatch(path string) error {
	return nil
}

func (w *StubWatcher) Stop() error {
	return nil
}

func (w *StubWatcher) OnChange(callback func(path string, event EventType)) {
	w.callback = callback
}
