// Package configwatch notifies callers that a config file changed; it does
// not read or parse the file itself. Grounded on the teacher's
// internal/runtime.HotReloadSystem, trimmed to just the fsnotify plumbing
// (spec §4.7 [FULL]: "the loader itself stays external").
package configwatch

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Watcher watches one file's parent directory and reports writes to that
// exact file. Watching the directory rather than the file survives editors
// that replace a file via rename-on-save, which a direct watch on the file
// path would miss.
type Watcher struct {
	path    string
	watcher *fsnotify.Watcher

	mu         sync.Mutex
	isWatching bool
}

// New creates a Watcher for path. The underlying fsnotify watcher is
// created but not yet started; call Watch to begin receiving events.
func New(path string) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("configwatch: create file watcher: %w", err)
	}
	return &Watcher{path: path, watcher: fw}, nil
}

// Watch starts watching and returns a channel of change notifications and a
// channel of errors. Both channels close when ctx is done or Stop is
// called. Calling Watch more than once on the same Watcher closes both
// channels immediately.
func (w *Watcher) Watch(ctx context.Context) (<-chan struct{}, <-chan error) {
	changes := make(chan struct{}, 1)
	errCh := make(chan error, 1)

	w.mu.Lock()
	if w.isWatching {
		w.mu.Unlock()
		close(changes)
		close(errCh)
		return changes, errCh
	}
	dir := filepath.Dir(w.path)
	if err := w.watcher.Add(dir); err != nil {
		w.mu.Unlock()
		errCh <- fmt.Errorf("configwatch: watch dir %s: %w", dir, err)
		close(changes)
		close(errCh)
		return changes, errCh
	}
	w.isWatching = true
	w.mu.Unlock()

	go func() {
		defer close(changes)
		defer close(errCh)
		for {
			select {
			case ev, ok := <-w.watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != filepath.Clean(w.path) {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				select {
				case changes <- struct{}{}:
				default:
					// A reload is already pending; coalesce bursts of writes
					// (e.g. an editor's save-then-rewrite) into one signal.
				}
			case err, ok := <-w.watcher.Errors:
				if !ok {
					return
				}
				select {
				case errCh <- err:
				default:
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	return changes, errCh
}

// Stop closes the underlying fsnotify watcher. Safe to call more than once.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.isWatching {
		return nil
	}
	w.isWatching = false
	return w.watcher.Close()
}
