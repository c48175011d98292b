// Package watch reports changes under the store root that did not
// necessarily go through the store: edits by other processes, editors or
// sync tools.
package watch

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Change kinds passed to Callback.
const (
	Created = "created"
	Updated = "updated"
	Deleted = "deleted"
)

const defaultDebounce = 100 * time.Millisecond

// Callback is called once per coalesced change with one of Created,
// Updated or Deleted and the slash-separated path relative to the root.
type Callback func(kind string, path string)

// Option configures Watch.
type Option func(*watcher)

// WithFilter restricts reported files to names for which keep returns true.
// Hidden names are always skipped.
func WithFilter(keep func(name string) bool) Option {
	return func(w *watcher) {
		w.keep = keep
	}
}

// WithDebounce sets how long bursts of events on one path are coalesced.
func WithDebounce(d time.Duration) Option {
	return func(w *watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

type watcher struct {
	root     string
	logger   *slog.Logger
	keep     func(string) bool
	debounce time.Duration
}

// Watch starts an fsnotify watcher on root and every directory below it and
// reports file changes until ctx is cancelled. Directories created at
// runtime are added to the watch list and files already inside them are
// reported as created.
//
// Events for one path are coalesced for a short debounce window, so a
// create followed by writes is reported once as created. A rename reports
// the old name as deleted; the new name arrives as a create.
func Watch(ctx context.Context, root string, logger *slog.Logger, cb Callback, opts ...Option) error {
	wc := &watcher{root: root, logger: logger, debounce: defaultDebounce}
	for _, opt := range opts {
		opt(wc)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, root); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("root", root))

	pending := make(map[string]string)
	var flushTimer *time.Timer
	var flushCh <-chan time.Time

	mark := func(rel, kind string) {
		if prev, ok := pending[rel]; ok && prev == Created && kind == Updated {
			kind = Created
		}
		pending[rel] = kind
		if flushTimer == nil {
			flushTimer = time.NewTimer(wc.debounce)
			flushCh = flushTimer.C
		} else {
			flushTimer.Reset(wc.debounce)
		}
	}

	flush := func() {
		for rel, kind := range pending {
			logger.Debug("watcher: change", slog.String("path", rel), slog.String("op", kind))
			if cb != nil {
				cb(kind, rel)
			}
		}
		clear(pending)
	}

	for {
		select {
		case <-ctx.Done():
			if flushTimer != nil {
				flushTimer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-flushCh:
			flush()

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			absPath := ev.Name
			if hidden(filepath.Base(absPath)) {
				continue
			}

			// New directories join the watch list.
			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(absPath); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, absPath); addErr != nil {
						logger.Warn("watcher: add new dir failed",
							slog.String("path", absPath),
							slog.String("error", addErr.Error()))
					} else {
						logger.Debug("watcher: watching new dir", slog.String("path", absPath))
					}
					wc.scanNewDir(absPath, mark)
					continue
				}
			}

			rel, ok := wc.relative(absPath)
			if !ok || !wc.wants(rel) {
				continue
			}

			switch {
			case ev.Op&fsnotify.Create != 0:
				mark(rel, Created)
			case ev.Op&fsnotify.Write != 0:
				mark(rel, Updated)
			case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				mark(rel, Deleted)
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

func (wc *watcher) relative(abs string) (string, bool) {
	rel, err := filepath.Rel(wc.root, abs)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

func (wc *watcher) wants(rel string) bool {
	name := filepath.Base(rel)
	if hidden(name) {
		return false
	}
	return wc.keep == nil || wc.keep(name)
}

// scanNewDir reports files that landed in a directory before it was watched.
func (wc *watcher) scanNewDir(dirPath string, mark func(rel, kind string)) {
	_ = filepath.WalkDir(dirPath, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if p != dirPath && hidden(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if rel, ok := wc.relative(p); ok && wc.wants(rel) {
			mark(rel, Created)
		}
		return nil
	})
}

// addDirsRecursive adds root and all its non-hidden subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if p != root && hidden(d.Name()) {
			return filepath.SkipDir
		}
		return w.Add(p)
	})
}

func hidden(name string) bool {
	return strings.HasPrefix(name, ".")
}
