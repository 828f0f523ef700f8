// Package watch reloads profile documents when they change on disk.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/okian/padmap/internal/adapters/profilestore"
	"github.com/okian/padmap/internal/domain/mapping"
	"github.com/okian/padmap/pkg/logger"
)

const defaultDebounce = 250 * time.Millisecond

// Store is the part of the profile store the watcher drives.
type Store interface {
	LoadFile(path string) (mapping.Profile, error)
	Forget(path string)
	ActiveName() (name, activation string)
	ActivateByName(name string) error
}

// Watcher batches file system events and reloads each touched profile once
// the directory has been quiet for the debounce interval.
type Watcher struct {
	dir      string
	store    Store
	debounce time.Duration
	log      logger.Logger
	fsw      *fsnotify.Watcher
	reloaded func(path string, err error)
}

// New starts watching dir.
func New(dir string, store Store, opts ...Option) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fsw.Add(dir); err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}
	w := &Watcher{dir: dir, store: store, debounce: defaultDebounce, fsw: fsw}
	for _, opt := range opts {
		opt(w)
	}
	if w.log == nil {
		w.log = logger.Get().Named("watch")
	}
	return w, nil
}

// Run handles events until ctx is done or the watcher is closed.
func (w *Watcher) Run(ctx context.Context) error {
	pending := map[string]struct{}{}
	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return w.fsw.Close()

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if !profilestore.IsProfileFile(ev.Name) || ev.Op == fsnotify.Chmod {
				continue
			}
			pending[ev.Name] = struct{}{}
			timer.Reset(w.debounce)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn(ctx, "watch error", logger.Error(err))

		case <-timer.C:
			paths := make([]string, 0, len(pending))
			for p := range pending {
				paths = append(paths, p)
			}
			sort.Strings(paths)
			clear(pending)
			for _, p := range paths {
				w.reload(ctx, p)
			}
		}
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

func (w *Watcher) reload(ctx context.Context, path string) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		w.store.Forget(path)
		w.log.Info(ctx, "profile removed", logger.String("path", path))
		w.notify(path, nil)
		return
	}

	p, err := w.store.LoadFile(path)
	if err != nil {
		w.log.Warn(ctx, "profile reload failed", logger.String("path", path), logger.Error(err))
		w.notify(path, err)
		return
	}

	active, _ := w.store.ActiveName()
	if active == p.Name {
		err = w.store.ActivateByName(p.Name)
		if err != nil {
			w.log.Error(ctx, "re-activation failed", logger.String("name", p.Name), logger.Error(err))
		} else {
			w.log.Info(ctx, "active profile reloaded", logger.String("name", p.Name))
		}
	} else {
		w.log.Info(ctx, "profile reloaded", logger.String("name", p.Name), logger.String("file", filepath.Base(path)))
	}
	w.notify(path, err)
}

func (w *Watcher) notify(path string, err error) {
	if w.reloaded != nil {
		w.reloaded(path, err)
	}
}
