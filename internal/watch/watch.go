// Package watch reports settled changes under a site directory.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is used when a Watcher is created with a non-positive debounce.
const DefaultDebounce = 300 * time.Millisecond

// ChangeFunc receives the paths that changed during one quiet period, sorted.
type ChangeFunc func(ctx context.Context, changed []string)

// Watcher watches a directory tree and batches file events.
type Watcher struct {
	root     string
	debounce time.Duration
	log      *slog.Logger
	fw       *fsnotify.Watcher
}

// New creates a Watcher for every directory below root.
func New(root string, debounce time.Duration, log *slog.Logger) (*Watcher, error) {
	if log == nil {
		log = slog.Default()
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve watch root %s: %w", root, err)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	w := &Watcher{root: abs, debounce: debounce, log: log, fw: fw}
	if err := w.addTree(abs); err != nil {
		fw.Close()
		return nil, err
	}
	return w, nil
}

// Root returns the absolute watched directory.
func (w *Watcher) Root() string { return w.root }

// Run dispatches batched changes to fn until ctx is canceled. fn runs on the
// watcher goroutine, so batches never overlap. Run closes the watcher before
// returning.
func (w *Watcher) Run(ctx context.Context, fn ChangeFunc) error {
	defer w.fw.Close()

	w.log.Info("watching site", slog.String("root", w.root), slog.Duration("debounce", w.debounce))

	pending := make(map[string]struct{})
	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.fw.Events:
			if !ok {
				return nil
			}
			if ignored(ev.Name) {
				continue
			}
			if ev.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					if err := w.addTree(ev.Name); err != nil {
						w.log.Warn("failed to watch new directory", slog.String("dir", ev.Name), slog.Any("error", err))
					}
				}
			}
			if ev.Has(fsnotify.Chmod) && !ev.Has(fsnotify.Write) {
				continue
			}
			w.log.Debug("site change detected", slog.String("file", ev.Name), slog.String("op", ev.Op.String()))
			pending[ev.Name] = struct{}{}
			timer.Reset(w.debounce)

		case <-timer.C:
			if len(pending) == 0 {
				continue
			}
			changed := make([]string, 0, len(pending))
			for p := range pending {
				changed = append(changed, p)
			}
			sort.Strings(changed)
			clear(pending)
			fn(ctx, changed)

		case err, ok := <-w.fw.Errors:
			if !ok {
				return nil
			}
			w.log.Error("site watcher error", slog.Any("error", err))
		}
	}
}

// Close releases the watcher without running it.
func (w *Watcher) Close() error {
	err := w.fw.Close()
	if errors.Is(err, fsnotify.ErrClosed) {
		return nil
	}
	return err
}

func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && ignored(path) {
			return filepath.SkipDir
		}
		if err := w.fw.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		return nil
	})
}

// ignored reports hidden entries, dependency trees and editor temp files.
func ignored(path string) bool {
	base := filepath.Base(path)
	switch {
	case base == "node_modules":
		return true
	case strings.HasPrefix(base, ".") && base != ".env" && !strings.HasPrefix(base, ".env."):
		return true
	case strings.HasSuffix(base, "~"), strings.HasSuffix(base, ".swp"), strings.HasSuffix(base, ".tmp"):
		return true
	}
	return false
}
