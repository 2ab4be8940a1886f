package loader

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period Watch waits for before reporting changes.
const DefaultDebounce = 100 * time.Millisecond

// Watch observes the loader's root directory and calls onChange with the
// relative keys of decision files that were written, created, removed or
// renamed. Bursts of events are coalesced over debounce. It blocks until ctx
// is cancelled.
func (f *Filesystem) Watch(ctx context.Context, debounce time.Duration, logger *slog.Logger, onChange func(keys []string)) error {
	if f.root == "" {
		return errors.New("watch requires a directory-backed loader")
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	defer w.Close()

	if err := addTree(w, f.root); err != nil {
		return fmt.Errorf("failed to watch %s: %w", f.root, err)
	}
	logger.Info("decision watcher started", "path", f.root, "debounce_ms", debounce.Milliseconds())

	var (
		mu      sync.Mutex
		pending = make(map[string]struct{})
		timer   *time.Timer
	)
	flush := func() {
		mu.Lock()
		keys := make([]string, 0, len(pending))
		for k := range pending {
			keys = append(keys, k)
		}
		pending = make(map[string]struct{})
		mu.Unlock()
		if len(keys) > 0 {
			onChange(keys)
		}
	}
	defer func() {
		mu.Lock()
		if timer != nil {
			timer.Stop()
		}
		mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			logger.Info("decision watcher stopped")
			return nil

		case event, ok := <-w.Events:
			if !ok {
				return errors.New("watcher events channel closed")
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := addTree(w, event.Name); err != nil {
						logger.Warn("failed to watch new directory", "path", event.Name, "error", err)
					}
					continue
				}
			}
			if !isDecisionFile(event.Name) || (event.Has(fsnotify.Chmod) && !event.Has(fsnotify.Write)) {
				continue
			}
			rel, err := filepath.Rel(f.root, event.Name)
			if err != nil {
				continue
			}
			logger.Debug("decision file event", "path", event.Name, "op", event.Op.String())

			mu.Lock()
			pending[filepath.ToSlash(rel)] = struct{}{}
			if timer == nil {
				timer = time.AfterFunc(debounce, flush)
			} else {
				timer.Reset(debounce)
			}
			mu.Unlock()

		case err, ok := <-w.Errors:
			if !ok {
				return errors.New("watcher errors channel closed")
			}
			logger.Error("decision watcher error", "error", err)
		}
	}
}

func addTree(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if p != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return w.Add(p)
	})
}
