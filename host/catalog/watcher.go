package catalog

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

const defaultDebounce = 500 * time.Millisecond

// Watcher reports plugin files appearing, changing or disappearing in a
// set of directories. Bursts of events are collapsed into one callback once
// the directories have been quiet for the debounce interval.
type Watcher struct {
	dirs []string
	opts options
}

// NewWatcher returns a watcher for dirs. Directories that do not exist are
// skipped when Run starts.
func NewWatcher(dirs []string, opts ...Option) *Watcher {
	return &Watcher{dirs: slices.Clone(dirs), opts: applyOptions(opts)}
}

// Run watches until ctx is cancelled, calling onChange with the sorted,
// deduplicated paths of each settled burst. onChange runs on the Run
// goroutine. Run returns nil on cancellation.
func (w *Watcher) Run(ctx context.Context, onChange func(paths []string)) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("catalog: create watcher: %w", err)
	}
	defer fw.Close()

	watched := 0

	for _, dir := range w.dirs {
		if err := w.addTree(fw, dir); err != nil {
			w.opts.logger.Warn("search path not watched", "path", dir, "error", err)
			continue
		}

		watched++
	}

	if watched == 0 && len(w.dirs) > 0 {
		return fmt.Errorf("catalog: none of %d search paths can be watched", len(w.dirs))
	}

	pending := make(map[string]struct{})

	var (
		timer  *time.Timer
		timerC <-chan time.Time
	)

	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}

			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = w.addTree(fw, event.Name)
				}
			}

			if !w.relevant(event) {
				continue
			}

			pending[event.Name] = struct{}{}

			if timer == nil {
				timer = time.NewTimer(w.opts.debounce)
			} else {
				timer.Reset(w.opts.debounce)
			}

			timerC = timer.C

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}

			w.opts.logger.Warn("watcher error", "error", err)

		case <-timerC:
			timerC = nil

			if len(pending) == 0 {
				continue
			}

			paths := make([]string, 0, len(pending))
			for p := range pending {
				paths = append(paths, p)
			}

			slices.Sort(paths)
			clear(pending)

			w.opts.logger.Debug("plugin files changed", "paths", len(paths))
			onChange(paths)
		}
	}
}

func (w *Watcher) addTree(fw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}

			return nil
		}

		if !d.IsDir() {
			return nil
		}

		// Bundles such as .vst directories are plugins, not folders to watch.
		if path != root && w.matches(path) {
			return filepath.SkipDir
		}

		return fw.Add(path)
	})
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return false
	}

	if strings.HasPrefix(filepath.Base(event.Name), ".") {
		return false
	}

	return len(w.opts.extensions) == 0 || w.matches(event.Name)
}

func (w *Watcher) matches(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))

	return slices.ContainsFunc(w.opts.extensions, func(e string) bool {
		return strings.EqualFold(e, ext)
	})
}
