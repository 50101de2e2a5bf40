package reload

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"ingest-router/internal/common/logging"
)

// Watcher pushes localization directory changes to a callback so reloads
// happen without waiting for the next scheduled check. Bursts of events are
// debounced and reported once per subdirectory.
type Watcher struct {
	watcher      *fsnotify.Watcher
	dirs         map[string]string // absolute directory -> subdirectory name
	ext          string
	onChange     func(subdir string)
	logger       logging.Logger
	debounceTime time.Duration

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	done    chan struct{}
}

// NewWatcher watches <root>/<subdir> for every root and subdir pair.
func NewWatcher(roots, subdirs []string, ext string, onChange func(subdir string), logger logging.Logger) (*Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}

	dirs := make(map[string]string)
	for _, root := range roots {
		for _, subdir := range subdirs {
			dir, err := filepath.Abs(filepath.Join(root, subdir))
			if err != nil {
				watcher.Close()
				return nil, err
			}
			dirs[dir] = subdir
		}
	}

	return &Watcher{
		watcher:      watcher,
		dirs:         dirs,
		ext:          ext,
		onChange:     onChange,
		logger:       logger.WithFields(logging.Field{Key: "component", Value: "config_watcher"}),
		debounceTime: time.Second,
		stopCh:       make(chan struct{}),
		done:         make(chan struct{}),
	}, nil
}

// SetDebounce changes the quiet period before a change is reported.
func (w *Watcher) SetDebounce(d time.Duration) {
	w.debounceTime = d
}

// Start adds every existing directory and begins watching. Directories
// that do not exist are skipped; the scheduled check still covers them.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return nil
	}

	watched := 0
	for dir := range w.dirs {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			w.logger.Debug("Skipping missing configuration directory", logging.Field{Key: "dir", Value: dir})
			continue
		}
		if err := w.watcher.Add(dir); err != nil {
			return err
		}
		watched++
	}

	w.running = true
	go w.watchLoop(ctx)

	w.logger.Info("Config watcher started", logging.Field{Key: "directories", Value: watched})
	return nil
}

// Stop ends the watch loop and releases the underlying watcher.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return w.watcher.Close()
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.done
	return w.watcher.Close()
}

func (w *Watcher) watchLoop(ctx context.Context) {
	defer close(w.done)

	var debounce *time.Timer
	var mu sync.Mutex
	pending := make(map[string]struct{})

	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}

			subdir, relevant := w.classify(event)
			if !relevant {
				continue
			}

			w.logger.Debug("Config file event detected",
				logging.Field{Key: "event", Value: event.Op.String()},
				logging.Field{Key: "file", Value: event.Name},
			)

			mu.Lock()
			pending[subdir] = struct{}{}
			mu.Unlock()

			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(w.debounceTime, func() {
				mu.Lock()
				changed := pending
				pending = make(map[string]struct{})
				mu.Unlock()

				for subdir := range changed {
					w.logger.Info("Configuration changed, triggering reload", logging.Field{Key: "subdir", Value: subdir})
					w.onChange(subdir)
				}
			})

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("Config watcher error", err)

		case <-w.stopCh:
			w.logger.Info("Config watcher stopped")
			return

		case <-ctx.Done():
			w.logger.Info("Config watcher context cancelled")
			return
		}
	}
}

// classify maps an event to its subdirectory. Only writes, creations,
// removals and renames of files with the watched extension count.
func (w *Watcher) classify(event fsnotify.Event) (string, bool) {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return "", false
	}
	if w.ext != "" && !strings.EqualFold(filepath.Ext(event.Name), w.ext) {
		return "", false
	}

	dir, err := filepath.Abs(filepath.Dir(event.Name))
	if err != nil {
		return "", false
	}
	subdir, ok := w.dirs[dir]
	return subdir, ok
}
