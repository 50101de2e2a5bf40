// Package reload detects configuration changes and drives pattern refreshes
// and notification reloads from timers, file-system events and the admin API.
package reload

import (
	"sync"

	"ingest-router/internal/localization"
)

// Tracker remembers the modification time of every file that contributed to
// the live configuration of one localization subdirectory.
type Tracker struct {
	source localization.Source
	subdir string
	ext    string

	mu   sync.Mutex
	seen map[string]localization.File
}

// NewTracker creates a tracker with nothing recorded, so the first Changed
// call reports a change whenever the directory has files.
func NewTracker(source localization.Source, subdir, ext string) *Tracker {
	return &Tracker{
		source: source,
		subdir: subdir,
		ext:    ext,
		seen:   make(map[string]localization.File),
	}
}

// Changed lists the directory and reports whether it differs from what was
// last recorded: a different number of files, a file not recorded before, or
// a recorded file with a different modification time. A file that moved to
// another root counts as changed even when the times agree.
func (t *Tracker) Changed() (bool, error) {
	files, err := t.source.ListFiles(t.subdir, t.ext)
	if err != nil {
		return false, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if len(files) != len(t.seen) {
		return true, nil
	}
	for _, f := range files {
		last, ok := t.seen[f.Name]
		if !ok || !last.ModTime.Equal(f.ModTime) || last.Path != f.Path {
			return true, nil
		}
	}
	return false, nil
}

// Record replaces the tracked state with files.
func (t *Tracker) Record(files []localization.File) {
	seen := make(map[string]localization.File, len(files))
	for _, f := range files {
		seen[f.Name] = f
	}

	t.mu.Lock()
	t.seen = seen
	t.mu.Unlock()
}

