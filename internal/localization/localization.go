// Package localization resolves configuration files across tiered search
// roots. Roots are ordered from highest to lowest priority; when the same file
// name exists in several roots the highest-priority copy wins, so a site can
// override or blank out a base file by shipping one with the same name.
package localization

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Subdirectories holding each kind of rule file.
const (
	DistributionDir = "distribution"
	NotificationDir = "notification"
)

// File identifies one resolved configuration file.
type File struct {
	Name    string    `json:"name"`
	Path    string    `json:"path"`
	Root    string    `json:"root"`
	ModTime time.Time `json:"mod_time"`
	Size    int64     `json:"size"`
}

// Source lists the configuration files visible under a logical directory.
type Source interface {
	ListFiles(subdir, ext string) ([]File, error)
}

// PathManager is a Source backed by directories on the local filesystem.
type PathManager struct {
	roots []string
}

// NewPathManager creates a path manager over the given roots, highest
// priority first. Roots are resolved to absolute paths.
func NewPathManager(roots ...string) (*PathManager, error) {
	if len(roots) == 0 {
		return nil, fmt.Errorf("at least one localization root is required")
	}

	abs := make([]string, 0, len(roots))
	for _, root := range roots {
		root = strings.TrimSpace(root)
		if root == "" {
			continue
		}
		p, err := filepath.Abs(root)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve localization root %q: %w", root, err)
		}
		abs = append(abs, p)
	}
	if len(abs) == 0 {
		return nil, fmt.Errorf("at least one localization root is required")
	}

	return &PathManager{roots: abs}, nil
}

// Roots returns the search roots, highest priority first.
func (pm *PathManager) Roots() []string {
	out := make([]string, len(pm.roots))
	copy(out, pm.roots)
	return out
}

// Dirs returns <root>/<subdir> for every root, highest priority first.
func (pm *PathManager) Dirs(subdir string) []string {
	dirs := make([]string, len(pm.roots))
	for i, root := range pm.roots {
		dirs[i] = filepath.Join(root, subdir)
	}
	return dirs
}

// ListFiles returns the regular files with the given extension directly under
// <root>/<subdir>, merged across roots with the first occurrence of each name
// winning. A root without the subdirectory is skipped. The result is sorted by
// name so load order is reproducible.
func (pm *PathManager) ListFiles(subdir, ext string) ([]File, error) {
	seen := make(map[string]File)

	for i, dir := range pm.Dirs(subdir) {
		root := pm.roots[i]
		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("failed to list %s: %w", dir, err)
		}

		for _, entry := range entries {
			if entry.IsDir() || !strings.HasSuffix(entry.Name(), ext) {
				continue
			}
			if _, exists := seen[entry.Name()]; exists {
				continue
			}

			info, err := entry.Info()
			if err != nil {
				// Removed between ReadDir and Info; it will show up on the next scan.
				if os.IsNotExist(err) {
					continue
				}
				return nil, fmt.Errorf("failed to stat %s: %w", filepath.Join(dir, entry.Name()), err)
			}

			seen[entry.Name()] = File{
				Name:    entry.Name(),
				Path:    filepath.Join(dir, entry.Name()),
				Root:    root,
				ModTime: info.ModTime(),
				Size:    info.Size(),
			}
		}
	}

	files := make([]File, 0, len(seen))
	for _, f := range seen {
		files = append(files, f)
	}
	sort.Slice(files, func(i, j int) bool {
		return files[i].Name < files[j].Name
	})

	return files, nil
}

// BaseName returns a file name without its extension.
func BaseName(name string) string {
	if idx := strings.LastIndex(name, "."); idx > 0 {
		return name[:idx]
	}
	return name
}
