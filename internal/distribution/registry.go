package distribution

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	apperrors "ingest-router/internal/common/errors"
	"ingest-router/internal/common/logging"
	"ingest-router/internal/localization"
	"ingest-router/internal/metrics"
)

// trackedFile is the registry's record of one distribution file.
type trackedFile struct {
	modTime time.Time
	size    int64
	set     *PatternSet // nil for empty files
}

// Registry loads, compiles and serves per-plugin pattern sets. Lookups read
// an immutable map published through an atomic pointer; Refresh builds a new
// map and swaps it in.
type Registry struct {
	source        localization.Source
	logger        logging.Logger
	patternFailed logging.Logger
	metrics       *metrics.Metrics

	plugins atomic.Pointer[map[string]*PatternSet]

	refreshMu sync.Mutex
	files     map[string]*trackedFile

	missingMu sync.Mutex
	missing   map[string]struct{}
}

// NewRegistry creates an empty registry. Call Refresh to load patterns.
func NewRegistry(source localization.Source, logger logging.Logger, m *metrics.Metrics) *Registry {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}

	r := &Registry{
		source:        source,
		logger:        logger.WithFields(logging.Field{Key: "component", Value: "distribution_registry"}),
		patternFailed: logger.Named(logging.PatternFailedChannel),
		metrics:       m,
		files:         make(map[string]*trackedFile),
		missing:       make(map[string]struct{}),
	}
	empty := make(map[string]*PatternSet)
	r.plugins.Store(&empty)
	return r
}

// Refresh rescans the distribution directory, recompiles new and modified
// files and publishes the merged result. A file that fails to parse keeps
// its previous contribution and is retried on the next refresh. The only
// error is a failure to list the configuration source, in which case the
// published patterns are left untouched.
func (r *Registry) Refresh() error {
	r.refreshMu.Lock()
	defer r.refreshMu.Unlock()

	files, err := r.source.ListFiles(localization.DistributionDir, ".xml")
	if err != nil {
		return apperrors.InternalError("failed to list distribution files", err)
	}

	changed := false
	present := make(map[string]struct{}, len(files))

	for _, file := range files {
		present[file.Name] = struct{}{}

		prev, ok := r.files[file.Name]
		if ok && prev.modTime.Equal(file.ModTime) && prev.size == file.Size {
			continue
		}

		if file.Size == 0 {
			r.files[file.Name] = &trackedFile{modTime: file.ModTime, size: 0}
			changed = true
			continue
		}

		set, failures, err := ParsePatternFile(file)
		if err != nil {
			r.logger.Error("Failed to load distribution patterns, keeping previous contents", err,
				logging.Field{Key: "file", Value: file.Path},
			)
			continue
		}
		for _, f := range failures {
			r.patternFailed.Error("Failed to compile pattern", f.Err,
				logging.Field{Key: "plugin", Value: f.Plugin},
				logging.Field{Key: "file", Value: f.File},
				logging.Field{Key: "pattern", Value: f.Pattern},
			)
			r.metrics.RecordPatternFailure(f.Plugin)
		}

		r.files[file.Name] = &trackedFile{modTime: file.ModTime, size: file.Size, set: set}
		changed = true
	}

	for name := range r.files {
		if _, ok := present[name]; !ok {
			r.logger.Info("Distribution file removed", logging.Field{Key: "file", Value: name})
			delete(r.files, name)
			changed = true
		}
	}

	if changed {
		merged := r.merge()
		r.plugins.Store(&merged)
		r.metrics.SetPlugins(len(merged))
		r.logger.Info("Distribution patterns refreshed",
			logging.Field{Key: "files", Value: len(r.files)},
			logging.Field{Key: "plugins", Value: len(merged)},
		)
	}

	r.flushMissing()
	return nil
}

// merge combines tracked files into one map, visiting files in name order so
// merged pattern order is stable.
func (r *Registry) merge() map[string]*PatternSet {
	names := make([]string, 0, len(r.files))
	for name := range r.files {
		names = append(names, name)
	}
	sort.Strings(names)

	merged := make(map[string]*PatternSet)
	for _, name := range names {
		set := r.files[name].set
		if set == nil {
			continue
		}
		if existing, ok := merged[set.Plugin]; ok {
			merged[set.Plugin] = existing.merge(set)
		} else {
			merged[set.Plugin] = set
		}
	}
	return merged
}

// flushMissing logs and clears the plugins seen without inclusion patterns
// since the last refresh.
func (r *Registry) flushMissing() {
	r.missingMu.Lock()
	if len(r.missing) == 0 {
		r.missingMu.Unlock()
		return
	}
	names := make([]string, 0, len(r.missing))
	for name := range r.missing {
		names = append(names, name)
	}
	r.missing = make(map[string]struct{})
	r.missingMu.Unlock()

	sort.Strings(names)
	r.logger.Warn("Plugins have no distribution patterns and never receive data",
		logging.Strings("plugins", names),
	)
}

func (r *Registry) snapshot() map[string]*PatternSet {
	return *r.plugins.Load()
}

// IsDesiredHeader reports whether plugin's patterns accept header. Unknown
// plugins accept nothing.
func (r *Registry) IsDesiredHeader(plugin, header string) bool {
	return r.snapshot()[plugin].Matches(header)
}

// MatchingPlugins returns the candidates that accept header, in candidate
// order. Candidates without inclusion patterns are skipped and remembered for
// the next refresh's diagnostic log.
func (r *Registry) MatchingPlugins(header string, candidates []string) []string {
	plugins := r.snapshot()

	var matched []string
	for _, candidate := range candidates {
		set := plugins[candidate]
		if set.NoPossibleMatch() {
			r.missingMu.Lock()
			r.missing[candidate] = struct{}{}
			r.missingMu.Unlock()
			continue
		}
		if set.Matches(header) {
			matched = append(matched, candidate)
		}
	}
	return matched
}

// HasPatternsForPlugin reports whether name is known and has at least one
// compiled inclusion pattern.
func (r *Registry) HasPatternsForPlugin(name string) bool {
	return !r.snapshot()[name].NoPossibleMatch()
}

// Plugins returns the published pattern sets sorted by plugin name.
func (r *Registry) Plugins() []*PatternSet {
	plugins := r.snapshot()
	out := make([]*PatternSet, 0, len(plugins))
	for _, set := range plugins {
		out = append(out, set)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Plugin < out[j].Plugin
	})
	return out
}

// MissingPatterns returns the plugins recorded without patterns since the
// last refresh.
func (r *Registry) MissingPatterns() []string {
	r.missingMu.Lock()
	defer r.missingMu.Unlock()
	names := make([]string, 0, len(r.missing))
	for name := range r.missing {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
