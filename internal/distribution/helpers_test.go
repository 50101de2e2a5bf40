package distribution

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest/observer"

	"ingest-router/internal/common/logging"
	"ingest-router/internal/localization"
)

type fixture struct {
	t     *testing.T
	root  string
	clock time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return &fixture{t: t, root: t.TempDir(), clock: time.Now().Add(-time.Hour)}
}

// write stores a distribution file and gives it a strictly increasing
// modification time so refresh always sees the change.
func (f *fixture) write(name, content string) string {
	f.t.Helper()
	path := filepath.Join(f.root, localization.DistributionDir, name)
	require.NoError(f.t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(f.t, os.WriteFile(path, []byte(content), 0o644))
	f.clock = f.clock.Add(time.Second)
	require.NoError(f.t, os.Chtimes(path, f.clock, f.clock))
	return path
}

func (f *fixture) remove(name string) {
	f.t.Helper()
	require.NoError(f.t, os.Remove(filepath.Join(f.root, localization.DistributionDir, name)))
}

func (f *fixture) registry() (*Registry, *observer.ObservedLogs) {
	f.t.Helper()
	pm, err := localization.NewPathManager(f.root)
	require.NoError(f.t, err)
	logger, logs := logging.NewObservedLogger(logging.DebugLevel)
	return NewRegistry(pm, logger, nil), logs
}

// staticMatcher is a PatternMatcher over in-memory pattern sets.
type staticMatcher map[string]*PatternSet

func (m staticMatcher) MatchingPlugins(header string, candidates []string) []string {
	var out []string
	for _, c := range candidates {
		if m[c].Matches(header) {
			out = append(out, c)
		}
	}
	return out
}

func (m staticMatcher) HasPatternsForPlugin(name string) bool {
	return !m[name].NoPossibleMatch()
}

func mustPatternSet(t *testing.T, plugin string, inclusions, exclusions []string) *PatternSet {
	t.Helper()
	set, failures := NewPatternSet(plugin, inclusions, exclusions)
	require.Empty(t, failures)
	return set
}
