package localization

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestNewPathManager(t *testing.T) {
	_, err := NewPathManager()
	assert.Error(t, err)

	_, err = NewPathManager(" ", "")
	assert.Error(t, err)

	pm, err := NewPathManager("relative/root")
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(pm.Roots()[0]))
}

func TestListFiles_FirstTierWins(t *testing.T) {
	site := t.TempDir()
	base := t.TempDir()

	writeFile(t, filepath.Join(site, DistributionDir, "radar.xml"), "site")
	writeFile(t, filepath.Join(base, DistributionDir, "radar.xml"), "base-version")
	writeFile(t, filepath.Join(base, DistributionDir, "obs.xml"), "base")
	writeFile(t, filepath.Join(base, DistributionDir, "notes.txt"), "ignored")
	require.NoError(t, os.MkdirAll(filepath.Join(base, DistributionDir, "nested.xml"), 0o755))

	pm, err := NewPathManager(site, base)
	require.NoError(t, err)

	files, err := pm.ListFiles(DistributionDir, ".xml")
	require.NoError(t, err)
	require.Len(t, files, 2)

	assert.Equal(t, "obs.xml", files[0].Name)
	assert.Equal(t, base, files[0].Root)
	assert.Equal(t, "radar.xml", files[1].Name)
	assert.Equal(t, site, files[1].Root)
	assert.Equal(t, int64(len("site")), files[1].Size)
	assert.False(t, files[1].ModTime.IsZero())
}

func TestListFiles_MissingSubdirIsEmpty(t *testing.T) {
	pm, err := NewPathManager(t.TempDir())
	require.NoError(t, err)

	files, err := pm.ListFiles(NotificationDir, ".xml")
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestListFiles_SubdirIsFile(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, NotificationDir), "not a directory")

	pm, err := NewPathManager(root)
	require.NoError(t, err)

	_, err = pm.ListFiles(NotificationDir, ".xml")
	assert.Error(t, err)
}

func TestDirsAndBaseName(t *testing.T) {
	pm, err := NewPathManager("/a", "/b")
	require.NoError(t, err)
	assert.Equal(t, []string{"/a/notification", "/b/notification"}, pm.Dirs(NotificationDir))

	assert.Equal(t, "radar", BaseName("radar.xml"))
	assert.Equal(t, "noext", BaseName("noext"))
	assert.Equal(t, ".hidden", BaseName(".hidden"))
	assert.Equal(t, "a.b", BaseName("a.b.xml"))
}
