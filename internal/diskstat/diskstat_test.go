package diskstat

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPctFreeAndWarningLevel(t *testing.T) {
	s := Stats{TotalBytes: 1000, FreeBytes: 50}
	assert.InDelta(t, 5.0, s.PctFree(), 1e-9)
	assert.Equal(t, WarnBlock, s.WarningLevel(20, 10, 6))

	s2 := Stats{TotalBytes: 0}
	assert.Equal(t, 100.0, s2.PctFree())
	assert.Equal(t, WarnNone, s2.WarningLevel(20, 10, 6))
}

func TestRefreshMeasuresDirSizes(t *testing.T) {
	root := t.TempDir()
	catalogDir := filepath.Join(root, "catalog")
	artifactDir := filepath.Join(root, "artifacts")
	require.NoError(t, os.MkdirAll(catalogDir, 0o755))
	require.NoError(t, os.MkdirAll(artifactDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(catalogDir, "a.wm.json"), []byte(`{"a":1}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(artifactDir, "b.bin"), []byte("hello world"), 0o644))

	c := New(Dirs{Catalog: catalogDir, Artifact: artifactDir, Detection: filepath.Join(root, "missing")}, time.Hour)
	stats := c.Refresh()

	assert.EqualValues(t, 7, stats.CatalogBytes)
	assert.EqualValues(t, 11, stats.ArtifactBytes)
	assert.EqualValues(t, 0, stats.DetectionBytes)
	assert.False(t, stats.CapturedAt.IsZero())
}

func TestStartStopDoesNotPanic(t *testing.T) {
	root := t.TempDir()
	c := New(Dirs{Catalog: root}, 10*time.Millisecond)
	c.Start()
	time.Sleep(25 * time.Millisecond)
	c.Stop()
	assert.False(t, c.Get().CapturedAt.IsZero())
}
