package catalog_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ttechtcapstone/watermarkcore/internal/catalog"
)

func TestIndexUpsertAndStale(t *testing.T) {
	idx, err := catalog.OpenIndex(filepath.Join(t.TempDir(), "index.sqlite"))
	require.NoError(t, err)
	defer idx.Close()

	stale, err := idx.Stale("a.wm.json", 100)
	require.NoError(t, err)
	assert.True(t, stale, "unseen entries are always stale")

	require.NoError(t, idx.Upsert("a.wm.json", "0000000000000000", 100))

	stale, err = idx.Stale("a.wm.json", 100)
	require.NoError(t, err)
	assert.False(t, stale)

	stale, err = idx.Stale("a.wm.json", 200)
	require.NoError(t, err)
	assert.True(t, stale, "a newer mtime than the cached one invalidates the entry")
}

func TestIndexDelete(t *testing.T) {
	idx, err := catalog.OpenIndex(filepath.Join(t.TempDir(), "index.sqlite"))
	require.NoError(t, err)
	defer idx.Close()

	require.NoError(t, idx.Upsert("a.wm.json", "0000000000000000", 1))
	require.NoError(t, idx.Delete("a.wm.json"))

	stale, err := idx.Stale("a.wm.json", 1)
	require.NoError(t, err)
	assert.True(t, stale)
}

func TestRefreshPopulatesIndexFromCatalog(t *testing.T) {
	dir := t.TempDir()
	c, err := catalog.New(dir)
	require.NoError(t, err)

	imgPath := filepath.Join(dir, "item1.png")
	writePNG(t, imgPath, pink())
	_, err = c.Put("item1", sampleRecord(imgPath))
	require.NoError(t, err)

	idx, err := catalog.OpenIndex(filepath.Join(t.TempDir(), "index.sqlite"))
	require.NoError(t, err)
	defer idx.Close()

	require.NoError(t, c.Refresh(idx))

	suspectPath := filepath.Join(dir, "suspect.png")
	writePNG(t, suspectPath, pink())
	suspectImg := openPNG(t, suspectPath)

	jsonPath, dist, ok := c.FindByPHashIndexed(idx, suspectImg, 12)
	assert.True(t, ok)
	assert.NotEmpty(t, jsonPath)
	assert.LessOrEqual(t, dist, 12)
}
