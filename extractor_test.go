package watermarkcore_test

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"math/rand"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	wm "github.com/ttechtcapstone/watermarkcore"
	"github.com/ttechtcapstone/watermarkcore/internal/catalog"
	"github.com/ttechtcapstone/watermarkcore/internal/sideinfo"
)

func randomImage(w, h int, seed int64) *image.RGBA {
	rng := rand.New(rand.NewSource(seed))
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{
				R: uint8(rng.Intn(256)), G: uint8(rng.Intn(256)), B: uint8(rng.Intn(256)), A: 255,
			})
		}
	}
	return img
}

// S2: extract with no reference and an empty catalog yields skip_no_sideinfo.
func TestExtractNoSideinfoOnEmptyCatalog(t *testing.T) {
	dir := t.TempDir()
	cat, err := catalog.New(dir)
	require.NoError(t, err)

	resolver := sideinfo.NewResolver(nil, 100, time.Second)
	extractor := wm.NewExtractor(resolver, cat, 12)

	suspect := randomImage(64, 64, 1)
	res := extractor.Extract(context.Background(), suspect, "")
	assert.Equal(t, wm.StatusSkipNoSideinfo, res.Status)
}

// S3: a reference resolving to JSON with a malformed alpha field yields
// skip_bad_meta, with a reason mentioning alpha.
func TestExtractSkipsBadMetaOnCorruptedAlpha(t *testing.T) {
	dir := t.TempDir()
	badPath := filepath.Join(dir, "bad.wm.json")
	require.NoError(t, os.WriteFile(badPath, []byte(`{
		"wm_params": {"alpha": "oops", "wavelet": "haar", "channels": "RGB"},
		"canonical_size": [64, 64],
		"ll_shapes": {"R": [32,32], "G": [32,32], "B": [32,32]},
		"host_S": {"R": [], "G": [], "B": []},
		"watermark_ref": {"path": "mark.png"}
	}`), 0o644))

	resolver := sideinfo.NewResolver(nil, 100, time.Second)
	extractor := wm.NewExtractor(resolver, nil, 12)

	suspect := randomImage(64, 64, 2)
	res := extractor.Extract(context.Background(), suspect, badPath)
	assert.Equal(t, wm.StatusSkipBadMeta, res.Status)
	assert.Contains(t, res.Reason, "alpha")
}

// S4: the catalog holds the watermarked image and record from a prior
// embed; extracting the same image with no explicit reference resolves
// via perceptual hash and reports the record's own locator as used.
func TestExtractAutoMatchesViaPerceptualHash(t *testing.T) {
	host := gradientRGBA(128, 128)
	mark := syntheticLogo(128, 128)

	embedRes, err := wm.Embed(host, mark, wm.EmbedOptions{Alpha: 0.6})
	require.NoError(t, err)

	dir := t.TempDir()
	cat, err := catalog.New(dir)
	require.NoError(t, err)

	imgPath := filepath.Join(dir, "published.png")
	f, err := os.Create(imgPath)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, embedRes.Watermarked))
	require.NoError(t, f.Close())

	embedRes.SideInfo.OutputPath = imgPath
	jsonPath, err := cat.Put("published", embedRes.SideInfo)
	require.NoError(t, err)

	resolver := sideinfo.NewResolver(nil, 100, time.Second)
	extractor := wm.NewExtractor(resolver, cat, 12)

	res := extractor.Extract(context.Background(), embedRes.Watermarked, "")
	require.Equal(t, wm.StatusOK, res.Status)
	assert.Equal(t, jsonPath, res.SideinfoUsed)
}

// S4 variant: with a refreshed pHash index attached, extraction resolves
// the same match through the indexed lookup instead of the full walk.
func TestExtractUsesIndexedPHashLookup(t *testing.T) {
	host := gradientRGBA(128, 128)
	mark := syntheticLogo(128, 128)

	embedRes, err := wm.Embed(host, mark, wm.EmbedOptions{Alpha: 0.6})
	require.NoError(t, err)

	dir := t.TempDir()
	cat, err := catalog.New(dir)
	require.NoError(t, err)

	imgPath := filepath.Join(dir, "published.png")
	f, err := os.Create(imgPath)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, embedRes.Watermarked))
	require.NoError(t, f.Close())

	embedRes.SideInfo.OutputPath = imgPath
	jsonPath, err := cat.Put("published", embedRes.SideInfo)
	require.NoError(t, err)

	idx, err := catalog.OpenIndex(filepath.Join(dir, "index.sqlite"))
	require.NoError(t, err)
	defer idx.Close()
	require.NoError(t, cat.Refresh(idx))

	resolver := sideinfo.NewResolver(nil, 100, time.Second)
	extractor := wm.NewExtractor(resolver, cat, 12)
	extractor.SetIndex(idx)

	res := extractor.Extract(context.Background(), embedRes.Watermarked, "")
	require.Equal(t, wm.StatusOK, res.Status)
	assert.Equal(t, jsonPath, res.SideinfoUsed)
}

func TestExtractWithExplicitPathReference(t *testing.T) {
	host := gradientRGBA(64, 64)
	mark := syntheticLogo(64, 64)

	embedRes, err := wm.Embed(host, mark, wm.EmbedOptions{Alpha: 0.6})
	require.NoError(t, err)

	dir := t.TempDir()
	markPath := filepath.Join(dir, "mark.png")
	f, err := os.Create(markPath)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, mark))
	require.NoError(t, f.Close())
	embedRes.SideInfo.WatermarkRef = sideinfo.WatermarkRef{Path: markPath}

	data, err := embedRes.SideInfo.Marshal()
	require.NoError(t, err)
	refPath := filepath.Join(dir, "record.wm.json")
	require.NoError(t, os.WriteFile(refPath, data, 0o644))

	resolver := sideinfo.NewResolver(nil, 100, time.Second)
	extractor := wm.NewExtractor(resolver, nil, 12)

	res := extractor.Extract(context.Background(), embedRes.Watermarked, refPath)
	require.Equal(t, wm.StatusOK, res.Status)
	assert.Equal(t, refPath, res.SideinfoUsed)
	assert.NotNil(t, res.Mark)
}
