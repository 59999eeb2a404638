package detect_test

import (
	"image"
	"image/color"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ttechtcapstone/watermarkcore/internal/detect"
)

func grayGradient(w, h int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetGray(x, y, color.Gray{Y: uint8((x * 255) / w)})
		}
	}
	return img
}

func TestCompareIdenticalImagesIsPerfectMatch(t *testing.T) {
	img := grayGradient(32, 32)
	d := detect.New(t.TempDir())

	dec := d.Compare(img, img, 0.70, true)
	assert.InDelta(t, 1.0, dec.Metrics.PCC, 1e-9)
	assert.InDelta(t, 0.0, dec.Metrics.MSE, 1e-9)
	assert.True(t, dec.IsMatch)
}

func TestCompareResizesExtractedToOriginalShape(t *testing.T) {
	original := grayGradient(64, 64)
	extracted := grayGradient(32, 32)
	d := detect.New(t.TempDir())

	dec := d.Compare(original, extracted, 0.70, true)
	assert.GreaterOrEqual(t, dec.Metrics.PCCAbs, 0.9)
}

func TestCompareUsesAbsoluteValueForSignInvertedMark(t *testing.T) {
	original := grayGradient(32, 32)
	inverted := image.NewGray(image.Rect(0, 0, 32, 32))
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			inverted.SetGray(x, y, color.Gray{Y: 255 - original.GrayAt(x, y).Y})
		}
	}
	d := detect.New(t.TempDir())

	decAbs := d.Compare(original, inverted, 0.70, true)
	decRaw := d.Compare(original, inverted, 0.70, false)

	assert.True(t, decAbs.IsMatch, "absolute PCC absorbs sign inversion")
	assert.False(t, decRaw.IsMatch, "raw PCC does not")
}

func TestSaveRecordWritesJSONAndCopies(t *testing.T) {
	root := t.TempDir()
	d := detect.New(root)
	original := grayGradient(16, 16)

	dec := d.Compare(original, original, 0.70, true)
	dir, err := d.SaveRecord(dec, detect.SaveRecordInput{
		OriginalLogo:  original,
		ExtractedWM:   original,
		CreatedAtUnix: 1700000000,
	})
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(dir, "record.json"))
	assert.FileExists(t, filepath.Join(dir, "original_logo.png"))
	assert.FileExists(t, filepath.Join(dir, "extracted_wm.png"))
}

// grayscaleContentRGBA builds an RGBA image whose content is grayscale
// (R == G == B at every pixel), wrapped in a color image so channel order
// can be permuted without changing the underlying luma.
func grayscaleContentRGBA(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := uint8((x * 255) / w)
			img.SetRGBA(x, y, color.RGBA{R: v, G: v, B: v, A: 255})
		}
	}
	return img
}

// permuteChannels cycles R->G->B->R at every pixel. For grayscale content
// (R == G == B), this leaves every pixel's value unchanged.
func permuteChannels(img *image.RGBA) *image.RGBA {
	b := img.Bounds()
	out := image.NewRGBA(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := img.RGBAAt(x, y)
			out.SetRGBA(x, y, color.RGBA{R: c.B, G: c.R, B: c.G, A: c.A})
		}
	}
	return out
}

// Property 4: detector metrics are invariant under a channel permutation
// that grayscale conversion removes, i.e. it has no effect when the
// content is already grayscale (R == G == B at every pixel).
func TestCompareIsInvariantUnderChannelPermutationOfGrayscaleContent(t *testing.T) {
	original := grayscaleContentRGBA(32, 32)
	permuted := permuteChannels(original)
	d := detect.New(t.TempDir())

	decOriginal := d.Compare(original, original, 0.70, true)
	decPermuted := d.Compare(original, permuted, 0.70, true)

	assert.Equal(t, decOriginal.Metrics, decPermuted.Metrics)
	assert.InDelta(t, 1.0, decPermuted.Metrics.PCC, 1e-9)
	assert.InDelta(t, 0.0, decPermuted.Metrics.MSE, 1e-9)
}

func TestPCCZeroWhenConstantImage(t *testing.T) {
	a := image.NewGray(image.Rect(0, 0, 8, 8))
	for i := range a.Pix {
		a.Pix[i] = 128
	}
	d := detect.New(t.TempDir())
	dec := d.Compare(a, a, 0.70, true)
	assert.Equal(t, 0.0, dec.Metrics.PCC, "PCC is defined as 0 when variance is zero")
}
