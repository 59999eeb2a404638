package watermarkcore_test

import (
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	wm "github.com/ttechtcapstone/watermarkcore"
	"github.com/ttechtcapstone/watermarkcore/internal/detect"
	"github.com/ttechtcapstone/watermarkcore/internal/transform/resize"
)

func gradientRGBA(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{
				R: uint8((x * 255) / w),
				G: uint8((y * 255) / h),
				B: uint8(((x + y) * 255) / (w + h)),
				A: 255,
			})
		}
	}
	return img
}

// syntheticLogo draws a simple high-contrast cross, distinct from a plain
// gradient so PCC against random noise stays low.
func syntheticLogo(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := uint8(20)
			if x > w/3 && x < 2*w/3 {
				v = 230
			}
			if y > h/3 && y < 2*h/3 {
				v = 230
			}
			img.SetRGBA(x, y, color.RGBA{R: v, G: v, B: v, A: 255})
		}
	}
	return img
}

func TestEmbedRejectsInvalidAlpha(t *testing.T) {
	host := gradientRGBA(16, 16)
	mark := syntheticLogo(16, 16)

	_, err := wm.Embed(host, mark, wm.EmbedOptions{Alpha: 0})
	require.NoError(t, err, "zero alpha falls back to the default")

	_, err = wm.Embed(host, mark, wm.EmbedOptions{Alpha: 1.5})
	assert.ErrorIs(t, err, wm.ErrInvalidAlpha)

	_, err = wm.Embed(host, mark, wm.EmbedOptions{Alpha: -0.1})
	assert.ErrorIs(t, err, wm.ErrInvalidAlpha)
}

func TestEmbedProducesWatermarkedImageAndSideInfo(t *testing.T) {
	host := gradientRGBA(64, 64)
	mark := syntheticLogo(32, 32)

	res, err := wm.Embed(host, mark, wm.EmbedOptions{Alpha: 0.6})
	require.NoError(t, err)

	require.NotNil(t, res.Watermarked)
	b := res.Watermarked.Bounds()
	assert.Equal(t, 64, b.Dx())
	assert.Equal(t, 64, b.Dy())

	require.NoError(t, res.SideInfo.Validate())
	assert.Equal(t, [2]int{64, 64}, res.SideInfo.CanonicalSize)
	assert.Equal(t, 0.6, res.SideInfo.WMParams.Alpha)
	assert.Equal(t, "haar", res.SideInfo.WMParams.Wavelet)
}

// S1-style round trip: embed then extract in-memory using the resulting
// SideInfo directly (no catalog, no I/O), expecting |PCC| >= 0.95.
func TestRoundTripWithoutDistortion(t *testing.T) {
	host := gradientRGBA(256, 256)
	mark := syntheticLogo(256, 256)

	res, err := wm.Embed(host, mark, wm.EmbedOptions{Alpha: 0.6})
	require.NoError(t, err)

	extracted, err := wm.ExtractWithSideInfo(res.Watermarked, mark, res.SideInfo)
	require.NoError(t, err)

	d := detect.New(t.TempDir())
	dec := d.Compare(mark, extracted, 0.70, true)
	assert.GreaterOrEqual(t, dec.Metrics.PCCAbs, 0.95)
}

// Property 2: resampling the watermarked image down to 90% and back up to
// its native size, then extracting, still yields |PCC| >= 0.70.
func TestResizeRobustnessSurvivesDownAndUpSampling(t *testing.T) {
	host := gradientRGBA(256, 256)
	mark := syntheticLogo(256, 256)

	res, err := wm.Embed(host, mark, wm.EmbedOptions{Alpha: 0.6})
	require.NoError(t, err)

	b := res.Watermarked.Bounds()
	w, h := b.Dx(), b.Dy()
	shrunk := resize.To(res.Watermarked, int(float64(w)*0.9), int(float64(h)*0.9))
	restored := resize.To(shrunk, w, h)

	extracted, err := wm.ExtractWithSideInfo(restored, mark, res.SideInfo)
	require.NoError(t, err)

	d := detect.New(t.TempDir())
	dec := d.Compare(mark, extracted, 0.70, true)
	assert.GreaterOrEqual(t, dec.Metrics.PCCAbs, 0.70)
}

func TestLengthGuardHandlesShorterSuspectSpectrum(t *testing.T) {
	host := gradientRGBA(65, 65) // odd dims exercise the unpaired-sample DWT boundary
	mark := syntheticLogo(65, 65)

	res, err := wm.Embed(host, mark, wm.EmbedOptions{Alpha: 0.6})
	require.NoError(t, err)

	// Shrink one stored host_S by one element to simulate a suspect whose
	// DWT yields a spectrum one element shorter than the recorded host_S.
	res.SideInfo.HostS.R = res.SideInfo.HostS.R[:len(res.SideInfo.HostS.R)-1]

	extracted, err := wm.ExtractWithSideInfo(res.Watermarked, mark, res.SideInfo)
	require.NoError(t, err, "a shortened spectrum must not fail extraction")
	assert.NotNil(t, extracted)
}

func TestPCCDefinitionOnSyntheticPairs(t *testing.T) {
	a := gradientRGBA(32, 32)

	// Identical images: PCC = 1.
	d := detect.New(t.TempDir())
	dec := d.Compare(a, a, 0.70, true)
	assert.InDelta(t, 1.0, dec.Metrics.PCC, 1e-9)

	// Negated pixels: PCC = -1, |PCC| = 1.
	neg := image.NewRGBA(a.Bounds())
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			c := a.RGBAAt(x, y)
			neg.SetRGBA(x, y, color.RGBA{R: 255 - c.R, G: 255 - c.G, B: 255 - c.B, A: 255})
		}
	}
	decNeg := d.Compare(a, neg, 0.70, true)
	assert.InDelta(t, -1.0, decNeg.Metrics.PCC, 1e-6)
	assert.InDelta(t, 1.0, decNeg.Metrics.PCCAbs, 1e-6)
}

func TestPSNRInfinityOnIdenticalImages(t *testing.T) {
	a := gradientRGBA(32, 32)
	d := detect.New(t.TempDir())
	dec := d.Compare(a, a, 0.70, true)
	assert.Equal(t, 0.0, dec.Metrics.MSE)
	assert.True(t, math.IsInf(dec.Metrics.PSNR, 1))
}
