// Package watermarkcore implements the DWT+SVD domain watermark embedder,
// the side-info-driven extractor, and the statistical detector that
// compares a claimed original mark against an extracted one.
package watermarkcore

import (
	"encoding/base64"
	"fmt"
	"image"
	"sync"

	"github.com/ttechtcapstone/watermarkcore/internal/sideinfo"
	"github.com/ttechtcapstone/watermarkcore/internal/transform"
	"github.com/ttechtcapstone/watermarkcore/internal/transform/dwt"
	"github.com/ttechtcapstone/watermarkcore/internal/transform/resize"
	"github.com/ttechtcapstone/watermarkcore/internal/transform/svd"
)

// DefaultAlpha is the spec's default embedding strength.
const DefaultAlpha = 0.6

// EmbedOptions configures a single embed call.
type EmbedOptions struct {
	Alpha float64 // 0 < Alpha <= 1; defaults to DefaultAlpha when zero.
	// MarkRefPath, if set, is recorded as watermark_ref.path instead of
	// embedding the mark as base64 in the SideInfo record.
	MarkRefPath string
}

// EmbedResult is the output of a successful embed: the watermarked image
// and the SideInfo record required to later extract the mark.
type EmbedResult struct {
	Watermarked *image.RGBA
	SideInfo    *sideinfo.SideInfo
}

// Embed injects mark into host using the DWT+SVD semi-blind scheme and
// returns the watermarked image plus the side-info record that captures
// the host's per-channel singular spectrum.
func Embed(host image.Image, mark image.Image, opts EmbedOptions) (*EmbedResult, error) {
	alpha := opts.Alpha
	if alpha == 0 {
		alpha = DefaultAlpha
	}
	if alpha <= 0 || alpha > 1 {
		return nil, ErrInvalidAlpha
	}

	hw, hh := resize.Dims(host)
	if hw == 0 || hh == 0 {
		return nil, ErrZeroAreaImage
	}

	resizedMark := resize.To(mark, hw, hh)
	hostCh := transform.Split(host)
	markCh := transform.Split(resizedMark)

	type channelOut struct {
		out   [][]float64
		shape sideinfo.ChannelShape
		hostS []float64
		err   error
	}

	run := func(hostPlane, markPlane [][]float64) channelOut {
		ll_h, lh_h, hl_h, hh_h := dwt.Forward2D(hostPlane)
		ll_m, _, _, _ := dwt.Forward2D(markPlane)

		svdH, err := svd.Factorize(flatten(ll_h), len(ll_h), len(ll_h[0]))
		if err != nil {
			return channelOut{err: fmt.Errorf("%w: host LL: %v", ErrTransform, err)}
		}
		svdM, err := svd.Factorize(flatten(ll_m), len(ll_m), len(ll_m[0]))
		if err != nil {
			return channelOut{err: fmt.Errorf("%w: mark LL: %v", ErrTransform, err)}
		}

		n := min(svdH.Len(), svdM.Len())
		sTilde := make([]float64, n)
		for i := 0; i < n; i++ {
			sTilde[i] = svdH.S[i] + alpha*svdM.S[i]
		}
		llTilde := svdH.Reconstruct(sTilde)
		llTildeGrid := unflatten(llTilde, len(ll_h), len(ll_h[0]))

		rec := dwt.Inverse2D(llTildeGrid, lh_h, hl_h, hh_h, hh, hw)
		normalized := transform.NormalizeUint8(rec)

		return channelOut{
			out:   normalized,
			shape: sideinfo.ChannelShape{len(ll_h), len(ll_h[0])},
			hostS: append([]float64(nil), svdH.S[:min(svdH.Len(), len(ll_h), len(ll_h[0]))]...),
		}
	}

	var wg sync.WaitGroup
	results := make([]channelOut, 3)
	planes := [][][]float64{hostCh.R, hostCh.G, hostCh.B}
	markPlanes := [][][]float64{markCh.R, markCh.G, markCh.B}
	wg.Add(3)
	for i := 0; i < 3; i++ {
		go func(i int) {
			defer wg.Done()
			results[i] = run(planes[i], markPlanes[i])
		}(i)
	}
	wg.Wait()

	for _, r := range results {
		if r.err != nil {
			return nil, r.err
		}
	}

	watermarked := transform.Merge(results[0].out, results[1].out, results[2].out)

	ref := sideinfo.WatermarkRef{}
	if opts.MarkRefPath != "" {
		ref.Path = opts.MarkRefPath
	} else {
		ref.Base64 = base64.StdEncoding.EncodeToString(encodePNG(resizedMark))
	}

	si := &sideinfo.SideInfo{
		WMParams:      sideinfo.Params{Alpha: alpha, Wavelet: sideinfo.WaveletHaar, Channels: "RGB"},
		CanonicalSize: [2]int{hw, hh},
		LLShapes:      sideinfo.ChannelShapes{R: results[0].shape, G: results[1].shape, B: results[2].shape},
		HostS:         sideinfo.ChannelSpectrum{R: results[0].hostS, G: results[1].hostS, B: results[2].hostS},
		WatermarkRef:  ref,
	}

	return &EmbedResult{Watermarked: watermarked, SideInfo: si}, nil
}

func flatten(grid [][]float64) []float64 {
	out := make([]float64, 0, len(grid)*len(grid[0]))
	for _, row := range grid {
		out = append(out, row...)
	}
	return out
}

func unflatten(flat []float64, rows, cols int) [][]float64 {
	out := make([][]float64, rows)
	for y := 0; y < rows; y++ {
		out[y] = flat[y*cols : (y+1)*cols]
	}
	return out
}

