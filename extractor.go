package watermarkcore

import (
	"context"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"sync"

	"github.com/ttechtcapstone/watermarkcore/internal/catalog"
	"github.com/ttechtcapstone/watermarkcore/internal/phash"
	"github.com/ttechtcapstone/watermarkcore/internal/sideinfo"
	"github.com/ttechtcapstone/watermarkcore/internal/transform"
	"github.com/ttechtcapstone/watermarkcore/internal/transform/dwt"
	"github.com/ttechtcapstone/watermarkcore/internal/transform/resize"
	"github.com/ttechtcapstone/watermarkcore/internal/transform/svd"
)

// Status tags the outcome of an Extract call.
type Status int

const (
	// StatusOK means a mark was reconstructed from resolved side-info.
	StatusOK Status = iota
	// StatusSkipNoSideinfo means no reference was given and the
	// perceptual-hash catalog search found nothing within threshold.
	StatusSkipNoSideinfo
	// StatusSkipBadMeta means a reference was given but could not be
	// resolved, or the resolved record could not be used for extraction.
	StatusSkipBadMeta
)

// ExtractResult is the extractor's closed tagged result; it is returned
// instead of an error for the normal "nothing to extract" branches.
type ExtractResult struct {
	Status Status
	Reason string // populated when Status == StatusSkipBadMeta

	// Populated when Status == StatusOK.
	Mark          *image.RGBA
	Alpha         float64
	Wavelet       string
	CanonicalSize [2]int
	SideinfoUsed  string // the locator/label the resolver actually used
}

// Extractor reconstructs a candidate mark from a suspect image, given
// either an explicit side-info reference or a catalog to search.
type Extractor struct {
	resolver   *sideinfo.Resolver
	catalog    *catalog.Catalog
	index      *catalog.Index
	maxHamming int
}

// NewExtractor builds an Extractor. cat may be nil if perceptual-hash
// fallback resolution is not needed (every call must then supply a ref).
func NewExtractor(resolver *sideinfo.Resolver, cat *catalog.Catalog, maxHamming int) *Extractor {
	if maxHamming <= 0 {
		maxHamming = phash.DefaultHammingThreshold
	}
	return &Extractor{resolver: resolver, catalog: cat, maxHamming: maxHamming}
}

// SetIndex attaches a derived pHash index that Extract consults before
// falling back to a full catalog walk. Pass nil to go back to walk-only.
func (e *Extractor) SetIndex(idx *catalog.Index) {
	e.index = idx
}

// Extract resolves side-info for suspect (via ref if given, else a
// perceptual-hash catalog search) and reconstructs the embedded mark.
func (e *Extractor) Extract(ctx context.Context, suspect image.Image, ref string) ExtractResult {
	var si *sideinfo.SideInfo
	var used string

	if ref != "" {
		resolved, label, err := e.resolver.Resolve(ctx, ref)
		if err != nil {
			return ExtractResult{Status: StatusSkipBadMeta, Reason: err.Error()}
		}
		si, used = resolved, label
	} else {
		if e.catalog == nil {
			return ExtractResult{Status: StatusSkipNoSideinfo}
		}
		cand, ok := e.findByPHash(suspect)
		if !ok {
			return ExtractResult{Status: StatusSkipNoSideinfo}
		}
		si, used = cand.Record, cand.JSONPath
	}

	mark, err := loadWatermarkRef(si.WatermarkRef)
	if err != nil {
		return ExtractResult{Status: StatusSkipBadMeta, Reason: err.Error()}
	}

	result, err := extractWith(suspect, mark, si)
	if err != nil {
		return ExtractResult{Status: StatusSkipBadMeta, Reason: err.Error()}
	}

	result.SideinfoUsed = used
	return result
}

// findByPHash consults the derived index first, since it turns an O(n)
// rehash of every published image into an indexed lookup; a miss there
// (index absent, stale, or simply out of sync) falls back to the full
// catalog walk so a correct match is never lost to an unrefreshed index.
func (e *Extractor) findByPHash(suspect image.Image) (catalog.Candidate, bool) {
	if e.index != nil {
		if jsonPath, _, ok := e.catalog.FindByPHashIndexed(e.index, suspect, e.maxHamming); ok {
			if rec, err := e.catalog.Get(jsonPath); err == nil {
				return catalog.Candidate{JSONPath: jsonPath, Record: rec}, true
			}
		}
	}
	cand, _, ok := e.catalog.FindByPHash(suspect, e.maxHamming)
	return cand, ok
}

// ExtractWithSideInfo runs the extraction algorithm directly against an
// in-memory SideInfo record, bypassing reference resolution and catalog
// lookup. Useful for callers that already hold the record (e.g. the
// embedder's own caller verifying a round trip, or wmctl given an
// explicit --sideinfo file already parsed).
func ExtractWithSideInfo(suspect, mark image.Image, si *sideinfo.SideInfo) (*image.RGBA, error) {
	result, err := extractWith(suspect, mark, si)
	if err != nil {
		return nil, err
	}
	return result.Mark, nil
}

func loadWatermarkRef(ref sideinfo.WatermarkRef) (image.Image, error) {
	switch ref.Kind() {
	case sideinfo.KindBase64:
		data, err := base64.StdEncoding.DecodeString(ref.Base64)
		if err != nil {
			return nil, fmt.Errorf("decoding watermark_ref.image_base64: %w", err)
		}
		img, _, err := image.Decode(bytesReader(data))
		if err != nil {
			return nil, fmt.Errorf("decoding embedded mark image: %w", err)
		}
		return img, nil
	case sideinfo.KindPath:
		f, err := os.Open(ref.Path)
		if err != nil {
			return nil, fmt.Errorf("opening watermark_ref.path %q: %w", ref.Path, err)
		}
		defer f.Close()
		img, _, err := image.Decode(f)
		if err != nil {
			return nil, fmt.Errorf("decoding mark at %q: %w", ref.Path, err)
		}
		return img, nil
	default:
		return nil, fmt.Errorf("watermark_ref has neither image_base64 nor path")
	}
}

// extractWith runs the per-channel semi-blind extraction algorithm.
func extractWith(suspect, mark image.Image, si *sideinfo.SideInfo) (ExtractResult, error) {
	w, h := si.CanonicalSize[0], si.CanonicalSize[1]
	if w <= 0 || h <= 0 {
		return ExtractResult{}, fmt.Errorf("side-info canonical_size is invalid: %v", si.CanonicalSize)
	}

	suspectR := resize.To(suspect, w, h)
	markR := resize.To(mark, w, h)

	suspectCh := transform.Split(suspectR)
	markCh := transform.Split(markR)

	alpha := si.WMParams.Alpha

	run := func(suspectPlane, markPlane [][]float64, hostS []float64) ([][]float64, error) {
		ll_s, _, _, _ := dwt.Forward2D(suspectPlane)
		ll_m, lh_m, hl_m, hh_m := dwt.Forward2D(markPlane)

		svdS, err := svd.Factorize(flatten(ll_s), len(ll_s), len(ll_s[0]))
		if err != nil {
			return nil, fmt.Errorf("%w: suspect LL: %v", ErrTransform, err)
		}
		svdM, err := svd.Factorize(flatten(ll_m), len(ll_m), len(ll_m[0]))
		if err != nil {
			return nil, fmt.Errorf("%w: mark LL: %v", ErrTransform, err)
		}

		n := min(svdS.Len(), len(hostS), svdM.Len())
		if n == 0 {
			return zeroGrid(h, w), nil
		}

		sEst := make([]float64, n)
		for i := 0; i < n; i++ {
			denom := alpha
			if denom < 1e-12 {
				denom = 1e-12
			}
			sEst[i] = (svdS.S[i] - hostS[i]) / denom
		}

		llEst := svdM.Reconstruct(sEst)
		llEstGrid := unflatten(llEst, len(ll_m), len(ll_m[0]))

		rec := dwt.Inverse2D(llEstGrid, lh_m, hl_m, hh_m, len(markPlane), len(markPlane[0]))
		return transform.NormalizeUint8(rec), nil
	}

	type channelOut struct {
		out [][]float64
		err error
	}
	var wg sync.WaitGroup
	results := make([]channelOut, 3)
	suspectPlanes := [][][]float64{suspectCh.R, suspectCh.G, suspectCh.B}
	markPlanes := [][][]float64{markCh.R, markCh.G, markCh.B}
	hostSpectra := [][]float64{si.HostS.R, si.HostS.G, si.HostS.B}
	wg.Add(3)
	for i := 0; i < 3; i++ {
		go func(i int) {
			defer wg.Done()
			out, err := run(suspectPlanes[i], markPlanes[i], hostSpectra[i])
			results[i] = channelOut{out: out, err: err}
		}(i)
	}
	wg.Wait()

	for _, r := range results {
		if r.err != nil {
			return ExtractResult{}, r.err
		}
	}

	merged := transform.Merge(results[0].out, results[1].out, results[2].out)
	return ExtractResult{
		Status:        StatusOK,
		Mark:          merged,
		Alpha:         alpha,
		Wavelet:       si.WMParams.Wavelet,
		CanonicalSize: si.CanonicalSize,
	}, nil
}

func zeroGrid(h, w int) [][]float64 {
	g := make([][]float64, h)
	for i := range g {
		g[i] = make([]float64, w)
	}
	return g
}
