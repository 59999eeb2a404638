// Package sideinfo defines the SideInfo record — the only artifact that
// crosses from the embedder to the extractor — and its JSON schema.
package sideinfo

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMissingField reports a required SideInfo field that was absent or
// malformed after JSON decoding.
var ErrMissingField = errors.New("sideinfo: missing or invalid field")

// ErrInvalidWavelet reports a wm_params.wavelet value other than the only
// wavelet family this implementation supports.
var ErrInvalidWavelet = errors.New("sideinfo: unsupported wavelet family")

// WaveletHaar is the only wavelet family Validate accepts.
const WaveletHaar = "haar"

// Params carries the watermark parameters fixed at embed time; the
// extractor must use the same values.
type Params struct {
	Alpha    float64 `json:"alpha"`
	Wavelet  string  `json:"wavelet"`
	Channels string  `json:"channels"`
}

// ChannelShape is a (height, width) pair.
type ChannelShape [2]int

// ChannelShapes holds the LL sub-band shape per channel.
type ChannelShapes struct {
	R ChannelShape `json:"R"`
	G ChannelShape `json:"G"`
	B ChannelShape `json:"B"`
}

// ChannelSpectrum holds the captured host singular values per channel.
type ChannelSpectrum struct {
	R []float64 `json:"R"`
	G []float64 `json:"G"`
	B []float64 `json:"B"`
}

// WatermarkRef is a discriminated union: exactly one of Base64 or Path is
// set. It round-trips through JSON as either {"image_base64": "..."} or
// {"path": "..."}.
type WatermarkRef struct {
	Base64 string `json:"image_base64,omitempty"`
	Path   string `json:"path,omitempty"`
}

// Kind identifies which alternative of WatermarkRef is populated.
type Kind int

const (
	KindInvalid Kind = iota
	KindBase64
	KindPath
)

// Kind reports which alternative is populated. A record with both
// alternatives set is ambiguous, not base64-preferring, and is reported as
// KindInvalid so Validate rejects it.
func (r WatermarkRef) Kind() Kind {
	hasBase64 := r.Base64 != ""
	hasPath := r.Path != ""
	switch {
	case hasBase64 && hasPath:
		return KindInvalid
	case hasBase64:
		return KindBase64
	case hasPath:
		return KindPath
	default:
		return KindInvalid
	}
}

// SideInfo is the persisted record produced by the embedder and consumed
// by the extractor.
type SideInfo struct {
	WMParams       Params          `json:"wm_params"`
	CanonicalSize  [2]int          `json:"canonical_size"` // (W, H)
	OutputPath     string          `json:"output_path,omitempty"`
	LLShapes       ChannelShapes   `json:"ll_shapes"`
	HostS          ChannelSpectrum `json:"host_S"`
	WatermarkRef   WatermarkRef    `json:"watermark_ref"`
}

// Marshal serializes s to its canonical JSON form.
func (s *SideInfo) Marshal() ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("sideinfo: marshaling: %w", err)
	}
	return data, nil
}

// Parse decodes a SideInfo record from JSON and validates its required
// fields. Unknown fields are tolerated.
func Parse(data []byte) (*SideInfo, error) {
	var s SideInfo
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("sideinfo: decoding: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks the invariants a consumer may rely on: every channel's
// host_S length equals min(ll_shape), watermark_ref has exactly one
// alternative populated, and alpha/wavelet are sane.
func (s *SideInfo) Validate() error {
	if s.WMParams.Alpha <= 0 || s.WMParams.Alpha > 1 {
		return fmt.Errorf("%w: wm_params.alpha must be in (0,1], got %v", ErrMissingField, s.WMParams.Alpha)
	}
	if s.WMParams.Wavelet != WaveletHaar {
		return fmt.Errorf("%w: wm_params.wavelet %q (only %q is implemented)", ErrInvalidWavelet, s.WMParams.Wavelet, WaveletHaar)
	}
	if s.WatermarkRef.Kind() == KindInvalid {
		return fmt.Errorf("%w: watermark_ref must set exactly one of image_base64 or path", ErrMissingField)
	}

	shapes := map[string]ChannelShape{"R": s.LLShapes.R, "G": s.LLShapes.G, "B": s.LLShapes.B}
	spectra := map[string][]float64{"R": s.HostS.R, "G": s.HostS.G, "B": s.HostS.B}
	for ch, shape := range shapes {
		want := min(shape[0], shape[1])
		got := len(spectra[ch])
		if got != want {
			return fmt.Errorf("%w: host_S[%s] has length %d, want %d (min of ll_shapes[%s])", ErrMissingField, ch, got, want, ch)
		}
	}
	return nil
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
