package watermarkcore

import (
	"errors"

	"github.com/ttechtcapstone/watermarkcore/internal/sideinfo"
)

// Sentinel errors for conditions callers may want to match with errors.Is.
var (
	ErrInvalidAlpha  = errors.New("watermarkcore: alpha must be in (0,1]")
	ErrZeroAreaImage = errors.New("watermarkcore: image has zero width or height")
	ErrTransform     = errors.New("watermarkcore: wavelet/SVD transform failed")
	// ErrInvalidWavelet is sideinfo.ErrInvalidWavelet re-exported: the
	// wavelet-family check lives in SideInfo.Validate, since that is where
	// a resolved side-info record is first checked for usability.
	ErrInvalidWavelet = sideinfo.ErrInvalidWavelet
)
