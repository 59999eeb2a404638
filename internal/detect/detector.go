package detect

import (
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/image/draw"
)

// Decision is the outcome of comparing a claimed original mark against an
// extracted one.
type Decision struct {
	Metrics   Metrics
	Threshold float64
	IsMatch   bool
}

// Detector compares two mark images and, on request, persists a
// best-effort audit record of the comparison.
type Detector struct {
	detectionsRoot string
}

// New builds a Detector that writes detection records under root.
func New(root string) *Detector {
	return &Detector{detectionsRoot: root}
}

// Compare preprocesses original and extracted to matching-shape 8-bit
// grayscale (resampling extracted to original's shape if they differ) and
// computes the decision against threshold using |PCC| when useAbsolutePCC
// is set, else raw PCC.
func (d *Detector) Compare(original, extracted image.Image, threshold float64, useAbsolutePCC bool) Decision {
	ob := original.Bounds()
	ow, oh := ob.Dx(), ob.Dy()

	eb := extracted.Bounds()
	if eb.Dx() != ow || eb.Dy() != oh {
		extracted = resampleTo(extracted, ow, oh)
	}

	aFlat := toGrayFloats(original, ow, oh)
	bFlat := toGrayFloats(extracted, ow, oh)

	m := Compute(aFlat, bFlat, ow, oh)
	return Decision{
		Metrics:   m,
		Threshold: threshold,
		IsMatch:   IsMatch(m, threshold, useAbsolutePCC),
	}
}

func resampleTo(img image.Image, w, h int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Over, nil)
	return dst
}

func toGrayFloats(img image.Image, w, h int) []float64 {
	b := img.Bounds()
	out := make([]float64, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			g := color.GrayModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.Gray)
			out[y*w+x] = float64(g.Y)
		}
	}
	return out
}

// Record is the JSON document written alongside a detection's copied
// artifacts.
type Record struct {
	ID        string    `json:"id"`
	CreatedAt int64     `json:"created_at"`
	Metrics   Metrics   `json:"metrics"`
	Threshold thresholdBlock `json:"thresholds"`
	Passed    bool      `json:"passed"`
	Paths     recordPaths `json:"paths"`
}

type thresholdBlock struct {
	PCCAbs float64 `json:"pcc_abs"`
}

type recordPaths struct {
	OriginalLogo string `json:"original_logo,omitempty"`
	ExtractedWM  string `json:"extracted_wm,omitempty"`
	Suspect      string `json:"suspect,omitempty"`
	SideinfoJSON string `json:"sideinfo_json,omitempty"`
}

// SaveRecordInput bundles the optional artifacts a caller may want copied
// into the detection record directory.
type SaveRecordInput struct {
	OriginalLogo image.Image
	ExtractedWM  image.Image
	Suspect      image.Image // optional, nil if absent
	SideinfoJSON []byte      // optional, nil if absent
	CreatedAtUnix int64
}

// SaveRecord writes record.json plus PNG copies of the supplied artifacts
// under a fresh per-run directory, created now so wmctl's timestamp
// parameter stays a pure function. Failure to persist must never change
// the returned decision, so callers treat its error as best-effort.
func (d *Detector) SaveRecord(decision Decision, in SaveRecordInput) (dir string, err error) {
	id := fmt.Sprintf("%d_%s", in.CreatedAtUnix, uuid.New().String()[:8])
	dir = filepath.Join(d.detectionsRoot, id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("detect: creating record dir: %w", err)
	}

	paths := recordPaths{}
	if in.OriginalLogo != nil {
		p := filepath.Join(dir, "original_logo.png")
		if err := writePNG(p, in.OriginalLogo); err == nil {
			paths.OriginalLogo = p
		}
	}
	if in.ExtractedWM != nil {
		p := filepath.Join(dir, "extracted_wm.png")
		if err := writePNG(p, in.ExtractedWM); err == nil {
			paths.ExtractedWM = p
		}
	}
	if in.Suspect != nil {
		p := filepath.Join(dir, "suspect.png")
		if err := writePNG(p, in.Suspect); err == nil {
			paths.Suspect = p
		}
	}
	if in.SideinfoJSON != nil {
		p := filepath.Join(dir, "sideinfo.wm.json")
		if err := os.WriteFile(p, in.SideinfoJSON, 0o644); err == nil {
			paths.SideinfoJSON = p
		}
	}

	rec := Record{
		ID:        id,
		CreatedAt: in.CreatedAtUnix,
		Metrics:   decision.Metrics,
		Threshold: thresholdBlock{PCCAbs: decision.Threshold},
		Passed:    decision.IsMatch,
		Paths:     paths,
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return "", fmt.Errorf("detect: marshaling record: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "record.json"), data, 0o644); err != nil {
		return "", fmt.Errorf("detect: writing record.json: %w", err)
	}
	return dir, nil
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, img)
}

// Now is exposed so callers (wmctl) control the timestamp rather than the
// package reaching for time.Now() itself, keeping the core deterministic.
func Now() int64 { return time.Now().Unix() }
