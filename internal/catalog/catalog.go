// Package catalog is the append-mostly set of published SideInfo records.
// The filesystem directory of *.wm.json records is the source of truth;
// see index.go for a derived, rebuildable accelerator over it.
package catalog

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/ttechtcapstone/watermarkcore/internal/phash"
	"github.com/ttechtcapstone/watermarkcore/internal/sideinfo"
	"github.com/ttechtcapstone/watermarkcore/internal/store"
)

const recordSuffix = ".wm.json"

// Candidate is one catalog entry surfaced during a perceptual-hash walk.
type Candidate struct {
	JSONPath string
	Record   *sideinfo.SideInfo
}

// Catalog reads and appends SideInfo records under a directory.
type Catalog struct {
	dir   string
	store *store.FileStore
}

// New opens a catalog rooted at dir, creating it if absent.
func New(dir string) (*Catalog, error) {
	fs, err := store.NewFileStore(dir)
	if err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	return &Catalog{dir: dir, store: fs}, nil
}

// Dir returns the catalog's root directory.
func (c *Catalog) Dir() string { return c.dir }

// Put writes a new SideInfo record under the given stem: the record is
// written to a temp name and atomically renamed into place, so a reader
// never observes a partial record. Put does not write or check the
// published image; its ordering relative to the record is up to the caller.
func (c *Catalog) Put(stem string, record *sideinfo.SideInfo) (string, error) {
	data, err := record.Marshal()
	if err != nil {
		return "", err
	}
	jsonPath := filepath.Join(c.dir, stem+recordSuffix)
	if err := c.store.PutBytesAtomic(jsonPath, data); err != nil {
		return "", fmt.Errorf("catalog: writing record %q: %w", jsonPath, err)
	}
	return jsonPath, nil
}

// Get loads and parses a SideInfo record from its JSON path.
func (c *Catalog) Get(jsonPath string) (*sideinfo.SideInfo, error) {
	data, err := c.store.GetBytes(jsonPath)
	if err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	return sideinfo.Parse(data)
}

// All enumerates every *.wm.json record in the catalog directory.
func (c *Catalog) All() ([]Candidate, error) {
	entries, err := c.store.List(c.dir)
	if err != nil {
		return nil, fmt.Errorf("catalog: listing %q: %w", c.dir, err)
	}
	var out []Candidate
	for _, e := range entries {
		if !strings.HasSuffix(e.Locator, recordSuffix) {
			continue
		}
		rec, err := c.Get(e.Locator)
		if err != nil {
			continue // a malformed record does not abort the walk
		}
		out = append(out, Candidate{JSONPath: e.Locator, Record: rec})
	}
	return out, nil
}

// publishedImagePath resolves the published watermarked image for a
// record: prefer its own output_path, else derive by stem substitution
// against the known image extensions.
func (c *Catalog) publishedImagePath(jsonPath string, rec *sideinfo.SideInfo) (string, bool) {
	if rec.OutputPath != "" {
		if _, err := os.Stat(rec.OutputPath); err == nil {
			return rec.OutputPath, true
		}
	}
	stem := strings.TrimSuffix(jsonPath, recordSuffix)
	for _, ext := range []string{".png", ".jpg", ".jpeg"} {
		cand := stem + ext
		if _, err := os.Stat(cand); err == nil {
			return cand, true
		}
	}
	return "", false
}

// FindByPHash hashes every candidate's published image and returns the
// closest match within maxHamming, or ok=false if none qualifies.
func (c *Catalog) FindByPHash(suspect image.Image, maxHamming int) (cand Candidate, dist int, ok bool) {
	suspectHash := phash.Compute(suspect)

	candidates, err := c.All()
	if err != nil {
		return Candidate{}, 0, false
	}

	bestDist := 1 << 30
	var best Candidate
	found := false
	for _, c2 := range candidates {
		imgPath, has := c.publishedImagePath(c2.JSONPath, c2.Record)
		if !has {
			continue
		}
		f, err := os.Open(imgPath)
		if err != nil {
			continue
		}
		img, _, err := image.Decode(f)
		f.Close()
		if err != nil {
			continue
		}
		d := suspectHash.Hamming(phash.Compute(img))
		if d < bestDist {
			bestDist, best, found = d, c2, true
		}
	}
	if !found || bestDist > maxHamming {
		return Candidate{}, 0, false
	}
	return best, bestDist, true
}
