// index.go is a derived, rebuildable accelerator over the filesystem
// catalog: a small SQLite table mapping a candidate's perceptual hash to
// its JSON record path, so a repeated pHash walk over a large catalog is
// an indexed lookup instead of an O(n) re-hash of every published image.
// The filesystem directory remains the source of truth; this index can be
// deleted and rebuilt at any time without losing data.
package catalog

import (
	"database/sql"
	"fmt"
	"image"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/ttechtcapstone/watermarkcore/internal/phash"
)

// Index wraps a SQLite-backed cache of (phash_hex, json_path) pairs.
type Index struct {
	db *sql.DB
}

// OpenIndex opens (creating if needed) the index database at path.
func OpenIndex(path string) (*Index, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("catalog: creating index dir: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("catalog: opening index: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("catalog: pragma %q: %w", p, err)
		}
	}

	const schema = `
CREATE TABLE IF NOT EXISTS phash_index (
	json_path  TEXT PRIMARY KEY,
	phash_hex  TEXT NOT NULL,
	mtime_unix INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_phash_hex ON phash_index(phash_hex);
`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("catalog: creating schema: %w", err)
	}

	db.SetMaxOpenConns(1)
	return &Index{db: db}, nil
}

func (idx *Index) Close() error { return idx.db.Close() }

// Upsert records jsonPath's hash and the image mtime it was computed
// against, so a later Refresh can detect staleness cheaply.
func (idx *Index) Upsert(jsonPath, phashHex string, mtimeUnix int64) error {
	_, err := idx.db.Exec(
		`INSERT INTO phash_index (json_path, phash_hex, mtime_unix) VALUES (?, ?, ?)
		 ON CONFLICT(json_path) DO UPDATE SET phash_hex=excluded.phash_hex, mtime_unix=excluded.mtime_unix`,
		jsonPath, phashHex, mtimeUnix,
	)
	if err != nil {
		return fmt.Errorf("catalog: upserting index row for %q: %w", jsonPath, err)
	}
	return nil
}

// Stale reports whether jsonPath's cached entry is missing or older than
// currentMtimeUnix, meaning its hash should be recomputed.
func (idx *Index) Stale(jsonPath string, currentMtimeUnix int64) (bool, error) {
	var cached int64
	err := idx.db.QueryRow(`SELECT mtime_unix FROM phash_index WHERE json_path = ?`, jsonPath).Scan(&cached)
	if err == sql.ErrNoRows {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("catalog: checking staleness for %q: %w", jsonPath, err)
	}
	return cached < currentMtimeUnix, nil
}

// nearest returns every (json_path, phash_hex) pair currently indexed, for
// the caller to score by Hamming distance in-process (SQLite has no
// popcount function to push the comparison server-side).
func (idx *Index) nearest() ([]indexRow, error) {
	rows, err := idx.db.Query(`SELECT json_path, phash_hex FROM phash_index`)
	if err != nil {
		return nil, fmt.Errorf("catalog: querying index: %w", err)
	}
	defer rows.Close()

	var out []indexRow
	for rows.Next() {
		var r indexRow
		if err := rows.Scan(&r.JSONPath, &r.PHashHex); err != nil {
			return nil, fmt.Errorf("catalog: scanning index row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

type indexRow struct {
	JSONPath string
	PHashHex string
}

// Delete removes a stale entry, e.g. after its backing record is deleted.
func (idx *Index) Delete(jsonPath string) error {
	_, err := idx.db.Exec(`DELETE FROM phash_index WHERE json_path = ?`, jsonPath)
	if err != nil {
		return fmt.Errorf("catalog: deleting index row for %q: %w", jsonPath, err)
	}
	return nil
}

// Refresh walks the catalog directory, recomputing and upserting the hash
// for any candidate that has no index row yet or whose published image has
// a newer mtime than the one recorded. It never removes rows for records
// it fails to read, since a transient I/O failure should not evict an
// otherwise-good cache entry.
func (c *Catalog) Refresh(idx *Index) error {
	candidates, err := c.All()
	if err != nil {
		return err
	}
	for _, cand := range candidates {
		imgPath, has := c.publishedImagePath(cand.JSONPath, cand.Record)
		if !has {
			continue
		}
		info, err := os.Stat(imgPath)
		if err != nil {
			continue
		}
		stale, err := idx.Stale(cand.JSONPath, info.ModTime().Unix())
		if err != nil {
			return err
		}
		if !stale {
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
		h := computeHash(img)
		if err := idx.Upsert(cand.JSONPath, h, info.ModTime().Unix()); err != nil {
			return err
		}
	}
	return nil
}

func computeHash(img image.Image) string {
	return phash.Compute(img).String()
}

// FindByPHashIndexed scores the suspect's hash against every row currently
// cached in idx and returns the closest match within maxHamming. Callers
// should Refresh idx against the filesystem catalog on a schedule of their
// choosing; this method trusts the index as-is and never touches disk
// beyond the SQLite file itself.
func (c *Catalog) FindByPHashIndexed(idx *Index, suspect image.Image, maxHamming int) (jsonPath string, dist int, ok bool) {
	suspectHash := phash.Compute(suspect)

	rows, err := idx.nearest()
	if err != nil {
		return "", 0, false
	}

	bestDist := 1 << 30
	bestPath := ""
	found := false
	for _, r := range rows {
		var h uint64
		if _, err := fmt.Sscanf(r.PHashHex, "%016x", &h); err != nil {
			continue
		}
		d := suspectHash.Hamming(phash.Hash(h))
		if d < bestDist {
			bestDist, bestPath, found = d, r.JSONPath, true
		}
	}
	if !found || bestDist > maxHamming {
		return "", 0, false
	}
	return bestPath, bestDist, true
}
