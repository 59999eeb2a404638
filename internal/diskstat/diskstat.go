// Package diskstat reports filesystem capacity and per-directory usage for
// the catalog, artifact, and detection-record trees, so operators can tell
// when a data volume needs attention without shelling out to du/df.
package diskstat

import (
	"io/fs"
	"path/filepath"
	"sync"
	"syscall"
	"time"
)

// Warning levels for free disk space.
const (
	WarnNone   = 0
	WarnYellow = 1
	WarnRed    = 2
	WarnBlock  = 3
)

// Stats is a point-in-time snapshot of disk usage across the data dirs.
type Stats struct {
	TotalBytes     uint64
	FreeBytes      uint64
	CatalogBytes   uint64 // bytes under the catalog directory (*.wm.json + published images)
	ArtifactBytes  uint64 // bytes under the artifact store directory
	DetectionBytes uint64 // bytes under the detection-record directory
	CapturedAt     time.Time
}

// PctFree returns the percentage of disk space that is free (0-100).
func (s Stats) PctFree() float64 {
	if s.TotalBytes == 0 {
		return 100
	}
	return float64(s.FreeBytes) / float64(s.TotalBytes) * 100
}

// WarningLevel returns the warning level given threshold percentages.
func (s Stats) WarningLevel(yellowPct, redPct, blockPct float64) int {
	pct := s.PctFree()
	switch {
	case pct <= blockPct:
		return WarnBlock
	case pct <= redPct:
		return WarnRed
	case pct <= yellowPct:
		return WarnYellow
	default:
		return WarnNone
	}
}

// Dirs names the three data directories a Cache measures.
type Dirs struct {
	Catalog   string
	Artifact  string
	Detection string
}

// Cache is a goroutine-safe cached disk stats value, refreshed periodically.
type Cache struct {
	mu    sync.RWMutex
	stats Stats
	dirs  Dirs
	ttl   time.Duration
	stop  chan struct{}
}

// New creates a Cache. Call Start to begin background polling, or Refresh
// for a single synchronous measurement.
func New(dirs Dirs, ttl time.Duration) *Cache {
	return &Cache{dirs: dirs, ttl: ttl, stop: make(chan struct{}, 1)}
}

// Start begins background polling.
func (c *Cache) Start() {
	c.refresh()
	go func() {
		t := time.NewTicker(c.ttl)
		defer t.Stop()
		for {
			select {
			case <-c.stop:
				return
			case <-t.C:
				c.refresh()
			}
		}
	}()
}

// Stop halts background polling.
func (c *Cache) Stop() {
	select {
	case c.stop <- struct{}{}:
	default:
	}
}

// Get returns the latest cached stats.
func (c *Cache) Get() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stats
}

// Refresh forces an immediate synchronous update and returns the result.
func (c *Cache) Refresh() Stats {
	c.refresh()
	return c.Get()
}

func (c *Cache) refresh() {
	root := commonRoot(c.dirs)
	total, free, err := statFS(root)
	if err != nil {
		// Not fatal; leave previous values in place.
		return
	}
	s := Stats{
		TotalBytes:     total,
		FreeBytes:      free,
		CatalogBytes:   dirSize(c.dirs.Catalog),
		ArtifactBytes:  dirSize(c.dirs.Artifact),
		DetectionBytes: dirSize(c.dirs.Detection),
		CapturedAt:     time.Now(),
	}
	c.mu.Lock()
	c.stats = s
	c.mu.Unlock()
}

// commonRoot picks a directory that's likely to exist for the statfs call,
// falling back through the configured dirs in order.
func commonRoot(d Dirs) string {
	for _, dir := range []string{d.Catalog, d.Artifact, d.Detection, "."} {
		if dir != "" {
			return dir
		}
	}
	return "."
}

func statFS(path string) (total, free uint64, err error) {
	var stat syscall.Statfs_t
	if err = syscall.Statfs(path, &stat); err != nil {
		return 0, 0, err
	}
	bsize := uint64(stat.Bsize)
	return bsize * stat.Blocks, bsize * stat.Bfree, nil
}

func dirSize(dir string) uint64 {
	if dir == "" {
		return 0
	}
	var total uint64
	filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		total += uint64(info.Size())
		return nil
	})
	return total
}
