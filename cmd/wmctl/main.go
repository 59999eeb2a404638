// Command wmctl is a local CLI over the watermarking core: embed a mark
// into a host image, extract a candidate mark from a suspect image, and
// detect whether an extracted mark matches a claimed original.
package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"log/slog"
	"os"
	"time"

	"github.com/dustin/go-humanize"

	wm "github.com/ttechtcapstone/watermarkcore"
	"github.com/ttechtcapstone/watermarkcore/internal/catalog"
	"github.com/ttechtcapstone/watermarkcore/internal/config"
	"github.com/ttechtcapstone/watermarkcore/internal/detect"
	"github.com/ttechtcapstone/watermarkcore/internal/diskstat"
	"github.com/ttechtcapstone/watermarkcore/internal/sideinfo"
)

var version = "dev"

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cfg := config.Load()
	level := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	var err error
	switch os.Args[1] {
	case "embed":
		err = runEmbed(cfg, os.Args[2:])
	case "extract":
		err = runExtract(cfg, os.Args[2:])
	case "detect":
		err = runDetect(cfg, os.Args[2:])
	case "status":
		err = runStatus(cfg, os.Args[2:])
	case "--version", "-version":
		fmt.Println(version)
		return
	default:
		usage()
		os.Exit(1)
	}
	if err != nil {
		slog.Error("wmctl: fatal", "error", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: wmctl <embed|extract|detect|status> [flags]")
}

func runStatus(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	yellowPct := fs.Float64("warn-yellow-pct", 20, "free-space percentage below which status is yellow")
	redPct := fs.Float64("warn-red-pct", 10, "free-space percentage below which status is red")
	blockPct := fs.Float64("warn-block-pct", 5, "free-space percentage at or below which status reports block and exits with an error")
	fs.Parse(args)

	cache := diskstat.New(diskstat.Dirs{
		Catalog:   cfg.CatalogDir,
		Artifact:  cfg.ArtifactDir,
		Detection: cfg.DetectionDir,
	}, time.Minute)
	stats := cache.Refresh()

	level := stats.WarningLevel(*yellowPct, *redPct, *blockPct)
	levelName := [...]string{"ok", "yellow", "red", "block"}[level]

	fmt.Printf("disk:      %s free of %s (%.1f%% free, %s)\n",
		humanize.Bytes(stats.FreeBytes), humanize.Bytes(stats.TotalBytes), stats.PctFree(), levelName)
	fmt.Printf("catalog:   %s (%s)\n", humanize.Bytes(stats.CatalogBytes), cfg.CatalogDir)
	fmt.Printf("artifacts: %s (%s)\n", humanize.Bytes(stats.ArtifactBytes), cfg.ArtifactDir)
	fmt.Printf("detections:%s (%s)\n", humanize.Bytes(stats.DetectionBytes), cfg.DetectionDir)

	if level == diskstat.WarnBlock {
		return fmt.Errorf("status: free disk space below block threshold (%.1f%% <= %.1f%%)", stats.PctFree(), *blockPct)
	}
	return nil
}

func runEmbed(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("embed", flag.ExitOnError)
	hostPath := fs.String("host", "", "path to the host image")
	markPath := fs.String("mark", "", "path to the mark image")
	alpha := fs.Float64("alpha", cfg.DefaultAlpha, "embedding strength in (0,1]")
	outImage := fs.String("out", "watermarked.png", "output path for the watermarked image")
	outSideinfo := fs.String("sideinfo", "watermarked.wm.json", "output path for the side-info record")
	fs.Parse(args)

	if *hostPath == "" || *markPath == "" {
		return fmt.Errorf("embed: --host and --mark are required")
	}

	host, err := decodeImageFile(*hostPath)
	if err != nil {
		return fmt.Errorf("embed: %w", err)
	}
	mark, err := decodeImageFile(*markPath)
	if err != nil {
		return fmt.Errorf("embed: %w", err)
	}

	res, err := wm.Embed(host, mark, wm.EmbedOptions{Alpha: *alpha})
	if err != nil {
		return fmt.Errorf("embed: %w", err)
	}

	if err := writePNGFile(*outImage, res.Watermarked); err != nil {
		return fmt.Errorf("embed: %w", err)
	}
	data, err := res.SideInfo.Marshal()
	if err != nil {
		return fmt.Errorf("embed: %w", err)
	}
	if err := os.WriteFile(*outSideinfo, data, 0o644); err != nil {
		return fmt.Errorf("embed: writing side-info: %w", err)
	}

	info, _ := os.Stat(*outImage)
	size := int64(0)
	if info != nil {
		size = info.Size()
	}
	slog.Info("embed complete", "image", *outImage, "sideinfo", *outSideinfo, "size", humanize.Bytes(uint64(size)))
	return nil
}

func runExtract(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("extract", flag.ExitOnError)
	suspectPath := fs.String("suspect", "", "path to the suspect image")
	ref := fs.String("sideinfo", "", "side-info reference: local path, HTTP(S) URL, or empty for pHash catalog search")
	catalogDir := fs.String("catalog", cfg.CatalogDir, "catalog directory for pHash fallback resolution")
	indexPath := fs.String("index", cfg.CatalogIndexPath, "pHash index database path (empty disables indexed lookup)")
	maxHamming := fs.Int("max-hamming", cfg.PHashMaxHamming, "maximum pHash Hamming distance accepted as a catalog match")
	outMark := fs.String("out", "extracted.png", "output path for the extracted mark")
	fs.Parse(args)

	if *suspectPath == "" {
		return fmt.Errorf("extract: --suspect is required")
	}

	suspect, err := decodeImageFile(*suspectPath)
	if err != nil {
		return fmt.Errorf("extract: %w", err)
	}

	cat, err := catalog.New(*catalogDir)
	if err != nil {
		return fmt.Errorf("extract: %w", err)
	}
	resolver := sideinfo.NewResolver(nil, cfg.URLFetchRateHz, cfg.URLFetchTimeout)
	extractor := wm.NewExtractor(resolver, cat, *maxHamming)

	if *indexPath != "" {
		idx, err := catalog.OpenIndex(*indexPath)
		if err != nil {
			slog.Warn("extract: opening pHash index, falling back to full catalog walk", "error", err)
		} else {
			defer idx.Close()
			if err := cat.Refresh(idx); err != nil {
				slog.Warn("extract: refreshing pHash index, results may be stale", "error", err)
			}
			extractor.SetIndex(idx)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.URLFetchTimeout*2)
	defer cancel()

	result := extractor.Extract(ctx, suspect, *ref)
	switch result.Status {
	case wm.StatusOK:
		if err := writePNGFile(*outMark, result.Mark); err != nil {
			return fmt.Errorf("extract: %w", err)
		}
		slog.Info("extract complete", "out", *outMark, "sideinfo_used", result.SideinfoUsed, "alpha", result.Alpha)
		return nil
	case wm.StatusSkipNoSideinfo:
		slog.Warn("extract: no side-info resolved")
		fmt.Println("skip_no_sideinfo")
		return nil
	case wm.StatusSkipBadMeta:
		slog.Warn("extract: side-info unusable", "reason", result.Reason)
		fmt.Println("skip_bad_meta:", result.Reason)
		return nil
	default:
		return fmt.Errorf("extract: unknown status %d", result.Status)
	}
}

func runDetect(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("detect", flag.ExitOnError)
	originalPath := fs.String("original", "", "path to the claimed original mark")
	extractedPath := fs.String("extracted", "", "path to the extracted mark")
	threshold := fs.Float64("threshold", cfg.DefaultThreshold, "match threshold on |PCC|")
	save := fs.Bool("save", false, "persist a detection record")
	detectionsDir := fs.String("detections-dir", cfg.DetectionDir, "directory for persisted detection records")
	fs.Parse(args)

	if *originalPath == "" || *extractedPath == "" {
		return fmt.Errorf("detect: --original and --extracted are required")
	}

	original, err := decodeImageFile(*originalPath)
	if err != nil {
		return fmt.Errorf("detect: %w", err)
	}
	extracted, err := decodeImageFile(*extractedPath)
	if err != nil {
		return fmt.Errorf("detect: %w", err)
	}

	d := detect.New(*detectionsDir)
	dec := d.Compare(original, extracted, *threshold, true)

	slog.Info("detect complete",
		"is_match", dec.IsMatch,
		"pcc", dec.Metrics.PCC,
		"pcc_abs", dec.Metrics.PCCAbs,
		"mse", dec.Metrics.MSE,
		"ssim", dec.Metrics.SSIM,
		"psnr", dec.Metrics.PSNR,
	)

	if *save {
		dir, err := d.SaveRecord(dec, detect.SaveRecordInput{
			OriginalLogo:  original,
			ExtractedWM:   extracted,
			CreatedAtUnix: time.Now().Unix(),
		})
		if err != nil {
			slog.Warn("detect: failed to persist record", "error", err)
		} else {
			slog.Info("detect record saved", "dir", dir)
		}
	}
	return nil
}

func decodeImageFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %q: %w", path, err)
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decoding %q: %w", path, err)
	}
	return img, nil
}

func writePNGFile(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %q: %w", path, err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		return fmt.Errorf("encoding %q: %w", path, err)
	}
	return nil
}
