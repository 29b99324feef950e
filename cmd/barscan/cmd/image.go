package cmd

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/barscan/internal/barcode"
	"github.com/MeKo-Tech/barscan/internal/config"
	"github.com/MeKo-Tech/barscan/internal/frame"
	"github.com/MeKo-Tech/barscan/internal/results"
	"github.com/MeKo-Tech/barscan/internal/scan"
	"github.com/MeKo-Tech/barscan/internal/utils"
)

var (
	overlayPolygonColor = color.RGBA{0, 200, 0, 255}
	overlayCropColor    = color.RGBA{255, 160, 0, 255}
)

// imageCmd represents the image command.
var imageCmd = &cobra.Command{
	Use:   "image [files or directories...]",
	Short: "Decode barcodes in image files",
	Long: `Decode one barcode per image file. Directories are expanded to the
supported images they contain.

Supported formats: JPEG, PNG, BMP

Examples:
  barscan image label.png
  barscan image ./photos --format json
  barscan image ticket.jpg --formats qr --try-harder
  barscan image *.png --overlay-dir ./overlays --output results.yaml --format yaml`,
	Args:         cobra.ArbitraryArgs,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return errors.New("no input files provided")
		}

		cfg, err := GetConfig()
		if err != nil {
			return err
		}
		format := cfg.Output.Format
		if !results.ValidFormat(format) {
			return fmt.Errorf("invalid output format: %s (must be one of: text, json, yaml, csv)", format)
		}

		paths, err := expandImagePaths(args)
		if err != nil {
			return err
		}

		if cfg.Output.OverlayDir != "" {
			if err := os.MkdirAll(cfg.Output.OverlayDir, 0o750); err != nil {
				return fmt.Errorf("failed to create overlay directory: %w", err)
			}
		}

		// Files are decoded on demand; no snapshot sink is involved.
		cfg.Snapshot.Sink = config.SinkNone
		runner, err := newRunner(cfg, nil, nil)
		if err != nil {
			return err
		}

		fileResults := make([]results.FileResult, 0, len(paths))
		failed := 0
		for _, path := range paths {
			fr := decodeFile(cmd.Context(), runner, path, cfg.Output.OverlayDir)
			if fr.Outcome == scan.OutcomeFailure.String() {
				failed++
			}
			fileResults = append(fileResults, fr)
		}

		out, err := results.FormatFileResults(fileResults, format)
		if err != nil {
			return fmt.Errorf("failed to format results: %w", err)
		}

		if cfg.Output.File != "" {
			if err := os.WriteFile(cfg.Output.File, []byte(out), 0o600); err != nil {
				return fmt.Errorf("failed to write output file: %w", err)
			}
		} else {
			_, _ = fmt.Fprint(cmd.OutOrStdout(), out)
			if !strings.HasSuffix(out, "\n") && out != "" {
				_, _ = fmt.Fprintln(cmd.OutOrStdout())
			}
		}

		if failed == len(paths) {
			return fmt.Errorf("failed to process all %d file(s)", failed)
		}
		return nil
	},
}

// expandImagePaths replaces directories by the images they contain.
func expandImagePaths(args []string) ([]string, error) {
	var paths []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("cannot access %s: %w", arg, err)
		}
		if !info.IsDir() {
			paths = append(paths, arg)
			continue
		}
		imgs, err := utils.ListImages(arg)
		if err != nil {
			return nil, err
		}
		paths = append(paths, imgs...)
	}
	if len(paths) == 0 {
		return nil, errors.New("no supported images found")
	}
	return paths, nil
}

// decodeFile runs one file through the stage as a single frame.
func decodeFile(ctx context.Context, runner *scan.Runner, path, overlayDir string) results.FileResult {
	fr := results.FileResult{File: path}

	img, _, err := utils.LoadImage(path)
	if err != nil {
		fr.Outcome = scan.OutcomeFailure.String()
		fr.Error = err.Error()
		slog.Warn("Failed to load image", "path", path, "error", err)
		return fr
	}

	f := frame.NewImageFrame(img, nil)
	out := runner.Submit(ctx, f)

	fr.Outcome = out.Kind.String()
	fr.Display = out.Display
	fr.Points = out.Points()
	if out.Err != nil {
		fr.Error = out.Err.Error()
	}
	if out.Result != nil {
		fr.Format = out.Result.Format.String()
		fr.Content = out.Result.ContentType.String()
		fr.Text = out.Result.Text
	}

	if overlayDir != "" {
		var crop image.Rectangle
		if runner.Stage().Session().CropEnabled() {
			b := img.Bounds()
			crop = scan.CropRegion(b.Dx(), b.Dy(), true).Add(b.Min)
		}
		name, err := writeOverlay(overlayDir, path, img, out.Position, crop)
		if err != nil {
			slog.Warn("Failed to write overlay", "path", path, "error", err)
		} else {
			fr.Overlay = name
		}
	}
	return fr
}

// writeOverlay saves a PNG copy of img with the symbol outline and, when
// non-empty, the crop region drawn on it.
func writeOverlay(dir, path string, img image.Image, pos *barcode.Position, crop image.Rectangle) (string, error) {
	ov := utils.CloneRGBA(img)
	if !crop.Empty() {
		utils.DrawRect(ov, crop, overlayCropColor, 2)
	}
	if pos != nil {
		pts := make([]image.Point, 0, 4)
		for _, p := range pos.Points() {
			pts = append(pts, image.Pt(p.X, p.Y))
		}
		utils.DrawPolygon(ov, pts, overlayPolygonColor, 3)
	}

	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	out := filepath.Join(dir, base+"_overlay.png")
	if err := imaging.Save(ov, out); err != nil {
		return "", err
	}
	return out, nil
}

func init() {
	rootCmd.AddCommand(imageCmd)

	defaults := config.DefaultConfig()
	f := imageCmd.Flags()
	f.StringP("format", "f", "text", "output format (text, json, yaml, csv)")
	f.StringP("output", "o", "", "output file (default: stdout)")
	f.String("overlay-dir", "", "directory to write overlay images (symbol outlines)")
	f.Bool("crop", defaults.Scan.Crop, "decode only the centered square of each image")

	bindFlags(f.Lookup, []flagBinding{
		{"output.format", "format"},
		{"output.file", "output"},
		{"output.overlay_dir", "overlay-dir"},
	})

	// --crop is shared with scan, which owns the scan.crop binding.
	imageCmd.PreRun = func(cmd *cobra.Command, args []string) {
		if cmd.Flags().Changed("crop") {
			crop, _ := cmd.Flags().GetBool("crop")
			GetConfigLoader().Set("scan.crop", crop)
		}
	}
}
