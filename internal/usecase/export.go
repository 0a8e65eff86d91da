package usecase

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"go.ngs.io/rastercast/internal/adapter/interp"
	"go.ngs.io/rastercast/internal/domain"
	"go.ngs.io/rastercast/internal/render"
)

// sliceTolerance bounds how far a cube frame may sit from its export step.
// Steps with no frame inside the tolerance are skipped, not fatal.
const sliceTolerance = 30 * time.Minute

// BulkExporter walks a time range at a fixed step and packages one
// georeferenced raster per step into a zip archive.
type BulkExporter struct {
	view *ViewService

	// writeFrame is injected in tests; defaults to the NetCDF writer.
	writeFrame func(path string, frame domain.Frame, prov domain.Provenance) error
}

// NewBulkExporter creates an exporter on top of the view pipeline.
func NewBulkExporter(view *ViewService) *BulkExporter {
	return &BulkExporter{view: view, writeFrame: render.WriteNetCDF}
}

// Export fetches one dense cube covering the whole window, slices it every
// intervalHours starting at the window's floor-to-day boundary, and bundles
// the written frames. It returns the archive path and the count of frames
// actually written, which is lower than the theoretical count when steps
// found no slice within tolerance.
//
// A fetch or interpolation failure for the window is fatal to the job; a
// single missing frame is not.
func (e *BulkExporter) Export(ctx context.Context, window domain.TimeWindow, intervalHours int, bbox domain.BoundingBox, resolution float64) (string, int, error) {
	if err := window.Validate(); err != nil {
		return "", 0, err
	}
	if intervalHours <= 0 {
		return "", 0, fmt.Errorf("interval must be positive hours, got %d", intervalHours)
	}

	// One fetch for the full window; the cube is sliced many times. The
	// provider works in whole days, so the fetch window is day-padded.
	fetchWindow := domain.TimeWindow{
		Start: window.Start,
		End:   window.End.Add(24 * time.Hour),
	}
	cube, err := e.view.Cube(ctx, ViewRequest{
		BBox:             bbox,
		Window:           fetchWindow,
		TargetResolution: resolution,
		Method:           interp.MethodLinear,
		HighResolution:   true,
	}, domain.VarPrecipitation)
	if err != nil {
		return "", 0, fmt.Errorf("bulk export fetch: %w", err)
	}

	tmpDir, err := os.MkdirTemp("", "rastercast-export-"+uuid.NewString()[:8])
	if err != nil {
		return "", 0, fmt.Errorf("%w: scratch dir: %v", domain.ErrPersistenceFailure, err)
	}
	framesDir := filepath.Join(tmpDir, "frames")

	written := 0
	start := window.Start.UTC().Truncate(24 * time.Hour)
	for step := start; !step.After(window.End); step = step.Add(time.Duration(intervalHours) * time.Hour) {
		frame, ok := cube.NearestSlice(step, sliceTolerance)
		if !ok {
			slog.DebugContext(ctx, "no slice within tolerance, skipping step", "step", step)
			continue
		}

		// frames/YYYY/MM/DD/YYYY_MM_DD_HH_mm.nc
		dayDir := filepath.Join(framesDir, step.Format("2006"), step.Format("01"), step.Format("02"))
		if err := os.MkdirAll(dayDir, 0o755); err != nil {
			return "", 0, fmt.Errorf("%w: %v", domain.ErrPersistenceFailure, err)
		}
		framePath := filepath.Join(dayDir, step.Format("2006_01_02_15_04")+".nc")
		if err := e.writeFrame(framePath, frame, cube.Provenance); err != nil {
			return "", 0, fmt.Errorf("write frame %s: %w", framePath, err)
		}
		written++
	}

	archiveName := fmt.Sprintf("meteo_radar_%s_%s.zip",
		window.Start.UTC().Format("2006_01_02"), window.End.UTC().Format("2006_01_02"))
	archivePath := filepath.Join(tmpDir, archiveName)
	if err := zipDirectory(framesDir, archivePath); err != nil {
		return "", 0, fmt.Errorf("%w: archive: %v", domain.ErrPersistenceFailure, err)
	}

	slog.InfoContext(ctx, "bulk export complete", "archive", archivePath, "frames", written)
	return archivePath, written, nil
}

// zipDirectory bundles every file under root into a deflate archive,
// preserving paths relative to root.
func zipDirectory(root, archivePath string) error {
	out, err := os.Create(archivePath)
	if err != nil {
		return err
	}
	defer out.Close()

	zw := zip.NewWriter(out)
	defer zw.Close()

	// An export where every step was skipped still yields a valid, empty
	// archive.
	if _, err := os.Stat(root); os.IsNotExist(err) {
		return nil
	}

	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		w, err := zw.Create(filepath.ToSlash(rel))
		if err != nil {
			return err
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(w, f)
		return err
	})
}
