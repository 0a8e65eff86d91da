// Package main provides the bulk raster export CLI.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"go.ngs.io/rastercast/internal/adapter/openmeteo"
	"go.ngs.io/rastercast/internal/config"
	"go.ngs.io/rastercast/internal/domain"
	"go.ngs.io/rastercast/internal/usecase"
)

func main() {
	// Configure the global logger.
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))

	// Parse CLI flags.
	startStr := flag.String("start", "", "Window start date (YYYY-MM-DD)")
	endStr := flag.String("end", "", "Window end date (YYYY-MM-DD, inclusive)")
	interval := flag.Int("interval", 24, "Hours between exported frames")
	minLat := flag.Float64("min-lat", 35.0, "Minimum latitude")
	maxLat := flag.Float64("max-lat", 44.5, "Maximum latitude")
	minLon := flag.Float64("min-lon", -10.0, "Minimum longitude")
	maxLon := flag.Float64("max-lon", 5.0, "Maximum longitude")
	resolution := flag.Float64("resolution", 0.05, "Output grid resolution in degrees")
	out := flag.String("out", "", "Destination path for the zip archive (default: archive name in cwd)")
	flag.Parse()

	if *startStr == "" || *endStr == "" {
		fmt.Fprintln(os.Stderr, "Usage: start and end dates are required (YYYY-MM-DD)")
		os.Exit(2)
	}
	start, err := time.Parse("2006-01-02", *startStr)
	if err != nil {
		slog.Error("invalid start date", "start", *startStr, "error", err)
		os.Exit(2)
	}
	end, err := time.Parse("2006-01-02", *endStr)
	if err != nil {
		slog.Error("invalid end date", "end", *endStr, "error", err)
		os.Exit(2)
	}
	// An inclusive end date covers that day's frames.
	window := domain.TimeWindow{
		Start: start.UTC(),
		End:   end.UTC().Add(24*time.Hour - time.Minute),
	}

	bbox := domain.BoundingBox{MinLat: *minLat, MaxLat: *maxLat, MinLon: *minLon, MaxLon: *maxLon}
	if err := bbox.Validate(); err != nil {
		slog.Error("invalid bounding box", "error", err)
		os.Exit(2)
	}

	// Ensure environment variables are loaded.
	if err := godotenv.Load(); err != nil {
		slog.Warn("no .env file loaded", "error", err)
	}
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(2)
	}

	// Create a cancellable context (for clean interruption).
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	fetcher := openmeteo.NewClient(cfg.OpenMeteoBaseURL, &http.Client{Timeout: 60 * time.Second})
	view := usecase.NewViewService(fetcher, usecase.DefaultViewConfig())
	exporter := usecase.NewBulkExporter(view)

	archive, written, err := exporter.Export(ctx, window, *interval, bbox, *resolution)
	if err != nil {
		slog.Error("export failed", "error", err)
		os.Exit(1)
	}
	defer os.RemoveAll(filepath.Dir(archive))

	dest := *out
	if dest == "" {
		dest = filepath.Base(archive)
	}
	if err := copyFile(archive, dest); err != nil {
		slog.Error("failed to write archive", "dest", dest, "error", err)
		os.Exit(1)
	}

	slog.Info("export complete", "archive", dest, "frames", written)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
