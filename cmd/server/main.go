// Package main provides the raster API HTTP server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"

	"go.ngs.io/rastercast/internal/adapter/aemet"
	"go.ngs.io/rastercast/internal/adapter/openmeteo"
	"go.ngs.io/rastercast/internal/adapter/store/raster"
	"go.ngs.io/rastercast/internal/config"
	httpHandler "go.ngs.io/rastercast/internal/http"
	"go.ngs.io/rastercast/internal/usecase"
)

const version = "0.1.0"

func main() {
	// Parse command-line flags.
	showHelp := flag.Bool("help", false, "Show usage information")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showHelp {
		printUsage()
		return
	}

	if *showVersion {
		fmt.Printf("rastercast version %s\n", version)
		return
	}

	// Configure the global logger.
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})))

	// Ensure environment variables are loaded.
	if err := godotenv.Load(); err != nil {
		slog.Warn("no .env file loaded", "error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	slog.Info("starting rastercast server", "port", cfg.Port, "provider", cfg.OpenMeteoBaseURL)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Durable cache tier. Either half missing runs in local fallback mode.
	var objects raster.ObjectStore
	var meta raster.MetadataStore
	if cfg.DurableTierEnabled() {
		minioStore, err := raster.NewMinIOStore(ctx, raster.MinIOConfig{
			Endpoint:  cfg.MinIOEndpoint,
			AccessKey: cfg.MinIOAccessKey,
			SecretKey: cfg.MinIOSecretKey,
			UseSSL:    cfg.MinIOUseSSL,
		})
		if err != nil {
			slog.Error("failed to initialize object store", "error", err)
			os.Exit(1)
		}
		pgStore, err := raster.NewPostgresStore(ctx, cfg.PostgresURL)
		if err != nil {
			slog.Error("failed to initialize metadata store", "error", err)
			os.Exit(1)
		}
		defer pgStore.Close()
		objects = minioStore
		meta = pgStore
		slog.Info("durable cache tier enabled", "endpoint", cfg.MinIOEndpoint)
	} else {
		slog.Info("durable cache tier disabled, rendering locally only")
	}

	// Wire the pipeline.
	fetcher := openmeteo.NewClient(cfg.OpenMeteoBaseURL, &http.Client{Timeout: 30 * time.Second})
	view := usecase.NewViewService(fetcher, usecase.DefaultViewConfig())
	cache := usecase.NewRasterCache(objects, meta)
	defer cache.Close()
	exporter := usecase.NewBulkExporter(view)

	var radar *aemet.Client
	if cfg.AemetAPIKey != "" {
		radar = aemet.NewClient(aemet.DefaultBaseURL, cfg.AemetAPIKey, nil)
		slog.Info("radar overlay enabled")
	}

	handler := httpHandler.NewHandler(view, cache, exporter, radar)
	router := httpHandler.SetupRouter(handler, cfg.CORSAllowedOrigins)

	addr := fmt.Sprintf(":%s", cfg.Port)
	slog.Info("server listening", "addr", addr)
	if err := router.Run(addr); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

// printUsage prints usage information.
func printUsage() {
	fmt.Printf("Rastercast API Server v%s\n\n", version)
	fmt.Println("USAGE:")
	fmt.Println("  rastercast [flags]")
	fmt.Println()
	fmt.Println("FLAGS:")
	fmt.Println("  -help          Show this help message")
	fmt.Println("  -version       Show version information")
	fmt.Println()
	fmt.Println("ENVIRONMENT VARIABLES:")
	fmt.Println("  PORT                    Server port (default: 8080)")
	fmt.Println("  OPEN_METEO_BASE_URL     Point forecast API base URL")
	fmt.Println("  AEMET_API_KEY           AEMET OpenData key for the radar overlay (optional)")
	fmt.Println("  CORS_ALLOWED_ORIGINS    Comma-separated list of allowed origins (default: all origins)")
	fmt.Println("  MINIO_ENDPOINT          Object storage endpoint (optional, enables durable cache)")
	fmt.Println("  MINIO_ACCESS_KEY        Object storage access key")
	fmt.Println("  MINIO_SECRET_KEY        Object storage secret key")
	fmt.Println("  MINIO_USE_SSL           Set to \"true\" for TLS object storage")
	fmt.Println("  POSTGRES_URL            Cache metadata database URL (optional, enables durable cache)")
	fmt.Println()
	fmt.Println("API ENDPOINTS:")
	fmt.Println("  GET /health                    Health check")
	fmt.Println("  GET /v1/rasters/frame          Render one color-mapped raster frame")
	fmt.Println("  GET /v1/rasters/frames         List available frames and their value range")
	fmt.Println("  GET /v1/export                 Download a zip of georeferenced frames")
	fmt.Println("  GET /v1/radar/overlay          Current national radar composite (if configured)")
	fmt.Println()
}
