// Package usecase orchestrates the grid pipeline: plan, fetch, assemble,
// interpolate, and the raster cache and bulk export built on top of it.
package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.ngs.io/rastercast/internal/adapter/interp"
	"go.ngs.io/rastercast/internal/domain"
)

// PointFetcher is the batched point-data provider boundary.
type PointFetcher interface {
	Fetch(ctx context.Context, grid domain.SampleGrid, window domain.TimeWindow, variables []domain.Variable) ([]domain.PointSeries, error)
}

// ViewConfig bounds the pipeline's provider cost and output density.
type ViewConfig struct {
	// MaxPoints caps the coordinate pairs of one batched provider call.
	MaxPoints int
	// MinResolution floors the sample grid spacing in degrees.
	MinResolution float64
	// DefaultTargetResolution is the dense grid spacing when a request
	// does not specify one. 0.01 deg is roughly 1 km, radar-like.
	DefaultTargetResolution float64
}

// DefaultViewConfig mirrors the provider's practical request limits.
func DefaultViewConfig() ViewConfig {
	return ViewConfig{
		MaxPoints:               400,
		MinResolution:           0.05,
		DefaultTargetResolution: 0.01,
	}
}

// ViewRequest describes one view of the data over a region and window.
type ViewRequest struct {
	BBox      domain.BoundingBox
	Window    domain.TimeWindow
	Variables []domain.Variable
	// TargetResolution of the dense output grid; 0 uses the default.
	TargetResolution float64
	Method           interp.Method
	// TimeStride subsamples the time axis (history views render every
	// n-th hour); 0 or 1 keeps every step.
	TimeStride int
	// HighResolution false skips interpolation and returns the raw cubes.
	HighResolution bool
}

// ViewService runs the synchronous pipeline for one request:
// GridPlanner -> PointFetcher -> CubeAssembler -> InterpolationEngine.
type ViewService struct {
	fetcher PointFetcher
	cfg     ViewConfig
}

// NewViewService creates the pipeline front.
func NewViewService(fetcher PointFetcher, cfg ViewConfig) *ViewService {
	if cfg.MaxPoints <= 0 {
		cfg = DefaultViewConfig()
	}
	return &ViewService{fetcher: fetcher, cfg: cfg}
}

// Cubes runs the full pipeline and returns one dense cube per variable.
// Any stage failure aborts the request; no partial cube is ever returned.
func (s *ViewService) Cubes(ctx context.Context, req ViewRequest) (map[domain.Variable]*domain.DenseCube, error) {
	if err := req.Window.Validate(); err != nil {
		return nil, err
	}
	variables := req.Variables
	if len(variables) == 0 {
		variables = domain.DefaultVariables()
	}
	if err := domain.ValidateVariables(variables); err != nil {
		return nil, err
	}

	grid, err := domain.PlanGrid(req.BBox, s.cfg.MaxPoints, s.cfg.MinResolution)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	series, err := s.fetcher.Fetch(ctx, grid, req.Window, variables)
	if err != nil {
		return nil, err
	}

	cubes, err := domain.AssembleCubes(series, grid, variables)
	if err != nil {
		return nil, err
	}
	slog.DebugContext(ctx, "cubes assembled",
		"points", grid.NumPoints(), "variables", len(variables), "elapsed", time.Since(start))

	targetRes := req.TargetResolution
	if targetRes <= 0 {
		targetRes = s.cfg.DefaultTargetResolution
	}
	method := req.Method
	if method == "" {
		method = interp.MethodLinear
	}

	out := make(map[domain.Variable]*domain.DenseCube, len(cubes))
	for v, cube := range cubes {
		if req.TimeStride > 1 {
			cube = cube.SubsampleTime(req.TimeStride)
		}
		if !req.HighResolution {
			out[v] = &domain.DenseCube{
				VariableCube:        *cube,
				TargetResolutionDeg: grid.ResolutionDeg,
				Provenance: domain.Provenance{
					Source: "open-meteo",
					CRS:    "EPSG:4326",
				},
			}
			continue
		}
		dense, err := interp.Resample(cube, targetRes, method)
		if err != nil {
			return nil, fmt.Errorf("resample %s: %w", v, err)
		}
		out[v] = dense
	}
	return out, nil
}

// Cube is the single-variable convenience form of Cubes.
func (s *ViewService) Cube(ctx context.Context, req ViewRequest, v domain.Variable) (*domain.DenseCube, error) {
	req.Variables = []domain.Variable{v}
	cubes, err := s.Cubes(ctx, req)
	if err != nil {
		return nil, err
	}
	return cubes[v], nil
}
