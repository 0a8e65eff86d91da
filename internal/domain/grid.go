package domain

import (
	"fmt"
	"math"
)

// SampleGrid is the regular lat/lon grid queried from the point provider.
// Both axes are ascending; ResolutionDeg is the spacing between neighbours.
type SampleGrid struct {
	Lats          []float64
	Lons          []float64
	ResolutionDeg float64
}

// NumPoints returns the total number of grid points.
func (g SampleGrid) NumPoints() int { return len(g.Lats) * len(g.Lons) }

// PlanGrid computes the coarsest regular grid over bbox that stays at or
// under maxPoints coordinate pairs. Point providers charge per pair and cap
// request sizes, so the resolution is the smallest step that fits the
// budget, floored at minResolution to bound the cost of tiny boxes.
func PlanGrid(bbox BoundingBox, maxPoints int, minResolution float64) (SampleGrid, error) {
	if err := bbox.Validate(); err != nil {
		return SampleGrid{}, err
	}
	if maxPoints <= 0 {
		return SampleGrid{}, fmt.Errorf("max points must be positive, got %d", maxPoints)
	}
	if minResolution <= 0 {
		return SampleGrid{}, fmt.Errorf("min resolution must be positive, got %g", minResolution)
	}

	latSpan := bbox.LatSpan()
	lonSpan := bbox.LonSpan()

	resolution := math.Sqrt(latSpan * lonSpan / float64(maxPoints))
	if resolution < minResolution {
		resolution = minResolution
	}

	grid := SampleGrid{
		Lats:          stepRange(bbox.MinLat, bbox.MaxLat, resolution),
		Lons:          stepRange(bbox.MinLon, bbox.MaxLon, resolution),
		ResolutionDeg: resolution,
	}

	// The sqrt sizing keeps len(lats)*len(lons) <= maxPoints for any box,
	// but guard against float edge cases rather than trust it silently.
	for grid.NumPoints() > maxPoints {
		resolution *= 1.05
		grid = SampleGrid{
			Lats:          stepRange(bbox.MinLat, bbox.MaxLat, resolution),
			Lons:          stepRange(bbox.MinLon, bbox.MaxLon, resolution),
			ResolutionDeg: resolution,
		}
	}

	if len(grid.Lats) == 0 || len(grid.Lons) == 0 {
		return SampleGrid{}, fmt.Errorf("%w: span smaller than resolution %g", ErrInvalidRegion, resolution)
	}
	return grid, nil
}

// stepRange generates [start, end) stepped at res, matching the half-open
// coordinate convention of the upstream provider query.
func stepRange(start, end, res float64) []float64 {
	if end <= start || res <= 0 {
		return nil
	}
	n := int(math.Ceil((end - start - 1e-12) / res))
	out := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		v := start + float64(i)*res
		if v >= end {
			break
		}
		out = append(out, v)
	}
	return out
}
