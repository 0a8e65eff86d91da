package domain

import (
	"errors"
	"math"
	"testing"
)

func TestPlanGrid_BudgetAndFloor(t *testing.T) {
	boxes := []BoundingBox{
		{MinLat: 40.0, MaxLat: 41.0, MinLon: -4.0, MaxLon: -3.0},
		{MinLat: -10.0, MaxLat: 10.0, MinLon: 100.0, MaxLon: 140.0},
		{MinLat: 59.9, MaxLat: 60.0, MinLon: 9.9, MaxLon: 10.0},
		{MinLat: 0.0, MaxLat: 0.3, MinLon: 0.0, MaxLon: 45.0},
	}
	budgets := []int{1, 10, 100, 500, 2500}
	const minRes = 0.05

	for _, bbox := range boxes {
		for _, budget := range budgets {
			grid, err := PlanGrid(bbox, budget, minRes)
			if err != nil {
				t.Fatalf("PlanGrid(%+v, %d): %v", bbox, budget, err)
			}
			if grid.NumPoints() > budget {
				t.Errorf("bbox %+v budget %d: %d points over budget",
					bbox, budget, grid.NumPoints())
			}
			if grid.ResolutionDeg < minRes {
				t.Errorf("bbox %+v budget %d: resolution %g below floor %g",
					bbox, budget, grid.ResolutionDeg, minRes)
			}
		}
	}
}

func TestPlanGrid_ConcreteScenario(t *testing.T) {
	// 1x1 degree box with a 100-point budget: resolution 0.1, 10x10 grid.
	bbox := BoundingBox{MinLat: 40.0, MaxLat: 41.0, MinLon: -4.0, MaxLon: -3.0}
	grid, err := PlanGrid(bbox, 100, 0.01)
	if err != nil {
		t.Fatalf("PlanGrid: %v", err)
	}
	if math.Abs(grid.ResolutionDeg-0.1) > 1e-9 {
		t.Errorf("resolution = %g, want 0.1", grid.ResolutionDeg)
	}
	if len(grid.Lats) != 10 || len(grid.Lons) != 10 {
		t.Errorf("grid shape = %dx%d, want 10x10", len(grid.Lats), len(grid.Lons))
	}
	if math.Abs(grid.Lats[5]-40.5) > 1e-9 {
		t.Errorf("lat[5] = %g, want 40.5", grid.Lats[5])
	}
	if math.Abs(grid.Lons[5]-(-3.5)) > 1e-9 {
		t.Errorf("lon[5] = %g, want -3.5", grid.Lons[5])
	}
}

func TestPlanGrid_AxesAscending(t *testing.T) {
	grid, err := PlanGrid(BoundingBox{MinLat: 10, MaxLat: 12, MinLon: 20, MaxLon: 25}, 200, 0.05)
	if err != nil {
		t.Fatalf("PlanGrid: %v", err)
	}
	for i := 1; i < len(grid.Lats); i++ {
		if grid.Lats[i] <= grid.Lats[i-1] {
			t.Fatalf("lats not strictly increasing at %d", i)
		}
	}
	for i := 1; i < len(grid.Lons); i++ {
		if grid.Lons[i] <= grid.Lons[i-1] {
			t.Fatalf("lons not strictly increasing at %d", i)
		}
	}
}

func TestPlanGrid_DegenerateRegion(t *testing.T) {
	tests := []struct {
		name string
		bbox BoundingBox
	}{
		{"zero lat span", BoundingBox{MinLat: 40, MaxLat: 40, MinLon: -4, MaxLon: -3}},
		{"zero lon span", BoundingBox{MinLat: 40, MaxLat: 41, MinLon: -3, MaxLon: -3}},
		{"inverted lat", BoundingBox{MinLat: 41, MaxLat: 40, MinLon: -4, MaxLon: -3}},
		{"lat out of range", BoundingBox{MinLat: -95, MaxLat: 41, MinLon: -4, MaxLon: -3}},
		{"lon out of range", BoundingBox{MinLat: 40, MaxLat: 41, MinLon: -181, MaxLon: -3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := PlanGrid(tt.bbox, 100, 0.01)
			if !errors.Is(err, ErrInvalidRegion) {
				t.Errorf("err = %v, want ErrInvalidRegion", err)
			}
		})
	}
}
