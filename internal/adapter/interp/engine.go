// Package interp resamples (time, lat, lon) cubes onto denser regular grids.
package interp

import (
	"fmt"
	"math"
	"sort"

	"go.ngs.io/rastercast/internal/domain"
)

// Method selects the spatial interpolation scheme.
type Method string

const (
	MethodLinear  Method = "linear"
	MethodNearest Method = "nearest"
	MethodCubic   Method = "cubic"
)

// ParseMethod maps a request string onto a Method. Empty defaults to linear.
func ParseMethod(s string) (Method, error) {
	switch Method(s) {
	case "":
		return MethodLinear, nil
	case MethodLinear, MethodNearest, MethodCubic:
		return Method(s), nil
	default:
		return "", fmt.Errorf("unknown interpolation method %q", s)
	}
}

// Resample interpolates every time slice of cube onto a regular grid stepped
// at targetRes, spanning the same closed range as the cube's extremes.
// Queries that land outside the sample domain by floating-point slack are
// extrapolated rather than dropped: downstream rendering assumes a fully
// populated array with no edge holes.
//
// Values of rate variables (precipitation) are clamped at zero afterwards;
// linear and cubic overshoot must never produce negative physical amounts.
func Resample(cube *domain.VariableCube, targetRes float64, method Method) (*domain.DenseCube, error) {
	if targetRes <= 0 {
		return nil, fmt.Errorf("target resolution must be positive, got %g", targetRes)
	}
	if len(cube.Lats) < 2 || len(cube.Lons) < 2 {
		return nil, fmt.Errorf("%w: need at least 2 samples per spatial axis, got %dx%d",
			domain.ErrInsufficientGrid, len(cube.Lats), len(cube.Lons))
	}

	newLats := closedRange(cube.Lats[0], cube.Lats[len(cube.Lats)-1], targetRes)
	newLons := closedRange(cube.Lons[0], cube.Lons[len(cube.Lons)-1], targetRes)

	// The source-axis position of every target coordinate is the same for
	// all time slices, so precompute it once per axis.
	latPos := locate(cube.Lats, newLats)
	lonPos := locate(cube.Lons, newLons)

	clampRate := cube.Variable.IsRate()
	nTimes := cube.Times.Len()
	data := make([][][]float64, nTimes)
	for t := 0; t < nTimes; t++ {
		slice, err := resampleSlice(cube.Slice(t), latPos, lonPos, method)
		if err != nil {
			return nil, err
		}
		if clampRate {
			for _, row := range slice {
				for j, v := range row {
					if v < 0 {
						row[j] = 0
					}
				}
			}
		}
		data[t] = slice
	}

	return &domain.DenseCube{
		VariableCube: domain.VariableCube{
			Variable: cube.Variable,
			Times:    cube.Times,
			Lats:     newLats,
			Lons:     newLons,
			Data:     data,
		},
		TargetResolutionDeg: targetRes,
		Provenance: domain.Provenance{
			Source:     "open-meteo",
			CRS:        "EPSG:4326",
			Processing: fmt.Sprintf("%s resample at %g deg", method, targetRes),
		},
	}, nil
}

// axisPos is a target coordinate located on the source axis: the lower
// bracket index and the fractional offset within the bracket cell. The
// fraction is deliberately not clamped to [0, 1] so edge queries
// extrapolate linearly instead of producing missing values.
type axisPos struct {
	idx  int
	frac float64
}

// locate maps each target coordinate onto the source axis.
func locate(src, targets []float64) []axisPos {
	out := make([]axisPos, len(targets))
	for k, x := range targets {
		// Lower bracket so that src[i] <= x < src[i+1], clamped to the
		// last full cell for x at or beyond the upper extreme.
		i := sort.SearchFloat64s(src, x) - 1
		if i < 0 {
			i = 0
		}
		if i > len(src)-2 {
			i = len(src) - 2
		}
		out[k] = axisPos{
			idx:  i,
			frac: (x - src[i]) / (src[i+1] - src[i]),
		}
	}
	return out
}

// closedRange generates [start, end] inclusive stepped at res. The upper
// bound is always emitted so the dense grid spans the full source extent.
func closedRange(start, end, res float64) []float64 {
	n := int(math.Floor((end-start)/res + 1e-9))
	out := make([]float64, 0, n+2)
	for i := 0; i <= n; i++ {
		out = append(out, start+float64(i)*res)
	}
	if out[len(out)-1] < end-1e-9 {
		out = append(out, end)
	}
	return out
}

func resampleSlice(values [][]float64, latPos, lonPos []axisPos, method Method) ([][]float64, error) {
	out := make([][]float64, len(latPos))
	for i, lp := range latPos {
		row := make([]float64, len(lonPos))
		for j, jp := range lonPos {
			switch method {
			case MethodLinear:
				row[j] = bilinear(values, lp, jp)
			case MethodNearest:
				row[j] = nearest(values, lp, jp)
			case MethodCubic:
				row[j] = bicubic(values, lp, jp)
			default:
				return nil, fmt.Errorf("unknown interpolation method %q", method)
			}
		}
		out[i] = row
	}
	return out, nil
}

// bilinear evaluates
//
//	f(x,y) ≈ (1-t)(1-u)f00 + t(1-u)f10 + (1-t)u f01 + tu f11
//
// over the bracket cell. Fractions outside [0, 1] extend the plane of the
// edge cell, which is the linear extrapolation required at domain edges.
func bilinear(values [][]float64, lat, lon axisPos) float64 {
	u := lat.frac
	t := lon.frac
	v00 := values[lat.idx][lon.idx]
	v10 := values[lat.idx][lon.idx+1]
	v01 := values[lat.idx+1][lon.idx]
	v11 := values[lat.idx+1][lon.idx+1]
	return (1-t)*(1-u)*v00 + t*(1-u)*v10 + (1-t)*u*v01 + t*u*v11
}

func nearest(values [][]float64, lat, lon axisPos) float64 {
	i := lat.idx
	if lat.frac >= 0.5 {
		i++
	}
	j := lon.idx
	if lon.frac >= 0.5 {
		j++
	}
	i = clampIndex(i, len(values)-1)
	j = clampIndex(j, len(values[0])-1)
	return values[i][j]
}

// bicubic applies separable Catmull-Rom interpolation: four lon-direction
// passes feeding one lat-direction pass. Neighbour rows and columns beyond
// the grid are clamped to the edge sample.
func bicubic(values [][]float64, lat, lon axisPos) float64 {
	nLat := len(values)
	var col [4]float64
	for m := -1; m <= 2; m++ {
		i := clampIndex(lat.idx+m, nLat-1)
		col[m+1] = catmullRow(values[i], lon)
	}
	return catmullRom(col, lat.frac)
}

func catmullRow(row []float64, lon axisPos) float64 {
	n := len(row)
	var p [4]float64
	for m := -1; m <= 2; m++ {
		p[m+1] = row[clampIndex(lon.idx+m, n-1)]
	}
	return catmullRom(p, lon.frac)
}

func catmullRom(p [4]float64, t float64) float64 {
	return p[1] + 0.5*t*(p[2]-p[0]+t*(2*p[0]-5*p[1]+4*p[2]-p[3]+t*(3*(p[1]-p[2])+p[3]-p[0])))
}

func clampIndex(i, max int) int {
	if i < 0 {
		return 0
	}
	if i > max {
		return max
	}
	return i
}
