package domain

import (
	"fmt"
	"math"
	"time"
)

// TimeAxis is the shared hourly axis of one fetch, derived from the
// provider's (start, end, interval) epoch-second triple.
type TimeAxis struct {
	Steps []time.Time
}

// NewTimeAxis expands [startUnix, endUnix) at intervalSec into UTC steps.
func NewTimeAxis(startUnix, endUnix, intervalSec int64) (TimeAxis, error) {
	if intervalSec <= 0 {
		return TimeAxis{}, fmt.Errorf("%w: non-positive interval %d", ErrInconsistentTimeAxis, intervalSec)
	}
	if endUnix <= startUnix {
		return TimeAxis{}, fmt.Errorf("%w: empty range [%d, %d)", ErrInconsistentTimeAxis, startUnix, endUnix)
	}
	n := int((endUnix - startUnix) / intervalSec)
	steps := make([]time.Time, n)
	for i := 0; i < n; i++ {
		steps[i] = time.Unix(startUnix+int64(i)*intervalSec, 0).UTC()
	}
	return TimeAxis{Steps: steps}, nil
}

// Len returns the number of time steps.
func (a TimeAxis) Len() int { return len(a.Steps) }

// NearestIndex returns the index of the step closest to t and its absolute
// distance. The second return is false for an empty axis.
func (a TimeAxis) NearestIndex(t time.Time) (int, time.Duration, bool) {
	if len(a.Steps) == 0 {
		return 0, 0, false
	}
	best := 0
	bestDist := absDuration(a.Steps[0].Sub(t))
	for i := 1; i < len(a.Steps); i++ {
		d := absDuration(a.Steps[i].Sub(t))
		if d < bestDist {
			best = i
			bestDist = d
		}
	}
	return best, bestDist, true
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

// PointSeries is one grid point's time-indexed values, one slice per
// requested variable. All series of a fetch share the same time axis.
type PointSeries struct {
	Lat    float64
	Lon    float64
	Axis   TimeAxis
	Values map[Variable][]float64
}

// VariableCube is a dense (time, lat, lon) tensor for one variable.
// Axes are ascending; Data[t][i][j] is the value at (Times[t], Lats[i],
// Lons[j]). Immutable after assembly.
type VariableCube struct {
	Variable Variable
	Times    TimeAxis
	Lats     []float64
	Lons     []float64
	Data     [][][]float64
}

// At returns the value at time index t, latitude index i, longitude index j.
func (c *VariableCube) At(t, i, j int) float64 { return c.Data[t][i][j] }

// Shape returns (nTimes, nLats, nLons).
func (c *VariableCube) Shape() (int, int, int) {
	return len(c.Data), len(c.Lats), len(c.Lons)
}

// Slice returns the 2D frame at time index t as [lat][lon] rows.
func (c *VariableCube) Slice(t int) [][]float64 {
	return c.Data[t]
}

// NearestSlice selects the frame closest to ts within tolerance. A step with
// no frame inside the tolerance returns ok=false rather than an error: bulk
// export treats it as a skippable gap.
func (c *VariableCube) NearestSlice(ts time.Time, tolerance time.Duration) (Frame, bool) {
	idx, dist, ok := c.Times.NearestIndex(ts)
	if !ok || dist > tolerance {
		return Frame{}, false
	}
	return c.Frame(idx), true
}

// Frame returns the frame at time index t together with its coordinates.
func (c *VariableCube) Frame(t int) Frame {
	return Frame{
		Variable: c.Variable,
		Time:     c.Times.Steps[t],
		Lats:     c.Lats,
		Lons:     c.Lons,
		Values:   c.Data[t],
	}
}

// SubsampleTime returns a cube keeping every stride-th time step. Stride 1
// or less returns the receiver unchanged. Axes are shared, not copied; the
// cube is read-only by convention.
func (c *VariableCube) SubsampleTime(stride int) *VariableCube {
	if stride <= 1 {
		return c
	}
	steps := make([]time.Time, 0, (c.Times.Len()+stride-1)/stride)
	data := make([][][]float64, 0, cap(steps))
	for t := 0; t < c.Times.Len(); t += stride {
		steps = append(steps, c.Times.Steps[t])
		data = append(data, c.Data[t])
	}
	return &VariableCube{
		Variable: c.Variable,
		Times:    TimeAxis{Steps: steps},
		Lats:     c.Lats,
		Lons:     c.Lons,
		Data:     data,
	}
}

// Frame is a single georeferenced 2D slice of a cube.
type Frame struct {
	Variable Variable
	Time     time.Time
	Lats     []float64
	Lons     []float64
	Values   [][]float64 // [lat][lon], latitude ascending
}

// MinMax returns the finite value range of the frame. NaNs are skipped; an
// all-NaN frame returns (0, 0, false).
func (f Frame) MinMax() (float64, float64, bool) {
	vmin := math.Inf(1)
	vmax := math.Inf(-1)
	found := false
	for _, row := range f.Values {
		for _, v := range row {
			if math.IsNaN(v) {
				continue
			}
			found = true
			if v < vmin {
				vmin = v
			}
			if v > vmax {
				vmax = v
			}
		}
	}
	if !found {
		return 0, 0, false
	}
	return vmin, vmax, true
}

// Provenance describes how a dense cube was produced.
type Provenance struct {
	Source     string // e.g. "open-meteo"
	CRS        string // e.g. "EPSG:4326"
	Processing string // e.g. "bilinear resample at 0.01 deg"
}

// DenseCube is a VariableCube resampled onto a finer regular grid.
type DenseCube struct {
	VariableCube
	TargetResolutionDeg float64
	Provenance          Provenance
}
