package domain

import "fmt"

// AssembleCubes reshapes the flat per-point series returned by a fetch into
// one dense (time, lat, lon) cube per variable.
//
// The input order is load-bearing: series[i] must correspond to grid point
// (Lats[i/len(Lons)], Lons[i%len(Lons)]), i.e. latitude varies slower than
// longitude, exactly the order the fetcher enumerates the grid. The
// (points, times) buffer is first viewed as (lats, lons, times) and then
// transposed to the canonical (times, lats, lons) layout.
func AssembleCubes(series []PointSeries, grid SampleGrid, variables []Variable) (map[Variable]*VariableCube, error) {
	if err := ValidateVariables(variables); err != nil {
		return nil, err
	}
	nLats := len(grid.Lats)
	nLons := len(grid.Lons)
	nPoints := nLats * nLons

	if len(series) != nPoints {
		return nil, fmt.Errorf("%w: got %d series for a %dx%d grid (%d points)",
			ErrIncompletePointSet, len(series), nLats, nLons, nPoints)
	}
	if nPoints == 0 {
		return nil, fmt.Errorf("%w: empty grid", ErrInvalidRegion)
	}

	axis := series[0].Axis
	nTimes := axis.Len()
	if nTimes == 0 {
		return nil, fmt.Errorf("%w: empty time axis", ErrInconsistentTimeAxis)
	}

	cubes := make(map[Variable]*VariableCube, len(variables))
	for _, v := range variables {
		// Fill a (points, times) buffer row per series, verifying each
		// series against the shared axis as we go.
		buf := make([][]float64, nPoints)
		for i, ps := range series {
			vals, ok := ps.Values[v]
			if !ok {
				return nil, fmt.Errorf("%w: point %d has no %s series",
					ErrInconsistentTimeAxis, i, v)
			}
			if len(vals) != nTimes {
				return nil, fmt.Errorf("%w: point %d has %d %s values, expected %d",
					ErrInconsistentTimeAxis, i, len(vals), v, nTimes)
			}
			buf[i] = vals
		}

		// buf[i*nLons+j][t] -> data[t][i][j].
		data := make([][][]float64, nTimes)
		for t := 0; t < nTimes; t++ {
			data[t] = make([][]float64, nLats)
			for i := 0; i < nLats; i++ {
				row := make([]float64, nLons)
				for j := 0; j < nLons; j++ {
					row[j] = buf[i*nLons+j][t]
				}
				data[t][i] = row
			}
		}

		cubes[v] = &VariableCube{
			Variable: v,
			Times:    axis,
			Lats:     grid.Lats,
			Lons:     grid.Lons,
			Data:     data,
		}
	}
	return cubes, nil
}
