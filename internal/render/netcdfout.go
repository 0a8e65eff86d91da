package render

import (
	"fmt"
	"time"

	"github.com/fhs/go-netcdf/netcdf"

	"go.ngs.io/rastercast/internal/domain"
)

// WriteNetCDF writes a single frame as a georeferenced NetCDF file: lat/lon
// coordinate variables plus a (lat, lon) data variable carrying CRS and
// provenance attributes. Latitude is written ascending, matching the frame;
// georeferencing comes from the coordinate variables, not row order.
func WriteNetCDF(path string, frame domain.Frame, prov domain.Provenance) error {
	nLat := len(frame.Lats)
	nLon := len(frame.Lons)
	if nLat == 0 || nLon == 0 {
		return fmt.Errorf("cannot export empty frame")
	}
	if len(frame.Values) != nLat {
		return fmt.Errorf("frame has %d rows for %d latitudes", len(frame.Values), nLat)
	}

	ds, err := netcdf.CreateFile(path, netcdf.CLOBBER|netcdf.NETCDF4)
	if err != nil {
		return fmt.Errorf("%w: create netcdf: %v", domain.ErrPersistenceFailure, err)
	}
	defer ds.Close()

	latDim, err := ds.AddDim("lat", uint64(nLat))
	if err != nil {
		return err
	}
	lonDim, err := ds.AddDim("lon", uint64(nLon))
	if err != nil {
		return err
	}

	latVar, err := ds.AddVar("lat", netcdf.DOUBLE, []netcdf.Dim{latDim})
	if err != nil {
		return err
	}
	lonVar, err := ds.AddVar("lon", netcdf.DOUBLE, []netcdf.Dim{lonDim})
	if err != nil {
		return err
	}
	dataVar, err := ds.AddVar(frame.Variable.String(), netcdf.DOUBLE, []netcdf.Dim{latDim, lonDim})
	if err != nil {
		return err
	}

	if err := latVar.Attr("units").WriteBytes([]byte("degrees_north")); err != nil {
		return err
	}
	if err := lonVar.Attr("units").WriteBytes([]byte("degrees_east")); err != nil {
		return err
	}
	for name, value := range map[string]string{
		"crs":        prov.CRS,
		"source":     prov.Source,
		"processing": prov.Processing,
		"time":       frame.Time.UTC().Format(time.RFC3339),
	} {
		if value == "" {
			continue
		}
		if err := dataVar.Attr(name).WriteBytes([]byte(value)); err != nil {
			return err
		}
	}

	if err := latVar.WriteFloat64s(frame.Lats); err != nil {
		return fmt.Errorf("write lat axis: %w", err)
	}
	if err := lonVar.WriteFloat64s(frame.Lons); err != nil {
		return fmt.Errorf("write lon axis: %w", err)
	}

	flat := make([]float64, 0, nLat*nLon)
	for _, row := range frame.Values {
		flat = append(flat, row...)
	}
	if err := dataVar.WriteFloat64s(flat); err != nil {
		return fmt.Errorf("write data: %w", err)
	}
	return nil
}
