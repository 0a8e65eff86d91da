package openmeteo

import "go.ngs.io/rastercast/internal/domain"

// locationResponse is one grid point's block of the batched forecast
// payload. The provider returns a bare object for a single location and an
// array for a batch; decodeLocations normalizes both to a slice.
type locationResponse struct {
	Latitude  float64     `json:"latitude"`
	Longitude float64     `json:"longitude"`
	Hourly    hourlyBlock `json:"hourly"`
}

// hourlyBlock carries the shared time axis (epoch seconds, via
// timeformat=unixtime) and one value array per requested variable.
type hourlyBlock struct {
	Time          []int64   `json:"time"`
	Precipitation []float64 `json:"precipitation"`
	CloudCover    []float64 `json:"cloud_cover"`
	WeatherCode   []float64 `json:"weather_code"`
}

// series returns the value array for an internal variable. The mapping is
// fixed at compile time; an unmapped variable is a programming error caught
// by domain.ValidateVariables before any request is built.
func (h hourlyBlock) series(v domain.Variable) ([]float64, bool) {
	switch v {
	case domain.VarPrecipitation:
		return h.Precipitation, h.Precipitation != nil
	case domain.VarCloudCover:
		return h.CloudCover, h.CloudCover != nil
	case domain.VarWeatherCode:
		return h.WeatherCode, h.WeatherCode != nil
	default:
		return nil, false
	}
}
