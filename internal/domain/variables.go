package domain

import "fmt"

// Variable identifies a meteorological field carried through the pipeline.
type Variable string

const (
	VarPrecipitation Variable = "precipitation"
	VarCloudCover    Variable = "cloud_cover"
	VarWeatherCode   Variable = "weather_code"
)

// providerNames maps internal variables to the hourly field names used by
// the point-data provider. Fixed at compile time; Validate catches unmapped
// variables before any request is issued instead of failing mid-parse.
var providerNames = map[Variable]string{
	VarPrecipitation: "precipitation",
	VarCloudCover:    "cloud_cover",
	VarWeatherCode:   "weather_code",
}

// Validate reports whether the variable has a provider mapping.
func (v Variable) Validate() error {
	if _, ok := providerNames[v]; !ok {
		return fmt.Errorf("unknown variable %q", string(v))
	}
	return nil
}

// ProviderName returns the provider-side field name.
func (v Variable) ProviderName() string { return providerNames[v] }

// IsRate reports whether the variable is a physical rate or amount that can
// never be negative. Interpolation overshoot on these is clamped to zero.
func (v Variable) IsRate() bool { return v == VarPrecipitation }

// String implements fmt.Stringer.
func (v Variable) String() string { return string(v) }

// DefaultVariables is the standard hourly field set fetched for a view.
func DefaultVariables() []Variable {
	return []Variable{VarPrecipitation, VarCloudCover, VarWeatherCode}
}

// ValidateVariables checks every entry of a requested variable list.
func ValidateVariables(vars []Variable) error {
	if len(vars) == 0 {
		return fmt.Errorf("at least one variable is required")
	}
	for _, v := range vars {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
}
