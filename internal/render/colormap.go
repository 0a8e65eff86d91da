// Package render turns cube frames into raster artifacts: color-mapped PNG
// previews and georeferenced NetCDF export files.
package render

import (
	"fmt"
	"image/color"
	"math"
)

// Stop is one anchor of a gradient, at a normalized position in [0, 1].
type Stop struct {
	Pos   float64
	Color color.NRGBA
}

// Gradient maps normalized values onto RGBA by linear blending between
// ordered stops.
type Gradient struct {
	stops []Stop
}

// NewGradient builds a gradient from explicit stops. Stops must be ordered
// by position with the first at 0 and the last at 1.
func NewGradient(stops []Stop) (Gradient, error) {
	if len(stops) < 2 {
		return Gradient{}, fmt.Errorf("gradient needs at least 2 stops, got %d", len(stops))
	}
	if stops[0].Pos != 0 || stops[len(stops)-1].Pos != 1 {
		return Gradient{}, fmt.Errorf("gradient must span [0, 1]")
	}
	for i := 1; i < len(stops); i++ {
		if stops[i].Pos <= stops[i-1].Pos {
			return Gradient{}, fmt.Errorf("gradient stops must be strictly increasing")
		}
	}
	return Gradient{stops: stops}, nil
}

// FromColors spreads a color list evenly over [0, 1].
func FromColors(colors []color.NRGBA) (Gradient, error) {
	if len(colors) < 2 {
		return Gradient{}, fmt.Errorf("gradient needs at least 2 colors, got %d", len(colors))
	}
	stops := make([]Stop, len(colors))
	for i, c := range colors {
		stops[i] = Stop{Pos: float64(i) / float64(len(colors)-1), Color: c}
	}
	return Gradient{stops: stops}, nil
}

// RainGradient is the default precipitation ramp: fully transparent for dry
// cells rising through green and yellow to red.
func RainGradient() Gradient {
	g, _ := NewGradient([]Stop{
		{0.0, color.NRGBA{0, 0, 0, 0}},
		{0.2, color.NRGBA{124, 252, 0, 255}},  // lawn green
		{0.4, color.NRGBA{50, 205, 50, 255}},  // lime green
		{0.6, color.NRGBA{255, 255, 0, 255}},  // yellow
		{0.8, color.NRGBA{255, 140, 0, 255}},  // dark orange
		{1.0, color.NRGBA{255, 0, 0, 255}},    // red
	})
	return g
}

// GrayGradient is a neutral ramp for non-precipitation variables.
func GrayGradient() Gradient {
	g, _ := FromColors([]color.NRGBA{
		{255, 255, 255, 0},
		{128, 128, 128, 200},
		{30, 30, 30, 255},
	})
	return g
}

// At returns the blended color for a normalized position. Positions outside
// [0, 1] clamp to the end stops.
func (g Gradient) At(t float64) color.NRGBA {
	if math.IsNaN(t) || t <= 0 {
		return g.stops[0].Color
	}
	if t >= 1 {
		return g.stops[len(g.stops)-1].Color
	}
	for i := 1; i < len(g.stops); i++ {
		if t <= g.stops[i].Pos {
			lo, hi := g.stops[i-1], g.stops[i]
			f := (t - lo.Pos) / (hi.Pos - lo.Pos)
			return blend(lo.Color, hi.Color, f)
		}
	}
	return g.stops[len(g.stops)-1].Color
}

func blend(a, b color.NRGBA, f float64) color.NRGBA {
	return color.NRGBA{
		R: lerp8(a.R, b.R, f),
		G: lerp8(a.G, b.G, f),
		B: lerp8(a.B, b.B, f),
		A: lerp8(a.A, b.A, f),
	}
}

func lerp8(a, b uint8, f float64) uint8 {
	return uint8(math.Round(float64(a) + f*(float64(b)-float64(a))))
}
