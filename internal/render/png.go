package render

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"

	"go.ngs.io/rastercast/internal/domain"
)

// Spec controls how a frame is color-mapped. VMin/VMax pin the scale; when
// nil the frame's own extremes are used. Fixing both across a frame
// sequence keeps the legend stable through an animation.
type Spec struct {
	Gradient Gradient
	VMin     *float64
	VMax     *float64
}

// DefaultSpec returns the standard spec for a variable.
func DefaultSpec(v domain.Variable) Spec {
	if v == domain.VarPrecipitation {
		return Spec{Gradient: RainGradient()}
	}
	return Spec{Gradient: GrayGradient()}
}

// Scale resolves the effective (vmin, vmax) for a frame.
func (s Spec) Scale(f domain.Frame) (float64, float64) {
	vmin, vmax, ok := f.MinMax()
	if !ok {
		vmin, vmax = 0, 1
	}
	if s.VMin != nil {
		vmin = *s.VMin
	}
	if s.VMax != nil {
		vmax = *s.VMax
	}
	if vmax <= vmin {
		vmax = vmin + 1
	}
	return vmin, vmax
}

// EncodePNG renders a frame as a color-mapped PNG. The image is north-up:
// row 0 is the northernmost latitude, so the lat-ascending frame rows are
// written bottom to top. NaN cells become fully transparent pixels.
func EncodePNG(frame domain.Frame, spec Spec) ([]byte, error) {
	nLat := len(frame.Lats)
	nLon := len(frame.Lons)
	if nLat == 0 || nLon == 0 {
		return nil, fmt.Errorf("cannot render empty frame")
	}
	if len(frame.Values) != nLat {
		return nil, fmt.Errorf("frame has %d rows for %d latitudes", len(frame.Values), nLat)
	}

	vmin, vmax := spec.Scale(frame)
	span := vmax - vmin

	img := image.NewNRGBA(image.Rect(0, 0, nLon, nLat))
	for row := 0; row < nLat; row++ {
		// Flip vertically: image row 0 is the highest latitude.
		src := frame.Values[nLat-1-row]
		for col := 0; col < nLon; col++ {
			v := src[col]
			if math.IsNaN(v) {
				img.SetNRGBA(col, row, color.NRGBA{})
				continue
			}
			img.SetNRGBA(col, row, spec.Gradient.At((v-vmin)/span))
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("png encode: %w", err)
	}
	return buf.Bytes(), nil
}
