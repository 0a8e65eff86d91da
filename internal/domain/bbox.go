// Package domain holds the value objects and pure services of the raster
// pipeline: bounding boxes, sample grids, data cubes and their assembly.
package domain

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"time"
)

// BoundingBox is a rectangular geographic region in degrees.
// Immutable value object; validate before use.
type BoundingBox struct {
	MinLat float64
	MaxLat float64
	MinLon float64
	MaxLon float64
}

// Validate checks coordinate ranges and ordering.
func (b BoundingBox) Validate() error {
	if b.MinLat < -90 || b.MinLat > 90 || b.MaxLat < -90 || b.MaxLat > 90 {
		return fmt.Errorf("%w: latitude out of [-90, 90]", ErrInvalidRegion)
	}
	if b.MinLon < -180 || b.MinLon > 180 || b.MaxLon < -180 || b.MaxLon > 180 {
		return fmt.Errorf("%w: longitude out of [-180, 180]", ErrInvalidRegion)
	}
	if b.MinLat >= b.MaxLat {
		return fmt.Errorf("%w: min_lat must be below max_lat", ErrInvalidRegion)
	}
	if b.MinLon >= b.MaxLon {
		return fmt.Errorf("%w: min_lon must be below max_lon", ErrInvalidRegion)
	}
	return nil
}

// LatSpan returns the latitude extent in degrees.
func (b BoundingBox) LatSpan() float64 { return b.MaxLat - b.MinLat }

// LonSpan returns the longitude extent in degrees.
func (b BoundingBox) LonSpan() float64 { return b.MaxLon - b.MinLon }

// RegionHash returns an 8-character digest of the box corners rounded to
// 2 decimal degrees. Near-identical boxes intentionally collapse onto the
// same hash so they share cache entries.
func (b BoundingBox) RegionHash() string {
	s := fmt.Sprintf("%.2f_%.2f_%.2f_%.2f", b.MinLat, b.MaxLat, b.MinLon, b.MaxLon)
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])[:8]
}

// TimeWindow is a closed UTC time range.
type TimeWindow struct {
	Start time.Time
	End   time.Time
}

// Validate checks ordering and that both ends carry a location (UTC expected).
func (w TimeWindow) Validate() error {
	if w.Start.IsZero() || w.End.IsZero() {
		return fmt.Errorf("time window bounds must be set")
	}
	if w.End.Before(w.Start) {
		return fmt.Errorf("time window start %s is after end %s",
			w.Start.Format(time.RFC3339), w.End.Format(time.RFC3339))
	}
	return nil
}

// Duration returns the window length.
func (w TimeWindow) Duration() time.Duration { return w.End.Sub(w.Start) }
