// Package raster implements the durable half of the raster cache: artifact
// objects in MinIO and a cache_entries metadata table in Postgres.
package raster

import (
	"fmt"
	"time"

	"go.ngs.io/rastercast/internal/domain"
)

// Key identifies one rendered artifact pair. The region hash already folds
// in the 2-decimal rounding of the bounding box, so near-identical boxes
// share a key.
type Key struct {
	RegionHash string
	Variable   domain.Variable
	Time       time.Time
}

// NewKey derives the cache key for a frame of a region.
func NewKey(bbox domain.BoundingBox, v domain.Variable, ts time.Time) Key {
	return Key{
		RegionHash: bbox.RegionHash(),
		Variable:   v,
		Time:       ts.UTC().Truncate(time.Minute),
	}
}

// String returns the memo-map form of the key.
func (k Key) String() string {
	return fmt.Sprintf("%s/%s/%s", k.RegionHash, k.Variable, k.Time.Format("20060102T1504"))
}

// Filename returns the deterministic artifact name for an extension,
// e.g. "20261011_1200_precipitation_ab12cd34.png". Uploads keyed by this
// name are idempotent overwrites: two renders of the same key produce the
// same content at the same name.
func (k Key) Filename(ext string) string {
	return fmt.Sprintf("%s_%s_%s%s", k.Time.Format("20060102_1504"), k.Variable, k.RegionHash, ext)
}
