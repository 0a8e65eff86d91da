package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"go.ngs.io/rastercast/internal/adapter/store/raster"
	"go.ngs.io/rastercast/internal/domain"
	"go.ngs.io/rastercast/internal/render"
)

// RenderResult is what GetOrRender hands back to the caller. Exactly one of
// PreviewPNG and PreviewURL is set: fresh renders return bytes, durable
// hits return the stored URL without regenerating pixels. ExportURL is
// empty until a background persist for the key has completed.
type RenderResult struct {
	Key        raster.Key
	PreviewPNG []byte
	PreviewURL string
	ExportURL  string
	FromCache  bool
}

// RasterCache is the two-tier raster artifact cache.
//
// Tier 1 is an in-process memo serving repeated requests within a session
// with no I/O. Tier 2 is the durable store (objects + metadata). On a full
// miss the preview is rendered synchronously and returned immediately; the
// georeferenced export plus both uploads run on a bounded background queue
// off the request path. Background failures are logged and dropped - the
// caller already has its preview. Per-key singleflight keeps concurrent
// background generations for one key from running twice in this process;
// duplicate renders across processes remain possible and are tolerated
// because uploads are idempotent overwrites keyed by filename.
//
// No eviction: entries accumulate for the cache lifetime, matching the
// unbounded durable table.
type RasterCache struct {
	objects raster.ObjectStore
	meta    raster.MetadataStore

	mu   sync.Mutex
	memo map[string]RenderResult

	group singleflight.Group
	tasks chan func()
	wg    sync.WaitGroup

	// Injection points for tests (call-count instrumentation).
	renderPreview func(domain.Frame, render.Spec) ([]byte, error)
	renderExport  func(domain.Frame, domain.Provenance) ([]byte, error)
}

// CacheOption customizes a RasterCache.
type CacheOption func(*RasterCache)

// WithQueueSize bounds the background persist queue.
func WithQueueSize(n int) CacheOption {
	return func(c *RasterCache) {
		c.tasks = make(chan func(), n)
	}
}

// NewRasterCache creates a cache. Either store may be nil, which disables
// the durable tier: previews are still rendered and memoized, persistence
// is skipped (local fallback mode).
func NewRasterCache(objects raster.ObjectStore, meta raster.MetadataStore, opts ...CacheOption) *RasterCache {
	c := &RasterCache{
		objects:       objects,
		meta:          meta,
		memo:          make(map[string]RenderResult),
		tasks:         make(chan func(), 64),
		renderPreview: render.EncodePNG,
		renderExport:  exportNetCDFBytes,
	}
	for _, opt := range opts {
		opt(c)
	}
	const workers = 4
	for i := 0; i < workers; i++ {
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			for task := range c.tasks {
				task()
			}
		}()
	}
	return c
}

// Close stops accepting background work and waits for in-flight persists.
func (c *RasterCache) Close() {
	close(c.tasks)
	c.wg.Wait()
}

// GetOrRender serves the preview for a key, rendering at most once per key
// per session.
func (c *RasterCache) GetOrRender(ctx context.Context, key raster.Key, frame domain.Frame, spec render.Spec, prov domain.Provenance) (RenderResult, error) {
	memoKey := key.String()

	c.mu.Lock()
	if hit, ok := c.memo[memoKey]; ok {
		c.mu.Unlock()
		hit.FromCache = true
		return hit, nil
	}
	c.mu.Unlock()

	// Durable tier. Read failures degrade to a miss: a broken metadata
	// store must trigger a fresh render, not abort the view.
	if c.meta != nil {
		entry, found, err := c.meta.Lookup(ctx, key)
		if err != nil {
			slog.WarnContext(ctx, "cache lookup failed, treating as miss", "key", memoKey, "error", err)
		} else if found && entry.PreviewURL != "" {
			result := RenderResult{
				Key:        key,
				PreviewURL: entry.PreviewURL,
				ExportURL:  entry.ExportURL,
			}
			c.storeMemo(memoKey, result)
			result.FromCache = true
			return result, nil
		}
	}

	// Full miss: render the preview on the request path so the caller gets
	// pixels immediately.
	pngBytes, err := c.renderPreview(frame, spec)
	if err != nil {
		return RenderResult{}, fmt.Errorf("render preview: %w", err)
	}
	result := RenderResult{Key: key, PreviewPNG: pngBytes}
	c.storeMemo(memoKey, result)

	if c.objects != nil && c.meta != nil {
		c.submitPersist(key, frame, prov, pngBytes)
	}
	return result, nil
}

func (c *RasterCache) storeMemo(memoKey string, result RenderResult) {
	c.mu.Lock()
	c.memo[memoKey] = result
	c.mu.Unlock()
}

// submitPersist queues the durable write. A full queue drops the task with
// a log line rather than blocking the request path; the next request for
// the key will miss the durable tier and queue it again.
func (c *RasterCache) submitPersist(key raster.Key, frame domain.Frame, prov domain.Provenance, pngBytes []byte) {
	task := func() {
		_, _, _ = c.group.Do(key.String(), func() (interface{}, error) {
			c.persist(key, frame, prov, pngBytes)
			return nil, nil
		})
	}
	select {
	case c.tasks <- task:
	default:
		slog.Warn("persist queue full, dropping durable write", "key", key.String())
	}
}

// persist renders the export artifact and uploads both artifacts, then
// registers the cache entry. Every failure path logs and returns: the
// memoized preview stays valid, nothing surfaces to any caller.
func (c *RasterCache) persist(key raster.Key, frame domain.Frame, prov domain.Provenance, pngBytes []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	exportBytes, err := c.renderExport(frame, prov)
	if err != nil {
		slog.Error("export render failed", "key", key.String(), "error", err)
		return
	}

	exportURL, err := c.objects.Upload(ctx, raster.BucketExports, key.Filename(".nc"), exportBytes, "application/x-netcdf")
	if err != nil {
		slog.Error("export upload failed", "key", key.String(), "error", err)
		return
	}
	previewURL, err := c.objects.Upload(ctx, raster.BucketPreviews, key.Filename(".png"), pngBytes, "image/png")
	if err != nil {
		slog.Error("preview upload failed", "key", key.String(), "error", err)
		return
	}

	entry := raster.Entry{
		Filename:   key.Filename(".png"),
		Variable:   key.Variable.String(),
		Timestamp:  key.Time,
		RegionHash: key.RegionHash,
		PreviewURL: previewURL,
		ExportURL:  exportURL,
	}
	if err := c.meta.Upsert(ctx, entry); err != nil {
		slog.Error("cache entry upsert failed", "key", key.String(), "error", err)
		return
	}

	// Swap the memoized bytes for the durable URLs so later requests in
	// this session serve references instead of payloads.
	c.storeMemo(key.String(), RenderResult{
		Key:        key,
		PreviewURL: previewURL,
		ExportURL:  exportURL,
	})
	slog.Debug("raster persisted", "key", key.String(), "preview", previewURL)
}

// exportNetCDFBytes renders the georeferenced artifact through a scratch
// file; the NetCDF library writes to paths, not writers.
func exportNetCDFBytes(frame domain.Frame, prov domain.Provenance) ([]byte, error) {
	tmp, err := os.CreateTemp("", "rastercast-*.nc")
	if err != nil {
		return nil, err
	}
	path := tmp.Name()
	tmp.Close()
	defer os.Remove(path)

	if err := render.WriteNetCDF(path, frame, prov); err != nil {
		return nil, err
	}
	return os.ReadFile(path)
}
