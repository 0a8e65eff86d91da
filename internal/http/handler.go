package http

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"go.ngs.io/rastercast/internal/adapter/aemet"
	"go.ngs.io/rastercast/internal/adapter/interp"
	"go.ngs.io/rastercast/internal/adapter/store/raster"
	"go.ngs.io/rastercast/internal/domain"
	"go.ngs.io/rastercast/internal/render"
	"go.ngs.io/rastercast/internal/usecase"
)

// frameTolerance bounds how far a requested timestamp may sit from the
// nearest cube step before the frame is reported missing.
const frameTolerance = 30 * time.Minute

// Handler handles HTTP requests for raster views and exports.
type Handler struct {
	view     *usecase.ViewService
	cache    *usecase.RasterCache
	exporter *usecase.BulkExporter
	radar    *aemet.Client // nil when no API key is configured
}

// NewHandler creates a new HTTP handler.
func NewHandler(view *usecase.ViewService, cache *usecase.RasterCache, exporter *usecase.BulkExporter, radar *aemet.Client) *Handler {
	return &Handler{
		view:     view,
		cache:    cache,
		exporter: exporter,
		radar:    radar,
	}
}

// GetFrame handles GET /v1/rasters/frame. It renders (or serves from cache)
// the color-mapped preview of one variable at one timestamp.
func (h *Handler) GetFrame(c *gin.Context) {
	bbox, ok := parseBBox(c)
	if !ok {
		return
	}
	variable, ok := parseVariable(c)
	if !ok {
		return
	}

	tsStr := c.Query("time")
	if tsStr == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "time parameter is required"})
		return
	}
	ts, err := time.Parse(time.RFC3339, tsStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid time (expected RFC3339): %v", err)})
		return
	}
	ts = ts.UTC()

	method, err := interp.ParseMethod(c.Query("method"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	resolution, ok := parseOptionalFloat(c, "resolution")
	if !ok {
		return
	}

	// Fetch the whole day containing the timestamp; neighbouring frame
	// requests for the same day then slice one provider fetch.
	dayStart := ts.Truncate(24 * time.Hour)
	req := usecase.ViewRequest{
		BBox:             bbox,
		Window:           domain.TimeWindow{Start: dayStart, End: dayStart.Add(24 * time.Hour)},
		TargetResolution: floatOrZero(resolution),
		Method:           method,
		HighResolution:   true,
	}
	cube, err := h.view.Cube(c.Request.Context(), req, variable)
	if err != nil {
		respondError(c, err)
		return
	}

	frame, found := cube.NearestSlice(ts, frameTolerance)
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("no frame within %s of %s", frameTolerance, ts.Format(time.RFC3339))})
		return
	}

	spec := render.DefaultSpec(variable)
	vmin, ok := parseOptionalFloat(c, "vmin")
	if !ok {
		return
	}
	vmax, ok := parseOptionalFloat(c, "vmax")
	if !ok {
		return
	}
	spec.VMin, spec.VMax = vmin, vmax

	key := raster.NewKey(bbox, variable, frame.Time)
	result, err := h.cache.GetOrRender(c.Request.Context(), key, frame, spec, cube.Provenance)
	if err != nil {
		respondError(c, err)
		return
	}

	if len(result.PreviewPNG) > 0 {
		c.Header("X-Raster-Key", key.String())
		c.Data(http.StatusOK, "image/png", result.PreviewPNG)
		return
	}
	// Durable hit: hand back the stored artifact URLs instead of pixels.
	c.JSON(http.StatusOK, gin.H{
		"key":         key.String(),
		"preview_url": result.PreviewURL,
		"export_url":  result.ExportURL,
	})
}

// FrameInfo is one animation step of a frame listing.
type FrameInfo struct {
	Time time.Time `json:"time"`
	Min  float64   `json:"min"`
	Max  float64   `json:"max"`
}

// GetFrames handles GET /v1/rasters/frames. It returns the available
// timestamps of a window plus the value range across all of them, so
// clients can pin vmin/vmax and keep the color scale stable while
// animating.
func (h *Handler) GetFrames(c *gin.Context) {
	bbox, ok := parseBBox(c)
	if !ok {
		return
	}
	variable, ok := parseVariable(c)
	if !ok {
		return
	}
	window, ok := parseWindow(c)
	if !ok {
		return
	}

	stride := 0
	if s := c.Query("stride"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "stride must be a positive integer"})
			return
		}
		stride = v
	}

	// The listing works on the raw sample cube; interpolation happens per
	// frame when previews are requested.
	cube, err := h.view.Cube(c.Request.Context(), usecase.ViewRequest{
		BBox:       bbox,
		Window:     window,
		TimeStride: stride,
	}, variable)
	if err != nil {
		respondError(c, err)
		return
	}

	frames := make([]FrameInfo, 0, cube.Times.Len())
	globalMin, globalMax := 0.0, 0.0
	for t := 0; t < cube.Times.Len(); t++ {
		frame := cube.Frame(t)
		fmin, fmax, valued := frame.MinMax()
		if !valued {
			continue
		}
		if len(frames) == 0 || fmin < globalMin {
			globalMin = fmin
		}
		if len(frames) == 0 || fmax > globalMax {
			globalMax = fmax
		}
		frames = append(frames, FrameInfo{Time: frame.Time, Min: fmin, Max: fmax})
	}

	c.JSON(http.StatusOK, gin.H{
		"variable": variable.String(),
		"region":   bbox.RegionHash(),
		"frames":   frames,
		"count":    len(frames),
		"vmin":     globalMin,
		"vmax":     globalMax,
	})
}

// Export handles GET /v1/export. It produces a zip of georeferenced frames
// over the window and streams it as a download.
func (h *Handler) Export(c *gin.Context) {
	bbox, ok := parseBBox(c)
	if !ok {
		return
	}
	window, ok := parseWindow(c)
	if !ok {
		return
	}

	intervalHours := 24
	if s := c.Query("interval"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "interval must be a positive number of hours"})
			return
		}
		intervalHours = v
	}
	resolution, ok := parseOptionalFloat(c, "resolution")
	if !ok {
		return
	}

	archive, written, err := h.exporter.Export(c.Request.Context(), window, intervalHours, bbox, floatOrZero(resolution))
	if err != nil {
		respondError(c, err)
		return
	}
	defer os.RemoveAll(filepath.Dir(archive))

	c.Header("X-Frame-Count", strconv.Itoa(written))
	c.FileAttachment(archive, filepath.Base(archive))
}

// GetRadarOverlay handles GET /v1/radar/overlay.
func (h *Handler) GetRadarOverlay(c *gin.Context) {
	if h.radar == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "radar overlay is not configured"})
		return
	}
	overlay, err := h.radar.RadarComposite(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, overlay)
}

// HealthCheck handles GET /health.
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// parseBBox reads the four bounding box parameters. On failure it writes
// the error response and returns ok=false.
func parseBBox(c *gin.Context) (domain.BoundingBox, bool) {
	var bbox domain.BoundingBox
	fields := []struct {
		name string
		dst  *float64
	}{
		{"min_lat", &bbox.MinLat},
		{"max_lat", &bbox.MaxLat},
		{"min_lon", &bbox.MinLon},
		{"max_lon", &bbox.MaxLon},
	}
	for _, f := range fields {
		raw := c.Query(f.name)
		if raw == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("%s parameter is required", f.name)})
			return bbox, false
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid %s: %v", f.name, err)})
			return bbox, false
		}
		*f.dst = v
	}
	if err := bbox.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return bbox, false
	}
	return bbox, true
}

func parseVariable(c *gin.Context) (domain.Variable, bool) {
	raw := c.Query("variable")
	if raw == "" {
		return domain.VarPrecipitation, true
	}
	v := domain.Variable(raw)
	if err := v.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return v, false
	}
	return v, true
}

func parseWindow(c *gin.Context) (domain.TimeWindow, bool) {
	startStr := c.Query("start")
	endStr := c.Query("end")
	if startStr == "" || endStr == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "start and end parameters are required"})
		return domain.TimeWindow{}, false
	}
	start, err := time.Parse(time.RFC3339, startStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid start time (expected RFC3339): %v", err)})
		return domain.TimeWindow{}, false
	}
	end, err := time.Parse(time.RFC3339, endStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid end time (expected RFC3339): %v", err)})
		return domain.TimeWindow{}, false
	}
	window := domain.TimeWindow{Start: start.UTC(), End: end.UTC()}
	if err := window.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return window, false
	}
	return window, true
}

// parseOptionalFloat returns nil when the parameter is absent. ok=false
// means the response has already been written.
func parseOptionalFloat(c *gin.Context, name string) (*float64, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid %s: %v", name, err)})
		return nil, false
	}
	return &v, true
}

func floatOrZero(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}

// respondError maps pipeline failures onto HTTP statuses.
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrInvalidRegion),
		errors.Is(err, domain.ErrInsufficientGrid):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrProviderUnavailable),
		errors.Is(err, domain.ErrIncompletePointSet),
		errors.Is(err, domain.ErrInconsistentTimeAxis):
		status = http.StatusBadGateway
	case errors.Is(err, domain.ErrPersistenceFailure):
		status = http.StatusInternalServerError
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
