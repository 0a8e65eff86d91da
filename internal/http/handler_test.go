package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"go.ngs.io/rastercast/internal/adapter/aemet"
	"go.ngs.io/rastercast/internal/adapter/store/raster"
	"go.ngs.io/rastercast/internal/domain"
	"go.ngs.io/rastercast/internal/usecase"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// stubFetcher serves a constant field over whole provider days. maxHours
// caps the axis so tests can leave late timestamps without data.
type stubFetcher struct {
	calls    int
	maxHours int
}

func (s *stubFetcher) Fetch(_ context.Context, grid domain.SampleGrid, window domain.TimeWindow, variables []domain.Variable) ([]domain.PointSeries, error) {
	s.calls++
	dayStart := window.Start.UTC().Truncate(24 * time.Hour)
	hours := int(window.End.Sub(dayStart)/time.Hour) + 1
	if s.maxHours > 0 && hours > s.maxHours {
		hours = s.maxHours
	}
	axis, err := domain.NewTimeAxis(dayStart.Unix(), dayStart.Unix()+int64(hours)*3600, 3600)
	if err != nil {
		return nil, err
	}
	series := make([]domain.PointSeries, 0, grid.NumPoints())
	for _, lat := range grid.Lats {
		for _, lon := range grid.Lons {
			values := make(map[domain.Variable][]float64, len(variables))
			for _, v := range variables {
				vals := make([]float64, axis.Len())
				for h := range vals {
					vals[h] = 1.5
				}
				values[v] = vals
			}
			series = append(series, domain.PointSeries{Lat: lat, Lon: lon, Axis: axis, Values: values})
		}
	}
	return series, nil
}

func newTestRouter(t *testing.T, radar *aemet.Client) (*gin.Engine, *usecase.RasterCache) {
	t.Helper()
	view := usecase.NewViewService(&stubFetcher{}, usecase.DefaultViewConfig())
	cache := usecase.NewRasterCache(nil, nil)
	t.Cleanup(cache.Close)
	exporter := usecase.NewBulkExporter(view)
	handler := NewHandler(view, cache, exporter, radar)
	return SetupRouter(handler, nil), cache
}

func frameQuery(extra map[string]string) string {
	q := url.Values{}
	q.Set("min_lat", "40.0")
	q.Set("max_lat", "40.5")
	q.Set("min_lon", "-4.0")
	q.Set("max_lon", "-3.5")
	for k, v := range extra {
		q.Set(k, v)
	}
	return q.Encode()
}

func TestHealthCheck(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

func TestGetFrame(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet,
		"/v1/rasters/frame?"+frameQuery(map[string]string{"time": "2026-03-01T12:00:00Z"}), nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("Content-Type = %s, want image/png", ct)
	}
	if w.Header().Get("X-Raster-Key") == "" {
		t.Errorf("missing raster key header")
	}
	if w.Body.Len() == 0 {
		t.Errorf("empty image body")
	}
}

// cannedMeta reports every key as already persisted.
type cannedMeta struct{}

func (cannedMeta) Lookup(_ context.Context, key raster.Key) (raster.Entry, bool, error) {
	return raster.Entry{
		Filename:   key.Filename(".png"),
		PreviewURL: "http://objects.test/radar-pngs/" + key.Filename(".png"),
		ExportURL:  "http://objects.test/radar-exports/" + key.Filename(".nc"),
	}, true, nil
}

func (cannedMeta) Upsert(context.Context, raster.Entry) error { return nil }

type noopObjects struct{}

func (noopObjects) Upload(_ context.Context, bucket, object string, _ []byte, _ string) (string, error) {
	return "http://objects.test/" + bucket + "/" + object, nil
}

func (noopObjects) PublicURL(bucket, object string) string {
	return "http://objects.test/" + bucket + "/" + object
}

func TestGetFrame_DurableHitReturnsURLs(t *testing.T) {
	view := usecase.NewViewService(&stubFetcher{}, usecase.DefaultViewConfig())
	cache := usecase.NewRasterCache(noopObjects{}, cannedMeta{})
	t.Cleanup(cache.Close)
	router := SetupRouter(NewHandler(view, cache, usecase.NewBulkExporter(view), nil), nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet,
		"/v1/rasters/frame?"+frameQuery(map[string]string{"time": "2026-03-01T12:00:00Z"}), nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var body struct {
		Key        string `json:"key"`
		PreviewURL string `json:"preview_url"`
		ExportURL  string `json:"export_url"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.PreviewURL == "" || body.ExportURL == "" {
		t.Errorf("descriptor missing URLs: %+v", body)
	}
}

func TestGetFrame_Validation(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	cases := []struct {
		name  string
		query string
	}{
		{"missing bbox", "time=2026-03-01T12:00:00Z"},
		{"missing time", frameQuery(nil)},
		{"bad time", frameQuery(map[string]string{"time": "yesterday"})},
		{"bad method", frameQuery(map[string]string{"time": "2026-03-01T12:00:00Z", "method": "spline"})},
		{"bad variable", frameQuery(map[string]string{"time": "2026-03-01T12:00:00Z", "variable": "humidity"})},
		{"inverted bbox", "min_lat=41&max_lat=40&min_lon=-4&max_lon=-3&time=2026-03-01T12:00:00Z"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/v1/rasters/frame?"+tc.query, nil)
			router.ServeHTTP(w, req)
			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", w.Code)
			}
		})
	}
}

func TestGetFrame_NotFoundOutsideTolerance(t *testing.T) {
	// The provider only covers the first six hours of the day, so an
	// evening timestamp has no slice within tolerance.
	view := usecase.NewViewService(&stubFetcher{maxHours: 6}, usecase.DefaultViewConfig())
	cache := usecase.NewRasterCache(nil, nil)
	t.Cleanup(cache.Close)
	router := SetupRouter(NewHandler(view, cache, usecase.NewBulkExporter(view), nil), nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet,
		"/v1/rasters/frame?"+frameQuery(map[string]string{"time": "2026-03-01T23:00:00Z"}), nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404, body %s", w.Code, w.Body.String())
	}
}

func TestGetFrames(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet,
		"/v1/rasters/frames?"+frameQuery(map[string]string{
			"start": "2026-03-01T00:00:00Z",
			"end":   "2026-03-02T00:00:00Z",
		}), nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	var body struct {
		Variable string      `json:"variable"`
		Frames   []FrameInfo `json:"frames"`
		Count    int         `json:"count"`
		VMin     float64     `json:"vmin"`
		VMax     float64     `json:"vmax"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Variable != "precipitation" {
		t.Errorf("variable = %s, want default precipitation", body.Variable)
	}
	if body.Count == 0 || len(body.Frames) != body.Count {
		t.Errorf("count = %d with %d frames", body.Count, len(body.Frames))
	}
	if body.VMin != 1.5 || body.VMax != 1.5 {
		t.Errorf("scale = [%g, %g], want the constant field value", body.VMin, body.VMax)
	}
}

func TestGetFrames_Stride(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	get := func(stride string) int {
		q := map[string]string{
			"start": "2026-03-01T00:00:00Z",
			"end":   "2026-03-02T00:00:00Z",
		}
		if stride != "" {
			q["stride"] = stride
		}
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/v1/rasters/frames?"+frameQuery(q), nil)
		router.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
		}
		var body struct {
			Count int `json:"count"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		return body.Count
	}

	full := get("")
	strided := get("3")
	if want := (full + 2) / 3; strided != want {
		t.Errorf("stride 3 returned %d frames of %d, want %d", strided, full, want)
	}
}

func TestExport_Validation(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	cases := []string{
		// missing window
		frameQuery(nil),
		// inverted window
		frameQuery(map[string]string{"start": "2026-03-02T00:00:00Z", "end": "2026-03-01T00:00:00Z"}),
		// bad interval
		frameQuery(map[string]string{"start": "2026-03-01T00:00:00Z", "end": "2026-03-02T00:00:00Z", "interval": "0"}),
	}
	for _, query := range cases {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/v1/export?"+query, nil)
		router.ServeHTTP(w, req)
		if w.Code != http.StatusBadRequest {
			t.Errorf("query %q: status = %d, want 400", query, w.Code)
		}
	}
}

func TestGetRadarOverlay_Unconfigured(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/radar/overlay", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestGetRadarOverlay(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"estado": 200, "datos": "https://opendata.aemet.es/img/radar.gif"}`))
	}))
	defer upstream.Close()

	radar := aemet.NewClient(upstream.URL, "test-key", upstream.Client())
	router, _ := newTestRouter(t, radar)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/radar/overlay", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var overlay aemet.Overlay
	if err := json.Unmarshal(w.Body.Bytes(), &overlay); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if overlay.ImageURL != "https://opendata.aemet.es/img/radar.gif" {
		t.Errorf("ImageURL = %s", overlay.ImageURL)
	}
}
