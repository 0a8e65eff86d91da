package openmeteo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.ngs.io/rastercast/internal/domain"
)

var testGrid = domain.SampleGrid{
	Lats:          []float64{40.0, 40.5},
	Lons:          []float64{-4.0, -3.5},
	ResolutionDeg: 0.5,
}

var testWindow = domain.TimeWindow{
	Start: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	End:   time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
}

// fakePayload builds a provider response with a shared 3-step hourly axis
// and per-point distinct precipitation values.
func fakePayload(nPoints int) []byte {
	start := testWindow.Start.Unix()
	locs := make([]map[string]any, nPoints)
	for i := range locs {
		locs[i] = map[string]any{
			"latitude":  0.0,
			"longitude": 0.0,
			"hourly": map[string]any{
				"time":          []int64{start, start + 3600, start + 7200},
				"precipitation": []float64{float64(i), float64(i) + 0.5, 0},
			},
		}
	}
	b, _ := json.Marshal(locs)
	return b
}

func newTestClient(srvURL string) *Client {
	c := NewClient(srvURL, &http.Client{Timeout: 5 * time.Second})
	c.backoff = BackoffConfig{MaxRetries: 1, InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond}
	return c
}

func TestFetch_RowMajorOrder(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Write(fakePayload(4))
	}))
	defer srv.Close()

	series, err := newTestClient(srv.URL).Fetch(context.Background(), testGrid, testWindow,
		[]domain.Variable{domain.VarPrecipitation})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(series) != 4 {
		t.Fatalf("got %d series, want 4", len(series))
	}

	// series[i] must be grid point (lat[i/nLons], lon[i%nLons]).
	wantOrder := []struct{ lat, lon float64 }{
		{40.0, -4.0}, {40.0, -3.5}, {40.5, -4.0}, {40.5, -3.5},
	}
	for i, want := range wantOrder {
		if series[i].Lat != want.lat || series[i].Lon != want.lon {
			t.Errorf("series[%d] = (%g, %g), want (%g, %g)",
				i, series[i].Lat, series[i].Lon, want.lat, want.lon)
		}
		// Distinct payload values confirm point i maps to response i.
		if got := series[i].Values[domain.VarPrecipitation][0]; got != float64(i) {
			t.Errorf("series[%d] first value = %g, want %g", i, got, float64(i))
		}
	}

	// The request batches every coordinate pair lat-major, lon-minor.
	if !strings.Contains(gotQuery, "latitude=40.0000%2C40.0000%2C40.5000%2C40.5000") {
		t.Errorf("latitude order wrong in query: %s", gotQuery)
	}
	if !strings.Contains(gotQuery, "longitude=-4.0000%2C-3.5000%2C-4.0000%2C-3.5000") {
		t.Errorf("longitude order wrong in query: %s", gotQuery)
	}
	if !strings.Contains(gotQuery, "timeformat=unixtime") {
		t.Errorf("missing unixtime format in query: %s", gotQuery)
	}
}

func TestFetch_SharedTimeAxis(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(fakePayload(4))
	}))
	defer srv.Close()

	series, err := newTestClient(srv.URL).Fetch(context.Background(), testGrid, testWindow,
		[]domain.Variable{domain.VarPrecipitation})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	axis := series[0].Axis
	if axis.Len() != 3 {
		t.Fatalf("axis length = %d, want 3", axis.Len())
	}
	if !axis.Steps[0].Equal(testWindow.Start) {
		t.Errorf("axis start = %v, want %v", axis.Steps[0], testWindow.Start)
	}
	if step := axis.Steps[1].Sub(axis.Steps[0]); step != time.Hour {
		t.Errorf("axis step = %v, want 1h", step)
	}
}

func TestFetch_IncompletePointSet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(fakePayload(3)) // one point short
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Fetch(context.Background(), testGrid, testWindow,
		[]domain.Variable{domain.VarPrecipitation})
	if !errors.Is(err, domain.ErrIncompletePointSet) {
		t.Errorf("err = %v, want ErrIncompletePointSet", err)
	}
}

func TestFetch_ServerErrorRetriesThenFails(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Fetch(context.Background(), testGrid, testWindow,
		[]domain.Variable{domain.VarPrecipitation})
	if !errors.Is(err, domain.ErrProviderUnavailable) {
		t.Errorf("err = %v, want ErrProviderUnavailable", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2 (initial + one retry)", calls)
	}
}

func TestFetch_RetryRecovers(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			http.Error(w, "flaky", http.StatusBadGateway)
			return
		}
		w.Write(fakePayload(4))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Fetch(context.Background(), testGrid, testWindow,
		[]domain.Variable{domain.VarPrecipitation})
	if err != nil {
		t.Fatalf("Fetch after retry: %v", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestFetch_MalformedPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"hourly": "not-a-block"`)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Fetch(context.Background(), testGrid, testWindow,
		[]domain.Variable{domain.VarPrecipitation})
	if !errors.Is(err, domain.ErrProviderUnavailable) {
		t.Errorf("err = %v, want ErrProviderUnavailable", err)
	}
}

func TestDecodeLocations_SingleObject(t *testing.T) {
	payload := fakePayload(1)
	// Unwrap the single-element array into a bare object.
	var arr []json.RawMessage
	if err := json.Unmarshal(payload, &arr); err != nil {
		t.Fatal(err)
	}
	locs, err := decodeLocations(arr[0])
	if err != nil {
		t.Fatalf("decodeLocations: %v", err)
	}
	if len(locs) != 1 {
		t.Errorf("got %d locations, want 1", len(locs))
	}
}
