// Package openmeteo fetches batched point forecasts from the Open-Meteo API.
package openmeteo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"go.ngs.io/rastercast/internal/domain"
)

// DefaultBaseURL is the public forecast endpoint. It serves both future and
// recent-past hours, so history windows reuse the same endpoint.
const DefaultBaseURL = "https://api.open-meteo.com/v1/forecast"

// BackoffConfig controls retry behaviour around the batched call.
type BackoffConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// Client issues one batched query per fetch: every grid point's coordinate
// pair rides in a single request, never one request per point.
type Client struct {
	baseURL    string
	httpClient *http.Client
	backoff    BackoffConfig
	circuit    *gobreaker.CircuitBreaker
}

// NewClient creates a provider client with retry, backoff and a circuit
// breaker guarding the transport boundary.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "openmeteo",
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
	})
	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		backoff: BackoffConfig{
			MaxRetries:      3,
			InitialInterval: 500 * time.Millisecond,
			MaxInterval:     5 * time.Second,
		},
		circuit: cb,
	}
}

// Fetch returns one PointSeries per grid point in row-major order: latitude
// varies slower than longitude. CubeAssembler depends on exactly this
// ordering to reshape the flat series list back into a (lat, lon) plane.
func (c *Client) Fetch(ctx context.Context, grid domain.SampleGrid, window domain.TimeWindow, variables []domain.Variable) ([]domain.PointSeries, error) {
	if err := window.Validate(); err != nil {
		return nil, err
	}
	if err := domain.ValidateVariables(variables); err != nil {
		return nil, err
	}
	if grid.NumPoints() == 0 {
		return nil, fmt.Errorf("%w: empty grid", domain.ErrInvalidRegion)
	}

	req, err := c.buildRequest(ctx, grid, window, variables)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	body, err := c.doWithResilience(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrProviderUnavailable, err)
	}

	locs, err := decodeLocations(body)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed payload: %v", domain.ErrProviderUnavailable, err)
	}
	slog.DebugContext(ctx, "point fetch complete",
		"points", len(locs), "variables", len(variables), "elapsed", time.Since(start))

	if len(locs) != grid.NumPoints() {
		return nil, fmt.Errorf("%w: requested %d points, provider returned %d",
			domain.ErrIncompletePointSet, grid.NumPoints(), len(locs))
	}

	return toPointSeries(locs, grid, variables)
}

func (c *Client) buildRequest(ctx context.Context, grid domain.SampleGrid, window domain.TimeWindow, variables []domain.Variable) (*http.Request, error) {
	lats := make([]string, 0, grid.NumPoints())
	lons := make([]string, 0, grid.NumPoints())
	for _, lat := range grid.Lats {
		for _, lon := range grid.Lons {
			lats = append(lats, strconv.FormatFloat(lat, 'f', 4, 64))
			lons = append(lons, strconv.FormatFloat(lon, 'f', 4, 64))
		}
	}

	hourly := make([]string, len(variables))
	for i, v := range variables {
		hourly[i] = v.ProviderName()
	}

	values := url.Values{}
	values.Set("latitude", strings.Join(lats, ","))
	values.Set("longitude", strings.Join(lons, ","))
	values.Set("hourly", strings.Join(hourly, ","))
	values.Set("start_date", window.Start.UTC().Format("2006-01-02"))
	values.Set("end_date", window.End.UTC().Format("2006-01-02"))
	values.Set("timeformat", "unixtime")
	// best_match picks the finest model covering the region (ICON-D2 in
	// Europe, GFS globally).
	values.Set("models", "best_match")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s?%s", c.baseURL, values.Encode()), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

var (
	errRateLimited = errors.New("rate limited")
	errServerError = errors.New("server error")
	errUnexpected  = errors.New("unexpected status code")
)

// doWithResilience executes the request with exponential backoff retries
// behind the circuit breaker and returns the response body.
func (c *Client) doWithResilience(ctx context.Context, req *http.Request) ([]byte, error) {
	var attempt int
	var lastErr error

	for {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		result, err := c.circuit.Execute(func() (interface{}, error) {
			resp, execErr := c.httpClient.Do(req)
			if execErr != nil {
				return nil, execErr
			}
			defer resp.Body.Close()

			if resp.StatusCode == http.StatusTooManyRequests {
				return nil, errRateLimited
			}
			if resp.StatusCode >= 500 {
				return nil, errServerError
			}
			if resp.StatusCode < 200 || resp.StatusCode >= 300 {
				return nil, fmt.Errorf("%w: %d", errUnexpected, resp.StatusCode)
			}
			return io.ReadAll(resp.Body)
		})
		if err == nil {
			return result.([]byte), nil
		}

		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("circuit breaker open: %v", err)
		}

		lastErr = err
		if attempt >= c.backoff.MaxRetries {
			return nil, lastErr
		}

		delay := c.backoff.InitialInterval * time.Duration(math.Pow(2, float64(attempt)))
		if c.backoff.MaxInterval > 0 && delay > c.backoff.MaxInterval {
			delay = c.backoff.MaxInterval
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
		attempt++
	}
}

// decodeLocations accepts either a single location object or an array.
func decodeLocations(body []byte) ([]locationResponse, error) {
	trimmed := strings.TrimSpace(string(body))
	if strings.HasPrefix(trimmed, "[") {
		var locs []locationResponse
		if err := json.Unmarshal(body, &locs); err != nil {
			return nil, err
		}
		return locs, nil
	}
	var loc locationResponse
	if err := json.Unmarshal(body, &loc); err != nil {
		return nil, err
	}
	return []locationResponse{loc}, nil
}

// toPointSeries validates the shared time axis and reshapes the payload.
// All points must carry a series of the same length for every variable; the
// axis itself comes from the first point, per the provider's shared-axis
// guarantee.
func toPointSeries(locs []locationResponse, grid domain.SampleGrid, variables []domain.Variable) ([]domain.PointSeries, error) {
	first := locs[0].Hourly
	if len(first.Time) < 2 {
		return nil, fmt.Errorf("%w: provider time axis has %d steps",
			domain.ErrInconsistentTimeAxis, len(first.Time))
	}
	interval := first.Time[1] - first.Time[0]
	axis, err := domain.NewTimeAxis(first.Time[0], first.Time[len(first.Time)-1]+interval, interval)
	if err != nil {
		return nil, err
	}

	series := make([]domain.PointSeries, 0, len(locs))
	idx := 0
	for _, lat := range grid.Lats {
		for _, lon := range grid.Lons {
			loc := locs[idx]
			values := make(map[domain.Variable][]float64, len(variables))
			for _, v := range variables {
				vals, ok := loc.Hourly.series(v)
				if !ok {
					return nil, fmt.Errorf("%w: point %d missing %s series",
						domain.ErrProviderUnavailable, idx, v)
				}
				if len(vals) != axis.Len() {
					return nil, fmt.Errorf("%w: point %d has %d %s values, axis has %d",
						domain.ErrInconsistentTimeAxis, idx, len(vals), v, axis.Len())
				}
				values[v] = vals
			}
			series = append(series, domain.PointSeries{
				Lat:    lat,
				Lon:    lon,
				Axis:   axis,
				Values: values,
			})
			idx++
		}
	}
	return series, nil
}
