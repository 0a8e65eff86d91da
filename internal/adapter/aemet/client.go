// Package aemet fetches the official national radar composite from the
// AEMET OpenData API. It is a read-only overlay collaborator: the image is
// displayed on top of the computed rasters and never enters the grid
// pipeline.
package aemet

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.ngs.io/rastercast/internal/domain"
)

// DefaultBaseURL is the AEMET OpenData API root.
const DefaultBaseURL = "https://opendata.aemet.es/opendata/api"

// PeninsulaBBox is the fixed display extent of the national composite.
var PeninsulaBBox = domain.BoundingBox{
	MinLat: 35.0, MaxLat: 44.5,
	MinLon: -10.0, MaxLon: 5.0,
}

// Overlay is a ready-to-display radar composite reference.
type Overlay struct {
	ImageURL  string             `json:"image_url"`
	BBox      domain.BoundingBox `json:"bbox"`
	FetchedAt time.Time          `json:"fetched_at"`
}

// Client talks to the AEMET OpenData API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates an AEMET client. An empty apiKey disables the adapter;
// callers should treat a nil client as "no overlay available".
func NewClient(baseURL, apiKey string, httpClient *http.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Second}
	}
	return &Client{baseURL: baseURL, apiKey: apiKey, httpClient: httpClient}
}

// metaResponse is AEMET's two-step envelope: the first request returns a
// JSON descriptor whose "datos" field points at the actual resource.
type metaResponse struct {
	Estado      int    `json:"estado"`
	Datos       string `json:"datos"`
	Descripcion string `json:"descripcion"`
}

// RadarComposite resolves the current national reflectivity composite URL.
func (c *Client) RadarComposite(ctx context.Context) (Overlay, error) {
	endpoint := fmt.Sprintf("%s/red/radar/nacional/composicion", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Overlay{}, err
	}
	req.Header.Set("api_key", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Overlay{}, fmt.Errorf("%w: aemet: %v", domain.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Overlay{}, fmt.Errorf("%w: aemet status %d", domain.ErrProviderUnavailable, resp.StatusCode)
	}

	var meta metaResponse
	if err := json.NewDecoder(resp.Body).Decode(&meta); err != nil {
		return Overlay{}, fmt.Errorf("%w: aemet: %v", domain.ErrProviderUnavailable, err)
	}
	if meta.Estado != http.StatusOK || meta.Datos == "" {
		return Overlay{}, fmt.Errorf("%w: aemet: %s", domain.ErrProviderUnavailable, meta.Descripcion)
	}

	return Overlay{
		ImageURL:  meta.Datos,
		BBox:      PeninsulaBBox,
		FetchedAt: time.Now().UTC(),
	}, nil
}
