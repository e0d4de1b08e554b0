// Package route talks to an OSRM-compatible routing service to turn the
// ordered location sequence into a road-following polyline.
package route

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/amberline/waypost/internal/apperr"
	"github.com/amberline/waypost/internal/models"
)

const routePath = "/route/v1/driving/"

// Client is a routing client. It satisfies the analytics Router
// interface.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a client. baseURL should contain scheme and host
// (e.g. https://router.project-osrm.org). httpClient may be nil.
func New(baseURL string, httpClient *http.Client) (*Client, error) {
	baseURL = strings.TrimSuffix(baseURL, "/")
	if baseURL == "" {
		return nil, fmt.Errorf("route: base URL is required")
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{baseURL: baseURL, httpClient: httpClient}, nil
}

// osrmResponse mirrors the subset of the upstream payload we use.
// Coordinates arrive GeoJSON-style, longitude first.
type osrmResponse struct {
	Code   string `json:"code"`
	Routes []struct {
		Geometry struct {
			Coordinates [][]float64 `json:"coordinates"`
		} `json:"geometry"`
	} `json:"routes"`
}

// Route resolves the ordered waypoints to a driving polyline.
func (c *Client) Route(ctx context.Context, points []models.LatLng) ([]models.LatLng, error) {
	if len(points) < 2 {
		return []models.LatLng{}, nil
	}

	coords := make([]string, 0, len(points))
	for _, p := range points {
		coords = append(coords,
			strconv.FormatFloat(p.Lng, 'f', -1, 64)+","+strconv.FormatFloat(p.Lat, 'f', -1, 64))
	}
	u := c.baseURL + routePath + strings.Join(coords, ";") + "?overview=full&geometries=geojson"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("route: create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("route: %w: %w", apperr.ErrRemoteUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("route: %w: status %d", apperr.ErrRemoteUnavailable, resp.StatusCode)
	}

	var body osrmResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("route: decode response: %w", err)
	}
	if body.Code != "Ok" || len(body.Routes) == 0 {
		return nil, fmt.Errorf("route: %w: upstream code %q", apperr.ErrRemoteUnavailable, body.Code)
	}

	polyline := make([]models.LatLng, 0, len(body.Routes[0].Geometry.Coordinates))
	for _, pair := range body.Routes[0].Geometry.Coordinates {
		if len(pair) < 2 {
			continue
		}
		polyline = append(polyline, models.LatLng{Lat: pair[1], Lng: pair[0]})
	}
	return polyline, nil
}
