// Package geocode talks to a Nominatim-compatible reverse geocoding
// service. A failed lookup degrades to a missing address; it never blocks
// a location save.
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/amberline/waypost/internal/apperr"
)

const reversePath = "/reverse"

// Result is the decoded collaborator response.
type Result struct {
	Address  string `json:"address"`
	Road     string `json:"road,omitempty"`
	City     string `json:"city,omitempty"`
	State    string `json:"state,omitempty"`
	Postcode string `json:"postcode,omitempty"`
	Country  string `json:"country,omitempty"`
}

// Client is a reverse geocoding client.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
}

// New creates a client. baseURL should contain scheme and host
// (e.g. https://nominatim.openstreetmap.org). httpClient may be nil; no
// timeout is imposed by default, callers bound lookups via ctx.
func New(baseURL, userAgent string, httpClient *http.Client) (*Client, error) {
	baseURL = strings.TrimSuffix(baseURL, "/")
	if baseURL == "" {
		return nil, fmt.Errorf("geocode: base URL is required")
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{baseURL: baseURL, userAgent: userAgent, httpClient: httpClient}, nil
}

// nominatimResponse mirrors the subset of the upstream payload we use.
type nominatimResponse struct {
	DisplayName string `json:"display_name"`
	Address     struct {
		Road     string `json:"road"`
		City     string `json:"city"`
		Town     string `json:"town"`
		Village  string `json:"village"`
		State    string `json:"state"`
		Postcode string `json:"postcode"`
		Country  string `json:"country"`
	} `json:"address"`
}

// Reverse resolves a coordinate pair to an address.
func (c *Client) Reverse(ctx context.Context, lat, lng float64) (Result, error) {
	q := url.Values{}
	q.Set("format", "jsonv2")
	q.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(lng, 'f', -1, 64))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+reversePath+"?"+q.Encode(), nil)
	if err != nil {
		return Result{}, fmt.Errorf("geocode: create request: %w", err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("geocode: %w: %w", apperr.ErrRemoteUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return Result{}, fmt.Errorf("geocode: %w: status %d", apperr.ErrRemoteUnavailable, resp.StatusCode)
	}

	var body nominatimResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Result{}, fmt.Errorf("geocode: decode response: %w", err)
	}

	city := body.Address.City
	if city == "" {
		city = body.Address.Town
	}
	if city == "" {
		city = body.Address.Village
	}
	return Result{
		Address:  body.DisplayName,
		Road:     body.Address.Road,
		City:     city,
		State:    body.Address.State,
		Postcode: body.Address.Postcode,
		Country:  body.Address.Country,
	}, nil
}

// ReverseGeocode adapts Reverse to the location store's Geocoder
// interface, returning the display address only.
func (c *Client) ReverseGeocode(ctx context.Context, lat, lng float64) (string, error) {
	res, err := c.Reverse(ctx, lat, lng)
	if err != nil {
		return "", err
	}
	return res.Address, nil
}
