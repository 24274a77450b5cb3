package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// ReverseGeocoder turns coordinates into a human readable address.
type ReverseGeocoder interface {
	ReverseGeocode(ctx context.Context, lat, lng float64) (string, error)
}

// NominatimGeocoder talks to a Nominatim compatible /reverse endpoint.
type NominatimGeocoder struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
}

func NewNominatimGeocoder(baseURL, userAgent string) *NominatimGeocoder {
	return &NominatimGeocoder{
		baseURL:   baseURL,
		userAgent: userAgent,
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

type nominatimResponse struct {
	DisplayName string `json:"display_name"`
	Error       string `json:"error"`
}

func (g *NominatimGeocoder) ReverseGeocode(ctx context.Context, lat, lng float64) (string, error) {
	params := url.Values{}
	params.Set("format", "jsonv2")
	params.Set("lat", strconv.FormatFloat(lat, 'f', 6, 64))
	params.Set("lon", strconv.FormatFloat(lng, 'f', 6, 64))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/reverse?"+params.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("failed to build geocode request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if g.userAgent != "" {
		req.Header.Set("User-Agent", g.userAgent)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("geocode request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("geocoder returned status %d", resp.StatusCode)
	}

	var body nominatimResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("failed to decode geocode response: %w", err)
	}
	if body.Error != "" {
		return "", fmt.Errorf("geocoder error: %s", body.Error)
	}
	return body.DisplayName, nil
}

// CachedGeocoder memoises addresses for coordinates rounded to ~11m.
type CachedGeocoder struct {
	next  ReverseGeocoder
	cache *lru.Cache[string, string]
}

func NewCachedGeocoder(next ReverseGeocoder, size int) (*CachedGeocoder, error) {
	if size <= 0 {
		size = 512
	}
	cache, err := lru.New[string, string](size)
	if err != nil {
		return nil, err
	}
	return &CachedGeocoder{next: next, cache: cache}, nil
}

func (g *CachedGeocoder) ReverseGeocode(ctx context.Context, lat, lng float64) (string, error) {
	key := fmt.Sprintf("%.4f,%.4f", lat, lng)
	if address, ok := g.cache.Get(key); ok {
		return address, nil
	}

	address, err := g.next.ReverseGeocode(ctx, lat, lng)
	if err != nil {
		return "", err
	}
	if address != "" {
		g.cache.Add(key, address)
	}
	return address, nil
}
