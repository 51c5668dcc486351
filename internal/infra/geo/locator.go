// Package geo provides Locator implementations for retrieval grounding.
package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"salon-assistant/internal/domain"
	"salon-assistant/internal/infra"
)

// StaticLocator always reports the configured coordinates.
type StaticLocator struct {
	Coords domain.LocationCoords
}

func NewStaticLocator(latitude, longitude float64) (*StaticLocator, error) {
	if latitude < -90 || latitude > 90 || longitude < -180 || longitude > 180 {
		return nil, fmt.Errorf("coordinates out of range: %f,%f", latitude, longitude)
	}
	return &StaticLocator{Coords: domain.LocationCoords{Latitude: latitude, Longitude: longitude}}, nil
}

func (s *StaticLocator) Locate(_ context.Context) (domain.LocationCoords, error) {
	return s.Coords, nil
}

// DisabledLocator behaves like a user who declined the location prompt.
type DisabledLocator struct{}

func (DisabledLocator) Locate(_ context.Context) (domain.LocationCoords, error) {
	return domain.LocationCoords{}, fmt.Errorf("%w: location disabled", domain.ErrPermissionDenied)
}

const DefaultIPURL = "http://ip-api.com/json/?fields=status,message,lat,lon"

// IPLocator estimates the position from the public IP address using an
// ip-api.com compatible endpoint.
type IPLocator struct {
	url        string
	httpClient *http.Client
	retry      infra.RetryConfig
}

func NewIPLocator(url string) *IPLocator {
	if url == "" {
		url = DefaultIPURL
	}
	return &IPLocator{
		url:        url,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		retry:      infra.DefaultRetryConfig(),
	}
}

func (l *IPLocator) WithRetryConfig(cfg infra.RetryConfig) *IPLocator {
	l.retry = cfg
	return l
}

type ipResponse struct {
	Status  string   `json:"status"`
	Message string   `json:"message"`
	Lat     *float64 `json:"lat"`
	Lon     *float64 `json:"lon"`
}

func (l *IPLocator) Locate(ctx context.Context) (domain.LocationCoords, error) {
	var result ipResponse

	err := infra.WithRetry(ctx, l.retry, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.url, nil)
		if err != nil {
			return infra.Permanent(fmt.Errorf("creating request: %w", err))
		}

		resp, err := l.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("sending request: %w", err)
		}
		defer resp.Body.Close()

		if err := infra.CheckResponse("geolocation", resp); err != nil {
			return err
		}

		result = ipResponse{}
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
		return nil
	})
	if err != nil {
		return domain.LocationCoords{}, fmt.Errorf("%w: %w", domain.ErrDeviceUnavailable, err)
	}

	if result.Status != "" && result.Status != "success" {
		return domain.LocationCoords{}, fmt.Errorf("%w: geolocation %s: %s", domain.ErrDeviceUnavailable, result.Status, result.Message)
	}
	if result.Lat == nil || result.Lon == nil {
		return domain.LocationCoords{}, fmt.Errorf("%w: geolocation response without coordinates", domain.ErrDeviceUnavailable)
	}

	return domain.LocationCoords{Latitude: *result.Lat, Longitude: *result.Lon}, nil
}
