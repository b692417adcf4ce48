// Package geocode resolves coordinates captured during an inspection into a
// human-readable address via Nominatim. Resolution is best-effort: a failed
// lookup never blocks the inspection.
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"fleetgate/platform/logger"
)

const defaultReverseURL = "https://nominatim.openstreetmap.org/reverse"

// Config provides the geocoder settings.
type Config interface {
	GetGeocodeBaseURL() string
	GetGeocodeUserAgent() string
}

type Service struct {
	client    *http.Client
	baseURL   string
	userAgent string
	log       *logger.Logger
}

func NewService(cfg Config, log *logger.Logger) *Service {
	baseURL := cfg.GetGeocodeBaseURL()
	if baseURL == "" {
		baseURL = defaultReverseURL
	}
	return &Service{
		client:    &http.Client{Timeout: 5 * time.Second},
		baseURL:   baseURL,
		userAgent: cfg.GetGeocodeUserAgent(),
		log:       log,
	}
}

// ReverseGeocode resolves a coordinate pair into a display address.
func (s *Service) ReverseGeocode(ctx context.Context, lat, lon float64) (string, error) {
	params := url.Values{}
	params.Add("lat", fmt.Sprintf("%.6f", lat))
	params.Add("lon", fmt.Sprintf("%.6f", lon))
	params.Add("format", "json")
	params.Add("addressdetails", "1")

	reqURL := fmt.Sprintf("%s?%s", s.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return "", err
	}

	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		s.log.Error("nominatim request failed", "error", err)
		return "", err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		s.log.Error("nominatim upstream error", "status", resp.StatusCode)
		return "", fmt.Errorf("upstream api error: %d", resp.StatusCode)
	}

	var raw reverseResponse
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		s.log.Error("failed to decode nominatim payload", "error", err)
		return "", err
	}

	address := buildAddress(raw)
	if address == "" {
		return "", fmt.Errorf("no address for %.6f,%.6f", lat, lon)
	}

	return address, nil
}

type reverseResponse struct {
	DisplayName string         `json:"display_name"`
	Address     reverseAddress `json:"address"`
}

type reverseAddress struct {
	Road         string `json:"road"`
	HouseNumber  string `json:"house_number"`
	Postcode     string `json:"postcode"`
	City         string `json:"city"`
	Town         string `json:"town"`
	Village      string `json:"village"`
	Municipality string `json:"municipality"`
	Hamlet       string `json:"hamlet"`
}

func buildAddress(raw reverseResponse) string {
	if raw.Address.Road == "" {
		return raw.DisplayName
	}

	city := pickCity(raw.Address)

	parts := []string{raw.Address.Road}
	if raw.Address.HouseNumber != "" {
		parts = append(parts, raw.Address.HouseNumber)
	}
	if city != "" {
		parts = append(parts, ",")
		if raw.Address.Postcode != "" {
			parts = append(parts, raw.Address.Postcode)
		}
		parts = append(parts, city)
	}

	address := strings.Join(parts, " ")
	address = strings.ReplaceAll(address, " ,", ",")
	return strings.TrimSpace(address)
}

func pickCity(address reverseAddress) string {
	if address.City != "" {
		return address.City
	}
	if address.Town != "" {
		return address.Town
	}
	if address.Village != "" {
		return address.Village
	}
	if address.Municipality != "" {
		return address.Municipality
	}
	return address.Hamlet
}
