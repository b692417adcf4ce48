package geocode

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"fleetgate/platform/logger"
)

type testConfig struct{}

func (testConfig) GetGeocodeBaseURL() string   { return "" }
func (testConfig) GetGeocodeUserAgent() string { return "FleetGate/1.0" }

func TestReverseGeocode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("User-Agent"); got != "FleetGate/1.0" {
			t.Errorf("User-Agent = %q", got)
		}
		_ = json.NewEncoder(w).Encode(reverseResponse{
			DisplayName: "Keizersgracht 123, Amsterdam",
			Address: reverseAddress{
				Road:        "Keizersgracht",
				HouseNumber: "123",
				Postcode:    "1015 CJ",
				City:        "Amsterdam",
			},
		})
	}))
	defer server.Close()

	svc := NewService(testConfig{}, logger.New("error"))
	svc.baseURL = server.URL

	address, err := svc.ReverseGeocode(context.Background(), 52.3702, 4.8952)
	if err != nil {
		t.Fatalf("ReverseGeocode: %v", err)
	}
	if address != "Keizersgracht 123, 1015 CJ Amsterdam" {
		t.Errorf("address = %q", address)
	}
}

func TestReverseGeocodeFallsBackToDisplayName(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(reverseResponse{DisplayName: "Somewhere remote"})
	}))
	defer server.Close()

	svc := NewService(testConfig{}, logger.New("error"))
	svc.baseURL = server.URL

	address, err := svc.ReverseGeocode(context.Background(), 0, 0)
	if err != nil {
		t.Fatalf("ReverseGeocode: %v", err)
	}
	if address != "Somewhere remote" {
		t.Errorf("address = %q", address)
	}
}

func TestReverseGeocodeUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	svc := NewService(testConfig{}, logger.New("error"))
	svc.baseURL = server.URL

	if _, err := svc.ReverseGeocode(context.Background(), 52.37, 4.89); err == nil {
		t.Fatal("expected error")
	}
}
