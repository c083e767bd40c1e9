package geocoding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"googlemaps.github.io/maps"
)

// GoogleProvider is a struct that holds the client for Google Maps API
// and a logger for logging purposes. It is used to interact with the
// Google Maps geocoding services.
type GoogleProvider struct {
	client GoogleAPIClient // client is the Google Maps API client
	log    *slog.Logger    // log is the logger for logging operations
}

type GoogleAPIClient interface {
	Geocode(ctx context.Context, r *maps.GeocodingRequest) ([]maps.GeocodingResult, error)
}

// ErrEmptyResponse is returned when the Google Maps API responds with an empty result.
var ErrEmptyResponse = errors.New("get empty response from Google Maps API")

// NewGoogleProvider creates a GoogleProvider around an already configured client.
func NewGoogleProvider(client GoogleAPIClient, log *slog.Logger) *GoogleProvider {
	return &GoogleProvider{client: client, log: log}
}

// googleRequest restricts the lookup to the postal code component inside India.
func googleRequest(pincode string) *maps.GeocodingRequest {
	return &maps.GeocodingRequest{
		Components: map[maps.Component]string{
			maps.ComponentPostalCode: pincode,
			maps.ComponentCountry:    "IN",
		},
		Region: "in",
	}
}

// ResolveAddress returns the formatted address Google associates with the pincode.
// If the pincode is unknown or the response is empty, it returns an appropriate error.
func (gp *GoogleProvider) ResolveAddress(ctx context.Context, pincode string) (string, error) {
	gp.log.DebugContext(ctx, "Resolving pincode using Google Maps", "pincode", pincode)

	geocodeResponse, err := gp.client.Geocode(ctx, googleRequest(pincode))
	if err != nil {
		return "", fmt.Errorf("failed to geocode pincode: %w", err)
	}

	if len(geocodeResponse) == 0 || geocodeResponse[0].FormattedAddress == "" {
		return "", ErrEmptyResponse
	}

	return geocodeResponse[0].FormattedAddress, nil
}
