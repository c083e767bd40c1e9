package geocoding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"
)

// NominatimProvider implements the Provider interface using OpenStreetMap's Nominatim API.
// This is a free geocoding service with usage limits (1 request/second for fair use).
type NominatimProvider struct {
	client  HTTPClient    // HTTP client for making requests
	baseURL string        // Base URL for the Nominatim API
	limiter *rate.Limiter // Limiter keeps requests within the fair-use policy
	log     *slog.Logger  // Logger for logging operations
	// userAgent is required by Nominatim usage policy
	userAgent string
}

// HTTPClient defines the interface for making HTTP requests.
// This allows for easy mocking in tests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// nominatimResponse represents the JSON response from Nominatim API.
type nominatimResponse struct {
	DisplayName string `json:"display_name"`
}

// ErrNominatimEmptyResponse is returned when no query variation produced a result.
var ErrNominatimEmptyResponse = errors.New("nominatim API returned empty response")

const (
	nominatimURL       = "https://nominatim.openstreetmap.org/search"
	nominatimUserAgent = "pincheck/1.0 (https://github.com/UnknownOlympus/pincheck)"
)

// NewNominatimProvider creates a new Nominatim geocoding provider.
// Uses the public Nominatim API endpoint by default.
func NewNominatimProvider(log *slog.Logger) *NominatimProvider {
	const timeout = 10
	return NewNominatimProviderWithClient(&http.Client{Timeout: timeout * time.Second}, log)
}

// NewNominatimProviderWithClient creates a Nominatim provider with a custom HTTP client.
// Useful for testing with mocked HTTP clients.
func NewNominatimProviderWithClient(client HTTPClient, log *slog.Logger) *NominatimProvider {
	return &NominatimProvider{
		client:  client,
		baseURL: nominatimURL,
		limiter: rate.NewLimiter(rate.Every(time.Second), 1),
		log:     log,
		// User-Agent MUST include valid contact info per Nominatim usage policy:
		// https://operations.osmfoundation.org/policies/nominatim/
		userAgent: nominatimUserAgent,
	}
}

// WithBaseURL points the provider at another Nominatim instance, e.g. a self-hosted one.
func (np *NominatimProvider) WithBaseURL(baseURL string) *NominatimProvider {
	np.baseURL = baseURL
	return np
}

// WithLimiter replaces the default one request per second limiter.
func (np *NominatimProvider) WithLimiter(limiter *rate.Limiter) *NominatimProvider {
	np.limiter = limiter
	return np
}

// ResolveAddress looks the pincode up with a structured postal code query first and
// falls back to a free-form "<pincode>, India" query.
func (np *NominatimProvider) ResolveAddress(ctx context.Context, pincode string) (string, error) {
	np.log.DebugContext(ctx, "Resolving pincode using Nominatim", "pincode", pincode)

	variations := []url.Values{
		{"postalcode": {pincode}, "countrycodes": {"in"}},
		{"q": {pincode + ", India"}},
	}

	for idx, query := range variations {
		address, err := np.search(ctx, query)
		if err == nil {
			if idx > 0 {
				np.log.InfoContext(ctx, "Resolved pincode using fallback query",
					"pincode", pincode,
					"fallback_level", idx)
			}
			return address, nil
		}

		// Anything but an empty result is final (API error, bad payload, cancelled context).
		if !errors.Is(err, ErrNominatimEmptyResponse) {
			return "", err
		}

		np.log.DebugContext(ctx, "Query variation returned no results, trying fallback",
			"pincode", pincode,
			"fallback_level", idx)
	}

	np.log.WarnContext(ctx, "All pincode queries exhausted", "pincode", pincode, "variations_tried", len(variations))
	return "", ErrNominatimEmptyResponse
}

// search performs a single request without fallback logic.
func (np *NominatimProvider) search(ctx context.Context, query url.Values) (string, error) {
	if err := np.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter wait failed: %w", err)
	}

	reqURL, err := url.Parse(np.baseURL)
	if err != nil {
		return "", fmt.Errorf("failed to parse base URL: %w", err)
	}

	query.Set("format", "json")
	query.Set("limit", "1")
	query.Set("accept-language", "en")
	reqURL.RawQuery = query.Encode()

	np.log.DebugContext(ctx, "Nominatim request URL", "url", reqURL.String())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", np.userAgent)

	resp, err := np.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to execute geocoding request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		np.log.ErrorContext(ctx, "Nominatim API error", "status", resp.StatusCode, "body", string(body))
		return "", fmt.Errorf("nominatim API returned status %d: %s", resp.StatusCode, string(body))
	}

	var results []nominatimResponse
	if err = json.Unmarshal(body, &results); err != nil {
		np.log.ErrorContext(ctx, "Failed to parse Nominatim response", "error", err, "body", string(body))
		return "", fmt.Errorf("failed to decode nominatim response: %w", err)
	}

	if len(results) == 0 || results[0].DisplayName == "" {
		return "", ErrNominatimEmptyResponse
	}

	return results[0].DisplayName, nil
}
