// Package googlemaps implements domain.Provider against the Google Maps
// Geocoding API.
package googlemaps

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

	"github.com/parishstaq/geocoding-service/internal/domain"
	"github.com/parishstaq/geocoding-service/internal/observability"
)

// ProviderName is recorded on every cache entry written from this client.
const ProviderName = "google_maps"

// Client implements domain.Provider using the Google Maps Geocoding API.
type Client struct {
	apiKey     string
	httpClient *http.Client
	baseURL    string
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a Google Maps geocoding client with a bounded timeout.
func NewClient(apiKey string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		apiKey: apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: "https://maps.googleapis.com/maps/api/geocode/json",
		metrics: metrics,
		logger:  logger,
	}
}

// Lookup geocodes a full address string, restricted to countryHint when set.
// Candidates come back best-match first. An empty slice with a nil error
// means the provider found nothing.
func (c *Client) Lookup(ctx context.Context, address, countryHint string) ([]domain.Candidate, error) {
	params := url.Values{
		"address": {address},
		"key":     {c.apiKey},
	}
	if countryHint != "" {
		params.Set("components", "country:"+countryHint)
		params.Set("region", "us")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, &domain.ProviderError{Kind: domain.ProviderErrTransport, Err: fmt.Errorf("create request: %w", err)}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.ProviderDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, classifyTransport(err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests:
		body, _ := io.ReadAll(resp.Body)
		return nil, &domain.ProviderError{
			Kind: domain.ProviderErrAuth,
			Err:  fmt.Errorf("google maps API status %d: %s", resp.StatusCode, body),
		}
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(resp.Body)
		return nil, &domain.ProviderError{
			Kind: domain.ProviderErrTransport,
			Err:  fmt.Errorf("google maps API status %d: %s", resp.StatusCode, body),
		}
	}

	var gmResp response
	if err := json.NewDecoder(resp.Body).Decode(&gmResp); err != nil {
		return nil, &domain.ProviderError{Kind: domain.ProviderErrTransport, Err: fmt.Errorf("decode response: %w", err)}
	}

	switch gmResp.Status {
	case "OK":
		return parseCandidates(gmResp.Results)
	case "ZERO_RESULTS":
		return nil, nil
	case "REQUEST_DENIED", "OVER_QUERY_LIMIT", "OVER_DAILY_LIMIT":
		return nil, &domain.ProviderError{
			Kind: domain.ProviderErrAuth,
			Err:  fmt.Errorf("google maps %s: %s", gmResp.Status, gmResp.ErrorMessage),
		}
	default:
		return nil, &domain.ProviderError{
			Kind: domain.ProviderErrTransport,
			Err:  fmt.Errorf("google maps %s: %s", gmResp.Status, gmResp.ErrorMessage),
		}
	}
}

// classifyTransport separates client-side timeouts from other network faults.
func classifyTransport(err error) *domain.ProviderError {
	var urlErr *url.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &urlErr) && urlErr.Timeout()) {
		return &domain.ProviderError{Kind: domain.ProviderErrTimeout, Err: err}
	}
	return &domain.ProviderError{Kind: domain.ProviderErrTransport, Err: err}
}

func parseCandidates(raws []json.RawMessage) ([]domain.Candidate, error) {
	candidates := make([]domain.Candidate, 0, len(raws))
	for _, raw := range raws {
		var r result
		if err := json.Unmarshal(raw, &r); err != nil {
			return nil, &domain.ProviderError{Kind: domain.ProviderErrTransport, Err: fmt.Errorf("decode result: %w", err)}
		}
		candidates = append(candidates, domain.Candidate{
			Lat:              r.Geometry.Location.Lat,
			Lng:              r.Geometry.Location.Lng,
			LocationType:     r.Geometry.LocationType,
			FormattedAddress: r.FormattedAddress,
			PlaceID:          r.PlaceID,
			Raw:              raw,
		})
	}
	return candidates, nil
}

// Google Geocoding API response types. Results are kept raw so the full
// payload of the chosen candidate can be stored for audit.

type response struct {
	Status       string            `json:"status"`
	ErrorMessage string            `json:"error_message"`
	Results      []json.RawMessage `json:"results"`
}

type result struct {
	FormattedAddress string `json:"formatted_address"`
	PlaceID          string `json:"place_id"`
	Geometry         struct {
		Location struct {
			Lat float64 `json:"lat"`
			Lng float64 `json:"lng"`
		} `json:"location"`
		LocationType string `json:"location_type"`
	} `json:"geometry"`
}
