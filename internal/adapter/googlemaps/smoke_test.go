//go:build googlemaps

package googlemaps

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parishstaq/geocoding-service/internal/observability"
)

// These tests hit the real Google Maps API and require a valid
// GOOGLE_MAPS_API_KEY env var. Run with:
// go test -tags=googlemaps ./internal/adapter/googlemaps/ -v -count=1

func smokeClient(t *testing.T) *Client {
	t.Helper()
	key := os.Getenv("GOOGLE_MAPS_API_KEY")
	if key == "" {
		t.Fatal("GOOGLE_MAPS_API_KEY must be set to run smoke tests")
	}
	return &Client{
		apiKey:     key,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    "https://maps.googleapis.com/maps/api/geocode/json",
		metrics:    observability.NewMetricsForTesting(),
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestSmoke_Lookup(t *testing.T) {
	c := smokeClient(t)

	candidates, err := c.Lookup(context.Background(), "1702 NE 65th St, Seattle, WA 98115", "US")
	require.NoError(t, err)
	require.NotEmpty(t, candidates)

	best := candidates[0]
	assert.InDelta(t, 47.68, best.Lat, 0.05, "lat should be near Roosevelt, Seattle")
	assert.InDelta(t, -122.32, best.Lng, 0.05, "lng should be near Roosevelt, Seattle")
	assert.NotEmpty(t, best.FormattedAddress)
	assert.NotEmpty(t, best.PlaceID)
	assert.NotEmpty(t, best.LocationType)
}

func TestSmoke_Lookup_NoMatch(t *testing.T) {
	c := smokeClient(t)

	candidates, err := c.Lookup(context.Background(), "zzzz qqqq xyzzy 00000", "US")
	require.NoError(t, err)
	assert.Empty(t, candidates)
}
