package geocoding

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parishstaq/geocoding-service/internal/domain"
	"github.com/parishstaq/geocoding-service/internal/observability"
	"github.com/parishstaq/geocoding-service/internal/store"
)

// --- stubs ---

type stubProvider struct {
	mu         sync.Mutex
	calls      int
	candidates []domain.Candidate
	err        error
}

func (p *stubProvider) Lookup(_ context.Context, _, _ string) ([]domain.Candidate, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	return p.candidates, p.err
}

func (p *stubProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func rooftopCandidate() domain.Candidate {
	return domain.Candidate{
		Lat:              47.68,
		Lng:              -122.32,
		LocationType:     "ROOFTOP",
		FormattedAddress: "1702 NE 65th St, Seattle, WA 98115",
		PlaceID:          "abc123",
		Raw:              json.RawMessage(`{"place_id":"abc123"}`),
	}
}

type capturingPublisher struct {
	mu     sync.Mutex
	events []domain.GeocodedEvent
	err    error
}

func (c *capturingPublisher) PublishGeocoded(_ context.Context, evt domain.GeocodedEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.events = append(c.events, evt)
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestService(t *testing.T, provider domain.Provider, opts Options) (*Service, *store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "geocode_cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	svc, err := New(st, provider, NewRateLimiter(time.Millisecond), discardLogger(),
		observability.NewMetricsForTesting(), opts)
	require.NoError(t, err)
	return svc, st
}

// --- construction ---

func TestNew_RequiresCollaborators(t *testing.T) {
	limiter := NewRateLimiter(0)
	metrics := observability.NewMetricsForTesting()
	st, err := store.Open(filepath.Join(t.TempDir(), "c.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	_, err = New(nil, &stubProvider{}, limiter, discardLogger(), metrics, Options{})
	assert.Error(t, err)

	_, err = New(st, nil, limiter, discardLogger(), metrics, Options{})
	assert.Error(t, err)

	_, err = New(st, &stubProvider{}, nil, discardLogger(), metrics, Options{})
	assert.Error(t, err)
}

// --- single-address flow ---

func TestGeocodeAddress_FirstCallThenCacheHit(t *testing.T) {
	provider := &stubProvider{candidates: []domain.Candidate{rooftopCandidate()}}
	svc, st := newTestService(t, provider, Options{})
	ctx := context.Background()

	first, err := svc.GeocodeAddress(ctx, "1702 NE 65th St", "Seattle", "WA", "98115", false)
	require.NoError(t, err)
	assert.Equal(t, 47.68, first.Lat)
	assert.Equal(t, -122.32, first.Lng)
	assert.Equal(t, domain.AccuracyRooftop, first.Accuracy)
	assert.Equal(t, domain.ConfidenceHigh, first.Confidence)
	assert.Equal(t, "abc123", first.PlaceID)
	assert.False(t, first.FromCache)
	assert.NotZero(t, first.CacheEntryID)

	second, err := svc.GeocodeAddress(ctx, "1702 NE 65th St", "Seattle", "WA", "98115", false)
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.Equal(t, first.Lat, second.Lat)
	assert.Equal(t, first.Lng, second.Lng)
	assert.Equal(t, first.CacheEntryID, second.CacheEntryID)
	assert.Equal(t, 1, provider.callCount(), "cache hit must not call the provider")

	entry, err := st.Get(ctx, "1702 NE 65TH ST|SEATTLE|WA|98115")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, int64(2), entry.UsageCount)
}

func TestGeocodeAddress_EquivalentFormsShareOneEntry(t *testing.T) {
	provider := &stubProvider{candidates: []domain.Candidate{rooftopCandidate()}}
	svc, _ := newTestService(t, provider, Options{})
	ctx := context.Background()

	_, err := svc.GeocodeAddress(ctx, "1702 Northeast 65th Street", "Seattle", "WA", "98115-2201", false)
	require.NoError(t, err)

	second, err := svc.GeocodeAddress(ctx, "1702 NE 65th St Apt 2", "SEATTLE", "wa", "98115", false)
	require.NoError(t, err)

	assert.True(t, second.FromCache)
	assert.Equal(t, 1, provider.callCount(), "equivalent spellings must share one paid call")
}

func TestGeocodeAddress_RepeatedHitsNeverChangeCoordinates(t *testing.T) {
	provider := &stubProvider{candidates: []domain.Candidate{rooftopCandidate()}}
	svc, st := newTestService(t, provider, Options{})
	ctx := context.Background()

	_, err := svc.GeocodeAddress(ctx, "1702 NE 65th St", "Seattle", "WA", "98115", false)
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		r, err := svc.GeocodeAddress(ctx, "1702 NE 65th St", "Seattle", "WA", "98115", false)
		require.NoError(t, err)
		assert.Equal(t, 47.68, r.Lat)
	}

	entry, err := st.Get(ctx, "1702 NE 65TH ST|SEATTLE|WA|98115")
	require.NoError(t, err)
	assert.Equal(t, int64(5), entry.UsageCount, "exactly one increment per lookup")
	assert.Equal(t, 47.68, *entry.Latitude)
}

func TestGeocodeAddress_DefaultState(t *testing.T) {
	provider := &stubProvider{candidates: []domain.Candidate{rooftopCandidate()}}
	svc, st := newTestService(t, provider, Options{})
	ctx := context.Background()

	_, err := svc.GeocodeAddress(ctx, "1702 NE 65th St", "Seattle", "", "98115", false)
	require.NoError(t, err)

	entry, err := st.Get(ctx, "1702 NE 65TH ST|SEATTLE|WA|98115")
	require.NoError(t, err)
	require.NotNil(t, entry, "omitted state must fall back to the configured default")
	assert.Equal(t, "WA", entry.State)
}

func TestGeocodeAddress_ForceRefresh(t *testing.T) {
	provider := &stubProvider{candidates: []domain.Candidate{rooftopCandidate()}}
	svc, _ := newTestService(t, provider, Options{})
	ctx := context.Background()

	_, err := svc.GeocodeAddress(ctx, "1702 NE 65th St", "Seattle", "WA", "98115", false)
	require.NoError(t, err)

	refreshed := rooftopCandidate()
	refreshed.Lat = 47.681
	provider.mu.Lock()
	provider.candidates = []domain.Candidate{refreshed}
	provider.mu.Unlock()

	r, err := svc.GeocodeAddress(ctx, "1702 NE 65th St", "Seattle", "WA", "98115", true)
	require.NoError(t, err)
	assert.False(t, r.FromCache)
	assert.Equal(t, 47.681, r.Lat)
	assert.Equal(t, 2, provider.callCount())
}

// --- failure paths ---

func TestGeocodeAddress_NoResults(t *testing.T) {
	provider := &stubProvider{} // empty candidates, nil error
	svc, st := newTestService(t, provider, Options{})
	ctx := context.Background()

	r, err := svc.GeocodeAddress(ctx, "999 Nowhere Lane", "Noplace", "WA", "", false)
	assert.Nil(t, r)
	require.ErrorIs(t, err, domain.ErrNoResults)

	entry, err := st.Get(ctx, "999 NOWHERE LN|NOPLACE|WA|")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.False(t, entry.Valid())
	assert.Equal(t, "No results", *entry.ErrorMessage)
	assert.Equal(t, int64(1), entry.RetryCount)
}

func TestGeocodeAddress_ProviderErrorIsTypedAndRecorded(t *testing.T) {
	provider := &stubProvider{err: &domain.ProviderError{Kind: domain.ProviderErrTimeout, Err: errors.New("deadline exceeded")}}
	svc, st := newTestService(t, provider, Options{})
	ctx := context.Background()

	r, err := svc.GeocodeAddress(ctx, "1702 NE 65th St", "Seattle", "WA", "98115", false)
	assert.Nil(t, r)

	var pErr *domain.ProviderError
	require.ErrorAs(t, err, &pErr)
	assert.Equal(t, domain.ProviderErrTimeout, pErr.Kind)

	entry, err := st.Get(ctx, "1702 NE 65TH ST|SEATTLE|WA|98115")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Contains(t, *entry.ErrorMessage, "timeout")
}

func TestGeocodeAddress_ErroredEntryRetriesWithoutForce(t *testing.T) {
	provider := &stubProvider{err: &domain.ProviderError{Kind: domain.ProviderErrTransport, Err: errors.New("connection reset")}}
	svc, _ := newTestService(t, provider, Options{})
	ctx := context.Background()

	_, err := svc.GeocodeAddress(ctx, "1702 NE 65th St", "Seattle", "WA", "98115", false)
	require.Error(t, err)

	// Provider recovers; the errored entry must be retried on a plain call.
	provider.mu.Lock()
	provider.err = nil
	provider.candidates = []domain.Candidate{rooftopCandidate()}
	provider.mu.Unlock()

	r, err := svc.GeocodeAddress(ctx, "1702 NE 65th St", "Seattle", "WA", "98115", false)
	require.NoError(t, err)
	assert.False(t, r.FromCache)
	assert.Equal(t, 2, provider.callCount())
}

func TestGeocodeAddress_FailedRefreshPreservesLastGoodFix(t *testing.T) {
	provider := &stubProvider{candidates: []domain.Candidate{rooftopCandidate()}}
	svc, st := newTestService(t, provider, Options{})
	ctx := context.Background()

	_, err := svc.GeocodeAddress(ctx, "1702 NE 65th St", "Seattle", "WA", "98115", false)
	require.NoError(t, err)

	provider.mu.Lock()
	provider.err = &domain.ProviderError{Kind: domain.ProviderErrTransport, Err: errors.New("connection reset")}
	provider.mu.Unlock()

	_, err = svc.GeocodeAddress(ctx, "1702 NE 65th St", "Seattle", "WA", "98115", true)
	require.Error(t, err)

	entry, err := st.Get(ctx, "1702 NE 65TH ST|SEATTLE|WA|98115")
	require.NoError(t, err)
	require.True(t, entry.Valid(), "failed refresh must not clear stored coordinates")
	assert.Equal(t, 47.68, *entry.Latitude)
	assert.Equal(t, int64(1), entry.RetryCount)

	// The entry is still valid, so a plain lookup serves from cache again.
	r, err := svc.GeocodeAddress(ctx, "1702 NE 65th St", "Seattle", "WA", "98115", false)
	require.NoError(t, err)
	assert.True(t, r.FromCache)
}

func TestGeocodeAddress_StoreUnavailable(t *testing.T) {
	provider := &stubProvider{candidates: []domain.Candidate{rooftopCandidate()}}
	svc, st := newTestService(t, provider, Options{})

	require.NoError(t, st.Close())

	r, err := svc.GeocodeAddress(context.Background(), "1702 NE 65th St", "Seattle", "WA", "98115", false)
	assert.Nil(t, r)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cache lookup")
}

// --- concurrency ---

func TestGeocodeAddress_ConcurrentSameKeySingleRow(t *testing.T) {
	const callers = 5

	provider := &stubProvider{candidates: []domain.Candidate{rooftopCandidate()}}
	svc, st := newTestService(t, provider, Options{})
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.GeocodeAddress(ctx, "1702 NE 65th St", "Seattle", "WA", "98115", false)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	entries, err := st.ExportAll(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1, "uniqueness on address_key is the backstop")
	assert.Equal(t, int64(callers), entries[0].UsageCount, "every lookup counts exactly once")
	assert.True(t, entries[0].Valid())
}

// --- batch ---

func TestBatchGeocode_OrderAndProgress(t *testing.T) {
	provider := &stubProvider{candidates: []domain.Candidate{rooftopCandidate()}}
	svc, _ := newTestService(t, provider, Options{})

	inputs := []domain.AddressInput{
		{Street: "1702 NE 65th St", City: "Seattle", State: "WA", Zip: "98115"},
		{Street: "401 Northgate Way", City: "Seattle", State: "WA", Zip: "98125"},
		{Street: "400 Westlake Ave", City: "Seattle", State: "WA", Zip: "98109"},
	}

	var progress [][2]int
	items := svc.BatchGeocode(context.Background(), inputs, func(done, total int) {
		progress = append(progress, [2]int{done, total})
	})

	require.Len(t, items, 3)
	for i := range items {
		assert.Equal(t, inputs[i], items[i].Input, "output order must match input order")
		require.NotNil(t, items[i].Result)
	}
	assert.Equal(t, [][2]int{{1, 3}, {2, 3}, {3, 3}}, progress)
}

func TestBatchGeocode_FailedItemDoesNotAbort(t *testing.T) {
	provider := &stubProvider{candidates: []domain.Candidate{rooftopCandidate()}}
	svc, _ := newTestService(t, provider, Options{})
	ctx := context.Background()

	// Prime the first address so it hits the cache even after the provider dies.
	_, err := svc.GeocodeAddress(ctx, "1702 NE 65th St", "Seattle", "WA", "98115", false)
	require.NoError(t, err)

	provider.mu.Lock()
	provider.err = &domain.ProviderError{Kind: domain.ProviderErrAuth, Err: errors.New("key revoked")}
	provider.mu.Unlock()

	items := svc.BatchGeocode(ctx, []domain.AddressInput{
		{Street: "401 Northgate Way", City: "Seattle", State: "WA"}, // miss → provider error
		{Street: "1702 NE 65th St", City: "Seattle", State: "WA", Zip: "98115"}, // cache hit
	}, nil)

	require.Len(t, items, 2)
	assert.Nil(t, items[0].Result)
	assert.Contains(t, items[0].Error, "auth")
	require.NotNil(t, items[1].Result)
	assert.True(t, items[1].Result.FromCache)
}

// --- stats ---

func TestCacheStats_CostModel(t *testing.T) {
	provider := &stubProvider{candidates: []domain.Candidate{rooftopCandidate()}}
	svc, _ := newTestService(t, provider, Options{})
	ctx := context.Background()

	// Two distinct addresses; the first looked up four times in total.
	_, err := svc.GeocodeAddress(ctx, "1702 NE 65th St", "Seattle", "WA", "98115", false)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err = svc.GeocodeAddress(ctx, "1702 NE 65th St", "Seattle", "WA", "98115", false)
		require.NoError(t, err)
	}
	_, err = svc.GeocodeAddress(ctx, "401 Northgate Way", "Seattle", "WA", "98125", false)
	require.NoError(t, err)

	stats, err := svc.CacheStats(ctx)
	require.NoError(t, err)

	assert.Equal(t, int64(2), stats.TotalCached)
	assert.Equal(t, int64(2), stats.ValidCount)
	assert.Equal(t, int64(0), stats.FailedCount)
	assert.Equal(t, int64(5), stats.TotalUsageCount)
	assert.Equal(t, int64(3), stats.APICallsSaved)
	assert.InDelta(t, 2*0.005, stats.EstimatedCostUSD, 1e-9)
	assert.InDelta(t, 3*0.005, stats.EstimatedSavingsUSD, 1e-9)
	assert.Equal(t, map[string]int64{"ROOFTOP": 2}, stats.AccuracyBreakdown)
}

// --- events ---

func TestGeocodeAddress_PublishesEventOnFreshGeocodeOnly(t *testing.T) {
	provider := &stubProvider{candidates: []domain.Candidate{rooftopCandidate()}}
	publisher := &capturingPublisher{}
	svc, _ := newTestService(t, provider, Options{Publisher: publisher})
	ctx := context.Background()

	_, err := svc.GeocodeAddress(ctx, "1702 NE 65th St", "Seattle", "WA", "98115", false)
	require.NoError(t, err)
	_, err = svc.GeocodeAddress(ctx, "1702 NE 65th St", "Seattle", "WA", "98115", false)
	require.NoError(t, err)

	require.Len(t, publisher.events, 1, "cache hits must not publish")
	evt := publisher.events[0]
	assert.Equal(t, "1702 NE 65TH ST|SEATTLE|WA|98115", evt.AddressKey)
	assert.Equal(t, 47.68, evt.Lat)
	assert.Equal(t, domain.AccuracyRooftop, evt.Accuracy)
	assert.Equal(t, "google_maps", evt.Provider)
	assert.False(t, evt.GeocodedAt.IsZero())
}

func TestGeocodeAddress_PublishFailureDoesNotFailGeocode(t *testing.T) {
	provider := &stubProvider{candidates: []domain.Candidate{rooftopCandidate()}}
	publisher := &capturingPublisher{err: errors.New("broker down")}
	svc, _ := newTestService(t, provider, Options{Publisher: publisher})

	r, err := svc.GeocodeAddress(context.Background(), "1702 NE 65th St", "Seattle", "WA", "98115", false)
	require.NoError(t, err, "event publishing is fire-and-forget")
	require.NotNil(t, r)
}
