// Package geocoding orchestrates the permanent address cache: cache-first
// lookup, rate-limited provider calls, write-back, and error bookkeeping.
package geocoding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/parishstaq/geocoding-service/internal/domain"
	"github.com/parishstaq/geocoding-service/internal/observability"
	"github.com/parishstaq/geocoding-service/internal/store"
)

// Store is the cache persistence the service depends on.
type Store interface {
	Get(ctx context.Context, key string) (*store.Entry, error)
	UpsertSuccess(ctx context.Context, key string, in domain.AddressInput, res store.Success) (*store.Entry, error)
	RecordError(ctx context.Context, key string, in domain.AddressInput, message string) error
	TouchUsage(ctx context.Context, key string) error
	Stats(ctx context.Context) (*store.Stats, error)
}

// EventPublisher announces fresh geocodes to the rest of the platform.
type EventPublisher interface {
	PublishGeocoded(ctx context.Context, evt domain.GeocodedEvent) error
}

// Options tune a Service. Zero values get sensible defaults.
type Options struct {
	DefaultState string  // applied when a caller omits state (default "WA")
	CountryHint  string  // provider country restriction (default "US")
	ProviderName string  // recorded on cache entries (default "google_maps")
	UnitPriceUSD float64 // provider price per request (default 0.005)

	// Publisher, when set, receives an event for every fresh geocode.
	// Publishing is fire-and-forget and never fails a geocode.
	Publisher EventPublisher
}

// Service answers geocode requests from the permanent cache, falling back to
// the provider on misses. No fault from the provider or the store escapes as
// a panic; every call returns either a populated result or a typed error.
type Service struct {
	store     Store
	provider  domain.Provider
	limiter   *RateLimiter
	publisher EventPublisher
	logger    *slog.Logger
	metrics   *observability.Metrics
	opts      Options
}

// New wires a Service. Missing collaborators are a construction-time error so
// a misconfigured process fails fast instead of on its first request.
func New(st Store, provider domain.Provider, limiter *RateLimiter, logger *slog.Logger, metrics *observability.Metrics, opts Options) (*Service, error) {
	if st == nil {
		return nil, errors.New("geocoding: store is required")
	}
	if provider == nil {
		return nil, errors.New("geocoding: provider is required")
	}
	if limiter == nil {
		return nil, errors.New("geocoding: rate limiter is required")
	}
	if opts.DefaultState == "" {
		opts.DefaultState = "WA"
	}
	if opts.CountryHint == "" {
		opts.CountryHint = "US"
	}
	if opts.ProviderName == "" {
		opts.ProviderName = "google_maps"
	}
	if opts.UnitPriceUSD == 0 {
		opts.UnitPriceUSD = 0.005
	}
	return &Service{
		store:     st,
		provider:  provider,
		limiter:   limiter,
		publisher: opts.Publisher,
		logger:    logger,
		metrics:   metrics,
		opts:      opts,
	}, nil
}

// GeocodeAddress resolves one address, serving from the cache when a valid
// entry exists and forceRefresh is false. Failures are recorded in the cache
// and returned as typed errors (*domain.ProviderError, domain.ErrNoResults,
// or a wrapped store error) rather than thrown away.
func (s *Service) GeocodeAddress(ctx context.Context, street, city, state, zip string, forceRefresh bool) (*domain.GeocodeResult, error) {
	if state == "" {
		state = s.opts.DefaultState
	}
	in := domain.AddressInput{Street: street, City: city, State: state, Zip: zip}
	key := domain.NormalizeKey(street, city, state, zip)

	if !forceRefresh {
		entry, err := s.store.Get(ctx, key)
		if err != nil {
			s.metrics.GeocodeRequests.WithLabelValues("store_error").Inc()
			return nil, fmt.Errorf("cache lookup: %w", err)
		}
		if entry != nil && entry.Valid() {
			s.metrics.CacheLookups.WithLabelValues("hit").Inc()
			if err := s.store.TouchUsage(ctx, key); err != nil {
				// The coordinates are still good; a lost usage tick is not
				// worth failing the lookup over.
				s.logger.Warn("usage update failed", "address_key", key, "error", err)
			}
			s.metrics.GeocodeRequests.WithLabelValues("cache_hit").Inc()
			s.logger.Debug("cache hit", "address_key", key)
			return resultFromEntry(entry, true), nil
		}
		s.metrics.CacheLookups.WithLabelValues("miss").Inc()
	}

	return s.refresh(ctx, key, in)
}

// refresh performs the rate-limited provider call and write-back for a cache
// miss, an invalid (errored) entry, or a forced refresh.
func (s *Service) refresh(ctx context.Context, key string, in domain.AddressInput) (*domain.GeocodeResult, error) {
	fullAddress := domain.FullAddress(in.Street, in.City, in.State, in.Zip)
	s.logger.Info("geocoding", "address", fullAddress)

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	candidates, err := s.provider.Lookup(ctx, fullAddress, s.opts.CountryHint)
	if err != nil {
		s.metrics.GeocodeRequests.WithLabelValues("provider_error").Inc()
		s.logger.Error("provider lookup failed", "address", fullAddress, "error", err)
		s.recordError(ctx, key, in, err.Error())
		return nil, err
	}
	if len(candidates) == 0 {
		s.metrics.GeocodeRequests.WithLabelValues("no_results").Inc()
		s.logger.Warn("no geocoding results", "address", fullAddress)
		s.recordError(ctx, key, in, "No results")
		return nil, domain.ErrNoResults
	}

	// The provider returns best match first.
	best := candidates[0]
	accuracy := domain.Accuracy(best.LocationType)
	if accuracy == "" {
		accuracy = domain.AccuracyUnknown
	}

	entry, err := s.store.UpsertSuccess(ctx, key, in, store.Success{
		Lat:              best.Lat,
		Lng:              best.Lng,
		Accuracy:         accuracy,
		Confidence:       domain.ConfidenceFor(accuracy),
		FormattedAddress: best.FormattedAddress,
		PlaceID:          best.PlaceID,
		Provider:         s.opts.ProviderName,
		Raw:              best.Raw,
	})
	if err != nil {
		s.metrics.GeocodeRequests.WithLabelValues("store_error").Inc()
		return nil, fmt.Errorf("cache write: %w", err)
	}

	s.metrics.GeocodeRequests.WithLabelValues("geocoded").Inc()
	s.publish(ctx, entry, in)
	return resultFromEntry(entry, false), nil
}

// recordError persists failure bookkeeping. A store failure here is logged
// and dropped: the caller is already receiving the original geocode error.
func (s *Service) recordError(ctx context.Context, key string, in domain.AddressInput, message string) {
	if err := s.store.RecordError(ctx, key, in, message); err != nil {
		s.logger.Error("recording geocode failure failed", "address_key", key, "error", err)
	}
}

func (s *Service) publish(ctx context.Context, e *store.Entry, in domain.AddressInput) {
	if s.publisher == nil {
		return
	}
	evt := domain.GeocodedEvent{
		AddressKey: e.AddressKey,
		Street:     in.Street,
		City:       in.City,
		State:      in.State,
		Zip:        in.Zip,
		Provider:   s.opts.ProviderName,
	}
	if e.Latitude != nil {
		evt.Lat = *e.Latitude
	}
	if e.Longitude != nil {
		evt.Lng = *e.Longitude
	}
	if e.Accuracy != nil {
		evt.Accuracy = domain.Accuracy(*e.Accuracy)
	}
	if e.Confidence != nil {
		evt.Confidence = domain.Confidence(*e.Confidence)
	}
	if e.FormattedAddress != nil {
		evt.FormattedAddress = *e.FormattedAddress
	}
	if e.PlaceID != nil {
		evt.PlaceID = *e.PlaceID
	}
	if e.GeocodedAt != nil {
		evt.GeocodedAt = *e.GeocodedAt
	}
	if err := s.publisher.PublishGeocoded(ctx, evt); err != nil {
		s.metrics.EventPublishErrors.Inc()
		s.logger.Warn("geocoded event publish failed", "address_key", e.AddressKey, "error", err)
		return
	}
	s.metrics.EventsPublished.Inc()
}

// BatchItem pairs one batch input with its outcome. A failed item carries the
// error text and a nil result.
type BatchItem struct {
	Input  domain.AddressInput   `json:"input"`
	Result *domain.GeocodeResult `json:"result"`
	Error  string                `json:"error,omitempty"`
}

// BatchGeocode applies GeocodeAddress to each input in order. A failed item
// never aborts the rest of the batch. onProgress, when non-nil, is invoked
// with (completed, total) after each item.
func (s *Service) BatchGeocode(ctx context.Context, inputs []domain.AddressInput, onProgress func(completed, total int)) []BatchItem {
	s.metrics.BatchSize.Observe(float64(len(inputs)))

	items := make([]BatchItem, 0, len(inputs))
	for i, in := range inputs {
		result, err := s.GeocodeAddress(ctx, in.Street, in.City, in.State, in.Zip, false)
		item := BatchItem{Input: in, Result: result}
		if err != nil {
			item.Error = err.Error()
		}
		items = append(items, item)
		if onProgress != nil {
			onProgress(i+1, len(inputs))
		}
	}
	return items
}

// CacheStats are the aggregate counters plus the cost model applied to them.
type CacheStats struct {
	TotalCached         int64            `json:"total_cached"`
	ValidCount          int64            `json:"valid_count"`
	FailedCount         int64            `json:"failed_count"`
	TotalUsageCount     int64            `json:"total_usage_count"`
	APICallsSaved       int64            `json:"api_calls_saved"`
	AccuracyBreakdown   map[string]int64 `json:"accuracy_breakdown"`
	EstimatedCostUSD    float64          `json:"estimated_cost_usd"`
	EstimatedSavingsUSD float64          `json:"estimated_savings_usd"`
}

// CacheStats aggregates cache counters without mutating anything.
func (s *Service) CacheStats(ctx context.Context) (*CacheStats, error) {
	st, err := s.store.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("cache stats: %w", err)
	}
	return CacheStatsFrom(st, s.opts.UnitPriceUSD), nil
}

// CacheStatsFrom applies the cost model to raw cache counters. Every cached
// entry represents one paid provider call; every lookup beyond the first is a
// call saved.
func CacheStatsFrom(st *store.Stats, unitPriceUSD float64) *CacheStats {
	saved := st.TotalUsageCount - st.TotalCached
	return &CacheStats{
		TotalCached:         st.TotalCached,
		ValidCount:          st.ValidCount,
		FailedCount:         st.FailedCount,
		TotalUsageCount:     st.TotalUsageCount,
		APICallsSaved:       saved,
		AccuracyBreakdown:   st.AccuracyBreakdown,
		EstimatedCostUSD:    float64(st.TotalCached) * unitPriceUSD,
		EstimatedSavingsUSD: float64(saved) * unitPriceUSD,
	}
}

func resultFromEntry(e *store.Entry, fromCache bool) *domain.GeocodeResult {
	r := &domain.GeocodeResult{
		FromCache:    fromCache,
		CacheEntryID: e.ID,
		Accuracy:     domain.AccuracyUnknown,
		Confidence:   domain.ConfidenceLow,
	}
	if e.Latitude != nil {
		r.Lat = *e.Latitude
	}
	if e.Longitude != nil {
		r.Lng = *e.Longitude
	}
	if e.Accuracy != nil {
		r.Accuracy = domain.Accuracy(*e.Accuracy)
		r.Confidence = domain.ConfidenceFor(r.Accuracy)
	}
	if e.FormattedAddress != nil {
		r.FormattedAddress = *e.FormattedAddress
	}
	if e.PlaceID != nil {
		r.PlaceID = *e.PlaceID
	}
	return r
}
