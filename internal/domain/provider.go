package domain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Candidate is one match returned by a geocoding provider, best match first.
type Candidate struct {
	Lat              float64
	Lng              float64
	LocationType     string // provider accuracy code, e.g. "ROOFTOP"
	FormattedAddress string
	PlaceID          string
	Raw              json.RawMessage // full provider payload, kept for the audit trail
}

// Provider resolves a free-form address to candidate coordinates.
// An empty candidate list with a nil error means the provider answered but
// found no match; that is a valid outcome, not a failure.
type Provider interface {
	Lookup(ctx context.Context, address, countryHint string) ([]Candidate, error)
}

// ProviderErrorKind classifies provider failures so callers can tell a bad
// credential from a flaky network without matching on message strings.
type ProviderErrorKind string

const (
	ProviderErrAuth      ProviderErrorKind = "auth"
	ProviderErrTimeout   ProviderErrorKind = "timeout"
	ProviderErrTransport ProviderErrorKind = "transport"
)

// ProviderError is a failed call to the geocoding provider.
type ProviderError struct {
	Kind ProviderErrorKind
	Err  error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s error: %v", e.Kind, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// ErrNoResults reports that the provider found no match for an address. It is
// recorded in the cache with its own message so statistics can distinguish
// "tried and found nothing" from "couldn't reach the provider".
var ErrNoResults = errors.New("no geocoding results")
