package domain

// Accuracy is the provider-reported precision class of a geocode result.
type Accuracy string

const (
	AccuracyRooftop           Accuracy = "ROOFTOP"
	AccuracyRangeInterpolated Accuracy = "RANGE_INTERPOLATED"
	AccuracyGeometricCenter   Accuracy = "GEOMETRIC_CENTER"
	AccuracyApproximate       Accuracy = "APPROXIMATE"
	AccuracyUnknown           Accuracy = "UNKNOWN"
)

// Confidence is the three-level precision summary derived from Accuracy.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// ConfidenceFor maps an accuracy class to its confidence level. Unrecognized
// classes score low.
func ConfidenceFor(a Accuracy) Confidence {
	switch a {
	case AccuracyRooftop:
		return ConfidenceHigh
	case AccuracyRangeInterpolated, AccuracyGeometricCenter:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// GeocodeResult is the answer to a single geocode request.
type GeocodeResult struct {
	Lat              float64    `json:"lat"`
	Lng              float64    `json:"lng"`
	Accuracy         Accuracy   `json:"accuracy"`
	Confidence       Confidence `json:"confidence"`
	FormattedAddress string     `json:"formatted_address"`
	PlaceID          string     `json:"place_id"`
	FromCache        bool       `json:"from_cache"`
	CacheEntryID     int64      `json:"cache_entry_id"`
}
