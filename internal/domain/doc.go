// Package domain models geocoding for the ParishStaq parishioner platform.
//
// # Address Keys
//
// Every cache entry is identified by a normalized address key derived from the
// street, city, state, and zip components:
//
//	"123 Main Street Apt 4, Seattle, wa 98101-1234"
//	  → "123 MAIN ST|SEATTLE|WA|98101"
//
// Normalization upper-cases and trims each component, strips a trailing
// unit/suite/apartment designator from the street (unit numbers do not move
// the rooftop), abbreviates street suffixes and compass directionals the way
// USPS does (STREET→ST, NORTHEAST→NE, ...), collapses runs of whitespace, and
// truncates ZIP+4 codes to five digits. Two addresses that differ only in
// abbreviation style or apartment number therefore share one cache entry and
// one paid provider call. See [NormalizeKey].
//
// # Accuracy and Confidence
//
// The provider reports a location type per result:
//
//	ROOFTOP            exact address match
//	RANGE_INTERPOLATED interpolated between two known addresses
//	GEOMETRIC_CENTER   center of a street or region
//	APPROXIMATE        general area only
//
// Confidence is a fixed three-level summary of that code, computed by
// [ConfidenceFor] and never stored independently:
//
//	ROOFTOP → high
//	RANGE_INTERPOLATED, GEOMETRIC_CENTER → medium
//	APPROXIMATE or anything unrecognized → low
//
// # Cost Model
//
// The provider bills a flat unit price per request (default $0.005). Each
// cache entry represents one paid call; every lookup beyond the first is a
// call saved. Cache statistics expose both figures so staff can see what the
// permanent cache is worth.
package domain
