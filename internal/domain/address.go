package domain

import (
	"fmt"
	"regexp"
	"strings"
)

// unitPattern matches a trailing unit designator and its token, e.g. "APT 4B"
// or "#12". Unit numbers share the parcel's coordinates and must not fragment
// the cache.
var unitPattern = regexp.MustCompile(`(?i)\s*(APT|UNIT|#|STE|SUITE|BLDG|BUILDING)\s*[\w\-]+\s*$`)

// streetAbbreviations rewrites whole-word street suffixes and compass
// directionals to their USPS abbreviation. Patterns are word-anchored so
// "NORTHGATE" or "WESTLAKE" are left alone.
var streetAbbreviations = []struct {
	pattern *regexp.Regexp
	abbrev  string
}{
	{regexp.MustCompile(`\bSTREET\b`), "ST"},
	{regexp.MustCompile(`\bAVENUE\b`), "AVE"},
	{regexp.MustCompile(`\bBOULEVARD\b`), "BLVD"},
	{regexp.MustCompile(`\bDRIVE\b`), "DR"},
	{regexp.MustCompile(`\bLANE\b`), "LN"},
	{regexp.MustCompile(`\bCOURT\b`), "CT"},
	{regexp.MustCompile(`\bPLACE\b`), "PL"},
	{regexp.MustCompile(`\bROAD\b`), "RD"},
	{regexp.MustCompile(`\bCIRCLE\b`), "CIR"},
	{regexp.MustCompile(`\bNORTHEAST\b`), "NE"},
	{regexp.MustCompile(`\bNORTHWEST\b`), "NW"},
	{regexp.MustCompile(`\bSOUTHEAST\b`), "SE"},
	{regexp.MustCompile(`\bSOUTHWEST\b`), "SW"},
	{regexp.MustCompile(`\bNORTH\b`), "N"},
	{regexp.MustCompile(`\bSOUTH\b`), "S"},
	{regexp.MustCompile(`\bEAST\b`), "E"},
	{regexp.MustCompile(`\bWEST\b`), "W"},
}

// NormalizeKey derives the canonical cache key for an address. It is total:
// empty or missing components produce an empty segment, never an error.
//
// Key format: "STREET|CITY|STATE|ZIP", e.g. "123 MAIN ST|SEATTLE|WA|98101".
func NormalizeKey(street, city, state, zip string) string {
	street = strings.ToUpper(strings.TrimSpace(street))
	city = strings.ToUpper(strings.TrimSpace(city))
	state = strings.ToUpper(strings.TrimSpace(state))
	zip = strings.TrimSpace(zip)

	street = unitPattern.ReplaceAllString(street, "")

	for _, r := range streetAbbreviations {
		street = r.pattern.ReplaceAllString(street, r.abbrev)
	}

	street = strings.Join(strings.Fields(street), " ")
	city = strings.Join(strings.Fields(city), " ")

	// ZIP+4 suffixes do not affect geocoding.
	if len(zip) > 5 {
		zip = zip[:5]
	}

	return street + "|" + city + "|" + state + "|" + zip
}

// FullAddress renders the components as a single query string for the
// provider, e.g. "1702 NE 65th St, Seattle, WA 98115".
func FullAddress(street, city, state, zip string) string {
	return strings.TrimSpace(fmt.Sprintf("%s, %s, %s %s", street, city, state, zip))
}

// AddressInput is one address to geocode, as supplied by a caller.
type AddressInput struct {
	Street string `json:"street"`
	City   string `json:"city"`
	State  string `json:"state,omitempty"`
	Zip    string `json:"zip,omitempty"`
}
