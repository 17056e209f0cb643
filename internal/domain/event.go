package domain

import "time"

// GeocodedEvent announces a freshly geocoded address to the rest of the
// platform. Published after a successful provider call only, never on cache
// hits, so downstream mirrors see each address at most once per refresh.
type GeocodedEvent struct {
	AddressKey       string     `json:"address_key"`
	Street           string     `json:"street"`
	City             string     `json:"city"`
	State            string     `json:"state"`
	Zip              string     `json:"zip"`
	Lat              float64    `json:"lat"`
	Lng              float64    `json:"lng"`
	Accuracy         Accuracy   `json:"accuracy"`
	Confidence       Confidence `json:"confidence"`
	FormattedAddress string     `json:"formatted_address"`
	PlaceID          string     `json:"place_id"`
	Provider         string     `json:"provider"`
	GeocodedAt       time.Time  `json:"geocoded_at"`
}
