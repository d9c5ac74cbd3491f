package domain

import "context"

// Address is a reverse-geocoded administrative address. The zero value
// means "no match found", which is a normal outcome, not an error.
type Address struct {
	Province    string // sido_nm, province or metropolitan city
	District    string // sgg_nm, city/county/district
	Town        string // emdong_nm, town/neighborhood
	FullAddress string // full_addr
}

// IsZero reports whether the lookup found nothing.
func (a Address) IsZero() bool {
	return a == Address{}
}

// Geocoder resolves WGS-84 coordinates to administrative addresses.
type Geocoder interface {
	// ReverseGeocode returns the address at lon/lat, or a zero Address
	// when the provider has no match. Errors are reserved for transport
	// and auth failures.
	ReverseGeocode(ctx context.Context, lon, lat float64) (Address, error)
}
