package domain

import (
	"context"
	"log/slog"
	"strconv"
)

// EnrichStations fills the four address columns of each station by reverse
// geocoding its coordinates. All address columns are reset to empty across
// the whole table before any lookup runs, so a partially-enriched table is
// still well-formed. Rows are processed in input order, one blocking
// lookup per row; a failed or empty lookup leaves that row's address
// columns empty and the loop continues. The slice is mutated in place and
// returned for convenience.
func EnrichStations(ctx context.Context, stations []StationRecord, geocoder Geocoder, logger *slog.Logger) []StationRecord {
	for i := range stations {
		stations[i].Province = ""
		stations[i].District = ""
		stations[i].Town = ""
		stations[i].FullAddress = ""
	}

	if geocoder == nil {
		return stations
	}

	for i := range stations {
		st := &stations[i]

		lon, lonErr := strconv.ParseFloat(st.Lon, 64)
		lat, latErr := strconv.ParseFloat(st.Lat, 64)
		if lonErr != nil || latErr != nil {
			logger.Warn("station has unparseable coordinates, skipping",
				"station", st.ID,
				"lon", st.Lon,
				"lat", st.Lat,
			)
			continue
		}

		addr, err := geocoder.ReverseGeocode(ctx, lon, lat)
		if err != nil {
			logger.Warn("reverse geocoding failed",
				"station", st.ID,
				"lon", lon,
				"lat", lat,
				"error", err,
			)
			continue
		}
		if addr.IsZero() {
			continue
		}

		st.Province = addr.Province
		st.District = addr.District
		st.Town = addr.Town
		st.FullAddress = addr.FullAddress
		st.EnrichedAt = clock.Now()
	}

	return stations
}
