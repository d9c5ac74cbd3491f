package domain

import (
	"fmt"
	"time"
)

// ObservationFieldCount is the exact number of columns in a daily-summary line.
const ObservationFieldCount = 56

// Station line anchors: the first StationLeadFields and last
// StationTrailFields tokens are fixed columns; the tokens between them are
// the variable-width name payload.
const (
	StationLeadFields  = 10
	StationTrailFields = 3
)

// ObservationColumns names the 56 daily-summary columns in wire order.
var ObservationColumns = []string{
	"TM", "STN", "WS_AVG", "WR_DAY", "WD_MAX", "WS_MAX", "WS_MAX_TM", "WD_INS", "WS_INS", "WS_INS_TM",
	"TA_AVG", "TA_MAX", "TA_MAX_TM", "TA_MIN", "TA_MIN_TM", "TD_AVG", "TS_AVG", "TG_MIN",
	"HM_AVG", "HM_MIN", "HM_MIN_TM", "PV_AVG", "EV_S", "EV_L", "FG_DUR", "PA_AVG", "PS_AVG",
	"PS_MAX", "PS_MAX_TM", "PS_MIN", "PS_MIN_TM", "CA_TOT", "SS_DAY", "SS_DUR", "SS_CMB",
	"SI_DAY", "SI_60M_MAX", "SI_60M_MAX_TM", "RN_DAY", "RN_D99", "RN_DUR", "RN_60M_MAX",
	"RN_60M_MAX_TM", "RN_10M_MAX", "RN_10M_MAX_TM", "RN_POW_MAX", "RN_POW_MAX_TM",
	"SD_NEW", "SD_NEW_TM", "SD_MAX", "SD_MAX_TM", "TE_05", "TE_10", "TE_15", "TE_30", "TE_50",
}

var observationIndex = buildObservationIndex()

func buildObservationIndex() map[string]int {
	idx := make(map[string]int, len(ObservationColumns))
	for i, name := range ObservationColumns {
		idx[name] = i
	}
	return idx
}

// ObservationRecord is one station-day of the daily-summary feed: exactly
// ObservationFieldCount text values in ObservationColumns order. Records
// are immutable once parsed.
type ObservationRecord struct {
	values []string
}

// Date returns the TM column (YYYYMMDD).
func (r ObservationRecord) Date() string { return r.values[0] }

// StationID returns the STN column.
func (r ObservationRecord) StationID() string { return r.values[1] }

// Field returns the value of the named column, or "" for unknown names.
func (r ObservationRecord) Field(name string) string {
	i, ok := observationIndex[name]
	if !ok {
		return ""
	}
	return r.values[i]
}

// Values returns the row in column order. The returned slice is a copy.
func (r ObservationRecord) Values() []string {
	out := make([]string, len(r.values))
	copy(out, r.values)
	return out
}

// StationRecord is one weather station's static metadata plus the address
// columns filled in by enrichment. All values are kept as wire text;
// Lon/Lat are parsed to floats only at the geocoding boundary.
type StationRecord struct {
	// Lead fixed columns, in wire order.
	ID              string `json:"stn_id"`
	Lon             string `json:"lon"`
	Lat             string `json:"lat"`
	NetworkCode     string `json:"stn_sp"`
	Height          string `json:"ht"` // station elevation (m)
	BarometerHeight string `json:"ht_pa"`
	ThermoHeight    string `json:"ht_ta"`
	AnemoHeight     string `json:"ht_wd"`
	RainGaugeHeight string `json:"ht_rn"`
	StationCode     string `json:"stn_cd"`

	// Variable-width name payload.
	KoreanName  string `json:"stn_ko"`
	EnglishName string `json:"stn_en"` // may contain spaces, may be empty

	// Trailing classification columns, in wire order.
	ForecastZone string `json:"fct_id"`
	LawCode      string `json:"law_id"`
	Basin        string `json:"basin"`

	// Reverse-geocoded address columns. Empty until enrichment runs;
	// stay empty for rows whose lookup found nothing.
	Province    string `json:"province,omitempty"`
	District    string `json:"district,omitempty"`
	Town        string `json:"town,omitempty"`
	FullAddress string `json:"full_address,omitempty"`

	EnrichedAt time.Time `json:"enriched_at,omitzero"`
}

// LeadTokens returns the fixed leading columns in wire order.
func (s StationRecord) LeadTokens() []string {
	return []string{
		s.ID, s.Lon, s.Lat, s.NetworkCode, s.Height,
		s.BarometerHeight, s.ThermoHeight, s.AnemoHeight, s.RainGaugeHeight, s.StationCode,
	}
}

// TrailTokens returns the trailing classification columns in wire order.
func (s StationRecord) TrailTokens() []string {
	return []string{s.ForecastZone, s.LawCode, s.Basin}
}

// ParseError reports a line that does not match its expected wire shape.
type ParseError struct {
	Line   int // 1-based line number in the raw feed
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse line %d: %s", e.Line, e.Reason)
}

// FetchError reports a fetch whose retry budget is exhausted.
type FetchError struct {
	Source   string
	Attempts int
	Last     error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %d attempts exhausted: %v", e.Source, e.Attempts, e.Last)
}

func (e *FetchError) Unwrap() error { return e.Last }
