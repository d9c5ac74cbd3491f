// Package domain models Korea Meteorological Administration (KMA) surface
// observation data and its administrative-address enrichment.
//
// # Data Source
//
// Feeds come from the KMA API hub (https://apihub.kma.go.kr) as
// newline-delimited text. Two wire shapes are handled:
//
//   - Daily summaries (kma_sfcdd3.php): one line per station per day,
//     exactly 56 whitespace-separated columns. Column names are listed in
//     [ObservationColumns]; the first two are the date (TM, YYYYMMDD) and
//     the station code (STN).
//   - Station metadata (stn_inf.php): one line per station. The first
//     [StationLeadFields] tokens are fixed numeric/code columns (id,
//     longitude, latitude, instrument heights, station code) and the last
//     [StationTrailFields] tokens are classification codes. Everything
//     strictly between the two anchors is the display-name payload: the
//     first token is the Korean name, the remaining tokens joined by
//     spaces are the English name. English names legitimately contain
//     spaces ("Baengnyeongdo", "Ulleung Dodong"), so the remainder is
//     never split further.
//
// Lines whose first non-whitespace character is '#' are comment headers
// (present when the request uses help=1) and are discarded, as are blank
// lines. Runs of whitespace act as a single separator.
//
// Values are kept as text at this layer. KMA uses sentinel codes such as
// -9 and -99.0 for missing values; interpreting those is a downstream
// concern, and coercing here would silently corrupt columns. The parser's
// only obligations are the exact column count and column order.
//
// # Malformed input
//
// A line that does not match its wire shape fails the whole batch with a
// [*ParseError] carrying the 1-based line number. Callers isolate the
// failure per source: a feed that fails to parse is logged and omitted
// from the run, and other feeds proceed.
//
// # Address enrichment
//
// Station rows are enriched with reverse-geocoded administrative addresses
// from the SGIS open API (Statistics Korea): province (sido_nm), district
// (sgg_nm), town (emdong_nm), and the full address string. A lookup that
// finds nothing is a normal outcome, represented by a zero [Address]; only
// transport and auth problems surface as errors. One station's failed
// lookup never aborts enrichment of the remaining stations.
package domain
