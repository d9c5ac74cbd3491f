package domain

import (
	"fmt"
	"strings"
)

type feedLine struct {
	number int // 1-based position in the raw feed
	text   string
}

// dataLines drops blank lines and '#' comment headers, preserving original
// line numbers for error reporting.
func dataLines(raw string) []feedLine {
	var out []feedLine
	for i, line := range strings.Split(raw, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		out = append(out, feedLine{number: i + 1, text: trimmed})
	}
	return out
}

// ParseObservations converts a daily-summary feed into observation records.
// Every data line must carry exactly ObservationFieldCount tokens; a line
// with any other count aborts the whole batch with a *ParseError rather
// than producing a partially-filled record.
func ParseObservations(raw string) ([]ObservationRecord, error) {
	lines := dataLines(raw)
	records := make([]ObservationRecord, 0, len(lines))
	for _, ln := range lines {
		tokens := strings.Fields(ln.text)
		if len(tokens) != ObservationFieldCount {
			return nil, &ParseError{
				Line:   ln.number,
				Reason: fmt.Sprintf("expected %d fields, got %d", ObservationFieldCount, len(tokens)),
			}
		}
		records = append(records, ObservationRecord{values: tokens})
	}
	return records, nil
}

// ParseStations converts a station-metadata feed into station records.
// Each line needs at least StationLeadFields + StationTrailFields + 1
// tokens (one name token at minimum); the same abort-batch policy as
// ParseObservations applies.
func ParseStations(raw string) ([]StationRecord, error) {
	lines := dataLines(raw)
	records := make([]StationRecord, 0, len(lines))
	for _, ln := range lines {
		tokens := strings.Fields(ln.text)
		min := StationLeadFields + StationTrailFields + 1
		if len(tokens) < min {
			return nil, &ParseError{
				Line:   ln.number,
				Reason: fmt.Sprintf("expected at least %d fields, got %d", min, len(tokens)),
			}
		}

		lead := tokens[:StationLeadFields]
		trail := tokens[len(tokens)-StationTrailFields:]
		name := tokens[StationLeadFields : len(tokens)-StationTrailFields]

		records = append(records, StationRecord{
			ID:              lead[0],
			Lon:             lead[1],
			Lat:             lead[2],
			NetworkCode:     lead[3],
			Height:          lead[4],
			BarometerHeight: lead[5],
			ThermoHeight:    lead[6],
			AnemoHeight:     lead[7],
			RainGaugeHeight: lead[8],
			StationCode:     lead[9],
			KoreanName:      name[0],
			EnglishName:     strings.Join(name[1:], " "),
			ForecastZone:    trail[0],
			LawCode:         trail[1],
			Basin:           trail[2],
		})
	}
	return records, nil
}
