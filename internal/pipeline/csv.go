package pipeline

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"time"

	"github.com/bizscope/weather-collector/internal/domain"
)

// Artifacts carry a UTF-8 BOM so spreadsheet tools render the Korean
// address columns correctly.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// stationCSVHeader covers the wire columns plus the enrichment columns.
var stationCSVHeader = []string{
	"STN_ID", "LON", "LAT", "STN_SP", "HT", "HT_PA", "HT_TA", "HT_WD", "HT_RN", "STN_CD",
	"STN_KO", "STN_EN",
	"FCT_ID", "LAW_ID", "BASIN",
	"도", "시군구", "읍면동", "전체주소",
}

// EncodeObservationsCSV renders the observation table with the wire column
// header. Values are written exactly as parsed.
func EncodeObservationsCSV(records []domain.ObservationRecord) ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(utf8BOM)

	w := csv.NewWriter(&buf)
	if err := w.Write(domain.ObservationColumns); err != nil {
		return nil, err
	}
	for _, rec := range records {
		if err := w.Write(rec.Values()); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// EncodeStationsCSV renders the enriched station table. Address columns
// are empty for rows whose lookup found nothing.
func EncodeStationsCSV(stations []domain.StationRecord) ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(utf8BOM)

	w := csv.NewWriter(&buf)
	if err := w.Write(stationCSVHeader); err != nil {
		return nil, err
	}
	for _, s := range stations {
		row := s.LeadTokens()
		row = append(row, s.KoreanName, s.EnglishName)
		row = append(row, s.TrailTokens()...)
		row = append(row, s.Province, s.District, s.Town, s.FullAddress)
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// observationEvent is the monthly event payload: the column names once,
// then the rows in column order.
type observationEvent struct {
	Columns     []string   `json:"columns"`
	Rows        [][]string `json:"rows"`
	CollectedAt time.Time  `json:"collected_at"`
}

func encodeObservationsJSON(records []domain.ObservationRecord) ([]byte, error) {
	rows := make([][]string, len(records))
	for i, rec := range records {
		rows[i] = rec.Values()
	}
	return json.Marshal(observationEvent{
		Columns:     domain.ObservationColumns,
		Rows:        rows,
		CollectedAt: time.Now().UTC(),
	})
}

func encodeStationsJSON(stations []domain.StationRecord) ([]byte, error) {
	return json.Marshal(stations)
}
