package pipeline

import (
	"bytes"
	"encoding/csv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bizscope/weather-collector/internal/domain"
)

func TestEncodeObservationsCSV_EmptyBatch(t *testing.T) {
	data, err := EncodeObservationsCSV(nil)

	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(data, utf8BOM))

	r := csv.NewReader(bytes.NewReader(data[len(utf8BOM):]))
	rows, err := r.ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, domain.ObservationColumns, rows[0])
}

func TestEncodeStationsCSV_MultiWordNameStaysOneColumn(t *testing.T) {
	data, err := EncodeStationsCSV([]domain.StationRecord{{
		ID: "99", Lon: "126.5", Lat: "37.9", NetworkCode: "0",
		Height: "30.0", BarometerHeight: "31.0", ThermoHeight: "1.5",
		AnemoHeight: "10.0", RainGaugeHeight: "0.6", StationCode: "11",
		KoreanName: "파주", EnglishName: "Paju City Office",
		ForecastZone: "109", LawCode: "4148000000", Basin: "12",
		Province: "경기도", District: "파주시", Town: "금촌동",
		FullAddress: "경기도 파주시 금촌동",
	}})

	require.NoError(t, err)

	r := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(data, utf8BOM)))
	rows, err := r.ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, stationCSVHeader, rows[0])
	require.Len(t, rows[1], len(stationCSVHeader))
	assert.Equal(t, "Paju City Office", rows[1][11])
	assert.Equal(t, "경기도 파주시 금촌동", rows[1][18])
}
